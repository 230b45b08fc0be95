package db

// deployments.go contains all SQL query functions for the deployments
// table. Each function is a method on *Database and operates on a single
// table. Raw SQL is used intentionally: it keeps the query layer explicit
// and auditable without an ORM layer hiding what's actually sent to SQLite.

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/helvetia-cloud/deploy-worker/models"
)

// ErrRecordNotFound is returned when no row matches the given id. Callers
// check for this sentinel to distinguish "not found" from a real database
// error.
var ErrRecordNotFound = errors.New("record not found")

// InsertDeployment writes a new deployment row. CreatedAt/UpdatedAt are
// stamped here so the caller never has to manage row metadata.
func (d *Database) InsertDeployment(deployment *models.Deployment) error {
	query := `
		INSERT INTO deployments (
			id, service_id, status, image_tag, logs, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	now := time.Now().UTC()
	deployment.CreatedAt = now
	deployment.UpdatedAt = now

	_, err := d.conn.Exec(query,
		deployment.ID,
		deployment.ServiceID,
		deployment.Status,
		deployment.ImageTag,
		deployment.Logs,
		deployment.CreatedAt,
		deployment.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert deployment %q: %w", deployment.ID, err)
	}
	return nil
}

// GetDeployment fetches a single deployment row by id.
func (d *Database) GetDeployment(id string) (*models.Deployment, error) {
	query := `
		SELECT id, service_id, status, image_tag, logs, created_at, updated_at
		FROM deployments WHERE id = ?
	`

	row := d.conn.QueryRow(query, id)
	deployment, err := scanDeployment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get deployment %q: %w", id, err)
	}
	return deployment, nil
}

// ListDeploymentsForService returns every deployment attempt for a
// service, newest first.
func (d *Database) ListDeploymentsForService(serviceID string) ([]*models.Deployment, error) {
	query := `
		SELECT id, service_id, status, image_tag, logs, created_at, updated_at
		FROM deployments WHERE service_id = ? ORDER BY created_at DESC
	`

	rows, err := d.conn.Query(query, serviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list deployments for service %q: %w", serviceID, err)
	}
	defer rows.Close()

	var deployments []*models.Deployment
	for rows.Next() {
		deployment, err := scanDeployment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan deployment row: %w", err)
		}
		deployments = append(deployments, deployment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating deployment rows: %w", err)
	}
	return deployments, nil
}

// DistinctImageTagsForService returns every non-null image tag ever
// recorded on a deployment for this service, used by tombstone reaping to
// know which images to attempt to remove.
func (d *Database) DistinctImageTagsForService(serviceID string) ([]string, error) {
	query := `
		SELECT DISTINCT image_tag FROM deployments
		WHERE service_id = ? AND image_tag IS NOT NULL AND image_tag != ''
	`

	rows, err := d.conn.Query(query, serviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list image tags for service %q: %w", serviceID, err)
	}
	defer rows.Close()

	var tags []string
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, fmt.Errorf("failed to scan image tag row: %w", err)
		}
		tags = append(tags, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating image tag rows: %w", err)
	}
	return tags, nil
}

// LatestSuccessfulImageTag returns the image tag of a service's most
// recent SUCCESS deployment, or "" if there is none. Image GC keeps this
// tag alive even if it is otherwise past the retention window.
func (d *Database) LatestSuccessfulImageTag(serviceID string) (string, error) {
	query := `
		SELECT image_tag FROM deployments
		WHERE service_id = ? AND status = ? AND image_tag IS NOT NULL
		ORDER BY created_at DESC LIMIT 1
	`

	var tag string
	err := d.conn.QueryRow(query, serviceID, models.DeploymentStatusSuccess).Scan(&tag)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get latest successful image tag for service %q: %w", serviceID, err)
	}
	return tag, nil
}

// ListActiveLatestSuccessImageTags returns the latest SUCCESS image tag for
// every non-tombstoned service — the exception set image GC must never
// remove, even past the retention window.
func (d *Database) ListActiveLatestSuccessImageTags() ([]string, error) {
	query := `
		SELECT dep.image_tag
		FROM deployments dep
		JOIN (
			SELECT service_id, MAX(created_at) AS max_created_at
			FROM deployments
			WHERE status = ? AND image_tag IS NOT NULL AND image_tag != ''
			GROUP BY service_id
		) latest ON latest.service_id = dep.service_id AND latest.max_created_at = dep.created_at
		JOIN services s ON s.id = dep.service_id
		WHERE dep.status = ? AND s.deleted_at IS NULL
	`

	rows, err := d.conn.Query(query, models.DeploymentStatusSuccess, models.DeploymentStatusSuccess)
	if err != nil {
		return nil, fmt.Errorf("failed to list active latest-success image tags: %w", err)
	}
	defer rows.Close()

	var tags []string
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, fmt.Errorf("failed to scan image tag row: %w", err)
		}
		tags = append(tags, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating image tag rows: %w", err)
	}
	return tags, nil
}

// UpdateStatus sets the status and updated_at timestamp for a deployment.
// Called at each state transition: PENDING -> BUILDING -> SUCCESS|FAILED.
func (d *Database) UpdateStatus(id string, status models.DeploymentStatus) error {
	query := `UPDATE deployments SET status = ?, updated_at = ? WHERE id = ?`
	return d.execExpectingOneRow(query, ErrRecordNotFound, status, time.Now().UTC(), id)
}

// CommitSuccess records the final image tag, the scrubbed/truncated log
// blob, and the SUCCESS status in one write.
func (d *Database) CommitSuccess(id, imageTag, logs string) error {
	query := `UPDATE deployments SET status = ?, image_tag = ?, logs = ?, updated_at = ? WHERE id = ?`
	return d.execExpectingOneRow(query, ErrRecordNotFound, models.DeploymentStatusSuccess, imageTag, logs, time.Now().UTC(), id)
}

// CommitFailure records the FAILED status and the error-enriched log blob.
func (d *Database) CommitFailure(id, logs string) error {
	query := `UPDATE deployments SET status = ?, logs = ?, updated_at = ? WHERE id = ?`
	return d.execExpectingOneRow(query, ErrRecordNotFound, models.DeploymentStatusFailed, logs, time.Now().UTC(), id)
}

// DeleteDeploymentsForService removes every deployment row belonging to a
// service. Used by tombstone reaping right before the Service row itself
// is deleted.
func (d *Database) DeleteDeploymentsForService(serviceID string) (int64, error) {
	result, err := d.conn.Exec(`DELETE FROM deployments WHERE service_id = ?`, serviceID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete deployments for service %q: %w", serviceID, err)
	}
	return result.RowsAffected()
}

func (d *Database) execExpectingOneRow(query string, notFoundErr error, args ...any) error {
	result, err := d.conn.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("exec failed: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return notFoundErr
	}
	return nil
}

func scanDeployment(row scanner) (*models.Deployment, error) {
	var deployment models.Deployment
	err := row.Scan(
		&deployment.ID,
		&deployment.ServiceID,
		&deployment.Status,
		&deployment.ImageTag,
		&deployment.Logs,
		&deployment.CreatedAt,
		&deployment.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &deployment, nil
}
