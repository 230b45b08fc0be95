package db

// services.go mirrors deployments.go's query style for the services table:
// the same scanner interface, the same RowsAffected-based not-found check.

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/helvetia-cloud/deploy-worker/models"
)

// InsertService writes a new service row.
func (d *Database) InsertService(service *models.Service) error {
	query := `
		INSERT INTO services (
			id, name, type, status, environment_id, custom_domain,
			project_name, environment_name, username, deleted_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	now := time.Now().UTC()
	service.CreatedAt = now
	service.UpdatedAt = now

	_, err := d.conn.Exec(query,
		service.ID,
		service.Name,
		service.Type,
		service.Status,
		service.EnvironmentID,
		service.CustomDomain,
		service.ProjectName,
		service.EnvironmentName,
		service.Username,
		service.DeletedAt,
		service.CreatedAt,
		service.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert service %q: %w", service.ID, err)
	}
	return nil
}

// GetService fetches a single service row by id, tombstoned or not.
func (d *Database) GetService(id string) (*models.Service, error) {
	row := d.conn.QueryRow(serviceSelectColumns+"FROM services WHERE id = ?", id)
	service, err := scanService(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get service %q: %w", id, err)
	}
	return service, nil
}

// UpdateServiceStatus sets a service's status. The Distributed Status
// Lock must be held by the caller before this is invoked for any
// status other than the initial PENDING/BUILDING transitions that happen
// before concurrent jobs can exist for a brand new service.
func (d *Database) UpdateServiceStatus(id string, status models.ServiceStatus) error {
	query := `UPDATE services SET status = ?, updated_at = ? WHERE id = ?`
	return d.execExpectingOneRow(query, ErrRecordNotFound, status, time.Now().UTC(), id)
}

// ListTombstonedBefore returns every service whose deleted_at is non-null
// and older than the given cutoff — the Cleanup Scheduler's reaping set.
func (d *Database) ListTombstonedBefore(cutoff time.Time) ([]*models.Service, error) {
	query := serviceSelectColumns + `FROM services WHERE deleted_at IS NOT NULL AND deleted_at < ?`

	rows, err := d.conn.Query(query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list tombstoned services: %w", err)
	}
	defer rows.Close()

	var services []*models.Service
	for rows.Next() {
		service, err := scanService(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan service row: %w", err)
		}
		services = append(services, service)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating service rows: %w", err)
	}
	return services, nil
}

// DeleteService removes a service row. Callers must have already removed
// its containers, volumes, images, and Deployment rows.
func (d *Database) DeleteService(id string) error {
	return d.execExpectingOneRow(`DELETE FROM services WHERE id = ?`, ErrRecordNotFound, id)
}

const serviceSelectColumns = `
	SELECT id, name, type, status, environment_id, custom_domain,
	       project_name, environment_name, username, deleted_at, created_at, updated_at
`

func scanService(row scanner) (*models.Service, error) {
	var service models.Service
	err := row.Scan(
		&service.ID,
		&service.Name,
		&service.Type,
		&service.Status,
		&service.EnvironmentID,
		&service.CustomDomain,
		&service.ProjectName,
		&service.EnvironmentName,
		&service.Username,
		&service.DeletedAt,
		&service.CreatedAt,
		&service.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &service, nil
}
