package db

import (
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/helvetia-cloud/deploy-worker/models"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discardWriter{}, nil))
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func openTestDB(t *testing.T) *Database {
	t.Helper()
	path := filepath.Join(t.TempDir(), "worker.db")
	database, err := Open(path, discardLogger())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

func TestInsertAndGetService(t *testing.T) {
	database := openTestDB(t)

	svc := &models.Service{
		ID:     "svc-1",
		Name:   "my-app",
		Type:   models.ServiceTypeDocker,
		Status: models.ServiceStatusPending,
	}
	if err := database.InsertService(svc); err != nil {
		t.Fatalf("InsertService() error = %v", err)
	}

	got, err := database.GetService("svc-1")
	if err != nil {
		t.Fatalf("GetService() error = %v", err)
	}
	if got.Name != "my-app" {
		t.Errorf("Name = %q, want %q", got.Name, "my-app")
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt was not stamped")
	}
}

func TestGetServiceNotFound(t *testing.T) {
	database := openTestDB(t)

	_, err := database.GetService("does-not-exist")
	if err != ErrRecordNotFound {
		t.Fatalf("GetService() error = %v, want ErrRecordNotFound", err)
	}
}

func TestUpdateServiceStatusNotFound(t *testing.T) {
	database := openTestDB(t)

	err := database.UpdateServiceStatus("does-not-exist", models.ServiceStatusRunning)
	if err != ErrRecordNotFound {
		t.Fatalf("UpdateServiceStatus() error = %v, want ErrRecordNotFound", err)
	}
}

func TestListTombstonedBefore(t *testing.T) {
	database := openTestDB(t)

	old := time.Now().UTC().Add(-48 * time.Hour)
	recent := time.Now().UTC().Add(-1 * time.Hour)

	svcOld := &models.Service{ID: "svc-old", Name: "old", Type: models.ServiceTypeDocker, Status: models.ServiceStatusRunning, DeletedAt: &old}
	svcRecent := &models.Service{ID: "svc-recent", Name: "recent", Type: models.ServiceTypeDocker, Status: models.ServiceStatusRunning, DeletedAt: &recent}
	svcAlive := &models.Service{ID: "svc-alive", Name: "alive", Type: models.ServiceTypeDocker, Status: models.ServiceStatusRunning}

	for _, s := range []*models.Service{svcOld, svcRecent, svcAlive} {
		if err := database.InsertService(s); err != nil {
			t.Fatalf("InsertService(%s) error = %v", s.ID, err)
		}
	}

	cutoff := time.Now().UTC().Add(-24 * time.Hour)
	got, err := database.ListTombstonedBefore(cutoff)
	if err != nil {
		t.Fatalf("ListTombstonedBefore() error = %v", err)
	}
	if len(got) != 1 || got[0].ID != "svc-old" {
		t.Fatalf("ListTombstonedBefore() = %+v, want only svc-old", got)
	}
}

func TestDeploymentLifecycle(t *testing.T) {
	database := openTestDB(t)

	svc := &models.Service{ID: "svc-2", Name: "app", Type: models.ServiceTypeDocker, Status: models.ServiceStatusPending}
	if err := database.InsertService(svc); err != nil {
		t.Fatalf("InsertService() error = %v", err)
	}

	dep := &models.Deployment{ID: "dep-1", ServiceID: svc.ID, Status: models.DeploymentStatusPending}
	if err := database.InsertDeployment(dep); err != nil {
		t.Fatalf("InsertDeployment() error = %v", err)
	}

	if err := database.UpdateStatus(dep.ID, models.DeploymentStatusBuilding); err != nil {
		t.Fatalf("UpdateStatus() error = %v", err)
	}

	if err := database.CommitSuccess(dep.ID, "my-app:latest", "build ok"); err != nil {
		t.Fatalf("CommitSuccess() error = %v", err)
	}

	got, err := database.GetDeployment(dep.ID)
	if err != nil {
		t.Fatalf("GetDeployment() error = %v", err)
	}
	if got.Status != models.DeploymentStatusSuccess {
		t.Errorf("Status = %q, want SUCCESS", got.Status)
	}
	if got.ImageTag == nil || *got.ImageTag != "my-app:latest" {
		t.Errorf("ImageTag = %v, want my-app:latest", got.ImageTag)
	}

	tag, err := database.LatestSuccessfulImageTag(svc.ID)
	if err != nil {
		t.Fatalf("LatestSuccessfulImageTag() error = %v", err)
	}
	if tag != "my-app:latest" {
		t.Errorf("LatestSuccessfulImageTag() = %q, want my-app:latest", tag)
	}

	tags, err := database.DistinctImageTagsForService(svc.ID)
	if err != nil {
		t.Fatalf("DistinctImageTagsForService() error = %v", err)
	}
	if len(tags) != 1 || tags[0] != "my-app:latest" {
		t.Fatalf("DistinctImageTagsForService() = %v, want [my-app:latest]", tags)
	}

	deleted, err := database.DeleteDeploymentsForService(svc.ID)
	if err != nil {
		t.Fatalf("DeleteDeploymentsForService() error = %v", err)
	}
	if deleted != 1 {
		t.Errorf("DeleteDeploymentsForService() = %d, want 1", deleted)
	}
}

func TestCommitFailureRecordsLogs(t *testing.T) {
	database := openTestDB(t)

	svc := &models.Service{ID: "svc-3", Name: "app", Type: models.ServiceTypeDocker, Status: models.ServiceStatusPending}
	if err := database.InsertService(svc); err != nil {
		t.Fatalf("InsertService() error = %v", err)
	}
	dep := &models.Deployment{ID: "dep-2", ServiceID: svc.ID, Status: models.DeploymentStatusPending}
	if err := database.InsertDeployment(dep); err != nil {
		t.Fatalf("InsertDeployment() error = %v", err)
	}

	if err := database.CommitFailure(dep.ID, "=== DEPLOYMENT FAILURE ===\nboom"); err != nil {
		t.Fatalf("CommitFailure() error = %v", err)
	}

	got, err := database.GetDeployment(dep.ID)
	if err != nil {
		t.Fatalf("GetDeployment() error = %v", err)
	}
	if got.Status != models.DeploymentStatusFailed {
		t.Errorf("Status = %q, want FAILED", got.Status)
	}
	if got.Logs == "" {
		t.Error("Logs was not recorded")
	}
}

func TestListActiveLatestSuccessImageTags(t *testing.T) {
	database := openTestDB(t)

	active := &models.Service{ID: "svc-active", Name: "active", Type: models.ServiceTypeDocker, Status: models.ServiceStatusRunning}
	if err := database.InsertService(active); err != nil {
		t.Fatalf("InsertService() error = %v", err)
	}
	dep1 := &models.Deployment{ID: "dep-old", ServiceID: active.ID, Status: models.DeploymentStatusPending}
	if err := database.InsertDeployment(dep1); err != nil {
		t.Fatalf("InsertDeployment() error = %v", err)
	}
	if err := database.CommitSuccess(dep1.ID, "active:old", "ok"); err != nil {
		t.Fatalf("CommitSuccess() error = %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	dep2 := &models.Deployment{ID: "dep-new", ServiceID: active.ID, Status: models.DeploymentStatusPending}
	if err := database.InsertDeployment(dep2); err != nil {
		t.Fatalf("InsertDeployment() error = %v", err)
	}
	if err := database.CommitSuccess(dep2.ID, "active:new", "ok"); err != nil {
		t.Fatalf("CommitSuccess() error = %v", err)
	}

	deletedAt := time.Now().UTC().Add(-48 * time.Hour)
	tombstoned := &models.Service{ID: "svc-gone", Name: "gone", Type: models.ServiceTypeDocker, Status: models.ServiceStatusRunning, DeletedAt: &deletedAt}
	if err := database.InsertService(tombstoned); err != nil {
		t.Fatalf("InsertService() error = %v", err)
	}
	depGone := &models.Deployment{ID: "dep-gone", ServiceID: tombstoned.ID, Status: models.DeploymentStatusPending}
	if err := database.InsertDeployment(depGone); err != nil {
		t.Fatalf("InsertDeployment() error = %v", err)
	}
	if err := database.CommitSuccess(depGone.ID, "gone:latest", "ok"); err != nil {
		t.Fatalf("CommitSuccess() error = %v", err)
	}

	tags, err := database.ListActiveLatestSuccessImageTags()
	if err != nil {
		t.Fatalf("ListActiveLatestSuccessImageTags() error = %v", err)
	}
	if len(tags) != 1 || tags[0] != "active:new" {
		t.Fatalf("ListActiveLatestSuccessImageTags() = %v, want [active:new]", tags)
	}
}

func TestDeleteServiceNotFound(t *testing.T) {
	database := openTestDB(t)

	err := database.DeleteService("does-not-exist")
	if err != ErrRecordNotFound {
		t.Fatalf("DeleteService() error = %v, want ErrRecordNotFound", err)
	}
}
