package cleanup

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/helvetia-cloud/deploy-worker/config"
	"github.com/helvetia-cloud/deploy-worker/db"
	"github.com/helvetia-cloud/deploy-worker/dockerrt"
	"github.com/helvetia-cloud/deploy-worker/models"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discardWriter{}, nil))
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestRemoveVolumesForDatabaseService(t *testing.T) {
	fake := dockerrt.NewFakeAdapter()
	fake.Volumes["helvetia-data-mydb"] = map[string]string{}

	s := &Scheduler{Adapter: fake, Config: &config.Config{}, Logger: discardLogger()}
	svc := &models.Service{Name: "mydb", Type: models.ServiceTypePostgres}

	if err := s.removeVolumes(context.Background(), svc); err != nil {
		t.Fatalf("removeVolumes() error = %v", err)
	}
	if _, ok := fake.Volumes["helvetia-data-mydb"]; ok {
		t.Fatalf("expected volume to be removed")
	}
}

func TestGarbageCollectImagesRespectsFeatureFlags(t *testing.T) {
	fake := dockerrt.NewFakeAdapter()
	fake.Images["dangling-image"] = time.Now().UTC().Add(-30 * 24 * time.Hour)
	fake.ListDanglingImagesFunc = func(ctx context.Context) ([]string, error) {
		return []string{"dangling-image"}, nil
	}

	s := &Scheduler{
		Adapter: fake,
		Config:  &config.Config{CleanupDanglingImgs: false, CleanupOldImages: false},
		Logger:  discardLogger(),
	}

	if err := s.garbageCollectImages(context.Background()); err != nil {
		t.Fatalf("garbageCollectImages() error = %v", err)
	}
	if _, ok := fake.Images["dangling-image"]; !ok {
		t.Error("garbageCollectImages() removed an image with both cleanup flags off, want it kept")
	}
}

func TestRemoveOldImagesKeepsLatestSuccessTag(t *testing.T) {
	database, err := db.Open(filepath.Join(t.TempDir(), "cleanup.db"), discardLogger())
	if err != nil {
		t.Fatalf("db.Open() error = %v", err)
	}
	defer database.Close()

	svc := &models.Service{ID: "svc-1", Name: "app", Type: models.ServiceTypeDocker, Status: models.ServiceStatusRunning}
	if err := database.InsertService(svc); err != nil {
		t.Fatalf("InsertService() error = %v", err)
	}
	dep := &models.Deployment{ID: "dep-1", ServiceID: svc.ID, Status: models.DeploymentStatusPending}
	if err := database.InsertDeployment(dep); err != nil {
		t.Fatalf("InsertDeployment() error = %v", err)
	}
	if err := database.CommitSuccess(dep.ID, "app:keep-me", "ok"); err != nil {
		t.Fatalf("CommitSuccess() error = %v", err)
	}

	fake := dockerrt.NewFakeAdapter()
	old := time.Now().UTC().Add(-30 * 24 * time.Hour)
	fake.Images["app:keep-me"] = old
	fake.Images["app:stale"] = old

	s := &Scheduler{
		Adapter: fake,
		DB:      database,
		Config:  &config.Config{CleanupOldImages: true, ImageRetentionDays: 7},
		Logger:  discardLogger(),
	}

	if err := s.removeOldImages(context.Background()); err != nil {
		t.Fatalf("removeOldImages() error = %v", err)
	}

	if _, ok := fake.Images["app:keep-me"]; !ok {
		t.Error("removeOldImages() removed the latest SUCCESS deployment's image tag, want it kept")
	}
	if _, ok := fake.Images["app:stale"]; ok {
		t.Error("removeOldImages() did not remove a stale, unreferenced image")
	}
}
