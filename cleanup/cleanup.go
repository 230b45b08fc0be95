// Package cleanup is the Cleanup Scheduler: a cron-driven job that reaps
// soft-deleted services (Phase A) and garbage-collects unused images
// (Phase B).
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/robfig/cron/v3"

	"github.com/helvetia-cloud/deploy-worker/config"
	"github.com/helvetia-cloud/deploy-worker/db"
	"github.com/helvetia-cloud/deploy-worker/dockerrt"
	"github.com/helvetia-cloud/deploy-worker/models"
	"github.com/helvetia-cloud/deploy-worker/queue"
)

const (
	serviceIDLabel      = "helvetia.serviceId"
	composeProjectLabel = "com.docker.compose.project"
	tombstoneRetention  = 30 * 24 * time.Hour
)

// Scheduler drives Phase A and Phase B on a cron schedule. Per §4.2/§6, the
// worker consumes cleanup work off the service-cleanup queue rather than
// running it inline off cron; Queue, when set, makes the cron tick a
// daily-cleanup trigger push instead of a direct RunOnce call, so the
// Queue Runtime's own consumer is what actually executes Phase A/B.
type Scheduler struct {
	Adapter dockerrt.Adapter
	DB      *db.Database
	Config  *config.Config
	Logger  *slog.Logger
	Queue   *queue.Runtime

	cron *cron.Cron
}

// Start registers the cron job and begins running it in the background.
// Callers must call Stop to end the scheduler cleanly. With Queue set, the
// cron tick enqueues a CleanupTrigger onto the service-cleanup queue rather
// than running cleanup inline; without it (e.g. in tests), it falls back to
// calling RunOnce directly.
func (s *Scheduler) Start(ctx context.Context) error {
	s.cron = cron.New()
	_, err := s.cron.AddFunc(s.Config.CleanupCronSpec, func() {
		if s.Queue == nil {
			s.RunOnce(ctx)
			return
		}
		trigger := models.CleanupTrigger{TriggeredAt: time.Now().UTC()}
		if err := s.Queue.Enqueue(ctx, queue.ServiceCleanupKey, trigger); err != nil {
			s.Logger.Error("failed to enqueue daily-cleanup trigger", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to parse cleanup cron spec %q: %w", s.Config.CleanupCronSpec, err)
	}
	s.cron.Start()
	return nil
}

// Stop ends the cron schedule; any run already in progress finishes.
func (s *Scheduler) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

// RunOnce executes Phase A then Phase B immediately, independent of the
// cron schedule — used by main's service-cleanup queue consumer and by
// Start's fallback when no Queue is set.
func (s *Scheduler) RunOnce(ctx context.Context) {
	deletedCount, err := s.reapTombstones(ctx)
	if err != nil {
		s.Logger.Error("tombstone reaping finished with errors", "error", err)
	}
	s.Logger.Info("tombstone reaping complete", "deleted_count", deletedCount)

	if err := s.garbageCollectImages(ctx); err != nil {
		s.Logger.Error("image garbage collection finished with errors", "error", err)
	}
}

// reapTombstones implements Phase A.
func (s *Scheduler) reapTombstones(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-tombstoneRetention)

	services, err := s.DB.ListTombstonedBefore(cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to list tombstoned services: %w", err)
	}

	var errs *multierror.Error
	deletedCount := 0

	for _, svc := range services {
		if err := s.reapService(ctx, svc); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("service %q: %w", svc.ID, err))
			continue
		}
		deletedCount++
	}

	return deletedCount, errs.ErrorOrNil()
}

func (s *Scheduler) reapService(ctx context.Context, svc *models.Service) error {
	var errs *multierror.Error

	containers, err := s.Adapter.ListContainers(ctx, dockerrt.ContainerFilter{
		Labels: map[string]string{serviceIDLabel: svc.ID},
		All:    true,
	})
	if err != nil {
		errs = multierror.Append(errs, fmt.Errorf("list containers: %w", err))
	}

	if svc.Type == models.ServiceTypeCompose {
		composeContainers, err := s.Adapter.ListContainers(ctx, dockerrt.ContainerFilter{
			Labels: map[string]string{composeProjectLabel: svc.Name},
			All:    true,
		})
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("list compose containers: %w", err))
		}
		containers = append(containers, composeContainers...)
	}

	for _, c := range containers {
		if err := s.Adapter.StopContainer(ctx, c.ID, 5*time.Second); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("stop container %s: %w", c.ID, err))
		}
		if err := s.Adapter.RemoveContainer(ctx, c.ID, true); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("remove container %s: %w", c.ID, err))
		}
	}

	if err := s.removeVolumes(ctx, svc); err != nil {
		errs = multierror.Append(errs, err)
	}

	tags, err := s.DB.DistinctImageTagsForService(svc.ID)
	if err != nil {
		errs = multierror.Append(errs, fmt.Errorf("list image tags: %w", err))
	}
	for _, tag := range tags {
		if err := s.Adapter.RemoveImage(ctx, tag, true); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("remove image %s: %w", tag, err))
		}
	}

	if _, err := s.DB.DeleteDeploymentsForService(svc.ID); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("delete deployments: %w", err))
	}
	if err := s.DB.DeleteService(svc.ID); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("delete service: %w", err))
	}

	return errs.ErrorOrNil()
}

func (s *Scheduler) removeVolumes(ctx context.Context, svc *models.Service) error {
	var errs *multierror.Error

	if svc.Type == models.ServiceTypeCompose {
		volumes, err := s.Adapter.ListVolumesByLabel(ctx, composeProjectLabel, svc.Name)
		if err != nil {
			return fmt.Errorf("list compose volumes: %w", err)
		}
		for _, v := range volumes {
			if err := s.Adapter.RemoveVolume(ctx, v, true); err != nil {
				errs = multierror.Append(errs, fmt.Errorf("remove volume %s: %w", v, err))
			}
		}
		return errs.ErrorOrNil()
	}

	if models.DatabaseServiceTypes[svc.Type] {
		volumeName := fmt.Sprintf("helvetia-data-%s", svc.Name)
		if err := s.Adapter.RemoveVolume(ctx, volumeName, true); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("remove volume %s: %w", volumeName, err))
		}
	}

	return errs.ErrorOrNil()
}

// garbageCollectImages implements Phase B.
func (s *Scheduler) garbageCollectImages(ctx context.Context) error {
	var errs *multierror.Error

	if s.Config.CleanupDanglingImgs {
		dangling, err := s.Adapter.ListDanglingImages(ctx)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("list dangling images: %w", err))
		}
		for _, id := range dangling {
			if err := s.Adapter.RemoveImage(ctx, id, true); err != nil {
				errs = multierror.Append(errs, fmt.Errorf("remove dangling image %s: %w", id, err))
			}
		}
	}

	if s.Config.CleanupOldImages {
		if err := s.removeOldImages(ctx); err != nil {
			errs = multierror.Append(errs, err)
		}
	}

	return errs.ErrorOrNil()
}

func (s *Scheduler) removeOldImages(ctx context.Context) error {
	var errs *multierror.Error

	cutoff := time.Now().UTC().AddDate(0, 0, -s.Config.ImageRetentionDays)
	old, err := s.Adapter.ListImagesOlderThan(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("list old images: %w", err)
	}
	if len(old) == 0 {
		return nil
	}

	running, err := s.Adapter.ListContainers(ctx, dockerrt.ContainerFilter{All: false})
	if err != nil {
		errs = multierror.Append(errs, fmt.Errorf("list running containers: %w", err))
	}
	inUse := make(map[string]bool, len(running))
	for _, c := range running {
		inUse[c.Image] = true
	}

	latestSuccess, err := s.DB.ListActiveLatestSuccessImageTags()
	if err != nil {
		errs = multierror.Append(errs, fmt.Errorf("list active latest-success image tags: %w", err))
	}
	keepTag := make(map[string]bool, len(latestSuccess))
	for _, tag := range latestSuccess {
		keepTag[tag] = true
	}

	for _, ref := range old {
		if inUse[ref] || keepTag[ref] {
			continue
		}
		if err := s.Adapter.RemoveImage(ctx, ref, true); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("remove image %s: %w", ref, err))
		}
	}

	return errs.ErrorOrNil()
}
