// Package orchestrator implements the Deployment Orchestrator: the
// per-job state machine that validates inputs, snapshots the current
// container set, drives a Build Strategy, swaps in the replacement
// container, and commits the final status under the Distributed Status
// Lock — rolling back to the snapshot on any failure.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/helvetia-cloud/deploy-worker/config"
	"github.com/helvetia-cloud/deploy-worker/db"
	"github.com/helvetia-cloud/deploy-worker/dockerfile"
	"github.com/helvetia-cloud/deploy-worker/dockerrt"
	"github.com/helvetia-cloud/deploy-worker/lock"
	"github.com/helvetia-cloud/deploy-worker/logbus"
	"github.com/helvetia-cloud/deploy-worker/models"
	"github.com/helvetia-cloud/deploy-worker/secrets"
	"github.com/helvetia-cloud/deploy-worker/strategy"
	"github.com/helvetia-cloud/deploy-worker/util"
	"github.com/helvetia-cloud/deploy-worker/validate"
)

const serviceIDLabel = "helvetia.serviceId"

// Orchestrator holds every dependency the state machine needs, threaded
// through as struct fields so Process's signature stays a single
// (ctx, job) call.
type Orchestrator struct {
	Adapter  dockerrt.Adapter
	DB       *db.Database
	Bus      *logbus.Bus
	Lock     *lock.Lock
	Registry *strategy.Registry
	Config   *config.Config
	Logger   *slog.Logger
}

// Process runs the full state machine for one job. The returned error, if
// any, should be surfaced to the queue so its own retry/backoff policy
// applies; RECOVER's own errors are logged but never returned here.
func (o *Orchestrator) Process(ctx context.Context, job models.Job) error {
	logger := o.Logger.With("deployment_id", job.DeploymentID, "service_id", job.ServiceID)

	if err := o.validate(job); err != nil {
		logger.Warn("validation failed", "error", err)
		return err
	}

	snapshot, err := o.snapshot(ctx, job)
	if err != nil {
		return err
	}

	var accumulated strings.Builder
	scrubber := secrets.NewScrubber(envValues(job.EnvVars))
	emit := func(chunk string) {
		scrubbed := scrubber.Scrub(chunk)
		accumulated.WriteString(scrubbed)
		o.Bus.Publish(ctx, job.DeploymentID, scrubbed)
	}

	result, buildErr := o.build(ctx, job, emit)
	if buildErr != nil {
		o.recover(ctx, job, snapshot, nil, buildErr, accumulated.String(), logger)
		return &BuildError{Cause: buildErr}
	}

	var newContainerID string
	if !result.IsCompose {
		newContainerID, err = o.swap(ctx, job, result, logger)
		if err != nil {
			o.recover(ctx, job, snapshot, &newContainerID, err, accumulated.String(), logger)
			return &InfraError{Op: "swap", Cause: err, Transient: true}
		}
	}

	if err := o.commit(ctx, job, result, accumulated.String()); err != nil {
		o.recover(ctx, job, snapshot, &newContainerID, err, accumulated.String(), logger)
		return &InfraError{Op: "commit", Cause: err, Transient: true}
	}

	return nil
}

func envValues(envVars map[string]string) []string {
	values := make([]string, 0, len(envVars))
	for _, v := range envVars {
		values = append(values, v)
	}
	return values
}

// validate runs the Env Validator; the Dockerfile Validator runs later,
// against each strategy's synthesized fragment, inside the strategy
// itself (so the fragment being checked matches the one actually sent to
// the builder).
func (o *Orchestrator) validate(job models.Job) error {
	r := validate.Env(job.EnvVars)
	if !r.Valid {
		return &ValidationError{Code: "VALIDATION_ENV", Errs: r.Errors}
	}
	return nil
}

// snapshot records the Service's currently running containers as the
// rollback set, and marks the Deployment BUILDING.
func (o *Orchestrator) snapshot(ctx context.Context, job models.Job) ([]dockerrt.ContainerInfo, error) {
	if err := o.DB.UpdateStatus(job.DeploymentID, models.DeploymentStatusBuilding); err != nil {
		return nil, &InfraError{Op: "snapshot:update-deployment-status", Cause: err, Transient: true}
	}

	containers, err := o.Adapter.ListContainers(ctx, dockerrt.ContainerFilter{
		Labels: map[string]string{serviceIDLabel: job.ServiceID},
		All:    false,
	})
	if err != nil {
		return nil, &InfraError{Op: "snapshot:list-containers", Cause: err, Transient: true}
	}

	return containers, nil
}

func (o *Orchestrator) build(ctx context.Context, job models.Job, emit func(string)) (strategy.Result, error) {
	strat, err := o.Registry.Get(job.Type)
	if err != nil {
		return strategy.Result{}, err
	}

	deps := strategy.Deps{
		Adapter: o.Adapter,
		Config:  o.Config,
		Logger:  o.Logger,
		Emit:    emit,
	}

	return strat.Deploy(ctx, job, deps)
}

// swap creates the replacement container, starts it, and only then stops
// and removes every other container bearing the service's label — the
// new-before-old ordering invariant.
func (o *Orchestrator) swap(ctx context.Context, job models.Job, result strategy.Result, logger *slog.Logger) (string, error) {
	suffix := util.RandomSuffix(6)
	name := fmt.Sprintf("%s-%s", job.ServiceName, suffix)

	sanitizedUsername := util.Sanitize(job.Username)
	identifier := dockerfile.TraefikIdentifier(sanitizedUsername, job.ProjectName, job.EnvironmentName, job.ServiceName)
	labels := dockerfile.TraefikLabels(dockerfile.TraefikLabelInput{
		Identifier:        identifier,
		ServiceID:         job.ServiceID,
		ServiceType:       string(job.Type),
		TargetPort:        job.Port,
		ServiceName:       job.ServiceName,
		PlatformDomain:    o.Config.PlatformDomain,
		CustomDomain:      job.CustomDomain,
		ProjectName:       job.ProjectName,
		EnvironmentName:   job.EnvironmentName,
		SanitizedUsername: sanitizedUsername,
	})

	envList := make([]string, 0, len(job.EnvVars))
	for k, v := range job.EnvVars {
		envList = append(envList, fmt.Sprintf("%s=%s", k, v))
	}

	var mounts []dockerrt.Mount
	if models.DatabaseServiceTypes[job.Type] {
		mounts = []dockerrt.Mount{{
			Source: fmt.Sprintf("helvetia-data-%s", job.ServiceName),
			Target: strategy.DataVolumePath(job.Type),
		}}
	}

	spec := dockerrt.ContainerSpec{
		Name:          name,
		Image:         result.ImageTag,
		Env:           envList,
		Labels:        labels,
		Mounts:        mounts,
		Network:       "helvetia-net",
		RestartPolicy: "always",
		MemoryLimit:   o.Config.ContainerMemoryLimitBytes,
		NanoCPUs:      o.Config.ContainerCPUNanoCPUs,
	}

	id, err := o.Adapter.CreateContainer(ctx, spec)
	if err != nil {
		return "", fmt.Errorf("failed to create replacement container: %w", err)
	}

	if err := o.Adapter.StartContainer(ctx, id); err != nil {
		return id, fmt.Errorf("failed to start replacement container: %w", err)
	}

	existing, err := o.Adapter.ListContainers(ctx, dockerrt.ContainerFilter{
		Labels: map[string]string{serviceIDLabel: job.ServiceID},
		All:    true,
	})
	if err != nil {
		logger.Warn("failed to list containers for old-container reap", "error", err)
		return id, nil
	}

	for _, c := range existing {
		if containsSuffix(c.Names, suffix) {
			continue
		}
		if stopErr := o.Adapter.StopContainer(ctx, c.ID, 5*time.Second); stopErr != nil {
			logger.Warn("failed to stop old container", "container_id", c.ID, "error", stopErr)
		}
		if rmErr := o.Adapter.RemoveContainer(ctx, c.ID, true); rmErr != nil {
			logger.Warn("failed to remove old container", "container_id", c.ID, "error", rmErr)
		}
	}

	return id, nil
}

func containsSuffix(names []string, suffix string) bool {
	for _, n := range names {
		if strings.Contains(n, suffix) {
			return true
		}
	}
	return false
}

// commit persists the final log blob and image tag, then flips the
// Service status to RUNNING under the Distributed Status Lock.
func (o *Orchestrator) commit(ctx context.Context, job models.Job, result strategy.Result, buildLog string) error {
	finalLog := logbus.Normalize(buildLog, o.Config.MaxLogSizeChars)

	if err := o.DB.CommitSuccess(job.DeploymentID, result.ImageTag, finalLog); err != nil {
		return fmt.Errorf("failed to commit deployment success: %w", err)
	}

	err := o.Lock.WithLock(ctx, job.ServiceID, o.Config.StatusLockTTL, func(ctx context.Context) error {
		return o.DB.UpdateServiceStatus(job.ServiceID, models.ServiceStatusRunning)
	})
	if err != nil {
		return &LockError{Cause: err}
	}
	return nil
}

// recover undoes a partially created replacement container, attempts to
// restart every snapshot container that is no longer running, and writes
// a FAILED deployment with an error-enriched log blob. Every error inside
// RECOVER is logged and swallowed — it must never mask the original
// failure that triggered it.
func (o *Orchestrator) recover(ctx context.Context, job models.Job, snapshot []dockerrt.ContainerInfo, newContainerID *string, cause error, buildLog string, logger *slog.Logger) {
	recoverCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if newContainerID != nil && *newContainerID != "" {
		if err := o.Adapter.StopContainer(recoverCtx, *newContainerID, 5*time.Second); err != nil {
			logger.Warn("recover: failed to stop replacement container", "error", err)
		}
		if err := o.Adapter.RemoveContainer(recoverCtx, *newContainerID, true); err != nil {
			logger.Warn("recover: failed to remove replacement container", "error", err)
		}
	}

	restartedAny := false
	for _, c := range snapshot {
		info, err := o.Adapter.InspectContainer(recoverCtx, c.ID)
		if err != nil {
			logger.Warn("recover: failed to inspect rollback container", "container_id", c.ID, "error", err)
			continue
		}
		if info.State == "running" {
			restartedAny = true
			continue
		}
		if err := o.Adapter.StartContainer(recoverCtx, c.ID); err != nil {
			logger.Warn("recover: failed to restart rollback container", "container_id", c.ID, "error", err)
			continue
		}
		restartedAny = true
	}

	failureLog := logbus.Normalize(logbus.FailureHeader(cause, buildLog), o.Config.MaxLogSizeChars)
	if err := o.DB.CommitFailure(job.DeploymentID, failureLog); err != nil {
		logger.Error("recover: failed to commit deployment failure", "error", err)
	}

	finalStatus := models.ServiceStatusFailed
	if restartedAny {
		finalStatus = models.ServiceStatusRunning
	}

	err := o.Lock.WithLock(recoverCtx, job.ServiceID, o.Config.StatusLockTTL, func(ctx context.Context) error {
		return o.DB.UpdateServiceStatus(job.ServiceID, finalStatus)
	})
	if err != nil {
		logger.Error("recover: failed to commit service status", "error", err)
	}
}
