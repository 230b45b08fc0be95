// Package strategy implements one Build Strategy per service type: each
// owns Dockerfile generation, builder-container scripting, and image
// production for its kind of service.
package strategy

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/helvetia-cloud/deploy-worker/config"
	"github.com/helvetia-cloud/deploy-worker/dockerrt"
	"github.com/helvetia-cloud/deploy-worker/models"
)

// Result is the outcome of a strategy's Deploy call.
type Result struct {
	ImageTag string
	BuildLog string
	Success  bool

	// IsCompose signals that the strategy itself already attached routing
	// labels (the Compose override does this), so the orchestrator's SWAP
	// step must be skipped for this deployment.
	IsCompose bool
}

// Deps are the dependencies a strategy needs to run a build, threaded
// through explicitly rather than captured as package-level state.
type Deps struct {
	Adapter dockerrt.Adapter
	Config  *config.Config
	Logger  *slog.Logger

	// Emit is called with raw builder output; the orchestrator's Emit
	// passes each chunk through the Secret Scrubber, then to both the Log
	// Bus and its in-memory accumulator.
	Emit func(chunk string)
}

// Strategy is the shared contract every build strategy implements.
type Strategy interface {
	CanHandle(t models.ServiceType) bool
	Deploy(ctx context.Context, job models.Job, deps Deps) (Result, error)
}

// Registry holds one Strategy per ServiceType, generalizing the
// creator-map-plus-mutex pattern used for runtime dispatch elsewhere in
// the pack: a plain map guarded by a RWMutex, with Get failing loudly for
// anything outside the enumerated set.
type Registry struct {
	mu    sync.RWMutex
	byType map[models.ServiceType]Strategy
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byType: make(map[models.ServiceType]Strategy)}
}

// Register associates a strategy with one or more service types.
func (r *Registry) Register(strategy Strategy, types ...models.ServiceType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range types {
		r.byType[t] = strategy
	}
}

// Get returns the strategy registered for t, or an error if t is not one
// of the enumerated service types — satisfying the "Strategy
// completeness" property.
func (r *Registry) Get(t models.ServiceType) (Strategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	strategy, ok := r.byType[t]
	if !ok {
		return nil, fmt.Errorf("strategy: no strategy registered for service type %q", t)
	}
	return strategy, nil
}

// NewDefaultRegistry wires up the four registered built-in strategies
// against the full enumerated ServiceType set; pre-built image pulls are
// handled inside DockerStrategy.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()

	docker := &DockerStrategy{}
	r.Register(docker, models.ServiceTypeDocker)

	r.Register(&StaticStrategy{}, models.ServiceTypeStatic)
	r.Register(&ComposeStrategy{}, models.ServiceTypeCompose)

	db := &DatabaseStrategy{}
	for t := range models.DatabaseServiceTypes {
		r.Register(db, t)
	}

	return r
}
