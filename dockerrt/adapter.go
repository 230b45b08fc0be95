// Package dockerrt is the Container Runtime Adapter: a typed wrapper over
// the container daemon used by every other component that needs to touch
// containers, images, networks, or volumes. Nothing outside this package
// imports the Docker SDK directly — if the daemon interaction strategy
// ever changes, only this package changes.
package dockerrt

import (
	"context"
	"io"
	"time"
)

// EventKind classifies one line of a streaming daemon response (image
// pull, image build) so a single consumer loop can dispatch on it instead
// of layering callbacks on a promise.
type EventKind string

const (
	EventStatus   EventKind = "status"
	EventProgress EventKind = "progress"
	EventError    EventKind = "error"
	EventStream   EventKind = "stream"
)

// Event is one classified entry of a streaming daemon response. No Adapter
// method returns Events: PullImage drains and discards the pull stream,
// and builder output is read with ContainerLogs after the container exits.
type Event struct {
	Kind     EventKind
	ID       string
	Status   string
	Progress string
	Error    string
	Stream   string
}

// Mount describes a single bind mount passed to CreateContainer. The
// Secure-mounts invariant (never bind-mount a host path under /Users,
// /home, /root, or /etc into a builder) is enforced by callers that
// construct builder specs, not by the adapter itself — the adapter
// faithfully creates whatever mount list it is given.
type Mount struct {
	Source   string
	Target   string
	ReadOnly bool
}

// PortBinding names a container port and a host port. Client.CreateContainer
// does not publish ContainerSpec.Ports; Traefik-routed containers are
// reached over the Docker network instead.
type PortBinding struct {
	ContainerPort string
	HostPort      string
}

// ContainerSpec is the full set of parameters needed to create a
// container, covering both builder containers and long-running service
// containers.
type ContainerSpec struct {
	Name          string
	Image         string
	Cmd           []string
	Env           []string
	WorkingDir    string
	Labels        map[string]string
	Mounts        []Mount
	Ports         []PortBinding
	Network       string
	RestartPolicy string // "", "always", "unless-stopped", "on-failure"
	MemoryLimit   int64  // bytes, 0 = unlimited
	NanoCPUs      int64  // 0 = unlimited
	User          string
}

// ContainerInfo is the adapter's view of a container returned by
// ListContainers/InspectContainer.
type ContainerInfo struct {
	ID        string
	Names     []string
	Image     string
	State     string // "running", "exited", "created", ...
	Labels    map[string]string
	CreatedAt time.Time
}

// ContainerFilter narrows ListContainers. A nil/empty Labels map matches
// everything; label filters are an intersection.
type ContainerFilter struct {
	Labels map[string]string
	All    bool // include stopped containers, not just running
}

// ExecResult is the outcome of ExecInContainer.
type ExecResult struct {
	ExitCode int64
	Stdout   string
	Stderr   string
}

// Adapter is the full Container Runtime Adapter contract (§4.1). Every
// method that streams daemon output fully drains it before returning, so
// the returned error (if any) reflects the final outcome, not an
// in-progress state.
type Adapter interface {
	CreateContainer(ctx context.Context, spec ContainerSpec) (id string, err error)
	StartContainer(ctx context.Context, id string) error
	// StopContainer sends SIGTERM then SIGKILL after graceTime elapses.
	StopContainer(ctx context.Context, id string, graceTime time.Duration) error
	// RemoveContainer succeeds even when the target is missing: a 404 from
	// the daemon is treated as success, since the desired end state
	// (container gone) is already satisfied.
	RemoveContainer(ctx context.Context, id string, force bool) error
	InspectContainer(ctx context.Context, id string) (*ContainerInfo, error)
	// ListContainers returns both running and stopped containers when
	// filter.All is true.
	ListContainers(ctx context.Context, filter ContainerFilter) ([]ContainerInfo, error)
	// ContainerLogs streams the combined, demultiplexed stdout+stderr of a
	// container into w.
	ContainerLogs(ctx context.Context, id string, w io.Writer) error
	// WaitContainer blocks until the container is no longer running and
	// returns its exit code.
	WaitContainer(ctx context.Context, id string) (exitCode int64, err error)
	// ExecInContainer runs cmd inside a running container and returns its
	// stdout, stderr (separately) and exit code.
	ExecInContainer(ctx context.Context, id string, cmd []string) (*ExecResult, error)

	PullImage(ctx context.Context, ref string, authToken string) error
	// RemoveImage treats 404 as success, same as RemoveContainer.
	RemoveImage(ctx context.Context, ref string, force bool) error
	ListDanglingImages(ctx context.Context) ([]string, error)
	// ListImagesOlderThan returns a reference (repo tag, or image ID when
	// untagged) for every image created before cutoff, for retention-window
	// image GC.
	ListImagesOlderThan(ctx context.Context, cutoff time.Time) ([]string, error)

	EnsureNetwork(ctx context.Context, name string) error

	CreateVolume(ctx context.Context, name string, labels map[string]string) error
	// RemoveVolume treats 404 as success.
	RemoveVolume(ctx context.Context, name string, force bool) error
	ListVolumesByLabel(ctx context.Context, key, value string) ([]string, error)

	Close() error
}
