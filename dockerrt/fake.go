package dockerrt

import (
	"context"
	"io"
	"sync"
	"time"
)

// FakeAdapter is a function-field-backed stand-in for Client, following the
// MockRuntime shape: every method delegates to an overridable field when
// set, and falls back to an in-memory default otherwise so tests that don't
// care about a given call can leave it nil.
type FakeAdapter struct {
	mu sync.Mutex

	Containers map[string]*ContainerInfo
	Images     map[string]time.Time
	Networks   map[string]bool
	Volumes    map[string]map[string]string

	CreateContainerFunc   func(ctx context.Context, spec ContainerSpec) (string, error)
	StartContainerFunc    func(ctx context.Context, id string) error
	StopContainerFunc     func(ctx context.Context, id string, graceTime time.Duration) error
	RemoveContainerFunc   func(ctx context.Context, id string, force bool) error
	InspectContainerFunc  func(ctx context.Context, id string) (*ContainerInfo, error)
	ListContainersFunc    func(ctx context.Context, filter ContainerFilter) ([]ContainerInfo, error)
	ContainerLogsFunc     func(ctx context.Context, id string, w io.Writer) error
	WaitContainerFunc     func(ctx context.Context, id string) (int64, error)
	ExecInContainerFunc   func(ctx context.Context, id string, cmd []string) (*ExecResult, error)
	PullImageFunc         func(ctx context.Context, ref string, authToken string) error
	RemoveImageFunc       func(ctx context.Context, ref string, force bool) error
	ListDanglingImagesFunc func(ctx context.Context) ([]string, error)
	ListImagesOlderThanFn func(ctx context.Context, cutoff time.Time) ([]string, error)
	EnsureNetworkFunc     func(ctx context.Context, name string) error
	CreateVolumeFunc      func(ctx context.Context, name string, labels map[string]string) error
	RemoveVolumeFunc      func(ctx context.Context, name string, force bool) error
	ListVolumesFunc       func(ctx context.Context, key, value string) ([]string, error)
	CloseFunc             func() error
}

var _ Adapter = (*FakeAdapter)(nil)

// NewFakeAdapter returns a FakeAdapter with its in-memory maps initialized,
// ready for use without any function-field overrides.
func NewFakeAdapter() *FakeAdapter {
	return &FakeAdapter{
		Containers: make(map[string]*ContainerInfo),
		Images:     make(map[string]time.Time),
		Networks:   make(map[string]bool),
		Volumes:    make(map[string]map[string]string),
	}
}

func (f *FakeAdapter) CreateContainer(ctx context.Context, spec ContainerSpec) (string, error) {
	if f.CreateContainerFunc != nil {
		return f.CreateContainerFunc(ctx, spec)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	id := spec.Name
	f.Containers[id] = &ContainerInfo{
		ID:        id,
		Names:     []string{spec.Name},
		Image:     spec.Image,
		State:     "created",
		Labels:    spec.Labels,
		CreatedAt: time.Unix(0, 0),
	}
	return id, nil
}

func (f *FakeAdapter) StartContainer(ctx context.Context, id string) error {
	if f.StartContainerFunc != nil {
		return f.StartContainerFunc(ctx, id)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if info, ok := f.Containers[id]; ok {
		info.State = "running"
	}
	return nil
}

func (f *FakeAdapter) StopContainer(ctx context.Context, id string, graceTime time.Duration) error {
	if f.StopContainerFunc != nil {
		return f.StopContainerFunc(ctx, id, graceTime)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if info, ok := f.Containers[id]; ok {
		info.State = "exited"
	}
	return nil
}

func (f *FakeAdapter) RemoveContainer(ctx context.Context, id string, force bool) error {
	if f.RemoveContainerFunc != nil {
		return f.RemoveContainerFunc(ctx, id, force)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.Containers, id)
	return nil
}

func (f *FakeAdapter) InspectContainer(ctx context.Context, id string) (*ContainerInfo, error) {
	if f.InspectContainerFunc != nil {
		return f.InspectContainerFunc(ctx, id)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if info, ok := f.Containers[id]; ok {
		return info, nil
	}
	return nil, &notFoundError{id: id}
}

func (f *FakeAdapter) ListContainers(ctx context.Context, filter ContainerFilter) ([]ContainerInfo, error) {
	if f.ListContainersFunc != nil {
		return f.ListContainersFunc(ctx, filter)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var infos []ContainerInfo
	for _, info := range f.Containers {
		if !filter.All && info.State != "running" {
			continue
		}
		if labelsMatch(info.Labels, filter.Labels) {
			infos = append(infos, *info)
		}
	}
	return infos, nil
}

func (f *FakeAdapter) ContainerLogs(ctx context.Context, id string, w io.Writer) error {
	if f.ContainerLogsFunc != nil {
		return f.ContainerLogsFunc(ctx, id, w)
	}
	return nil
}

func (f *FakeAdapter) WaitContainer(ctx context.Context, id string) (int64, error) {
	if f.WaitContainerFunc != nil {
		return f.WaitContainerFunc(ctx, id)
	}
	return 0, nil
}

func (f *FakeAdapter) ExecInContainer(ctx context.Context, id string, cmd []string) (*ExecResult, error) {
	if f.ExecInContainerFunc != nil {
		return f.ExecInContainerFunc(ctx, id, cmd)
	}
	return &ExecResult{ExitCode: 0}, nil
}

func (f *FakeAdapter) PullImage(ctx context.Context, ref string, authToken string) error {
	if f.PullImageFunc != nil {
		return f.PullImageFunc(ctx, ref, authToken)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Images[ref] = time.Unix(0, 0)
	return nil
}

func (f *FakeAdapter) RemoveImage(ctx context.Context, ref string, force bool) error {
	if f.RemoveImageFunc != nil {
		return f.RemoveImageFunc(ctx, ref, force)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.Images, ref)
	return nil
}

func (f *FakeAdapter) ListDanglingImages(ctx context.Context) ([]string, error) {
	if f.ListDanglingImagesFunc != nil {
		return f.ListDanglingImagesFunc(ctx)
	}
	return nil, nil
}

func (f *FakeAdapter) ListImagesOlderThan(ctx context.Context, cutoff time.Time) ([]string, error) {
	if f.ListImagesOlderThanFn != nil {
		return f.ListImagesOlderThanFn(ctx, cutoff)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for ref, createdAt := range f.Images {
		if createdAt.Before(cutoff) {
			ids = append(ids, ref)
		}
	}
	return ids, nil
}

func (f *FakeAdapter) EnsureNetwork(ctx context.Context, name string) error {
	if f.EnsureNetworkFunc != nil {
		return f.EnsureNetworkFunc(ctx, name)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Networks[name] = true
	return nil
}

func (f *FakeAdapter) CreateVolume(ctx context.Context, name string, labels map[string]string) error {
	if f.CreateVolumeFunc != nil {
		return f.CreateVolumeFunc(ctx, name, labels)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Volumes[name] = labels
	return nil
}

func (f *FakeAdapter) RemoveVolume(ctx context.Context, name string, force bool) error {
	if f.RemoveVolumeFunc != nil {
		return f.RemoveVolumeFunc(ctx, name, force)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.Volumes, name)
	return nil
}

func (f *FakeAdapter) ListVolumesByLabel(ctx context.Context, key, value string) ([]string, error) {
	if f.ListVolumesFunc != nil {
		return f.ListVolumesFunc(ctx, key, value)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var names []string
	for name, labels := range f.Volumes {
		if labels[key] == value {
			names = append(names, name)
		}
	}
	return names, nil
}

func (f *FakeAdapter) Close() error {
	if f.CloseFunc != nil {
		return f.CloseFunc()
	}
	return nil
}

func labelsMatch(have, want map[string]string) bool {
	for k, v := range want {
		if have[k] != v {
			return false
		}
	}
	return true
}

type notFoundError struct{ id string }

func (e *notFoundError) Error() string { return "container not found: " + e.id }
