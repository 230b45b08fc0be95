package dockerrt

import (
	"context"
	"testing"
	"time"
)

func TestFakeAdapterCreateStartListLifecycle(t *testing.T) {
	fake := NewFakeAdapter()
	ctx := context.Background()

	id, err := fake.CreateContainer(ctx, ContainerSpec{
		Name:   "web-abc123",
		Image:  "nginx:latest",
		Labels: map[string]string{"helvetia.serviceId": "svc-1"},
	})
	if err != nil {
		t.Fatalf("CreateContainer() error = %v", err)
	}

	if err := fake.StartContainer(ctx, id); err != nil {
		t.Fatalf("StartContainer() error = %v", err)
	}

	containers, err := fake.ListContainers(ctx, ContainerFilter{Labels: map[string]string{"helvetia.serviceId": "svc-1"}})
	if err != nil {
		t.Fatalf("ListContainers() error = %v", err)
	}
	if len(containers) != 1 || containers[0].State != "running" {
		t.Fatalf("ListContainers() = %+v, want one running container", containers)
	}

	if err := fake.StopContainer(ctx, id, 10*time.Second); err != nil {
		t.Fatalf("StopContainer() error = %v", err)
	}
	running, err := fake.ListContainers(ctx, ContainerFilter{})
	if err != nil {
		t.Fatalf("ListContainers() error = %v", err)
	}
	if len(running) != 0 {
		t.Fatalf("ListContainers() after stop = %+v, want none running", running)
	}

	if err := fake.RemoveContainer(ctx, id, true); err != nil {
		t.Fatalf("RemoveContainer() error = %v", err)
	}
	if _, err := fake.InspectContainer(ctx, id); err == nil {
		t.Fatal("InspectContainer() after removal expected error, got nil")
	}
}

func TestFakeAdapterListContainersFiltersByLabel(t *testing.T) {
	fake := NewFakeAdapter()
	ctx := context.Background()

	id1, _ := fake.CreateContainer(ctx, ContainerSpec{Name: "a", Labels: map[string]string{"helvetia.serviceId": "svc-1"}})
	id2, _ := fake.CreateContainer(ctx, ContainerSpec{Name: "b", Labels: map[string]string{"helvetia.serviceId": "svc-2"}})
	fake.StartContainer(ctx, id1)
	fake.StartContainer(ctx, id2)

	matches, err := fake.ListContainers(ctx, ContainerFilter{Labels: map[string]string{"helvetia.serviceId": "svc-1"}})
	if err != nil {
		t.Fatalf("ListContainers() error = %v", err)
	}
	if len(matches) != 1 || matches[0].ID != id1 {
		t.Fatalf("ListContainers() = %+v, want only %q", matches, id1)
	}
}

func TestFakeAdapterImageLifecycle(t *testing.T) {
	fake := NewFakeAdapter()
	ctx := context.Background()

	if err := fake.PullImage(ctx, "postgres:16-alpine", ""); err != nil {
		t.Fatalf("PullImage() error = %v", err)
	}

	old, err := fake.ListImagesOlderThan(ctx, time.Now())
	if err != nil {
		t.Fatalf("ListImagesOlderThan() error = %v", err)
	}
	if len(old) != 1 || old[0] != "postgres:16-alpine" {
		t.Fatalf("ListImagesOlderThan() = %v, want [postgres:16-alpine]", old)
	}

	if err := fake.RemoveImage(ctx, "postgres:16-alpine", true); err != nil {
		t.Fatalf("RemoveImage() error = %v", err)
	}
	old, err = fake.ListImagesOlderThan(ctx, time.Now())
	if err != nil {
		t.Fatalf("ListImagesOlderThan() error = %v", err)
	}
	if len(old) != 0 {
		t.Fatalf("ListImagesOlderThan() after removal = %v, want none", old)
	}
}

func TestFakeAdapterVolumeLifecycle(t *testing.T) {
	fake := NewFakeAdapter()
	ctx := context.Background()

	if err := fake.CreateVolume(ctx, "helvetia-data-mydb", map[string]string{"helvetia.serviceId": "svc-1"}); err != nil {
		t.Fatalf("CreateVolume() error = %v", err)
	}

	names, err := fake.ListVolumesByLabel(ctx, "helvetia.serviceId", "svc-1")
	if err != nil {
		t.Fatalf("ListVolumesByLabel() error = %v", err)
	}
	if len(names) != 1 || names[0] != "helvetia-data-mydb" {
		t.Fatalf("ListVolumesByLabel() = %v, want [helvetia-data-mydb]", names)
	}

	if err := fake.RemoveVolume(ctx, "helvetia-data-mydb", true); err != nil {
		t.Fatalf("RemoveVolume() error = %v", err)
	}
	names, err = fake.ListVolumesByLabel(ctx, "helvetia.serviceId", "svc-1")
	if err != nil {
		t.Fatalf("ListVolumesByLabel() error = %v", err)
	}
	if len(names) != 0 {
		t.Fatalf("ListVolumesByLabel() after removal = %v, want none", names)
	}
}

func TestFakeAdapterFunctionOverrideTakesPrecedence(t *testing.T) {
	fake := NewFakeAdapter()
	called := false
	fake.CreateContainerFunc = func(ctx context.Context, spec ContainerSpec) (string, error) {
		called = true
		return "overridden-id", nil
	}

	id, err := fake.CreateContainer(context.Background(), ContainerSpec{Name: "whatever"})
	if err != nil {
		t.Fatalf("CreateContainer() error = %v", err)
	}
	if !called || id != "overridden-id" {
		t.Fatalf("CreateContainer() = %q, called = %v, want override to take effect", id, called)
	}
}
