package dockerrt

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
)

func (c *Client) CreateContainer(ctx context.Context, spec ContainerSpec) (string, error) {
	internalConfig := &container.Config{
		Image:      spec.Image,
		Cmd:        spec.Cmd,
		Env:        spec.Env,
		WorkingDir: spec.WorkingDir,
		Labels:     spec.Labels,
		User:       spec.User,
	}

	mounts := make([]mount.Mount, 0, len(spec.Mounts))
	for _, m := range spec.Mounts {
		mounts = append(mounts, mount.Mount{
			Type:     mount.TypeBind,
			Source:   m.Source,
			Target:   m.Target,
			ReadOnly: m.ReadOnly,
		})
	}

	hostConfig := &container.HostConfig{
		Mounts: mounts,
	}
	if spec.RestartPolicy != "" {
		hostConfig.RestartPolicy = container.RestartPolicy{Name: container.RestartPolicyMode(spec.RestartPolicy)}
	}
	if spec.MemoryLimit > 0 {
		hostConfig.Resources.Memory = spec.MemoryLimit
	}
	if spec.NanoCPUs > 0 {
		hostConfig.Resources.NanoCPUs = spec.NanoCPUs
	}

	var netConfig *network.NetworkingConfig
	if spec.Network != "" {
		netConfig = &network.NetworkingConfig{
			EndpointsConfig: map[string]*network.EndpointSettings{
				spec.Network: {},
			},
		}
	}

	resp, err := c.sdk.ContainerCreate(ctx, internalConfig, hostConfig, netConfig, nil, spec.Name)
	if err != nil {
		return "", fmt.Errorf("failed to create container %q: %w", spec.Name, err)
	}

	c.logger.Info("container created", "container_id", shortID(resp.ID), "name", spec.Name)
	return resp.ID, nil
}

func (c *Client) StartContainer(ctx context.Context, id string) error {
	if err := c.sdk.ContainerStart(ctx, id, container.StartOptions{}); err != nil {
		return fmt.Errorf("failed to start container %q: %w", id, err)
	}
	return nil
}

func (c *Client) StopContainer(ctx context.Context, id string, graceTime time.Duration) error {
	seconds := int(graceTime.Seconds())
	err := c.sdk.ContainerStop(ctx, id, container.StopOptions{Timeout: &seconds})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to stop container %q: %w", id, err)
	}
	return nil
}

func (c *Client) RemoveContainer(ctx context.Context, id string, force bool) error {
	err := c.sdk.ContainerRemove(ctx, id, container.RemoveOptions{Force: force})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to remove container %q: %w", id, err)
	}
	return nil
}

func (c *Client) InspectContainer(ctx context.Context, id string) (*ContainerInfo, error) {
	inspect, err := c.sdk.ContainerInspect(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect container %q: %w", id, err)
	}

	state := "unknown"
	if inspect.State != nil {
		switch {
		case inspect.State.Running:
			state = "running"
		case inspect.State.Paused:
			state = "paused"
		case inspect.State.Restarting:
			state = "restarting"
		default:
			state = "exited"
		}
	}

	createdAt, _ := time.Parse(time.RFC3339Nano, inspect.Created)

	return &ContainerInfo{
		ID:        inspect.ID,
		Names:     []string{inspect.Name},
		Image:     inspect.Config.Image,
		State:     state,
		Labels:    inspect.Config.Labels,
		CreatedAt: createdAt,
	}, nil
}

func (c *Client) ListContainers(ctx context.Context, filter ContainerFilter) ([]ContainerInfo, error) {
	args := filters.NewArgs()
	for k, v := range filter.Labels {
		args.Add("label", fmt.Sprintf("%s=%s", k, v))
	}

	listed, err := c.sdk.ContainerList(ctx, container.ListOptions{All: filter.All, Filters: args})
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}

	infos := make([]ContainerInfo, 0, len(listed))
	for _, item := range listed {
		infos = append(infos, ContainerInfo{
			ID:        item.ID,
			Names:     item.Names,
			Image:     item.Image,
			State:     item.State,
			Labels:    item.Labels,
			CreatedAt: time.Unix(item.Created, 0),
		})
	}
	return infos, nil
}

func (c *Client) ContainerLogs(ctx context.Context, id string, w io.Writer) error {
	logs, err := c.sdk.ContainerLogs(ctx, id, container.LogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		return fmt.Errorf("failed to read logs for container %q: %w", id, err)
	}
	defer logs.Close()

	if _, err := stdcopy.StdCopy(w, w, logs); err != nil {
		return fmt.Errorf("failed to demultiplex logs for container %q: %w", id, err)
	}
	return nil
}

func (c *Client) WaitContainer(ctx context.Context, id string) (int64, error) {
	statusCh, errCh := c.sdk.ContainerWait(ctx, id, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		if err != nil {
			return 0, fmt.Errorf("error waiting for container %q: %w", id, err)
		}
		return 0, nil
	case status := <-statusCh:
		return status.StatusCode, nil
	}
}

func (c *Client) ExecInContainer(ctx context.Context, id string, cmd []string) (*ExecResult, error) {
	created, err := c.sdk.ContainerExecCreate(ctx, id, container.ExecOptions{
		Cmd:          cmd,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create exec in container %q: %w", id, err)
	}

	attached, err := c.sdk.ContainerExecAttach(ctx, created.ID, container.ExecAttachOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to attach exec in container %q: %w", id, err)
	}
	defer attached.Close()

	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, attached.Reader); err != nil {
		return nil, fmt.Errorf("failed to demultiplex exec output in container %q: %w", id, err)
	}

	inspect, err := c.sdk.ContainerExecInspect(ctx, created.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect exec in container %q: %w", id, err)
	}

	return &ExecResult{
		ExitCode: int64(inspect.ExitCode),
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
	}, nil
}

func isNotFound(err error) bool {
	return client.IsErrNotFound(err)
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
