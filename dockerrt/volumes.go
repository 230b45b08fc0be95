package dockerrt

import (
	"context"
	"fmt"

	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/volume"
)

// CreateVolume creates a named volume with the given labels; a volume with
// the same name already existing is left untouched, matching the daemon's
// own idempotent VolumeCreate behavior.
func (c *Client) CreateVolume(ctx context.Context, name string, labels map[string]string) error {
	_, err := c.sdk.VolumeCreate(ctx, volume.CreateOptions{Name: name, Labels: labels})
	if err != nil {
		return fmt.Errorf("failed to create volume %q: %w", name, err)
	}
	return nil
}

func (c *Client) RemoveVolume(ctx context.Context, name string, force bool) error {
	err := c.sdk.VolumeRemove(ctx, name, force)
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to remove volume %q: %w", name, err)
	}
	return nil
}

func (c *Client) ListVolumesByLabel(ctx context.Context, key, value string) ([]string, error) {
	args := filters.NewArgs(filters.Arg("label", fmt.Sprintf("%s=%s", key, value)))
	listed, err := c.sdk.VolumeList(ctx, volume.ListOptions{Filters: args})
	if err != nil {
		return nil, fmt.Errorf("failed to list volumes: %w", err)
	}

	names := make([]string, 0, len(listed.Volumes))
	for _, v := range listed.Volumes {
		names = append(names, v.Name)
	}
	return names, nil
}
