package dockerrt

import (
	"context"
	"fmt"

	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/network"
)

// EnsureNetwork creates the named bridge network if it does not already
// exist. Idempotent: a pre-existing network is left untouched.
func (c *Client) EnsureNetwork(ctx context.Context, name string) error {
	args := filters.NewArgs(filters.Arg("name", name))
	existing, err := c.sdk.NetworkList(ctx, network.ListOptions{Filters: args})
	if err != nil {
		return fmt.Errorf("failed to list networks: %w", err)
	}

	for _, n := range existing {
		if n.Name == name {
			return nil
		}
	}

	if _, err := c.sdk.NetworkCreate(ctx, name, network.CreateOptions{Driver: "bridge"}); err != nil {
		return fmt.Errorf("failed to create network %q: %w", name, err)
	}

	c.logger.Info("network created", "name", name)
	return nil
}
