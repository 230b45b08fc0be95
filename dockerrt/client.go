package dockerrt

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	dockerSDKclient "github.com/docker/docker/client"
)

// Client wraps the Docker SDK client with a logger and implements Adapter.
// The SDK client manages the connection to the daemon internally and is
// safe to share across goroutines.
type Client struct {
	sdk    *dockerSDKclient.Client
	logger *slog.Logger
}

var _ Adapter = (*Client)(nil)

// NewClient connects to the daemon using $DOCKER_HOST (or the default
// Unix socket when unset) and pings it to fail fast if the daemon is
// unreachable.
func NewClient(logger *slog.Logger) (*Client, error) {
	sdk, err := dockerSDKclient.NewClientWithOpts(
		dockerSDKclient.FromEnv,
		dockerSDKclient.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create docker sdk client: %w", err)
	}

	c := &Client{sdk: sdk, logger: logger}

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := sdk.Ping(pingCtx); err != nil {
		return nil, fmt.Errorf("docker daemon unreachable: %w", err)
	}

	logger.Info("docker client connected", "host", sdk.DaemonHost())
	return c, nil
}

// Close releases the underlying SDK client connection.
func (c *Client) Close() error {
	return c.sdk.Close()
}
