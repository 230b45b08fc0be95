package dockerrt

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
)

func (c *Client) PullImage(ctx context.Context, ref string, authToken string) error {
	opts := image.PullOptions{}
	if authToken != "" {
		opts.RegistryAuth = authToken
	}

	stream, err := c.sdk.ImagePull(ctx, ref, opts)
	if err != nil {
		return fmt.Errorf("failed to initiate image pull for %q: %w", ref, err)
	}
	defer stream.Close()

	// The pull is not complete until the stream is fully drained; the
	// adapter's callers only need the final success/failure, so progress
	// lines are discarded here rather than surfaced as Events.
	if _, err := io.Copy(io.Discard, stream); err != nil {
		return fmt.Errorf("failed to stream image pull response for %q: %w", ref, err)
	}

	c.logger.Info("image pulled", "ref", ref)
	return nil
}

func (c *Client) RemoveImage(ctx context.Context, ref string, force bool) error {
	_, err := c.sdk.ImageRemove(ctx, ref, image.RemoveOptions{Force: force, PruneChildren: true})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to remove image %q: %w", ref, err)
	}
	return nil
}

func (c *Client) ListDanglingImages(ctx context.Context) ([]string, error) {
	args := filters.NewArgs(filters.Arg("dangling", "true"))
	summaries, err := c.sdk.ImageList(ctx, image.ListOptions{Filters: args})
	if err != nil {
		return nil, fmt.Errorf("failed to list dangling images: %w", err)
	}

	ids := make([]string, 0, len(summaries))
	for _, s := range summaries {
		ids = append(ids, s.ID)
	}
	return ids, nil
}

// ListImagesOlderThan returns a reference for every image created before
// cutoff: its first repo tag when tagged, or its image ID when dangling.
// Tags are returned (rather than IDs) so callers can cross-reference them
// directly against database image-tag columns without a separate
// ID-to-tag lookup.
func (c *Client) ListImagesOlderThan(ctx context.Context, cutoff time.Time) ([]string, error) {
	summaries, err := c.sdk.ImageList(ctx, image.ListOptions{All: false})
	if err != nil {
		return nil, fmt.Errorf("failed to list images: %w", err)
	}

	var refs []string
	for _, s := range summaries {
		if !time.Unix(s.Created, 0).Before(cutoff) {
			continue
		}
		if len(s.RepoTags) > 0 && s.RepoTags[0] != "<none>:<none>" {
			refs = append(refs, s.RepoTags[0])
		} else {
			refs = append(refs, s.ID)
		}
	}
	return refs, nil
}
