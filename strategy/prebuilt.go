package strategy

import (
	"context"
	"fmt"
	"strings"

	"github.com/helvetia-cloud/deploy-worker/models"
)

// PrebuiltImageStrategy is the pull-only branch of DockerStrategy, factored
// out as its own object so the builder-container path is only ever
// entered when a real build is needed.
type PrebuiltImageStrategy struct{}

func (s *PrebuiltImageStrategy) CanHandle(t models.ServiceType) bool {
	return t == models.ServiceTypeDocker
}

// isRepoReference reports whether repoURL looks like a source repository
// (http(s), git@, ssh://) as opposed to a container image reference.
func isRepoReference(repoURL string) bool {
	return strings.HasPrefix(repoURL, "http://") ||
		strings.HasPrefix(repoURL, "https://") ||
		strings.HasPrefix(repoURL, "git@") ||
		strings.HasPrefix(repoURL, "ssh://")
}

func (s *PrebuiltImageStrategy) Deploy(ctx context.Context, job models.Job, deps Deps) (Result, error) {
	ref := job.RepoURL
	tag := "latest"
	if job.Branch != "" && job.Branch != "main" {
		tag = job.Branch
	}

	imageRef := ref
	if !strings.Contains(lastSegment(ref), ":") {
		imageRef = fmt.Sprintf("%s:%s", ref, tag)
	}

	authToken := ""
	if strings.Contains(ref, "ghcr.io") {
		authToken = job.EnvVars["GHCR_TOKEN"]
	}

	if err := deps.Adapter.PullImage(ctx, imageRef, authToken); err != nil {
		return Result{}, fmt.Errorf("failed to pull pre-built image %q: %w", imageRef, err)
	}

	if deps.Emit != nil {
		deps.Emit(fmt.Sprintf("pulled pre-built image %s\n", imageRef))
	}

	return Result{ImageTag: imageRef, Success: true}, nil
}

func lastSegment(ref string) string {
	idx := strings.LastIndex(ref, "/")
	if idx < 0 {
		return ref
	}
	return ref[idx+1:]
}
