package strategy

import (
	"context"
	"fmt"

	"github.com/helvetia-cloud/deploy-worker/dockerfile"
	"github.com/helvetia-cloud/deploy-worker/models"
	"github.com/helvetia-cloud/deploy-worker/validate"
)

// DockerStrategy handles the DOCKER service type: a repoUrl sniff decides
// between pulling a pre-built image and running a real build inside a
// builder container.
type DockerStrategy struct {
	prebuilt PrebuiltImageStrategy
}

func (s *DockerStrategy) CanHandle(t models.ServiceType) bool {
	return t == models.ServiceTypeDocker
}

func (s *DockerStrategy) Deploy(ctx context.Context, job models.Job, deps Deps) (Result, error) {
	if !isRepoReference(job.RepoURL) {
		return s.prebuilt.Deploy(ctx, job, deps)
	}

	imageTag := fmt.Sprintf("helvetia/%s:latest", job.ServiceName)

	fragment := generateDockerfile(job)
	if r := validate.Dockerfile(fragment); !r.Valid {
		return Result{}, fmt.Errorf("VALIDATION_DOCKERFILE: generated fragment rejected: %v", r.Errors)
	}

	script := buildScript(job, fragment, imageTag)

	exitCode, log, err := runBuilderScript(ctx, deps, job.ServiceName, script)
	if err != nil {
		return Result{BuildLog: log}, err
	}
	if exitCode != 0 {
		return Result{BuildLog: log}, fmt.Errorf("BUILD_FAILED: builder exited with code %d", exitCode)
	}

	return Result{ImageTag: imageTag, BuildLog: log, Success: true}, nil
}

// generateDockerfile synthesizes a Dockerfile fragment for a repo that
// lacks its own, using the job's env vars and start command.
func generateDockerfile(job models.Job) string {
	b := dockerfile.NewBuilder("node:20-alpine").
		WorkDir("/app").
		Args(job.EnvVars).
		Copy(".", ".").
		Envs(job.EnvVars)

	if job.BuildCommand != "" {
		b.Run(job.BuildCommand)
	}

	port := job.Port
	if port == 0 {
		port = dockerfile.DefaultPort(false)
	}
	b.Expose(port)

	startCommand := job.StartCommand
	if startCommand == "" {
		startCommand = "npm start"
	}
	b.Cmd("sh", "-c", startCommand)

	return b.String()
}

// buildScript assembles the shell script run inside the builder
// container: clone into the container's own filesystem, write the
// Dockerfile if the repo doesn't have one, then build via the mounted
// socket. All interpolated values are shell-quoted.
func buildScript(job models.Job, fallbackDockerfile, imageTag string) string {
	return fmt.Sprintf(`set -e
if [ ! -d /app ] || [ -z "$(ls -A /app 2>/dev/null)" ]; then
  git clone --depth 1 --branch %s %s /app
fi
cd /app
if [ ! -f Dockerfile ]; then
  cat > Dockerfile <<'HELVETIA_DOCKERFILE_EOF'
%s
HELVETIA_DOCKERFILE_EOF
fi
docker build -t %s .
`, shellQuote(job.Branch), shellQuote(job.RepoURL), fallbackDockerfile, shellQuote(imageTag))
}
