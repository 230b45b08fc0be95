package strategy

import (
	"context"
	"fmt"

	"github.com/helvetia-cloud/deploy-worker/dockerfile"
	"github.com/helvetia-cloud/deploy-worker/models"
	"github.com/helvetia-cloud/deploy-worker/validate"
)

const staticServerConfig = `server {
  listen 80;
  root /app/%s;
  location / {
    try_files $uri $uri/ /index.html;
  }
}
`

// StaticStrategy builds a two-stage Dockerfile: a build stage runs the
// user-supplied build command, and a runtime stage serves the resulting
// directory with a minimal static HTTP server and SPA fallback routing.
type StaticStrategy struct{}

func (s *StaticStrategy) CanHandle(t models.ServiceType) bool {
	return t == models.ServiceTypeStatic
}

func (s *StaticStrategy) Deploy(ctx context.Context, job models.Job, deps Deps) (Result, error) {
	imageTag := fmt.Sprintf("helvetia/%s:latest", job.ServiceName)

	outputDir := job.StaticOutputDir
	if outputDir == "" {
		outputDir = "dist"
	}

	fragment := generateStaticDockerfile(job, outputDir)
	if r := validate.Dockerfile(fragment); !r.Valid {
		return Result{}, fmt.Errorf("VALIDATION_DOCKERFILE: generated fragment rejected: %v", r.Errors)
	}

	serverConfig := fmt.Sprintf(staticServerConfig, outputDir)

	script := staticBuildScript(job, fragment, serverConfig, imageTag)

	exitCode, log, err := runBuilderScript(ctx, deps, job.ServiceName, script)
	if err != nil {
		return Result{BuildLog: log}, err
	}
	if exitCode != 0 {
		return Result{BuildLog: log}, fmt.Errorf("BUILD_FAILED: builder exited with code %d", exitCode)
	}

	return Result{ImageTag: imageTag, BuildLog: log, Success: true}, nil
}

func generateStaticDockerfile(job models.Job, outputDir string) string {
	builder := dockerfile.NewBuilder("node:20-alpine").
		WorkDir("/app").
		Args(job.EnvVars).
		Copy(".", ".").
		Envs(job.EnvVars)

	buildCommand := job.BuildCommand
	if buildCommand != "" {
		builder.Run(buildCommand)
	}

	runtime := dockerfile.NewBuilder("nginx:alpine").
		Copy("--from=0 /app/"+outputDir, "/app/"+outputDir).
		Copy("server.conf", "/etc/nginx/conf.d/default.conf").
		Expose(dockerfile.DefaultPort(true)).
		Cmd("nginx", "-g", "daemon off;")

	return builder.String() + "\n" + runtime.String()
}

func staticBuildScript(job models.Job, fragment, serverConfig, imageTag string) string {
	return fmt.Sprintf(`set -e
if [ ! -d /app ] || [ -z "$(ls -A /app 2>/dev/null)" ]; then
  git clone --depth 1 --branch %s %s /app
fi
cd /app
cat > Dockerfile <<'HELVETIA_DOCKERFILE_EOF'
%s
HELVETIA_DOCKERFILE_EOF
cat > server.conf <<'HELVETIA_SERVER_CONF_EOF'
%s
HELVETIA_SERVER_CONF_EOF
docker build -t %s .
`, shellQuote(job.Branch), shellQuote(job.RepoURL), fragment, serverConfig, shellQuote(imageTag))
}
