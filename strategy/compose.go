package strategy

import (
	"context"
	"fmt"

	"github.com/helvetia-cloud/deploy-worker/dockerfile"
	"github.com/helvetia-cloud/deploy-worker/models"
	"github.com/helvetia-cloud/deploy-worker/util"
)

// ComposeStrategy runs `compose up -d --build --remove-orphans` inside the
// builder container against a detected compose file plus a generated
// override that attaches routing labels to the main service. Because the
// override itself assigns the routing labels, the orchestrator's SWAP
// step is skipped for compose deployments (Result.IsCompose).
type ComposeStrategy struct{}

func (s *ComposeStrategy) CanHandle(t models.ServiceType) bool {
	return t == models.ServiceTypeCompose
}

var composeFileCandidates = []string{"compose.yaml", "compose.yml", "docker-compose.yml", "docker-compose.yaml"}

func composeFileName(job models.Job) string {
	if job.ComposeFile != "" {
		return job.ComposeFile
	}
	return composeFileCandidates[0]
}

func (s *ComposeStrategy) Deploy(ctx context.Context, job models.Job, deps Deps) (Result, error) {
	projectName := composeProjectName(job)
	imageTag := fmt.Sprintf("compose:%s", job.ServiceName)

	sanitizedUsername := util.Sanitize(job.Username)
	identifier := dockerfile.TraefikIdentifier(sanitizedUsername, job.ProjectName, job.EnvironmentName, job.ServiceName)
	override := dockerfile.ComposeOverride{
		MainService:       job.MainService,
		Identifier:        identifier,
		ServiceID:         job.ServiceID,
		ServiceType:       string(job.Type),
		ServiceName:       job.ServiceName,
		TargetPort:        job.Port,
		ProjectNet:        projectName + "_default",
		PlatformDomain:    deps.Config.PlatformDomain,
		CustomDomain:      job.CustomDomain,
		ProjectName:       job.ProjectName,
		EnvironmentName:   job.EnvironmentName,
		SanitizedUsername: sanitizedUsername,
		EnvVars:           job.EnvVars,
		Volumes:           job.Volumes,
	}.Render()

	script := composeBuildScript(job, composeFileName(job), override, projectName)

	exitCode, log, err := runBuilderScript(ctx, deps, job.ServiceName, script)
	if err != nil {
		return Result{BuildLog: log, IsCompose: true}, err
	}
	if exitCode != 0 {
		return Result{BuildLog: log, IsCompose: true}, fmt.Errorf("BUILD_FAILED: compose builder exited with code %d", exitCode)
	}

	return Result{ImageTag: imageTag, BuildLog: log, Success: true, IsCompose: true}, nil
}

func composeProjectName(job models.Job) string {
	segments := []string{job.ProjectName, job.EnvironmentName, job.ServiceName}
	out := ""
	for _, s := range segments {
		if s == "" {
			continue
		}
		if out != "" {
			out += "-"
		}
		out += s
	}
	if out == "" {
		return job.ServiceName
	}
	return out
}

func composeBuildScript(job models.Job, composeFile, override, projectName string) string {
	// Without a user-specified file, pick the first candidate present in
	// the clone; composeFile (the first candidate) stays the default.
	detect := ""
	if job.ComposeFile == "" {
		candidates := ""
		for _, c := range composeFileCandidates {
			candidates += " " + shellQuote(c)
		}
		detect = "for f in" + candidates + "; do\n  if [ -f \"$f\" ]; then COMPOSE_FILE=\"$f\"; break; fi\ndone\n"
	}
	return fmt.Sprintf(`set -e
if [ ! -d /app ] || [ -z "$(ls -A /app 2>/dev/null)" ]; then
  git clone --depth 1 --branch %s %s /app
fi
cd /app
COMPOSE_FILE=%s
%scat > /tmp/docker-compose.override.yml <<'HELVETIA_COMPOSE_OVERRIDE_EOF'
%s
HELVETIA_COMPOSE_OVERRIDE_EOF
docker compose -f "$COMPOSE_FILE" -f /tmp/docker-compose.override.yml -p %s up -d --build --remove-orphans
`, shellQuote(job.Branch), shellQuote(job.RepoURL), shellQuote(composeFile), detect, override, shellQuote(projectName))
}
