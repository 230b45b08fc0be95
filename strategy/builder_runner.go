package strategy

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/helvetia-cloud/deploy-worker/config"
	"github.com/helvetia-cloud/deploy-worker/dockerrt"
	"github.com/helvetia-cloud/deploy-worker/util"
)

const builderImage = "docker:27-cli"

const dockerSocketPath = "/var/run/docker.sock"

// runBuilderScript starts an ephemeral builder container from a thin
// official Docker CLI image, runs script as its command, and always
// stops+removes it afterward. Its combined output is read once the
// container exits and passed to deps.Emit in a single call; output is not
// streamed while the build runs. The builder's only bound resource is the daemon socket — or,
// under a socket proxy, nothing from the host filesystem at all; source
// code is cloned and built entirely inside the container's own ephemeral
// filesystem and never touches the host.
func runBuilderScript(ctx context.Context, deps Deps, name, script string, extraEnv ...string) (exitCode int64, combinedLog string, err error) {
	spec := dockerrt.ContainerSpec{
		Name:       "builder-" + name + "-" + util.RandomSuffix(6),
		Image:      builderImage,
		Cmd:        []string{"sh", "-c", script},
		Env:        extraEnv,
		WorkingDir: "/app",
	}

	if deps.Config.UsesSocketProxy() {
		spec.Env = append(spec.Env, "DOCKER_HOST="+deps.Config.DockerHost)
	} else {
		spec.Mounts = []dockerrt.Mount{
			{Source: dockerSocketPath, Target: dockerSocketPath, ReadOnly: false},
		}
	}

	id, err := deps.Adapter.CreateContainer(ctx, spec)
	if err != nil {
		return 0, "", fmt.Errorf("failed to create builder container: %w", err)
	}

	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if stopErr := deps.Adapter.StopContainer(stopCtx, id, 5*time.Second); stopErr != nil {
			deps.Logger.Warn("failed to stop builder container", "container_id", id, "error", stopErr)
		}
		if rmErr := deps.Adapter.RemoveContainer(stopCtx, id, true); rmErr != nil {
			deps.Logger.Warn("failed to remove builder container", "container_id", id, "error", rmErr)
		}
	}()

	if err := deps.Adapter.StartContainer(ctx, id); err != nil {
		return 0, "", fmt.Errorf("failed to start builder container: %w", err)
	}

	exitCode, waitErr := deps.Adapter.WaitContainer(ctx, id)

	var buf bytes.Buffer
	if logErr := deps.Adapter.ContainerLogs(ctx, id, &buf); logErr != nil {
		deps.Logger.Warn("failed to fetch builder logs", "container_id", id, "error", logErr)
	}

	output := buf.String()
	if deps.Emit != nil {
		deps.Emit(output)
	}

	if waitErr != nil {
		return exitCode, output, fmt.Errorf("builder container wait failed: %w", waitErr)
	}
	return exitCode, output, nil
}

// shellQuote wraps a value in single quotes, escaping embedded single
// quotes, so it is always safe to splice into a generated shell script
// regardless of its contents.
func shellQuote(v string) string {
	out := make([]byte, 0, len(v)+2)
	out = append(out, '\'')
	for i := 0; i < len(v); i++ {
		if v[i] == '\'' {
			out = append(out, '\'', '\\', '\'', '\'')
			continue
		}
		out = append(out, v[i])
	}
	out = append(out, '\'')
	return string(out)
}
