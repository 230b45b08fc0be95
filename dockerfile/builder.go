// Package dockerfile generates Dockerfile fragments and Compose override
// files from a job's parameters, in a fixed instruction order that the
// validate package always accepts.
package dockerfile

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Builder assembles a Dockerfile fragment instruction by instruction. The
// zero value is not usable; use NewBuilder.
type Builder struct {
	lines []string
}

// NewBuilder starts a fragment with a FROM instruction.
func NewBuilder(baseImage string) *Builder {
	b := &Builder{}
	b.lines = append(b.lines, "FROM "+baseImage)
	return b
}

func (b *Builder) raw(format string, args ...any) *Builder {
	b.lines = append(b.lines, fmt.Sprintf(format, args...))
	return b
}

func (b *Builder) WorkDir(path string) *Builder { return b.raw("WORKDIR %s", path) }

// Args declares one ARG instruction per env-var key, sorted for
// deterministic output. Must be called before Copy.
func (b *Builder) Args(envVars map[string]string) *Builder {
	for _, name := range sortedKeys(envVars) {
		b.raw("ARG %s", name)
	}
	return b
}

func (b *Builder) Copy(src, dst string) *Builder { return b.raw("COPY %s %s", src, dst) }

// Envs re-declares each env-var key as an ENV instruction, quoting values
// so embedded spaces or shell metacharacters never break the line.
func (b *Builder) Envs(envVars map[string]string) *Builder {
	for _, name := range sortedKeys(envVars) {
		b.raw("ENV %s=%s", name, quoteValue(envVars[name]))
	}
	return b
}

func (b *Builder) Run(cmd string) *Builder { return b.raw("RUN %s", cmd) }

func (b *Builder) Expose(port int) *Builder { return b.raw("EXPOSE %d", port) }

// Cmd emits an exec-form CMD wrapping the given command and arguments.
func (b *Builder) Cmd(parts ...string) *Builder {
	quoted := make([]string, len(parts))
	for i, p := range parts {
		quoted[i] = strconv.Quote(p)
	}
	return b.raw("CMD [%s]", strings.Join(quoted, ", "))
}

// String renders the accumulated instructions as a Dockerfile.
func (b *Builder) String() string {
	return strings.Join(b.lines, "\n") + "\n"
}

// DefaultPort returns the conventional EXPOSE port for a deployment kind:
// 80 for static sites, 3000 for everything else.
func DefaultPort(static bool) int {
	if static {
		return 80
	}
	return 3000
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// quoteValue escapes a value for safe inclusion in an unquoted ENV line by
// wrapping it in single quotes and escaping any embedded single quote,
// mirroring a shell's own quoting rules so injected env values can never
// break out of the instruction.
func quoteValue(v string) string {
	escaped := strings.ReplaceAll(v, `'`, `'\''`)
	return "'" + escaped + "'"
}
