// Package validate implements the static checks the Deployment
// Orchestrator runs before any container is created: env-var shape and
// Dockerfile fragment syntax.
package validate

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Result is the outcome of a validation pass. Errors are fatal; warnings
// are informational and never block a deployment.
type Result struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

func (r *Result) addError(format string, args ...any) {
	r.Valid = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *Result) addWarning(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

var envNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

var reservedEnvNames = map[string]bool{
	"PATH": true, "HOME": true, "USER": true, "SHELL": true, "TERM": true,
}

// Env validates a job's environment-variable map. Failing entries are
// reported as VALIDATION_ENV; reserved-name shadowing and oversized values
// are warnings only.
func Env(vars map[string]string) *Result {
	r := &Result{Valid: true}

	for name, value := range vars {
		if !envNamePattern.MatchString(name) {
			r.addError("VALIDATION_ENV: invalid environment variable name %q", name)
			continue
		}
		if strings.ContainsAny(value, "\n\r") {
			r.addError("VALIDATION_ENV: value for %q contains a newline or carriage return", name)
			continue
		}
		if reservedEnvNames[name] {
			r.addWarning("environment variable %q shadows a reserved OS variable", name)
		}
		if len(value) > 10_000 {
			r.addWarning("environment variable %q exceeds 10,000 characters", name)
		}
	}

	return r
}

var whitelistedInstructions = map[string]bool{
	"FROM": true, "RUN": true, "CMD": true, "LABEL": true, "EXPOSE": true,
	"ENV": true, "ADD": true, "COPY": true, "ENTRYPOINT": true, "VOLUME": true,
	"USER": true, "WORKDIR": true, "ARG": true, "ONBUILD": true,
	"STOPSIGNAL": true, "HEALTHCHECK": true, "SHELL": true,
}

// Dockerfile validates a generated Dockerfile fragment per §4.5:
// FROM-first, a whitelisted instruction set, argument presence, and
// type-specific argument shape for WORKDIR/ENV/EXPOSE.
func Dockerfile(content string) *Result {
	r := &Result{Valid: true}

	lines := strings.Split(content, "\n")
	sawFrom := false
	sawCmdOrEntrypoint := false
	firstInstructionSeen := false

	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		instruction, rest := splitInstruction(line)
		upper := strings.ToUpper(instruction)

		if !firstInstructionSeen {
			firstInstructionSeen = true
			if upper != "FROM" {
				r.addError("VALIDATION_DOCKERFILE: first instruction must be FROM, got %q", instruction)
			}
		}

		if !whitelistedInstructions[upper] {
			r.addError("VALIDATION_DOCKERFILE: unsupported instruction %q", instruction)
			continue
		}

		if upper != "FROM" && strings.TrimSpace(rest) == "" {
			r.addError("VALIDATION_DOCKERFILE: instruction %q requires at least one argument", instruction)
			continue
		}

		switch upper {
		case "FROM":
			sawFrom = true
			if strings.TrimSpace(rest) == "" {
				r.addError("VALIDATION_DOCKERFILE: FROM must name an image")
			}
		case "WORKDIR":
			if strings.TrimSpace(rest) == "" {
				r.addError("VALIDATION_DOCKERFILE: WORKDIR must name a path")
			}
		case "ENV":
			if !validEnvLine(rest) {
				r.addError("VALIDATION_DOCKERFILE: ENV line %q must be K=V or K V", rest)
			}
		case "EXPOSE":
			for _, port := range strings.Fields(rest) {
				portPart := strings.SplitN(port, "/", 2)[0]
				n, err := strconv.Atoi(portPart)
				if err != nil || n < 1 || n > 65535 {
					r.addError("VALIDATION_DOCKERFILE: EXPOSE port %q out of range [1,65535]", port)
				}
			}
		case "CMD", "ENTRYPOINT":
			sawCmdOrEntrypoint = true
			if isShellForm(rest) && containsShellOperator(rest) {
				r.addWarning("%s uses shell form containing &&, ||, or |", upper)
			}
		}
	}

	if !firstInstructionSeen {
		r.addError("VALIDATION_DOCKERFILE: Dockerfile is empty")
	} else if !sawFrom {
		r.addError("VALIDATION_DOCKERFILE: no FROM instruction found")
	}

	if firstInstructionSeen && !sawCmdOrEntrypoint {
		r.addWarning("no CMD or ENTRYPOINT instruction found")
	}

	return r
}

func splitInstruction(line string) (instruction, rest string) {
	idx := strings.IndexAny(line, " \t")
	if idx < 0 {
		return line, ""
	}
	return line[:idx], strings.TrimSpace(line[idx+1:])
}

func validEnvLine(rest string) bool {
	if rest == "" {
		return false
	}
	if idx := strings.Index(rest, "="); idx > 0 {
		return true
	}
	fields := strings.Fields(rest)
	return len(fields) >= 2
}

func isShellForm(rest string) bool {
	return !strings.HasPrefix(strings.TrimSpace(rest), "[")
}

func containsShellOperator(rest string) bool {
	return strings.Contains(rest, "&&") || strings.Contains(rest, "||") || strings.Contains(rest, "|")
}
