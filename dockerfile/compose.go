package dockerfile

import (
	"fmt"
	"strings"
)

// TraefikIdentifier builds the router/service key used by both the SWAP
// step's container labels and the Compose override: sanitized username,
// project, environment, and service name joined with hyphens, with any
// absent segment elided rather than leaving a stray separator.
func TraefikIdentifier(sanitizedUsername, projectName, environmentName, serviceName string) string {
	segments := make([]string, 0, 4)
	for _, s := range []string{sanitizedUsername, projectName, environmentName, serviceName} {
		if s != "" {
			segments = append(segments, s)
		}
	}
	return strings.Join(segments, "-")
}

// TraefikLabelInput is the full set of identity and routing fields needed
// to build a service container's label set, per the container label
// contract: one helvetia.* pair for platform bookkeeping, the rest
// instructing Traefik how to route to it.
type TraefikLabelInput struct {
	Identifier        string
	ServiceID         string
	ServiceType       string
	TargetPort        int
	ServiceName       string
	PlatformDomain    string
	CustomDomain      string
	ProjectName       string
	EnvironmentName   string
	SanitizedUsername string
}

// TraefikLabels returns the container label set that routes HTTP traffic
// for identifier to the target port over the platform network. Traefik
// watches the Docker socket directly, so these labels are the entire
// routing config; no file reload is ever needed. The rule ORs together
// every host alternative the service answers to: the platform-domain host,
// the localhost dev host, the optional custom domain, the optional
// project-qualified host, and the optional full user/project/env-qualified
// long form — any alternative whose inputs are missing is simply elided.
func TraefikLabels(in TraefikLabelInput) map[string]string {
	rule := strings.Join(traefikHostClauses(in), " || ")

	return map[string]string{
		"helvetia.serviceId":              in.ServiceID,
		"helvetia.type":                   in.ServiceType,
		"traefik.enable":                  "true",
		"traefik.docker.network":          "helvetia-net",
		fmt.Sprintf("traefik.http.routers.%s.rule", in.Identifier):                      rule,
		fmt.Sprintf("traefik.http.routers.%s.entrypoints", in.Identifier):               "web",
		fmt.Sprintf("traefik.http.services.%s.loadbalancer.server.port", in.Identifier): fmt.Sprintf("%d", in.TargetPort),
	}
}

func traefikHostClauses(in TraefikLabelInput) []string {
	var clauses []string
	add := func(host string) {
		clauses = append(clauses, fmt.Sprintf("Host(`%s`)", host))
	}

	if in.PlatformDomain != "" {
		add(fmt.Sprintf("%s.%s", in.ServiceName, in.PlatformDomain))
	}
	add(fmt.Sprintf("%s.localhost", in.ServiceName))
	if in.CustomDomain != "" {
		add(in.CustomDomain)
	}
	if in.ProjectName != "" && in.PlatformDomain != "" {
		add(fmt.Sprintf("%s-%s.%s", in.ProjectName, in.ServiceName, in.PlatformDomain))
	}
	if in.SanitizedUsername != "" && in.ProjectName != "" && in.EnvironmentName != "" && in.PlatformDomain != "" {
		add(fmt.Sprintf("%s.%s.%s.%s.%s", in.SanitizedUsername, in.ProjectName, in.EnvironmentName, in.ServiceName, in.PlatformDomain))
	}
	return clauses
}

// ComposeOverride renders a docker-compose override file that attaches
// routing labels to mainService, joins it to the platform network and the
// project's own private network, and injects env vars and volumes.
type ComposeOverride struct {
	MainService       string
	Identifier        string
	ServiceID         string
	ServiceType       string
	ServiceName       string
	TargetPort        int
	ProjectNet        string
	PlatformDomain    string
	CustomDomain      string
	ProjectName       string
	EnvironmentName   string
	SanitizedUsername string
	EnvVars           map[string]string
	Volumes           []string
}

func (o ComposeOverride) Render() string {
	var sb strings.Builder
	sb.WriteString("services:\n")
	fmt.Fprintf(&sb, "  %s:\n", o.MainService)

	labels := TraefikLabels(TraefikLabelInput{
		Identifier:        o.Identifier,
		ServiceID:         o.ServiceID,
		ServiceType:       o.ServiceType,
		TargetPort:        o.TargetPort,
		ServiceName:       o.ServiceName,
		PlatformDomain:    o.PlatformDomain,
		CustomDomain:      o.CustomDomain,
		ProjectName:       o.ProjectName,
		EnvironmentName:   o.EnvironmentName,
		SanitizedUsername: o.SanitizedUsername,
	})
	sb.WriteString("    labels:\n")
	for _, k := range sortedKeys(labels) {
		fmt.Fprintf(&sb, "      %s: %q\n", k, labels[k])
	}

	sb.WriteString("    networks:\n")
	sb.WriteString("      - helvetia-net\n")
	if o.ProjectNet != "" {
		fmt.Fprintf(&sb, "      - %s\n", o.ProjectNet)
	}

	if len(o.EnvVars) > 0 {
		sb.WriteString("    environment:\n")
		for _, k := range sortedKeys(o.EnvVars) {
			fmt.Fprintf(&sb, "      %s: %q\n", k, o.EnvVars[k])
		}
	}

	if len(o.Volumes) > 0 {
		sb.WriteString("    volumes:\n")
		for _, v := range o.Volumes {
			fmt.Fprintf(&sb, "      - %s\n", v)
		}
	}

	sb.WriteString("networks:\n")
	sb.WriteString("  helvetia-net:\n")
	sb.WriteString("    external: true\n")
	if o.ProjectNet != "" {
		fmt.Fprintf(&sb, "  %s:\n", o.ProjectNet)
	}

	return sb.String()
}
