package dockerfile

import (
	"strings"
	"testing"

	"github.com/helvetia-cloud/deploy-worker/validate"
)

func TestBuilderProducesValidatorAcceptedFragment(t *testing.T) {
	content := NewBuilder("node:20-alpine").
		WorkDir("/app").
		Args(map[string]string{"PORT": "3000"}).
		Copy(".", ".").
		Envs(map[string]string{"PORT": "3000"}).
		Expose(DefaultPort(false)).
		Cmd("node", "server.js").
		String()

	r := validate.Dockerfile(content)
	if !r.Valid {
		t.Fatalf("generated fragment failed validation: %v\n---\n%s", r.Errors, content)
	}
}

func TestBuilderArgsPrecedeCopy(t *testing.T) {
	content := NewBuilder("alpine").
		Args(map[string]string{"FOO": "bar"}).
		Copy(".", ".").
		String()

	argIdx := strings.Index(content, "ARG FOO")
	copyIdx := strings.Index(content, "COPY")
	if argIdx < 0 || copyIdx < 0 || argIdx > copyIdx {
		t.Fatalf("expected ARG before COPY, got:\n%s", content)
	}
}

func TestTraefikIdentifierElidesAbsentSegments(t *testing.T) {
	got := TraefikIdentifier("alice", "", "prod", "api")
	want := "alice-prod-api"
	if got != want {
		t.Fatalf("TraefikIdentifier() = %q, want %q", got, want)
	}
}

func TestComposeOverrideRendersMainService(t *testing.T) {
	o := ComposeOverride{
		MainService:    "web",
		Identifier:     "alice-prod-api",
		ServiceID:      "svc-1",
		ServiceType:    "COMPOSE",
		ServiceName:    "api",
		TargetPort:     3000,
		ProjectNet:     "alice-prod-api_default",
		PlatformDomain: "helvetia.cloud",
		EnvVars:        map[string]string{"FOO": "bar"},
	}

	out := o.Render()
	if !strings.Contains(out, "web:") {
		t.Fatalf("expected override to configure the main service, got:\n%s", out)
	}
	if !strings.Contains(out, "traefik.enable") {
		t.Fatalf("expected traefik labels in override, got:\n%s", out)
	}
}

func TestTraefikLabelsIncludesTypeAndEntrypoints(t *testing.T) {
	labels := TraefikLabels(TraefikLabelInput{
		Identifier:  "alice-prod-api",
		ServiceID:   "svc-1",
		ServiceType: "DOCKER",
		TargetPort:  3000,
		ServiceName: "api",
	})

	if labels["helvetia.type"] != "DOCKER" {
		t.Fatalf("helvetia.type = %q, want DOCKER", labels["helvetia.type"])
	}
	if got := labels["traefik.http.routers.alice-prod-api.entrypoints"]; got != "web" {
		t.Fatalf("entrypoints = %q, want web", got)
	}
}

func TestTraefikLabelsRuleOrsAllHostAlternatives(t *testing.T) {
	labels := TraefikLabels(TraefikLabelInput{
		Identifier:        "alice-prod-api",
		ServiceID:         "svc-1",
		ServiceType:       "DOCKER",
		TargetPort:        3000,
		ServiceName:       "my-static-site",
		PlatformDomain:    "helvetia.cloud",
		CustomDomain:      "example.com",
		ProjectName:       "myproject",
		EnvironmentName:   "prod",
		SanitizedUsername: "alice",
	})

	rule := labels["traefik.http.routers.alice-prod-api.rule"]
	for _, want := range []string{
		"Host(`my-static-site.helvetia.cloud`)",
		"Host(`my-static-site.localhost`)",
		"Host(`example.com`)",
		"Host(`myproject-my-static-site.helvetia.cloud`)",
		"Host(`alice.myproject.prod.my-static-site.helvetia.cloud`)",
	} {
		if !strings.Contains(rule, want) {
			t.Errorf("rule = %q, missing clause %q", rule, want)
		}
	}
	if strings.Count(rule, "Host(") != 5 {
		t.Fatalf("rule = %q, want 5 OR'd Host() clauses", rule)
	}
}

func TestTraefikLabelsRuleElidesMissingAlternatives(t *testing.T) {
	labels := TraefikLabels(TraefikLabelInput{
		Identifier:  "api",
		ServiceID:   "svc-1",
		ServiceType: "DOCKER",
		TargetPort:  3000,
		ServiceName: "api",
	})

	rule := labels["traefik.http.routers.api.rule"]
	if rule != "Host(`api.localhost`)" {
		t.Fatalf("rule = %q, want only the localhost host", rule)
	}
}
