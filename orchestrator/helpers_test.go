package orchestrator

import (
	"testing"

	"github.com/helvetia-cloud/deploy-worker/models"
)

func TestContainsSuffixMatches(t *testing.T) {
	names := []string{"/api-ab12cd"}
	if !containsSuffix(names, "ab12cd") {
		t.Fatalf("expected match")
	}
	if containsSuffix(names, "zz9999") {
		t.Fatalf("expected no match")
	}
}

func TestEnvValuesCollectsMapValues(t *testing.T) {
	values := envValues(map[string]string{"A": "1", "B": "2"})
	if len(values) != 2 {
		t.Fatalf("expected 2 values, got %d", len(values))
	}
}

func TestValidateRejectsBadEnvName(t *testing.T) {
	o := &Orchestrator{}
	err := o.validate(models.Job{EnvVars: map[string]string{"1BAD": "x"}})
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if _, ok := err.(*ValidationError); !ok {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
}
