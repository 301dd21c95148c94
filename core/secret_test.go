package core

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestSecretRedaction(t *testing.T) {
	secret := NewSecret("sb-live-abc123xyz")

	if got := secret.String(); got != "[REDACTED]" {
		t.Errorf("String() = %q, want [REDACTED]", got)
	}
	if got := secret.GoString(); got != "core.Secret{[REDACTED]}" {
		t.Errorf("GoString() = %q", got)
	}

	b, err := secret.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON() error = %v", err)
	}
	if string(b) != `"[REDACTED]"` {
		t.Errorf("MarshalJSON() = %s", b)
	}

	if secret.Expose() != "sb-live-abc123xyz" {
		t.Errorf("Expose() = %q", secret.Expose())
	}
}

func TestSecretIsEmpty(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  bool
	}{
		{"empty string", "", true},
		{"non-empty string", "sb-abc123", false},
		{"whitespace only", "  ", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NewSecret(tt.value).IsEmpty(); got != tt.want {
				t.Errorf("IsEmpty() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSecretNeverPrinted(t *testing.T) {
	type profile struct {
		Name   string `json:"name" yaml:"name"`
		APIKey Secret `json:"api_key" yaml:"api_key"`
	}
	const raw = "sb-super-secret-key"
	p := profile{Name: "prod", APIKey: NewSecret(raw)}

	outputs := map[string]string{
		"%v":  fmt.Sprintf("%v", p),
		"%+v": fmt.Sprintf("%+v", p),
		"%#v": fmt.Sprintf("%#v", p),
	}

	j, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	outputs["json"] = string(j)

	y, err := yaml.Marshal(p)
	if err != nil {
		t.Fatalf("yaml.Marshal() error = %v", err)
	}
	outputs["yaml"] = string(y)

	for name, got := range outputs {
		if strings.Contains(got, raw) {
			t.Errorf("%s exposed the secret: %s", name, got)
		}
		if !strings.Contains(got, "REDACTED") {
			t.Errorf("%s should contain REDACTED: %s", name, got)
		}
	}
}
