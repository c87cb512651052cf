package trigger

import (
	"encoding/json"
	"testing"
)

// TestParameterMarshalJSON tests that each variant serializes natively: a
// boolean stays a JSON boolean and a string stays a JSON string, even when
// the string spells "true".
func TestParameterMarshalJSON(t *testing.T) {
	tests := []struct {
		name  string
		param Parameter
		want  string
	}{
		{"bool true", Bool(true), `true`},
		{"bool false", Bool(false), `false`},
		{"plain string", String("iPhone11"), `"iPhone11"`},
		{"string spelling a boolean stays a string", String("true"), `"true"`},
		{"empty string", String(""), `""`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.param)
			if err != nil {
				t.Fatalf("Marshal failed: %v", err)
			}
			if string(data) != tt.want {
				t.Errorf("Marshal = %s, want %s", data, tt.want)
			}
		})
	}
}

// TestParameterSetMarshalJSON tests that a full set serializes booleans and
// strings side by side without collapsing types.
func TestParameterSetMarshalJSON(t *testing.T) {
	set := ParameterSet{
		"push":      Bool(false),
		"app_tests": Bool(true),
		"device":    String("iPhone11"),
	}

	data, err := json.Marshal(set)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if v, ok := decoded["push"].(bool); !ok || v {
		t.Errorf("push = %#v, want JSON boolean false", decoded["push"])
	}
	if v, ok := decoded["app_tests"].(bool); !ok || !v {
		t.Errorf("app_tests = %#v, want JSON boolean true", decoded["app_tests"])
	}
	if v, ok := decoded["device"].(string); !ok || v != "iPhone11" {
		t.Errorf("device = %#v, want JSON string iPhone11", decoded["device"])
	}
}

// TestParameterUnmarshalJSON tests restoring the matching variant.
func TestParameterUnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    Parameter
		wantErr bool
	}{
		{name: "boolean", data: `true`, want: Bool(true)},
		{name: "string", data: `"develop"`, want: String("develop")},
		{name: "number is rejected", data: `42`, wantErr: true},
		{name: "object is rejected", data: `{}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p Parameter
			err := json.Unmarshal([]byte(tt.data), &p)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unmarshal failed: %v", err)
			}
			if p != tt.want {
				t.Errorf("Unmarshal = %#v, want %#v", p, tt.want)
			}
		})
	}
}

// TestParameterStringValue tests the stringified form for the legacy API.
func TestParameterStringValue(t *testing.T) {
	tests := []struct {
		name  string
		param Parameter
		want  string
	}{
		{"bool true", Bool(true), "true"},
		{"bool false", Bool(false), "false"},
		{"string passthrough", String("iPhone11"), "iPhone11"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.param.StringValue(); got != tt.want {
				t.Errorf("StringValue = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestParameterSetStrings tests flattening a set for the legacy job API.
func TestParameterSetStrings(t *testing.T) {
	set := ParameterSet{
		"push": Bool(false),
		"lane": String("testflight"),
	}

	got := set.Strings()
	if got["push"] != "false" {
		t.Errorf("push = %q, want %q", got["push"], "false")
	}
	if got["lane"] != "testflight" {
		t.Errorf("lane = %q, want %q", got["lane"], "testflight")
	}
}

// TestNewRequest tests the non-empty project and branch invariant.
func TestNewRequest(t *testing.T) {
	if _, err := NewRequest("", "develop", nil); err == nil {
		t.Error("expected error for empty project")
	}
	if _, err := NewRequest("org/repo", "", nil); err == nil {
		t.Error("expected error for empty branch")
	}

	req, err := NewRequest("org/repo", "develop", ParameterSet{"push": Bool(false)})
	if err != nil {
		t.Fatalf("NewRequest failed: %v", err)
	}
	if req.Project != "org/repo" || req.Branch != "develop" {
		t.Errorf("unexpected request: %+v", req)
	}
}
