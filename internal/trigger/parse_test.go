package trigger

import (
	"errors"
	"reflect"
	"testing"
)

// TestParse tests splitting argument tokens into a name and option set.
func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantName string
		wantOpts ParameterSet
		wantErr  bool
	}{
		{
			name:     "name only",
			args:     []string{"app_tests"},
			wantName: "app_tests",
			wantOpts: ParameterSet{},
		},
		{
			name:     "flag token becomes boolean true",
			args:     []string{"app_tests", "nightly"},
			wantName: "app_tests",
			wantOpts: ParameterSet{"nightly": Bool(true)},
		},
		{
			name:     "key value token becomes string",
			args:     []string{"app_tests", "device:iPhone11"},
			wantName: "app_tests",
			wantOpts: ParameterSet{"device": String("iPhone11")},
		},
		{
			name:     "value is exact substring after separator",
			args:     []string{"app_tests", "device:"},
			wantName: "app_tests",
			wantOpts: ParameterSet{"device": String("")},
		},
		{
			name:     "token with two separators is dropped silently",
			args:     []string{"app_tests", "device:iPhone:11"},
			wantName: "app_tests",
			wantOpts: ParameterSet{},
		},
		{
			name:     "mixed tokens",
			args:     []string{"ui_tests", "branch:develop", "nightly", "bad:a:b", "version:3.13.0"},
			wantName: "ui_tests",
			wantOpts: ParameterSet{
				"branch":  String("develop"),
				"nightly": Bool(true),
				"version": String("3.13.0"),
			},
		},
		{
			name:     "later duplicate key overwrites earlier",
			args:     []string{"app_tests", "device:iPhone8", "device:iPhone11"},
			wantName: "app_tests",
			wantOpts: ParameterSet{"device": String("iPhone11")},
		},
		{
			name:    "no tokens is malformed",
			args:    nil,
			wantErr: true,
		},
		{
			name:    "empty name token is malformed",
			args:    []string{""},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed, err := Parse(tt.args)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !errors.Is(err, ErrMalformedInvocation) {
					t.Errorf("expected ErrMalformedInvocation, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse failed: %v", err)
			}

			if parsed.Name != tt.wantName {
				t.Errorf("expected name %q, got %q", tt.wantName, parsed.Name)
			}
			if len(parsed.Options) != len(tt.wantOpts) {
				t.Errorf("expected %d options, got %d: %v", len(tt.wantOpts), len(parsed.Options), parsed.Options)
			}
			for k, want := range tt.wantOpts {
				got, ok := parsed.Options[k]
				if !ok {
					t.Errorf("missing option %q", k)
					continue
				}
				if got != want {
					t.Errorf("option %q = %#v, want %#v", k, got, want)
				}
			}
		})
	}
}

// TestParse_RestPreservesTokens tests that the tokens after the name are
// kept in order and unmodified for the lane-mode rejoin.
func TestParse_RestPreservesTokens(t *testing.T) {
	args := []string{"test_babylon", "device:iPhone5s", "bad:a:b", "nightly"}
	parsed, err := Parse(args)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	want := []string{"device:iPhone5s", "bad:a:b", "nightly"}
	if !reflect.DeepEqual(parsed.Rest, want) {
		t.Errorf("expected rest %v, got %v", want, parsed.Rest)
	}
}
