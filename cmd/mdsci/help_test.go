package main

import (
	"strings"
	"testing"
)

func TestPrintUsage(t *testing.T) {
	t.Parallel()

	var b strings.Builder
	printUsage(&b)
	for _, want := range []string{"process", "doctor", "version", "help"} {
		if !strings.Contains(b.String(), want) {
			t.Errorf("usage missing command %q:\n%s", want, b.String())
		}
	}
}

func TestRunHelp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no args", nil, "Usage: mdsci <command>"},
		{"process", []string{"process"}, "Usage: mdsci process"},
		{"doctor", []string{"doctor"}, "Usage: mdsci doctor"},
		{"version", []string{"version"}, "Usage: mdsci version"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var out, errOut strings.Builder
			runHelp(tt.args, &Dependencies{Stdout: &out, Stderr: &errOut})
			if !strings.Contains(out.String(), tt.want) {
				t.Errorf("help output missing %q:\n%s", tt.want, out.String())
			}
		})
	}

	var out, errOut strings.Builder
	runHelp([]string{"bogus"}, &Dependencies{Stdout: &out, Stderr: &errOut})
	if !strings.Contains(errOut.String(), "Unknown command: bogus") {
		t.Errorf("stderr missing unknown-command message:\n%s", errOut.String())
	}
}
