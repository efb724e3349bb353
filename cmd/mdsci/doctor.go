package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// doctorResult holds all diagnostic information.
type doctorResult struct {
	Status   string     `json:"status"` // "ready", "warnings", "errors"
	Latex    toolInfo   `json:"latex"`
	Dvisvgm  toolInfo   `json:"dvisvgm"`
	Gnuplot  toolInfo   `json:"gnuplot"`
	Env      envInfo    `json:"environment"`
	System   systemInfo `json:"system"`
	Warnings []string   `json:"warnings,omitempty"`
	Errors   []string   `json:"errors,omitempty"`
}

// toolInfo holds detection results for one toolchain executable.
type toolInfo struct {
	Found   bool   `json:"found"`
	Path    string `json:"path,omitempty"`
	Version string `json:"version,omitempty"`
}

// envInfo holds environment detection results.
type envInfo struct {
	OS   string `json:"os"`
	Arch string `json:"arch"`
}

// systemInfo holds system check results.
type systemInfo struct {
	TempWritable bool `json:"temp_writable"`
}

// runDoctorCmd executes the doctor command and returns an exit code.
// Exit codes: 0 = OK (including warnings), 4 = toolchain missing,
// 1 = other errors.
func runDoctorCmd(args []string, deps *Dependencies) int {
	jsonOutput := false
	for _, arg := range args {
		if arg == "--json" {
			jsonOutput = true
		}
	}

	result := runDoctor()

	if jsonOutput {
		enc := json.NewEncoder(deps.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(result)
	} else {
		printDoctorResult(deps.Stdout, result)
	}

	if result.Status == "errors" {
		if !result.Latex.Found || !result.Dvisvgm.Found {
			return ExitToolchain
		}
		return ExitGeneral
	}
	return ExitSuccess
}

// runDoctor performs all diagnostic checks.
func runDoctor() *doctorResult {
	result := &doctorResult{
		Status: "ready",
		Env: envInfo{
			OS:   runtime.GOOS,
			Arch: runtime.GOARCH,
		},
	}

	checkToolchain(result)
	checkSystem(result)

	if len(result.Errors) > 0 {
		result.Status = "errors"
	} else if len(result.Warnings) > 0 {
		result.Status = "warnings"
	}

	return result
}

// checkToolchain probes the toolchain executables and records their
// versions. Each tool is probed independently so a missing latex still
// reports the dvisvgm status. gnuplot is optional: only figure blocks
// need it, so its absence is a warning.
func checkToolchain(result *doctorResult) {
	result.Latex = probeTool("latex", true, result)
	result.Dvisvgm = probeTool("dvisvgm", true, result)
	result.Gnuplot = probeTool("gnuplot", false, result)
}

// probeTool locates one executable on PATH and asks it for a version.
func probeTool(name string, required bool, result *doctorResult) toolInfo {
	path, err := exec.LookPath(name)
	if err != nil {
		if required {
			result.Errors = append(result.Errors,
				fmt.Sprintf("%s not found on PATH", name))
		} else {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("%s not found on PATH; figure blocks will fail", name))
		}
		return toolInfo{}
	}
	info := toolInfo{Found: true, Path: path}

	out, err := exec.Command(path, "--version").Output() // #nosec G204 -- path from exec.LookPath
	if err != nil {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("could not get %s version: %v", filepath.Base(path), err))
		return info
	}
	// First line of --version output is the package banner.
	if line, _, _ := strings.Cut(string(out), "\n"); line != "" {
		info.Version = strings.TrimSpace(line)
	}
	return info
}

// checkSystem verifies system requirements.
func checkSystem(result *doctorResult) {
	tmpDir := os.TempDir()
	testFile := filepath.Join(tmpDir, "mdsci-doctor-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		result.Errors = append(result.Errors,
			fmt.Sprintf("temp directory not writable: %s", tmpDir))
	} else {
		_ = os.Remove(testFile)
		result.System.TempWritable = true
	}
}

// printDoctorResult outputs human-readable diagnostic results.
func printDoctorResult(w io.Writer, r *doctorResult) {
	fmt.Fprintln(w, "mdsci doctor")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Toolchain")
	printTool(w, "latex", r.Latex)
	printTool(w, "dvisvgm", r.Dvisvgm)
	if r.Gnuplot.Found {
		printTool(w, "gnuplot", r.Gnuplot)
	} else {
		fmt.Fprintln(w, "  [WARN] gnuplot: not found on PATH (optional, needed for figure blocks)")
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Environment")
	fmt.Fprintf(w, "  [OK] Platform: %s/%s\n", r.Env.OS, r.Env.Arch)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "System")
	if r.System.TempWritable {
		fmt.Fprintln(w, "  [OK] Temp directory: writable")
	} else {
		fmt.Fprintln(w, "  [ERROR] Temp directory: not writable")
	}
	fmt.Fprintln(w)

	if len(r.Warnings) > 0 {
		fmt.Fprintln(w, "Warnings:")
		for _, warn := range r.Warnings {
			fmt.Fprintf(w, "  [WARN] %s\n", warn)
		}
		fmt.Fprintln(w)
	}

	if len(r.Errors) > 0 {
		fmt.Fprintln(w, "Errors:")
		for _, err := range r.Errors {
			fmt.Fprintf(w, "  [ERROR] %s\n", err)
		}
		fmt.Fprintln(w)
	}

	switch r.Status {
	case "ready":
		fmt.Fprintln(w, "Status: Ready to process")
	case "warnings":
		fmt.Fprintln(w, "Status: Ready with warnings")
	case "errors":
		fmt.Fprintln(w, "Status: Not ready (see errors above)")
	}
}

func printTool(w io.Writer, name string, t toolInfo) {
	if !t.Found {
		fmt.Fprintf(w, "  [ERROR] %s: not found on PATH\n", name)
		return
	}
	fmt.Fprintf(w, "  [OK] %s: %s\n", name, t.Path)
	if t.Version != "" {
		fmt.Fprintf(w, "  [OK] %s version: %s\n", name, t.Version)
	}
}
