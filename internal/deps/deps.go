package deps

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// VersionTimeout bounds a single version probe.
const VersionTimeout = 5 * time.Second

// Requirement names an external executable the pipeline shells out to.
// When VersionArgs is set the binary is run with them and the first output
// line is reported as its version.
type Requirement struct {
	Name        string
	Command     string
	Description string
	VersionArgs []string
	Optional    bool
}

// Status is the outcome of checking one Requirement.
type Status struct {
	Name        string
	Command     string
	Path        string
	Version     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// Check resolves every requirement on PATH and probes versions where asked.
// A failing version probe leaves the binary available with an explanatory
// Detail; only a missing binary marks it unavailable.
func Check(ctx context.Context, requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		results = append(results, check(ctx, req))
	}
	return results
}

func check(ctx context.Context, req Requirement) Status {
	status := Status{
		Name:        req.Name,
		Command:     strings.TrimSpace(req.Command),
		Description: strings.TrimSpace(req.Description),
		Optional:    req.Optional,
	}
	if status.Command == "" {
		status.Detail = "command not configured"
		return status
	}
	path, err := exec.LookPath(status.Command)
	if err != nil {
		status.Detail = fmt.Sprintf("binary %q not found", status.Command)
		return status
	}
	status.Path = path
	status.Available = true
	if len(req.VersionArgs) == 0 {
		return status
	}
	version, err := probeVersion(ctx, path, req.VersionArgs)
	if err != nil {
		status.Detail = "version probe failed: " + err.Error()
		return status
	}
	status.Version = version
	return status
}

func probeVersion(ctx context.Context, path string, args []string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, VersionTimeout)
	defer cancel()
	out, err := exec.CommandContext(ctx, path, args...).Output()
	if err != nil {
		return "", err
	}
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			return line, nil
		}
	}
	return "", nil
}
