// Package runner executes generated pandas scripts in a python3 subprocess.
package runner

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// PythonRunner implements ports.CodeRunner by wrapping generated code in a
// loader preamble and running it with an external python3 interpreter.
type PythonRunner struct {
	pythonPath string
	timeout    time.Duration
}

// NewPythonRunner creates a runner. pythonPath defaults to "python3"; a
// non-positive timeout defaults to 30 seconds.
func NewPythonRunner(pythonPath string, timeout time.Duration) *PythonRunner {
	if pythonPath == "" {
		pythonPath = "python3"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &PythonRunner{pythonPath: pythonPath, timeout: timeout}
}

// Run writes the wrapped script to a temp directory and executes it. Stderr
// is folded into the error; stdout is the result.
func (r *PythonRunner) Run(ctx context.Context, code, dataPath string) (string, error) {
	script := wrapScript(code, dataPath)

	dir, err := os.MkdirTemp("", "tablerag-run-*")
	if err != nil {
		return "", fmt.Errorf("creating temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	scriptPath := filepath.Join(dir, "analysis.py")
	if err := os.WriteFile(scriptPath, []byte(script), 0644); err != nil {
		return "", fmt.Errorf("writing script: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.pythonPath, scriptPath)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("script timed out after %s", r.timeout)
		}
		return "", fmt.Errorf("script failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	return strings.TrimSpace(stdout.String()), nil
}

// wrapScript prepends the data loader and shields the generated code with a
// try/except so tracebacks surface as a single stderr line.
func wrapScript(code, dataPath string) string {
	var b strings.Builder
	b.WriteString("import sys\n")
	b.WriteString("import pandas as pd\n\n")
	fmt.Fprintf(&b, "df = %s(%q)\n\n", loaderFor(dataPath), dataPath)
	b.WriteString("try:\n")
	for _, line := range strings.Split(code, "\n") {
		b.WriteString("    ")
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString("except Exception as e:\n")
	b.WriteString("    print(f\"ERROR: {type(e).__name__}: {e}\", file=sys.stderr)\n")
	b.WriteString("    sys.exit(1)\n")
	return b.String()
}

func loaderFor(dataPath string) string {
	switch strings.ToLower(filepath.Ext(dataPath)) {
	case ".csv":
		return "pd.read_csv"
	default:
		return "pd.read_excel"
	}
}
