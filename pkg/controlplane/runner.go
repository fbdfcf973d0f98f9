package controlplane

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/docforge/docforge/pkg/config"
	"github.com/docforge/docforge/pkg/telemetry"
)

// Result is the outcome of one CLI invocation.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// OK reports whether the invocation succeeded.
func (r Result) OK() bool {
	return r.ExitCode == 0
}

// Runner executes control-plane CLI commands. The production implementation
// shells out; tests substitute a fake.
type Runner interface {
	// Run invokes the CLI with the given arguments (binary name excluded)
	// in the given working directory; an empty dir inherits the process's.
	// A non-zero exit is reported through Result, not through err; err is
	// reserved for failures to launch the subprocess at all.
	Run(ctx context.Context, dir string, args ...string) (Result, error)
}

// execRunner shells out to the platform CLI binary, injecting the
// --profile flag when a named auth profile is configured.
type execRunner struct {
	binary  string
	profile string
}

// RunnerOptions configures the exec-backed runner.
type RunnerOptions struct {
	// Binary is the CLI binary name or path. Defaults to "databricks".
	Binary string

	// ProjectRoot locates .env.local for profile resolution.
	ProjectRoot string
}

// NewRunner builds the exec-backed runner. The auth profile is resolved from
// DATABRICKS_CONFIG_PROFILE in the environment first, then from .env.local;
// when neither is set the CLI's own default auth chain applies.
func NewRunner(opts RunnerOptions) Runner {
	binary := opts.Binary
	if binary == "" {
		binary = "databricks"
	}
	return &execRunner{
		binary:  binary,
		profile: resolveProfile(opts.ProjectRoot),
	}
}

func resolveProfile(projectRoot string) string {
	if profile := os.Getenv("DATABRICKS_CONFIG_PROFILE"); profile != "" {
		return profile
	}
	values, err := config.ReadEnvLocal(filepath.Join(projectRoot, config.EnvLocalFile))
	if err != nil {
		return ""
	}
	return values["DATABRICKS_CONFIG_PROFILE"]
}

func (r *execRunner) Run(ctx context.Context, dir string, args ...string) (Result, error) {
	argv := args
	if r.profile != "" {
		argv = append([]string{"--profile", r.profile}, args...)
	}

	cmd := exec.CommandContext(ctx, r.binary, argv...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		return result, err
	}
	return result, nil
}

// instrumentedRunner records per-operation metrics around a delegate.
type instrumentedRunner struct {
	delegate Runner
	metrics  *telemetry.Metrics
}

// Instrument wraps a runner so each invocation is recorded under its
// operation name (the first one or two CLI words).
func Instrument(delegate Runner, metrics *telemetry.Metrics) Runner {
	if metrics == nil {
		return delegate
	}
	return &instrumentedRunner{delegate: delegate, metrics: metrics}
}

func (r *instrumentedRunner) Run(ctx context.Context, dir string, args ...string) (Result, error) {
	started := time.Now()
	result, err := r.delegate.Run(ctx, dir, args...)

	status := "succeeded"
	if err != nil || !result.OK() {
		status = "failed"
	}
	r.metrics.RecordControlPlaneCall(operationName(args), status, time.Since(started))

	return result, err
}

func operationName(args []string) string {
	switch len(args) {
	case 0:
		return "unknown"
	case 1:
		return args[0]
	default:
		return args[0] + "." + args[1]
	}
}
