package health

import (
	"context"
	"testing"
	"time"

	"github.com/docforge/docforge/pkg/controlplane"
	"github.com/docforge/docforge/pkg/telemetry"
)

type scriptedRunner struct {
	run func(args []string) (controlplane.Result, error)
}

func (s *scriptedRunner) Run(_ context.Context, _ string, args ...string) (controlplane.Result, error) {
	return s.run(args)
}

func triggerClient(t *testing.T, run func(args []string) (controlplane.Result, error)) *controlplane.Client {
	t.Helper()
	log, err := telemetry.NewLogger(telemetry.LoggingConfig{
		Level:  "error",
		Format: "json",
		Output: "stderr",
	})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return controlplane.NewClient(&scriptedRunner{run: run}, log)
}

func TestCheckJobTriggerSuccessfulRun(t *testing.T) {
	client := triggerClient(t, func(args []string) (controlplane.Result, error) {
		switch args[1] {
		case "run-now":
			return controlplane.Result{Stdout: `{"run_id":777}`}, nil
		case "get-run":
			return controlplane.Result{
				Stdout: `{"run_id":777,"state":{"life_cycle_state":"TERMINATED","result_state":"SUCCESS"}}`,
			}, nil
		}
		return controlplane.Result{}, nil
	})

	status := testVerifier(t).CheckJobTrigger(context.Background(), client, 42, fastPolicy(3))
	if status != Healthy {
		t.Errorf("status = %v, want Healthy", status)
	}
}

func TestCheckJobTriggerMissingRunIDIsSoftSuccess(t *testing.T) {
	client := triggerClient(t, func(args []string) (controlplane.Result, error) {
		return controlplane.Result{Stdout: "Run started.\n"}, nil
	})

	status := testVerifier(t).CheckJobTrigger(context.Background(), client, 42, fastPolicy(3))
	if status != Healthy {
		t.Errorf("status = %v, want Healthy when the trigger worked but no run id came back", status)
	}
}

func TestCheckJobTriggerRefusedTriggerFails(t *testing.T) {
	client := triggerClient(t, func(args []string) (controlplane.Result, error) {
		return controlplane.Result{ExitCode: 1, Stderr: "PERMISSION_DENIED"}, nil
	})

	status := testVerifier(t).CheckJobTrigger(context.Background(), client, 42, fastPolicy(3))
	if status != Unhealthy {
		t.Errorf("status = %v, want Unhealthy", status)
	}
}

func TestCheckJobTriggerFailedRunIsUnhealthy(t *testing.T) {
	client := triggerClient(t, func(args []string) (controlplane.Result, error) {
		switch args[1] {
		case "run-now":
			return controlplane.Result{Stdout: `{"run_id":777}`}, nil
		case "get-run":
			return controlplane.Result{
				Stdout: `{"run_id":777,"state":{"life_cycle_state":"TERMINATED","result_state":"FAILED"}}`,
			}, nil
		}
		return controlplane.Result{}, nil
	})

	status := testVerifier(t).CheckJobTrigger(context.Background(), client, 42, fastPolicy(3))
	if status != Unhealthy {
		t.Errorf("status = %v, want Unhealthy", status)
	}
}

func TestCheckJobTriggerLongRunIsSoftSuccess(t *testing.T) {
	client := triggerClient(t, func(args []string) (controlplane.Result, error) {
		switch args[1] {
		case "run-now":
			return controlplane.Result{Stdout: `{"run_id":777}`}, nil
		case "get-run":
			return controlplane.Result{
				Stdout: `{"run_id":777,"state":{"life_cycle_state":"RUNNING"}}`,
			}, nil
		}
		return controlplane.Result{}, nil
	})

	status := testVerifier(t).CheckJobTrigger(context.Background(), client, 42, Policy{
		MaxAttempts: 2,
		Interval:    time.Millisecond,
	})
	if status != Healthy {
		t.Errorf("status = %v, want Healthy for a run that outlives the watch window", status)
	}
}
