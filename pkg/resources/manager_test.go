package resources

import (
	"context"
	"strings"
	"testing"

	"github.com/docforge/docforge/pkg/controlplane"
	"github.com/docforge/docforge/pkg/telemetry"
)

// fakeRunner scripts the control-plane CLI per operation prefix and records
// every invocation.
type fakeRunner struct {
	calls    [][]string
	handlers map[string]func(args []string) (controlplane.Result, error)
}

func (f *fakeRunner) Run(_ context.Context, _ string, args ...string) (controlplane.Result, error) {
	f.calls = append(f.calls, args)
	key := strings.Join(args[:min(2, len(args))], " ")
	if handler, ok := f.handlers[key]; ok {
		return handler(args)
	}
	return controlplane.Result{}, nil
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func (f *fakeRunner) callCount(prefix string) int {
	n := 0
	for _, call := range f.calls {
		if strings.HasPrefix(strings.Join(call, " "), prefix) {
			n++
		}
	}
	return n
}

func newTestManager(t *testing.T, handlers map[string]func(args []string) (controlplane.Result, error)) (*Manager, *fakeRunner) {
	t.Helper()
	log, err := telemetry.NewLogger(telemetry.LoggingConfig{
		Level:  "error",
		Format: "json",
		Output: "stderr",
	})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	runner := &fakeRunner{handlers: handlers}
	client := controlplane.NewClient(runner, log)
	return NewManager(client, log), runner
}

func TestEnsureCatalogSkipsWhenPresent(t *testing.T) {
	manager, runner := newTestManager(t, map[string]func([]string) (controlplane.Result, error){
		"catalogs list": func([]string) (controlplane.Result, error) {
			return controlplane.Result{Stdout: "main\nmy_catalog\n"}, nil
		},
	})

	if err := manager.EnsureCatalog(context.Background(), "my_catalog"); err != nil {
		t.Fatalf("EnsureCatalog: %v", err)
	}
	if n := runner.callCount("catalogs create"); n != 0 {
		t.Errorf("create called %d times for an existing catalog", n)
	}
}

func TestEnsureCatalogCreatesWhenAbsent(t *testing.T) {
	manager, runner := newTestManager(t, map[string]func([]string) (controlplane.Result, error){
		"catalogs list": func([]string) (controlplane.Result, error) {
			return controlplane.Result{Stdout: "main\n"}, nil
		},
	})

	if err := manager.EnsureCatalog(context.Background(), "my_catalog"); err != nil {
		t.Fatalf("EnsureCatalog: %v", err)
	}
	if n := runner.callCount("catalogs create my_catalog"); n != 1 {
		t.Errorf("create called %d times, want 1", n)
	}
}

func TestEnsureCatalogIdempotentAcrossRuns(t *testing.T) {
	// First run creates; second run sees it listed and does nothing. Two
	// consecutive converge calls must both succeed.
	created := false
	handlers := map[string]func([]string) (controlplane.Result, error){
		"catalogs list": func([]string) (controlplane.Result, error) {
			if created {
				return controlplane.Result{Stdout: "main\nmy_catalog\n"}, nil
			}
			return controlplane.Result{Stdout: "main\n"}, nil
		},
		"catalogs create": func([]string) (controlplane.Result, error) {
			created = true
			return controlplane.Result{}, nil
		},
	}
	manager, runner := newTestManager(t, handlers)

	for i := 0; i < 2; i++ {
		if err := manager.EnsureCatalog(context.Background(), "my_catalog"); err != nil {
			t.Fatalf("run %d: %v", i+1, err)
		}
	}
	if n := runner.callCount("catalogs create"); n != 1 {
		t.Errorf("create called %d times across two runs, want 1", n)
	}
}

func TestEnsureVolumeToleratesAlreadyExists(t *testing.T) {
	// The probe fails (Unknown), creation is attempted, and the control
	// plane reports the volume already exists. That is success.
	manager, _ := newTestManager(t, map[string]func([]string) (controlplane.Result, error){
		"volumes list": func([]string) (controlplane.Result, error) {
			return controlplane.Result{ExitCode: 1, Stderr: "TEMPORARILY_UNAVAILABLE"}, nil
		},
		"volumes create": func([]string) (controlplane.Result, error) {
			return controlplane.Result{ExitCode: 1, Stderr: "Error: volume 'documents' already exists"}, nil
		},
	})

	path, err := manager.EnsureVolume(context.Background(), "cat", "sch", "documents")
	if err != nil {
		t.Fatalf("EnsureVolume: %v", err)
	}
	if path != "/Volumes/cat/sch/documents" {
		t.Errorf("path = %q", path)
	}
}

func TestEnsureVolumeSurfacesRealFailure(t *testing.T) {
	manager, _ := newTestManager(t, map[string]func([]string) (controlplane.Result, error){
		"volumes list": func([]string) (controlplane.Result, error) {
			return controlplane.Result{Stdout: ""}, nil
		},
		"volumes create": func([]string) (controlplane.Result, error) {
			return controlplane.Result{ExitCode: 1, Stderr: "PERMISSION_DENIED"}, nil
		},
	})

	if _, err := manager.EnsureVolume(context.Background(), "cat", "sch", "documents"); err == nil {
		t.Fatal("expected error for a non-already-exists failure")
	}
}

func TestParseVolumePath(t *testing.T) {
	catalog, schema, volume, err := ParseVolumePath("/Volumes/cat/sch/documents")
	if err != nil {
		t.Fatalf("ParseVolumePath: %v", err)
	}
	if catalog != "cat" || schema != "sch" || volume != "documents" {
		t.Errorf("got %s/%s/%s", catalog, schema, volume)
	}

	for _, bad := range []string{"", "/Volumes/cat/sch", "/Volumes/cat/sch/vol/extra", "/Data/cat/sch/vol"} {
		if _, _, _, err := ParseVolumePath(bad); err == nil {
			t.Errorf("%q: expected error", bad)
		}
	}
}

func TestVolumeQualifiedName(t *testing.T) {
	qualified, err := VolumeQualifiedName("/Volumes/cat/sch/documents")
	if err != nil {
		t.Fatalf("VolumeQualifiedName: %v", err)
	}
	if qualified != "cat.sch.documents" {
		t.Errorf("qualified = %q", qualified)
	}
}

func TestEnsureSecretAlwaysOverwrites(t *testing.T) {
	manager, runner := newTestManager(t, map[string]func([]string) (controlplane.Result, error){
		"secrets list-scopes": func([]string) (controlplane.Result, error) {
			return controlplane.Result{Stdout: "information_extraction\n"}, nil
		},
	})

	err := manager.EnsureSecret(context.Background(), "information_extraction", "lakebase_db_password", "s3cret")
	if err != nil {
		t.Fatalf("EnsureSecret: %v", err)
	}
	if n := runner.callCount("secrets create-scope"); n != 0 {
		t.Errorf("scope re-created %d times", n)
	}
	if n := runner.callCount("secrets put-secret"); n != 1 {
		t.Errorf("put-secret called %d times, want 1 (rotation must overwrite)", n)
	}
}

func TestDeployJobBundleExtractsJobID(t *testing.T) {
	manager, _ := newTestManager(t, map[string]func([]string) (controlplane.Result, error){
		"bundle summary": func([]string) (controlplane.Result, error) {
			return controlplane.Result{
				Stdout: "Resources:\n  Jobs:\n    extraction:\n      URL:  https://host/jobs/123456?o=789\n",
			}, nil
		},
		"jobs get": func([]string) (controlplane.Result, error) {
			return controlplane.Result{Stdout: "{}"}, nil
		},
	})

	jobID, err := manager.DeployJobBundle(context.Background(), "bundle-dir")
	if err != nil {
		t.Fatalf("DeployJobBundle: %v", err)
	}
	if jobID != 123456 {
		t.Errorf("jobID = %d, want 123456", jobID)
	}
}

func TestDeployJobBundleFailsWithoutJobURL(t *testing.T) {
	manager, _ := newTestManager(t, map[string]func([]string) (controlplane.Result, error){
		"bundle summary": func([]string) (controlplane.Result, error) {
			return controlplane.Result{Stdout: "Deployment complete!\n"}, nil
		},
	})

	if _, err := manager.DeployJobBundle(context.Background(), "bundle-dir"); err == nil {
		t.Fatal("expected error when summary has no job URL")
	}
}
