package resources

import (
	"context"
	"strings"
	"testing"

	"github.com/docforge/docforge/pkg/config"
	"github.com/docforge/docforge/pkg/controlplane"
)

func TestAppAttachmentsMatchDeclaredNames(t *testing.T) {
	secret := config.SecretRef{Scope: "information_extraction", Key: "lakebase_db_password"}
	attachments, err := AppAttachments(123456, "/Volumes/cat/sch/documents", secret)
	if err != nil {
		t.Fatalf("AppAttachments: %v", err)
	}

	byName := make(map[string]AppAttachment, len(attachments))
	for _, a := range attachments {
		byName[a.Name] = a
	}
	for _, name := range config.AttachmentNames() {
		if _, ok := byName[name]; !ok {
			t.Errorf("declared attachment %s missing from payload", name)
		}
	}

	job := byName[config.ResourceNameJob]
	if job.Job == nil || job.Job.ID != "123456" || job.Job.Permission != "CAN_MANAGE_RUN" {
		t.Errorf("job attachment = %+v", job.Job)
	}

	volume := byName[config.ResourceNameVolume]
	if volume.UCSecurable == nil ||
		volume.UCSecurable.SecurableFullName != "cat.sch.documents" ||
		volume.UCSecurable.Permission != "WRITE_VOLUME" ||
		volume.UCSecurable.SecurableType != "VOLUME" {
		t.Errorf("volume attachment = %+v", volume.UCSecurable)
	}

	sec := byName[config.ResourceNameSecret]
	if sec.Secret == nil || sec.Secret.Scope != secret.Scope ||
		sec.Secret.Key != secret.Key || sec.Secret.Permission != "READ" {
		t.Errorf("secret attachment = %+v", sec.Secret)
	}
}

func TestAppAttachmentsRejectsBadVolumePath(t *testing.T) {
	if _, err := AppAttachments(1, "/not/a/volume", config.SecretRef{}); err == nil {
		t.Fatal("expected error for malformed volume path")
	}
}

func TestEnsureAppUpdatesExisting(t *testing.T) {
	manager, runner := newTestManager(t, map[string]func([]string) (controlplane.Result, error){
		"apps get": func(args []string) (controlplane.Result, error) {
			return controlplane.Result{Stdout: `{"name":"app","url":"https://app.example.com","service_principal_id":987}`}, nil
		},
	})

	app, err := manager.EnsureApp(context.Background(), "app", 123456, "/Volumes/cat/sch/documents",
		config.SecretRef{Scope: "s", Key: "k"})
	if err != nil {
		t.Fatalf("EnsureApp: %v", err)
	}
	if app == nil || app.URL != "https://app.example.com" {
		t.Errorf("app = %+v", app)
	}

	if n := runner.callCount("apps create"); n != 0 {
		t.Errorf("create called %d times for an existing app", n)
	}
	if n := runner.callCount("apps update"); n != 1 {
		t.Fatalf("update called %d times, want 1", n)
	}

	var payload string
	for _, call := range runner.calls {
		if call[0] == "apps" && call[1] == "update" {
			payload = call[len(call)-1]
		}
	}
	if !strings.Contains(payload, `"resources"`) || !strings.Contains(payload, config.ResourceNameJob) {
		t.Errorf("update payload missing resources: %s", payload)
	}
}

func TestEnsureAppCreateToleratesAlreadyExists(t *testing.T) {
	manager, _ := newTestManager(t, map[string]func([]string) (controlplane.Result, error){
		"apps get": func(args []string) (controlplane.Result, error) {
			// The bare existence probe fails, the detail fetch after the
			// tolerated create succeeds.
			if args[len(args)-1] == "json" {
				return controlplane.Result{Stdout: `{"name":"app","url":"https://app.example.com"}`}, nil
			}
			return controlplane.Result{ExitCode: 1, Stderr: "PERMISSION_DENIED on list"}, nil
		},
		"apps create": func([]string) (controlplane.Result, error) {
			return controlplane.Result{ExitCode: 1, Stderr: "Error: app 'app' already exists"}, nil
		},
	})

	app, err := manager.EnsureApp(context.Background(), "app", 123456, "/Volumes/cat/sch/documents",
		config.SecretRef{Scope: "s", Key: "k"})
	if err != nil {
		t.Fatalf("EnsureApp: %v", err)
	}
	if app == nil || app.URL != "https://app.example.com" {
		t.Errorf("app = %+v", app)
	}
}

func TestGrantAppPermissionsCatalogFailureIsNotFatal(t *testing.T) {
	manager, runner := newTestManager(t, map[string]func([]string) (controlplane.Result, error){
		"grants update": func(args []string) (controlplane.Result, error) {
			if args[2] == "catalog" {
				return controlplane.Result{ExitCode: 1, Stderr: "PERMISSION_DENIED"}, nil
			}
			return controlplane.Result{}, nil
		},
	})

	err := manager.GrantAppPermissions(context.Background(), "sp-1", "cat", "sch")
	if err != nil {
		t.Fatalf("catalog grant failure must not be fatal: %v", err)
	}
	if n := runner.callCount("grants update schema"); n != 1 {
		t.Errorf("schema grant attempted %d times, want 1", n)
	}
}

func TestGrantAppPermissionsSchemaFailureIsFatal(t *testing.T) {
	manager, _ := newTestManager(t, map[string]func([]string) (controlplane.Result, error){
		"grants update": func(args []string) (controlplane.Result, error) {
			if args[2] == "schema" {
				return controlplane.Result{ExitCode: 1, Stderr: "PERMISSION_DENIED"}, nil
			}
			return controlplane.Result{}, nil
		},
	})

	if err := manager.GrantAppPermissions(context.Background(), "sp-1", "cat", "sch"); err == nil {
		t.Fatal("schema grant failure must be fatal")
	}
}
