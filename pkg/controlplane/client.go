package controlplane

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/docforge/docforge/pkg/telemetry"
)

// Existence is the tri-state outcome of a resource probe. A failed list or
// get call cannot distinguish "the resource is absent" from "the control
// plane could not be asked", so the two are kept apart instead of collapsed
// into false.
type Existence int

const (
	// Absent means the control plane answered and the resource is not there.
	Absent Existence = iota

	// Present means the control plane answered and the resource is there.
	Present

	// Unknown means the probe itself failed (transport error, permission
	// denied on list, missing parent). Callers should attempt creation and
	// tolerate an already-exists diagnostic.
	Unknown
)

func (e Existence) String() string {
	switch e {
	case Present:
		return "present"
	case Absent:
		return "absent"
	default:
		return "unknown"
	}
}

// CommandError carries the control plane's diagnostic verbatim so the
// operator sees exactly what the platform said.
type CommandError struct {
	Op     string
	Result Result
}

func (e *CommandError) Error() string {
	diag := strings.TrimSpace(e.Result.Stderr)
	if diag == "" {
		diag = strings.TrimSpace(e.Result.Stdout)
	}
	return fmt.Sprintf("%s failed (exit %d): %s", e.Op, e.Result.ExitCode, diag)
}

// IsAlreadyExists reports whether a create-call failure is the control plane
// saying the resource is already there. The pre-create probe is racy, so
// treating this diagnostic as success is what makes creation idempotent.
func IsAlreadyExists(err error) bool {
	cmdErr, ok := err.(*CommandError)
	if !ok {
		return false
	}
	diag := strings.ToLower(cmdErr.Result.Stderr + cmdErr.Result.Stdout)
	return strings.Contains(diag, "already exists") ||
		strings.Contains(diag, "resource_already_exists")
}

// isNotFound reports whether a failed get/list is the control plane
// confirming the resource is absent rather than failing to answer.
func isNotFound(result Result) bool {
	diag := strings.ToLower(result.Stderr + result.Stdout)
	return strings.Contains(diag, "does not exist") ||
		strings.Contains(diag, "not found") ||
		strings.Contains(diag, "resource_does_not_exist")
}

// User identifies the authenticated control-plane user.
type User struct {
	UserName string `json:"userName"`
}

// App describes a managed application resource.
type App struct {
	Name               string      `json:"name"`
	URL                string      `json:"url"`
	ServicePrincipalID json.Number `json:"service_principal_id"`
}

// RunState is a job run's lifecycle snapshot.
type RunState struct {
	LifeCycleState string `json:"life_cycle_state"`
	ResultState    string `json:"result_state"`
}

// JobRun is the response to triggering or polling a job run.
type JobRun struct {
	RunID int64    `json:"run_id"`
	State RunState `json:"state"`
}

// Client exposes one typed method per control-plane operation.
type Client struct {
	runner Runner
	log    *telemetry.Logger
}

// NewClient builds a client over the given runner.
func NewClient(runner Runner, log *telemetry.Logger) *Client {
	return &Client{runner: runner, log: log.NewComponentLogger("controlplane")}
}

// run executes in the inherited working directory.
func (c *Client) run(ctx context.Context, op string, args ...string) (Result, error) {
	return c.runIn(ctx, "", op, args...)
}

func (c *Client) runIn(ctx context.Context, dir, op string, args ...string) (Result, error) {
	result, err := c.runner.Run(ctx, dir, args...)
	if err != nil {
		return result, fmt.Errorf("%s: failed to invoke control-plane CLI: %w", op, err)
	}
	if !result.OK() {
		return result, &CommandError{Op: op, Result: result}
	}
	return result, nil
}

// probe turns a list/get call into a tri-state existence answer. needle
// empty means "exit zero is presence"; otherwise presence is a substring
// match on stdout, mirroring the CLI's tabular list output. A failed call
// whose diagnostic confirms the resource is missing is Absent, not Unknown:
// get-based probes report absence through a not-found error.
func (c *Client) probe(ctx context.Context, op, needle string, args ...string) Existence {
	result, err := c.runner.Run(ctx, "", args...)
	if err != nil || !result.OK() {
		if err == nil && isNotFound(result) {
			return Absent
		}
		c.log.Zerolog().Warn().
			Str("operation", op).
			Str("stderr", strings.TrimSpace(result.Stderr)).
			Msg("Existence probe could not reach the control plane")
		return Unknown
	}
	if needle == "" || strings.Contains(result.Stdout, needle) {
		return Present
	}
	return Absent
}

// CurrentUser returns the authenticated user, or an error when the CLI has
// no working auth.
func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	result, err := c.run(ctx, "current-user", "current-user", "me", "--output", "json")
	if err != nil {
		return nil, err
	}
	var user User
	if err := json.Unmarshal([]byte(result.Stdout), &user); err != nil {
		return nil, fmt.Errorf("current-user: failed to parse response: %w", err)
	}
	return &user, nil
}

// Version returns the CLI version string.
func (c *Client) Version(ctx context.Context) (string, error) {
	result, err := c.run(ctx, "version", "--version")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(result.Stdout), nil
}

// CatalogExists probes the catalog list for the given name.
func (c *Client) CatalogExists(ctx context.Context, catalog string) Existence {
	return c.probe(ctx, "catalogs.list", catalog, "catalogs", "list")
}

// CreateCatalog creates a catalog.
func (c *Client) CreateCatalog(ctx context.Context, catalog string) error {
	_, err := c.run(ctx, "catalogs.create", "catalogs", "create", catalog)
	return err
}

// SchemaExists probes the schema list of a catalog.
func (c *Client) SchemaExists(ctx context.Context, catalog, schema string) Existence {
	return c.probe(ctx, "schemas.list", schema, "schemas", "list", catalog)
}

// CreateSchema creates a schema inside a catalog.
func (c *Client) CreateSchema(ctx context.Context, catalog, schema string) error {
	_, err := c.run(ctx, "schemas.create", "schemas", "create", catalog+"."+schema)
	return err
}

// VolumeExists probes the volume list of a schema.
func (c *Client) VolumeExists(ctx context.Context, catalog, schema, volume string) Existence {
	return c.probe(ctx, "volumes.list", volume, "volumes", "list", catalog, schema)
}

// CreateVolume creates a managed volume.
func (c *Client) CreateVolume(ctx context.Context, catalog, schema, volume string) error {
	_, err := c.run(ctx, "volumes.create", "volumes", "create", catalog, schema, volume, "MANAGED")
	return err
}

// SecretScopeExists probes the secret scope list.
func (c *Client) SecretScopeExists(ctx context.Context, scope string) Existence {
	return c.probe(ctx, "secrets.list-scopes", scope, "secrets", "list-scopes")
}

// CreateSecretScope creates a secret scope.
func (c *Client) CreateSecretScope(ctx context.Context, scope string) error {
	_, err := c.run(ctx, "secrets.create-scope", "secrets", "create-scope", scope)
	return err
}

// SecretExists probes a scope for the given key. A failed list usually means
// the scope itself is missing, which callers handle as Unknown.
func (c *Client) SecretExists(ctx context.Context, scope, key string) Existence {
	return c.probe(ctx, "secrets.list-secrets", key, "secrets", "list-secrets", "--scope", scope)
}

// PutSecret writes or overwrites a secret value.
func (c *Client) PutSecret(ctx context.Context, scope, key, value string) error {
	_, err := c.run(ctx, "secrets.put-secret",
		"secrets", "put-secret", scope, key, "--string-value", value)
	return err
}

// UploadFile copies a local file into a volume path.
func (c *Client) UploadFile(ctx context.Context, localPath, remotePath string) error {
	_, err := c.run(ctx, "fs.cp", "fs", "cp", localPath, "dbfs:"+remotePath)
	return err
}

// DeleteFile removes a file from a volume path.
func (c *Client) DeleteFile(ctx context.Context, remotePath string) error {
	_, err := c.run(ctx, "fs.rm", "fs", "rm", "dbfs:"+remotePath)
	return err
}

// SyncWorkspace pushes the project directory to the workspace path,
// respecting .gitignore the way the CLI does.
func (c *Client) SyncWorkspace(ctx context.Context, localDir, workspacePath string) error {
	_, err := c.runIn(ctx, localDir, "sync", "sync", ".", workspacePath)
	return err
}

// DeployBundle deploys the job bundle rooted at dir.
func (c *Client) DeployBundle(ctx context.Context, dir string) error {
	_, err := c.runIn(ctx, dir, "bundle.deploy", "bundle", "deploy")
	return err
}

// BundleSummary returns the human-readable deployment summary for the
// bundle rooted at dir. Identifier extraction is ParseJobID's job.
func (c *Client) BundleSummary(ctx context.Context, dir string) (string, error) {
	result, err := c.runIn(ctx, dir, "bundle.summary", "bundle", "summary")
	if err != nil {
		return "", err
	}
	return result.Stdout, nil
}

// JobExists probes a job id.
func (c *Client) JobExists(ctx context.Context, jobID int64) Existence {
	return c.probe(ctx, "jobs.get", "", "jobs", "get", strconv.FormatInt(jobID, 10))
}

// RunJobNow triggers a one-shot job run.
func (c *Client) RunJobNow(ctx context.Context, jobID int64) (*JobRun, error) {
	result, err := c.run(ctx, "jobs.run-now",
		"jobs", "run-now", "--job-id", strconv.FormatInt(jobID, 10), "--output", "json")
	if err != nil {
		return nil, err
	}
	var run JobRun
	if err := json.Unmarshal([]byte(result.Stdout), &run); err != nil {
		// The trigger itself succeeded; callers treat a missing run id as a
		// soft warning rather than a failure.
		c.log.Zerolog().Warn().
			Int("output_bytes", len(result.Stdout)).
			Msg("Job triggered but response did not parse as JSON")
		return nil, nil
	}
	return &run, nil
}

// GetJobRun polls a job run's state.
func (c *Client) GetJobRun(ctx context.Context, runID int64) (*JobRun, error) {
	result, err := c.run(ctx, "jobs.get-run",
		"jobs", "get-run", "--run-id", strconv.FormatInt(runID, 10), "--output", "json")
	if err != nil {
		return nil, err
	}
	var run JobRun
	if err := json.Unmarshal([]byte(result.Stdout), &run); err != nil {
		return nil, fmt.Errorf("jobs.get-run: failed to parse response: %w", err)
	}
	return &run, nil
}

// AppExists probes an application by name.
func (c *Client) AppExists(ctx context.Context, name string) Existence {
	return c.probe(ctx, "apps.get", "", "apps", "get", name)
}

// GetApp fetches an application's details.
func (c *Client) GetApp(ctx context.Context, name string) (*App, error) {
	result, err := c.run(ctx, "apps.get", "apps", "get", name, "--output", "json")
	if err != nil {
		return nil, err
	}
	var app App
	if err := json.Unmarshal([]byte(result.Stdout), &app); err != nil {
		return nil, fmt.Errorf("apps.get: failed to parse response: %w", err)
	}
	return &app, nil
}

// CreateApp creates an application from a JSON payload and returns its
// details when the response parses; an unparseable success is returned as a
// nil App with no error, since the creation itself went through.
func (c *Client) CreateApp(ctx context.Context, payload []byte) (*App, error) {
	result, err := c.run(ctx, "apps.create", "apps", "create", "--json", string(payload))
	if err != nil {
		return nil, err
	}
	var app App
	if err := json.Unmarshal([]byte(result.Stdout), &app); err != nil {
		c.log.Zerolog().Warn().
			Int("output_bytes", len(result.Stdout)).
			Msg("App created but response did not parse as JSON")
		return nil, nil
	}
	return &app, nil
}

// UpdateApp updates an application's resources from a JSON payload.
func (c *Client) UpdateApp(ctx context.Context, name string, payload []byte) error {
	_, err := c.run(ctx, "apps.update", "apps", "update", name, "--json", string(payload))
	return err
}

// DeployAppCode deploys the synced workspace source to the application.
func (c *Client) DeployAppCode(ctx context.Context, name, workspacePath string) error {
	_, err := c.run(ctx, "apps.deploy",
		"apps", "deploy", name, "--source-code-path", workspacePath)
	return err
}

// UpdateGrants applies an additive permission change on a securable.
func (c *Client) UpdateGrants(ctx context.Context, securableType, fullName, principal string, privileges []string) error {
	payload, err := json.Marshal(map[string]interface{}{
		"changes": []map[string]interface{}{
			{"principal": principal, "add": privileges},
		},
	})
	if err != nil {
		return fmt.Errorf("grants.update: failed to build payload: %w", err)
	}
	_, err = c.run(ctx, "grants.update",
		"grants", "update", securableType, fullName, "--json", string(payload))
	return err
}
