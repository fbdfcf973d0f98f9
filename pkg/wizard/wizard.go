package wizard

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/docforge/docforge/pkg/config"
	"github.com/docforge/docforge/pkg/controlplane"
	"github.com/docforge/docforge/pkg/database"
	"github.com/docforge/docforge/pkg/health"
	"github.com/docforge/docforge/pkg/resources"
	"github.com/docforge/docforge/pkg/telemetry"
)

// Options carries everything the setup flow needs. The command layer fills
// it from flags; defaults match a stock project checkout.
type Options struct {
	ProjectRoot  string
	ConfigPath   string
	ManifestPath string
	StatePath    string
	BundleDir    string
	ClientDir    string

	AppName       string
	CatalogSchema string
	VolumeName    string
	WorkspacePath string
	OutputTable   string

	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	DBSchema   string

	SecretScope string
	SecretKey   string

	UploadMaxSizeMB         int
	UploadAllowedExtensions []string

	SkipValidate    bool
	CheckJobTrigger bool
	LocalCommand    []string
}

func (o *Options) applyDefaults() {
	if o.ProjectRoot == "" {
		o.ProjectRoot = "."
	}
	if o.ConfigPath == "" {
		o.ConfigPath = filepath.Join(o.ProjectRoot, "config", "base.yaml")
	}
	if o.ManifestPath == "" {
		o.ManifestPath = filepath.Join(o.ProjectRoot, "app.yaml")
	}
	if o.StatePath == "" {
		o.StatePath = filepath.Join(o.ProjectRoot, StateFile)
	}
	if o.BundleDir == "" {
		o.BundleDir = filepath.Join(o.ProjectRoot, "databricks-job-resources")
	}
	if o.ClientDir == "" {
		o.ClientDir = filepath.Join(o.ProjectRoot, "client")
	}
	if o.AppName == "" {
		o.AppName = "information-extraction-app"
	}
	if o.VolumeName == "" {
		o.VolumeName = "documents"
	}
	if o.DBPort == 0 {
		o.DBPort = 5432
	}
	if o.DBName == "" {
		o.DBName = "information_extractor"
	}
	if o.DBSchema == "" {
		o.DBSchema = "information_extraction"
	}
	if o.SecretScope == "" {
		o.SecretScope = "information_extraction"
	}
	if o.SecretKey == "" {
		o.SecretKey = "lakebase_db_password"
	}
	if o.UploadMaxSizeMB == 0 {
		o.UploadMaxSizeMB = 50
	}
	if len(o.UploadAllowedExtensions) == 0 {
		o.UploadAllowedExtensions = []string{".pdf", ".docx", ".doc", ".png", ".jpg", ".jpeg", ".txt"}
	}
}

// Wizard runs the setup phases in order, checkpointing after each.
type Wizard struct {
	opts     Options
	client   *controlplane.Client
	manager  *resources.Manager
	verifier *health.Verifier
	store    *Store
	log      *telemetry.Logger
	metrics  *telemetry.Metrics
	runID    string
}

// New wires a wizard over the shared client, resource manager, and
// verifier.
func New(opts Options, client *controlplane.Client, manager *resources.Manager, verifier *health.Verifier, log *telemetry.Logger, metrics *telemetry.Metrics) *Wizard {
	opts.applyDefaults()
	runID := uuid.NewString()
	return &Wizard{
		opts:     opts,
		client:   client,
		manager:  manager,
		verifier: verifier,
		store:    NewStore(opts.StatePath, log),
		log:      log.NewComponentLogger("wizard").WithRunID(runID),
		metrics:  metrics,
		runID:    runID,
	}
}

// phase is one resumable unit of the flow. done short-circuits without side
// effects when a previous run already converged it; mark flags the
// completion keys after fn succeeds.
type phase struct {
	name string
	fn   func(ctx context.Context, state *State) error
	done func(state *State) bool
	mark func(state *State)
}

func keyed(key string) (func(*State) bool, func(*State)) {
	return func(s *State) bool { return s.IsComplete(key) },
		func(s *State) { s.MarkComplete(key) }
}

// Run executes the setup flow from wherever the checkpoint left off. The
// returned error is nil on success, ErrInterrupted when the context was
// cancelled, or the classified failure of the phase that stopped the run.
func (w *Wizard) Run(ctx context.Context) error {
	state := w.store.Load()

	phases := w.phases()
	for _, p := range phases {
		if err := ctx.Err(); err != nil {
			return ErrInterrupted
		}
		log := w.log.WithPhase(p.name)
		if p.done(state) {
			log.Info("Phase already complete, skipping")
			w.metrics.RecordPhase(p.name, "skipped", 0)
			continue
		}

		log.Info("Starting phase")
		started := time.Now()
		err := p.fn(ctx, state)
		if err != nil {
			// Data captured before the failure stays checkpointed so the next
			// run resumes mid-flow instead of from scratch.
			if saveErr := w.store.Save(state); saveErr != nil {
				log.WithError(saveErr).Warn("Could not checkpoint partial progress")
			}
			w.metrics.RecordPhase(p.name, "failed", time.Since(started))
			if errors.Is(err, context.Canceled) {
				return ErrInterrupted
			}
			var perr *PhaseError
			if errors.As(err, &perr) {
				w.metrics.RecordError(string(perr.Class))
				return err
			}
			w.metrics.RecordError(string(ErrorClassTransient))
			return phaseErr(p.name, ErrorClassTransient, err)
		}

		p.mark(state)
		if err := w.store.Save(state); err != nil {
			log.WithError(err).Warn("Could not save setup state")
		}
		w.metrics.RecordPhase(p.name, "succeeded", time.Since(started))
		log.Info("Phase complete")
	}

	if !w.opts.SkipValidate {
		w.validate(ctx, state)
	}

	w.report(state)
	return nil
}

func (w *Wizard) phases() []phase {
	depsDone, depsMark := keyed(PhaseDependencies)
	authDone, authMark := keyed(PhaseAuthenticated)
	dbDone, dbMark := keyed(PhaseDatabase)
	jobDone, jobMark := keyed(PhaseJobDeployed)
	appDone, appMark := keyed(PhaseAppDeployed)

	return []phase{
		{name: "dependencies", fn: w.checkDependencies, done: depsDone, mark: depsMark},
		{name: "authentication", fn: w.authenticate, done: authDone, mark: authMark},
		{name: "database", fn: w.configureDatabase, done: dbDone, mark: dbMark},
		{
			name: "catalog_volume",
			fn:   w.configureCatalogAndVolume,
			done: func(s *State) bool {
				return s.IsComplete(PhaseCatalog) && s.IsComplete(PhaseVolume)
			},
			mark: func(s *State) {
				s.MarkComplete(PhaseCatalog)
				s.MarkComplete(PhaseVolume)
			},
		},
		{name: "job_deployment", fn: w.deployJob, done: jobDone, mark: jobMark},
		{name: "app_deployment", fn: w.deployApp, done: appDone, mark: appMark},
	}
}

// checkDependencies verifies the tools the rest of the flow shells out to.
func (w *Wizard) checkDependencies(ctx context.Context, _ *State) error {
	version, err := w.client.Version(ctx)
	if err != nil {
		return phaseErr("dependencies", ErrorClassPermanent,
			fmt.Errorf("control-plane CLI not available: %w", err))
	}
	w.log.WithField("cli_version", version).Info("Control-plane CLI found")

	if _, err := exec.LookPath("npm"); err != nil {
		w.log.Warn("npm not found, the app build step will fail if a frontend build is needed")
	}
	return nil
}

// authenticate confirms the CLI has working credentials and records the
// authenticated user for later path derivation.
func (w *Wizard) authenticate(ctx context.Context, state *State) error {
	user, err := w.client.CurrentUser(ctx)
	if err != nil {
		return phaseErr("authentication", ErrorClassPermanent,
			fmt.Errorf("not authenticated to the platform: %w", err))
	}
	w.log.WithField("user", user.UserName).Info("Authenticated")
	state.SetData("databricks_user", user.UserName)

	if profile := os.Getenv("DATABRICKS_CONFIG_PROFILE"); profile != "" {
		envPath := filepath.Join(w.opts.ProjectRoot, config.EnvLocalFile)
		if err := config.SetEnvLocal(envPath, map[string]string{
			"DATABRICKS_CONFIG_PROFILE": profile,
		}); err != nil {
			w.log.WithError(err).Warn("Could not record auth profile in .env.local")
		}
	}
	return nil
}

// configureDatabase tests the connection, persists the connection settings,
// runs migrations, and mirrors the password into the platform secret store.
func (w *Wizard) configureDatabase(ctx context.Context, state *State) error {
	if w.opts.DBHost == "" {
		return phaseErr("database", ErrorClassPermanent,
			errors.New("database host is required (--db-host)"))
	}
	if w.opts.DBPassword == "" {
		return phaseErr("database", ErrorClassPermanent,
			errors.New("database password is required (--db-password or DB_PASSWORD)"))
	}

	conn := database.ConnConfig{
		Host:     w.opts.DBHost,
		Port:     w.opts.DBPort,
		Name:     w.opts.DBName,
		User:     w.opts.DBUser,
		Password: w.opts.DBPassword,
	}
	if err := database.TestConnection(ctx, conn, w.log); err != nil {
		return phaseErr("database", ErrorClassPermanent, err)
	}

	// Persist the connection settings before migrating, so a migration
	// failure still leaves a correct base.yaml behind.
	dbSection := config.Document{
		"database": map[string]interface{}{
			"host":   w.opts.DBHost,
			"port":   w.opts.DBPort,
			"name":   w.opts.DBName,
			"user":   w.opts.DBUser,
			"schema": w.opts.DBSchema,
		},
	}
	if err := config.UpdateFile(w.opts.ConfigPath, dbSection); err != nil {
		return phaseErr("database", ErrorClassPermanent,
			fmt.Errorf("could not update %s: %w", w.opts.ConfigPath, err))
	}

	envPath := filepath.Join(w.opts.ProjectRoot, config.EnvLocalFile)
	if err := config.SetEnvLocal(envPath, map[string]string{"DB_PASSWORD": w.opts.DBPassword}); err != nil {
		w.log.WithError(err).Warn("Could not update .env.local with database password")
	}

	if err := database.Migrate(ctx, conn, w.log); err != nil {
		return phaseErr("database", ErrorClassPermanent, err)
	}

	state.SetData("database", map[string]interface{}{
		"host":   w.opts.DBHost,
		"port":   w.opts.DBPort,
		"name":   w.opts.DBName,
		"user":   w.opts.DBUser,
		"schema": w.opts.DBSchema,
	})

	// A failed secret write is survivable: the operator can create the
	// secret manually, and the next app deployment picks it up.
	if err := w.manager.EnsureSecret(ctx, w.opts.SecretScope, w.opts.SecretKey, w.opts.DBPassword); err != nil {
		w.log.WithError(err).Warn("Could not store database password in the secret store")
	} else {
		secretSection := config.Document{
			"secrets": map[string]interface{}{
				"database_password": map[string]interface{}{
					"scope": w.opts.SecretScope,
					"key":   w.opts.SecretKey,
				},
			},
		}
		if err := config.UpdateFile(w.opts.ConfigPath, secretSection); err != nil {
			w.log.WithError(err).Warn("Could not record secret reference in base config")
		}
	}
	return nil
}

// configureCatalogAndVolume converges the catalog, schema, and upload
// volume, then records the output table and upload policy. The catalog and
// volume halves checkpoint independently.
func (w *Wizard) configureCatalogAndVolume(ctx context.Context, state *State) error {
	catalog, schema, err := w.resolveCatalogSchema(state)
	if err != nil {
		return phaseErr("catalog_volume", ErrorClassPermanent, err)
	}

	if !state.IsComplete(PhaseCatalog) {
		if err := w.manager.EnsureCatalog(ctx, catalog); err != nil {
			return phaseErr("catalog_volume", ErrorClassPermanent,
				fmt.Errorf("could not ensure catalog %s: %w", catalog, err))
		}
		if err := w.manager.EnsureSchema(ctx, catalog, schema); err != nil {
			return phaseErr("catalog_volume", ErrorClassPermanent,
				fmt.Errorf("could not ensure schema %s.%s: %w", catalog, schema, err))
		}
		state.SetData("catalog", catalog)
		state.SetData("schema", schema)
		state.MarkComplete(PhaseCatalog)
		if err := w.store.Save(state); err != nil {
			w.log.WithError(err).Warn("Could not checkpoint catalog progress")
		}
	} else {
		w.log.Info("Catalog and schema already configured, skipping")
	}

	volumePath := state.GetString("volume_path")
	if !state.IsComplete(PhaseVolume) {
		volumePath, err = w.manager.EnsureVolume(ctx, catalog, schema, w.opts.VolumeName)
		if err != nil {
			return phaseErr("catalog_volume", ErrorClassPermanent,
				fmt.Errorf("could not ensure volume: %w", err))
		}
		if err := w.manager.VerifyVolumeWrite(ctx, volumePath); err != nil {
			return phaseErr("catalog_volume", ErrorClassPermanent, err)
		}
		state.SetData("volume_path", volumePath)
		state.MarkComplete(PhaseVolume)
		if err := w.store.Save(state); err != nil {
			w.log.WithError(err).Warn("Could not checkpoint volume progress")
		}
	} else {
		w.log.Info("Volume already configured, skipping")
	}

	outputTable := w.opts.OutputTable
	if outputTable == "" {
		outputTable = fmt.Sprintf("%s.%s.ai_parse_document_output", catalog, schema)
	}
	updates := config.Document{
		"databricks": map[string]interface{}{
			"output_table": outputTable,
		},
		"upload": map[string]interface{}{
			"base_path":          volumePath,
			"max_size_mb":        w.opts.UploadMaxSizeMB,
			"allowed_extensions": toInterfaceSlice(w.opts.UploadAllowedExtensions),
		},
	}
	if err := config.UpdateFile(w.opts.ConfigPath, updates); err != nil {
		w.log.WithError(err).Warn("Could not record output table and upload policy")
	}
	state.SetData("output_table", outputTable)
	return nil
}

// resolveCatalogSchema splits the configured catalog.schema pair, deriving a
// default from the authenticated user when none was given.
func (w *Wizard) resolveCatalogSchema(state *State) (string, string, error) {
	catalogSchema := w.opts.CatalogSchema
	if catalogSchema == "" {
		user := state.GetString("databricks_user")
		first := user
		if at := strings.Index(user, "@"); at > 0 {
			first = user[:at]
			if dot := strings.Index(first, "."); dot > 0 {
				first = first[:dot]
			}
		}
		if first == "" {
			first = "user"
		}
		catalogSchema = first + "_demos.information_extraction"
	}
	catalog, schema, found := strings.Cut(catalogSchema, ".")
	if !found || catalog == "" || schema == "" {
		return "", "", fmt.Errorf("invalid catalog.schema format: %s", catalogSchema)
	}
	return catalog, schema, nil
}

// deployJob syncs the project to the workspace, points the bundle at the
// synced notebook, deploys the bundle, and records the resulting job id.
func (w *Wizard) deployJob(ctx context.Context, state *State) error {
	workspacePath := strings.TrimRight(w.opts.WorkspacePath, "/")
	if workspacePath == "" {
		user := state.GetString("databricks_user")
		if user == "" {
			user = "user"
		}
		workspacePath = fmt.Sprintf("/Workspace/Users/%s/databricks-apps-resources/%s", user, w.opts.AppName)
	}
	state.SetData("workspace_path", workspacePath)

	// The batch job reads one derived projection instead of duplicating the
	// database and secret settings; refresh it before the code ships.
	base, err := config.Load(w.opts.ConfigPath)
	if err != nil {
		return phaseErr("job_deployment", ErrorClassPermanent, err)
	}
	if err := config.UpdateFile(w.opts.ConfigPath, config.AddJobSection(base)); err != nil {
		w.log.WithError(err).Warn("Could not refresh job config section")
	}

	w.log.WithField("workspace_path", workspacePath).Info("Syncing project to workspace")
	if err := w.client.SyncWorkspace(ctx, w.opts.ProjectRoot, workspacePath); err != nil {
		return phaseErr("job_deployment", ErrorClassTransient,
			fmt.Errorf("workspace sync failed: %w", err))
	}

	notebookPath := workspacePath + "/databricks-job-resources/information-extraction-main"
	bundleConf := filepath.Join(w.opts.BundleDir, "lakeflow-conf.yaml")
	if _, err := config.UpdateBundleNotebookPath(bundleConf, notebookPath); err != nil {
		w.log.WithError(err).Warn("Could not update bundle notebook path")
	}

	jobID, err := w.manager.DeployJobBundle(ctx, w.opts.BundleDir)
	if err != nil {
		return phaseErr("job_deployment", ErrorClassTransient, err)
	}
	state.SetData("job_id", jobID)

	jobSection := config.Document{
		"databricks": map[string]interface{}{"job_id": jobID},
	}
	if err := config.UpdateFile(w.opts.ConfigPath, jobSection); err != nil {
		w.log.WithError(err).Warn("Could not record job id in base config")
	}
	return nil
}

// deployApp converges the application definition with its resource
// attachments, grants its service principal data access, builds and deploys
// the application code, and records the resulting URL.
func (w *Wizard) deployApp(ctx context.Context, state *State) error {
	jobID := state.GetInt64("job_id")
	volumePath := state.GetString("volume_path")
	workspacePath := state.GetString("workspace_path")
	if jobID == 0 || volumePath == "" || workspacePath == "" {
		return phaseErr("app_deployment", ErrorClassPermanent,
			errors.New("missing job id, volume path, or workspace path from previous phases"))
	}

	if err := config.SyncManifestFile(w.opts.ConfigPath, w.opts.ManifestPath); err != nil {
		w.log.WithError(err).Warn("Could not sync deployment manifest from base config")
	} else if base, err := config.Load(w.opts.ConfigPath); err == nil {
		if manifest, err := config.Load(w.opts.ManifestPath); err == nil {
			for _, msg := range config.CheckConsistency(base, manifest) {
				w.log.Warnf("Config inconsistency: %s", msg)
			}
		}
	}

	secret := config.SecretRef{Scope: w.opts.SecretScope, Key: w.opts.SecretKey}
	app, err := w.manager.EnsureApp(ctx, w.opts.AppName, jobID, volumePath, secret)
	if err != nil {
		return phaseErr("app_deployment", ErrorClassTransient,
			fmt.Errorf("could not converge app definition: %w", err))
	}

	if app != nil && app.ServicePrincipalID.String() != "" {
		catalog := state.GetString("catalog")
		schema := state.GetString("schema")
		if catalog != "" && schema != "" {
			if err := w.manager.GrantAppPermissions(ctx, app.ServicePrincipalID.String(), catalog, schema); err != nil {
				w.log.WithError(err).Warn("Could not grant table permissions, grant them manually")
			}
		} else {
			w.log.Warn("Missing catalog or schema, skipping permission grants")
		}
	} else {
		w.log.Warn("Could not determine app service principal, skipping permission grants")
	}

	if err := w.buildFrontend(ctx); err != nil {
		return phaseErr("app_deployment", ErrorClassPermanent, err)
	}

	w.log.Info("Deploying application code")
	if err := w.client.DeployAppCode(ctx, w.opts.AppName, workspacePath); err != nil {
		return phaseErr("app_deployment", ErrorClassTransient,
			fmt.Errorf("app code deployment failed: %w", err))
	}

	if app, err := w.client.GetApp(ctx, w.opts.AppName); err == nil && app.URL != "" {
		state.SetData("app_url", app.URL)
		w.log.WithField("app_url", app.URL).Info("Application deployed")
	}
	return nil
}

// buildFrontend runs the client build when a client directory exists. A
// missing directory means a backend-only deployment and is not an error.
func (w *Wizard) buildFrontend(ctx context.Context) error {
	if _, err := os.Stat(w.opts.ClientDir); err != nil {
		w.log.Info("No client directory, skipping frontend build")
		return nil
	}

	w.log.Info("Building frontend")
	buildCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	cmd := exec.CommandContext(buildCtx, "npm", "run", "build")
	cmd.Dir = w.opts.ClientDir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("frontend build failed: %w\n%s", err, strings.TrimSpace(string(out)))
	}
	w.log.Info("Frontend built")
	return nil
}

// validate runs the closing health checks. Failures warn but never fail the
// run: the deployment already converged, and slow-starting apps are normal.
func (w *Wizard) validate(ctx context.Context, state *State) {
	w.log.Info("Running validation checks")

	if len(w.opts.LocalCommand) > 0 {
		status := w.verifier.CheckLocal(ctx, health.LocalOptions{
			Dir:       w.opts.ProjectRoot,
			Command:   w.opts.LocalCommand,
			HealthURL: "http://localhost:8000/health",
		})
		if status.OK() {
			w.log.Info("Local environment check passed")
		} else {
			w.log.Warnf("Local environment check %s, you can test manually later", status)
		}
	}

	if appURL := state.GetString("app_url"); appURL != "" {
		status := w.verifier.CheckRemote(ctx, strings.TrimRight(appURL, "/")+"/health", health.DefaultRemotePolicy)
		if status.OK() {
			w.log.Info("Deployed application check passed")
		} else {
			w.log.Warnf("Deployed application check %s", status)
		}
	}

	if w.opts.CheckJobTrigger {
		if jobID := state.GetInt64("job_id"); jobID != 0 {
			status := w.verifier.CheckJobTrigger(ctx, w.client, jobID, health.Policy{
				MaxAttempts: 6,
				InitialWait: 5 * time.Second,
				Interval:    10 * time.Second,
			})
			if status.OK() {
				w.log.Info("Job trigger check passed")
			} else {
				w.log.Warnf("Job trigger check %s", status)
			}
		}
	}
}

// report logs the converged identifiers as the closing summary.
func (w *Wizard) report(state *State) {
	ev := w.log.Zerolog().Info()
	if catalog := state.GetString("catalog"); catalog != "" {
		ev = ev.Str("catalog", catalog).Str("schema", state.GetString("schema"))
	}
	if volumePath := state.GetString("volume_path"); volumePath != "" {
		ev = ev.Str("volume_path", volumePath)
	}
	if workspacePath := state.GetString("workspace_path"); workspacePath != "" {
		ev = ev.Str("workspace_path", workspacePath)
	}
	if jobID := state.GetInt64("job_id"); jobID != 0 {
		ev = ev.Int64("job_id", jobID)
	}
	if appURL := state.GetString("app_url"); appURL != "" {
		ev = ev.Str("app_url", appURL)
	}
	ev.Msg("Setup complete")
}

func toInterfaceSlice(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
