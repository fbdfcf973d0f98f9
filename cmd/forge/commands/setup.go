package commands

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/docforge/docforge/pkg/config"
	"github.com/docforge/docforge/pkg/wizard"
)

func newSetupCommand() *cobra.Command {
	var (
		opts  wizard.Options
		reset bool
	)

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Run the resumable setup flow",
		Long: `Run the multi-phase setup flow: dependency checks, authentication,
database configuration and migrations, catalog and volume provisioning,
job bundle deployment, app deployment, and closing health checks.

Progress is checkpointed to .setup-state.json after every phase.
Re-running resumes from the first incomplete phase; --reset starts over.`,
		Example: `  # First run (password read from DB_PASSWORD or .env.local if unset)
  forge setup --db-host instance.example.com --db-user app_user

  # Resume after a failure
  forge setup

  # Start from scratch
  forge setup --reset`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log, metrics, err := newTelemetry()
			if err != nil {
				return err
			}

			opts.ProjectRoot = projectRoot
			opts.ConfigPath = configPath
			if opts.StatePath == "" {
				opts.StatePath = filepath.Join(projectRoot, wizard.StateFile)
			}

			// The password never has a flag default; resolve it from the
			// environment or the gitignored .env.local.
			if opts.DBPassword == "" {
				opts.DBPassword = os.Getenv("DB_PASSWORD")
			}
			if opts.DBPassword == "" {
				envPath := filepath.Join(projectRoot, config.EnvLocalFile)
				if values, err := config.ReadEnvLocal(envPath); err == nil {
					opts.DBPassword = values["DB_PASSWORD"]
				}
			}

			client, manager, verifier := newStack(log, metrics)
			w := wizard.New(opts, client, manager, verifier, log, metrics)

			if reset {
				store := wizard.NewStore(opts.StatePath, log)
				if err := store.Reset(); err != nil {
					return err
				}
			}

			if err := w.Run(cmd.Context()); err != nil {
				return err
			}

			if lines, err := metrics.Summary(); err == nil {
				for _, line := range lines {
					log.Debug(line)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.AppName, "app-name", "information-extraction-app", "managed app name")
	cmd.Flags().StringVar(&opts.CatalogSchema, "catalog-schema", "", "catalog.schema pair (default derived from the authenticated user)")
	cmd.Flags().StringVar(&opts.VolumeName, "volume-name", "documents", "upload volume name")
	cmd.Flags().StringVar(&opts.WorkspacePath, "workspace-path", "", "workspace path for app files (default derived from the authenticated user)")
	cmd.Flags().StringVar(&opts.OutputTable, "output-table", "", "full output table name (default <catalog>.<schema>.ai_parse_document_output)")
	cmd.Flags().StringVar(&opts.BundleDir, "bundle-dir", "", "job bundle directory (default <project-root>/databricks-job-resources)")

	cmd.Flags().StringVar(&opts.DBHost, "db-host", "", "database host")
	cmd.Flags().IntVar(&opts.DBPort, "db-port", 5432, "database port")
	cmd.Flags().StringVar(&opts.DBName, "db-name", "information_extractor", "database name")
	cmd.Flags().StringVar(&opts.DBUser, "db-user", "", "database user")
	cmd.Flags().StringVar(&opts.DBPassword, "db-password", "", "database password (prefer DB_PASSWORD or .env.local)")
	cmd.Flags().StringVar(&opts.DBSchema, "db-schema", "information_extraction", "application schema name")

	cmd.Flags().StringVar(&opts.SecretScope, "secret-scope", "information_extraction", "secret scope for the database password")
	cmd.Flags().StringVar(&opts.SecretKey, "secret-key", "lakebase_db_password", "secret key for the database password")

	cmd.Flags().IntVar(&opts.UploadMaxSizeMB, "upload-max-size-mb", 50, "maximum upload size in MB")
	cmd.Flags().StringSliceVar(&opts.UploadAllowedExtensions, "upload-extensions",
		[]string{".pdf", ".docx", ".doc", ".png", ".jpg", ".jpeg", ".txt"}, "allowed upload file extensions")

	cmd.Flags().BoolVar(&opts.SkipValidate, "skip-validate", false, "skip the closing health checks")
	cmd.Flags().BoolVar(&opts.CheckJobTrigger, "check-job-trigger", false, "trigger a test job run during validation")
	cmd.Flags().StringSliceVar(&opts.LocalCommand, "local-check-command", nil, "command for the local smoke test (disabled when empty)")
	cmd.Flags().BoolVar(&reset, "reset", false, "discard the checkpoint and start from scratch")

	return cmd
}
