package resources

import (
	"context"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/docforge/docforge/pkg/controlplane"
	"github.com/docforge/docforge/pkg/telemetry"
)

// Manager converges control-plane resources. All operations are additive
// and idempotent; partial failures leave earlier successes in place for the
// next run to pick up.
type Manager struct {
	client *controlplane.Client
	log    *telemetry.Logger
}

// NewManager builds a resource manager over a control-plane client.
func NewManager(client *controlplane.Client, log *telemetry.Logger) *Manager {
	return &Manager{
		client: client,
		log:    log.NewComponentLogger("resources"),
	}
}

// ensure runs the shared probe-then-create flow. An Unknown probe result
// still attempts creation: skipping on a failed list call could silently
// leave the resource missing, while creating an existing one only costs an
// already-exists diagnostic we accept.
func (m *Manager) ensure(identity string, exists controlplane.Existence, create func() error) error {
	log := m.log.WithResource(identity)

	switch exists {
	case controlplane.Present:
		log.Info("Resource already exists, skipping creation")
		return nil
	case controlplane.Unknown:
		log.Warn("Could not determine resource existence, attempting creation")
	default:
		log.Info("Resource absent, creating")
	}

	if err := create(); err != nil {
		if controlplane.IsAlreadyExists(err) {
			log.Info("Resource already exists (reported by create call)")
			return nil
		}
		return err
	}

	log.Info("Resource created")
	return nil
}

// EnsureCatalog makes sure the catalog exists.
func (m *Manager) EnsureCatalog(ctx context.Context, catalog string) error {
	return m.ensure(catalog, m.client.CatalogExists(ctx, catalog), func() error {
		return m.client.CreateCatalog(ctx, catalog)
	})
}

// EnsureSchema makes sure the schema exists inside its catalog.
func (m *Manager) EnsureSchema(ctx context.Context, catalog, schema string) error {
	identity := catalog + "." + schema
	return m.ensure(identity, m.client.SchemaExists(ctx, catalog, schema), func() error {
		return m.client.CreateSchema(ctx, catalog, schema)
	})
}

// EnsureVolume makes sure the managed volume exists and returns its
// /Volumes path.
func (m *Manager) EnsureVolume(ctx context.Context, catalog, schema, volume string) (string, error) {
	identity := catalog + "." + schema + "." + volume
	err := m.ensure(identity, m.client.VolumeExists(ctx, catalog, schema, volume), func() error {
		return m.client.CreateVolume(ctx, catalog, schema, volume)
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("/Volumes/%s/%s/%s", catalog, schema, volume), nil
}

// ParseVolumePath splits a /Volumes/catalog/schema/volume path into its
// components.
func ParseVolumePath(volumePath string) (catalog, schema, volume string, err error) {
	parts := strings.Split(strings.Trim(volumePath, "/"), "/")
	if len(parts) != 4 || parts[0] != "Volumes" {
		return "", "", "", fmt.Errorf("invalid volume path format: %s", volumePath)
	}
	return parts[1], parts[2], parts[3], nil
}

// VolumeQualifiedName converts a /Volumes path to the catalog.schema.volume
// form the grants and securable APIs expect.
func VolumeQualifiedName(volumePath string) (string, error) {
	catalog, schema, volume, err := ParseVolumePath(volumePath)
	if err != nil {
		return "", err
	}
	return catalog + "." + schema + "." + volume, nil
}

// VerifyVolumeWrite proves write permission by uploading a uniquely named
// marker file and deleting it again. A failed cleanup is logged, not
// escalated: the write permission was already proven.
func (m *Manager) VerifyVolumeWrite(ctx context.Context, volumePath string) error {
	log := m.log.WithResource(volumePath)

	local, err := os.CreateTemp("", "docforge-write-probe-*.txt")
	if err != nil {
		return fmt.Errorf("failed to create local probe file: %w", err)
	}
	localPath := local.Name()
	defer os.Remove(localPath)

	if _, err := local.WriteString("docforge write probe - safe to delete\n"); err != nil {
		local.Close()
		return fmt.Errorf("failed to write local probe file: %w", err)
	}
	if err := local.Close(); err != nil {
		return fmt.Errorf("failed to close local probe file: %w", err)
	}

	remotePath := path.Join(volumePath, ".docforge-write-probe-"+uuid.NewString()+".txt")

	log.Info("Verifying volume write permission")
	if err := m.client.UploadFile(ctx, localPath, remotePath); err != nil {
		return fmt.Errorf("volume write probe failed: %w", err)
	}
	log.Info("Volume write probe succeeded")

	if err := m.client.DeleteFile(ctx, remotePath); err != nil {
		log.WithError(err).Warn("Could not delete write probe file")
	}
	return nil
}

// EnsureSecret provisions the scope, then writes the key. Writing always
// overwrites so a rotated password converges on re-run.
func (m *Manager) EnsureSecret(ctx context.Context, scope, key, value string) error {
	err := m.ensure("scope:"+scope, m.client.SecretScopeExists(ctx, scope), func() error {
		return m.client.CreateSecretScope(ctx, scope)
	})
	if err != nil {
		return fmt.Errorf("failed to ensure secret scope %s: %w", scope, err)
	}

	if err := m.client.PutSecret(ctx, scope, key, value); err != nil {
		return fmt.Errorf("failed to write secret %s/%s: %w", scope, key, err)
	}
	m.log.WithResource(scope + "/" + key).Info("Secret written")
	return nil
}

// DeployJobBundle deploys the bundle at dir, extracts the job id from the
// deployment summary, and verifies the job is reachable.
func (m *Manager) DeployJobBundle(ctx context.Context, dir string) (int64, error) {
	m.log.WithField("bundle_dir", dir).Info("Deploying job bundle")

	if err := m.client.DeployBundle(ctx, dir); err != nil {
		return 0, err
	}

	summary, err := m.client.BundleSummary(ctx, dir)
	if err != nil {
		return 0, fmt.Errorf("bundle deployed but summary unavailable: %w", err)
	}

	jobID, err := controlplane.ParseJobID(summary)
	if err != nil {
		return 0, fmt.Errorf("bundle deployed but job id not extractable: %w", err)
	}

	switch m.client.JobExists(ctx, jobID) {
	case controlplane.Absent:
		return 0, fmt.Errorf("deployed job %d is not visible on the control plane", jobID)
	case controlplane.Unknown:
		m.log.WithField("job_id", jobID).Warn("Could not verify deployed job, proceeding")
	}

	m.log.WithField("job_id", jobID).Info("Job bundle deployed")
	return jobID, nil
}
