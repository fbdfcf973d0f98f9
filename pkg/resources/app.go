package resources

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/docforge/docforge/pkg/config"
	"github.com/docforge/docforge/pkg/controlplane"
)

// AppAttachment is one entry of the application resource payload. Its Name
// must equal the valueFrom pointer in app.yaml that consumes it; the
// config package's consistency check enforces the pairing.
type AppAttachment struct {
	Name        string            `json:"name"`
	Job         *JobAttachment    `json:"job,omitempty"`
	UCSecurable *SecurableRef     `json:"uc_securable,omitempty"`
	Secret      *SecretAttachment `json:"secret,omitempty"`
}

// JobAttachment attaches a job with a run permission.
type JobAttachment struct {
	ID         string `json:"id"`
	Permission string `json:"permission"`
}

// SecurableRef attaches a Unity Catalog securable (the upload volume).
type SecurableRef struct {
	Permission        string `json:"permission"`
	SecurableFullName string `json:"securable_full_name"`
	SecurableType     string `json:"securable_type"`
}

// SecretAttachment attaches a readable secret.
type SecretAttachment struct {
	Scope      string `json:"scope"`
	Key        string `json:"key"`
	Permission string `json:"permission"`
}

// AppAttachments builds the three resource attachments the application
// needs: the extraction job, the upload volume, and the database password
// secret.
func AppAttachments(jobID int64, volumePath string, secret config.SecretRef) ([]AppAttachment, error) {
	qualified, err := VolumeQualifiedName(volumePath)
	if err != nil {
		return nil, err
	}
	return []AppAttachment{
		{
			Name: config.ResourceNameJob,
			Job: &JobAttachment{
				ID:         fmt.Sprintf("%d", jobID),
				Permission: "CAN_MANAGE_RUN",
			},
		},
		{
			Name: config.ResourceNameVolume,
			UCSecurable: &SecurableRef{
				Permission:        "WRITE_VOLUME",
				SecurableFullName: qualified,
				SecurableType:     "VOLUME",
			},
		},
		{
			Name: config.ResourceNameSecret,
			Secret: &SecretAttachment{
				Scope:      secret.Scope,
				Key:        secret.Key,
				Permission: "READ",
			},
		},
	}, nil
}

// EnsureApp creates the application with its resource attachments, or
// updates the attachments when the application already exists, and returns
// the application's details.
func (m *Manager) EnsureApp(ctx context.Context, name string, jobID int64, volumePath string, secret config.SecretRef) (*controlplane.App, error) {
	log := m.log.WithResource(name)

	attachments, err := AppAttachments(jobID, volumePath, secret)
	if err != nil {
		return nil, err
	}

	switch m.client.AppExists(ctx, name) {
	case controlplane.Present:
		log.Info("App exists, updating resource attachments")
		payload, err := json.Marshal(map[string]interface{}{"resources": attachments})
		if err != nil {
			return nil, fmt.Errorf("failed to build app update payload: %w", err)
		}
		if err := m.client.UpdateApp(ctx, name, payload); err != nil {
			return nil, err
		}
	default:
		// Unknown collapses into a creation attempt; an existing app shows
		// up as an already-exists diagnostic we tolerate.
		log.Info("Creating app with resource attachments")
		payload, err := json.Marshal(map[string]interface{}{
			"name":      name,
			"resources": attachments,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to build app create payload: %w", err)
		}
		if _, err := m.client.CreateApp(ctx, payload); err != nil {
			if !controlplane.IsAlreadyExists(err) {
				return nil, err
			}
			log.Info("App already exists (reported by create call)")
		}
	}

	return m.client.GetApp(ctx, name)
}

// GrantAppPermissions grants the application's service principal the
// privileges it needs to read and write the extraction tables. Grants are
// additive only and independent: a failed catalog-level grant is logged and
// the schema-level grant is still attempted.
func (m *Manager) GrantAppPermissions(ctx context.Context, principal, catalog, schema string) error {
	log := m.log.WithField("principal", principal)

	if err := m.client.UpdateGrants(ctx, "catalog", catalog, principal, []string{"USE_CATALOG"}); err != nil {
		log.WithError(err).Warn("Could not grant USE_CATALOG, continuing with schema grants")
	} else {
		log.WithResource(catalog).Info("Granted USE_CATALOG")
	}

	fullName := catalog + "." + schema
	privileges := []string{"USE_SCHEMA", "SELECT", "MODIFY"}
	if err := m.client.UpdateGrants(ctx, "schema", fullName, principal, privileges); err != nil {
		return fmt.Errorf("failed to grant schema privileges on %s: %w", fullName, err)
	}
	log.WithResource(fullName).Info("Granted USE_SCHEMA, SELECT, MODIFY")
	return nil
}
