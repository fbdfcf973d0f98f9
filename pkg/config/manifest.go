package config

import (
	"fmt"
	"strconv"
)

// Env var names projected from base.yaml into the deployment manifest.
const (
	EnvDBHost         = "DB_HOST"
	EnvDBPort         = "DB_PORT"
	EnvDBName         = "DB_NAME"
	EnvDBUser         = "DB_USER"
	EnvDBPassword     = "DB_PASSWORD"
	EnvJobID          = "DATABRICKS_JOB_ID"
	EnvUploadBasePath = "UPLOAD_BASE_PATH"
)

// App resource attachment names. Every valueFrom pointer in app.yaml must
// name one of these, and the attachment payload sent to the control plane
// declares exactly these names; CheckConsistency enforces the pairing.
const (
	ResourceNameJob    = "information_extraction_job"
	ResourceNameVolume = "documents_upload_volume"
	ResourceNameSecret = "lakebase_db_password"
)

// AttachmentNames lists the declared app resource attachment names.
func AttachmentNames() []string {
	return []string{ResourceNameJob, ResourceNameVolume, ResourceNameSecret}
}

// EnvEntry is one element of the manifest env list: a name with either a
// literal non-secret value or a valueFrom pointer into an app resource.
type EnvEntry struct {
	Name      string
	Value     string
	ValueFrom string
}

// DeriveManifestEnv projects the fixed set of base.yaml keys into manifest
// env entries. Secret material is never projected as a value: the database
// password appears only as a valueFrom pointer, and only once base.yaml
// carries a secret reference for it.
func DeriveManifestEnv(base Document) []EnvEntry {
	var entries []EnvEntry

	if _, ok := Get(base, "database"); ok {
		entries = append(entries,
			EnvEntry{Name: EnvDBHost, Value: GetString(base, "database.host")},
			EnvEntry{Name: EnvDBPort, Value: strconv.Itoa(intOrDefault(base, "database.port", 5432))},
			EnvEntry{Name: EnvDBName, Value: GetString(base, "database.name")},
			EnvEntry{Name: EnvDBUser, Value: GetString(base, "database.user")},
		)
	}

	if jobID, ok := GetInt(base, "databricks.job_id"); ok {
		entries = append(entries, EnvEntry{Name: EnvJobID, Value: strconv.Itoa(jobID)})
	}

	if basePath := GetString(base, "upload.base_path"); basePath != "" {
		entries = append(entries, EnvEntry{Name: EnvUploadBasePath, Value: basePath})
	}

	if scope := GetString(base, "secrets.database_password.scope"); scope != "" {
		entries = append(entries, EnvEntry{Name: EnvDBPassword, ValueFrom: ResourceNameSecret})
	}

	return entries
}

// SyncManifest rewrites the manifest's env entries from the base document,
// preserving unrelated entries and every existing valueFrom pointer. The
// result replaces the manifest document's env list in place.
func SyncManifest(base, manifest Document) {
	env := manifestEnv(manifest)
	index := make(map[string]int, len(env))
	for i, item := range env {
		if name, _ := item["name"].(string); name != "" {
			index[name] = i
		}
	}

	for _, derived := range DeriveManifestEnv(base) {
		i, exists := index[derived.Name]
		if !exists {
			entry := map[string]interface{}{"name": derived.Name}
			if derived.ValueFrom != "" {
				entry["valueFrom"] = derived.ValueFrom
			} else {
				entry["value"] = derived.Value
			}
			env = append(env, entry)
			index[derived.Name] = len(env) - 1
			continue
		}

		entry := env[i]
		if derived.ValueFrom != "" {
			entry["valueFrom"] = derived.ValueFrom
			delete(entry, "value")
			continue
		}
		// Never downgrade a secret-backed entry to a literal value.
		if _, secret := entry["valueFrom"]; secret {
			continue
		}
		entry["value"] = derived.Value
	}

	out := make([]interface{}, len(env))
	for i, item := range env {
		out[i] = item
	}
	manifest["env"] = out
}

// SyncManifestFile applies SyncManifest to the documents at basePath and
// manifestPath, writing the manifest back atomically.
func SyncManifestFile(basePath, manifestPath string) error {
	base, err := Load(basePath)
	if err != nil {
		return err
	}
	manifest, err := Load(manifestPath)
	if err != nil {
		return err
	}
	SyncManifest(base, manifest)
	return WriteAtomic(manifestPath, manifest)
}

// CheckConsistency validates that the manifest agrees with the base document.
// It returns one human-readable error string per mismatched field and an
// empty slice iff the documents are consistent. Pure: no I/O, no mutation.
func CheckConsistency(base, manifest Document) []string {
	var errs []string

	values := make(map[string]string)
	pointers := make(map[string]string)
	for _, item := range manifestEnv(manifest) {
		name, _ := item["name"].(string)
		if name == "" {
			continue
		}
		if from, ok := item["valueFrom"].(string); ok {
			pointers[name] = from
			continue
		}
		values[name] = stringify(item["value"])
	}

	if _, ok := Get(base, "database"); ok {
		checks := []struct {
			env  string
			path string
		}{
			{EnvDBHost, "database.host"},
			{EnvDBName, "database.name"},
			{EnvDBUser, "database.user"},
		}
		for _, c := range checks {
			want := GetString(base, c.path)
			if values[c.env] != want {
				errs = append(errs, fmt.Sprintf("%s mismatch: app.yaml=%s vs base.yaml=%s",
					c.env, values[c.env], want))
			}
		}

		wantPort := intOrDefault(base, "database.port", 5432)
		if raw, ok := values[EnvDBPort]; ok && raw != "" {
			port, err := strconv.Atoi(raw)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s in app.yaml is not a valid integer: %s", EnvDBPort, raw))
			} else if port != wantPort {
				errs = append(errs, fmt.Sprintf("%s mismatch: app.yaml=%d vs base.yaml=%d",
					EnvDBPort, port, wantPort))
			}
		}
	}

	// Cross-document referential integrity: every valueFrom must name a
	// declared app resource attachment.
	known := make(map[string]bool)
	for _, name := range AttachmentNames() {
		known[name] = true
	}
	for env, from := range pointers {
		if !known[from] {
			errs = append(errs, fmt.Sprintf(
				"%s valueFrom=%s does not match any declared app resource attachment", env, from))
		}
	}

	return errs
}

// AddJobSection derives the job configuration section from the database,
// databricks, and secrets sections so the batch job reads one projection
// instead of duplicating values.
func AddJobSection(base Document) Document {
	return Document{
		"job": map[string]interface{}{
			"db_password_scope":              GetString(base, "secrets.database_password.scope"),
			"lakebase_db_password_key":       GetString(base, "secrets.database_password.key"),
			"lakebase_instance_host":         GetString(base, "database.host"),
			"lakebase_db_name":               GetString(base, "database.name"),
			"lakebase_schema_name":           GetString(base, "database.schema"),
			"ai_parse_document_output_table": GetString(base, "databricks.output_table"),
		},
	}
}

func manifestEnv(manifest Document) []map[string]interface{} {
	raw, _ := manifest["env"].([]interface{})
	env := make([]map[string]interface{}, 0, len(raw))
	for _, item := range raw {
		if m, ok := item.(map[string]interface{}); ok {
			env = append(env, m)
		}
	}
	return env
}

func intOrDefault(doc Document, keyPath string, def int) int {
	if n, ok := GetInt(doc, keyPath); ok {
		return n
	}
	return def
}

func stringify(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case int:
		return strconv.Itoa(val)
	default:
		return fmt.Sprintf("%v", val)
	}
}
