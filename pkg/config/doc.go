// Package config manages the docforge configuration documents.
//
// Three files make up the configuration surface:
//
//   - config/base.yaml: the single source of truth. Sections: database
//     (host/port/name/user/schema, never the password), databricks
//     (job_id, output_table), upload (base_path, max_size_mb,
//     allowed_extensions), secrets (scope+key references into the
//     platform secret store), and a derived job section for the batch job.
//   - app.yaml: the deployment manifest consumed by the hosting platform.
//     Its env list carries either literal non-secret values or valueFrom
//     pointers into platform-managed app resources.
//   - .env.local: gitignored KEY=VALUE file holding the plaintext database
//     password and the control-plane auth profile for local development.
//
// All document writes go through an atomic temp-file-and-rename so a
// killed process never leaves a half-written config behind.
package config
