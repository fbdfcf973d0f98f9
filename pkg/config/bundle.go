package config

import "fmt"

// UpdateBundleNotebookPath rewrites every notebook task in the job bundle
// config at path to point at workspaceNotebookPath, preserving everything
// else in the document. Returns the number of tasks updated.
func UpdateBundleNotebookPath(path, workspaceNotebookPath string) (int, error) {
	doc, err := Load(path)
	if err != nil {
		return 0, err
	}

	updated := 0
	resources, _ := doc["resources"].(map[string]interface{})
	jobs, _ := resources["jobs"].(map[string]interface{})
	for _, rawJob := range jobs {
		job, ok := rawJob.(map[string]interface{})
		if !ok {
			continue
		}
		tasks, _ := job["tasks"].([]interface{})
		for _, rawTask := range tasks {
			task, ok := rawTask.(map[string]interface{})
			if !ok {
				continue
			}
			notebookTask, ok := task["notebook_task"].(map[string]interface{})
			if !ok {
				continue
			}
			notebookTask["notebook_path"] = workspaceNotebookPath
			updated++
		}
	}
	if updated == 0 {
		return 0, fmt.Errorf("no notebook tasks found in %s", path)
	}

	return updated, WriteAtomic(path, doc)
}
