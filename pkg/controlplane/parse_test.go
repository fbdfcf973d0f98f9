package controlplane

import (
	"errors"
	"testing"
)

func TestParseJobID(t *testing.T) {
	summary := `Name: information-extraction
Target: dev
Workspace:
  Host: https://adb-123.azuredatabricks.net
Resources:
  Jobs:
    information_extraction:
      Name: information-extraction
      URL:  https://adb-123.azuredatabricks.net/jobs/123456?o=789
`
	jobID, err := ParseJobID(summary)
	if err != nil {
		t.Fatalf("ParseJobID: %v", err)
	}
	if jobID != 123456 {
		t.Errorf("jobID = %d, want 123456", jobID)
	}
}

func TestParseJobIDTrailingSlash(t *testing.T) {
	jobID, err := ParseJobID("URL: https://host/jobs/42/runs\n")
	if err != nil {
		t.Fatalf("ParseJobID: %v", err)
	}
	if jobID != 42 {
		t.Errorf("jobID = %d, want 42", jobID)
	}
}

func TestParseJobIDNotFound(t *testing.T) {
	cases := map[string]string{
		"empty":          "",
		"no URL line":    "Deployment complete!\n",
		"non-job URL":    "URL: https://host/dashboards/99\n",
		"non-numeric id": "URL: https://host/jobs/latest\n",
	}
	for name, summary := range cases {
		if _, err := ParseJobID(summary); !errors.Is(err, ErrJobIDNotFound) {
			t.Errorf("%s: err = %v, want ErrJobIDNotFound", name, err)
		}
	}
}
