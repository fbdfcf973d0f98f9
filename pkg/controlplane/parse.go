package controlplane

import (
	"errors"
	"strconv"
	"strings"
)

// ErrJobIDNotFound means the bundle summary carried no recognizable job URL.
var ErrJobIDNotFound = errors.New("no job id found in bundle summary")

// ParseJobID extracts the platform-assigned job id from a human-readable
// bundle deployment summary. The summary has no structured output mode, so
// the id is pulled out of a line like
//
//	URL:  https://host/jobs/123456?o=789
//
// as the numeric path segment between "/jobs/" and the next "?". Summaries
// without such a line yield ErrJobIDNotFound, never a panic.
func ParseJobID(summary string) (int64, error) {
	for _, line := range strings.Split(summary, "\n") {
		if !strings.Contains(line, "URL:") || !strings.Contains(line, "/jobs/") {
			continue
		}
		_, urlPart, _ := strings.Cut(line, "URL:")
		_, tail, found := strings.Cut(urlPart, "/jobs/")
		if !found {
			continue
		}
		idText := tail
		if i := strings.IndexAny(idText, "?/"); i >= 0 {
			idText = idText[:i]
		}
		idText = strings.TrimSpace(idText)
		jobID, err := strconv.ParseInt(idText, 10, 64)
		if err != nil {
			continue
		}
		return jobID, nil
	}
	return 0, ErrJobIDNotFound
}
