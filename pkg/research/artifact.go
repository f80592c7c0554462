package research

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// NewResearchID returns a short random id for one research run.
func NewResearchID() string {
	return uuid.New().String()[:8]
}

// ReportFilename is the artifact name for a research id.
func ReportFilename(id string) string {
	return fmt.Sprintf("research-%s.md", id)
}

// SaveReport writes the report verbatim to dir/research-<id>.md and returns
// the path.
func SaveReport(dir, id, report string) (string, error) {
	if dir == "" {
		dir = "."
	}
	path := filepath.Join(dir, ReportFilename(id))
	if err := os.WriteFile(path, []byte(report), 0644); err != nil {
		return "", fmt.Errorf("save report: %w", err)
	}
	return path, nil
}
