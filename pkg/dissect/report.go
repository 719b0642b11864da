package dissect

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jllopis/chimera/pkg/signature"
)

// Artifact statuses recorded in the run report.
const (
	StatusDissected = "dissected"
	StatusFailed    = "failed"
)

// ArtifactResult is the per-artifact outcome, in discovery order.
type ArtifactResult struct {
	Index          int                          `json:"index"`
	Name           string                       `json:"name"`
	Path           string                       `json:"path"`
	Status         string                       `json:"status"`
	Error          string                       `json:"error,omitempty"`
	TensorCount    int                          `json:"tensor_count"`
	SkippedTensors []string                     `json:"skipped_tensors,omitempty"`
	ElapsedSeconds float64                      `json:"elapsed_seconds"`
	Signature      *signature.ArtifactSignature `json:"signature,omitempty"`
}

// Report is the run-level document written beside the blueprint.
type Report struct {
	RunID         string           `json:"run_id"`
	Name          string           `json:"name"`
	StartedAt     time.Time        `json:"started_at"`
	FinishedAt    time.Time        `json:"finished_at"`
	Discovered    int              `json:"discovered"`
	Dissected     int              `json:"dissected"`
	Artifacts     []ArtifactResult `json:"artifacts"`
	MergedTensors int              `json:"merged_tensors"`
	Buckets       map[string]int   `json:"buckets"`
	BlueprintPath string           `json:"blueprint_path,omitempty"`
}

// Summary is the one-line human outcome of a run.
func (r *Report) Summary() string {
	return fmt.Sprintf("dissected %d of %d artifacts", r.Dissected, r.Discovered)
}

// Save writes the report to dir as dissection_<unix>.json. Like the
// blueprint, reports are write-once: an existing file is an error.
func (r *Report) Save(dir string) (string, error) {
	path := filepath.Join(dir, fmt.Sprintf("dissection_%d.json", r.FinishedAt.Unix()))

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create report file: %w", err)
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(r); err != nil {
		return "", fmt.Errorf("encode report: %w", err)
	}
	return path, nil
}
