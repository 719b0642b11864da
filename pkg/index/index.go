// Package index keeps capability vectors of dissected artifacts in a
// similarity index, so a new artifact can be compared against everything
// dissected before it.
package index

import (
	"context"

	"github.com/jllopis/chimera/pkg/probe"
	"github.com/jllopis/chimera/pkg/signature"
)

// VectorSize is the dimensionality of a capability vector: one axis per
// canonical probe domain.
const VectorSize = 6

// Index is the similarity surface the dissection engine talks to.
type Index interface {
	// EnsureCollection creates the backing collection if it does not exist.
	EnsureCollection(ctx context.Context) error
	// UpsertSignatures indexes one point per signature under the given run.
	UpsertSignatures(ctx context.Context, runID string, sigs []signature.ArtifactSignature) error
	// Similar returns the nearest indexed artifacts to a capability vector.
	Similar(ctx context.Context, vector []float32, limit int) ([]Match, error)
	// Close releases the underlying connection.
	Close() error
}

// Match is a single similarity hit.
type Match struct {
	ID           string  `json:"id"`
	Score        float32 `json:"score"`
	Artifact     string  `json:"artifact"`
	RunID        string  `json:"run_id"`
	Architecture string  `json:"architecture"`
	Parameters   int64   `json:"parameters"`
}

// Vector projects a signature onto the canonical domain axes, in battery
// order. Domains the artifact shows no capability for contribute 0.
func Vector(sig signature.ArtifactSignature) []float32 {
	domains := probe.Domains()
	vector := make([]float32, len(domains))
	for i, domain := range domains {
		var sum float64
		count := 0
		for _, capability := range sig.Capabilities {
			if capability.Domain == domain {
				sum += capability.Strength
				count++
			}
		}
		if count > 0 {
			vector[i] = float32(sum / float64(count))
		}
	}
	return vector
}
