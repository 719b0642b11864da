// Package merger folds the extracted tensors of several artifacts into
// one unified namespace. Tensors are bucketed by name substring and
// renamed so the merged set is globally unique while staying traceable
// to its source artifact.
package merger

import (
	"fmt"
	"strings"

	"github.com/jllopis/chimera/pkg/gguf"
)

// Bucket names of the unified namespace.
const (
	BucketEmbedding     = "embedding"
	BucketAttention     = "attention"
	BucketFeedForward   = "feed_forward"
	BucketNormalization = "normalization"
	BucketOther         = "other"
)

// Buckets returns the bucket names in reporting order.
func Buckets() []string {
	return []string{
		BucketEmbedding,
		BucketAttention,
		BucketFeedForward,
		BucketNormalization,
		BucketOther,
	}
}

// BucketFor assigns a tensor name to its bucket. Matching is by plain
// substring on the lowercased name, checked in a fixed order: "embed",
// then "attn"/"attention", then "mlp"/"ffn", then "norm". A name like
// "ffn_norm" is feed-forward, and "attn_norm" is attention, because the
// earlier predicate wins.
func BucketFor(name string) string {
	lowered := strings.ToLower(name)
	switch {
	case strings.Contains(lowered, "embed"):
		return BucketEmbedding
	case strings.Contains(lowered, "attn"), strings.Contains(lowered, "attention"):
		return BucketAttention
	case strings.Contains(lowered, "mlp"), strings.Contains(lowered, "ffn"):
		return BucketFeedForward
	case strings.Contains(lowered, "norm"):
		return BucketNormalization
	default:
		return BucketOther
	}
}

// ArtifactTensors holds one artifact's extracted tensors. Slice position
// in the Merge input is the artifact index used for renaming, so callers
// pass artifacts in discovery order.
type ArtifactTensors struct {
	Name    string
	Tensors []gguf.TensorBuffer
}

// MergedTensor is one tensor in the unified namespace: the new globally
// unique name plus everything needed to trace it back.
type MergedTensor struct {
	Name     string
	Bucket   string
	Artifact int
	Source   gguf.TensorBuffer
}

// Result is the unified namespace with per-bucket totals.
type Result struct {
	Tensors []MergedTensor
	Buckets map[string]int
}

// Merge buckets and renames every tensor of every artifact. Each input
// tensor lands in exactly one bucket exactly once, renamed
// {bucket}.{artifact_index}.{sequence}, where the sequence number
// increments per bucket in encounter order across the whole merge.
func Merge(artifacts []ArtifactTensors) *Result {
	total := 0
	for _, artifact := range artifacts {
		total += len(artifact.Tensors)
	}

	result := &Result{
		Tensors: make([]MergedTensor, 0, total),
		Buckets: make(map[string]int, 5),
	}
	for _, bucket := range Buckets() {
		result.Buckets[bucket] = 0
	}

	sequence := make(map[string]int, 5)
	for index, artifact := range artifacts {
		for _, tensor := range artifact.Tensors {
			bucket := BucketFor(tensor.Name)
			result.Tensors = append(result.Tensors, MergedTensor{
				Name:     fmt.Sprintf("%s.%d.%d", bucket, index, sequence[bucket]),
				Bucket:   bucket,
				Artifact: index,
				Source:   tensor,
			})
			sequence[bucket]++
			result.Buckets[bucket]++
		}
	}

	return result
}
