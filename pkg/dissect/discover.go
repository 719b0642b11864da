// Package dissect orchestrates a full run: discover artifacts under the
// given roots, decode and probe each one concurrently, merge the
// recovered tensors and synthesize the blueprint. Run history lands in a
// sqlite store and, when enabled, capability vectors land in the
// similarity index.
package dissect

import (
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/jllopis/chimera/pkg/errors"
)

// Candidate is one discovered artifact: a bare container file, or an
// archive that may hold one.
type Candidate struct {
	Path    string
	Archive bool
}

// Discover walks the roots recursively and collects candidates whose
// lowercased name ends in .gguf, .tar, .tar.gz or .tgz. Order follows the
// walk (lexical within each root, roots in argument order); duplicate
// paths are dropped.
func Discover(roots ...string) ([]Candidate, error) {
	var candidates []Candidate
	seen := make(map[string]struct{})

	for _, root := range roots {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}

			archive, ok := classifyName(d.Name())
			if !ok {
				return nil
			}

			key := path
			if abs, err := filepath.Abs(path); err == nil {
				key = abs
			}
			if _, dup := seen[key]; dup {
				return nil
			}
			seen[key] = struct{}{}

			candidates = append(candidates, Candidate{Path: path, Archive: archive})
			return nil
		})
		if err != nil {
			return nil, errors.New(errors.CodeIO, "walk discovery root", err).
				WithContext("root", root)
		}
	}

	return candidates, nil
}

// classifyName reports whether a file name is a candidate and whether it
// is an archive.
func classifyName(name string) (archive, ok bool) {
	lowered := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lowered, ".gguf"):
		return false, true
	case strings.HasSuffix(lowered, ".tar"),
		strings.HasSuffix(lowered, ".tar.gz"),
		strings.HasSuffix(lowered, ".tgz"):
		return true, true
	}
	return false, false
}
