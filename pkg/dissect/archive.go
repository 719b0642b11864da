package dissect

import (
	"archive/tar"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jllopis/chimera/pkg/errors"
)

// unpackArchive extracts a tar archive (gzip-compressed for .tar.gz and
// .tgz) into a fresh scratch directory and returns the directory plus the
// paths of the container members it found, in archive order. The caller
// owns removing the directory; on error it is already gone.
func unpackArchive(path, scratchRoot string) (string, []string, error) {
	dir, err := os.MkdirTemp(scratchRoot, "chimera-scratch-")
	if err != nil {
		return "", nil, errors.New(errors.CodeIO, "create scratch directory", err).
			WithContext("archive", path)
	}

	members, err := extractTar(path, dir)
	if err != nil {
		os.RemoveAll(dir)
		return "", nil, err
	}
	return dir, members, nil
}

func extractTar(path, dir string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.New(errors.CodeIO, "open archive", err).
			WithContext("archive", path)
	}
	defer f.Close()

	var src io.Reader = f
	lowered := strings.ToLower(path)
	if strings.HasSuffix(lowered, ".tar.gz") || strings.HasSuffix(lowered, ".tgz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, errors.New(errors.CodeFormat, "open gzip stream", err).
				WithContext("archive", path)
		}
		defer gz.Close()
		src = gz
	}

	var members []string
	tr := tar.NewReader(src)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.New(errors.CodeFormat, "read archive entry", err).
				WithContext("archive", path)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}

		target, err := scratchPath(dir, hdr.Name)
		if err != nil {
			return nil, err
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return nil, errors.New(errors.CodeIO, "create entry directory", err).
				WithContext("entry", hdr.Name)
		}

		out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
		if err != nil {
			return nil, errors.New(errors.CodeIO, "create archive entry", err).
				WithContext("entry", hdr.Name)
		}
		_, err = io.Copy(out, tr)
		out.Close()
		if err != nil {
			return nil, errors.New(errors.CodeIO, "extract archive entry", err).
				WithContext("entry", hdr.Name)
		}

		if strings.HasSuffix(strings.ToLower(hdr.Name), ".gguf") {
			members = append(members, target)
		}
	}

	return members, nil
}

// scratchPath joins an archive entry name onto the scratch root, refusing
// entries whose cleaned path would escape it.
func scratchPath(dir, name string) (string, error) {
	target := filepath.Join(dir, filepath.Clean(name))
	if target != dir && !strings.HasPrefix(target, dir+string(os.PathSeparator)) {
		return "", errors.New(errors.CodeFormat, "archive entry escapes scratch directory", nil).
			WithContext("entry", name)
	}
	return target, nil
}
