// Package manifest reads and rewrites the version field of per-target
// manifest files in their native encoding. Documents are loaded once and
// rendered without mutation, so a caller can prepare every target before
// writing any of them.
package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Format names a manifest encoding.
type Format string

const (
	FormatJSON  Format = "json"
	FormatPlist Format = "plist"
)

// ErrMalformed wraps any parse failure of an existing manifest.
var ErrMalformed = errors.New("malformed manifest")

// Spec identifies a manifest on disk.
type Spec struct {
	Path   string // relative to the workspace root
	Format Format
	Prefix string // version string prefix used in this file, e.g. "v"
}

// Document is a loaded manifest.
type Document interface {
	// Path returns the workspace-relative path.
	Path() string
	// Version returns the raw version string as stored in the file.
	Version() string
	// Name returns the project name if the format carries one.
	Name() string
	// Render returns the full file content with the version replaced.
	Render(version string) ([]byte, error)
	// Original returns the bytes the document was loaded from.
	Original() []byte
}

// Load reads and parses the manifest described by spec under root.
func Load(root string, spec Spec) (Document, error) {
	data, err := os.ReadFile(filepath.Join(root, spec.Path))
	if err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", spec.Path, err)
	}
	return Parse(spec, data)
}

// Parse builds a document from raw bytes.
func Parse(spec Spec, data []byte) (Document, error) {
	switch spec.Format {
	case FormatJSON:
		return parseJSON(spec.Path, data)
	case FormatPlist:
		return parsePlist(spec.Path, data)
	}
	return nil, fmt.Errorf("manifest %s: unsupported format %q", spec.Path, spec.Format)
}
