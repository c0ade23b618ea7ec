package manifest

import (
	"bytes"
	"fmt"

	"howett.net/plist"
)

// Info.plist carries the version twice; both are kept identical.
const (
	plistShortVersionKey = "CFBundleShortVersionString"
	plistBuildVersionKey = "CFBundleVersion"
	plistNameKey         = "CFBundleName"
)

type plistDocument struct {
	path   string
	raw    []byte
	values map[string]interface{}
}

func parsePlist(path string, data []byte) (*plistDocument, error) {
	values := make(map[string]interface{})
	if _, err := plist.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, path, err)
	}
	return &plistDocument{path: path, raw: data, values: values}, nil
}

func (d *plistDocument) Path() string     { return d.path }
func (d *plistDocument) Original() []byte { return d.raw }

func (d *plistDocument) Version() string {
	s, _ := d.values[plistShortVersionKey].(string)
	return s
}

func (d *plistDocument) Name() string {
	s, _ := d.values[plistNameKey].(string)
	return s
}

// Render writes an XML plist with both version keys set to version.
func (d *plistDocument) Render(version string) ([]byte, error) {
	next := make(map[string]interface{}, len(d.values)+2)
	for k, v := range d.values {
		next[k] = v
	}
	next[plistShortVersionKey] = version
	next[plistBuildVersionKey] = version

	out, err := plist.MarshalIndent(next, plist.XMLFormat, "\t")
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", d.path, err)
	}
	return append(bytes.TrimRight(out, "\n"), '\n'), nil
}
