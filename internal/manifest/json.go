package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const jsonIndent = "  "

type jsonDocument struct {
	path string
	raw  []byte
}

func parseJSON(path string, data []byte) (*jsonDocument, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: %s: invalid JSON", ErrMalformed, path)
	}
	if !gjson.ParseBytes(data).IsObject() {
		return nil, fmt.Errorf("%w: %s: top-level value is not an object", ErrMalformed, path)
	}
	if v := gjson.GetBytes(data, "version"); v.Exists() && v.Type != gjson.String {
		return nil, fmt.Errorf("%w: %s: version is not a string", ErrMalformed, path)
	}
	return &jsonDocument{path: path, raw: data}, nil
}

func (d *jsonDocument) Path() string     { return d.path }
func (d *jsonDocument) Original() []byte { return d.raw }

func (d *jsonDocument) Version() string {
	return gjson.GetBytes(d.raw, "version").String()
}

func (d *jsonDocument) Name() string {
	return gjson.GetBytes(d.raw, "name").String()
}

// Render sets the top-level version and re-indents with two spaces.
// Key order and every other field are kept as loaded.
func (d *jsonDocument) Render(version string) ([]byte, error) {
	updated, err := sjson.SetBytes(append([]byte(nil), d.raw...), "version", version)
	if err != nil {
		return nil, fmt.Errorf("set version in %s: %w", d.path, err)
	}
	var out bytes.Buffer
	if err := json.Indent(&out, bytes.TrimSpace(updated), "", jsonIndent); err != nil {
		return nil, fmt.Errorf("indent %s: %w", d.path, err)
	}
	if bytes.HasSuffix(d.raw, []byte("\n")) {
		out.WriteByte('\n')
	}
	return out.Bytes(), nil
}
