package manifest

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"howett.net/plist"
)

const packageJSON = `{
    "name": "ng-inspector",
    "version": "1.2.3",
    "private": true,
    "devDependencies": {
        "gulp": "^3.8.0",
        "semver": "^4.0.0"
    },
    "keywords": []
}
`

const infoPlist = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
	<key>Author</key>
	<string>Kevin</string>
	<key>CFBundleDisplayName</key>
	<string>ng-inspector</string>
	<key>CFBundleShortVersionString</key>
	<string>1.2.3</string>
	<key>CFBundleVersion</key>
	<string>1.2.3</string>
	<key>Permissions</key>
	<dict>
		<key>Website Access</key>
		<dict>
			<key>Level</key>
			<string>All</string>
		</dict>
	</dict>
</dict>
</plist>
`

func TestJSONDocument_RenderKeepsOtherFieldsAndOrder(t *testing.T) {
	doc, err := Parse(Spec{Path: "package.json", Format: FormatJSON}, []byte(packageJSON))
	require.NoError(t, err)

	assert.Equal(t, "1.2.3", doc.Version())
	assert.Equal(t, "ng-inspector", doc.Name())

	out, err := doc.Render("1.2.4")
	require.NoError(t, err)

	want := `{
  "name": "ng-inspector",
  "version": "1.2.4",
  "private": true,
  "devDependencies": {
    "gulp": "^3.8.0",
    "semver": "^4.0.0"
  },
  "keywords": []
}
`
	if diff := cmp.Diff(want, string(out)); diff != "" {
		t.Errorf("rendered JSON mismatch (-want +got):\n%s", diff)
	}

	var before, after map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(packageJSON), &before))
	require.NoError(t, json.Unmarshal(out, &after))
	delete(before, "version")
	delete(after, "version")
	if diff := cmp.Diff(before, after); diff != "" {
		t.Errorf("unrelated fields changed (-before +after):\n%s", diff)
	}

	// rendering does not mutate the document
	assert.Equal(t, "1.2.3", doc.Version())
	assert.Equal(t, packageJSON, string(doc.Original()))
}

func TestJSONDocument_NoTrailingNewlinePreserved(t *testing.T) {
	doc, err := Parse(Spec{Path: "manifest.json", Format: FormatJSON}, []byte(`{"version":"0.1.0","manifest_version":2}`))
	require.NoError(t, err)

	out, err := doc.Render("0.2.0")
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"version\": \"0.2.0\",\n  \"manifest_version\": 2\n}", string(out))
}

func TestJSONDocument_AddsMissingVersion(t *testing.T) {
	doc, err := Parse(Spec{Path: "package.json", Format: FormatJSON}, []byte(`{"name":"x"}`))
	require.NoError(t, err)
	assert.Empty(t, doc.Version())

	out, err := doc.Render("1.0.0")
	require.NoError(t, err)
	assert.Contains(t, string(out), `"version": "1.0.0"`)
}

func TestJSONDocument_Malformed(t *testing.T) {
	cases := map[string]string{
		"truncated":      `{"version": "1.0.0"`,
		"array":          `["1.0.0"]`,
		"numericVersion": `{"version": 1}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(Spec{Path: "bad.json", Format: FormatJSON}, []byte(body))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformed))
		})
	}
}

func TestPlistDocument_RenderSetsBothVersionKeys(t *testing.T) {
	doc, err := Parse(Spec{Path: "Info.plist", Format: FormatPlist}, []byte(infoPlist))
	require.NoError(t, err)
	assert.Equal(t, "1.2.3", doc.Version())

	out, err := doc.Render("1.2.4")
	require.NoError(t, err)

	var decoded map[string]interface{}
	format, err := plist.Unmarshal(out, &decoded)
	require.NoError(t, err)
	assert.Equal(t, plist.XMLFormat, format)

	assert.Equal(t, "1.2.4", decoded["CFBundleShortVersionString"])
	assert.Equal(t, "1.2.4", decoded["CFBundleVersion"])
	assert.Equal(t, "Kevin", decoded["Author"])
	assert.Equal(t, "ng-inspector", decoded["CFBundleDisplayName"])

	perms, ok := decoded["Permissions"].(map[string]interface{})
	require.True(t, ok)
	access, ok := perms["Website Access"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "All", access["Level"])

	assert.True(t, strings.HasPrefix(string(out), "<?xml"))
}

func TestPlistDocument_Malformed(t *testing.T) {
	_, err := Parse(Spec{Path: "Info.plist", Format: FormatPlist}, []byte("<plist><dict><key>x</key>"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformed))
}

func TestLoad(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "ext"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "ext", "Info.plist"), []byte(infoPlist), 0644))

	doc, err := Load(root, Spec{Path: "ext/Info.plist", Format: FormatPlist})
	require.NoError(t, err)
	assert.Equal(t, "ext/Info.plist", doc.Path())

	_, err = Load(root, Spec{Path: "missing.json", Format: FormatJSON})
	assert.Error(t, err)

	_, err = Parse(Spec{Path: "x.toml", Format: "toml"}, []byte(""))
	assert.Error(t, err)
}
