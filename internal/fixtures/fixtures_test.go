package fixtures

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDir_Versions(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"1.4.2.min.js", "1.10.0.js", "1.2.28.js", "1.2.28.min.js", "README.md", "angular-1.3.0.js"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "2.0.0.js"), 0755))

	got, err := Dir{Path: dir}.Versions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"1.2.28", "1.3.0", "1.4.2", "1.10.0"}, got)
}

func TestDir_Missing(t *testing.T) {
	_, err := Dir{Path: filepath.Join(t.TempDir(), "nope")}.Versions(context.Background())
	assert.Error(t, err)
}

func TestSort_NonSemverLast(t *testing.T) {
	v := []string{"snapshot", "1.5.0-rc.1", "1.5.0", "beta", "1.4.9"}
	Sort(v)
	assert.Equal(t, []string{"1.4.9", "1.5.0-rc.1", "1.5.0", "beta", "snapshot"}, v)
}

func TestStatic(t *testing.T) {
	s := Static{"1.0.0"}
	got, err := s.Versions(context.Background())
	require.NoError(t, err)
	got[0] = "mutated"
	assert.Equal(t, "1.0.0", s[0])
	assert.True(t, Contains(s, "1.0.0"))
	assert.False(t, Contains(s, "2.0.0"))
}
