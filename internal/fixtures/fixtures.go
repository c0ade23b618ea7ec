// Package fixtures enumerates the framework versions available to the
// end-to-end suite.
package fixtures

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Repository lists the framework versions that tests can run against.
type Repository interface {
	Versions(ctx context.Context) ([]string, error)
}

// Dir reads versions from the script file names in a directory
// (angular-1.4.2.min.js style names are reduced to 1.4.2).
type Dir struct {
	Path string
}

// Versions returns the versions found in the directory, semver ordered.
// Names that do not parse as semver sort after the rest, alphabetically.
func (d Dir) Versions(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(d.Path)
	if err != nil {
		return nil, fmt.Errorf("read fixtures dir: %w", err)
	}

	seen := make(map[string]bool)
	var versions []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		v, ok := versionFromName(entry.Name())
		if !ok || seen[v] {
			continue
		}
		seen[v] = true
		versions = append(versions, v)
	}
	Sort(versions)
	return versions, nil
}

func versionFromName(name string) (string, bool) {
	var base string
	switch {
	case strings.HasSuffix(name, ".min.js"):
		base = strings.TrimSuffix(name, ".min.js")
	case strings.HasSuffix(name, ".js"):
		base = strings.TrimSuffix(name, ".js")
	default:
		return "", false
	}
	base = strings.TrimPrefix(base, "angular-")
	return base, base != ""
}

// Static is a fixed version list.
type Static []string

// Versions returns a copy of the list.
func (s Static) Versions(context.Context) ([]string, error) {
	return append([]string(nil), s...), nil
}

// Sort orders versions by semver, falling back to string order.
func Sort(versions []string) {
	sort.SliceStable(versions, func(i, j int) bool {
		a, errA := semver.NewVersion(versions[i])
		b, errB := semver.NewVersion(versions[j])
		switch {
		case errA == nil && errB == nil:
			return a.LessThan(b)
		case errA == nil:
			return true
		case errB == nil:
			return false
		}
		return versions[i] < versions[j]
	})
}

// Contains reports whether version is in versions.
func Contains(versions []string, version string) bool {
	for _, v := range versions {
		if v == version {
			return true
		}
	}
	return false
}
