// Package version computes release versions. Versions are immutable
// semver.Version values; a bump always returns a new value.
package version

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Kind is a requested bump: major, minor or patch.
type Kind string

const (
	Major Kind = "major"
	Minor Kind = "minor"
	Patch Kind = "patch"
)

// Kinds lists the supported bump kinds in CLI order.
var Kinds = []Kind{Major, Minor, Patch}

// ErrUnknownKind is returned for any bump kind outside Kinds.
var ErrUnknownKind = errors.New("unknown bump kind")

// ParseKind validates a bump kind.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case Major, Minor, Patch:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q (valid: major, minor, patch)", ErrUnknownKind, s)
}

// Parse reads a full major.minor.patch version carrying exactly prefix,
// e.g. "v1.2.3" for prefix "v". A missing or unexpected prefix is an error.
func Parse(s, prefix string) (*semver.Version, error) {
	raw := strings.TrimSpace(s)
	if !strings.HasPrefix(raw, prefix) {
		return nil, fmt.Errorf("parse version %q: missing prefix %q", s, prefix)
	}
	v, err := semver.StrictNewVersion(strings.TrimPrefix(raw, prefix))
	if err != nil {
		return nil, fmt.Errorf("parse version %q: %w", s, err)
	}
	return v, nil
}

// Next applies the increment rule for k:
// major zeroes minor and patch, minor zeroes patch, patch on a
// pre-release drops the pre-release.
func Next(v *semver.Version, k Kind) (semver.Version, error) {
	if v == nil {
		return semver.Version{}, errors.New("nil version")
	}
	switch k {
	case Major:
		return v.IncMajor(), nil
	case Minor:
		return v.IncMinor(), nil
	case Patch:
		return v.IncPatch(), nil
	}
	return semver.Version{}, fmt.Errorf("%w: %q", ErrUnknownKind, string(k))
}

// Encode renders v with the given prefix, e.g. "v1.2.4".
func Encode(v semver.Version, prefix string) string {
	return prefix + v.String()
}
