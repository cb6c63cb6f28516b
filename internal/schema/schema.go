// Package schema implements the Schema Registry: loading and caching
// JSON-schema descriptors identified by (name, version).
package schema

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Schema identifies a JSON-schema descriptor by name and strict semver
// version. Equality and hashing are on the pair.
type Schema struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Key returns a string suitable for use as a map key; two Schemas compare
// equal iff their Key is equal.
func (s Schema) Key() string {
	return s.Name + "@" + s.Version
}

func (s Schema) String() string {
	return s.Key()
}

// IsZero reports whether s is the zero value (used to represent "no input
// schema" for source artifacts).
func (s Schema) IsZero() bool {
	return s.Name == "" && s.Version == ""
}

// Parse splits a runbook-style schema reference ("name" or "name/version")
// into a Schema, defaulting the version to 1.0.0 when omitted.
func Parse(ref string) (Schema, error) {
	if ref == "" {
		return Schema{}, fmt.Errorf("schema: empty reference")
	}
	parts := strings.SplitN(ref, "/", 2)
	name := parts[0]
	if name == "" {
		return Schema{}, fmt.Errorf("schema: empty name in reference %q", ref)
	}
	version := "1.0.0"
	if len(parts) == 2 && parts[1] != "" {
		version = parts[1]
	}
	if err := validateVersion(version); err != nil {
		return Schema{}, fmt.Errorf("schema: reference %q: %w", ref, err)
	}
	return Schema{Name: name, Version: version}, nil
}

func validateVersion(v string) error {
	sv, err := semver.NewVersion(v)
	if err != nil {
		return fmt.Errorf("version %q is not valid semver: %w", v, err)
	}
	if sv.Prerelease() != "" || sv.Metadata() != "" {
		return fmt.Errorf("version %q must be a bare MAJOR.MINOR.PATCH release", v)
	}
	return nil
}

// Satisfies reports whether s.Version satisfies the semver constraint
// expression constraint (e.g. "^1.2.0", ">=1.0.0, <2.0.0").
func (s Schema) Satisfies(constraint string) (bool, error) {
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return false, fmt.Errorf("schema: invalid constraint %q: %w", constraint, err)
	}
	sv, err := semver.NewVersion(s.Version)
	if err != nil {
		return false, fmt.Errorf("schema: invalid version %q: %w", s.Version, err)
	}
	return c.Check(sv), nil
}
