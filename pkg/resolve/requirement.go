package resolve

import (
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/matzehuels/cargo-dl/pkg/errors"
)

// Requirement is a parsed Cargo-style version requirement.
// It is immutable and safe for concurrent use.
type Requirement struct {
	raw         string
	constraints *semver.Constraints
}

// Any matches every non-prerelease version. It is what a missing requirement means.
var Any = MustParseRequirement("*")

// ParseRequirement parses a requirement such as "1.2", "^0.3", "~1.4.2",
// "=1.0.0", ">=2.0, <3.0" or "1.*".
func ParseRequirement(s string) (*Requirement, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return nil, errors.New(errors.ErrCodeInvalidInput, "empty version requirement")
	}

	parts := strings.Split(raw, ",")
	for i, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil, errors.New(errors.ErrCodeInvalidInput, "empty comparator in %q", raw)
		}
		parts[i] = cargoComparator(part)
	}

	c, err := semver.NewConstraint(strings.Join(parts, ", "))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "parse version requirement %q", raw)
	}
	return &Requirement{raw: raw, constraints: c}, nil
}

// MustParseRequirement is like [ParseRequirement] but panics on error.
func MustParseRequirement(s string) *Requirement {
	r, err := ParseRequirement(s)
	if err != nil {
		panic(err)
	}
	return r
}

// Matches reports whether v satisfies every comparator.
// Prerelease versions only match when a comparator names a prerelease.
func (r *Requirement) Matches(v *semver.Version) bool {
	return r.constraints.Check(v)
}

// String returns the requirement as the user wrote it.
func (r *Requirement) String() string { return r.raw }

// cargoComparator rewrites one comparator into the constraint dialect used
// by the semver library. Cargo treats an operator-less version as caret.
func cargoComparator(part string) string {
	core, _, _ := strings.Cut(part, "+")
	core, _, _ = strings.Cut(core, "-")
	if strings.ContainsAny(core, "*xX") {
		return part
	}
	if c := part[0]; c >= '0' && c <= '9' {
		return "^" + part
	}
	return part
}
