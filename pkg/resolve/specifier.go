package resolve

import (
	"strings"

	"github.com/matzehuels/cargo-dl/pkg/errors"
)

// Specifier is one crate requested on the command line.
type Specifier struct {
	Name string       // Crate name as typed (validated, never empty)
	Req  *Requirement // Version requirement; nil selects the latest release
}

// ParseSpecifier parses "name", "name@req" or the legacy "name:req" form.
//
// Only the first separator splits; the remainder is handed to
// [ParseRequirement] so that "foo@>=2.0,<3.0" works unquoted in most shells.
func ParseSpecifier(s string) (Specifier, error) {
	s = strings.TrimSpace(s)
	name, req, hasReq := cutSpecifier(s)

	if err := errors.ValidateCrateName(name); err != nil {
		return Specifier{}, errors.Wrap(errors.ErrCodeInvalidInput, err, "invalid crate name in %q", s)
	}
	spec := Specifier{Name: name}
	if !hasReq {
		return spec, nil
	}

	r, err := ParseRequirement(req)
	if err != nil {
		return Specifier{}, errors.Wrap(errors.ErrCodeInvalidInput, err, "invalid version requirement in %q", s)
	}
	spec.Req = r
	return spec, nil
}

// ParseSpecifiers parses every argument, stopping at the first invalid one.
func ParseSpecifiers(args []string) ([]Specifier, error) {
	specs := make([]Specifier, 0, len(args))
	for _, arg := range args {
		spec, err := ParseSpecifier(arg)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// String renders the specifier in "name@req" form.
func (s Specifier) String() string {
	if s.Req == nil {
		return s.Name
	}
	return s.Name + "@" + s.Req.String()
}

func cutSpecifier(s string) (name, req string, ok bool) {
	i := strings.IndexAny(s, "@:")
	if i < 0 {
		return s, "", false
	}
	return s[:i], s[i+1:], true
}
