package resolve

import (
	"github.com/Masterminds/semver/v3"

	"github.com/matzehuels/cargo-dl/pkg/errors"
)

// Candidate is one published version as seen by the selector.
type Candidate interface {
	SemVer() *semver.Version
	IsYanked() bool
}

// Select returns the greatest candidate matching req.
//
// A nil req behaves like [Any]. Yanked candidates are skipped unless
// allowYanked is set. Errors carry [errors.ErrCodeNoMatchingVersion] when
// nothing matched at all and [errors.ErrCodeAllYankedExcluded] when only
// yanked versions matched.
func Select[C Candidate](candidates []C, req *Requirement, allowYanked bool) (C, error) {
	if req == nil {
		req = Any
	}

	var (
		best, bestYanked C
		found, yanked    bool
	)
	for _, c := range candidates {
		v := c.SemVer()
		if v == nil || !req.Matches(v) {
			continue
		}
		if c.IsYanked() && !allowYanked {
			if !yanked || v.GreaterThan(bestYanked.SemVer()) {
				bestYanked, yanked = c, true
			}
			continue
		}
		if !found || v.GreaterThan(best.SemVer()) {
			best, found = c, true
		}
	}

	if found {
		return best, nil
	}
	var zero C
	if yanked {
		return zero, errors.New(errors.ErrCodeAllYankedExcluded,
			"no matching version found; the yanked version %s matched, use `--allow-yanked` to download it",
			bestYanked.SemVer().Original())
	}
	return zero, errors.New(errors.ErrCodeNoMatchingVersion, "no version matching %s found", req)
}
