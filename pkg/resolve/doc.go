// Package resolve turns user input into a concrete crate version.
//
// It covers the two leaf steps of a download:
//
//   - [ParseSpecifier] splits a "name[@requirement]" argument into a crate
//     name and an optional [Requirement].
//   - [Select] picks the best published version for a requirement from the
//     candidates the index reported, applying the yanked and prerelease
//     policy.
//
// # Requirements
//
// Requirements use Cargo.toml syntax: a bare version means caret ("1.2" is
// "^1.2"), comma-separated comparators must all match, and "*", "1.*" and
// "1.2.*" are wildcards. Prerelease versions only match when the
// requirement itself names a prerelease.
//
// # Selection policy
//
// Without a requirement the newest non-prerelease, non-yanked version wins.
// Yanked versions are only eligible with allowYanked. When the only matches
// were yanked the error says so and names the best yanked match, so the
// caller can suggest --allow-yanked.
package resolve
