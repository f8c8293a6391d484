package crates

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/Masterminds/semver/v3"

	"github.com/matzehuels/cargo-dl/pkg/integrity"
)

// Entry is one published version of a crate as recorded in the sparse index.
//
// Only the fields needed to pick and verify an archive are decoded; the
// dependency and feature tables are ignored.
type Entry struct {
	Name   string             `json:"name"`   // Canonical crate name
	Vers   string             `json:"vers"`   // Version string as published
	Cksum  integrity.Checksum `json:"cksum"`  // SHA-256 of the .crate file
	Yanked bool               `json:"yanked"` // Withdrawn by the publisher

	version *semver.Version
}

// SemVer returns the parsed version.
func (e Entry) SemVer() *semver.Version { return e.version }

// IsYanked reports whether the version was yanked.
func (e Entry) IsYanked() bool { return e.Yanked }

// IndexFile is the parsed index document for a single crate.
type IndexFile struct {
	// Name is the canonical spelling taken from the index records, which
	// may differ from the requested name in case or in -/_ usage.
	Name string

	// Entries lists valid records in publication order.
	Entries []Entry

	// Invalid holds a description of every record that was skipped
	// because it could not be decoded or its version is not semver.
	Invalid []string
}

// Versions returns the version strings of all entries in publication order.
func (f *IndexFile) Versions() []string {
	out := make([]string, len(f.Entries))
	for i, e := range f.Entries {
		out[i] = e.Vers
	}
	return out
}

// ParseIndexFile decodes a newline-delimited sparse index document.
// Records that fail to decode are collected in Invalid rather than failing
// the whole document, so one bad publish does not hide every other version.
func ParseIndexFile(requested string, data []byte) *IndexFile {
	f := &IndexFile{Name: requested}

	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}

		var e Entry
		if err := json.Unmarshal(raw, &e); err != nil {
			f.Invalid = append(f.Invalid, fmt.Sprintf("line %d: %v", line, err))
			continue
		}
		v, err := semver.StrictNewVersion(e.Vers)
		if err != nil {
			f.Invalid = append(f.Invalid, fmt.Sprintf("line %d: version %q: %v", line, e.Vers, err))
			continue
		}
		e.version = v
		f.Entries = append(f.Entries, e)
	}
	if err := sc.Err(); err != nil {
		f.Invalid = append(f.Invalid, fmt.Sprintf("line %d: %v", line+1, err))
	}

	if len(f.Entries) > 0 && f.Entries[0].Name != "" {
		f.Name = f.Entries[0].Name
	}
	for i := range f.Entries {
		if f.Entries[i].Name == "" {
			f.Entries[i].Name = f.Name
		}
	}
	return f
}
