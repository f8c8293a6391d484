package crates

import (
	"errors"

	cderrors "github.com/matzehuels/cargo-dl/pkg/errors"
	"github.com/matzehuels/cargo-dl/pkg/resolve"
)

// Select picks the entry to download for req, see [resolve.Select].
// The returned error names the crate.
func (f *IndexFile) Select(req *resolve.Requirement, allowYanked bool) (Entry, error) {
	e, err := resolve.Select(f.Entries, req, allowYanked)
	if err != nil {
		var ce *cderrors.Error
		if errors.As(err, &ce) {
			return Entry{}, cderrors.New(ce.Code, "%s: %s", f.Name, ce.Message)
		}
		return Entry{}, err
	}
	return e, nil
}

// NewArchive builds the archive identity for a selected entry.
func NewArchive(e Entry, url string) Archive {
	return Archive{
		Name:     e.Name,
		Version:  e.Vers,
		Checksum: e.Cksum,
		URL:      url,
	}
}
