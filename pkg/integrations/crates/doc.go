// Package crates reads Cargo sparse registry indexes such as crates.io.
//
// # Overview
//
// A sparse index serves one newline-delimited JSON document per crate at a
// path derived from the crate name (see [IndexPath]). Each line describes
// one published version with its SHA-256 checksum and yanked flag. The
// registry's config.json supplies the download URL template.
//
// # Usage
//
//	client, err := crates.NewClient(crates.DefaultIndexURL, integrations.UserAgent(v), 30*time.Second)
//	if err != nil {
//	    return err
//	}
//
//	memo := crates.NewMemo(client)
//	file, err := memo.Fetch(ctx, "serde")
//	if err != nil {
//	    return err
//	}
//	entry, err := file.Select(req, false)
//	if err != nil {
//	    return err
//	}
//	url, err := client.DownloadURL(ctx, entry)
//
// # Memoization
//
// [Memo] remembers index files for one batch so repeated specifiers for
// the same crate issue at most one request. It is created by the caller
// and discarded with the batch; nothing is persisted.
//
// # Name lookup
//
// Index paths are lowercase, so lookups are case-insensitive. When a name
// is missing, the spellings with '-' and '_' swapped are tried as well and
// the canonical spelling recorded in the index is reported in [IndexFile].
//
// # Testing
//
// Package [cratestest] provides an in-process fake registry.
//
// [cratestest]: github.com/matzehuels/cargo-dl/pkg/integrations/crates/cratestest
package crates
