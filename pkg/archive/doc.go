// Package archive writes verified crate archives to disk.
//
// Both operations are atomic with respect to their final path: output is
// first written to a hidden staging sibling and then renamed into place,
// so an interrupted or rejected run never leaves a partially written
// target behind.
//
//   - [WriteFile] stores the raw .crate bytes.
//   - [Extract] unpacks the gzip-compressed tar stream, replacing the
//     archive's "name-version/" top-level directory with the target
//     directory.
//
// Extraction refuses members that would land outside the target: absolute
// paths, ".." components, members outside the expected top-level
// directory, and symlinks or hard links whose targets escape the tree.
// Any such member fails the whole extraction with an IO_ERROR and nothing
// is written. Device nodes and FIFOs are skipped.
package archive
