// Package pkg provides the libraries behind cargo-dl, a downloader for the
// source archives of published Rust crates.
//
// # Overview
//
// A download request names one or more crates, each with an optional
// version requirement. For every crate cargo-dl looks up the registry's
// sparse index, selects a version, reuses a verified copy from cargo's
// local registry cache when one exists, downloads the archive otherwise,
// checks its SHA-256 against the index and writes it to disk, either as
// the .crate file or as an extracted source tree.
//
// The packages are organized by the step they serve:
//
//	[resolve]               specifiers and Cargo version requirements
//	      ↓
//	[integrations/crates]   sparse index lookup and download URLs
//	      ↓
//	[cache]                 cargo's registry cache, verified on read
//	      ↓
//	[integrations]          HTTP transport with retry and size limits
//	      ↓
//	[integrity]             checksum verification
//	      ↓
//	[archive]               atomic writes and safe extraction
//
// [pipeline] runs these steps for a batch of crates with bounded
// parallelism and collects one outcome per crate.
//
// # Supporting Packages
//
// [errors] - Error codes shared by every step (NOT_FOUND_IN_INDEX,
// NO_MATCHING_VERSION, FETCH_ERROR, CHECKSUM_MISMATCH, IO_ERROR, ...).
//
// [observability] - Hook interfaces for HTTP, cache and pipeline events.
// The CLI uses them for debug logging and live progress.
//
// [httputil] - Retry with exponential backoff.
//
// [buildinfo] - Version information injected at build time.
//
// # Quick Start
//
//	client, _ := crates.NewClient(crates.DefaultIndexURL, integrations.UserAgent("dev"), 0)
//	runner := pipeline.NewRunner(client, client, cache.NewNullCache(), log.Default())
//
//	specs, _ := resolve.ParseSpecifiers([]string{"serde@1", "rand"})
//	report, err := runner.Run(ctx, specs, pipeline.Options{Dir: "vendor"})
//	for _, o := range report.Outcomes {
//	    fmt.Println(o.Spec, o.Path, o.Err)
//	}
//
// [resolve]: https://pkg.go.dev/github.com/matzehuels/cargo-dl/pkg/resolve
// [integrations]: https://pkg.go.dev/github.com/matzehuels/cargo-dl/pkg/integrations
// [integrations/crates]: https://pkg.go.dev/github.com/matzehuels/cargo-dl/pkg/integrations/crates
// [cache]: https://pkg.go.dev/github.com/matzehuels/cargo-dl/pkg/cache
// [integrity]: https://pkg.go.dev/github.com/matzehuels/cargo-dl/pkg/integrity
// [archive]: https://pkg.go.dev/github.com/matzehuels/cargo-dl/pkg/archive
// [pipeline]: https://pkg.go.dev/github.com/matzehuels/cargo-dl/pkg/pipeline
// [errors]: https://pkg.go.dev/github.com/matzehuels/cargo-dl/pkg/errors
// [observability]: https://pkg.go.dev/github.com/matzehuels/cargo-dl/pkg/observability
// [httputil]: https://pkg.go.dev/github.com/matzehuels/cargo-dl/pkg/httputil
// [buildinfo]: https://pkg.go.dev/github.com/matzehuels/cargo-dl/pkg/buildinfo
package pkg
