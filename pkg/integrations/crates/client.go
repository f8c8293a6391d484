package crates

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	cderrors "github.com/matzehuels/cargo-dl/pkg/errors"
	"github.com/matzehuels/cargo-dl/pkg/integrations"
	"github.com/matzehuels/cargo-dl/pkg/integrity"
)

// DefaultIndexURL is the crates.io sparse index.
const DefaultIndexURL = "https://index.crates.io/"

// Config is the registry's config.json document.
type Config struct {
	DL  string `json:"dl"`  // Download URL or template
	API string `json:"api"` // Web API root (unused, informational)
}

// Client reads a Cargo sparse registry index.
//
// The registry config.json is fetched once on first use and reused for the
// lifetime of the client. All methods are safe for concurrent use.
type Client struct {
	*integrations.Client
	indexURL string

	mu     sync.Mutex
	config *Config
}

// NewClient creates a sparse index client.
//
// indexURL may carry Cargo's "sparse+" prefix and is normalized to end in
// a slash. An empty indexURL selects [DefaultIndexURL].
func NewClient(indexURL, userAgent string, timeout time.Duration) (*Client, error) {
	base, err := NormalizeIndexURL(indexURL)
	if err != nil {
		return nil, err
	}
	headers := map[string]string{"User-Agent": userAgent}
	return &Client{
		Client:   integrations.NewClient(headers, timeout),
		indexURL: base,
	}, nil
}

// WithTransport returns a client sharing c's index URL that sends requests
// through t. It is mainly used by tests to tune retries and HTTP clients.
func (c *Client) WithTransport(t *integrations.Client) *Client {
	return &Client{Client: t, indexURL: c.indexURL}
}

// IndexURL returns the normalized index base URL.
func (c *Client) IndexURL() string { return c.indexURL }

// NormalizeIndexURL strips a "sparse+" prefix, validates the URL and
// ensures a trailing slash.
func NormalizeIndexURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		raw = DefaultIndexURL
	}
	raw = strings.TrimPrefix(raw, "sparse+")
	if err := cderrors.ValidateURL(raw); err != nil {
		return "", cderrors.Wrap(cderrors.ErrCodeInvalidInput, err, "invalid index URL %q", raw)
	}
	if !strings.HasSuffix(raw, "/") {
		raw += "/"
	}
	return raw, nil
}

// Config returns the registry configuration, fetching it on first use.
// Failures are not cached so a later call may succeed.
func (c *Client) Config(ctx context.Context) (*Config, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.config != nil {
		return c.config, nil
	}

	var cfg Config
	if err := c.Get(ctx, c.indexURL+"config.json", &cfg); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, cderrors.Wrap(cderrors.ErrCodeFetch, err, "read registry config from %s", c.indexURL)
	}
	if cfg.DL == "" {
		return nil, cderrors.New(cderrors.ErrCodeFetch, "registry config at %s has no download URL", c.indexURL)
	}
	c.config = &cfg
	return c.config, nil
}

// Fetch reads the index file for name.
//
// When the exact spelling is unknown, the -/_ variants are tried the way
// cargo does before reporting [cderrors.ErrCodeNotFoundInIndex]. Transport
// failures carry [cderrors.ErrCodeFetch].
func (c *Client) Fetch(ctx context.Context, name string) (*IndexFile, error) {
	for _, candidate := range nameVariants(name) {
		data, err := c.GetBytes(ctx, c.indexURL+IndexPath(candidate))
		if errors.Is(err, integrations.ErrNotFound) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, cderrors.Wrap(cderrors.ErrCodeFetch, err, "query index for %s", name)
		}
		return ParseIndexFile(candidate, data), nil
	}
	return nil, cderrors.New(cderrors.ErrCodeNotFoundInIndex, "could not find `%s` in registry `%s`", name, c.indexURL)
}

// DownloadURL returns the archive URL for a published version.
func (c *Client) DownloadURL(ctx context.Context, e Entry) (string, error) {
	cfg, err := c.Config(ctx)
	if err != nil {
		return "", err
	}
	return ExpandDownloadURL(cfg.DL, e), nil
}

// ExpandDownloadURL applies Cargo's dl template rules. When dl contains
// none of the {crate}, {version}, {prefix}, {lowerprefix} or
// {sha256-checksum} markers, "/{crate}/{version}/download" is appended.
func ExpandDownloadURL(dl string, e Entry) string {
	markers := []string{"{crate}", "{version}", "{prefix}", "{lowerprefix}", "{sha256-checksum}"}
	templated := false
	for _, m := range markers {
		if strings.Contains(dl, m) {
			templated = true
			break
		}
	}
	if !templated {
		return strings.TrimSuffix(dl, "/") + "/" + url.PathEscape(e.Name) + "/" + url.PathEscape(e.Vers) + "/download"
	}

	prefix := indexPrefix(e.Name)
	r := strings.NewReplacer(
		"{crate}", e.Name,
		"{version}", e.Vers,
		"{prefix}", prefix,
		"{lowerprefix}", strings.ToLower(prefix),
		"{sha256-checksum}", e.Cksum.String(),
	)
	return r.Replace(dl)
}

// IndexPath returns the index file path for name relative to the index root.
//
//	"a"      -> "1/a"
//	"ab"     -> "2/ab"
//	"abc"    -> "3/a/abc"
//	"serde"  -> "se/rd/serde"
func IndexPath(name string) string {
	name = strings.ToLower(name)
	return indexPrefix(name) + "/" + name
}

func indexPrefix(name string) string {
	switch len(name) {
	case 0:
		return ""
	case 1:
		return "1"
	case 2:
		return "2"
	case 3:
		return "3/" + name[:1]
	default:
		return name[:2] + "/" + name[2:4]
	}
}

// nameVariants returns name followed by its all-underscore and all-dash
// spellings, without duplicates.
func nameVariants(name string) []string {
	out := []string{name}
	for _, v := range []string{
		strings.ReplaceAll(name, "-", "_"),
		strings.ReplaceAll(name, "_", "-"),
	} {
		if !strings.EqualFold(v, name) && !containsFold(out, v) {
			out = append(out, v)
		}
	}
	return out
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

// Archive identifies one downloadable crate archive.
// It is immutable once produced by [NewArchive].
type Archive struct {
	Name     string // Canonical crate name
	Version  string
	Checksum integrity.Checksum
	URL      string
}

// String renders the archive as "name@version".
func (a Archive) String() string { return a.Name + "@" + a.Version }

// FileName is the conventional archive file name, "name-version.crate".
func (a Archive) FileName() string { return a.Stem() + ".crate" }

// Stem is "name-version", the archive's top-level directory.
func (a Archive) Stem() string { return fmt.Sprintf("%s-%s", a.Name, a.Version) }
