// Package cratestest provides an in-process sparse registry for tests.
//
//	reg := cratestest.New(t)
//	sum := reg.Publish("serde", "1.0.0", cratestest.Crate(t, "serde", "1.0.0", nil))
//	client, _ := crates.NewClient(reg.URL(), "test", time.Second)
//
// Every request is counted so tests can assert how often the index and the
// download endpoint were hit.
package cratestest

import (
	"archive/tar"
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/klauspost/compress/gzip"

	"github.com/matzehuels/cargo-dl/pkg/integrations/crates"
	"github.com/matzehuels/cargo-dl/pkg/integrity"
)

// Registry is a fake sparse registry backed by httptest.
type Registry struct {
	Server *httptest.Server

	// DL overrides the dl value served in config.json. When empty the
	// registry's own download route is advertised.
	DL string

	mu        sync.Mutex
	lines     map[string][]string // lowercase name -> index lines
	archives  map[string][]byte   // "name/version" -> body
	corrupt   map[string]bool     // "name/version" -> serve flipped bytes
	status    map[string]int      // request path -> forced status
	indexHits map[string]int
	downloads map[string]int
	config    int
}

// New starts a registry that is closed when the test ends.
func New(t testing.TB) *Registry {
	t.Helper()
	reg := &Registry{
		lines:     make(map[string][]string),
		archives:  make(map[string][]byte),
		corrupt:   make(map[string]bool),
		status:    make(map[string]int),
		indexHits: make(map[string]int),
		downloads: make(map[string]int),
	}

	r := chi.NewRouter()
	r.Use(reg.forcedStatus)
	r.Get("/config.json", reg.serveConfig)
	r.Get("/api/v1/crates/{crate}/{version}/download", reg.serveDownload)
	r.Get("/*", reg.serveIndex)

	reg.Server = httptest.NewServer(r)
	t.Cleanup(reg.Server.Close)
	return reg
}

// URL returns the index root, with a trailing slash.
func (r *Registry) URL() string { return r.Server.URL + "/" }

// Publish adds a version with the given archive body and returns its
// checksum.
func (r *Registry) Publish(name, version string, archive []byte) integrity.Checksum {
	return r.publish(name, version, archive, false)
}

// PublishYanked adds a yanked version.
func (r *Registry) PublishYanked(name, version string, archive []byte) integrity.Checksum {
	return r.publish(name, version, archive, true)
}

func (r *Registry) publish(name, version string, archive []byte, yanked bool) integrity.Checksum {
	sum := integrity.Sum(archive)
	line, _ := json.Marshal(map[string]any{
		"name":     name,
		"vers":     version,
		"deps":     []any{},
		"cksum":    sum.String(),
		"features": map[string]any{},
		"yanked":   yanked,
	})

	r.mu.Lock()
	defer r.mu.Unlock()
	key := strings.ToLower(name)
	r.lines[key] = append(r.lines[key], string(line))
	r.archives[name+"/"+version] = archive
	return sum
}

// AddRawLine appends an arbitrary index line for name.
func (r *Registry) AddRawLine(name, line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := strings.ToLower(name)
	r.lines[key] = append(r.lines[key], line)
}

// Corrupt makes the download endpoint serve bytes that no longer match the
// published checksum.
func (r *Registry) Corrupt(name, version string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.corrupt[name+"/"+version] = true
}

// FailPath forces every request to p (e.g. "/config.json") to answer with
// status.
func (r *Registry) FailPath(p string, status int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status[p] = status
}

// DownloadPath returns the request path of a version's archive.
func DownloadPath(name, version string) string {
	return "/api/v1/crates/" + name + "/" + version + "/download"
}

// IndexHits returns the number of index requests made for name.
func (r *Registry) IndexHits(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.indexHits[strings.ToLower(name)]
}

// Downloads returns the number of archive requests for name@version.
func (r *Registry) Downloads(name, version string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.downloads[name+"/"+version]
}

// TotalDownloads returns the number of archive requests of any crate.
func (r *Registry) TotalDownloads() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.downloads {
		n += c
	}
	return n
}

// ConfigHits returns the number of config.json requests.
func (r *Registry) ConfigHits() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.config
}

func (r *Registry) forcedStatus(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		r.mu.Lock()
		code, ok := r.status[req.URL.Path]
		r.mu.Unlock()
		if ok {
			w.WriteHeader(code)
			return
		}
		next.ServeHTTP(w, req)
	})
}

func (r *Registry) serveConfig(w http.ResponseWriter, req *http.Request) {
	r.mu.Lock()
	r.config++
	dl := r.DL
	r.mu.Unlock()

	if dl == "" {
		dl = r.Server.URL + "/api/v1/crates"
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(crates.Config{DL: dl, API: r.Server.URL})
}

func (r *Registry) serveIndex(w http.ResponseWriter, req *http.Request) {
	p := strings.TrimPrefix(req.URL.Path, "/")
	name := path.Base(p)
	if crates.IndexPath(name) != p {
		http.NotFound(w, req)
		return
	}

	r.mu.Lock()
	r.indexHits[name]++
	lines, ok := r.lines[name]
	r.mu.Unlock()
	if !ok {
		http.NotFound(w, req)
		return
	}
	w.Write([]byte(strings.Join(lines, "\n") + "\n"))
}

func (r *Registry) serveDownload(w http.ResponseWriter, req *http.Request) {
	key := chi.URLParam(req, "crate") + "/" + chi.URLParam(req, "version")

	r.mu.Lock()
	r.downloads[key]++
	body, ok := r.archives[key]
	corrupt := r.corrupt[key]
	r.mu.Unlock()
	if !ok {
		http.NotFound(w, req)
		return
	}
	if corrupt {
		body = append([]byte(nil), body...)
		if len(body) > 0 {
			body[len(body)-1] ^= 0xff
		} else {
			body = []byte{0}
		}
	}
	w.Header().Set("Content-Type", "application/gzip")
	w.Write(body)
}

// Member is one tar entry for [TarGz].
type Member struct {
	Name     string
	Body     string
	Typeflag byte   // defaults to tar.TypeReg
	Linkname string // for links
	Mode     int64  // defaults to 0o644
}

// Crate builds a .crate archive holding files under "name-version/".
// A Cargo.toml is added when files does not contain one.
func Crate(t testing.TB, name, version string, files map[string]string) []byte {
	t.Helper()
	if files == nil {
		files = map[string]string{}
	}
	if _, ok := files["Cargo.toml"]; !ok {
		files["Cargo.toml"] = "[package]\nname = \"" + name + "\"\nversion = \"" + version + "\"\n"
	}

	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	members := make([]Member, 0, len(paths))
	for _, p := range paths {
		members = append(members, Member{Name: name + "-" + version + "/" + p, Body: files[p]})
	}
	return TarGz(t, members...)
}

// TarGz builds a gzip-compressed tar stream from members in order.
func TarGz(t testing.TB, members ...Member) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	for _, m := range members {
		hdr := &tar.Header{
			Name:     m.Name,
			Typeflag: m.Typeflag,
			Linkname: m.Linkname,
			Mode:     m.Mode,
		}
		if hdr.Typeflag == 0 {
			hdr.Typeflag = tar.TypeReg
		}
		if hdr.Mode == 0 {
			hdr.Mode = 0o644
			if hdr.Typeflag == tar.TypeDir {
				hdr.Mode = 0o755
			}
		}
		if hdr.Typeflag == tar.TypeReg {
			hdr.Size = int64(len(m.Body))
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("write tar header %s: %v", m.Name, err)
		}
		if hdr.Typeflag == tar.TypeReg {
			if _, err := tw.Write([]byte(m.Body)); err != nil {
				t.Fatalf("write tar body %s: %v", m.Name, err)
			}
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("close tar: %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("close gzip: %v", err)
	}
	return buf.Bytes()
}
