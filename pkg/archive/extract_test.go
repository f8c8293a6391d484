package archive

import (
	"archive/tar"
	"errors"
	"os"
	"path/filepath"
	"testing"

	cderrors "github.com/matzehuels/cargo-dl/pkg/errors"
	"github.com/matzehuels/cargo-dl/pkg/integrations/crates/cratestest"
)

const prefix = "serde-1.0.0"

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile(%s) error = %v", path, err)
	}
	return string(b)
}

func TestExtract(t *testing.T) {
	data := cratestest.Crate(t, "serde", "1.0.0", map[string]string{
		"src/lib.rs":    "pub fn f() {}",
		"README.md":     "# serde",
		"src/de/mod.rs": "mod de;",
	})
	dest := filepath.Join(t.TempDir(), "out", prefix)

	st, err := Extract(data, prefix, dest, false)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if st.Files != 4 || st.Replaced {
		t.Errorf("stats = %+v", st)
	}
	if got := readFile(t, filepath.Join(dest, "src", "lib.rs")); got != "pub fn f() {}" {
		t.Errorf("lib.rs = %q", got)
	}
	if _, err := os.Stat(filepath.Join(dest, prefix)); !errors.Is(err, os.ErrNotExist) {
		t.Error("archive prefix should be replaced by the target directory")
	}
	assertNoStaging(t, filepath.Dir(dest))
}

func TestExtractMergesIntoExisting(t *testing.T) {
	dest := filepath.Join(t.TempDir(), prefix)
	if err := os.MkdirAll(filepath.Join(dest, "src"), 0o755); err != nil {
		t.Fatal(err)
	}
	os.WriteFile(filepath.Join(dest, "src", "lib.rs"), []byte("old"), 0o644)
	os.WriteFile(filepath.Join(dest, "local.txt"), []byte("mine"), 0o644)

	data := cratestest.Crate(t, "serde", "1.0.0", map[string]string{"src/lib.rs": "new"})
	st, err := Extract(data, prefix, dest, false)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if !st.Replaced {
		t.Error("Replaced should be set when merging")
	}
	if got := readFile(t, filepath.Join(dest, "src", "lib.rs")); got != "new" {
		t.Errorf("lib.rs = %q, want new", got)
	}
	if got := readFile(t, filepath.Join(dest, "local.txt")); got != "mine" {
		t.Errorf("unrelated file changed: %q", got)
	}
}

func TestExtractNoClobber(t *testing.T) {
	dest := filepath.Join(t.TempDir(), prefix)
	if err := os.Mkdir(dest, 0o755); err != nil {
		t.Fatal(err)
	}
	data := cratestest.Crate(t, "serde", "1.0.0", nil)

	_, err := Extract(data, prefix, dest, true)
	if !cderrors.Is(err, cderrors.ErrCodeIO) {
		t.Fatalf("Extract() error = %v, want IO_ERROR", err)
	}
}

func TestExtractRejectsUnsafeMembers(t *testing.T) {
	tests := []struct {
		name    string
		members []cratestest.Member
	}{
		{"parent traversal", []cratestest.Member{
			{Name: prefix + "/ok.txt", Body: "fine"},
			{Name: prefix + "/../../etc/passed", Body: "pwned"},
		}},
		{"bare traversal", []cratestest.Member{{Name: "../../etc/passed", Body: "pwned"}}},
		{"absolute", []cratestest.Member{{Name: "/etc/passed", Body: "pwned"}}},
		{"outside prefix", []cratestest.Member{{Name: "other-1.0.0/file", Body: "x"}}},
		{"prefix lookalike", []cratestest.Member{{Name: prefix + "-evil/file", Body: "x"}}},
		{"escaping symlink", []cratestest.Member{
			{Name: prefix + "/link", Typeflag: tar.TypeSymlink, Linkname: "../../outside"},
		}},
		{"absolute symlink", []cratestest.Member{
			{Name: prefix + "/link", Typeflag: tar.TypeSymlink, Linkname: "/etc/passwd"},
		}},
		{"escaping hard link", []cratestest.Member{
			{Name: prefix + "/link", Typeflag: tar.TypeLink, Linkname: "../outside"},
		}},
		{"prefix as file", []cratestest.Member{{Name: prefix, Body: "x"}}},
		{"symlink chain", []cratestest.Member{
			{Name: prefix + "/a", Typeflag: tar.TypeSymlink, Linkname: "."},
			{Name: prefix + "/a/b", Typeflag: tar.TypeSymlink, Linkname: ".."},
			{Name: prefix + "/b/evil.txt", Body: "pwned"},
		}},
		{"file through symlinked dir", []cratestest.Member{
			{Name: prefix + "/src/lib.rs", Body: "lib"},
			{Name: prefix + "/s", Typeflag: tar.TypeSymlink, Linkname: "src"},
			{Name: prefix + "/s/evil.txt", Body: "pwned"},
		}},
		{"symlinked dir entry", []cratestest.Member{
			{Name: prefix + "/s", Typeflag: tar.TypeSymlink, Linkname: "."},
			{Name: prefix + "/s/", Typeflag: tar.TypeDir},
		}},
		{"hard link through symlinked dir", []cratestest.Member{
			{Name: prefix + "/ok.txt", Body: "fine"},
			{Name: prefix + "/a", Typeflag: tar.TypeSymlink, Linkname: "."},
			{Name: prefix + "/copy", Typeflag: tar.TypeLink, Linkname: prefix + "/a/ok.txt"},
		}},
		{"hard link to symlink", []cratestest.Member{
			{Name: prefix + "/sub/up", Typeflag: tar.TypeSymlink, Linkname: "../ok.txt"},
			{Name: prefix + "/top", Typeflag: tar.TypeLink, Linkname: prefix + "/sub/up"},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			dest := filepath.Join(root, "out", prefix)
			data := cratestest.TarGz(t, tt.members...)

			_, err := Extract(data, prefix, dest, false)
			if !cderrors.Is(err, cderrors.ErrCodeIO) {
				t.Fatalf("Extract() error = %v, want IO_ERROR", err)
			}
			if !errors.Is(err, ErrUnsafePath) {
				t.Errorf("error %v should wrap ErrUnsafePath", err)
			}
			if _, err := os.Stat(dest); !errors.Is(err, os.ErrNotExist) {
				t.Error("rejected archive must not create the target")
			}
			if _, err := os.Stat(filepath.Join(root, "etc", "passed")); !errors.Is(err, os.ErrNotExist) {
				t.Error("traversal member was written")
			}
			entries, err := os.ReadDir(filepath.Dir(dest))
			if err != nil {
				t.Fatal(err)
			}
			for _, e := range entries {
				t.Errorf("unexpected entry next to the target: %s", e.Name())
			}
			assertNoStaging(t, filepath.Join(root, "out"))
		})
	}
}

func TestExtractRejectedArchiveLeavesExistingTarget(t *testing.T) {
	dest := filepath.Join(t.TempDir(), prefix)
	if err := os.Mkdir(dest, 0o755); err != nil {
		t.Fatal(err)
	}
	os.WriteFile(filepath.Join(dest, "ok.txt"), []byte("original"), 0o644)

	data := cratestest.TarGz(t,
		cratestest.Member{Name: prefix + "/ok.txt", Body: "replaced"},
		cratestest.Member{Name: prefix + "/../escape", Body: "x"},
	)
	if _, err := Extract(data, prefix, dest, false); err == nil {
		t.Fatal("Extract() should fail")
	}
	if got := readFile(t, filepath.Join(dest, "ok.txt")); got != "original" {
		t.Errorf("ok.txt = %q, target must be untouched", got)
	}
}

func TestExtractLinksAndSpecialFiles(t *testing.T) {
	data := cratestest.TarGz(t,
		cratestest.Member{Name: prefix + "/", Typeflag: tar.TypeDir},
		cratestest.Member{Name: prefix + "/src/lib.rs", Body: "lib"},
		cratestest.Member{Name: prefix + "/src/alias.rs", Typeflag: tar.TypeSymlink, Linkname: "lib.rs"},
		cratestest.Member{Name: prefix + "/copy.rs", Typeflag: tar.TypeLink, Linkname: prefix + "/src/lib.rs"},
		cratestest.Member{Name: prefix + "/pipe", Typeflag: tar.TypeFifo},
	)
	dest := filepath.Join(t.TempDir(), prefix)

	st, err := Extract(data, prefix, dest, false)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if st.Links != 2 || st.Skipped != 1 {
		t.Errorf("stats = %+v", st)
	}
	if got := readFile(t, filepath.Join(dest, "src", "alias.rs")); got != "lib" {
		t.Errorf("alias.rs = %q", got)
	}
	if got := readFile(t, filepath.Join(dest, "copy.rs")); got != "lib" {
		t.Errorf("copy.rs = %q", got)
	}
	if _, err := os.Lstat(filepath.Join(dest, "pipe")); !errors.Is(err, os.ErrNotExist) {
		t.Error("FIFO should be skipped")
	}
}

func TestExtractSizeLimit(t *testing.T) {
	data := cratestest.Crate(t, "serde", "1.0.0", map[string]string{"big": string(make([]byte, 4096))})
	dest := filepath.Join(t.TempDir(), prefix)

	x := &Extractor{MaxUnpacked: 1024}
	if _, err := x.Extract(data, prefix, dest); !cderrors.Is(err, cderrors.ErrCodeIO) {
		t.Fatalf("Extract() error = %v, want IO_ERROR", err)
	}
}

func TestExtractCorruptStream(t *testing.T) {
	dest := filepath.Join(t.TempDir(), prefix)
	if _, err := Extract([]byte("not gzip"), prefix, dest, false); !cderrors.Is(err, cderrors.ErrCodeIO) {
		t.Fatalf("Extract() error = %v, want IO_ERROR", err)
	}
}

func TestExtractCleansSymlinkTargets(t *testing.T) {
	data := cratestest.TarGz(t,
		cratestest.Member{Name: prefix + "/x/y/lib.rs", Body: "lib"},
		cratestest.Member{Name: prefix + "/x/y/z/up", Typeflag: tar.TypeSymlink, Linkname: "../lib.rs"},
		cratestest.Member{Name: prefix + "/alias", Typeflag: tar.TypeSymlink, Linkname: "x/y/z/../lib.rs"},
	)
	dest := filepath.Join(t.TempDir(), prefix)

	if _, err := Extract(data, prefix, dest, false); err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	got, err := os.Readlink(filepath.Join(dest, "alias"))
	if err != nil || got != "x/y/lib.rs" {
		t.Errorf("Readlink(alias) = %q, %v, want x/y/lib.rs", got, err)
	}
	if got := readFile(t, filepath.Join(dest, "x", "y", "z", "up")); got != "lib" {
		t.Errorf("up = %q", got)
	}
}

func TestCheckSymlink(t *testing.T) {
	tests := []struct {
		rel, linkname, want string
		wantErr             bool
	}{
		{"src/alias.rs", "lib.rs", "lib.rs", false},
		{"a/b/link", "../../c", "../../c", false},
		{"a/link", "b/../../c", "../c", false},
		{"link", "a/../b", "b", false},
		{"link", "..", "", true},
		{"a/link", "../..", "", true},
		{"link", "/etc/passwd", "", true},
		{"link", "", "", true},
	}
	for _, tt := range tests {
		got, err := checkSymlink(tt.rel, tt.linkname)
		if (err != nil) != tt.wantErr || (!tt.wantErr && got != tt.want) {
			t.Errorf("checkSymlink(%q, %q) = %q, %v", tt.rel, tt.linkname, got, err)
		}
	}
}

func TestMemberPath(t *testing.T) {
	tests := []struct {
		name    string
		want    string
		wantErr bool
	}{
		{prefix, "", false},
		{prefix + "/", "", false},
		{prefix + "/a/b.rs", "a/b.rs", false},
		{prefix + "/./a", "a", false},
		{prefix + "/a/../b", "", true},
		{"", "", true},
		{`serde-1.0.0\evil`, "", true},
	}
	for _, tt := range tests {
		got, err := memberPath(tt.name, prefix)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("memberPath(%q) = %q, %v", tt.name, got, err)
		}
	}
}
