package archive

import (
	"archive/tar"
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"

	cderrors "github.com/matzehuels/cargo-dl/pkg/errors"
)

// DefaultMaxUnpacked bounds the total uncompressed size of an extraction.
const DefaultMaxUnpacked int64 = 1 << 30

// ErrUnsafePath is wrapped by errors for members that would escape the
// target directory.
var ErrUnsafePath = errors.New("unsafe path in archive")

// Stats summarizes an extraction.
type Stats struct {
	Files    int
	Dirs     int
	Links    int
	Skipped  int   // device nodes, FIFOs and unknown member types
	Bytes    int64 // uncompressed file content written
	Replaced bool  // target existed and was merged into
}

// Extractor unpacks crate archives.
type Extractor struct {
	// MaxUnpacked caps the uncompressed bytes written; <= 0 selects
	// DefaultMaxUnpacked.
	MaxUnpacked int64
	// NoClobber refuses to touch an existing target.
	NoClobber bool
}

// Extract unpacks data with default settings, see [Extractor.Extract].
func Extract(data []byte, prefix, dest string, noClobber bool) (Stats, error) {
	return (&Extractor{NoClobber: noClobber}).Extract(data, prefix, dest)
}

// Extract unpacks the gzip-compressed tar in data into dest.
//
// Every member must live under prefix (normally "name-version"); that
// directory is replaced by dest. The archive is fully unpacked into a
// staging directory first. A fresh dest is created by renaming the staging
// directory; an existing dest is merged into file by file.
func (x *Extractor) Extract(data []byte, prefix, dest string) (Stats, error) {
	var st Stats
	if x.NoClobber {
		if err := refuseExisting(dest); err != nil {
			return st, err
		}
	}

	parent := filepath.Dir(dest)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return st, cderrors.Wrap(cderrors.ErrCodeIO, err, "create directory %s", parent)
	}

	staging := stagingPath(dest)
	if err := os.Mkdir(staging, 0o755); err != nil {
		return st, cderrors.Wrap(cderrors.ErrCodeIO, err, "create staging directory")
	}
	defer os.RemoveAll(staging)

	limit := x.MaxUnpacked
	if limit <= 0 {
		limit = DefaultMaxUnpacked
	}
	if err := unpack(data, prefix, staging, limit, &st); err != nil {
		return st, cderrors.Wrap(cderrors.ErrCodeIO, err, "extract %s", prefix)
	}

	fi, err := os.Lstat(dest)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if err := os.Rename(staging, dest); err != nil {
			return st, cderrors.Wrap(cderrors.ErrCodeIO, err, "move into %s", dest)
		}
	case err != nil:
		return st, cderrors.Wrap(cderrors.ErrCodeIO, err, "stat %s", dest)
	case !fi.IsDir():
		return st, cderrors.New(cderrors.ErrCodeIO, "%s exists and is not a directory", dest)
	default:
		st.Replaced = true
		if err := merge(staging, dest); err != nil {
			return st, cderrors.Wrap(cderrors.ErrCodeIO, err, "merge into %s", dest)
		}
	}
	return st, nil
}

func unpack(data []byte, prefix, root string, limit int64, st *Stats) error {
	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("open gzip stream: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read tar header: %w", err)
		}
		if hdr.Typeflag == tar.TypeXGlobalHeader {
			continue
		}

		rel, err := memberPath(hdr.Name, prefix)
		if err != nil {
			return err
		}
		if rel == "" {
			if hdr.Typeflag != tar.TypeDir {
				return fmt.Errorf("%w: %q is not a directory", ErrUnsafePath, hdr.Name)
			}
			continue
		}
		target := filepath.Join(root, filepath.FromSlash(rel))
		if err := checkParents(root, rel, hdr.Typeflag == tar.TypeDir); err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			st.Dirs++

		case tar.TypeReg:
			if hdr.Size > limit-st.Bytes {
				return fmt.Errorf("archive expands beyond %d bytes", limit)
			}
			n, err := writeMember(target, tr, hdr)
			if err != nil {
				return fmt.Errorf("write %s: %w", rel, err)
			}
			st.Bytes += n
			st.Files++

		case tar.TypeSymlink:
			linkname, err := checkSymlink(rel, hdr.Linkname)
			if err != nil {
				return err
			}
			if err := replaceWith(target, func() error { return os.Symlink(linkname, target) }); err != nil {
				return fmt.Errorf("symlink %s: %w", rel, err)
			}
			st.Links++

		case tar.TypeLink:
			src, err := memberPath(hdr.Linkname, prefix)
			if err != nil || src == "" {
				return fmt.Errorf("%w: hard link %q -> %q", ErrUnsafePath, hdr.Name, hdr.Linkname)
			}
			if err := checkParents(root, src, false); err != nil {
				return err
			}
			oldname := filepath.Join(root, filepath.FromSlash(src))
			if fi, err := os.Lstat(oldname); err != nil || !fi.Mode().IsRegular() {
				return fmt.Errorf("%w: hard link %q -> %q is not a regular file", ErrUnsafePath, hdr.Name, hdr.Linkname)
			}
			if err := replaceWith(target, func() error { return os.Link(oldname, target) }); err != nil {
				return fmt.Errorf("link %s: %w", rel, err)
			}
			st.Links++

		default:
			// Devices, FIFOs and metadata records are never materialized.
			st.Skipped++
		}
	}
}

// memberPath validates an archive member name and returns its path relative
// to prefix, in slash form. The prefix directory itself maps to "".
func memberPath(name, prefix string) (string, error) {
	if name == "" || strings.HasPrefix(name, "/") || strings.Contains(name, `\`) || filepath.IsAbs(name) {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, name)
	}
	for _, part := range strings.Split(name, "/") {
		if part == ".." {
			return "", fmt.Errorf("%w: %q", ErrUnsafePath, name)
		}
	}

	clean := path.Clean(name)
	if clean == prefix {
		return "", nil
	}
	rel, ok := strings.CutPrefix(clean, prefix+"/")
	if !ok {
		return "", fmt.Errorf("%w: %q is outside %s/", ErrUnsafePath, name, prefix)
	}
	return rel, nil
}

// checkSymlink rejects link targets that leave the extracted tree and
// returns the target to create. The target is cleaned so ".." only appears
// as leading components and never follows another link.
func checkSymlink(rel, linkname string) (string, error) {
	if linkname == "" || path.IsAbs(linkname) || strings.Contains(linkname, `\`) {
		return "", fmt.Errorf("%w: symlink %q -> %q", ErrUnsafePath, rel, linkname)
	}
	clean := path.Clean(linkname)
	resolved := path.Join(path.Dir(rel), clean)
	if resolved == ".." || strings.HasPrefix(resolved, "../") {
		return "", fmt.Errorf("%w: symlink %q -> %q", ErrUnsafePath, rel, linkname)
	}
	return clean, nil
}

// checkParents rejects rel when a directory on its way down from root is a
// symlink created by an earlier member. With self set, rel itself is
// checked too.
func checkParents(root, rel string, self bool) error {
	parts := strings.Split(rel, "/")
	if !self {
		parts = parts[:len(parts)-1]
	}
	cur := root
	for _, part := range parts {
		cur = filepath.Join(cur, part)
		fi, err := os.Lstat(cur)
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		if err != nil {
			return err
		}
		if fi.Mode()&fs.ModeSymlink != 0 {
			return fmt.Errorf("%w: %q passes through symlink %q", ErrUnsafePath, rel, part)
		}
	}
	return nil
}

func writeMember(target string, r io.Reader, hdr *tar.Header) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return 0, err
	}
	mode := fs.FileMode(hdr.Mode).Perm() | 0o600
	if err := removeExisting(target); err != nil {
		return 0, err
	}
	f, err := os.OpenFile(target, os.O_CREATE|os.O_EXCL|os.O_WRONLY, mode)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(f, io.LimitReader(r, hdr.Size))
	if err != nil {
		f.Close()
		return n, err
	}
	return n, f.Close()
}

func replaceWith(target string, create func() error) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	if err := removeExisting(target); err != nil {
		return err
	}
	return create()
}

// removeExisting deletes a previous non-directory member at target so a
// duplicate entry never writes through a link.
func removeExisting(target string) error {
	fi, err := os.Lstat(target)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if fi.IsDir() {
		return fmt.Errorf("%s is a directory", target)
	}
	return os.Remove(target)
}

// merge moves everything under src into the existing directory dst.
// Files are replaced one rename at a time.
func merge(src, dst string) error {
	return filepath.WalkDir(src, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil || rel == "." {
			return err
		}
		target := filepath.Join(dst, rel)

		if d.IsDir() {
			fi, err := os.Lstat(target)
			if err == nil && !fi.IsDir() {
				if err := os.Remove(target); err != nil {
					return err
				}
			}
			return os.MkdirAll(target, 0o755)
		}
		if err := removeExisting(target); err != nil {
			return err
		}
		return os.Rename(p, target)
	})
}
