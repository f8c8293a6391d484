package archive

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	cderrors "github.com/matzehuels/cargo-dl/pkg/errors"
)

// WriteFile atomically writes data to path, creating parent directories.
// With noClobber set an existing path is an error and is left untouched.
func WriteFile(path string, data []byte, noClobber bool) error {
	if noClobber {
		if err := refuseExisting(path); err != nil {
			return err
		}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return cderrors.Wrap(cderrors.ErrCodeIO, err, "create directory %s", dir)
	}
	if fi, err := os.Stat(path); err == nil && fi.IsDir() {
		return cderrors.New(cderrors.ErrCodeIO, "%s is a directory", path)
	}

	staging := stagingPath(path)
	if err := writeStaging(staging, data); err != nil {
		os.Remove(staging)
		return cderrors.Wrap(cderrors.ErrCodeIO, err, "write %s", path)
	}
	if err := os.Rename(staging, path); err != nil {
		os.Remove(staging)
		return cderrors.Wrap(cderrors.ErrCodeIO, err, "write %s", path)
	}
	return nil
}

func writeStaging(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// stagingPath returns a unique hidden sibling of path.
func stagingPath(path string) string {
	return filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+".cargo-dl-"+uuid.NewString())
}

func refuseExisting(path string) error {
	_, err := os.Lstat(path)
	switch {
	case err == nil:
		return cderrors.New(cderrors.ErrCodeIO, "%s already exists (--no-clobber)", path)
	case errors.Is(err, fs.ErrNotExist):
		return nil
	default:
		return cderrors.Wrap(cderrors.ErrCodeIO, err, "stat %s", path)
	}
}
