package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the optional config file. Zero values mean "not set".
type Config struct {
	Index     string   `toml:"index"`
	UserAgent string   `toml:"user_agent"`
	Jobs      int      `toml:"jobs"`
	CacheDirs []string `toml:"cache_dirs"`
	NoClobber bool     `toml:"no_clobber"`
	SizeLimit int64    `toml:"size_limit"`
	Timeout   duration `toml:"timeout"`
}

// duration decodes Go duration strings such as "30s".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// configPath returns the config file location using XDG standard
// (~/.config/cargo-dl/config.toml).
func configPath() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, appName, "config.toml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", appName, "config.toml"), nil
}

// loadConfig reads the config file at path. With an empty path the default
// location is used and a missing file yields an empty config; an explicit
// path must exist.
func loadConfig(path string) (Config, string, error) {
	var cfg Config
	explicit := path != ""
	if !explicit {
		p, err := configPath()
		if err != nil {
			return cfg, "", nil
		}
		path = p
	}

	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return Config{}, "", nil
		}
		return Config{}, path, fmt.Errorf("config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return cfg, path, fmt.Errorf("config %s: unknown key %q", path, undecoded[0].String())
	}
	if cfg.Jobs < 0 {
		return cfg, path, fmt.Errorf("config %s: jobs must be positive", path)
	}
	return cfg, path, nil
}
