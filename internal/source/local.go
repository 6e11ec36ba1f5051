package source

import (
	"context"
	"os"
	"path/filepath"
)

type localConfig struct {
	Dir string `json:"dir"`
}

type localStore struct {
	dir string
}

func init() {
	Register("local", createLocalStore)
}

func createLocalStore(args interface{}) (Store, error) {
	cfg := &localConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	return &localStore{dir: cfg.Dir}, nil
}

func (s *localStore) Type() string {
	return "local"
}

// Read resolves relative keys against the configured dir, or the working
// directory when none is set.
func (s *localStore) Read(_ context.Context, key string) ([]byte, error) {
	path := key
	if s.dir != "" && !filepath.IsAbs(key) {
		path = filepath.Join(s.dir, key)
	}
	return os.ReadFile(path)
}
