package schema

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	cbor "github.com/fxamacker/cbor/v2"
)

const cacheVersion = 1

// ErrCacheVersion is returned by LoadCache for files written by an
// incompatible version.
var ErrCacheVersion = errors.New("schema cache version mismatch")

type cacheFile struct {
	Version int     `cbor:"v"`
	Server  string  `cbor:"server,omitempty"`
	Schemas Schemas `cbor:"schemas"`
}

// SaveCache writes parsed schemas to path as canonical CBOR. server records
// which host the schemas were fetched from.
func SaveCache(path, server string, s Schemas) error {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		return fmt.Errorf("schema cache: %w", err)
	}
	data, err := em.Marshal(cacheFile{Version: cacheVersion, Server: server, Schemas: s})
	if err != nil {
		return fmt.Errorf("schema cache marshal: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("schema cache dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("schema cache write: %w", err)
	}
	return nil
}

// LoadCache reads schemas written by SaveCache and returns them together with
// the recorded server.
func LoadCache(path string) (Schemas, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("schema cache read: %w", err)
	}
	dm, err := cbor.DecOptions{}.DecMode()
	if err != nil {
		return nil, "", fmt.Errorf("schema cache: %w", err)
	}
	var f cacheFile
	if err := dm.Unmarshal(data, &f); err != nil {
		return nil, "", fmt.Errorf("schema cache unmarshal: %w", err)
	}
	if f.Version != cacheVersion {
		return nil, "", fmt.Errorf("%w: got %d, want %d", ErrCacheVersion, f.Version, cacheVersion)
	}
	if f.Schemas == nil {
		f.Schemas = make(Schemas)
	}
	return f.Schemas, f.Server, nil
}
