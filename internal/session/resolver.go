package session

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// StorageKey is versioned: bumping the suffix abandons identifiers written in
// an older format and forces regeneration without any migration step.
const StorageKey = "session_id_v2"

// Store is durable client-local storage for the session identifier.
type Store interface {
	Get(key string) (string, error)
	Set(key, value string) error
}

// Resolver derives and persists the per-visitor conversation identifier.
// If durable storage fails it degrades to a process-lifetime identifier;
// the conversation then simply does not survive a restart.
type Resolver struct {
	store Store
	mem   string
}

func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

// Resolve returns the stable session identifier, generating and persisting
// one on first use. It never regenerates an existing valid value and never
// fails.
func (r *Resolver) Resolve() string {
	if r.mem != "" {
		return r.mem
	}

	if r.store != nil {
		if v, err := r.store.Get(StorageKey); err == nil {
			if _, perr := uuid.Parse(strings.TrimSpace(v)); perr == nil {
				r.mem = strings.TrimSpace(v)
				return r.mem
			}
		}
	}

	id := uuid.NewString()
	if r.store != nil {
		// best effort; a write failure leaves us on the in-memory id
		_ = r.store.Set(StorageKey, id)
	}
	r.mem = id
	return id
}

// FileStore keeps one small file per key under a client-local directory.
type FileStore struct {
	Dir string
}

// NewFileStore roots the store at dir, defaulting to a lasechat directory
// under the user config dir.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return nil, err
		}
		dir = filepath.Join(base, "lasechat")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	return &FileStore{Dir: dir}, nil
}

func (f *FileStore) Get(key string) (string, error) {
	b, err := os.ReadFile(filepath.Join(f.Dir, key))
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (f *FileStore) Set(key, value string) error {
	return os.WriteFile(filepath.Join(f.Dir, key), []byte(value), 0o600)
}
