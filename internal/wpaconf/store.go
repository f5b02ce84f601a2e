package wpaconf

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sys/unix"

	"github.com/nuclearlighters/wifisetup/internal/wifi"
)

// Store reads and writes the client configuration file. It is the only
// writer of that file.
type Store struct {
	path    string
	country string
	opts    Options

	mu sync.Mutex
}

// NewStore creates a store for the configuration at path.
func NewStore(path, country string, opts Options) *Store {
	return &Store{path: path, country: country, opts: opts}
}

// Path returns the configuration file path.
func (s *Store) Path() string {
	return s.path
}

// Snapshot is the file content before a change, used to undo it.
type Snapshot struct {
	data    []byte
	existed bool
}

// Load parses the configuration. A missing file yields an empty
// configuration with the standard header.
func (s *Store) Load() (*File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, _, err := s.load()
	return f, err
}

func (s *Store) load() (*File, Snapshot, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return NewFile(s.country), Snapshot{}, nil
	}
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return nil, Snapshot{}, &wifi.PermissionError{Op: "read", Path: s.path, Err: err}
		}
		return nil, Snapshot{}, fmt.Errorf("read %s: %w", s.path, err)
	}
	f, err := Parse(string(data))
	if err != nil {
		return nil, Snapshot{}, fmt.Errorf("parse %s: %w", s.path, err)
	}
	return f, Snapshot{data: data, existed: true}, nil
}

// CheckWritable verifies the service may replace the configuration file
// before anything is changed.
func (s *Store) CheckWritable() error {
	dir := filepath.Dir(s.path)
	err := unix.Access(dir, unix.W_OK)
	if err == nil || errors.Is(err, unix.ENOENT) {
		return nil
	}
	return &wifi.PermissionError{Op: "write", Path: s.path, Err: err}
}

// Upsert adds a network block for c with the highest priority, replacing
// any block with the same SSID. The returned snapshot restores the
// previous content.
func (s *Store) Upsert(c wifi.Credentials) (Snapshot, error) {
	b, err := BuildBlock(c, 0, s.opts)
	if err != nil {
		return Snapshot{}, err
	}
	if err := s.CheckWritable(); err != nil {
		return Snapshot{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, snap, err := s.load()
	if err != nil {
		return Snapshot{}, err
	}
	f.RemoveSSID(c.SSID)
	b.Set("priority", fmt.Sprint(f.MaxPriority()+1))
	f.Blocks = append(f.Blocks, b)

	if err := s.write([]byte(f.String())); err != nil {
		return Snapshot{}, err
	}
	log.Info().Str("ssid", c.SSID).Str("path", s.path).Msg("Saved network configuration")
	return snap, nil
}

// Restore puts back the content captured by snap.
func (s *Store) Restore(snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !snap.existed {
		err := os.Remove(s.path)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", s.path, err)
		}
		return nil
	}
	return s.write(snap.data)
}

// List returns the saved networks in file order. The id of a network is
// its block index, matching the id wpa_cli reports.
func (s *Store) List() ([]wifi.SavedNetwork, error) {
	f, err := s.Load()
	if err != nil {
		return nil, err
	}
	out := make([]wifi.SavedNetwork, 0, len(f.Blocks))
	for i, b := range f.Blocks {
		out = append(out, wifi.SavedNetwork{
			ID:       i,
			SSID:     b.SSID(),
			Priority: b.Priority(),
			Disabled: b.Disabled(),
		})
	}
	return out, nil
}

// SSIDs returns the names of all saved networks.
func (s *Store) SSIDs() ([]string, error) {
	saved, err := s.List()
	if err != nil {
		return nil, err
	}
	out := make([]string, len(saved))
	for i, n := range saved {
		out[i] = n.SSID
	}
	return out, nil
}

// Remove deletes the block with the given id, refusing to remove the
// network named protect.
func (s *Store) Remove(id int, protect string) (wifi.SavedNetwork, error) {
	if err := s.CheckWritable(); err != nil {
		return wifi.SavedNetwork{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, _, err := s.load()
	if err != nil {
		return wifi.SavedNetwork{}, err
	}
	if id < 0 || id >= len(f.Blocks) {
		return wifi.SavedNetwork{}, fmt.Errorf("network id %d: %w", id, wifi.ErrNotFound)
	}

	b := f.Blocks[id]
	removed := wifi.SavedNetwork{ID: id, SSID: b.SSID(), Priority: b.Priority(), Disabled: b.Disabled()}
	if protect != "" && removed.SSID == protect {
		return wifi.SavedNetwork{}, wifi.ErrForgetCurrent
	}

	f.Blocks = append(f.Blocks[:id], f.Blocks[id+1:]...)
	if err := s.write([]byte(f.String())); err != nil {
		return wifi.SavedNetwork{}, err
	}
	log.Info().Int("id", id).Str("ssid", removed.SSID).Msg("Removed saved network")
	return removed, nil
}

// write replaces the file atomically with mode 0600.
func (s *Store) write(data []byte) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return wrapWriteErr(s.path, err)
	}

	tmp, err := os.CreateTemp(dir, ".wpa_supplicant-*.tmp")
	if err != nil {
		return wrapWriteErr(s.path, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return wrapWriteErr(s.path, err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return wrapWriteErr(s.path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return wrapWriteErr(s.path, err)
	}
	if err := tmp.Close(); err != nil {
		return wrapWriteErr(s.path, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return wrapWriteErr(s.path, err)
	}
	return nil
}

func wrapWriteErr(path string, err error) error {
	if errors.Is(err, fs.ErrPermission) {
		return &wifi.PermissionError{Op: "write", Path: path, Err: err}
	}
	return fmt.Errorf("write %s: %w", path, err)
}
