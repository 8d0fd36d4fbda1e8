package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/zlib"
	"github.com/voxanet/netnode/pkg/types"
)

const (
	blobExt       = ".bin"
	localNRIFile  = "nri.bin"
	keyFileExt    = ".key"
	blobFileMode  = 0600
	blobDirMode   = 0755
)

// RIStore persists routing-information records as one compressed JSON blob
// per id under the configured data directory. Writers are exclusive,
// readers shared.
type RIStore struct {
	nriDir   string
	rriDir   string
	localDir string
	mu       sync.RWMutex
}

// NewRIStore creates the directory layout and returns the store.
func NewRIStore(dataDir, nriSub, rriSub, localSub string) (*RIStore, error) {
	s := &RIStore{
		nriDir:   filepath.Join(dataDir, nriSub),
		rriDir:   filepath.Join(dataDir, rriSub),
		localDir: filepath.Join(dataDir, localSub),
	}
	for _, dir := range []string{s.nriDir, s.rriDir, s.localDir} {
		if err := os.MkdirAll(dir, blobDirMode); err != nil {
			return nil, fmt.Errorf("failed to create store directory %s: %w", dir, err)
		}
	}
	return s, nil
}

// CreateNRI writes a new NRI blob; an existing node_id is a conflict.
func (s *RIStore) CreateNRI(nri *types.NRI) error {
	if err := nri.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.blobPath(s.nriDir, nri.NodeID)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w: nri %s", types.ErrConflict, nri.NodeID)
	}
	stampNRI(nri, 1)
	return writeBlob(path, nri)
}

// UpdateNRI upserts an NRI blob, bumping last_updated and version.
func (s *RIStore) UpdateNRI(nri *types.NRI) error {
	if err := nri.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := &types.NRI{}
	if err := readBlob(s.blobPath(s.nriDir, nri.NodeID), prev); err == nil {
		nri.CreatedAt = prev.CreatedAt
		stampNRI(nri, prev.Version+1)
	} else {
		stampNRI(nri, 1)
	}
	return writeBlob(s.blobPath(s.nriDir, nri.NodeID), nri)
}

// GetNRI loads one NRI by node id.
func (s *RIStore) GetNRI(nodeID string) (*types.NRI, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	nri := &types.NRI{}
	if err := readBlob(s.blobPath(s.nriDir, nodeID), nri); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: nri %s", types.ErrNotFound, nodeID)
		}
		return nil, err
	}
	return nri, nil
}

// ListNRIs loads every stored NRI.
func (s *RIStore) ListNRIs() ([]*types.NRI, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*types.NRI
	err := eachBlob(s.nriDir, func(path string) error {
		nri := &types.NRI{}
		if err := readBlob(path, nri); err != nil {
			return err
		}
		out = append(out, nri)
		return nil
	})
	return out, err
}

// DeleteNRI removes an NRI blob.
func (s *RIStore) DeleteNRI(nodeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.blobPath(s.nriDir, nodeID)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: nri %s", types.ErrNotFound, nodeID)
		}
		return err
	}
	return nil
}

// CreateRRI writes a new RRI blob; an existing relay_id is a conflict.
func (s *RIStore) CreateRRI(rri *types.RRI) error {
	if err := rri.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.blobPath(s.rriDir, rri.RelayID)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w: rri %s", types.ErrConflict, rri.RelayID)
	}
	stampRRI(rri, 1)
	return writeBlob(path, rri)
}

// UpdateRRI upserts an RRI blob, bumping last_updated and version.
func (s *RIStore) UpdateRRI(rri *types.RRI) error {
	if err := rri.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := &types.RRI{}
	if err := readBlob(s.blobPath(s.rriDir, rri.RelayID), prev); err == nil {
		rri.CreatedAt = prev.CreatedAt
		stampRRI(rri, prev.Version+1)
	} else {
		stampRRI(rri, 1)
	}
	return writeBlob(s.blobPath(s.rriDir, rri.RelayID), rri)
}

// GetRRI loads one RRI by relay id.
func (s *RIStore) GetRRI(relayID string) (*types.RRI, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rri := &types.RRI{}
	if err := readBlob(s.blobPath(s.rriDir, relayID), rri); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: rri %s", types.ErrNotFound, relayID)
		}
		return nil, err
	}
	return rri, nil
}

// ListRRIs loads stored RRIs up to limit (0 = unbounded), de-duplicated by
// relay id.
func (s *RIStore) ListRRIs(limit int) ([]*types.RRI, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	var out []*types.RRI
	err := eachBlob(s.rriDir, func(path string) error {
		if limit > 0 && len(out) >= limit {
			return nil
		}
		rri := &types.RRI{}
		if err := readBlob(path, rri); err != nil {
			return err
		}
		if seen[rri.RelayID] {
			return nil
		}
		seen[rri.RelayID] = true
		out = append(out, rri)
		return nil
	})
	return out, err
}

// DeleteRRI removes an RRI blob.
func (s *RIStore) DeleteRRI(relayID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.blobPath(s.rriDir, relayID)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: rri %s", types.ErrNotFound, relayID)
		}
		return err
	}
	return nil
}

// SaveLocalNRI writes this node's own record.
func (s *RIStore) SaveLocalNRI(nri *types.NRI) error {
	if err := nri.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	stampNRI(nri, nri.Version+1)
	return writeBlob(filepath.Join(s.localDir, localNRIFile), nri)
}

// LoadLocalNRI reads this node's own record.
func (s *RIStore) LoadLocalNRI() (*types.NRI, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	nri := &types.NRI{}
	if err := readBlob(filepath.Join(s.localDir, localNRIFile), nri); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: local nri", types.ErrNotFound)
		}
		return nil, err
	}
	return nri, nil
}

// SaveKeyFile writes key material (PEM text or base64 symmetric key) to
// <local>/<name>.key.
func (s *RIStore) SaveKeyFile(name, data string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return os.WriteFile(filepath.Join(s.localDir, name+keyFileExt), []byte(data), blobFileMode)
}

// ReadKeyFile reads key material saved with SaveKeyFile.
func (s *RIStore) ReadKeyFile(name string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(filepath.Join(s.localDir, name+keyFileExt))
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: key file %s", types.ErrNotFound, name)
		}
		return "", err
	}
	return string(data), nil
}

func (s *RIStore) blobPath(dir, id string) string {
	return filepath.Join(dir, id+blobExt)
}

func stampNRI(nri *types.NRI, version int) {
	now := time.Now().UTC()
	if nri.CreatedAt.IsZero() {
		nri.CreatedAt = now
	}
	nri.LastUpdated = now
	nri.Version = version
}

func stampRRI(rri *types.RRI, version int) {
	now := time.Now().UTC()
	if rri.CreatedAt.IsZero() {
		rri.CreatedAt = now
	}
	rri.LastUpdated = now
	rri.Version = version
}

// writeBlob stores v as zlib-compressed JSON.
func writeBlob(path string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return err
	}
	if err := zw.Close(); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), blobFileMode)
}

// readBlob loads zlib-compressed JSON into v.
func readBlob(path string, v interface{}) error {
	compressed, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	zr, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return fmt.Errorf("failed to decompress %s: %w", path, err)
	}
	defer zr.Close()

	data, err := io.ReadAll(zr)
	if err != nil {
		return fmt.Errorf("failed to decompress %s: %w", path, err)
	}
	return json.Unmarshal(data, v)
}

func eachBlob(dir string, fn func(path string) error) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), blobExt) {
			continue
		}
		if err := fn(filepath.Join(dir, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}
