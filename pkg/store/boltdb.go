package store

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/voxanet/netnode/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var (
	// Bucket names
	bucketDNSRecords = []byte("dns_records")
	bucketArtifacts  = []byte("artifacts")
	bucketApps       = []byte("apps")
)

// BoltStore is the embedded database for state that outlives the process
// but does not belong in the blob layout: overlay DNS records and test
// artifacts.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (or creates) the node database under dataDir.
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "netnode.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketDNSRecords, bucketArtifacts, bucketApps} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// SaveDNSRecords persists the record list for one domain.
func (s *BoltStore) SaveDNSRecords(domain string, records []*types.ARecord) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketDNSRecords)
		data, err := json.Marshal(records)
		if err != nil {
			return err
		}
		return b.Put([]byte(domain), data)
	})
}

// LoadDNSRecords loads every persisted domain slot.
func (s *BoltStore) LoadDNSRecords() (map[string][]*types.ARecord, error) {
	out := make(map[string][]*types.ARecord)
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketDNSRecords)
		return b.ForEach(func(k, v []byte) error {
			var records []*types.ARecord
			if err := json.Unmarshal(v, &records); err != nil {
				return err
			}
			out[string(k)] = records
			return nil
		})
	})
	return out, err
}

// CreateArtifact stores a test artifact; duplicate ids conflict.
func (s *BoltStore) CreateArtifact(artifact *types.Artifact) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketArtifacts)
		if b.Get([]byte(artifact.ID)) != nil {
			return fmt.Errorf("%w: artifact %s", types.ErrConflict, artifact.ID)
		}
		data, err := json.Marshal(artifact)
		if err != nil {
			return err
		}
		return b.Put([]byte(artifact.ID), data)
	})
}

// GetArtifact loads one artifact by id.
func (s *BoltStore) GetArtifact(id string) (*types.Artifact, error) {
	var artifact types.Artifact
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketArtifacts)
		data := b.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%w: artifact %s", types.ErrNotFound, id)
		}
		return json.Unmarshal(data, &artifact)
	})
	if err != nil {
		return nil, err
	}
	return &artifact, nil
}

// CreateApp stores an app record; duplicate ids conflict.
func (s *BoltStore) CreateApp(app *types.App) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketApps)
		if b.Get([]byte(app.ID)) != nil {
			return fmt.Errorf("%w: app %s", types.ErrConflict, app.ID)
		}
		data, err := json.Marshal(app)
		if err != nil {
			return err
		}
		return b.Put([]byte(app.ID), data)
	})
}

// UpdateApp upserts an app record.
func (s *BoltStore) UpdateApp(app *types.App) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketApps)
		data, err := json.Marshal(app)
		if err != nil {
			return err
		}
		return b.Put([]byte(app.ID), data)
	})
}

// GetApp loads one app record by id.
func (s *BoltStore) GetApp(id string) (*types.App, error) {
	var app types.App
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketApps)
		data := b.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%w: app %s", types.ErrNotFound, id)
		}
		return json.Unmarshal(data, &app)
	})
	if err != nil {
		return nil, err
	}
	return &app, nil
}

// ListApps loads every stored app record.
func (s *BoltStore) ListApps() ([]*types.App, error) {
	var apps []*types.App
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketApps)
		return b.ForEach(func(k, v []byte) error {
			var app types.App
			if err := json.Unmarshal(v, &app); err != nil {
				return err
			}
			apps = append(apps, &app)
			return nil
		})
	})
	return apps, err
}

// ListArtifacts loads every stored artifact.
func (s *BoltStore) ListArtifacts() ([]*types.Artifact, error) {
	var artifacts []*types.Artifact
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketArtifacts)
		return b.ForEach(func(k, v []byte) error {
			var artifact types.Artifact
			if err := json.Unmarshal(v, &artifact); err != nil {
				return err
			}
			artifacts = append(artifacts, &artifact)
			return nil
		})
	})
	return artifacts, err
}
