package trafficsync

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

const (
	bucketName    = "trafficsync"
	inventoryKey  = "inventory"
	openTimeout   = 2 * time.Second
	checkpointDir = 0o755
)

// InventoryState is where an interrupted inventory scan left off
type InventoryState struct {
	Bookmark  string    `json:"bookmark"`
	Pages     int       `json:"pages"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Checkpoint persists sync progress in a local bbolt file
type Checkpoint struct {
	db *bolt.DB
}

// OpenCheckpoint opens (or creates) the checkpoint file at path
func OpenCheckpoint(path string) (*Checkpoint, error) {
	if err := os.MkdirAll(filepath.Dir(path), checkpointDir); err != nil {
		return nil, fmt.Errorf("failed to create checkpoint directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: openTimeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint %s: %w", path, err)
	}
	return &Checkpoint{db: db}, nil
}

// Close closes the checkpoint file
func (c *Checkpoint) Close() error {
	return c.db.Close()
}

// Inventory returns the saved inventory state, or nil when there is none
func (c *Checkpoint) Inventory() (*InventoryState, error) {
	var state *InventoryState
	err := c.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		if bucket == nil {
			return nil
		}
		data := bucket.Get([]byte(inventoryKey))
		if data == nil {
			return nil
		}
		state = &InventoryState{}
		return json.Unmarshal(data, state)
	})
	return state, err
}

// SaveInventory stores state for the next run to resume from
func (c *Checkpoint) SaveInventory(state InventoryState) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		if err != nil {
			return err
		}
		data, err := json.Marshal(state)
		if err != nil {
			return err
		}
		return bucket.Put([]byte(inventoryKey), data)
	})
}

// ClearInventory forgets the saved state once a scan reaches the last page
func (c *Checkpoint) ClearInventory() error {
	return c.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		if bucket == nil {
			return nil
		}
		return bucket.Delete([]byte(inventoryKey))
	})
}
