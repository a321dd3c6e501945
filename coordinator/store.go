package coordinator

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

// operationsBucket is the single bbolt bucket operations are persisted
// under, keyed by operation id.
var operationsBucket = []byte("operations")

// OperationStore persists SyncOperations to a local bbolt file so operation
// history and status survive process restarts — adapted from the teacher's
// generic db/bolt JSON key/value wrapper, specialised to SyncOperation.
type OperationStore struct {
	db *bolt.DB
}

// OpenOperationStore opens (creating if necessary) a bbolt-backed operation
// store at path.
func OpenOperationStore(path string) (*OperationStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("coordinator: opening operation store %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(operationsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("coordinator: creating operations bucket: %w", err)
	}
	return &OperationStore{db: db}, nil
}

// Save upserts op's current state.
func (s *OperationStore) Save(op *SyncOperation) error {
	data, err := json.Marshal(op)
	if err != nil {
		return fmt.Errorf("coordinator: marshalling operation %s: %w", op.ID, err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(operationsBucket).Put([]byte(op.ID), data)
	})
}

// LoadAll returns every persisted operation, in no particular order.
func (s *OperationStore) LoadAll() ([]*SyncOperation, error) {
	var ops []*SyncOperation
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(operationsBucket).ForEach(func(k, v []byte) error {
			var op SyncOperation
			if err := json.Unmarshal(v, &op); err != nil {
				return fmt.Errorf("coordinator: unmarshalling operation %s: %w", k, err)
			}
			ops = append(ops, &op)
			return nil
		})
	})
	return ops, err
}

// Close releases the underlying bbolt file handle.
func (s *OperationStore) Close() error {
	return s.db.Close()
}
