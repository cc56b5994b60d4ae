package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"path/filepath"

	bolt "go.etcd.io/bbolt"

	"github.com/cuemby/cronfleet/pkg/types"
)

var (
	bucketTasks    = []byte("tasks")
	bucketSlots    = []byte("slots")
	bucketAgents   = []byte("agents")
	bucketQueues   = []byte("queues")
	bucketSettings = []byte("settings")
)

// Keys within bucketQueues and bucketSettings; these buckets hold a
// handful of scalars rather than one record per entity.
var (
	keyActiveQueue  = []byte("active")
	keyPendingQueue = []byte("pending")
	keyCursor       = []byte("cursor")
	keySettings     = []byte("settings")
)

// BoltStore implements Store on top of an embedded bbolt database. Every
// method runs in its own transaction, so each method commits in full or
// not at all; a scheduler operation that calls several methods is not
// atomic as a whole.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (creating if absent) the database file under
// dataDir and ensures every bucket this store uses exists.
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "cronfleet.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		buckets := [][]byte{bucketTasks, bucketSlots, bucketAgents, bucketQueues, bucketSettings}
		for _, bucket := range buckets {
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

// Close closes the underlying database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func slotKey(slotID uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, slotID)
	return b
}

// --- Tasks ---

func (s *BoltStore) PutTask(task *types.Task) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(task)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketTasks).Put([]byte(task.Fingerprint.Hex()), data)
	})
}

func (s *BoltStore) GetTask(fp types.Fingerprint) (*types.Task, error) {
	var task types.Task
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketTasks).Get([]byte(fp.Hex()))
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, &task)
	})
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func (s *BoltStore) ListTasks() ([]*types.Task, error) {
	var tasks []*types.Task
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketTasks).ForEach(func(_, v []byte) error {
			var task types.Task
			if err := json.Unmarshal(v, &task); err != nil {
				return err
			}
			tasks = append(tasks, &task)
			return nil
		})
	})
	return tasks, err
}

func (s *BoltStore) DeleteTask(fp types.Fingerprint) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketTasks).Delete([]byte(fp.Hex()))
	})
}

// --- Slots ---

func (s *BoltStore) PutSlot(slotID uint64, bucket []types.Fingerprint) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(bucket)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketSlots).Put(slotKey(slotID), data)
	})
}

func (s *BoltStore) GetSlot(slotID uint64) ([]types.Fingerprint, bool, error) {
	var bucket []types.Fingerprint
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketSlots).Get(slotKey(slotID))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &bucket)
	})
	return bucket, found, err
}

func (s *BoltStore) DeleteSlot(slotID uint64) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSlots).Delete(slotKey(slotID))
	})
}

func (s *BoltStore) ListSlotIDs() ([]uint64, error) {
	var ids []uint64
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketSlots).Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			ids = append(ids, binary.BigEndian.Uint64(k))
		}
		return nil
	})
	return ids, err
}

// --- Agents ---

func (s *BoltStore) PutAgent(agent *types.Agent) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(agent)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketAgents).Put([]byte(agent.Principal), data)
	})
}

func (s *BoltStore) GetAgent(principal types.Principal) (*types.Agent, error) {
	var agent types.Agent
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketAgents).Get([]byte(principal))
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, &agent)
	})
	if err != nil {
		return nil, err
	}
	return &agent, nil
}

func (s *BoltStore) ListAgents() ([]*types.Agent, error) {
	var agents []*types.Agent
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketAgents).ForEach(func(_, v []byte) error {
			var agent types.Agent
			if err := json.Unmarshal(v, &agent); err != nil {
				return err
			}
			agents = append(agents, &agent)
			return nil
		})
	})
	return agents, err
}

func (s *BoltStore) DeleteAgent(principal types.Principal) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketAgents).Delete([]byte(principal))
	})
}

// --- Queues and cursor ---

func (s *BoltStore) PutActiveQueue(queue []types.Principal) error {
	return s.putQueue(keyActiveQueue, queue)
}

func (s *BoltStore) GetActiveQueue() ([]types.Principal, error) {
	return s.getQueue(keyActiveQueue)
}

func (s *BoltStore) PutPendingQueue(queue []types.Principal) error {
	return s.putQueue(keyPendingQueue, queue)
}

func (s *BoltStore) GetPendingQueue() ([]types.Principal, error) {
	return s.getQueue(keyPendingQueue)
}

func (s *BoltStore) putQueue(key []byte, queue []types.Principal) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(queue)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketQueues).Put(key, data)
	})
}

func (s *BoltStore) getQueue(key []byte) ([]types.Principal, error) {
	var queue []types.Principal
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketQueues).Get(key)
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &queue)
	})
	return queue, err
}

func (s *BoltStore) PutCursor(cursor int) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := make([]byte, 8)
		binary.BigEndian.PutUint64(b, uint64(cursor))
		return tx.Bucket(bucketQueues).Put(keyCursor, b)
	})
}

func (s *BoltStore) GetCursor() (int, error) {
	cursor := 0
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketQueues).Get(keyCursor)
		if data == nil {
			return nil
		}
		cursor = int(binary.BigEndian.Uint64(data))
		return nil
	})
	return cursor, err
}

// --- Settings ---

func (s *BoltStore) PutSettings(settings *types.Settings) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(settings)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketSettings).Put(keySettings, data)
	})
}

func (s *BoltStore) GetSettings() (*types.Settings, error) {
	var settings types.Settings
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketSettings).Get(keySettings)
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, &settings)
	})
	if err != nil {
		return nil, err
	}
	return &settings, nil
}
