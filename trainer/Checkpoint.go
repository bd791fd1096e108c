package trainer

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

const checkpointBucket = "checkpoint"

var (
	parametersKey = []byte("parameters")
	stepKey       = []byte("step")
	runIDKey      = []byte("runID")
)

// Checkpointer persists the policy network's parameter vector together
// with the training step counter. Both are written in a single bolt
// transaction: either the pair lands on disk together or neither does.
// A checkpoint with parameters but a stale step counter (or the
// reverse) is worse for resumability than no checkpoint at all.
type Checkpointer struct {
	db *bolt.DB
}

// NewCheckpointer opens (or creates) the checkpoint database at path
func NewCheckpointer(path string) (*Checkpointer, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("newcheckpointer: could not open %v: %v",
			path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(checkpointBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("newcheckpointer: could not create bucket: %v",
			err)
	}

	return &Checkpointer{db: db}, nil
}

// Save writes the parameter vector and step counter atomically,
// tagging the checkpoint with the run that produced it.
func (c *Checkpointer) Save(params []float64, step int, runID string) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(params); err != nil {
		return fmt.Errorf("save: could not encode parameters: %v", err)
	}

	stepBytes := make([]byte, 8)
	binary.BigEndian.PutUint64(stepBytes, uint64(step))

	err := c.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(checkpointBucket))
		if err := bucket.Put(parametersKey, buf.Bytes()); err != nil {
			return err
		}
		if err := bucket.Put(stepKey, stepBytes); err != nil {
			return err
		}
		return bucket.Put(runIDKey, []byte(runID))
	})
	if err != nil {
		return fmt.Errorf("save: could not write checkpoint: %v", err)
	}
	return nil
}

// Load reads the most recent checkpoint. The ok return is false when
// no checkpoint has been written yet; a present but undecodable
// checkpoint is an error, and the caller decides whether that is fatal
// based on whether the checkpoint was explicitly requested.
func (c *Checkpointer) Load() (params []float64, step int, ok bool,
	err error) {
	err = c.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(checkpointBucket))
		paramBytes := bucket.Get(parametersKey)
		stepBytes := bucket.Get(stepKey)
		if paramBytes == nil || stepBytes == nil {
			return nil
		}

		if err := gob.NewDecoder(bytes.NewReader(paramBytes)).
			Decode(&params); err != nil {
			return fmt.Errorf("could not decode parameters: %v", err)
		}
		if len(stepBytes) != 8 {
			return fmt.Errorf("corrupt step counter")
		}
		step = int(binary.BigEndian.Uint64(stepBytes))
		ok = true
		return nil
	})
	if err != nil {
		return nil, 0, false, fmt.Errorf("load: %v", err)
	}
	return params, step, ok, nil
}

// Close closes the underlying database
func (c *Checkpointer) Close() error {
	return c.db.Close()
}
