// Package checkpoint creates CheckpointIO which saves and restores
// chain states.
package checkpoint

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/op/go-logging"
	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"

	"bitbucket.org/Davydov/gohmc/hmc"
)

// log is the global logging variable.
var log = logging.MustGetLogger("checkpoint")

// MAIN is the bucket name for all the checkpoints.
var MAIN = []byte("main")

// CheckpointData stores checkpoint data.
type CheckpointData struct {
	State *hmc.ChainState `json:"state"`
	Iter  int             `json:"iter"`
	LogP  float64         `json:"logp"`
	Final bool            `json:"final"`
}

// CheckpointIO saves and loads the checkpoints of a single chain.
type CheckpointIO struct {
	db      *bolt.DB
	key     []byte
	last    time.Time
	seconds float64
}

// NewCheckpointIO creates a new CheckpointIO. A checkpoint is
// considered old after the given number of seconds.
func NewCheckpointIO(db *bolt.DB, key []byte, seconds float64) (s *CheckpointIO) {
	s = &CheckpointIO{
		db:      db,
		key:     key,
		seconds: seconds,
	}
	s.SetNow()
	return
}

// Open opens (or creates) the checkpoint database.
func Open(path string) (*bolt.DB, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open checkpoint database %s", path)
	}
	return db, nil
}

// ChainKey returns the database key of chain k.
func ChainKey(k int) []byte {
	return []byte("chain-" + strconv.Itoa(k))
}

// Save saves the chain state to the database.
func (s *CheckpointIO) Save(state *hmc.ChainState, final bool) error {
	// Even if saving fails, we do not want to run this code too often.
	s.SetNow()
	data := &CheckpointData{
		State: state,
		Iter:  state.Iteration,
		LogP:  state.Point.LogP,
		Final: final,
	}
	dataB, err := json.Marshal(data)
	if err != nil {
		log.Error("Error serializing checkpoint", err)
		return errors.Wrap(err, "cannot serialize checkpoint")
	}
	err = SaveData(s.db, s.key, dataB)
	if err != nil {
		log.Error("Error saving checkpoint", err)
		return errors.Wrap(err, "cannot save checkpoint")
	}
	log.Debugf("Checkpoint saved (key=%s, iter=%d)", s.key, data.Iter)
	return nil
}

// Load returns the saved checkpoint or nil if there is none.
func (s *CheckpointIO) Load() (*CheckpointData, error) {
	var data *CheckpointData

	b, err := LoadData(s.db, s.key)

	if err != nil || b == nil {
		return nil, err
	}

	err = json.Unmarshal(b, &data)

	if err != nil {
		return nil, errors.Wrapf(err, "cannot read checkpoint %s", s.key)
	}

	if data == nil || data.State == nil {
		return nil, nil
	}

	if data.Final {
		log.Noticef("Found finished chain checkpoint (iter=%v, L=%v)", data.Iter, data.LogP)
	} else {
		log.Noticef("Found unfinished chain checkpoint (iter=%v, L=%v)", data.Iter, data.LogP)
	}

	return data, nil
}

// Old returns true if last checkpoint save time too long ago.
func (s *CheckpointIO) Old() bool {
	return time.Since(s.last).Seconds() > s.seconds
}

// SetNow sets last checkpoint time to now.
func (s *CheckpointIO) SetNow() {
	s.last = time.Now()
}

// SaveData saves values in bolt database.
func SaveData(db *bolt.DB, key []byte, data []byte) error {
	if db == nil {
		return nil
	}
	err := db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(MAIN)
		if err != nil {
			return err
		}

		err = b.Put(key, data)
		return err
	})
	return err
}

// LoadData loads data from bolt database.
func LoadData(db *bolt.DB, key []byte) ([]byte, error) {
	var data []byte
	if db == nil {
		return nil, nil
	}
	err := db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(MAIN)
		if b == nil {
			return nil
		}

		// the value is only valid during the transaction
		if v := b.Get(key); v != nil {
			data = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}
