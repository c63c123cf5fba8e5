package checkpoint

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/google/uuid"

	bolt "go.etcd.io/bbolt"
)

// SAMPLES is the parent bucket for stored samples, every run has its
// own nested bucket.
var SAMPLES = []byte("samples")

// ErrNoDB is returned when a sample store is used without a database.
var ErrNoDB = errors.New("sample store requires a database")

// SampleStore is an append-only sample storage of one run.
type SampleStore struct {
	db    *bolt.DB
	runID uuid.UUID
	n     uint64
}

// NewSampleStore opens the store of run runID, creating it if
// necessary. Appending continues after the samples already stored.
func NewSampleStore(db *bolt.DB, runID uuid.UUID) (*SampleStore, error) {
	if db == nil {
		return nil, ErrNoDB
	}
	s := &SampleStore{db: db, runID: runID}
	err := db.Update(func(tx *bolt.Tx) error {
		root, err := tx.CreateBucketIfNotExists(SAMPLES)
		if err != nil {
			return err
		}
		b, err := root.CreateBucketIfNotExists(runID[:])
		if err != nil {
			return err
		}
		if k, _ := b.Cursor().Last(); k != nil {
			s.n = binary.BigEndian.Uint64(k) + 1
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.n > 0 {
		log.Infof("Run %v has %d stored samples", runID, s.n)
	}
	return s, nil
}

// RunID returns the run identifier.
func (s *SampleStore) RunID() uuid.UUID {
	return s.runID
}

// Len returns the number of stored samples.
func (s *SampleStore) Len() int {
	return int(s.n)
}

// itob encodes a sample number so that keys sort in insertion order.
func itob(i uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, i)
	return b
}

// value is a stored sample value. JSON has no literals for NaN and
// infinities, so they are encoded as strings.
type value float64

func (v value) MarshalJSON() ([]byte, error) {
	f := float64(v)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return json.Marshal(strconv.FormatFloat(f, 'g', -1, 64))
	}
	return json.Marshal(f)
}

func (v *value) UnmarshalJSON(b []byte) error {
	var f float64
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		var err error
		if f, err = strconv.ParseFloat(s, 64); err != nil {
			return err
		}
	} else if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*v = value(f)
	return nil
}

// Add appends a sample given as values by variable name. Values may
// be non-finite.
func (s *SampleStore) Add(values map[string]float64) error {
	enc := make(map[string]value, len(values))
	for k, v := range values {
		enc[k] = value(v)
	}
	data, err := json.Marshal(enc)
	if err != nil {
		return err
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(SAMPLES).Bucket(s.runID[:])
		return b.Put(itob(s.n), data)
	})
	if err != nil {
		return err
	}
	s.n++
	return nil
}

// Truncate drops the samples starting from n-th. Truncating to more
// samples than stored is an error.
func (s *SampleStore) Truncate(n int) error {
	if n < 0 || uint64(n) > s.n {
		return fmt.Errorf("run %v has %d samples, cannot keep %d", s.runID, s.n, n)
	}
	if uint64(n) == s.n {
		return nil
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(SAMPLES).Bucket(s.runID[:])
		var keys [][]byte
		c := b.Cursor()
		for k, _ := c.Seek(itob(uint64(n))); k != nil; k, _ = c.Next() {
			keys = append(keys, append([]byte(nil), k...))
		}
		for _, k := range keys {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	log.Noticef("Dropped %d samples stored after iteration %d", s.n-uint64(n), n-1)
	s.n = uint64(n)
	return nil
}

// All returns all stored samples in order.
func (s *SampleStore) All() ([]map[string]float64, error) {
	res := make([]map[string]float64, 0, s.n)
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(SAMPLES).Bucket(s.runID[:])
		return b.ForEach(func(k, v []byte) error {
			var enc map[string]value
			if err := json.Unmarshal(v, &enc); err != nil {
				return err
			}
			smp := make(map[string]float64, len(enc))
			for name, x := range enc {
				smp[name] = float64(x)
			}
			res = append(res, smp)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Runs lists the identifiers of all runs with stored samples.
func Runs(db *bolt.DB) ([]uuid.UUID, error) {
	var runs []uuid.UUID
	err := db.View(func(tx *bolt.Tx) error {
		root := tx.Bucket(SAMPLES)
		if root == nil {
			return nil
		}
		return root.ForEach(func(k, v []byte) error {
			id, err := uuid.FromBytes(k)
			if err != nil {
				return err
			}
			runs = append(runs, id)
			return nil
		})
	})
	return runs, err
}
