package checkpoint

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/op/go-logging"

	bolt "go.etcd.io/bbolt"
)

func init() {
	// disable logging for tests
	logging.SetLevel(logging.WARNING, "checkpoint")
}

func openDB(tst *testing.T, fn string) *bolt.DB {
	db, err := bolt.Open(fn, 0600, nil)
	if err != nil {
		tst.Fatal("Error opening database: ", err)
	}
	return db
}

func TestCheckpointIO(tst *testing.T) {
	db := openDB(tst, filepath.Join(tst.TempDir(), "test.db"))
	defer db.Close()

	cio := NewCheckpointIO(db, []byte("chain"), 60)
	data, err := cio.GetParameters()
	if err != nil || data != nil {
		tst.Fatal("Expected no checkpoint, got", data, err)
	}
	if cio.Old() {
		tst.Error("Checkpoint must not be old right after creation")
	}

	err = cio.Save(&CheckpointData{
		Parameters: map[string]float64{"A": 1.5, "B": -2},
		LogProb:    -3.25,
		Iter:       7,
	})
	if err != nil {
		tst.Fatal("Error: ", err)
	}
	data, err = cio.GetParameters()
	if err != nil || data == nil {
		tst.Fatal("Checkpoint not found: ", err)
	}
	if data.Parameters["A"] != 1.5 || data.Parameters["B"] != -2 || data.LogProb != -3.25 || data.Iter != 7 || data.Final {
		tst.Error("Incorrect checkpoint", data)
	}

	other := NewCheckpointIO(db, []byte("other"), 0)
	if data, _ := other.GetParameters(); data != nil {
		tst.Error("Checkpoints of different chains are not separate")
	}
	if !other.Old() {
		tst.Error("Checkpoint with zero period must be old")
	}
}

func TestLoadData(tst *testing.T) {
	db := openDB(tst, filepath.Join(tst.TempDir(), "test.db"))
	defer db.Close()

	if data, err := LoadData(db, MAIN, []byte("missing")); err != nil || data != nil {
		tst.Error("Expected nothing, got", data, err)
	}
	if err := SaveData(db, MAIN, []byte("key"), []byte("value")); err != nil {
		tst.Fatal("Error: ", err)
	}
	if data, err := LoadData(db, MAIN, []byte("key")); err != nil || string(data) != "value" {
		tst.Error("Expected value, got", string(data), err)
	}
	if data, err := LoadData(nil, MAIN, []byte("key")); err != nil || data != nil {
		tst.Error("Expected nothing without a database, got", data, err)
	}
	if err := SaveData(nil, MAIN, []byte("key"), nil); err != nil {
		tst.Error("Error: ", err)
	}
}

func TestSampleStore(tst *testing.T) {
	fn := filepath.Join(tst.TempDir(), "test.db")
	db := openDB(tst, fn)
	id := uuid.New()
	s, err := NewSampleStore(db, id)
	if err != nil {
		tst.Fatal("Error: ", err)
	}
	for i := 0; i < 3; i++ {
		if err := s.Add(map[string]float64{"x": float64(i)}); err != nil {
			tst.Fatal("Error: ", err)
		}
	}
	if s.Len() != 3 || s.RunID() != id {
		tst.Error("Expected 3 samples, got", s.Len())
	}
	db.Close()

	db = openDB(tst, fn)
	defer db.Close()
	s, err = NewSampleStore(db, id)
	if err != nil {
		tst.Fatal("Error: ", err)
	}
	if s.Len() != 3 {
		tst.Fatal("Expected 3 samples after reopening, got", s.Len())
	}
	if err := s.Add(map[string]float64{"x": 3}); err != nil {
		tst.Fatal("Error: ", err)
	}
	all, err := s.All()
	if err != nil {
		tst.Fatal("Error: ", err)
	}
	if len(all) != 4 {
		tst.Fatal("Expected 4 samples, got", len(all))
	}
	for i, smp := range all {
		if smp["x"] != float64(i) {
			tst.Error("Samples are out of order", all)
			break
		}
	}

	if _, err := NewSampleStore(db, uuid.New()); err != nil {
		tst.Fatal("Error: ", err)
	}
	runs, err := Runs(db)
	if err != nil {
		tst.Fatal("Error: ", err)
	}
	if len(runs) != 2 {
		tst.Error("Expected 2 runs, got", runs)
	}

	if _, err := NewSampleStore(nil, id); err != ErrNoDB {
		tst.Error("Expected ErrNoDB, got", err)
	}
}

func TestSampleStoreNonFinite(tst *testing.T) {
	db := openDB(tst, filepath.Join(tst.TempDir(), "test.db"))
	defer db.Close()
	s, err := NewSampleStore(db, uuid.New())
	if err != nil {
		tst.Fatal("Error: ", err)
	}
	in := map[string]float64{
		"nan":  math.NaN(),
		"inf":  math.Inf(1),
		"ninf": math.Inf(-1),
		"x":    -0.25,
	}
	if err := s.Add(in); err != nil {
		tst.Fatal("Error storing non-finite values: ", err)
	}
	all, err := s.All()
	if err != nil || len(all) != 1 {
		tst.Fatal("Expected 1 sample, got", all, err)
	}
	out := all[0]
	if !math.IsNaN(out["nan"]) || !math.IsInf(out["inf"], 1) || !math.IsInf(out["ninf"], -1) || out["x"] != -0.25 {
		tst.Error("Incorrect values", out)
	}
}

func TestSampleStoreTruncate(tst *testing.T) {
	db := openDB(tst, filepath.Join(tst.TempDir(), "test.db"))
	defer db.Close()
	s, err := NewSampleStore(db, uuid.New())
	if err != nil {
		tst.Fatal("Error: ", err)
	}
	for i := 0; i < 10; i++ {
		if err := s.Add(map[string]float64{"x": float64(i)}); err != nil {
			tst.Fatal("Error: ", err)
		}
	}
	if err := s.Truncate(11); err == nil {
		tst.Error("Truncating to more samples than stored succeeded")
	}
	if err := s.Truncate(10); err != nil || s.Len() != 10 {
		tst.Error("Truncating to the stored length changed the store", s.Len(), err)
	}
	if err := s.Truncate(4); err != nil {
		tst.Fatal("Error: ", err)
	}
	if err := s.Add(map[string]float64{"x": 4}); err != nil {
		tst.Fatal("Error: ", err)
	}
	all, err := s.All()
	if err != nil {
		tst.Fatal("Error: ", err)
	}
	if len(all) != 5 || s.Len() != 5 {
		tst.Fatal("Expected 5 samples, got", len(all), s.Len())
	}
	for i, smp := range all {
		if smp["x"] != float64(i) {
			tst.Error("Incorrect samples after truncation", all)
			break
		}
	}
}
