// Package history keeps a log of training and test runs in a BoltDB file.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"
	"go.uber.org/zap"

	"automl/internal/evaluation"
)

const (
	runsBucket  = "runs"
	indexBucket = "run_ids"
)

const (
	KindTrain   = "train"
	KindTest    = "test"
	KindCompare = "compare"
)

var ErrRunNotFound = errors.New("run not found")

// Run is one recorded pipeline execution. Error is set for failed runs.
type Run struct {
	ID                string             `json:"id"`
	Kind              string             `json:"kind"`
	ModelKey          string             `json:"model_key,omitempty"`
	Dataset           string             `json:"dataset,omitempty"`
	TargetColumn      string             `json:"target_column,omitempty"`
	Metrics           *evaluation.Report `json:"metrics,omitempty"`
	ModelPath         string             `json:"model_path,omitempty"`
	PredictionsPath   string             `json:"predictions_path,omitempty"`
	ConfusionPlotPath string             `json:"confusion_plot_path,omitempty"`
	FeaturePlotPath   string             `json:"feature_plot_path,omitempty"`
	Duration          time.Duration      `json:"duration"`
	CreatedAt         time.Time          `json:"created_at"`
	Error             string             `json:"error,omitempty"`
}

// Store persists runs keyed by creation time so cursor order is chronological. The
// database file is opened only for the length of each call, so separate processes can
// share one file. A Store opened with an empty path is disabled: Record is a no-op and
// List returns nothing.
type Store struct {
	path   string
	logger *zap.Logger
	mu     sync.Mutex
}

// lockTimeout bounds the wait for another process holding the file lock.
var lockTimeout = 5 * time.Second

func Open(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if path == "" {
		logger.Info("run history disabled")
		return &Store{logger: logger}, nil
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}

	s := &Store{path: path, logger: logger}
	err := s.update(func(tx *bbolt.Tx) error { return nil })
	switch {
	case errors.Is(err, bbolt.ErrTimeout):
		logger.Warn("run history is locked by another process, buckets will be created on first write", zap.String("path", path))
	case err != nil:
		return nil, err
	}
	return s, nil
}

func (s *Store) Enabled() bool {
	return s != nil && s.path != ""
}

// Close is kept for symmetry with other stores; no file stays open between calls.
func (s *Store) Close() error {
	return nil
}

func (s *Store) open(readOnly bool) (*bbolt.DB, error) {
	db, err := bbolt.Open(s.path, 0o600, &bbolt.Options{Timeout: lockTimeout, ReadOnly: readOnly})
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	return db, nil
}

// update runs fn in a write transaction with both buckets present.
func (s *Store) update(fn func(tx *bbolt.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := s.open(false)
	if err != nil {
		return err
	}
	defer db.Close()

	return db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(runsBucket)); err != nil {
			return fmt.Errorf("create runs bucket: %w", err)
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(indexBucket)); err != nil {
			return fmt.Errorf("create index bucket: %w", err)
		}
		return fn(tx)
	})
}

// view runs fn in a read transaction. Buckets are nil until the first write.
func (s *Store) view(fn func(runs, index *bbolt.Bucket) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.path); errors.Is(err, os.ErrNotExist) {
		return fn(nil, nil)
	}
	db, err := s.open(true)
	if err != nil {
		return err
	}
	defer db.Close()

	return db.View(func(tx *bbolt.Tx) error {
		return fn(tx.Bucket([]byte(runsBucket)), tx.Bucket([]byte(indexBucket)))
	})
}

// Record assigns an ID and timestamp when missing and stores the run.
func (s *Store) Record(run *Run) error {
	if !s.Enabled() {
		return nil
	}
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}

	payload, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("marshal run: %w", err)
	}

	err = s.update(func(tx *bbolt.Tx) error {
		runs := tx.Bucket([]byte(runsBucket))
		key := freeKey(runs, run.CreatedAt.UnixNano())
		if err := runs.Put(key, payload); err != nil {
			return err
		}
		return tx.Bucket([]byte(indexBucket)).Put([]byte(run.ID), key)
	})
	if err != nil {
		return fmt.Errorf("store run: %w", err)
	}

	s.logger.Debug("run recorded",
		zap.String("id", run.ID),
		zap.String("kind", run.Kind),
		zap.String("model", run.ModelKey))
	return nil
}

// freeKey returns a zero-padded decimal key for n, bumped past keys already taken so two
// runs in the same nanosecond never collide.
func freeKey(b *bbolt.Bucket, n int64) []byte {
	for {
		key := []byte(fmt.Sprintf("%020d", n))
		if b.Get(key) == nil {
			return key
		}
		n++
	}
}

// List returns up to limit runs, newest first. limit <= 0 means all.
func (s *Store) List(limit int) ([]Run, error) {
	if !s.Enabled() {
		return nil, nil
	}

	var runs []Run
	err := s.view(func(b, _ *bbolt.Bucket) error {
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var run Run
			if err := json.Unmarshal(v, &run); err != nil {
				return fmt.Errorf("unmarshal run %s: %w", k, err)
			}
			runs = append(runs, run)
			if limit > 0 && len(runs) >= limit {
				break
			}
		}
		return nil
	})
	return runs, err
}

func (s *Store) Get(id string) (*Run, error) {
	if !s.Enabled() {
		return nil, ErrRunNotFound
	}

	var run *Run
	err := s.view(func(runs, index *bbolt.Bucket) error {
		if runs == nil || index == nil {
			return ErrRunNotFound
		}
		key := index.Get([]byte(id))
		if key == nil {
			return ErrRunNotFound
		}
		v := runs.Get(key)
		if v == nil {
			return ErrRunNotFound
		}
		run = &Run{}
		return json.Unmarshal(v, run)
	})
	if err != nil {
		return nil, err
	}
	return run, nil
}
