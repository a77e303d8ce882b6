// Package pathstore persists traced runs in a badger key-value store, so that
// a renderer can fetch paths after the tracer has exited.
package pathstore

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/dgraph-io/badger"
	"github.com/golang/glog"
	"golang.org/x/xerrors"

	"lightpath/path"
)

// Key prefixes that denote different tables in the key-value store.
const (
	KeyTypeRun      uint32 = 0
	KeyTypeRunIDSeq uint32 = 1
	KeyTypePath     uint32 = 2
)

func RunKey(runID uint64) []byte {
	key := make([]byte, 12)
	binary.BigEndian.PutUint32(key[0:4], KeyTypeRun)
	binary.BigEndian.PutUint64(key[4:12], runID)
	return key
}

func DecodeRunKey(key []byte) (uint64, error) {
	if len(key) != 12 {
		return 0, xerrors.Errorf("key has wrong length; got %d, want 12", len(key))
	}
	return binary.BigEndian.Uint64(key[4:12]), nil
}

func RunKeyPrefixAllRuns() []byte {
	key := make([]byte, 4)
	binary.BigEndian.PutUint32(key[0:4], KeyTypeRun)
	return key
}

func RunIDSeqKey() []byte {
	key := make([]byte, 4)
	binary.BigEndian.PutUint32(key[0:4], KeyTypeRunIDSeq)
	return key
}

// PathKey addresses the ordinal'th path of a run.  Paths of one run sort in
// the order they were traced.
func PathKey(runID uint64, ordinal uint32) []byte {
	key := make([]byte, 16)
	binary.BigEndian.PutUint32(key[0:4], KeyTypePath)
	binary.BigEndian.PutUint64(key[4:12], runID)
	binary.BigEndian.PutUint32(key[12:16], ordinal)
	return key
}

func PathKeyPrefixOneRun(runID uint64) []byte {
	key := make([]byte, 12)
	binary.BigEndian.PutUint32(key[0:4], KeyTypePath)
	binary.BigEndian.PutUint64(key[4:12], runID)
	return key
}

var ErrNotFound = xerrors.New("run not found")

type Error struct {
	Message string

	inner error
	frame xerrors.Frame
}

func NewError(message string, inner error) *Error {
	return &Error{
		Message: message,
		inner:   inner,
		frame:   xerrors.Caller(1),
	}
}

func (e *Error) Error() string {
	if e.inner == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.inner)
}

func (e *Error) Format(f fmt.State, c rune) { // implements fmt.Formatter
	xerrors.FormatError(e, f, c)
}

func (e *Error) FormatError(p xerrors.Printer) error { // implements xerrors.Formatter
	p.Print(e.Message)
	if p.Detail() {
		e.frame.Format(p)
	}
	return e.inner
}

func (e *Error) Unwrap() error {
	return e.inner
}

// Run is the summary record of one traced batch.
type Run struct {
	ID      uint64     `json:"id"`
	Created time.Time  `json:"created"`
	Scene   string     `json:"scene,omitempty"`
	Stats   path.Stats `json:"stats"`
}

type Store struct {
	DB *badger.DB

	runIDSeq *badger.Sequence
}

// Open opens the store in dataDir, creating it if needed.  If clear is set,
// any existing contents are removed first.
func Open(dataDir string, clear bool) (*Store, error) {
	if clear {
		if err := os.RemoveAll(dataDir); err != nil {
			return nil, xerrors.Errorf("while clearing data dir %q: %w", dataDir, err)
		}
	}

	db, err := badger.Open(badger.DefaultOptions(dataDir).WithLogger(glogLogger{}))
	if err != nil {
		return nil, xerrors.Errorf("while opening badger kv dir: %w", err)
	}

	runIDSeq, err := db.GetSequence(RunIDSeqKey(), 10)
	if err != nil {
		db.Close()
		return nil, xerrors.Errorf("while retrieving run ID sequence: %w", err)
	}

	return &Store{
		DB:       db,
		runIDSeq: runIDSeq,
	}, nil
}

func (s *Store) Close() error {
	if err := s.runIDSeq.Release(); err != nil {
		return xerrors.Errorf("while releasing run ID sequence: %w", err)
	}

	if err := s.DB.Close(); err != nil {
		return xerrors.Errorf("while closing database: %w", err)
	}

	return nil
}

// PutRun records a run and its paths, assigning the run a fresh ID.  The run
// record is written after all of its paths, so a run that fails part way is
// never listed.
func (s *Store) PutRun(run *Run, paths []*path.RayPath) (uint64, error) {
	id, err := s.runIDSeq.Next()
	if err != nil {
		return 0, xerrors.Errorf("while allocating run ID: %w", err)
	}
	// Run IDs start at 1.
	id++

	run.ID = id
	if run.Created.IsZero() {
		run.Created = time.Now()
	}

	txn := s.DB.NewTransaction(true)
	defer func() { txn.Discard() }()

	set := func(key, value []byte) error {
		err := txn.Set(key, value)
		if xerrors.Is(err, badger.ErrTxnTooBig) {
			if err := txn.Commit(); err != nil {
				return xerrors.Errorf("while committing partial run: %w", err)
			}
			txn = s.DB.NewTransaction(true)
			err = txn.Set(key, value)
		}
		return err
	}

	for i, p := range paths {
		value, err := json.Marshal(p)
		if err != nil {
			return 0, NewError(fmt.Sprintf("while marshaling path of ray %s", p.RayID), err)
		}
		if err := set(PathKey(id, uint32(i)), value); err != nil {
			return 0, xerrors.Errorf("while recording path %d of run %d: %w", i, id, err)
		}
	}

	value, err := json.Marshal(run)
	if err != nil {
		return 0, NewError(fmt.Sprintf("while marshaling run %d", id), err)
	}
	if err := set(RunKey(id), value); err != nil {
		return 0, xerrors.Errorf("while recording run %d: %w", id, err)
	}

	if err := txn.Commit(); err != nil {
		return 0, xerrors.Errorf("while committing run %d: %w", id, err)
	}

	glog.V(1).Infof("Stored run %d with %d paths", id, len(paths))
	return id, nil
}

func (s *Store) getRun(txn *badger.Txn, id uint64) (*Run, error) {
	item, err := txn.Get(RunKey(id))
	if err != nil {
		if xerrors.Is(err, badger.ErrKeyNotFound) {
			return nil, NewError(fmt.Sprintf("run %d", id), ErrNotFound)
		}
		return nil, NewError(fmt.Sprintf("failure while looking up run %d", id), err)
	}

	value, err := item.ValueCopy(nil)
	if err != nil {
		return nil, NewError(fmt.Sprintf("while reading run %d", id), err)
	}

	run := &Run{}
	if err := json.Unmarshal(value, run); err != nil {
		return nil, NewError(fmt.Sprintf("while unmarshaling run %d", id), err)
	}

	if run.ID != id {
		return nil, NewError(fmt.Sprintf("inconsistency between run key and value, key is for run %d, but value has run %d", id, run.ID), nil)
	}

	return run, nil
}

// GetRun retrieves a run and its paths in the order they were stored.  An
// unknown ID gives an error wrapping ErrNotFound.
func (s *Store) GetRun(id uint64) (*Run, []*path.RayPath, error) {
	var run *Run
	paths := []*path.RayPath{}

	err := s.DB.View(func(txn *badger.Txn) error {
		var err error
		run, err = s.getRun(txn, id)
		if err != nil {
			return err
		}

		opts := badger.DefaultIteratorOptions
		opts.Prefix = PathKeyPrefixOneRun(id)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			value, err := it.Item().ValueCopy(nil)
			if err != nil {
				return NewError(fmt.Sprintf("while reading a path of run %d", id), err)
			}

			p := &path.RayPath{}
			if err := json.Unmarshal(value, p); err != nil {
				return NewError(fmt.Sprintf("while unmarshaling a path of run %d", id), err)
			}
			paths = append(paths, p)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return run, paths, nil
}

// ListRuns returns the summary of every stored run, newest first.
func (s *Store) ListRuns() ([]*Run, error) {
	runs := []*Run{}

	err := s.DB.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = RunKeyPrefixAllRuns()
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			id, err := DecodeRunKey(it.Item().KeyCopy(nil))
			if err != nil {
				return NewError("while decoding run key", err)
			}

			value, err := it.Item().ValueCopy(nil)
			if err != nil {
				return NewError(fmt.Sprintf("while reading run %d", id), err)
			}

			run := &Run{}
			if err := json.Unmarshal(value, run); err != nil {
				return NewError(fmt.Sprintf("while unmarshaling run %d", id), err)
			}
			runs = append(runs, run)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(runs, func(i, j int) bool { return runs[i].ID > runs[j].ID })
	return runs, nil
}

// DeleteRun removes a run and all of its paths.
func (s *Store) DeleteRun(id uint64) error {
	keys := [][]byte{}
	err := s.DB.View(func(txn *badger.Txn) error {
		if _, err := s.getRun(txn, id); err != nil {
			return err
		}

		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = PathKeyPrefixOneRun(id)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return err
	}

	// The run key goes first, so a partly deleted run is no longer listed.
	keys = append([][]byte{RunKey(id)}, keys...)

	txn := s.DB.NewTransaction(true)
	defer func() { txn.Discard() }()
	for _, key := range keys {
		err := txn.Delete(key)
		if xerrors.Is(err, badger.ErrTxnTooBig) {
			if err := txn.Commit(); err != nil {
				return xerrors.Errorf("while committing partial deletion of run %d: %w", id, err)
			}
			txn = s.DB.NewTransaction(true)
			err = txn.Delete(key)
		}
		if err != nil {
			return xerrors.Errorf("while deleting run %d: %w", id, err)
		}
	}
	if err := txn.Commit(); err != nil {
		return xerrors.Errorf("while committing deletion of run %d: %w", id, err)
	}
	return nil
}

// glogLogger routes badger's logging through glog.
type glogLogger struct{}

func (glogLogger) Errorf(format string, args ...interface{}) {
	glog.ErrorDepth(1, fmt.Sprintf(format, args...))
}

func (glogLogger) Warningf(format string, args ...interface{}) {
	glog.WarningDepth(1, fmt.Sprintf(format, args...))
}

func (glogLogger) Infof(format string, args ...interface{}) {
	glog.V(1).Infof(format, args...)
}

func (glogLogger) Debugf(format string, args ...interface{}) {
	glog.V(2).Infof(format, args...)
}
