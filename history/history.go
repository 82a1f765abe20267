// Package history is the append-only log of inference outcomes.
//
// Entries are stored in BadgerDB under two keys:
//
//	entry/<id>                      -> msgpack(Entry)
//	recent/<unix-nanos, 20 digits>/<id> -> empty
//
// The recent/ index sorts lexicographically by timestamp then id, so a
// reverse prefix scan yields newest first with ties broken by id
// descending. Re-appending an existing id replaces the record and moves its
// index key within the same transaction.
package history

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"
	"github.com/vmihailenco/msgpack/v5"
)

// Modality tags which input produced an entry.
type Modality string

const (
	Text       Modality = "text"
	Audio      Modality = "audio"
	Multimodal Modality = "multimodal"
)

// DefaultLimit applies when List is called with a non-positive limit.
const DefaultLimit = 100

// ErrInvalidEntry is returned for entries that cannot be stored.
var ErrInvalidEntry = errors.New("history: invalid entry")

// Entry records one analysis.
type Entry struct {
	ID        string    `json:"id" msgpack:"id"`
	Modality  Modality  `json:"type" msgpack:"type"`
	Dominant  string    `json:"dominant" msgpack:"dominant"`
	Timestamp time.Time `json:"timestamp" msgpack:"timestamp"`
}

// Log stores and queries entries. Implementations are safe for concurrent
// use.
type Log interface {
	Append(ctx context.Context, e Entry) error
	List(ctx context.Context, limit int) ([]Entry, error)
	Close() error
}

// Options configures the badger-backed Log.
type Options struct {
	// Dir is the directory for BadgerDB data files.
	// Required unless InMemory is set.
	Dir string

	// InMemory keeps all data in memory. Used by tests.
	InMemory bool

	// Logger receives badger warnings and errors. Defaults to the logrus
	// standard logger.
	Logger logrus.FieldLogger
}

// Badger is the BadgerDB implementation of Log.
type Badger struct {
	db *badger.DB
	mu sync.Mutex // serializes writers
}

var _ Log = (*Badger)(nil)

// Open opens or creates the store.
func Open(opts Options) (*Badger, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, errors.New("history: Options.Dir is required for on-disk mode")
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	dbOpts := badger.DefaultOptions(opts.Dir).
		WithLogger(badgerLogger{opts.Logger.WithField("component", "badger")})
	if opts.InMemory {
		dbOpts = dbOpts.WithDir("").WithValueDir("").WithInMemory(true)
	}
	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("history: open %s: %w", opts.Dir, err)
	}
	return &Badger{db: db}, nil
}

const (
	entryPrefix  = "entry/"
	recentPrefix = "recent/"
)

func entryKey(id string) []byte { return []byte(entryPrefix + id) }

func recentKey(ts time.Time, id string) []byte {
	return []byte(fmt.Sprintf("%s%020d/%s", recentPrefix, ts.UnixNano(), id))
}

func validate(e Entry) error {
	switch {
	case e.ID == "":
		return fmt.Errorf("%w: empty id", ErrInvalidEntry)
	case strings.ContainsRune(e.ID, '/'):
		return fmt.Errorf("%w: id %q contains '/'", ErrInvalidEntry, e.ID)
	case e.Timestamp.IsZero(), !e.Timestamp.After(time.Unix(0, 0)):
		return fmt.Errorf("%w: timestamp %v not after epoch", ErrInvalidEntry, e.Timestamp)
	}
	return nil
}

// Append stores e, replacing any entry with the same id.
func (b *Badger) Append(ctx context.Context, e Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validate(e); err != nil {
		return err
	}
	e.Timestamp = e.Timestamp.UTC()
	val, err := msgpack.Marshal(&e)
	if err != nil {
		return fmt.Errorf("history: encode %s: %w", e.ID, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	err = b.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(entryKey(e.ID))
		switch {
		case err == nil:
			var old Entry
			if err := item.Value(func(v []byte) error { return msgpack.Unmarshal(v, &old) }); err != nil {
				return err
			}
			if err := txn.Delete(recentKey(old.Timestamp, old.ID)); err != nil {
				return err
			}
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}
		if err := txn.Set(entryKey(e.ID), val); err != nil {
			return err
		}
		return txn.Set(recentKey(e.Timestamp, e.ID), nil)
	})
	if err != nil {
		return fmt.Errorf("history: append %s: %w", e.ID, err)
	}
	return nil
}

// List returns at most limit entries, newest first.
func (b *Badger) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	out := make([]Entry, 0, min(limit, 64))
	err := b.db.View(func(txn *badger.Txn) error {
		iterOpts := badger.DefaultIteratorOptions
		iterOpts.Reverse = true
		iterOpts.PrefetchValues = false
		iterOpts.Prefix = []byte(recentPrefix)
		it := txn.NewIterator(iterOpts)
		defer it.Close()

		seek := append([]byte(recentPrefix), 0xFF)
		for it.Seek(seek); it.ValidForPrefix(iterOpts.Prefix) && len(out) < limit; it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			key := string(it.Item().Key())
			id := key[strings.LastIndexByte(key, '/')+1:]

			item, err := txn.Get(entryKey(id))
			if err != nil {
				return fmt.Errorf("entry %s: %w", id, err)
			}
			var e Entry
			if err := item.Value(func(v []byte) error { return msgpack.Unmarshal(v, &e) }); err != nil {
				return fmt.Errorf("decode %s: %w", id, err)
			}
			e.Timestamp = e.Timestamp.UTC()
			out = append(out, e)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("history: list: %w", err)
	}
	return out, nil
}

// Close flushes and closes the store.
func (b *Badger) Close() error {
	return b.db.Close()
}

// badgerLogger forwards badger output to logrus, dropping info and debug
// chatter.
type badgerLogger struct{ log logrus.FieldLogger }

func (l badgerLogger) Errorf(f string, v ...interface{}) {
	l.log.Errorf(strings.TrimSpace(f), v...)
}
func (l badgerLogger) Warningf(f string, v ...interface{}) {
	l.log.Warnf(strings.TrimSpace(f), v...)
}
func (badgerLogger) Infof(string, ...interface{})  {}
func (badgerLogger) Debugf(string, ...interface{}) {}
