package inmemdb

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/certificate"
	"github.com/trezcool/academia/core/notification"
	"github.com/trezcool/academia/core/user"
)

type (
	// DB is an in-memory store for tests and local runs.
	// Transactions are serialized by a single lock: a transaction holds it exclusively,
	// a write outside of any transaction holds it for that write only.
	DB struct {
		sync.RWMutex

		user         *userTable
		certificate  *certificateTable
		notification *notificationTable
		progress     *progressTable
	}

	userTable struct {
		table map[string]*user.User
	}

	certificateTable struct {
		table map[string]*certificate.Certificate // by ID
	}

	notificationTable struct {
		table map[string]*notification.Notification
	}

	progressTable struct {
		categories map[string][]string         // category -> course ids, insertion order
		completed  map[string]map[string]bool // user id -> course id -> completed
		submitted  map[string]map[string]bool // user id -> course id -> submitted
	}

	tx struct {
		undo []func()
	}

	txKey struct{}
)

var _ core.Transactor = (*DB)(nil) // interface compliance check

func Open() *DB {
	return &DB{
		user:         &userTable{table: make(map[string]*user.User)},
		certificate:  &certificateTable{table: make(map[string]*certificate.Certificate)},
		notification: &notificationTable{table: make(map[string]*notification.Notification)},
		progress: &progressTable{
			categories: make(map[string][]string),
			completed:  make(map[string]map[string]bool),
			submitted:  make(map[string]map[string]bool),
		},
	}
}

// InTx runs fn holding the store lock. Writes made by fn are undone when it fails.
func (db *DB) InTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if _, ok := ctx.Value(txKey{}).(*tx); ok {
		return fn(ctx)
	}

	db.Lock()
	defer db.Unlock()

	t := new(tx)
	defer func() {
		if p := recover(); p != nil {
			t.rollback()
			panic(p)
		}
		if err != nil {
			t.rollback()
		}
	}()
	return fn(context.WithValue(ctx, txKey{}, t))
}

func (t *tx) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

// write locks db for a single write, unless ctx carries a transaction (which already holds the lock).
// undo is registered on the transaction, if any.
func (db *DB) write(ctx context.Context) (unlock func(), onUndo func(func())) {
	if t, ok := ctx.Value(txKey{}).(*tx); ok {
		return func() {}, func(fn func()) { t.undo = append(t.undo, fn) }
	}
	db.Lock()
	return db.Unlock, func(func()) {}
}

func (db *DB) read(ctx context.Context) (unlock func()) {
	if _, ok := ctx.Value(txKey{}).(*tx); ok {
		return func() {}
	}
	db.RLock()
	return db.RUnlock
}

// Reset empties every table.
func (db *DB) Reset() {
	db.Lock()
	defer db.Unlock()
	db.user.table = make(map[string]*user.User)
	db.certificate.table = make(map[string]*certificate.Certificate)
	db.notification.table = make(map[string]*notification.Notification)
	db.progress.categories = make(map[string][]string)
	db.progress.completed = make(map[string]map[string]bool)
	db.progress.submitted = make(map[string]map[string]bool)
}

var errNilDB = errors.New("inmemdb: nil DB")

func checkDB(db *DB) {
	if db == nil {
		panic(errNilDB)
	}
}

func copyStrings(s []string) []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}
