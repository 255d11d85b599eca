// Package auditlog persists status transitions to append-only stores.
// The CSV file is the primary record; SQLite and Redis are optional mirrors.
package auditlog

import (
	"errors"
	"strconv"
	"time"

	"github.com/sweeney/crowd-signal/internal/logic"
)

// TimestampLayout is the local-time format written to every store.
const TimestampLayout = "2006-01-02 15:04:05"

// Header is the CSV schema row, written once when the file is created.
var Header = []string{"timestamp", "crowd_count", "status_from", "status_to", "green_duration_s"}

// Entry is one recorded transition. Entries are never updated once written.
type Entry struct {
	Timestamp     time.Time
	Count         int
	From          logic.Status
	To            logic.Status
	GreenDuration int
}

// Record returns the entry as a CSV row matching Header. Statuses use their
// display labels ("HIGH DENSITY"), so existing crowd_control_log.csv files
// keep a single vocabulary.
func (e Entry) Record() []string {
	return []string{
		e.Timestamp.Format(TimestampLayout),
		strconv.Itoa(e.Count),
		e.From.Label(),
		e.To.Label(),
		strconv.Itoa(e.GreenDuration),
	}
}

// Store appends transition entries durably.
type Store interface {
	// Append writes one entry. Returns error if the write did not persist.
	Append(e Entry) error
	// Close releases the underlying handle.
	Close() error
}

// MirrorError reports an entry that reached the primary store but not every
// mirror behind it.
type MirrorError struct {
	Err error
}

func (e *MirrorError) Error() string {
	return "mirror: " + e.Err.Error()
}

func (e *MirrorError) Unwrap() error {
	return e.Err
}

// multiStore writes every entry to all stores. The first is the primary.
type multiStore struct {
	stores []Store
}

// Multi returns a Store that appends to each of stores in order. An append
// failure in one store does not stop the others. When only mirrors fail the
// error is a *MirrorError; a primary failure is returned as is, joined with
// any mirror failures.
func Multi(stores ...Store) Store {
	if len(stores) == 1 {
		return stores[0]
	}
	return &multiStore{stores: stores}
}

func (m *multiStore) Append(e Entry) error {
	if len(m.stores) == 0 {
		return nil
	}
	primaryErr := m.stores[0].Append(e)
	var mirrorErrs []error
	for _, s := range m.stores[1:] {
		if err := s.Append(e); err != nil {
			mirrorErrs = append(mirrorErrs, err)
		}
	}
	switch {
	case primaryErr != nil:
		return errors.Join(append([]error{primaryErr}, mirrorErrs...)...)
	case len(mirrorErrs) > 0:
		return &MirrorError{Err: errors.Join(mirrorErrs...)}
	}
	return nil
}

func (m *multiStore) Close() error {
	var errs []error
	for _, s := range m.stores {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
