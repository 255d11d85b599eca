package auditlog

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sync"
)

// CSVStore appends entries to a delimited flat file. Each row is encoded
// on its own and written in one call, so a failed write leaves no sticky
// error behind and the next Append tries again.
type CSVStore struct {
	mu   sync.Mutex
	path string
	file *os.File
	out  io.Writer
	buf  bytes.Buffer
}

// OpenCSV opens path for appending, creating it if needed. The header row is
// written only when the file does not exist yet (or exists but is empty), so
// restarts never duplicate it.
func OpenCSV(path string) (*CSVStore, error) {
	needHeader := false
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		needHeader = true
	case err != nil:
		return nil, fmt.Errorf("stat log file: %w", err)
	case info.Size() == 0:
		needHeader = true
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	s := &CSVStore{
		path: path,
		file: f,
		out:  f,
	}

	if needHeader {
		if err := s.write(Header); err != nil {
			f.Close()
			return nil, fmt.Errorf("write header: %w", err)
		}
	}
	return s, nil
}

// Path returns the file path backing the store.
func (s *CSVStore) Path() string {
	return s.path
}

// Append writes one row and syncs it to disk.
func (s *CSVStore) Append(e Entry) error {
	if err := s.write(e.Record()); err != nil {
		return fmt.Errorf("append %s: %w", s.path, err)
	}
	return nil
}

func (s *CSVStore) write(record []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return errors.New("store closed")
	}
	s.buf.Reset()
	w := csv.NewWriter(&s.buf)
	if err := w.Write(record); err != nil {
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	if _, err := s.out.Write(s.buf.Bytes()); err != nil {
		return err
	}
	return s.file.Sync()
}

// Close closes the file. Safe to call more than once.
func (s *CSVStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}
