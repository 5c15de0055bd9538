// ledger/csv.go
package ledger

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// DefaultLockStale is how old a lock file must be before a writer treats
// it as left behind by a dead process. Writes hold the lock for
// milliseconds.
const DefaultLockStale = 30 * time.Second

// CSVStore keeps the ledger in a CSV file. Writers take an exclusive
// lock file next to it; a held lock surfaces as ErrContended until it
// is older than the stale bound, when it is removed and retaken.
// Rewrites go through a temp file and rename so readers never see a
// partial file.
type CSVStore struct {
	path  string
	lock  string
	stale time.Duration
}

func NewCSVStore(path string) (*CSVStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return &CSVStore{path: path, lock: path + ".lock", stale: DefaultLockStale}, nil
}

// SetLockStale changes the stale-lock bound. d <= 0 never breaks a lock.
func (s *CSVStore) SetLockStale(d time.Duration) { s.stale = d }

func (s *CSVStore) Path() string { return s.path }

func (s *CSVStore) acquire() (func(), error) {
	f, err := s.createLock()
	if errors.Is(err, fs.ErrExist) && s.breakStale() {
		f, err = s.createLock()
	}
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("%w: %s", ErrContended, s.lock)
		}
		return nil, err
	}
	return func() {
		f.Close()
		_ = os.Remove(s.lock)
	}, nil
}

func (s *CSVStore) createLock() (*os.File, error) {
	f, err := os.OpenFile(s.lock, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	_, _ = f.WriteString(strconv.Itoa(os.Getpid()) + "\n")
	return f, nil
}

// breakStale removes the lock file if it is older than the stale bound
// and reports whether taking the lock is worth another try.
func (s *CSVStore) breakStale() bool {
	if s.stale <= 0 {
		return false
	}
	st, err := os.Stat(s.lock)
	if errors.Is(err, fs.ErrNotExist) {
		return true
	}
	if err != nil || time.Since(st.ModTime()) < s.stale {
		return false
	}
	err = os.Remove(s.lock)
	return err == nil || errors.Is(err, fs.ErrNotExist)
}

func (s *CSVStore) Load(ctx context.Context) ([]Entry, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readEntries(f)
}

func readEntries(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	var out []Entry
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		if line == 1 && len(rec) > 0 && rec[0] == Header[0] {
			continue
		}
		e, err := parseRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("ledger line %d: %w", line, err)
		}
		out = append(out, e)
	}
}

func (s *CSVStore) Append(ctx context.Context, e Entry) error {
	release, err := s.acquire()
	if err != nil {
		return err
	}
	defer release()

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return err
	}

	w := csv.NewWriter(f)
	if st.Size() == 0 {
		_ = w.Write(Header)
	}
	_ = w.Write(e.record())
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (s *CSVStore) Rewrite(ctx context.Context, entries []Entry) error {
	release, err := s.acquire()
	if err != nil {
		return err
	}
	defer release()

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".ledger-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	w := csv.NewWriter(tmp)
	_ = w.Write(Header)
	for _, e := range entries {
		_ = w.Write(e.record())
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, s.path)
}

func (s *CSVStore) Close() error { return nil }
