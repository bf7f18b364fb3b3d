package client

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/afero"
)

// AuthorizationRecord holds the two values harvested from the reservation
// form. RequestData is echoed back verbatim and never interpreted.
type AuthorizationRecord struct {
	RequestData       string `json:"request_data"`
	VerificationToken string `json:"verification_token"`
}

// Validate reports ErrInvalidRecord unless both fields are set.
func (r AuthorizationRecord) Validate() error {
	if r.RequestData == "" || r.VerificationToken == "" {
		return errors.Mark(errors.WithHint(errors.New("request_data and verification_token must both be set"), hintRunLogin), ErrInvalidRecord)
	}
	return nil
}

// RecordStore persists a single AuthorizationRecord as a JSON file.
type RecordStore struct {
	fs   afero.Fs
	path string
}

func NewRecordStore(fs afero.Fs, path string) *RecordStore {
	return &RecordStore{fs: fs, path: path}
}

func (s *RecordStore) Path() string {
	return s.path
}

// Save writes the record to a temp file next to the target and renames it
// into place, so readers only ever see a complete record.
func (s *RecordStore) Save(rec AuthorizationRecord) error {
	if err := rec.Validate(); err != nil {
		return errors.Mark(err, ErrPersistenceFailed)
	}

	b, err := json.MarshalIndent(rec, "", "    ")
	if err != nil {
		return errors.Mark(errors.Wrap(err, "encode record"), ErrPersistenceFailed)
	}

	dir := filepath.Dir(s.path)
	tmp, err := afero.TempFile(s.fs, dir, "."+filepath.Base(s.path)+"-*")
	if err != nil {
		return errors.Mark(errors.Wrap(err, "create temp record"), ErrPersistenceFailed)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(append(b, '\n')); err != nil {
		tmp.Close()
		s.fs.Remove(tmpName)
		return errors.Mark(errors.Wrap(err, "write temp record"), ErrPersistenceFailed)
	}
	if err := tmp.Close(); err != nil {
		s.fs.Remove(tmpName)
		return errors.Mark(errors.Wrap(err, "close temp record"), ErrPersistenceFailed)
	}
	if err := s.fs.Rename(tmpName, s.path); err != nil {
		s.fs.Remove(tmpName)
		return errors.Mark(errors.Wrapf(err, "rename record into %s", s.path), ErrPersistenceFailed)
	}
	return nil
}

// Load reads the record. A missing file is ErrMissingCredentials.
func (s *RecordStore) Load() (AuthorizationRecord, error) {
	var rec AuthorizationRecord

	b, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			err = errors.Wrapf(err, "no authorization record at %s", s.path)
			return rec, errors.Mark(errors.WithHint(err, hintRunLogin), ErrMissingCredentials)
		}
		return rec, errors.Wrapf(err, "read %s", s.path)
	}

	if err := json.Unmarshal(b, &rec); err != nil {
		err = errors.Wrapf(err, "decode %s", s.path)
		return rec, errors.Mark(errors.WithHint(err, hintRunLogin), ErrInvalidRecord)
	}
	if err := rec.Validate(); err != nil {
		return rec, err
	}
	return rec, nil
}

// Remove deletes the record if present. It reports whether a file was removed.
func (s *RecordStore) Remove() (bool, error) {
	err := s.fs.Remove(s.path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, errors.Wrapf(err, "remove %s", s.path)
}

// Age reports how long ago the record was written. Informational only; the
// server decides whether the token is still valid.
func (s *RecordStore) Age(now time.Time) (time.Duration, error) {
	info, err := s.fs.Stat(s.path)
	if err != nil {
		return 0, err
	}
	return now.Sub(info.ModTime()), nil
}
