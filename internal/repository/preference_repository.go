package repository

import (
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

type PreferenceRepository interface {
	ActiveID() (string, error)
	SetActiveID(id string) error
	Advisor() (string, error)
	SetAdvisor(name string) error
	LastSubmission() (time.Time, error)
	SetLastSubmission(t time.Time) error
}

type preferenceRepository struct {
	db *badger.DB
}

func NewPreferenceRepository(db *badger.DB) PreferenceRepository {
	return &preferenceRepository{db: db}
}

var (
	activeKey  = []byte(keyPrefix + "active")
	advisorKey = []byte(keyPrefix + "pref:advisor")
	lastSubKey = []byte(keyPrefix + "pref:last_submission")
)

func (r *preferenceRepository) ActiveID() (string, error) {
	return r.get(activeKey)
}

// SetActiveID clears the pointer when id is empty.
func (r *preferenceRepository) SetActiveID(id string) error {
	return r.set(activeKey, id)
}

func (r *preferenceRepository) Advisor() (string, error) {
	return r.get(advisorKey)
}

func (r *preferenceRepository) SetAdvisor(name string) error {
	return r.set(advisorKey, name)
}

// LastSubmission returns the zero time when nothing was submitted yet.
func (r *preferenceRepository) LastSubmission() (time.Time, error) {
	value, err := r.get(lastSubKey)
	if err != nil || value == "" {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid last submission time %q: %w", value, err)
	}
	return t, nil
}

func (r *preferenceRepository) SetLastSubmission(t time.Time) error {
	if t.IsZero() {
		return r.set(lastSubKey, "")
	}
	return r.set(lastSubKey, t.UTC().Format(time.RFC3339Nano))
}

func (r *preferenceRepository) get(key []byte) (string, error) {
	data, err := getValue(r.db, key)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (r *preferenceRepository) set(key []byte, value string) error {
	return r.db.Update(func(txn *badger.Txn) error {
		if value == "" {
			return txn.Delete(key)
		}
		return txn.Set(key, []byte(value))
	})
}
