package repository

import (
	"encoding/json"
	"errors"
	"fmt"

	"readiness-sync/internal/domain"

	"github.com/dgraph-io/badger/v4"
)

type VentureRepository interface {
	Put(venture *domain.Venture) error
	FindByID(id string) (*domain.Venture, error)
	List() ([]*domain.Venture, error)
	Delete(id string) error
}

type ventureRepository struct {
	db *badger.DB
}

func NewVentureRepository(db *badger.DB) VentureRepository {
	return &ventureRepository{db: db}
}

func ventureKey(id string) []byte {
	return []byte(fmt.Sprintf("%sventure:%s", keyPrefix, id))
}

func (r *ventureRepository) Put(venture *domain.Venture) error {
	data, err := json.Marshal(venture)
	if err != nil {
		return fmt.Errorf("failed to encode venture: %w", err)
	}

	err = r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(ventureKey(venture.ID), data)
	})
	if err != nil {
		return fmt.Errorf("failed to save venture: %w", err)
	}
	return nil
}

func (r *ventureRepository) FindByID(id string) (*domain.Venture, error) {
	data, err := getValue(r.db, ventureKey(id))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to find venture: %w", err)
	}

	var venture domain.Venture
	if err := json.Unmarshal(data, &venture); err != nil {
		return nil, fmt.Errorf("failed to decode venture %s: %w", id, err)
	}
	venture.Normalize()
	return &venture, nil
}

func (r *ventureRepository) List() ([]*domain.Venture, error) {
	var ventures []*domain.Venture
	prefix := ventureKey("")

	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var venture domain.Venture
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &venture)
			})
			if err != nil {
				continue
			}
			venture.Normalize()
			ventures = append(ventures, &venture)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list ventures: %w", err)
	}
	return ventures, nil
}

func (r *ventureRepository) Delete(id string) error {
	err := r.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(ventureKey(id))
	})
	if err != nil {
		return fmt.Errorf("failed to delete venture: %w", err)
	}
	return nil
}
