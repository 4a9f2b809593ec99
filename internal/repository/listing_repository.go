package repository

import (
	"encoding/json"
	"errors"
	"fmt"

	"readiness-sync/internal/domain"

	"github.com/dgraph-io/badger/v4"
)

// ListingRepository persists read-cache entries so listings fetched by one
// command are reused by the next until their TTL runs out.
type ListingRepository interface {
	Get(kind string) (*domain.Listing, error)
	Put(listing *domain.Listing) error
	Delete(kind string) error
}

type listingRepository struct {
	db *badger.DB
}

func NewListingRepository(db *badger.DB) ListingRepository {
	return &listingRepository{db: db}
}

func listingKey(kind string) []byte {
	return []byte(fmt.Sprintf("%scache:%s", keyPrefix, kind))
}

func (r *listingRepository) Get(kind string) (*domain.Listing, error) {
	data, err := getValue(r.db, listingKey(kind))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to read listing %s: %w", kind, err)
	}

	var listing domain.Listing
	if err := json.Unmarshal(data, &listing); err != nil {
		return nil, fmt.Errorf("failed to decode listing %s: %w", kind, err)
	}
	return &listing, nil
}

func (r *listingRepository) Put(listing *domain.Listing) error {
	data, err := json.Marshal(listing)
	if err != nil {
		return fmt.Errorf("failed to encode listing: %w", err)
	}
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(listingKey(listing.Kind), data)
	})
}

func (r *listingRepository) Delete(kind string) error {
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(listingKey(kind))
	})
}
