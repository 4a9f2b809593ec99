package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"readiness-sync/internal/domain"

	"github.com/go-kivik/kivik/v4"
)

type RowKind string

const (
	RowKindAssessment    RowKind = "assessment"
	RowKindQualification RowKind = "qualification"
)

func (k RowKind) docPrefix() string {
	if k == RowKindQualification {
		return "qualification"
	}
	return "row"
}

// RowRepository is the proxy's tabular store. Each row is one CouchDB
// document tagged with its kind.
type RowRepository interface {
	Create(ctx context.Context, kind RowKind, row *domain.Row) error
	FindByID(ctx context.Context, kind RowKind, id string) (*domain.Row, error)
	Update(ctx context.Context, kind RowKind, row *domain.Row) error
	List(ctx context.Context, kind RowKind, limit int) ([]domain.Row, error)
}

type rowRepository struct {
	client *kivik.Client
	dbName string
}

func NewRowRepository(client *kivik.Client, dbName string) RowRepository {
	return &rowRepository{
		client: client,
		dbName: dbName,
	}
}

type rowDocument struct {
	Type      RowKind   `json:"type"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	domain.Row
}

func rowDocID(kind RowKind, id string) string {
	return fmt.Sprintf("%s:%s", kind.docPrefix(), id)
}

func (r *rowRepository) Create(ctx context.Context, kind RowKind, row *domain.Row) error {
	db := r.client.DB(r.dbName)

	now := time.Now().UTC()
	doc := rowDocument{
		Type:      kind,
		CreatedAt: now,
		UpdatedAt: now,
		Row:       *row,
	}

	_, err := db.Put(ctx, rowDocID(kind, row.RowID.String()), doc)
	if err != nil {
		return fmt.Errorf("failed to create row: %w", err)
	}

	return nil
}

func (r *rowRepository) FindByID(ctx context.Context, kind RowKind, id string) (*domain.Row, error) {
	db := r.client.DB(r.dbName)

	var doc rowDocument
	if err := db.Get(ctx, rowDocID(kind, id)).ScanDoc(&doc); err != nil {
		if kivik.HTTPStatus(err) == http.StatusNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find row: %w", err)
	}

	return &doc.Row, nil
}

func (r *rowRepository) Update(ctx context.Context, kind RowKind, row *domain.Row) error {
	db := r.client.DB(r.dbName)
	docID := rowDocID(kind, row.RowID.String())

	var existingDoc map[string]interface{}
	if err := db.Get(ctx, docID).ScanDoc(&existingDoc); err != nil {
		if kivik.HTTPStatus(err) == http.StatusNotFound {
			return ErrNotFound
		}
		return fmt.Errorf("failed to fetch existing row for update: %w", err)
	}

	fields, err := rowFields(row)
	if err != nil {
		return err
	}
	for k, v := range fields {
		existingDoc[k] = v
	}
	existingDoc["updated_at"] = time.Now().UTC()

	if _, err := db.Put(ctx, docID, existingDoc); err != nil {
		return fmt.Errorf("failed to update row: %w", err)
	}

	return nil
}

func (r *rowRepository) List(ctx context.Context, kind RowKind, limit int) ([]domain.Row, error) {
	db := r.client.DB(r.dbName)

	query := map[string]interface{}{
		"selector": map[string]interface{}{
			"type": kind,
		},
	}
	if limit > 0 {
		query["limit"] = limit
	}

	rows := db.Find(ctx, query)
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list rows: %w", err)
	}
	defer rows.Close()

	var out []domain.Row
	for rows.Next() {
		var doc rowDocument
		if err := rows.ScanDoc(&doc); err != nil {
			continue
		}
		out = append(out, doc.Row)
	}

	return out, nil
}

func rowFields(row *domain.Row) (map[string]interface{}, error) {
	data, err := json.Marshal(row)
	if err != nil {
		return nil, fmt.Errorf("failed to encode row: %w", err)
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("failed to encode row: %w", err)
	}
	return fields, nil
}
