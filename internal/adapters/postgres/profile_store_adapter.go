package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/konnexhq/identity-service/internal/domain"
)

// ProfileStoreAdapter implements domain.ProfileDocumentStore on Postgres.
// Each collection maps to a table with a text uid primary key and a JSONB
// data column, so "document" reads and merge-writes stay close to the
// document-database contract the front end was written against.
type ProfileStoreAdapter struct {
	pool   *pgxpool.Pool
	logger domain.Logger
}

// NewProfileStoreAdapter creates a new ProfileStoreAdapter.
func NewProfileStoreAdapter(pool *pgxpool.Pool, logger domain.Logger) *ProfileStoreAdapter {
	if pool == nil {
		panic("pool cannot be nil in NewProfileStoreAdapter")
	}
	return &ProfileStoreAdapter{pool: pool, logger: logger}
}

// tableFor maps a logical collection name to its table. Collection names are
// a closed set; anything else is rejected before it reaches SQL.
func tableFor(collection string) (string, error) {
	switch collection {
	case domain.CollectionJobSeekerProfiles, domain.CollectionEmployerProfiles:
		return collection, nil
	}
	return "", fmt.Errorf("unknown profile collection %q", collection)
}

// GetDocument reads the document keyed by id. A missing row is a normal
// Exists=false result, not an error.
func (a *ProfileStoreAdapter) GetDocument(ctx context.Context, collection, id string) (domain.Document, error) {
	table, err := tableFor(collection)
	if err != nil {
		return domain.Document{}, err
	}

	query := fmt.Sprintf(`SELECT data FROM %s WHERE uid = $1`, table)
	var data json.RawMessage
	if err := a.pool.QueryRow(ctx, query, id).Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Document{Exists: false}, nil
		}
		a.logger.Error(ctx, "Profile document read failed", "collection", collection, "uid", id, "error", err.Error())
		return domain.Document{}, fmt.Errorf("read %s document for %q: %w", collection, id, err)
	}
	return domain.Document{Exists: true, Data: data}, nil
}

// MergeDocument applies a partial update with JSONB merge semantics: fields
// present in patch overwrite, everything else is preserved. The document is
// created when absent.
func (a *ProfileStoreAdapter) MergeDocument(ctx context.Context, collection, id string, patch json.RawMessage) (domain.Document, error) {
	table, err := tableFor(collection)
	if err != nil {
		return domain.Document{}, err
	}
	if !json.Valid(patch) {
		return domain.Document{}, fmt.Errorf("merge patch for %q is not valid JSON", id)
	}

	query := fmt.Sprintf(`
        INSERT INTO %s (uid, data, created_at, updated_at)
        VALUES ($1, $2::jsonb, NOW(), NOW())
        ON CONFLICT (uid)
        DO UPDATE SET data = %s.data || EXCLUDED.data, updated_at = NOW()
        RETURNING data`, table, table)

	var merged json.RawMessage
	if err := a.pool.QueryRow(ctx, query, id, string(patch)).Scan(&merged); err != nil {
		a.logger.Error(ctx, "Profile document merge failed", "collection", collection, "uid", id, "error", err.Error())
		return domain.Document{}, fmt.Errorf("merge %s document for %q: %w", collection, id, err)
	}
	a.logger.Debug(ctx, "Profile document merged", "collection", collection, "uid", id)
	return domain.Document{Exists: true, Data: merged}, nil
}

// DeleteDocument removes the document keyed by id; deleting an absent
// document is not an error.
func (a *ProfileStoreAdapter) DeleteDocument(ctx context.Context, collection, id string) error {
	table, err := tableFor(collection)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`DELETE FROM %s WHERE uid = $1`, table)
	if _, err := a.pool.Exec(ctx, query, id); err != nil {
		a.logger.Error(ctx, "Profile document delete failed", "collection", collection, "uid", id, "error", err.Error())
		return fmt.Errorf("delete %s document for %q: %w", collection, id, err)
	}
	return nil
}
