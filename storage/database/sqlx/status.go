package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/status"
)

type statusStore struct {
	exec core.DBExecutor
}

var _ status.Store = (*statusStore)(nil) // interface compliance check

func NewStatusStore(exec core.DBExecutor) *statusStore {
	return &statusStore{exec: exec}
}

func (store statusStore) ReadStatus(ctx context.Context, entityID, key string) (status.Field, error) {
	query := `SELECT entity_id, field_key, value, updated_at FROM status_field
		WHERE entity_id = $1 AND field_key = $2`

	var fld status.Field
	err := store.exec.QueryRowContext(ctx, query, entityID, key).
		Scan(&fld.EntityID, &fld.Key, &fld.Value, &fld.UpdatedAt)
	if err == sql.ErrNoRows {
		return status.Field{}, status.ErrNotFound
	}
	if err != nil {
		return status.Field{}, errors.Wrap(err, "reading status field")
	}
	fld.UpdatedAt = fld.UpdatedAt.UTC()
	return fld, nil
}

// WriteStatus upserts the field (created implicitly on first write, superseded
// on each subsequent one) and returns the canonical stored value.
func (store statusStore) WriteStatus(ctx context.Context, entityID, key string, value status.Value) (status.Field, error) {
	canonical, err := status.ParseValue(string(value))
	if err != nil {
		return status.Field{}, err
	}

	now := time.Now().UTC()
	query := `INSERT INTO status_field (entity_id, field_key, value, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (entity_id, field_key) DO UPDATE SET value = $3, updated_at = $4`
	if _, err := store.exec.ExecContext(ctx, query, entityID, key, canonical, now); err != nil {
		return status.Field{}, errors.Wrap(err, "writing status field")
	}
	return status.Field{EntityID: entityID, Key: key, Value: canonical, UpdatedAt: now}, nil
}
