package inmemdb

import (
	"context"
	"time"

	"github.com/trezcool/ratiba/core/status"
)

type statusStore struct {
	db *statusTable
}

var _ status.Store = (*statusStore)(nil)

func NewStatusStore(db *DB) status.Store {
	return &statusStore{db: db.statuses}
}

func (s *statusStore) ReadStatus(ctx context.Context, entityID, key string) (status.Field, error) {
	s.db.mutex.RLock()
	defer s.db.mutex.RUnlock()

	if fld, ok := s.db.t[statusKey{entityID, key}]; ok {
		return *fld, nil
	}
	return status.Field{}, status.ErrNotFound
}

func (s *statusStore) WriteStatus(ctx context.Context, entityID, key string, value status.Value) (status.Field, error) {
	canonical, err := status.ParseValue(string(value))
	if err != nil {
		return status.Field{}, err
	}

	s.db.mutex.Lock()
	defer s.db.mutex.Unlock()

	fld := status.Field{EntityID: entityID, Key: key, Value: canonical, UpdatedAt: time.Now().UTC()}
	s.db.t[statusKey{entityID, key}] = &fld
	return fld, nil
}
