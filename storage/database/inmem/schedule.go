package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/schedule"
)

type scheduleRepository struct {
	db *instanceTable
}

var _ schedule.Repository = (*scheduleRepository)(nil)

func NewScheduleRepository(db *DB) schedule.Repository {
	return &scheduleRepository{db: db.instances}
}

func (r *scheduleRepository) InsertInstances(
	ctx context.Context, instances []schedule.EventInstance, exec ...core.DBExecutor,
) ([]schedule.EventInstance, error) {
	r.db.mutex.Lock()
	defer r.db.mutex.Unlock()

	inserted := make([]schedule.EventInstance, 0, len(instances))
	for _, inst := range instances {
		inst.ID = uuid.New().String()
		cp := inst
		r.db.t[inst.ID] = &cp
		inserted = append(inserted, inst)
	}
	return inserted, nil
}

func (r *scheduleRepository) GetInstancesByIDs(
	ctx context.Context, ids []string, exec ...core.DBExecutor,
) ([]schedule.EventInstance, error) {
	r.db.mutex.RLock()
	defer r.db.mutex.RUnlock()

	var instances []schedule.EventInstance
	for _, id := range ids {
		if inst, ok := r.db.t[id]; ok {
			instances = append(instances, *inst)
		}
	}
	return instances, nil
}

func (r *scheduleRepository) QueryInstancesByGeneration(
	ctx context.Context, ownerID, generatedFrom string, exec ...core.DBExecutor,
) ([]schedule.EventInstance, error) {
	r.db.mutex.RLock()
	defer r.db.mutex.RUnlock()

	var instances []schedule.EventInstance
	for _, inst := range r.db.t {
		if inst.OwnerID == ownerID && inst.GeneratedFrom == generatedFrom {
			instances = append(instances, *inst)
		}
	}
	sortAscending(instances)
	return instances, nil
}

func (r *scheduleRepository) QueryInstancesBetween(
	ctx context.Context, from, to time.Time, exec ...core.DBExecutor,
) ([]schedule.EventInstance, error) {
	r.db.mutex.RLock()
	defer r.db.mutex.RUnlock()

	var instances []schedule.EventInstance
	for _, inst := range r.db.t {
		if inst.IsActive && !inst.StartAt.Before(from) && inst.StartAt.Before(to) {
			instances = append(instances, *inst)
		}
	}
	sortAscending(instances)
	return instances, nil
}

// partition returns the owner's instances in the requested time partition,
// already ordered (current ascending, past descending).
func (r *scheduleRepository) partition(
	ownerID string, filter schedule.QueryFilter, now time.Time,
) []schedule.EventInstance {
	r.db.mutex.RLock()
	defer r.db.mutex.RUnlock()

	var instances []schedule.EventInstance
	for _, inst := range r.db.t {
		if inst.OwnerID != ownerID {
			continue
		}
		switch filter.Time {
		case schedule.TimeFilterPast:
			if inst.StartAt.Before(now) {
				instances = append(instances, *inst)
			}
		default:
			if !inst.StartAt.Before(now) || inst.IsActive {
				instances = append(instances, *inst)
			}
		}
	}

	if filter.Time == schedule.TimeFilterPast {
		sort.SliceStable(instances, func(i, j int) bool {
			return instances[i].StartAt.After(instances[j].StartAt)
		})
	} else {
		sortAscending(instances)
	}
	return instances
}

func (r *scheduleRepository) FilterInstances(
	ctx context.Context, ownerID string, filter schedule.QueryFilter, now time.Time, exec ...core.DBExecutor,
) ([]schedule.EventInstance, error) {
	instances := r.partition(ownerID, filter, now)

	offset := filter.Offset()
	if offset >= len(instances) {
		return nil, nil
	}
	end := offset + filter.Limit()
	if end > len(instances) {
		end = len(instances)
	}
	return instances[offset:end], nil
}

func (r *scheduleRepository) CountInstances(
	ctx context.Context, ownerID string, filter schedule.QueryFilter, now time.Time, exec ...core.DBExecutor,
) (int, error) {
	return len(r.partition(ownerID, filter, now)), nil
}

func (r *scheduleRepository) UpdateActiveFlag(
	ctx context.Context, ids []string, isActive bool, exec ...core.DBExecutor,
) (int, error) {
	r.db.mutex.Lock()
	defer r.db.mutex.Unlock()

	var updated int
	for _, id := range ids {
		if inst, ok := r.db.t[id]; ok {
			inst.IsActive = isActive
			updated++
		}
	}
	return updated, nil
}

func (r *scheduleRepository) DeleteInstancesByID(
	ctx context.Context, ids []string, exec ...core.DBExecutor,
) (int, error) {
	r.db.mutex.Lock()
	defer r.db.mutex.Unlock()

	var deleted int
	for _, id := range ids {
		if _, ok := r.db.t[id]; ok {
			delete(r.db.t, id)
			deleted++
		}
	}
	return deleted, nil
}

func sortAscending(instances []schedule.EventInstance) {
	sort.SliceStable(instances, func(i, j int) bool {
		return instances[i].StartAt.Before(instances[j].StartAt)
	})
}
