package inmemdb

import (
	"sync"

	"github.com/trezcool/ratiba/core/schedule"
	"github.com/trezcool/ratiba/core/status"
)

type (
	// DB is an in-memory store for tests and local development.
	DB struct {
		instances *instanceTable
		statuses  *statusTable
	}

	instanceTable struct {
		t     map[string]*schedule.EventInstance
		mutex sync.RWMutex
	}

	statusKey struct {
		entityID string
		key      string
	}

	statusTable struct {
		t     map[statusKey]*status.Field
		mutex sync.RWMutex
	}
)

func Open() (*DB, error) {
	db := &DB{
		instances: &instanceTable{t: make(map[string]*schedule.EventInstance)},
		statuses:  &statusTable{t: make(map[statusKey]*status.Field)},
	}
	return db, nil
}
