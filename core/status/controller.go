package status

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/ratiba/core"
)

var (
	// ErrRetriesExhausted is the terminal failure after the retry budget is
	// spent; the local view is back at the pre-mutation value.
	ErrRetriesExhausted = errors.New("status write failed and retry budget is exhausted")

	// ErrSuperseded resolves an in-flight mutation that a newer write for the
	// same (entity, key) cancelled.
	ErrSuperseded = errors.New("mutation superseded by a newer write")
)

// Result is the terminal outcome of one Mutate call.
type Result struct {
	Value Value
	Err   error
}

type fieldKey struct {
	entityID string
	key      string
}

type flight struct {
	gen    uint64
	cancel context.CancelFunc
}

// Controller keeps a local view of status fields convergent with the
// authoritative Store under partial failure. Writes are applied optimistically
// to the local view, rolled back the moment the remote write fails, and
// retried with exponential backoff until the budget runs out. One logical
// state machine runs per (entity, key): a newer Mutate call for the same key
// cancels the older in-flight chain — last writer wins.
type Controller struct {
	store      Store
	maxRetries int
	backoff    time.Duration

	mu      sync.Mutex
	local   map[fieldKey]Value
	flights map[fieldKey]*flight
	gen     uint64
}

func NewController(store Store, conf *core.Config) *Controller {
	maxRetries := conf.Status.MaxRetries
	if maxRetries < 1 {
		maxRetries = 1
	}
	backoff := conf.Status.BackoffUnit
	if backoff <= 0 {
		backoff = time.Second
	}
	return &Controller{
		store:      store,
		maxRetries: maxRetries,
		backoff:    backoff,
		local:      make(map[fieldKey]Value),
		flights:    make(map[fieldKey]*flight),
	}
}

// Local returns the caller-visible value: the optimistic local view when one
// exists, the stored value otherwise.
func (c *Controller) Local(ctx context.Context, entityID, key string) (Value, error) {
	k := fieldKey{entityID, key}
	c.mu.Lock()
	v, ok := c.local[k]
	c.mu.Unlock()
	if ok {
		return v, nil
	}
	fld, err := c.store.ReadStatus(ctx, entityID, key)
	if err != nil {
		return "", err
	}
	return fld.Value, nil
}

// Mutate applies `value` to the local view immediately and converges the store
// towards it in the background. The returned channel (buffered, never blocks
// the controller) delivers exactly one terminal Result: the canonical value on
// success, ErrRetriesExhausted after the budget is spent, or ErrSuperseded if
// a newer Mutate for the same key took over.
func (c *Controller) Mutate(ctx context.Context, entityID, key string, value Value) <-chan Result {
	res := make(chan Result, 1)
	if !value.Valid() {
		res <- Result{Err: core.NewValidationError(ErrInvalidValue, core.FieldError{
			Field: "value", Error: ErrInvalidValue.Error(),
		})}
		return res
	}

	k := fieldKey{entityID, key}

	c.mu.Lock()
	// a newer write for this key invalidates any in-flight retry chain
	if f, ok := c.flights[k]; ok {
		f.cancel()
	}
	c.gen++
	gen := c.gen
	// the chain must outlive the caller's request context; supersession is
	// the only cancellation signal
	fctx, cancel := context.WithCancel(context.Background())
	c.flights[k] = &flight{gen: gen, cancel: cancel}

	prev, hasPrev := c.local[k]
	c.mu.Unlock()

	if !hasPrev {
		if fld, err := c.store.ReadStatus(ctx, entityID, key); err == nil {
			prev, hasPrev = fld.Value, true
		}
		// ErrNotFound: the field is created implicitly on first write
	}

	// optimistic apply; callers see the change with zero latency
	c.setLocal(k, gen, value)

	go c.converge(fctx, k, gen, prev, hasPrev, value, res)
	return res
}

func (c *Controller) converge(ctx context.Context, k fieldKey, gen uint64, prev Value, hasPrev bool, value Value, res chan<- Result) {
	for attempt := 1; ; attempt++ {
		fld, err := c.store.WriteStatus(ctx, k.entityID, k.key, value)
		if err == nil {
			c.mu.Lock()
			current := c.flights[k] != nil && c.flights[k].gen == gen
			if current {
				// reconcile with whatever canonical value the store holds
				c.local[k] = fld.Value
				delete(c.flights, k)
			}
			c.mu.Unlock()
			if current {
				res <- Result{Value: fld.Value}
			} else {
				res <- Result{Value: fld.Value, Err: ErrSuperseded}
			}
			return
		}

		// never leave an unconfirmed value visible as if it were committed
		c.rollback(k, gen, prev, hasPrev)

		if attempt >= c.maxRetries {
			c.finish(k, gen)
			res <- Result{Value: prev, Err: errors.Wrapf(ErrRetriesExhausted, "writing %s/%s", k.entityID, k.key)}
			return
		}

		timer := time.NewTimer(c.backoff << uint(attempt)) // 2^attempt units
		select {
		case <-ctx.Done():
			timer.Stop()
			res <- Result{Value: prev, Err: ErrSuperseded}
			return
		case <-timer.C:
		}

		if !c.setLocal(k, gen, value) { // re-apply optimistic value
			res <- Result{Value: prev, Err: ErrSuperseded}
			return
		}
	}
}

// setLocal applies `value` to the local view iff gen is still the newest
// writer for the key.
func (c *Controller) setLocal(k fieldKey, gen uint64, value Value) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if f, ok := c.flights[k]; !ok || f.gen != gen {
		return false
	}
	c.local[k] = value
	return true
}

// rollback restores the pre-mutation value iff gen is still the newest writer.
func (c *Controller) rollback(k fieldKey, gen uint64, prev Value, hasPrev bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if f, ok := c.flights[k]; !ok || f.gen != gen {
		return
	}
	if hasPrev {
		c.local[k] = prev
	} else {
		delete(c.local, k)
	}
}

func (c *Controller) finish(k fieldKey, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if f, ok := c.flights[k]; ok && f.gen == gen {
		delete(c.flights, k)
	}
}
