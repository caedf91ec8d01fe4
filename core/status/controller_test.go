package status

import (
	"context"
	"sync"
	"testing"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/trezcool/ratiba/core"
)

// fakeStore is a scriptable Store: fail the next N writes, optionally normalize
// written values server-side.
type fakeStore struct {
	mu        sync.Mutex
	fields    map[fieldKey]Field
	failures  int
	writes    int
	delay     time.Duration // applied before each write
	normalize func(Value) Value
}

var _ Store = (*fakeStore)(nil)

var errStoreDown = pkgerrors.New("store down")

func newFakeStore() *fakeStore {
	return &fakeStore{fields: make(map[fieldKey]Field)}
}

func (s *fakeStore) ReadStatus(ctx context.Context, entityID, key string) (Field, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fld, ok := s.fields[fieldKey{entityID, key}]; ok {
		return fld, nil
	}
	return Field{}, ErrNotFound
}

func (s *fakeStore) WriteStatus(ctx context.Context, entityID, key string, value Value) (Field, error) {
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
	if s.failures > 0 {
		s.failures--
		return Field{}, errStoreDown
	}
	if s.normalize != nil {
		value = s.normalize(value)
	}
	fld := Field{EntityID: entityID, Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	s.fields[fieldKey{entityID, key}] = fld
	return fld, nil
}

func (s *fakeStore) writeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

func newTestController(store Store, maxRetries int) *Controller {
	return NewController(store, &core.Config{
		Status: core.StatusConfig{MaxRetries: maxRetries, BackoffUnit: time.Millisecond},
	})
}

func waitResult(t *testing.T, res <-chan Result) Result {
	t.Helper()
	select {
	case r := <-res:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for mutation result")
		return Result{}
	}
}

func TestController_Mutate(t *testing.T) {
	ctx := context.Background()

	t.Run("successful write converges", func(t *testing.T) {
		store := newFakeStore()
		ctrl := newTestController(store, 3)

		r := waitResult(t, ctrl.Mutate(ctx, "evt1", "attendance", ValueDone))
		if r.Err != nil {
			t.Fatalf("Mutate() error = %v", r.Err)
		}
		if r.Value != ValueDone {
			t.Errorf("Value = %v, want %v", r.Value, ValueDone)
		}

		local, err := ctrl.Local(ctx, "evt1", "attendance")
		if err != nil || local != ValueDone {
			t.Errorf("Local() = %v, %v; want %v", local, err, ValueDone)
		}
		fld, err := store.ReadStatus(ctx, "evt1", "attendance")
		if err != nil || fld.Value != ValueDone {
			t.Errorf("store = %v, %v; want %v", fld.Value, err, ValueDone)
		}
	})

	t.Run("invalid value resolves immediately", func(t *testing.T) {
		store := newFakeStore()
		ctrl := newTestController(store, 3)

		r := waitResult(t, ctrl.Mutate(ctx, "evt1", "attendance", "explode"))
		if r.Err == nil {
			t.Fatal("Mutate() expected validation error")
		}
		if store.writeCount() != 0 {
			t.Error("invalid value must never reach the store")
		}
	})

	t.Run("optimistic value is visible before the store confirms", func(t *testing.T) {
		store := newFakeStore()
		store.delay = 100 * time.Millisecond // write still in flight
		ctrl := newTestController(store, 5)

		res := ctrl.Mutate(ctx, "evt1", "attendance", ValueDone)

		local, err := ctrl.Local(ctx, "evt1", "attendance")
		if err != nil || local != ValueDone {
			t.Errorf("Local() = %v, %v; want optimistic %v", local, err, ValueDone)
		}

		r := waitResult(t, res)
		if r.Err != nil {
			t.Fatalf("Mutate() error = %v, want eventual success", r.Err)
		}
	})

	t.Run("exhausted retries roll back", func(t *testing.T) {
		store := newFakeStore()
		ctrl := newTestController(store, 3)

		// seed a committed value to roll back to
		r := waitResult(t, ctrl.Mutate(ctx, "evt1", "attendance", ValuePending))
		if r.Err != nil {
			t.Fatalf("seed Mutate() error = %v", r.Err)
		}
		seedWrites := store.writeCount()

		store.mu.Lock()
		store.failures = 100 // never recovers
		store.mu.Unlock()

		r = waitResult(t, ctrl.Mutate(ctx, "evt1", "attendance", ValueDone))
		if pkgerrors.Cause(r.Err) != ErrRetriesExhausted {
			t.Fatalf("Mutate() error = %v, want ErrRetriesExhausted", r.Err)
		}
		if r.Value != ValuePending {
			t.Errorf("terminal Value = %v, want rolled-back %v", r.Value, ValuePending)
		}
		if got := store.writeCount() - seedWrites; got != 3 {
			t.Errorf("failed write attempts = %d, want the full budget of 3", got)
		}

		// local view is back at the committed value
		local, err := ctrl.Local(ctx, "evt1", "attendance")
		if err != nil || local != ValuePending {
			t.Errorf("Local() = %v, %v; want %v", local, err, ValuePending)
		}
		fld, _ := store.ReadStatus(ctx, "evt1", "attendance")
		if fld.Value != ValuePending {
			t.Errorf("store = %v, want untouched %v", fld.Value, ValuePending)
		}
	})

	t.Run("rollback to absence when there was no prior value", func(t *testing.T) {
		store := newFakeStore()
		store.failures = 100
		ctrl := newTestController(store, 2)

		r := waitResult(t, ctrl.Mutate(ctx, "evt1", "attendance", ValueDone))
		if pkgerrors.Cause(r.Err) != ErrRetriesExhausted {
			t.Fatalf("Mutate() error = %v, want ErrRetriesExhausted", r.Err)
		}
		if _, err := ctrl.Local(ctx, "evt1", "attendance"); err != ErrNotFound {
			t.Errorf("Local() error = %v, want ErrNotFound after rollback", err)
		}
	})

	t.Run("newer write supersedes the in-flight one", func(t *testing.T) {
		store := newFakeStore()
		store.failures = 1 // first write fails once, then backs off
		ctrl := NewController(store, &core.Config{
			Status: core.StatusConfig{MaxRetries: 10, BackoffUnit: 50 * time.Millisecond},
		})

		res1 := ctrl.Mutate(ctx, "evt1", "attendance", ValueMissed)
		time.Sleep(10 * time.Millisecond) // let the first attempt fail

		res2 := ctrl.Mutate(ctx, "evt1", "attendance", ValueExcused)

		r2 := waitResult(t, res2)
		if r2.Err != nil || r2.Value != ValueExcused {
			t.Fatalf("second Mutate() = %+v, want %v", r2, ValueExcused)
		}
		r1 := waitResult(t, res1)
		if r1.Err != ErrSuperseded {
			t.Errorf("first Mutate() error = %v, want ErrSuperseded", r1.Err)
		}

		local, err := ctrl.Local(ctx, "evt1", "attendance")
		if err != nil || local != ValueExcused {
			t.Errorf("Local() = %v, %v; want last writer %v", local, err, ValueExcused)
		}
	})

	t.Run("local view reconciles with the canonical stored value", func(t *testing.T) {
		store := newFakeStore()
		store.normalize = func(Value) Value { return ValueDone }
		ctrl := newTestController(store, 3)

		r := waitResult(t, ctrl.Mutate(ctx, "evt1", "attendance", ValueExcused))
		if r.Err != nil {
			t.Fatalf("Mutate() error = %v", r.Err)
		}
		if r.Value != ValueDone {
			t.Errorf("Value = %v, want canonical %v", r.Value, ValueDone)
		}
		local, err := ctrl.Local(ctx, "evt1", "attendance")
		if err != nil || local != ValueDone {
			t.Errorf("Local() = %v, %v; want canonical %v", local, err, ValueDone)
		}
	})
}

func TestController_Local(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	ctrl := newTestController(store, 3)

	if _, err := ctrl.Local(ctx, "evt1", "attendance"); err != ErrNotFound {
		t.Errorf("Local() error = %v, want ErrNotFound", err)
	}

	if _, err := store.WriteStatus(ctx, "evt1", "attendance", ValueMissed); err != nil {
		t.Fatalf("WriteStatus() error = %v", err)
	}
	local, err := ctrl.Local(ctx, "evt1", "attendance")
	if err != nil || local != ValueMissed {
		t.Errorf("Local() = %v, %v; want stored %v", local, err, ValueMissed)
	}
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    Value
		wantErr error
	}{
		{name: "canonical", in: "done", want: ValueDone},
		{name: "case and spacing", in: "  Excused ", want: ValueExcused},
		{name: "synonym present", in: "present", want: ValueDone},
		{name: "synonym complete", in: "Complete", want: ValueDone},
		{name: "synonym absent", in: "absent", want: ValueMissed},
		{name: "pending", in: "pending", want: ValuePending},
		{name: "unknown", in: "explode", wantErr: ErrInvalidValue},
		{name: "empty", in: "", wantErr: ErrInvalidValue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseValue(tt.in)
			if err != tt.wantErr {
				t.Fatalf("ParseValue() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseValue() = %v, want %v", got, tt.want)
			}
		})
	}
}
