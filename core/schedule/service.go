package schedule

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/ratiba/core"
)

var nowFunc = time.Now // mockable

type (
	Repository interface {
		// InsertInstances persists a generation batch and returns it with ids assigned.
		InsertInstances(ctx context.Context, instances []EventInstance, exec ...core.DBExecutor) ([]EventInstance, error)
		GetInstancesByIDs(ctx context.Context, ids []string, exec ...core.DBExecutor) ([]EventInstance, error)
		QueryInstancesByGeneration(ctx context.Context, ownerID, generatedFrom string, exec ...core.DBExecutor) ([]EventInstance, error)
		// QueryInstancesBetween returns active instances with StartAt in [from, to), all owners, ascending.
		QueryInstancesBetween(ctx context.Context, from, to time.Time, exec ...core.DBExecutor) ([]EventInstance, error)
		// FilterInstances applies the time partition relative to `now` and the page window.
		// `current` is StartAt >= now OR IsActive, ascending; `past` is StartAt < now, descending.
		FilterInstances(ctx context.Context, ownerID string, filter QueryFilter, now time.Time, exec ...core.DBExecutor) ([]EventInstance, error)
		CountInstances(ctx context.Context, ownerID string, filter QueryFilter, now time.Time, exec ...core.DBExecutor) (int, error)
		UpdateActiveFlag(ctx context.Context, ids []string, isActive bool, exec ...core.DBExecutor) (int, error)
		DeleteInstancesByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error)
	}

	Service interface {
		Generate(ctx context.Context, req GenerationRequest) (GenerationResult, error)
		Estimate(req GenerationRequest) (int, error)
		Query(ctx context.Context, ownerID string, filter QueryFilter) (PagedInstances, error)
		Bulk(ctx context.Context, ownerID string, action BulkAction) (BulkResult, error)
		DeleteGeneration(ctx context.Context, ownerID, generatedFrom string) (BulkResult, error)
	}

	service struct {
		db       core.DB
		repo     Repository
		mailSvc  core.EmailService
		validate *validator.Validate
		conf     *core.Config
	}
)

var _ Service = (*service)(nil)

func NewService(db core.DB, repo Repository, mailSvc core.EmailService, validate *validator.Validate, conf *core.Config) Service {
	return &service{
		db:       db,
		repo:     repo,
		mailSvc:  mailSvc,
		validate: validate,
		conf:     conf,
	}
}

// runInTx runs fn within a single transaction so a batch either fully commits
// or leaves nothing behind. Repositories without a backing core.DB (in-memory)
// apply their own batch atomicity.
func (svc *service) runInTx(ctx context.Context, fn func(exec ...core.DBExecutor) error) error {
	if svc.db == nil {
		return fn()
	}
	tx, err := svc.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}

// Generate validates the request, expands it and persists the whole batch
// atomically; it never partially succeeds.
func (svc *service) Generate(ctx context.Context, req GenerationRequest) (GenerationResult, error) {
	req.Clean()
	if err := req.Validate(svc.validate); err != nil {
		return GenerationResult{}, err
	}

	generatedFrom := uuid.New().String()
	batch := Materialize(req, generatedFrom)

	var res GenerationResult
	err := svc.runInTx(ctx, func(exec ...core.DBExecutor) error {
		inserted, err := svc.repo.InsertInstances(ctx, batch, exec...)
		if err != nil {
			return errors.Wrap(err, "inserting generation batch")
		}
		res = GenerationResult{
			CreatedCount:  len(inserted),
			GeneratedFrom: generatedFrom,
			Instances:     inserted,
		}
		return nil
	})
	if err != nil {
		return GenerationResult{}, err
	}

	svc.sendGenerationMail(req, res)
	return res, nil
}

// Estimate returns the closed-form instance count for a request without
// creating anything.
func (svc *service) Estimate(req GenerationRequest) (int, error) {
	req.Clean()
	if err := req.Validate(svc.validate); err != nil {
		return 0, err
	}
	return EstimateCount(req), nil
}

func (svc *service) Query(ctx context.Context, ownerID string, filter QueryFilter) (PagedInstances, error) {
	filter.Clean()
	now := nowFunc().UTC()

	total, err := svc.repo.CountInstances(ctx, ownerID, filter, now)
	if err != nil {
		return PagedInstances{}, errors.Wrap(err, "counting instances")
	}
	items, err := svc.repo.FilterInstances(ctx, ownerID, filter, now)
	if err != nil {
		return PagedInstances{}, errors.Wrap(err, "filtering instances")
	}
	if items == nil {
		items = []EventInstance{}
	}

	totalPages := filter.TotalPages(total)
	return PagedInstances{
		Items:      items,
		Total:      total,
		Page:       filter.Page,
		PageSize:   filter.PageSize,
		TotalPages: totalPages,
		HasMore:    filter.Page < totalPages,
	}, nil
}

func (svc *service) Bulk(ctx context.Context, ownerID string, action BulkAction) (BulkResult, error) {
	if err := action.Validate(svc.validate); err != nil {
		return BulkResult{}, err
	}

	ids := dedupe(action.IDs)
	instances, err := svc.scopedInstances(ctx, ownerID, ids)
	if err != nil {
		return BulkResult{}, err
	}

	switch action.Action {
	case ActionActivate:
		return svc.updateActive(ctx, ids, true)
	case ActionDeactivate:
		return svc.updateActive(ctx, ids, false)
	case ActionDeleteFuture:
		return svc.deleteFuture(ctx, instances)
	}
	// unreachable; Validate rejects unknown actions
	return BulkResult{}, core.NewValidationError(errors.Errorf("unknown action %q", action.Action))
}

// DeleteGeneration retracts the future instances of one generation batch.
// This is the explicit counterpart to additive materialization: re-generating
// an overlapping range is undone batch by batch, never by guessing duplicates.
func (svc *service) DeleteGeneration(ctx context.Context, ownerID, generatedFrom string) (BulkResult, error) {
	instances, err := svc.repo.QueryInstancesByGeneration(ctx, ownerID, generatedFrom)
	if err != nil {
		return BulkResult{}, errors.Wrap(err, "querying generation batch")
	}
	if len(instances) == 0 {
		return BulkResult{}, ErrNotFound
	}
	return svc.deleteFuture(ctx, instances)
}

// scopedInstances fetches ids and rejects the whole set if any id is unknown
// or belongs to another owner; out-of-scope ids are never silently dropped.
func (svc *service) scopedInstances(ctx context.Context, ownerID string, ids []string) ([]EventInstance, error) {
	instances, err := svc.repo.GetInstancesByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "fetching instances")
	}
	if len(instances) != len(ids) {
		return nil, ErrOutOfScope
	}
	for _, inst := range instances {
		if inst.OwnerID != ownerID {
			return nil, ErrOutOfScope
		}
	}
	return instances, nil
}

func (svc *service) updateActive(ctx context.Context, ids []string, isActive bool) (BulkResult, error) {
	var updated int
	err := svc.runInTx(ctx, func(exec ...core.DBExecutor) error {
		var err error
		updated, err = svc.repo.UpdateActiveFlag(ctx, ids, isActive, exec...)
		return errors.Wrap(err, "updating active flag")
	})
	if err != nil {
		return BulkResult{}, err
	}
	return BulkResult{Requested: len(ids), Affected: updated}, nil
}

// deleteFuture deletes the instances starting on or after now; past instances
// may already carry attendance history elsewhere and are excluded from
// deletion, reported through Skipped.
func (svc *service) deleteFuture(ctx context.Context, instances []EventInstance) (BulkResult, error) {
	now := nowFunc().UTC()

	deletable := make([]string, 0, len(instances))
	for _, inst := range instances {
		if !inst.StartAt.Before(now) {
			deletable = append(deletable, inst.ID)
		}
	}

	var deleted int
	if len(deletable) > 0 {
		err := svc.runInTx(ctx, func(exec ...core.DBExecutor) error {
			var err error
			deleted, err = svc.repo.DeleteInstancesByID(ctx, deletable, exec...)
			return errors.Wrap(err, "deleting instances")
		})
		if err != nil {
			return BulkResult{}, err
		}
	}
	return BulkResult{
		Requested: len(instances),
		Affected:  deleted,
		Skipped:   len(instances) - deleted,
	}, nil
}

// sendGenerationMail emails a plain-text batch summary when the request asked
// for one. Delivery is best effort and runs off the request path.
func (svc *service) sendGenerationMail(req GenerationRequest, res GenerationResult) {
	if req.NotifyEmail == "" || svc.mailSvc == nil {
		return
	}

	body := new(strings.Builder)
	fmt.Fprintf(body, "A new schedule batch was generated.\n\n")
	fmt.Fprintf(body, "Category: %s\n", req.Category)
	if req.Title != "" {
		fmt.Fprintf(body, "Title: %s\n", req.Title)
	}
	fmt.Fprintf(body, "Range: %s to %s\n", req.ValidFrom, req.ValidTo)
	fmt.Fprintf(body, "Instances created: %d\n", res.CreatedCount)
	fmt.Fprintf(body, "Batch id: %s\n", res.GeneratedFrom)

	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:      []mail.Address{{Address: req.NotifyEmail}},
		Subject: "Schedule generated",
		BodyStr: body.String(),
	})
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
