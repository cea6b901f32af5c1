package services

import (
	"context"
	"strings"
	"time"

	domainagg "github.com/yungbote/mdr-library-backend/internal/domain/aggregates"
	"github.com/yungbote/mdr-library-backend/internal/domain/versioning"
	"github.com/yungbote/mdr-library-backend/internal/platform/logger"
)

const (
	DefaultRetryAttempts = 3
	defaultRetryBackoff  = 25 * time.Millisecond
)

// ItemView is the read model returned for a current item.
type ItemView[V any] struct {
	UID               string              `json:"uid"`
	EntityType        string              `json:"entity_type"`
	Library           string              `json:"library"`
	LibraryEditable   bool                `json:"library_editable"`
	Status            versioning.Status   `json:"status"`
	Version           string              `json:"version"`
	Author            string              `json:"author"`
	ChangeDescription string              `json:"change_description"`
	StartDate         time.Time           `json:"start_date"`
	EndDate           *time.Time          `json:"end_date,omitempty"`
	Value             V                   `json:"value"`
	PossibleActions   []versioning.Action `json:"possible_actions"`
}

// VersionView is one snapshot plus a line diff of its payload against the
// previous snapshot. The first snapshot has no diff.
type VersionView[V any] struct {
	Seq      int                     `json:"seq"`
	Metadata versioning.ItemMetadata `json:"metadata"`
	Value    V                       `json:"value"`
	Diff     string                  `json:"diff,omitempty"`
}

type LibraryItemService[V any] interface {
	EntityType() string

	Create(ctx context.Context, in domainagg.CreateLibraryItemInput[V]) (ItemView[V], error)
	EditDraft(ctx context.Context, in domainagg.EditDraftInput[V]) (ItemView[V], error)
	Approve(ctx context.Context, in domainagg.TransitionInput) (ItemView[V], error)
	CreateNewVersion(ctx context.Context, in domainagg.TransitionInput) (ItemView[V], error)
	Retire(ctx context.Context, in domainagg.TransitionInput) (ItemView[V], error)
	Reactivate(ctx context.Context, in domainagg.TransitionInput) (ItemView[V], error)
	SoftDelete(ctx context.Context, in domainagg.TransitionInput) (versioning.AuditEntry, error)

	Get(ctx context.Context, uid string) (ItemView[V], error)
	History(ctx context.Context, uid string) ([]versioning.AuditEntry, error)
	Versions(ctx context.Context, uid string) ([]VersionView[V], error)
}

type LibraryItemServiceDeps[V any] struct {
	Log       *logger.Logger
	Aggregate domainagg.LibraryItemAggregate[V]
	// Validate checks a payload before it reaches the aggregate. Optional.
	Validate func(V) error
	// RetryAttempts bounds how many times a write is run when it fails with a
	// conflict or retryable error. Values below 1 mean DefaultRetryAttempts.
	RetryAttempts int
	RetryBackoff  time.Duration
}

type libraryItemService[V any] struct {
	log      *logger.Logger
	agg      domainagg.LibraryItemAggregate[V]
	validate func(V) error
	attempts int
	backoff  time.Duration
}

func NewLibraryItemService[V any](deps LibraryItemServiceDeps[V]) LibraryItemService[V] {
	if deps.Log == nil {
		deps.Log = logger.NewNop()
	}
	if deps.RetryAttempts < 1 {
		deps.RetryAttempts = DefaultRetryAttempts
	}
	if deps.RetryBackoff <= 0 {
		deps.RetryBackoff = defaultRetryBackoff
	}
	entityType := ""
	if deps.Aggregate != nil {
		entityType = deps.Aggregate.EntityType()
	}
	return &libraryItemService[V]{
		log:      deps.Log.With("service", "LibraryItemService", "entity_type", entityType),
		agg:      deps.Aggregate,
		validate: deps.Validate,
		attempts: deps.RetryAttempts,
		backoff:  deps.RetryBackoff,
	}
}

func (s *libraryItemService[V]) EntityType() string { return s.agg.EntityType() }

func (s *libraryItemService[V]) checkValue(op string, v V) error {
	if s.validate == nil {
		return nil
	}
	if err := s.validate(v); err != nil {
		return domainagg.NewError(domainagg.CodeValidation, op, err.Error(), err)
	}
	return nil
}

// Create is not retried: a conflict there means the uid is taken.
func (s *libraryItemService[V]) Create(ctx context.Context, in domainagg.CreateLibraryItemInput[V]) (ItemView[V], error) {
	if err := s.checkValue("Create", in.Value); err != nil {
		return ItemView[V]{}, err
	}
	res, err := s.agg.Create(ctx, in)
	if err != nil {
		return ItemView[V]{}, err
	}
	return s.view(res.Item), nil
}

func (s *libraryItemService[V]) EditDraft(ctx context.Context, in domainagg.EditDraftInput[V]) (ItemView[V], error) {
	if err := s.checkValue("EditDraft", in.Value); err != nil {
		return ItemView[V]{}, err
	}
	return s.write(ctx, "EditDraft", in.UID, func(ctx context.Context) (domainagg.LibraryItemResult[V], error) {
		return s.agg.EditDraft(ctx, in)
	})
}

func (s *libraryItemService[V]) Approve(ctx context.Context, in domainagg.TransitionInput) (ItemView[V], error) {
	return s.write(ctx, "Approve", in.UID, func(ctx context.Context) (domainagg.LibraryItemResult[V], error) {
		return s.agg.Approve(ctx, in)
	})
}

func (s *libraryItemService[V]) CreateNewVersion(ctx context.Context, in domainagg.TransitionInput) (ItemView[V], error) {
	return s.write(ctx, "CreateNewVersion", in.UID, func(ctx context.Context) (domainagg.LibraryItemResult[V], error) {
		return s.agg.CreateNewVersion(ctx, in)
	})
}

func (s *libraryItemService[V]) Retire(ctx context.Context, in domainagg.TransitionInput) (ItemView[V], error) {
	return s.write(ctx, "Retire", in.UID, func(ctx context.Context) (domainagg.LibraryItemResult[V], error) {
		return s.agg.Retire(ctx, in)
	})
}

func (s *libraryItemService[V]) Reactivate(ctx context.Context, in domainagg.TransitionInput) (ItemView[V], error) {
	return s.write(ctx, "Reactivate", in.UID, func(ctx context.Context) (domainagg.LibraryItemResult[V], error) {
		return s.agg.Reactivate(ctx, in)
	})
}

// SoftDelete returns the Delete entry; the item itself is no longer readable.
func (s *libraryItemService[V]) SoftDelete(ctx context.Context, in domainagg.TransitionInput) (versioning.AuditEntry, error) {
	var entry versioning.AuditEntry
	err := s.retry(ctx, "SoftDelete", in.UID, func(ctx context.Context) error {
		res, err := s.agg.SoftDelete(ctx, in)
		entry = res.Entry
		return err
	})
	return entry, err
}

func (s *libraryItemService[V]) Get(ctx context.Context, uid string) (ItemView[V], error) {
	item, err := s.agg.Get(ctx, uid)
	if err != nil {
		return ItemView[V]{}, err
	}
	return s.view(item), nil
}

func (s *libraryItemService[V]) History(ctx context.Context, uid string) ([]versioning.AuditEntry, error) {
	return s.agg.History(ctx, uid)
}

func (s *libraryItemService[V]) Versions(ctx context.Context, uid string) ([]VersionView[V], error) {
	snaps, err := s.agg.Versions(ctx, uid)
	if err != nil {
		return nil, err
	}
	out := make([]VersionView[V], 0, len(snaps))
	for i, snap := range snaps {
		v := VersionView[V]{Seq: i + 1, Metadata: snap.Metadata, Value: snap.Payload}
		if i > 0 {
			d, err := PayloadDiff(snaps[i-1].Payload, snap.Payload)
			if err != nil {
				s.log.Warn("payload diff failed", "uid", uid, "seq", i+1, "error", err)
			} else {
				v.Diff = d
			}
		}
		out = append(out, v)
	}
	return out, nil
}

func (s *libraryItemService[V]) write(
	ctx context.Context,
	op, uid string,
	fn func(ctx context.Context) (domainagg.LibraryItemResult[V], error),
) (ItemView[V], error) {
	var res domainagg.LibraryItemResult[V]
	err := s.retry(ctx, op, uid, func(ctx context.Context) error {
		var err error
		res, err = fn(ctx)
		return err
	})
	if err != nil {
		return ItemView[V]{}, err
	}
	return s.view(res.Item), nil
}

// retry re-runs fn from a fresh load while it fails with a conflict or
// retryable code. Lifecycle rejections are returned on the first attempt.
func (s *libraryItemService[V]) retry(ctx context.Context, op, uid string, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 1; attempt <= s.attempts; attempt++ {
		err = fn(ctx)
		if err == nil || !domainagg.Retryable(err) || attempt == s.attempts {
			return err
		}
		s.log.Debug("retrying write", "op", op, "uid", strings.TrimSpace(uid), "attempt", attempt, "error", err)
		select {
		case <-ctx.Done():
			return err
		case <-time.After(time.Duration(attempt) * s.backoff):
		}
	}
	return err
}

func (s *libraryItemService[V]) view(item versioning.Aggregate[V]) ItemView[V] {
	md := item.Metadata()
	return ItemView[V]{
		UID:               item.UID(),
		EntityType:        s.agg.EntityType(),
		Library:           item.Library().Name,
		LibraryEditable:   item.Library().IsEditable,
		Status:            md.Version.Status,
		Version:           md.Version.String(),
		Author:            md.Author,
		ChangeDescription: md.ChangeDescription,
		StartDate:         md.StartDate,
		EndDate:           md.EndDate,
		Value:             item.Payload(),
		PossibleActions:   item.PossibleActions(),
	}
}
