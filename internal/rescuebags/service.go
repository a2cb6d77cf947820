package rescuebags

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/foodrescue/rescue-backend/pkg/db/models"
	"github.com/foodrescue/rescue-backend/pkg/enums"
	pkgerrors "github.com/foodrescue/rescue-backend/pkg/errors"
	"github.com/foodrescue/rescue-backend/pkg/logger"
	"github.com/foodrescue/rescue-backend/pkg/outbox"
	"github.com/foodrescue/rescue-backend/pkg/outbox/payloads"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, events ...outbox.DomainEvent) error
}

// Service exposes the bag read path and the business-side bag controls.
type Service interface {
	Get(ctx context.Context, id uuid.UUID) (*View, error)
	ListForBusiness(ctx context.Context, businessID uuid.UUID) ([]View, error)
	Pause(ctx context.Context, input ActorInput) (*View, error)
	Resume(ctx context.Context, input ActorInput) (*View, error)
	ExpireEnded(ctx context.Context, limit int) (int, error)
}

// ActorInput identifies the bag and the business acting on it.
type ActorInput struct {
	BagID           uuid.UUID
	ActorUserID     uuid.UUID
	ActorBusinessID uuid.UUID
	ActorRole       enums.ActorRole
}

// ServiceParams groups the service dependencies.
type ServiceParams struct {
	Repo   Repository
	Tx     txRunner
	Outbox outboxPublisher
	Logger *logger.Logger
	Now    func() time.Time
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
	logg   *logger.Logger
	now    func() time.Time
}

// NewService builds the rescue bag service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("rescue bag repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:   params.Repo,
		tx:     params.Tx,
		outbox: params.Outbox,
		logg:   params.Logger,
		now:    now,
	}, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*View, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rescue bag id required")
	}
	bag, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapFindErr(err)
	}
	view := BuildView(*bag, s.now())
	return &view, nil
}

// ListForBusiness returns the bags of a business that can take reservations now.
func (s *service) ListForBusiness(ctx context.Context, businessID uuid.UUID) ([]View, error) {
	if businessID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "business id required")
	}
	bags, err := s.repo.ListByBusiness(ctx, businessID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list rescue bags")
	}
	now := s.now()
	views := make([]View, 0, len(bags))
	for _, bag := range bags {
		if !IsAvailable(bag, now) {
			continue
		}
		views = append(views, BuildView(bag, now))
	}
	return views, nil
}

func (s *service) Pause(ctx context.Context, input ActorInput) (*View, error) {
	return s.setPaused(ctx, input, true)
}

func (s *service) Resume(ctx context.Context, input ActorInput) (*View, error) {
	return s.setPaused(ctx, input, false)
}

func (s *service) setPaused(ctx context.Context, input ActorInput, pause bool) (*View, error) {
	if input.BagID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rescue bag id required")
	}
	if input.ActorUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.ActorBusinessID == uuid.Nil && input.ActorRole != enums.ActorRoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "business context missing")
	}

	now := s.now().UTC()
	var result *models.RescueBag
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		bag, err := repo.FindByID(ctx, input.BagID)
		if err != nil {
			return mapFindErr(err)
		}
		if input.ActorRole != enums.ActorRoleAdmin && bag.BusinessID != input.ActorBusinessID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "rescue bag belongs to another business")
		}

		var pausedAt *time.Time
		if pause {
			pausedAt = &now
		}
		changed, err := repo.SetPaused(ctx, bag.ID, pausedAt)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update rescue bag pause flag")
		}
		synced, err := SyncStatus(ctx, repo, bag.ID, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sync rescue bag status")
		}
		result = synced
		if !changed {
			return nil
		}

		eventType := enums.EventRescueBagResumed
		if pause {
			eventType = enums.EventRescueBagPaused
		}
		businessID := input.ActorBusinessID
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     eventType,
			AggregateType: enums.AggregateRescueBag,
			AggregateID:   bag.ID,
			Actor: &outbox.ActorRef{
				UserID:     input.ActorUserID,
				BusinessID: &businessID,
				Role:       string(input.ActorRole),
			},
			Data: payloads.RescueBagStatusEvent{
				RescueBagID: bag.ID,
				BusinessID:  bag.BusinessID,
				Status:      synced.Status,
				ChangedAt:   now,
			},
			OccurredAt: now,
		})
	})
	if err != nil {
		return nil, err
	}
	view := BuildView(*result, now)
	return &view, nil
}

// ExpireEnded moves bags whose pickup window closed to expired. Each bag is
// handled in its own transaction; failures are collected and the sweep
// continues.
func (s *service) ExpireEnded(ctx context.Context, limit int) (int, error) {
	now := s.now().UTC()
	bags, err := s.repo.ListWindowEnded(ctx, now, limit)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list ended rescue bags")
	}

	var (
		expired int
		errs    error
	)
	for _, candidate := range bags {
		bagID := candidate.ID
		var changed bool
		txErr := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			bag, err := SyncStatus(ctx, repo, bagID, now)
			if err != nil {
				return err
			}
			if bag.Status != enums.RescueBagStatusExpired {
				return nil
			}
			changed = true
			return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventRescueBagExpired,
				AggregateType: enums.AggregateRescueBag,
				AggregateID:   bag.ID,
				Actor:         &outbox.ActorRef{Role: string(enums.ActorRoleSystem)},
				Data: payloads.RescueBagStatusEvent{
					RescueBagID: bag.ID,
					BusinessID:  bag.BusinessID,
					Status:      bag.Status,
					ChangedAt:   now,
				},
				OccurredAt: now,
			})
		})
		if txErr != nil {
			errs = multierr.Append(errs, fmt.Errorf("expire rescue bag %s: %w", bagID, txErr))
			if s.logg != nil {
				s.logg.Error(s.logg.WithBagID(ctx, bagID.String()), "rescue bag expiry failed", txErr)
			}
			continue
		}
		if changed {
			expired++
		}
	}
	return expired, errs
}

func mapFindErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "rescue bag not found")
	}
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load rescue bag")
}
