package reservations

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/foodrescue/rescue-backend/internal/businesses"
	"github.com/foodrescue/rescue-backend/internal/impact"
	"github.com/foodrescue/rescue-backend/internal/inventory"
	"github.com/foodrescue/rescue-backend/internal/pickupwindow"
	"github.com/foodrescue/rescue-backend/internal/rescuebags"
	"github.com/foodrescue/rescue-backend/pkg/db/models"
	"github.com/foodrescue/rescue-backend/pkg/enums"
	pkgerrors "github.com/foodrescue/rescue-backend/pkg/errors"
	"github.com/foodrescue/rescue-backend/pkg/logger"
	"github.com/foodrescue/rescue-backend/pkg/metrics"
	"github.com/foodrescue/rescue-backend/pkg/outbox"
	"github.com/foodrescue/rescue-backend/pkg/outbox/payloads"
	"github.com/foodrescue/rescue-backend/pkg/pagination"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"
)

const (
	defaultUserCancelReason     = "Cancelled by user"
	defaultBusinessCancelReason = "Cancelled by business"
	defaultExpiryBatchSize      = 200
	maxSpecialInstructionsLen   = 500
	maxCancelReasonLen          = 200
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, events ...outbox.DomainEvent) error
}

// Service drives the reservation lifecycle.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*View, error)
	Cancel(ctx context.Context, input CancelInput) (*View, error)
	Confirm(ctx context.Context, input ActorInput) (*View, error)
	MarkReady(ctx context.Context, input ActorInput) (*View, error)
	ConfirmPickup(ctx context.Context, input ConfirmPickupInput) (*PickupConfirmation, error)
	ExpireOverdue(ctx context.Context) (int, error)
	Get(ctx context.Context, input ActorInput) (*View, error)
	List(ctx context.Context, input ListInput) (*ListResult, error)
	ActivePickups(ctx context.Context, userID uuid.UUID) ([]ActivePickup, error)
	PickupInstructions(ctx context.Context, input ActorInput) (*Instructions, error)
}

// CreateInput carries a user's reservation request.
type CreateInput struct {
	UserID              uuid.UUID
	RescueBagID         uuid.UUID
	Quantity            int
	PickupTime          time.Time
	PaymentMethod       enums.PaymentMethod
	PickupMethod        enums.PickupMethod
	SpecialInstructions *string
	Window              *pickupwindow.Override
}

// ActorInput identifies a reservation and who is acting on it.
type ActorInput struct {
	ReservationID   uuid.UUID
	ActorUserID     uuid.UUID
	ActorBusinessID uuid.UUID
	ActorRole       enums.ActorRole
}

// CancelInput adds an optional free-text reason.
type CancelInput struct {
	ActorInput
	Reason string
}

// ConfirmPickupInput optionally changes the pickup method on confirmation.
type ConfirmPickupInput struct {
	ActorInput
	PickupMethod *enums.PickupMethod
}

// ListInput pages through a user's reservations.
type ListInput struct {
	UserID uuid.UUID
	Status *enums.ReservationStatus
	Page   pagination.Params
}

// ServiceParams groups the collaborators of the reservation service.
type ServiceParams struct {
	Repo            Repository
	Bags            rescuebags.Repository
	Businesses      businesses.Repository
	Ledger          inventory.Ledger
	Policy          *pickupwindow.Policy
	Impact          impact.Accumulator
	Tx              txRunner
	Outbox          outboxPublisher
	Metrics         *metrics.ReservationMetrics
	Logger          *logger.Logger
	Now             func() time.Time
	ExpiryBatchSize int
}

type service struct {
	repo        Repository
	bags        rescuebags.Repository
	businesses  businesses.Repository
	ledger      inventory.Ledger
	policy      *pickupwindow.Policy
	impact      impact.Accumulator
	tx          txRunner
	outbox      outboxPublisher
	metrics     *metrics.ReservationMetrics
	logg        *logger.Logger
	now         func() time.Time
	expiryBatch int
}

// NewService validates and wires the reservation service.
func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Repo == nil:
		return nil, fmt.Errorf("reservations repository required")
	case params.Bags == nil:
		return nil, fmt.Errorf("rescue bag repository required")
	case params.Businesses == nil:
		return nil, fmt.Errorf("business repository required")
	case params.Ledger == nil:
		return nil, fmt.Errorf("inventory ledger required")
	case params.Policy == nil:
		return nil, fmt.Errorf("pickup window policy required")
	case params.Impact == nil:
		return nil, fmt.Errorf("impact accumulator required")
	case params.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox publisher required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	batch := params.ExpiryBatchSize
	if batch <= 0 {
		batch = defaultExpiryBatchSize
	}
	return &service{
		repo:        params.Repo,
		bags:        params.Bags,
		businesses:  params.Businesses,
		ledger:      params.Ledger,
		policy:      params.Policy,
		impact:      params.Impact,
		tx:          params.Tx,
		outbox:      params.Outbox,
		metrics:     params.Metrics,
		logg:        params.Logger,
		now:         now,
		expiryBatch: batch,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*View, error) {
	if err := validateCreate(&input); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	scheduled := input.PickupTime.UTC()

	var created models.Reservation
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		bag, err := s.bags.WithTx(tx).FindByID(ctx, input.RescueBagID)
		if err != nil {
			return notFoundOr(err, "rescue bag not found", "load rescue bag")
		}
		// Sold out bags fall through to the quantity check.
		if status := rescuebags.DeriveStatus(*bag, now); status == enums.RescueBagStatusPaused || status == enums.RescueBagStatusExpired {
			return pkgerrors.New(pkgerrors.CodeBagUnavailable, "rescue bag is not available").
				WithDetails(map[string]any{"status": status})
		}
		if remaining := rescuebags.Remaining(*bag); remaining < input.Quantity {
			return pkgerrors.New(pkgerrors.CodeInsufficientQuantity, "insufficient quantity available").
				WithDetails(map[string]any{"requested": input.Quantity, "available": remaining})
		}

		business, err := s.businesses.WithTx(tx).FindByID(ctx, bag.BusinessID)
		if err != nil {
			return notFoundOr(err, "business not found", "load business")
		}
		if err := s.policy.Validate(*business, scheduled, now); err != nil {
			return err
		}
		window, err := s.policy.Resolve(scheduled, input.Window)
		if err != nil {
			return err
		}

		if _, err := s.ledger.Reserve(ctx, tx, bag.ID, input.Quantity, now); err != nil {
			return err
		}

		qty := decimal.NewFromInt(int64(input.Quantity))
		created = models.Reservation{
			ID:                  uuid.New(),
			UserID:              input.UserID,
			RescueBagID:         bag.ID,
			BusinessID:          bag.BusinessID,
			Quantity:            input.Quantity,
			Status:              enums.ReservationStatusPending,
			PaymentAmount:       bag.Price.Mul(qty),
			PaymentCurrency:     enums.CurrencyUSD,
			PaymentMethod:       input.PaymentMethod,
			PaymentStatus:       enums.PaymentStatusPending,
			ScheduledTime:       scheduled,
			PickupWindowStart:   window.Start.UTC(),
			PickupWindowEnd:     window.End.UTC(),
			PickupMethod:        input.PickupMethod,
			SpecialInstructions: input.SpecialInstructions,
			CO2Saved:            bag.CO2Saved * float64(input.Quantity),
			WaterSaved:          bag.WaterSaved * float64(input.Quantity),
			MoneySaved:          rescuebags.MoneySavedPerUnit(*bag).Mul(qty),
			CreatedAt:           now,
			UpdatedAt:           now,
		}
		if err := s.repo.WithTx(tx).Create(ctx, &created); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create reservation")
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventReservationCreated,
			AggregateType: enums.AggregateReservation,
			AggregateID:   created.ID,
			Actor:         &outbox.ActorRef{UserID: input.UserID, Role: string(enums.ActorRoleUser)},
			Data: payloads.ReservationCreatedEvent{
				ReservationID:     created.ID,
				UserID:            created.UserID,
				BusinessID:        created.BusinessID,
				RescueBagID:       created.RescueBagID,
				Quantity:          created.Quantity,
				PaymentAmount:     created.PaymentAmount,
				PickupWindowStart: created.PickupWindowStart,
				PickupWindowEnd:   created.PickupWindowEnd,
			},
			OccurredAt: now,
		})
	})
	if err != nil {
		s.metrics.ObserveTransition(string(enums.ReservationStatusPending), outcomeLabel(err))
		return nil, err
	}
	s.metrics.ObserveTransition(string(enums.ReservationStatusPending), "ok")
	s.logInfo(ctx, created.ID, "reservation created")

	view := BuildView(created)
	return &view, nil
}

func (s *service) Cancel(ctx context.Context, input CancelInput) (*View, error) {
	if err := validateActor(input.ActorInput); err != nil {
		return nil, err
	}
	reason := strings.TrimSpace(input.Reason)
	if len(reason) > maxCancelReasonLen {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reason too long").
			WithDetails(map[string]any{"maxLength": maxCancelReasonLen})
	}
	now := s.now().UTC()

	var result *models.Reservation
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		reservation, err := s.load(ctx, tx, input.ReservationID)
		if err != nil {
			return err
		}
		cancelledBy, err := authorizeCancel(*reservation, input.ActorInput)
		if err != nil {
			return err
		}
		if reason == "" {
			reason = defaultUserCancelReason
			if cancelledBy == enums.CancelledByBusiness {
				reason = defaultBusinessCancelReason
			}
		}

		if err := s.transition(ctx, tx, reservation, enums.ReservationStatusCancelled, true, map[string]any{
			"cancellation_reason": reason,
			"cancelled_at":        now,
			"cancelled_by":        cancelledBy,
			"updated_at":          now,
		}); err != nil {
			return err
		}
		if _, err := s.ledger.Release(ctx, tx, reservation.RescueBagID, reservation.Quantity, now); err != nil {
			return err
		}

		reservation.Status = enums.ReservationStatusCancelled
		reservation.CancellationReason = &reason
		reservation.CancelledAt = &now
		reservation.CancelledBy = &cancelledBy
		reservation.UpdatedAt = now
		result = reservation

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventReservationCancelled,
			AggregateType: enums.AggregateReservation,
			AggregateID:   reservation.ID,
			Actor:         actorRef(input.ActorInput),
			Data: payloads.ReservationCancelledEvent{
				ReservationID: reservation.ID,
				UserID:        reservation.UserID,
				BusinessID:    reservation.BusinessID,
				RescueBagID:   reservation.RescueBagID,
				ReleasedQty:   reservation.Quantity,
				CancelledBy:   cancelledBy,
				Reason:        reason,
				CancelledAt:   now,
			},
			OccurredAt: now,
		})
	})
	if err != nil {
		return nil, err
	}
	s.logInfo(ctx, result.ID, "reservation cancelled")
	view := BuildView(*result)
	return &view, nil
}

func (s *service) Confirm(ctx context.Context, input ActorInput) (*View, error) {
	return s.businessStep(ctx, input, enums.ReservationStatusConfirmed, enums.EventReservationConfirmed)
}

func (s *service) MarkReady(ctx context.Context, input ActorInput) (*View, error) {
	return s.businessStep(ctx, input, enums.ReservationStatusReady, enums.EventReservationReady)
}

// businessStep runs the business-driven forward transitions.
func (s *service) businessStep(ctx context.Context, input ActorInput, to enums.ReservationStatus, eventType enums.OutboxEventType) (*View, error) {
	if err := validateActor(input); err != nil {
		return nil, err
	}
	now := s.now().UTC()

	var result *models.Reservation
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		reservation, err := s.load(ctx, tx, input.ReservationID)
		if err != nil {
			return err
		}
		if !ownsAsBusiness(*reservation, input) {
			return pkgerrors.New(pkgerrors.CodeForbidden, "reservation belongs to another business")
		}
		from := reservation.Status
		if err := s.transition(ctx, tx, reservation, to, true, map[string]any{"updated_at": now}); err != nil {
			return err
		}
		reservation.Status = to
		reservation.UpdatedAt = now
		result = reservation
		return s.emitStatusChange(ctx, tx, *reservation, from, eventType, actorRef(input), 0, now)
	})
	if err != nil {
		return nil, err
	}
	s.logInfo(ctx, result.ID, "reservation "+string(to))
	view := BuildView(*result)
	return &view, nil
}

func (s *service) ConfirmPickup(ctx context.Context, input ConfirmPickupInput) (*PickupConfirmation, error) {
	if err := validateActor(input.ActorInput); err != nil {
		return nil, err
	}
	if input.PickupMethod != nil && !input.PickupMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid pickup method")
	}
	now := s.now().UTC()

	var (
		result *models.Reservation
		credit *impact.CreditResult
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		reservation, err := s.load(ctx, tx, input.ReservationID)
		if err != nil {
			return err
		}
		if !ownsAsUser(*reservation, input.ActorInput) {
			return pkgerrors.New(pkgerrors.CodeForbidden, "reservation belongs to another user")
		}
		business, err := s.businesses.WithTx(tx).FindByID(ctx, reservation.BusinessID)
		if err != nil {
			return notFoundOr(err, "business not found", "load business")
		}
		if !CanTransition(reservation.Status, enums.ReservationStatusPickedUp, business.RequiresReadyStep) {
			s.metrics.ObserveTransition(string(enums.ReservationStatusPickedUp), "invalid_transition")
			return invalidTransition(reservation.Status, enums.ReservationStatusPickedUp)
		}
		if now.After(reservation.PickupWindowEnd) {
			s.metrics.ObserveTransition(string(enums.ReservationStatusPickedUp), "window_expired")
			return pkgerrors.New(pkgerrors.CodePickupWindowExpired, "pickup window has expired").
				WithDetails(map[string]any{"pickupWindowEnd": reservation.PickupWindowEnd})
		}

		fields := map[string]any{
			"pickup_confirmed_at": now,
			"updated_at":          now,
		}
		if input.PickupMethod != nil {
			fields["pickup_method"] = *input.PickupMethod
			reservation.PickupMethod = *input.PickupMethod
		}
		if err := s.transition(ctx, tx, reservation, enums.ReservationStatusPickedUp, business.RequiresReadyStep, fields); err != nil {
			return err
		}
		reservation.Status = enums.ReservationStatusPickedUp
		reservation.PickupConfirmedAt = &now
		reservation.UpdatedAt = now
		result = reservation

		credit, err = s.impact.Credit(ctx, tx, impact.CreditInput{
			ReservationID: reservation.ID,
			UserID:        reservation.UserID,
			MoneySaved:    reservation.MoneySaved,
			CO2Saved:      reservation.CO2Saved,
			WaterSaved:    reservation.WaterSaved,
			CreditedAt:    now,
		})
		if err != nil {
			return err
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventReservationPickedUp,
			AggregateType: enums.AggregateReservation,
			AggregateID:   reservation.ID,
			Actor:         actorRef(input.ActorInput),
			Data: payloads.ReservationPickedUpEvent{
				ReservationID: reservation.ID,
				UserID:        reservation.UserID,
				BusinessID:    reservation.BusinessID,
				RescueBagID:   reservation.RescueBagID,
				Quantity:      reservation.Quantity,
				PaymentAmount: reservation.PaymentAmount,
				MoneySaved:    reservation.MoneySaved,
				CO2Saved:      reservation.CO2Saved,
				WaterSaved:    reservation.WaterSaved,
				PickupMethod:  reservation.PickupMethod,
				PickedUpAt:    now,
			},
			OccurredAt: now,
		}); err != nil {
			return err
		}
		if !credit.Credited {
			return nil
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventImpactCredited,
			AggregateType: enums.AggregateUser,
			AggregateID:   reservation.UserID,
			Actor:         actorRef(input.ActorInput),
			Data: payloads.ImpactCreditedEvent{
				UserID:          reservation.UserID,
				ReservationID:   reservation.ID,
				TotalSaved:      credit.Totals.TotalSaved,
				TotalCO2eSaved:  credit.Totals.TotalCO2eSaved,
				TotalWaterSaved: credit.Totals.TotalWaterSaved,
				CreditedAt:      now,
			},
			OccurredAt: now,
		})
	})
	if err != nil {
		return nil, err
	}
	s.logInfo(ctx, result.ID, "pickup confirmed")
	return &PickupConfirmation{
		Reservation:  BuildView(*result),
		UpdatedStats: credit.Totals,
		Credited:     credit.Credited,
	}, nil
}

// ExpireOverdue expires every non-terminal reservation whose pickup window
// has ended and returns how many changed. It pages in batches until a batch
// comes back short. A reservation that fails is skipped for the rest of the
// run so it cannot starve the ones behind it; errors are combined.
func (s *service) ExpireOverdue(ctx context.Context) (int, error) {
	now := s.now().UTC()

	var (
		expired int
		errs    error
		skip    []uuid.UUID
	)
	for {
		if err := ctx.Err(); err != nil {
			return expired, multierr.Append(errs, err)
		}
		overdue, err := s.repo.ListOverdue(ctx, now, s.expiryBatch, skip)
		if err != nil {
			return expired, multierr.Append(errs, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list overdue reservations"))
		}

		for i := range overdue {
			candidate := overdue[i]
			changed, err := s.expireOne(ctx, candidate, now)
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("expire reservation %s: %w", candidate.ID, err))
				if s.logg != nil {
					s.logg.Error(s.logg.WithReservationID(ctx, candidate.ID.String()), "reservation expiry failed", err)
				}
				skip = append(skip, candidate.ID)
				continue
			}
			if changed {
				expired++
			} else {
				skip = append(skip, candidate.ID)
			}
		}
		if len(overdue) < s.expiryBatch {
			return expired, errs
		}
	}
}

func (s *service) expireOne(ctx context.Context, candidate models.Reservation, now time.Time) (bool, error) {
	changed := false
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ok, err := s.repo.WithTx(tx).Transition(ctx, candidate.ID,
			enums.NonTerminalReservationStatuses, enums.ReservationStatusExpired,
			map[string]any{"updated_at": now})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "expire reservation")
		}
		if !ok {
			return nil
		}
		if _, err := s.ledger.Release(ctx, tx, candidate.RescueBagID, candidate.Quantity, now); err != nil {
			return err
		}
		changed = true
		from := candidate.Status
		candidate.Status = enums.ReservationStatusExpired
		return s.emitStatusChange(ctx, tx, candidate, from, enums.EventReservationExpired,
			&outbox.ActorRef{Role: string(enums.ActorRoleSystem)}, candidate.Quantity, now)
	})
	if err != nil {
		return false, err
	}
	if changed {
		s.metrics.ObserveTransition(string(enums.ReservationStatusExpired), "ok")
	}
	return changed, nil
}

func (s *service) Get(ctx context.Context, input ActorInput) (*View, error) {
	if err := validateActor(input); err != nil {
		return nil, err
	}
	reservation, err := s.load(ctx, nil, input.ReservationID)
	if err != nil {
		return nil, err
	}
	if !ownsAsUser(*reservation, input) && !ownsAsBusiness(*reservation, input) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "access denied")
	}
	view := BuildView(*reservation)
	return &view, nil
}

func (s *service) List(ctx context.Context, input ListInput) (*ListResult, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.Status != nil && !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter")
	}
	cursor, err := pagination.ParseCursor(input.Page.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	rows, err := s.repo.ListByUser(ctx, ListQuery{
		UserID: input.UserID,
		Status: input.Status,
		Cursor: cursor,
		Limit:  input.Page.Limit,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list reservations")
	}
	page, next := pagination.Page(rows, input.Page.Limit, func(r models.Reservation) pagination.Cursor {
		return pagination.Cursor{CreatedAt: r.CreatedAt, ID: r.ID}
	})
	views := make([]View, 0, len(page))
	for _, r := range page {
		views = append(views, BuildView(r))
	}
	return &ListResult{Reservations: views, NextCursor: next}, nil
}

func (s *service) ActivePickups(ctx context.Context, userID uuid.UUID) ([]ActivePickup, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	rows, err := s.repo.ListActiveByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list active pickups")
	}
	now := s.now().UTC()
	out := make([]ActivePickup, 0, len(rows))
	for _, r := range rows {
		out = append(out, buildActivePickup(r, now))
	}
	return out, nil
}

func (s *service) PickupInstructions(ctx context.Context, input ActorInput) (*Instructions, error) {
	if err := validateActor(input); err != nil {
		return nil, err
	}
	reservation, err := s.load(ctx, nil, input.ReservationID)
	if err != nil {
		return nil, err
	}
	if !ownsAsUser(*reservation, input) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "access denied")
	}
	business, err := s.businesses.FindByID(ctx, reservation.BusinessID)
	if err != nil {
		return nil, notFoundOr(err, "business not found", "load business")
	}
	bag, err := s.bags.FindByID(ctx, reservation.RescueBagID)
	if err != nil {
		return nil, notFoundOr(err, "rescue bag not found", "load rescue bag")
	}
	return &Instructions{
		BusinessName:        business.Name,
		BagTitle:            bag.Title,
		ScheduledTime:       reservation.ScheduledTime,
		WindowStart:         reservation.PickupWindowStart,
		WindowEnd:           reservation.PickupWindowEnd,
		Method:              reservation.PickupMethod,
		SpecialInstructions: reservation.SpecialInstructions,
		Steps:               pickupSteps(reservation.PickupMethod),
	}, nil
}

func (s *service) load(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Reservation, error) {
	reservation, err := s.repo.WithTx(tx).FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "reservation not found", "load reservation")
	}
	return reservation, nil
}

// transition checks the table against the loaded status and then performs
// the guarded update, so a concurrent change between read and write still
// yields INVALID_TRANSITION.
func (s *service) transition(ctx context.Context, tx *gorm.DB, reservation *models.Reservation, to enums.ReservationStatus, requiresReadyStep bool, fields map[string]any) error {
	if !CanTransition(reservation.Status, to, requiresReadyStep) {
		s.metrics.ObserveTransition(string(to), "invalid_transition")
		return invalidTransition(reservation.Status, to)
	}
	ok, err := s.repo.WithTx(tx).Transition(ctx, reservation.ID, sourcesFor(to, requiresReadyStep), to, fields)
	if err != nil {
		s.metrics.ObserveTransition(string(to), "error")
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update reservation status")
	}
	if !ok {
		s.metrics.ObserveTransition(string(to), "invalid_transition")
		return invalidTransition(reservation.Status, to)
	}
	s.metrics.ObserveTransition(string(to), "ok")
	return nil
}

func (s *service) emitStatusChange(ctx context.Context, tx *gorm.DB, r models.Reservation, from enums.ReservationStatus, eventType enums.OutboxEventType, actor *outbox.ActorRef, released int, now time.Time) error {
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateReservation,
		AggregateID:   r.ID,
		Actor:         actor,
		Data: payloads.ReservationStatusChangedEvent{
			ReservationID: r.ID,
			UserID:        r.UserID,
			BusinessID:    r.BusinessID,
			RescueBagID:   r.RescueBagID,
			From:          from,
			To:            r.Status,
			ReleasedQty:   released,
			ChangedAt:     now,
		},
		OccurredAt: now,
	})
}

func (s *service) logInfo(ctx context.Context, id uuid.UUID, msg string) {
	if s.logg == nil {
		return
	}
	s.logg.Info(s.logg.WithReservationID(ctx, id.String()), msg)
}

func validateCreate(input *CreateInput) error {
	if input.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.RescueBagID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "rescue bag id required")
	}
	if input.Quantity <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive").
			WithDetails(map[string]any{"quantity": input.Quantity})
	}
	if input.PickupTime.IsZero() {
		return pkgerrors.New(pkgerrors.CodeValidation, "pickup time required")
	}
	if !input.PaymentMethod.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}
	if input.PickupMethod == "" {
		input.PickupMethod = enums.PickupMethodInStore
	}
	if !input.PickupMethod.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid pickup method")
	}
	if input.SpecialInstructions != nil && len(*input.SpecialInstructions) > maxSpecialInstructionsLen {
		return pkgerrors.New(pkgerrors.CodeValidation, "special instructions too long").
			WithDetails(map[string]any{"maxLength": maxSpecialInstructionsLen})
	}
	return nil
}

func validateActor(input ActorInput) error {
	if input.ReservationID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "reservation id required")
	}
	if input.ActorUserID == uuid.Nil && input.ActorRole != enums.ActorRoleSystem {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	return nil
}

func ownsAsUser(r models.Reservation, actor ActorInput) bool {
	return actor.ActorRole == enums.ActorRoleAdmin || r.UserID == actor.ActorUserID
}

func ownsAsBusiness(r models.Reservation, actor ActorInput) bool {
	if actor.ActorRole == enums.ActorRoleAdmin {
		return true
	}
	return actor.ActorRole == enums.ActorRoleBusiness &&
		actor.ActorBusinessID != uuid.Nil &&
		r.BusinessID == actor.ActorBusinessID
}

func authorizeCancel(r models.Reservation, actor ActorInput) (enums.CancelledBy, error) {
	switch actor.ActorRole {
	case enums.ActorRoleSystem, enums.ActorRoleAdmin:
		return enums.CancelledBySystem, nil
	case enums.ActorRoleBusiness:
		if ownsAsBusiness(r, actor) {
			return enums.CancelledByBusiness, nil
		}
	}
	if r.UserID == actor.ActorUserID {
		return enums.CancelledByUser, nil
	}
	return "", pkgerrors.New(pkgerrors.CodeForbidden, "access denied")
}

func actorRef(actor ActorInput) *outbox.ActorRef {
	ref := &outbox.ActorRef{UserID: actor.ActorUserID, Role: string(actor.ActorRole)}
	if actor.ActorBusinessID != uuid.Nil {
		businessID := actor.ActorBusinessID
		ref.BusinessID = &businessID
	}
	return ref
}

func invalidTransition(from, to enums.ReservationStatus) error {
	return pkgerrors.Newf(pkgerrors.CodeInvalidTransition, "reservation cannot move from %s to %s", from, to).
		WithDetails(map[string]any{"from": from, "to": to})
}

func notFoundOr(err error, notFound, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, notFound)
	}
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, op)
}

func outcomeLabel(err error) string {
	if typed := pkgerrors.As(err); typed != nil {
		return strings.ToLower(string(typed.Code()))
	}
	return "error"
}
