package reservations

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/foodrescue/rescue-backend/internal/businesses"
	"github.com/foodrescue/rescue-backend/internal/impact"
	"github.com/foodrescue/rescue-backend/internal/inventory"
	"github.com/foodrescue/rescue-backend/internal/pickupwindow"
	"github.com/foodrescue/rescue-backend/internal/rescuebags"
	"github.com/foodrescue/rescue-backend/pkg/db"
	"github.com/foodrescue/rescue-backend/pkg/db/dbtest"
	"github.com/foodrescue/rescue-backend/pkg/db/models"
	"github.com/foodrescue/rescue-backend/pkg/enums"
	pkgerrors "github.com/foodrescue/rescue-backend/pkg/errors"
	"github.com/foodrescue/rescue-backend/pkg/outbox"
	"github.com/foodrescue/rescue-backend/pkg/pagination"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var _ outboxPublisher = (*outbox.Service)(nil)

// Monday 2025-06-02 10:00 UTC; the seeded business is open 08:00-20:00.
var mondayMorning = time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)

type fixture struct {
	t        *testing.T
	conn     *gorm.DB
	svc      Service
	params   ServiceParams
	now      time.Time
	user     models.User
	business models.Business
	bag      models.RescueBag
}

func newFixture(t *testing.T, stock int, mutate func(*models.Business)) *fixture {
	t.Helper()
	return newFixtureOn(t, dbtest.Open(t), stock, mutate)
}

func newFixtureOn(t *testing.T, conn *gorm.DB, stock int, mutate func(*models.Business)) *fixture {
	t.Helper()
	f := &fixture{t: t, conn: conn, now: mondayMorning}

	bags := rescuebags.NewRepository(conn)
	ledger, err := inventory.NewLedger(bags, nil)
	require.NoError(t, err)
	accumulator, err := impact.NewService(impact.NewRepository(conn), nil)
	require.NoError(t, err)

	f.params = ServiceParams{
		Repo:       NewRepository(conn),
		Bags:       bags,
		Businesses: businesses.NewRepository(conn),
		Ledger:     ledger,
		Policy:     pickupwindow.NewPolicy(time.Hour),
		Impact:     accumulator,
		Tx:         db.NewFromConn(conn),
		Outbox:     outbox.NewService(outbox.NewRepository(conn), nil),
		Now:        func() time.Time { return f.now },
	}
	svc, err := NewService(f.params)
	require.NoError(t, err)
	f.svc = svc

	f.user = dbtest.SeedUser(t, conn)
	f.business = dbtest.SeedBusiness(t, conn, uuid.New(), mutate)
	f.bag = dbtest.SeedBag(t, conn, f.business.ID, stock, mondayMorning.Add(time.Hour), mondayMorning.Add(8*time.Hour), nil)
	return f
}

func (f *fixture) at(hour, minute int) time.Time {
	return time.Date(2025, 6, 2, hour, minute, 0, 0, time.UTC)
}

func (f *fixture) create(qty int, pickup time.Time) (*View, error) {
	return f.svc.Create(context.Background(), CreateInput{
		UserID:        f.user.ID,
		RescueBagID:   f.bag.ID,
		Quantity:      qty,
		PickupTime:    pickup,
		PaymentMethod: enums.PaymentMethodCreditCard,
	})
}

func (f *fixture) mustCreate(qty int, pickup time.Time) uuid.UUID {
	f.t.Helper()
	view, err := f.create(qty, pickup)
	require.NoError(f.t, err)
	return uuid.MustParse(view.ID)
}

func (f *fixture) userActor(id uuid.UUID) ActorInput {
	return ActorInput{ReservationID: id, ActorUserID: f.user.ID, ActorRole: enums.ActorRoleUser}
}

func (f *fixture) businessActor(id uuid.UUID) ActorInput {
	return ActorInput{
		ReservationID:   id,
		ActorUserID:     f.business.OwnerUserID,
		ActorBusinessID: f.business.ID,
		ActorRole:       enums.ActorRoleBusiness,
	}
}

func (f *fixture) makeReady(id uuid.UUID) {
	f.t.Helper()
	_, err := f.svc.Confirm(context.Background(), f.businessActor(id))
	require.NoError(f.t, err)
	_, err = f.svc.MarkReady(context.Background(), f.businessActor(id))
	require.NoError(f.t, err)
}

func (f *fixture) reservation(id uuid.UUID) models.Reservation {
	f.t.Helper()
	var r models.Reservation
	require.NoError(f.t, f.conn.First(&r, "id = ?", id).Error)
	return r
}

func (f *fixture) reloadUser() models.User {
	f.t.Helper()
	var u models.User
	require.NoError(f.t, f.conn.First(&u, "id = ?", f.user.ID).Error)
	return u
}

func (f *fixture) events(eventType enums.OutboxEventType) int64 {
	f.t.Helper()
	var n int64
	require.NoError(f.t, f.conn.Model(&models.OutboxEvent{}).Where("event_type = ?", eventType).Count(&n).Error)
	return n
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{})
	require.Error(t, err)
}

func TestCreateSnapshotsPaymentAndImpact(t *testing.T) {
	f := newFixture(t, 5, nil)

	view, err := f.create(2, f.at(13, 0))
	require.NoError(t, err)

	assert.Equal(t, enums.ReservationStatusPending, view.Status)
	assert.True(t, view.Payment.Amount.Equal(decimal.RequireFromString("11.98")), "amount %s", view.Payment.Amount)
	assert.InDelta(t, 4.0, view.Impact.CO2Saved, 1e-9)
	assert.InDelta(t, 100.0, view.Impact.WaterSaved, 1e-9)
	assert.True(t, view.Impact.MoneySaved.Equal(decimal.RequireFromString("18.02")))
	assert.Equal(t, enums.PickupMethodInStore, view.Pickup.Method)
	assert.True(t, view.Pickup.WindowStart.Equal(f.at(12, 0)))
	assert.True(t, view.Pickup.WindowEnd.Equal(f.at(14, 0)))
	assert.EqualValues(t, 1, f.events(enums.EventReservationCreated))
	assert.Equal(t, 2, dbtest.ReloadBag(t, f.conn, f.bag.ID).ReservedQty)

	// Later bag edits never touch the snapshot.
	require.NoError(t, f.conn.Model(&models.RescueBag{}).Where("id = ?", f.bag.ID).
		Updates(map[string]any{"price": "7.49", "co2_saved": 3.5}).Error)

	stored := f.reservation(uuid.MustParse(view.ID))
	assert.True(t, stored.PaymentAmount.Equal(decimal.RequireFromString("11.98")))
	assert.InDelta(t, 4.0, stored.CO2Saved, 1e-9)
}

func TestCreateAppliesExplicitWindowAfterDefaults(t *testing.T) {
	f := newFixture(t, 5, nil)
	end := f.at(13, 15)

	view, err := f.svc.Create(context.Background(), CreateInput{
		UserID:        f.user.ID,
		RescueBagID:   f.bag.ID,
		Quantity:      1,
		PickupTime:    f.at(13, 0),
		PaymentMethod: enums.PaymentMethodDigitalWallet,
		PickupMethod:  enums.PickupMethodCurbside,
		Window:        &pickupwindow.Override{End: &end},
	})
	require.NoError(t, err)
	assert.True(t, view.Pickup.WindowStart.Equal(f.at(12, 0)))
	assert.True(t, view.Pickup.WindowEnd.Equal(end))
	assert.Equal(t, enums.PickupMethodCurbside, view.Pickup.Method)
}

func TestCreateAdvanceNoticeScenario(t *testing.T) {
	f := newFixture(t, 5, nil)

	_, err := f.create(1, f.at(11, 0))
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeAdvanceNoticeViolation), "got %v", err)

	var count int64
	require.NoError(t, f.conn.Model(&models.Reservation{}).Count(&count).Error)
	assert.Zero(t, count)
	assert.Equal(t, 0, dbtest.ReloadBag(t, f.conn, f.bag.ID).ReservedQty)

	_, err = f.create(1, f.at(12, 30))
	require.NoError(t, err)
}

func TestCreateRejections(t *testing.T) {
	tests := []struct {
		name   string
		qty    int
		pickup func(f *fixture) time.Time
		setup  func(f *fixture)
		code   pkgerrors.Code
	}{
		{
			name:   "past pickup time",
			qty:    1,
			pickup: func(f *fixture) time.Time { return f.at(9, 0) },
			code:   pkgerrors.CodePastPickupTime,
		},
		{
			name:   "business closed",
			qty:    1,
			pickup: func(f *fixture) time.Time { return f.at(21, 0) },
			code:   pkgerrors.CodeBusinessClosed,
		},
		{
			name:   "insufficient quantity",
			qty:    6,
			pickup: func(f *fixture) time.Time { return f.at(13, 0) },
			code:   pkgerrors.CodeInsufficientQuantity,
		},
		{
			name:   "zero quantity",
			qty:    0,
			pickup: func(f *fixture) time.Time { return f.at(13, 0) },
			code:   pkgerrors.CodeValidation,
		},
		{
			name:   "paused bag",
			qty:    1,
			pickup: func(f *fixture) time.Time { return f.at(13, 0) },
			setup: func(f *fixture) {
				paused := mondayMorning
				require.NoError(f.t, f.conn.Model(&models.RescueBag{}).Where("id = ?", f.bag.ID).
					Updates(map[string]any{"paused_at": paused, "status": enums.RescueBagStatusPaused}).Error)
			},
			code: pkgerrors.CodeBagUnavailable,
		},
		{
			name:   "bag window passed",
			qty:    1,
			pickup: func(f *fixture) time.Time { return f.at(19, 0) },
			setup:  func(f *fixture) { f.now = f.at(18, 30) },
			code:   pkgerrors.CodeBagUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, 5, nil)
			if tt.setup != nil {
				tt.setup(f)
			}
			_, err := f.create(tt.qty, tt.pickup(f))
			assert.True(t, pkgerrors.HasCode(err, tt.code), "expected %s, got %v", tt.code, err)
			assert.Equal(t, 0, dbtest.ReloadBag(t, f.conn, f.bag.ID).ReservedQty)
		})
	}
}

func TestCreateUnknownBag(t *testing.T) {
	f := newFixture(t, 1, nil)
	_, err := f.svc.Create(context.Background(), CreateInput{
		UserID:        f.user.ID,
		RescueBagID:   uuid.New(),
		Quantity:      1,
		PickupTime:    f.at(13, 0),
		PaymentMethod: enums.PaymentMethodStripe,
	})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}

func TestConcurrentCreatesForLastUnits(t *testing.T) {
	const stock = 2
	const attempts = 8
	f := newFixtureOn(t, dbtest.OpenConcurrent(t), stock, nil)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	start := make(chan struct{})
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := f.create(1, f.at(13, 0))
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		}()
	}
	close(start)
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInsufficientQuantity), "got %v", err)
	}
	assert.Equal(t, stock, succeeded)

	bag := dbtest.ReloadBag(t, f.conn, f.bag.ID)
	assert.Equal(t, stock, bag.ReservedQty)
	assert.LessOrEqual(t, bag.ReservedQty, bag.AvailableQty)
	assert.Equal(t, enums.RescueBagStatusSoldOut, bag.Status)

	var live int64
	require.NoError(t, f.conn.Model(&models.Reservation{}).Where("rescue_bag_id = ?", f.bag.ID).Count(&live).Error)
	assert.EqualValues(t, stock, live)
	assert.EqualValues(t, stock, f.events(enums.EventReservationCreated))
}

func TestCancelReleasesOnce(t *testing.T) {
	f := newFixture(t, 5, nil)
	first := f.mustCreate(1, f.at(13, 0))
	f.mustCreate(2, f.at(13, 0))
	require.Equal(t, 3, dbtest.ReloadBag(t, f.conn, f.bag.ID).ReservedQty)

	view, err := f.svc.Cancel(context.Background(), CancelInput{ActorInput: f.userActor(first)})
	require.NoError(t, err)
	assert.Equal(t, enums.ReservationStatusCancelled, view.Status)
	require.NotNil(t, view.Cancellation)
	assert.Equal(t, "Cancelled by user", view.Cancellation.Reason)
	assert.Equal(t, enums.CancelledByUser, *view.Cancellation.CancelledBy)

	_, err = f.svc.Cancel(context.Background(), CancelInput{ActorInput: f.userActor(first), Reason: "again"})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInvalidTransition), "got %v", err)

	assert.Equal(t, 2, dbtest.ReloadBag(t, f.conn, f.bag.ID).ReservedQty)
	assert.EqualValues(t, 1, f.events(enums.EventReservationCancelled))
}

func TestCancelSoldOutRestoresActive(t *testing.T) {
	f := newFixture(t, 2, nil)
	id := f.mustCreate(2, f.at(13, 0))
	require.Equal(t, enums.RescueBagStatusSoldOut, dbtest.ReloadBag(t, f.conn, f.bag.ID).Status)

	_, err := f.svc.Cancel(context.Background(), CancelInput{ActorInput: f.userActor(id), Reason: "plans changed"})
	require.NoError(t, err)

	bag := dbtest.ReloadBag(t, f.conn, f.bag.ID)
	assert.Equal(t, 0, bag.ReservedQty)
	assert.Equal(t, enums.RescueBagStatusActive, bag.Status)
	assert.Equal(t, "plans changed", *f.reservation(id).CancellationReason)
}

func TestCancelByBusinessAndForbidden(t *testing.T) {
	f := newFixture(t, 5, nil)
	id := f.mustCreate(1, f.at(13, 0))

	stranger := ActorInput{ReservationID: id, ActorUserID: uuid.New(), ActorRole: enums.ActorRoleUser}
	_, err := f.svc.Cancel(context.Background(), CancelInput{ActorInput: stranger})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeForbidden))

	view, err := f.svc.Cancel(context.Background(), CancelInput{ActorInput: f.businessActor(id)})
	require.NoError(t, err)
	assert.Equal(t, enums.CancelledByBusiness, *view.Cancellation.CancelledBy)
	assert.Equal(t, "Cancelled by business", view.Cancellation.Reason)
}

func TestBusinessStepsFollowTransitionTable(t *testing.T) {
	f := newFixture(t, 5, nil)
	id := f.mustCreate(1, f.at(13, 0))

	_, err := f.svc.MarkReady(context.Background(), f.businessActor(id))
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInvalidTransition), "pending cannot become ready")

	other := f.businessActor(id)
	other.ActorBusinessID = uuid.New()
	_, err = f.svc.Confirm(context.Background(), other)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeForbidden))

	view, err := f.svc.Confirm(context.Background(), f.businessActor(id))
	require.NoError(t, err)
	assert.Equal(t, enums.ReservationStatusConfirmed, view.Status)

	_, err = f.svc.Confirm(context.Background(), f.businessActor(id))
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInvalidTransition))

	view, err = f.svc.MarkReady(context.Background(), f.businessActor(id))
	require.NoError(t, err)
	assert.Equal(t, enums.ReservationStatusReady, view.Status)
	assert.EqualValues(t, 1, f.events(enums.EventReservationConfirmed))
	assert.EqualValues(t, 1, f.events(enums.EventReservationReady))
}

func TestConfirmPickupCreditsOnce(t *testing.T) {
	f := newFixture(t, 5, nil)
	id := f.mustCreate(2, f.at(13, 0))
	f.makeReady(id)
	f.now = f.at(13, 30)

	method := enums.PickupMethodCurbside
	result, err := f.svc.ConfirmPickup(context.Background(), ConfirmPickupInput{ActorInput: f.userActor(id), PickupMethod: &method})
	require.NoError(t, err)
	assert.True(t, result.Credited)
	assert.Equal(t, enums.ReservationStatusPickedUp, result.Reservation.Status)
	assert.Equal(t, enums.PickupMethodCurbside, result.Reservation.Pickup.Method)
	require.NotNil(t, result.Reservation.Pickup.ConfirmedAt)
	assert.InDelta(t, 4.0, result.UpdatedStats.TotalCO2eSaved, 1e-9)

	_, err = f.svc.ConfirmPickup(context.Background(), ConfirmPickupInput{ActorInput: f.userActor(id)})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInvalidTransition), "got %v", err)

	user := f.reloadUser()
	assert.InDelta(t, 4.0, user.TotalCO2eSaved, 1e-9)
	assert.InDelta(t, 100.0, user.TotalWaterSaved, 1e-9)
	assert.True(t, user.TotalSaved.Equal(decimal.RequireFromString("18.02")))
	assert.EqualValues(t, 1, f.events(enums.EventReservationPickedUp))
	assert.EqualValues(t, 1, f.events(enums.EventImpactCredited))

	stored := f.reservation(id)
	assert.Equal(t, enums.PickupMethodCurbside, stored.PickupMethod)
	assert.InDelta(t, 4.0, stored.CO2Saved, 1e-9)
}

func TestConfirmPickupAfterWindowEnd(t *testing.T) {
	f := newFixture(t, 5, nil)
	id := f.mustCreate(1, f.at(13, 0))
	f.makeReady(id)
	f.now = f.at(14, 30)

	_, err := f.svc.ConfirmPickup(context.Background(), ConfirmPickupInput{ActorInput: f.userActor(id)})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodePickupWindowExpired), "got %v", err)

	assert.Equal(t, enums.ReservationStatusReady, f.reservation(id).Status)
	assert.Zero(t, f.reloadUser().TotalCO2eSaved)
}

func TestConfirmPickupRequiresReadyStep(t *testing.T) {
	f := newFixture(t, 5, nil)
	id := f.mustCreate(1, f.at(13, 0))
	_, err := f.svc.Confirm(context.Background(), f.businessActor(id))
	require.NoError(t, err)
	f.now = f.at(12, 30)

	_, err = f.svc.ConfirmPickup(context.Background(), ConfirmPickupInput{ActorInput: f.userActor(id)})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInvalidTransition))
}

func TestConfirmPickupWithoutReadyStep(t *testing.T) {
	f := newFixture(t, 5, func(b *models.Business) { b.RequiresReadyStep = false })
	id := f.mustCreate(1, f.at(13, 0))
	_, err := f.svc.Confirm(context.Background(), f.businessActor(id))
	require.NoError(t, err)
	f.now = f.at(12, 30)

	result, err := f.svc.ConfirmPickup(context.Background(), ConfirmPickupInput{ActorInput: f.userActor(id)})
	require.NoError(t, err)
	assert.Equal(t, enums.ReservationStatusPickedUp, result.Reservation.Status)
}

func TestConfirmPickupForbiddenForOtherUser(t *testing.T) {
	f := newFixture(t, 5, nil)
	id := f.mustCreate(1, f.at(13, 0))
	f.makeReady(id)

	stranger := ActorInput{ReservationID: id, ActorUserID: uuid.New(), ActorRole: enums.ActorRoleUser}
	_, err := f.svc.ConfirmPickup(context.Background(), ConfirmPickupInput{ActorInput: stranger})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeForbidden))
}

func TestCancelAndConfirmPickupRace(t *testing.T) {
	f := newFixture(t, 5, nil)
	id := f.mustCreate(1, f.at(13, 0))
	f.makeReady(id)
	f.now = f.at(12, 30)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, errs[0] = f.svc.Cancel(context.Background(), CancelInput{ActorInput: f.userActor(id)})
	}()
	go func() {
		defer wg.Done()
		_, errs[1] = f.svc.ConfirmPickup(context.Background(), ConfirmPickupInput{ActorInput: f.userActor(id)})
	}()
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
			continue
		}
		assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInvalidTransition), "got %v", err)
	}
	assert.Equal(t, 1, winners)
}

func TestExpireOverdueMixedBatch(t *testing.T) {
	f := newFixture(t, 5, nil)
	pendingLate := f.mustCreate(1, f.at(12, 30))
	readyLate := f.mustCreate(1, f.at(12, 30))
	pendingOnTime := f.mustCreate(1, f.at(16, 0))
	pickedUp := f.mustCreate(1, f.at(12, 30))
	f.makeReady(readyLate)
	f.makeReady(pickedUp)

	f.now = f.at(12, 0)
	_, err := f.svc.ConfirmPickup(context.Background(), ConfirmPickupInput{ActorInput: f.userActor(pickedUp)})
	require.NoError(t, err)
	require.Equal(t, 4, dbtest.ReloadBag(t, f.conn, f.bag.ID).ReservedQty)

	f.now = f.at(14, 0)
	expired, err := f.svc.ExpireOverdue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, expired)

	assert.Equal(t, enums.ReservationStatusExpired, f.reservation(pendingLate).Status)
	assert.Equal(t, enums.ReservationStatusExpired, f.reservation(readyLate).Status)
	assert.Equal(t, enums.ReservationStatusPending, f.reservation(pendingOnTime).Status)
	assert.Equal(t, enums.ReservationStatusPickedUp, f.reservation(pickedUp).Status)
	assert.Equal(t, 2, dbtest.ReloadBag(t, f.conn, f.bag.ID).ReservedQty)
	assert.EqualValues(t, 2, f.events(enums.EventReservationExpired))

	again, err := f.svc.ExpireOverdue(context.Background())
	require.NoError(t, err)
	assert.Zero(t, again)
	assert.Equal(t, 2, dbtest.ReloadBag(t, f.conn, f.bag.ID).ReservedQty)
}

func TestExpireOverduePagesPastFailures(t *testing.T) {
	f := newFixture(t, 5, nil)

	// The oldest overdue reservation points at a bag that no longer exists,
	// so its release fails on every run.
	orphanBag := dbtest.SeedBag(t, f.conn, f.business.ID, 1, mondayMorning.Add(time.Hour), mondayMorning.Add(8*time.Hour), nil)
	orphan, err := f.svc.Create(context.Background(), CreateInput{
		UserID:        f.user.ID,
		RescueBagID:   orphanBag.ID,
		Quantity:      1,
		PickupTime:    f.at(12, 10),
		PaymentMethod: enums.PaymentMethodStripe,
	})
	require.NoError(t, err)
	require.NoError(t, f.conn.Exec("DELETE FROM rescue_bags WHERE id = ?", orphanBag.ID).Error)

	late := []uuid.UUID{
		f.mustCreate(1, f.at(12, 30)),
		f.mustCreate(1, f.at(12, 40)),
		f.mustCreate(1, f.at(12, 50)),
	}

	params := f.params
	params.ExpiryBatchSize = 1
	svc, err := NewService(params)
	require.NoError(t, err)

	f.now = f.at(14, 0)
	expired, err := svc.ExpireOverdue(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), orphan.ID)
	assert.Equal(t, len(late), expired)

	for _, id := range late {
		assert.Equal(t, enums.ReservationStatusExpired, f.reservation(id).Status)
	}
	assert.Equal(t, enums.ReservationStatusPending, f.reservation(uuid.MustParse(orphan.ID)).Status)
	assert.Equal(t, 0, dbtest.ReloadBag(t, f.conn, f.bag.ID).ReservedQty)
	assert.EqualValues(t, len(late), f.events(enums.EventReservationExpired))
}

func TestGetEnforcesOwnership(t *testing.T) {
	f := newFixture(t, 5, nil)
	id := f.mustCreate(1, f.at(13, 0))

	view, err := f.svc.Get(context.Background(), f.userActor(id))
	require.NoError(t, err)
	assert.Equal(t, id.String(), view.ID)

	_, err = f.svc.Get(context.Background(), f.businessActor(id))
	require.NoError(t, err)

	_, err = f.svc.Get(context.Background(), ActorInput{ReservationID: id, ActorUserID: uuid.New(), ActorRole: enums.ActorRoleUser})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeForbidden))

	_, err = f.svc.Get(context.Background(), f.userActor(uuid.New()))
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}

func TestListPaginatesNewestFirst(t *testing.T) {
	f := newFixture(t, 10, nil)
	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		ids = append(ids, f.mustCreate(1, f.at(13, 0)))
		f.now = f.now.Add(time.Minute)
	}
	_, err := f.svc.Cancel(context.Background(), CancelInput{ActorInput: f.userActor(ids[0])})
	require.NoError(t, err)

	page, err := f.svc.List(context.Background(), ListInput{UserID: f.user.ID, Page: pagination.Params{Limit: 2}})
	require.NoError(t, err)
	require.Len(t, page.Reservations, 2)
	assert.Equal(t, ids[2].String(), page.Reservations[0].ID)
	assert.Equal(t, ids[1].String(), page.Reservations[1].ID)
	require.NotEmpty(t, page.NextCursor)

	next, err := f.svc.List(context.Background(), ListInput{UserID: f.user.ID, Page: pagination.Params{Limit: 2, Cursor: page.NextCursor}})
	require.NoError(t, err)
	require.Len(t, next.Reservations, 1)
	assert.Equal(t, ids[0].String(), next.Reservations[0].ID)
	assert.Empty(t, next.NextCursor)

	cancelled := enums.ReservationStatusCancelled
	filtered, err := f.svc.List(context.Background(), ListInput{UserID: f.user.ID, Status: &cancelled})
	require.NoError(t, err)
	require.Len(t, filtered.Reservations, 1)
	assert.Equal(t, ids[0].String(), filtered.Reservations[0].ID)

	_, err = f.svc.List(context.Background(), ListInput{UserID: f.user.ID, Page: pagination.Params{Cursor: "%%%"}})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestActivePickupsAndInstructions(t *testing.T) {
	f := newFixture(t, 5, nil)
	readyID := f.mustCreate(1, f.at(13, 0))
	f.mustCreate(1, f.at(15, 0))
	f.makeReady(readyID)

	pickups, err := f.svc.ActivePickups(context.Background(), f.user.ID)
	require.NoError(t, err)
	require.Len(t, pickups, 1)
	assert.Equal(t, readyID.String(), pickups[0].ID)
	assert.Equal(t, enums.PickupStatusUpcoming, pickups[0].PickupStatus)
	assert.False(t, pickups[0].IsOverdue)

	instructions, err := f.svc.PickupInstructions(context.Background(), f.userActor(readyID))
	require.NoError(t, err)
	assert.Equal(t, f.business.Name, instructions.BusinessName)
	assert.Equal(t, f.bag.Title, instructions.BagTitle)
	assert.NotEmpty(t, instructions.Steps)
}
