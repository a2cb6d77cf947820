package favorites

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/foodrescue/rescue-backend/internal/businesses"
	"github.com/foodrescue/rescue-backend/internal/rescuebags"
	"github.com/foodrescue/rescue-backend/pkg/db/dbtest"
	"github.com/foodrescue/rescue-backend/pkg/db/models"
	pkgerrors "github.com/foodrescue/rescue-backend/pkg/errors"
)

var now = time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)

// Alexanderplatz, Berlin.
const userLat, userLng = 52.5219, 13.4132

type fixture struct {
	conn *gorm.DB
	svc  Service
	user models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := dbtest.Open(t)
	svc, err := NewService(ServiceParams{
		Repo:       NewRepository(conn),
		Businesses: businesses.NewRepository(conn),
		Bags:       rescuebags.NewRepository(conn),
		Now:        func() time.Time { return now },
	})
	require.NoError(t, err)
	return &fixture{conn: conn, svc: svc, user: dbtest.SeedUser(t, conn)}
}

func (f *fixture) business(t *testing.T, name string, lat, lng *float64) models.Business {
	t.Helper()
	return dbtest.SeedBusiness(t, f.conn, uuid.New(), func(b *models.Business) {
		b.Name = name
		b.Latitude = lat
		b.Longitude = lng
	})
}

func (f *fixture) bag(t *testing.T, businessID uuid.UUID, mutate func(*models.RescueBag)) models.RescueBag {
	t.Helper()
	return dbtest.SeedBag(t, f.conn, businessID, 3, now.Add(time.Hour), now.Add(6*time.Hour), func(b *models.RescueBag) {
		b.CreatedAt = now.Add(-time.Hour)
		if mutate != nil {
			mutate(b)
		}
	})
}

func (f *fixture) follow(t *testing.T, businessID uuid.UUID) {
	t.Helper()
	_, err := f.svc.Add(context.Background(), f.user.ID, businessID)
	require.NoError(t, err)
}

func ptr(v float64) *float64 { return &v }

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{})
	require.Error(t, err)
}

func TestAddListRemove(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bakery := f.business(t, "Corner Bakery", ptr(52.53), ptr(13.41))
	closed := dbtest.SeedBusiness(t, f.conn, uuid.New(), func(b *models.Business) { b.IsActive = false })

	view, err := f.svc.Add(ctx, f.user.ID, bakery.ID)
	require.NoError(t, err)
	assert.Equal(t, "Corner Bakery", view.Name)

	_, err = f.svc.Add(ctx, f.user.ID, bakery.ID)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeConflict), "got %v", err)

	_, err = f.svc.Add(ctx, f.user.ID, closed.ID)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation), "got %v", err)

	_, err = f.svc.Add(ctx, f.user.ID, uuid.New())
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound), "got %v", err)

	list, err := f.svc.List(ctx, f.user.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, bakery.ID.String(), list[0].ID)

	removed, err := f.svc.Remove(ctx, f.user.ID, bakery.ID)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = f.svc.Remove(ctx, f.user.ID, bakery.ID)
	require.NoError(t, err)
	assert.False(t, removed)

	list, err = f.svc.List(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestListHidesDeactivatedBusinesses(t *testing.T) {
	f := newFixture(t)
	bakery := f.business(t, "Corner Bakery", nil, nil)
	f.follow(t, bakery.ID)

	require.NoError(t, f.conn.Model(&models.Business{}).Where("id = ?", bakery.ID).Update("is_active", false).Error)

	list, err := f.svc.List(context.Background(), f.user.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestAlertsNearestAvailableBagsFirst(t *testing.T) {
	f := newFixture(t)

	near := f.business(t, "Near", ptr(52.5300), ptr(13.4100))
	further := f.business(t, "Further", ptr(52.5500), ptr(13.4132))
	munich := f.business(t, "Munich", ptr(48.1351), ptr(11.5820))
	unplaced := f.business(t, "Unplaced", nil, nil)
	stranger := f.business(t, "Not followed", ptr(52.5220), ptr(13.4130))
	for _, b := range []models.Business{near, further, munich, unplaced} {
		f.follow(t, b.ID)
	}

	fresh := f.bag(t, near.ID, nil)
	old := f.bag(t, further.ID, func(b *models.RescueBag) { b.CreatedAt = now.Add(-48 * time.Hour) })
	f.bag(t, near.ID, func(b *models.RescueBag) { b.ReservedQty = b.AvailableQty })
	f.bag(t, near.ID, func(b *models.RescueBag) {
		paused := now.Add(-time.Minute)
		b.PausedAt = &paused
	})
	f.bag(t, near.ID, func(b *models.RescueBag) {
		b.PickupStart = now.Add(-3 * time.Hour)
		b.PickupEnd = now.Add(-time.Hour)
	})
	f.bag(t, munich.ID, nil)
	f.bag(t, unplaced.ID, nil)
	f.bag(t, stranger.ID, nil)

	alerts, err := f.svc.Alerts(context.Background(), AlertsInput{UserID: f.user.ID, Latitude: userLat, Longitude: userLng})
	require.NoError(t, err)
	require.Len(t, alerts, 2)

	assert.Equal(t, fresh.ID.String(), alerts[0].ID)
	assert.Equal(t, "Near", alerts[0].BusinessName)
	assert.True(t, alerts[0].IsNew)
	assert.Equal(t, 60, alerts[0].DiscountPercentage)

	assert.Equal(t, old.ID.String(), alerts[1].ID)
	assert.False(t, alerts[1].IsNew)
	assert.Less(t, alerts[0].DistanceKm, alerts[1].DistanceKm)

	alerts, err = f.svc.Alerts(context.Background(), AlertsInput{UserID: f.user.ID, Latitude: userLat, Longitude: userLng, RadiusKm: 2})
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, fresh.ID.String(), alerts[0].ID)
}

func TestAlertsWithoutFavoritesIsEmpty(t *testing.T) {
	f := newFixture(t)
	alerts, err := f.svc.Alerts(context.Background(), AlertsInput{UserID: f.user.ID, Latitude: userLat, Longitude: userLng})
	require.NoError(t, err)
	assert.NotNil(t, alerts)
	assert.Empty(t, alerts)
}

func TestAlertsValidatesLocation(t *testing.T) {
	f := newFixture(t)
	for _, input := range []AlertsInput{
		{UserID: f.user.ID, Latitude: 91, Longitude: 0},
		{UserID: f.user.ID, Latitude: 0, Longitude: -181},
		{UserID: f.user.ID, Latitude: 0, Longitude: 0, RadiusKm: 0.05},
		{UserID: f.user.ID, Latitude: 0, Longitude: 0, RadiusKm: 51},
	} {
		_, err := f.svc.Alerts(context.Background(), input)
		assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation), "input %+v got %v", input, err)
	}

	_, err := f.svc.Alerts(context.Background(), AlertsInput{Latitude: userLat, Longitude: userLng})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeUnauthorized))
}

func TestUpdateNotifications(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bakery := f.business(t, "Corner Bakery", nil, nil)

	require.NoError(t, f.svc.UpdateNotifications(ctx, NotificationsInput{UserID: f.user.ID, Enabled: false}))
	var user models.User
	require.NoError(t, f.conn.First(&user, "id = ?", f.user.ID).Error)
	assert.False(t, user.FavoritesNotificationsEnabled)

	err := f.svc.UpdateNotifications(ctx, NotificationsInput{UserID: f.user.ID, Enabled: true, BusinessID: &bakery.ID})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound), "got %v", err)

	f.follow(t, bakery.ID)
	require.NoError(t, f.svc.UpdateNotifications(ctx, NotificationsInput{UserID: f.user.ID, Enabled: true, BusinessID: &bakery.ID}))
	var fav models.Favorite
	require.NoError(t, f.conn.First(&fav, "user_id = ? AND business_id = ?", f.user.ID, bakery.ID).Error)
	assert.True(t, fav.NotificationsEnabled)

	err = f.svc.UpdateNotifications(ctx, NotificationsInput{UserID: uuid.New(), Enabled: true})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound), "got %v", err)
}

func TestDistanceKm(t *testing.T) {
	// Berlin to Munich.
	assert.InDelta(t, 504, DistanceKm(52.5200, 13.4050, 48.1351, 11.5820), 5)
	assert.Zero(t, DistanceKm(10, 20, 10, 20))
	assert.Equal(t, 1.23, roundTo2(1.2349))
}
