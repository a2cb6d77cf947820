package users

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foodrescue/rescue-backend/pkg/db"
	"github.com/foodrescue/rescue-backend/pkg/db/dbtest"
	"github.com/foodrescue/rescue-backend/pkg/db/models"
	pkgerrors "github.com/foodrescue/rescue-backend/pkg/errors"
)

func newTestService(t *testing.T) (Service, models.User) {
	t.Helper()
	conn := dbtest.Open(t)
	svc, err := NewService(NewRepository(conn), db.NewFromConn(conn), nil)
	require.NoError(t, err)
	return svc, dbtest.SeedUser(t, conn)
}

func boolPtr(v bool) *bool { return &v }

func strPtr(v string) *string { return &v }

func listPtr(v ...string) *[]string { return &v }

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(nil, nil, nil)
	require.Error(t, err)
}

func TestPreferencesDefaults(t *testing.T) {
	svc, user := newTestService(t)

	view, err := svc.Preferences(context.Background(), user.ID)
	require.NoError(t, err)
	assert.True(t, view.FavoritesNotificationsEnabled)
	assert.Empty(t, view.Dietary)
	assert.True(t, view.Notifications.FavoritesAlerts)
	assert.False(t, view.Notifications.PromotionalOffers)
	assert.Equal(t, "private", view.Privacy.ProfileVisibility)
}

func TestUpdatePreferencesPatchesOnlyGivenFields(t *testing.T) {
	svc, user := newTestService(t)
	ctx := context.Background()

	_, err := svc.UpdatePreferences(ctx, UpdatePreferencesInput{
		UserID:        user.ID,
		Dietary:       listPtr("vegan", "gluten-free", "vegan"),
		Notifications: &NotificationsPatch{PromotionalOffers: boolPtr(true)},
	})
	require.NoError(t, err)

	view, err := svc.UpdatePreferences(ctx, UpdatePreferencesInput{
		UserID:  user.ID,
		Privacy: &PrivacyPatch{ProfileVisibility: strPtr("public"), LocationSharing: boolPtr(true)},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"vegan", "gluten-free"}, view.Dietary)
	assert.True(t, view.Notifications.PromotionalOffers)
	assert.True(t, view.Notifications.PickupReminders)
	assert.Equal(t, "public", view.Privacy.ProfileVisibility)
	assert.Equal(t, "private", view.Privacy.OrderHistoryVisibility)
	assert.True(t, view.Privacy.LocationSharing)

	stored, err := svc.Preferences(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, view.UserPreferences, stored.UserPreferences)
}

func TestUpdatePreferencesRejectsUnknownValues(t *testing.T) {
	svc, user := newTestService(t)
	ctx := context.Background()

	_, err := svc.UpdatePreferences(ctx, UpdatePreferencesInput{UserID: user.ID, Dietary: listPtr("carnivore")})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation), "got %v", err)

	_, err = svc.UpdatePreferences(ctx, UpdatePreferencesInput{
		UserID:  user.ID,
		Privacy: &PrivacyPatch{OrderHistoryVisibility: strPtr("friends")},
	})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation), "got %v", err)

	_, err = svc.UpdatePreferences(ctx, UpdatePreferencesInput{UserID: uuid.New(), Dietary: listPtr("none")})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound), "got %v", err)
}
