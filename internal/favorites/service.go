// Package favorites lets users follow businesses and surfaces the rescue bags
// those businesses currently offer near the user.
package favorites

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/foodrescue/rescue-backend/internal/businesses"
	"github.com/foodrescue/rescue-backend/internal/rescuebags"
	"github.com/foodrescue/rescue-backend/pkg/db/models"
	pkgerrors "github.com/foodrescue/rescue-backend/pkg/errors"
	"github.com/foodrescue/rescue-backend/pkg/logger"
)

const (
	DefaultRadiusKm = 10.0
	MinRadiusKm     = 0.1
	MaxRadiusKm     = 50.0

	newBagWindow = 24 * time.Hour
)

// Service manages a user's favorite businesses.
type Service interface {
	List(ctx context.Context, userID uuid.UUID) ([]BusinessView, error)
	Add(ctx context.Context, userID, businessID uuid.UUID) (*BusinessView, error)
	Remove(ctx context.Context, userID, businessID uuid.UUID) (bool, error)
	Alerts(ctx context.Context, input AlertsInput) ([]Alert, error)
	UpdateNotifications(ctx context.Context, input NotificationsInput) error
}

// BusinessView is the favorite business as returned to clients.
type BusinessView struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

// AlertsInput locates the caller. A zero RadiusKm means DefaultRadiusKm.
type AlertsInput struct {
	UserID    uuid.UUID
	Latitude  float64
	Longitude float64
	RadiusKm  float64
}

// Alert is an available bag from a favorite business within the radius.
type Alert struct {
	rescuebags.View
	BusinessName string  `json:"businessName"`
	DistanceKm   float64 `json:"distanceKm"`
	IsNew        bool    `json:"isNew"`
}

// NotificationsInput toggles favorite alerts for one business, or globally
// when BusinessID is nil.
type NotificationsInput struct {
	UserID     uuid.UUID
	Enabled    bool
	BusinessID *uuid.UUID
}

// ServiceParams groups the service dependencies.
type ServiceParams struct {
	Repo       Repository
	Businesses businesses.Repository
	Bags       rescuebags.Repository
	Logger     *logger.Logger
	Now        func() time.Time
}

type service struct {
	repo       Repository
	businesses businesses.Repository
	bags       rescuebags.Repository
	logg       *logger.Logger
	now        func() time.Time
}

var errNoIdentity = pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")

func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Repo == nil:
		return nil, fmt.Errorf("favorites repository required")
	case params.Businesses == nil:
		return nil, fmt.Errorf("business repository required")
	case params.Bags == nil:
		return nil, fmt.Errorf("rescue bag repository required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:       params.Repo,
		businesses: params.Businesses,
		bags:       params.Bags,
		logg:       params.Logger,
		now:        now,
	}, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID) ([]BusinessView, error) {
	if userID == uuid.Nil {
		return nil, errNoIdentity
	}
	rows, err := s.repo.ListBusinesses(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list favorites")
	}
	views := make([]BusinessView, 0, len(rows))
	for _, b := range rows {
		views = append(views, viewOf(b))
	}
	return views, nil
}

// Add follows an active business. Following it twice is a conflict.
func (s *service) Add(ctx context.Context, userID, businessID uuid.UUID) (*BusinessView, error) {
	switch {
	case userID == uuid.Nil:
		return nil, errNoIdentity
	case businessID == uuid.Nil:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "business id required")
	}

	business, err := s.businesses.FindByID(ctx, businessID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "business not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load business")
	}
	if !business.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "business is not active")
	}

	created, err := s.repo.Add(ctx, &models.Favorite{
		UserID:     userID,
		BusinessID: businessID,
		CreatedAt:  s.now().UTC(),
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "add favorite")
	}
	if !created {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "business already in favorites")
	}
	if s.logg != nil {
		logCtx := s.logg.WithBusinessID(s.logg.WithUserID(ctx, userID.String()), businessID.String())
		s.logg.Info(logCtx, "favorite added")
	}
	view := viewOf(*business)
	return &view, nil
}

// Remove unfollows a business. Removing a business that is not a favorite
// succeeds and reports false.
func (s *service) Remove(ctx context.Context, userID, businessID uuid.UUID) (bool, error) {
	switch {
	case userID == uuid.Nil:
		return false, errNoIdentity
	case businessID == uuid.Nil:
		return false, pkgerrors.New(pkgerrors.CodeValidation, "business id required")
	}
	removed, err := s.repo.Remove(ctx, userID, businessID)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove favorite")
	}
	return removed, nil
}

// Alerts lists the available bags of favorite businesses within the radius,
// nearest first. Businesses without coordinates cannot be placed and are
// left out.
func (s *service) Alerts(ctx context.Context, input AlertsInput) ([]Alert, error) {
	if input.UserID == uuid.Nil {
		return nil, errNoIdentity
	}
	if err := validateLocation(&input); err != nil {
		return nil, err
	}

	favorites, err := s.repo.ListBusinesses(ctx, input.UserID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list favorites")
	}
	alerts := []Alert{}
	if len(favorites) == 0 {
		return alerts, nil
	}

	located := make(map[uuid.UUID]models.Business, len(favorites))
	ids := make([]uuid.UUID, 0, len(favorites))
	for _, b := range favorites {
		if b.Latitude == nil || b.Longitude == nil {
			continue
		}
		located[b.ID] = b
		ids = append(ids, b.ID)
	}

	now := s.now().UTC()
	bags, err := s.bags.ListOpenByBusinesses(ctx, ids, now)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list favorite rescue bags")
	}
	for _, bag := range bags {
		if !rescuebags.IsAvailable(bag, now) {
			continue
		}
		business, ok := located[bag.BusinessID]
		if !ok {
			continue
		}
		distance := roundTo2(DistanceKm(input.Latitude, input.Longitude, *business.Latitude, *business.Longitude))
		if distance > input.RadiusKm {
			continue
		}
		alerts = append(alerts, Alert{
			View:         rescuebags.BuildView(bag, now),
			BusinessName: business.Name,
			DistanceKm:   distance,
			IsNew:        bag.CreatedAt.After(now.Add(-newBagWindow)),
		})
	}
	sort.SliceStable(alerts, func(i, j int) bool {
		return alerts[i].DistanceKm < alerts[j].DistanceKm
	})
	return alerts, nil
}

func (s *service) UpdateNotifications(ctx context.Context, input NotificationsInput) error {
	if input.UserID == uuid.Nil {
		return errNoIdentity
	}
	if input.BusinessID == nil {
		ok, err := s.repo.SetGlobalNotifications(ctx, input.UserID, input.Enabled)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update favorite notifications")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil
	}

	ok, err := s.repo.SetNotifications(ctx, input.UserID, *input.BusinessID, input.Enabled)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update favorite notifications")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "business is not a favorite")
	}
	return nil
}

func validateLocation(input *AlertsInput) error {
	if input.RadiusKm == 0 {
		input.RadiusKm = DefaultRadiusKm
	}
	details := map[string]any{}
	if input.Latitude < -90 || input.Latitude > 90 {
		details["lat"] = "must be between -90 and 90"
	}
	if input.Longitude < -180 || input.Longitude > 180 {
		details["lng"] = "must be between -180 and 180"
	}
	if input.RadiusKm < MinRadiusKm || input.RadiusKm > MaxRadiusKm {
		details["radius"] = fmt.Sprintf("must be between %g and %g km", MinRadiusKm, MaxRadiusKm)
	}
	if len(details) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid location").WithDetails(details)
	}
	return nil
}

func viewOf(b models.Business) BusinessView {
	return BusinessView{
		ID:        b.ID.String(),
		Name:      b.Name,
		Latitude:  b.Latitude,
		Longitude: b.Longitude,
	}
}
