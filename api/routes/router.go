package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/foodrescue/rescue-backend/api/controllers"
	favoritecontrollers "github.com/foodrescue/rescue-backend/api/controllers/favorites"
	notificationcontrollers "github.com/foodrescue/rescue-backend/api/controllers/notifications"
	bagcontrollers "github.com/foodrescue/rescue-backend/api/controllers/rescuebags"
	reservationcontrollers "github.com/foodrescue/rescue-backend/api/controllers/reservations"
	"github.com/foodrescue/rescue-backend/api/middleware"
	"github.com/foodrescue/rescue-backend/internal/favorites"
	"github.com/foodrescue/rescue-backend/internal/impact"
	"github.com/foodrescue/rescue-backend/internal/notifications"
	"github.com/foodrescue/rescue-backend/internal/rescuebags"
	"github.com/foodrescue/rescue-backend/internal/reservations"
	"github.com/foodrescue/rescue-backend/internal/users"
	"github.com/foodrescue/rescue-backend/pkg/auth"
	"github.com/foodrescue/rescue-backend/pkg/config"
	"github.com/foodrescue/rescue-backend/pkg/db"
	"github.com/foodrescue/rescue-backend/pkg/enums"
	"github.com/foodrescue/rescue-backend/pkg/logger"
	"github.com/foodrescue/rescue-backend/pkg/redis"
)

// NewRouter wires every HTTP surface. Routes are registered with their full
// paths so the idempotency middleware sees complete route patterns.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	tokens *auth.Tokens,
	dbP db.Pinger,
	redisClient *redis.Client,
	metricsHandler http.Handler,
	bagService rescuebags.Service,
	reservationService reservations.Service,
	impactService impact.Accumulator,
	notificationService notifications.Service,
	favoriteService favorites.Service,
	userService users.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	// A nil *redis.Client must not leak into the interfaces below as a
	// non-nil value.
	var (
		redisPinger redis.Pinger
		idemStore   redis.IdempotencyStore
	)
	if redisClient != nil {
		redisPinger = redisClient
		idemStore = redisClient
	}

	r.Get("/health/live", controllers.HealthLive(cfg))
	r.Get("/health/ready", controllers.HealthReady(cfg, logg, dbP, redisPinger))
	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	r.Get("/api/v1/rescue-bags/{bagId}", bagcontrollers.Detail(bagService, logg))
	r.Get("/api/v1/businesses/{businessId}/rescue-bags", bagcontrollers.ListForBusiness(bagService, logg))

	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(tokens, logg))
		r.Use(middleware.Idempotency(idemStore, logg))

		r.Post("/api/v1/reservations", reservationcontrollers.Create(reservationService, logg))
		r.Get("/api/v1/reservations", reservationcontrollers.List(reservationService, logg))
		r.Get("/api/v1/reservations/{reservationId}", reservationcontrollers.Detail(reservationService, logg))
		r.Put("/api/v1/reservations/{reservationId}/cancel", reservationcontrollers.Cancel(reservationService, logg))
		r.Get("/api/v1/reservations/{reservationId}/instructions", reservationcontrollers.PickupInstructions(reservationService, logg))

		r.Post("/api/v1/pickup/confirm", reservationcontrollers.ConfirmPickup(reservationService, logg))
		r.Get("/api/v1/pickup/active", reservationcontrollers.ActivePickups(reservationService, logg))

		r.Get("/api/v1/profile/impact", controllers.ProfileImpact(impactService, logg))
		r.Get("/api/v1/profile/history", reservationcontrollers.List(reservationService, logg))
		r.Get("/api/v1/profile/preferences", controllers.ProfilePreferences(userService, logg))
		r.Put("/api/v1/profile/preferences", controllers.UpdateProfilePreferences(userService, logg))

		r.Get("/api/v1/favorites", favoritecontrollers.List(favoriteService, logg))
		r.Post("/api/v1/favorites", favoritecontrollers.Add(favoriteService, logg))
		r.Get("/api/v1/favorites/alerts", favoritecontrollers.Alerts(favoriteService, logg))
		r.Post("/api/v1/favorites/notifications", favoritecontrollers.UpdateNotifications(favoriteService, logg))
		r.Delete("/api/v1/favorites/{businessId}", favoritecontrollers.Remove(favoriteService, logg))

		r.Get("/api/v1/notifications", notificationcontrollers.List(notificationService, logg))
		r.Post("/api/v1/notifications/read-all", notificationcontrollers.MarkAllRead(notificationService, logg))
		r.Post("/api/v1/notifications/{notificationId}/read", notificationcontrollers.MarkRead(notificationService, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.ActorRoleBusiness))

			r.Get("/api/v1/business/reservations/{reservationId}", reservationcontrollers.Detail(reservationService, logg))
			r.Post("/api/v1/business/reservations/{reservationId}/confirm", reservationcontrollers.BusinessConfirm(reservationService, logg))
			r.Post("/api/v1/business/reservations/{reservationId}/ready", reservationcontrollers.BusinessReady(reservationService, logg))
			r.Put("/api/v1/business/reservations/{reservationId}/cancel", reservationcontrollers.Cancel(reservationService, logg))
			r.Post("/api/v1/business/rescue-bags/{bagId}/pause", bagcontrollers.Pause(bagService, logg))
			r.Post("/api/v1/business/rescue-bags/{bagId}/resume", bagcontrollers.Resume(bagService, logg))
		})
	})

	return r
}
