package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/tour-booking-service/internal/api/http/handlers"
	"github.com/spec-kit/tour-booking-service/internal/auth"
	"github.com/spec-kit/tour-booking-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health   *handlers.HealthHandler
	Users    *handlers.UsersHandler
	Tours    *handlers.ToursHandler
	Bookings *handlers.BookingsHandler

	TourResource    *handlers.Resource[domain.Tour]
	UserResource    *handlers.Resource[domain.User]
	ReviewResource  *handlers.Resource[domain.Review]
	BookingResource *handlers.Resource[domain.Booking]

	PopulateTourGuides   handlers.Hook[domain.Tour]
	PopulateReviewAuthor handlers.Hook[domain.Review]

	AuthGate *auth.Middleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	api := app.Group("/api/v1")

	staffOnly := auth.RequireRoles(domain.RoleAdmin, domain.RoleLeadGuide)

	// Tours: browsing is public; mutation is staff territory.
	tours := api.Group("/tours")
	tours.Get("/top-5-cheap", cfg.Tours.AliasTopCheap, cfg.TourResource.GetAll)
	tours.Get("/stats", cfg.AuthGate.Protect, staffOnly, cfg.Tours.Stats)
	tours.Get("/monthly-plan/:year",
		cfg.AuthGate.Protect,
		auth.RequireRoles(domain.RoleAdmin, domain.RoleLeadGuide, domain.RoleGuide),
		cfg.Tours.MonthlyPlan)
	tours.Get("/", cfg.AuthGate.Optional, cfg.TourResource.GetAll)
	tours.Post("/", cfg.AuthGate.Protect, staffOnly, cfg.Tours.StampSlug, cfg.TourResource.Create)
	tours.Get("/:id", cfg.AuthGate.Optional, cfg.TourResource.GetOne(handlers.WithPopulate(cfg.PopulateTourGuides)))
	tours.Patch("/:id", cfg.AuthGate.Protect, staffOnly, cfg.Tours.StampSlug, cfg.TourResource.Update)
	tours.Delete("/:id", cfg.AuthGate.Protect, staffOnly, cfg.TourResource.Delete)
	tours.Put("/:id/guides", cfg.AuthGate.Protect, staffOnly, cfg.Tours.ReplaceGuides)

	// Nested reviews under a tour.
	tourReviews := api.Group("/tours/:tourId/reviews")
	tourReviews.Get("/", cfg.ReviewResource.GetAll)
	tourReviews.Post("/",
		cfg.AuthGate.Protect,
		auth.RequireRoles(domain.RoleUser),
		handlers.SetTourUserIDs,
		cfg.ReviewResource.Create)

	// Flat review surface, fully authenticated.
	reviews := api.Group("/reviews", cfg.AuthGate.Protect)
	reviews.Get("/", cfg.ReviewResource.GetAll)
	reviews.Post("/", auth.RequireRoles(domain.RoleUser), handlers.SetTourUserIDs, cfg.ReviewResource.Create)
	reviews.Get("/:id", cfg.ReviewResource.GetOne(handlers.WithPopulate(cfg.PopulateReviewAuthor)))
	reviews.Patch("/:id", auth.RequireRoles(domain.RoleUser, domain.RoleAdmin), cfg.ReviewResource.Update)
	reviews.Delete("/:id", auth.RequireRoles(domain.RoleUser, domain.RoleAdmin), cfg.ReviewResource.Delete)

	// Identity and self-service account endpoints.
	users := api.Group("/users")
	users.Post("/signup", cfg.Users.Signup)
	users.Post("/login", cfg.Users.Login)
	users.Get("/logout", cfg.Users.Logout)
	users.Post("/forgot-password", cfg.Users.ForgotPassword)
	users.Patch("/reset-password/:token", cfg.Users.ResetPassword)

	me := users.Group("", cfg.AuthGate.Protect)
	me.Patch("/update-password", cfg.Users.UpdatePassword)
	me.Get("/me", cfg.Users.GetMe)
	me.Patch("/me", cfg.Users.UpdateMe)
	me.Delete("/me", cfg.Users.DeleteMe)

	// Admin account management via the generic factory.
	adminUsers := users.Group("", cfg.AuthGate.Protect, auth.RequireRoles(domain.RoleAdmin))
	adminUsers.Get("/", cfg.UserResource.GetAll)
	adminUsers.Post("/", cfg.Users.CreateUserDisabled)
	adminUsers.Get("/:id", cfg.UserResource.GetOne())
	adminUsers.Patch("/:id", cfg.UserResource.Update)
	adminUsers.Delete("/:id", cfg.UserResource.Delete)

	// Bookings: checkout for any principal, management for staff.
	bookings := api.Group("/bookings", cfg.AuthGate.Protect)
	bookings.Get("/checkout-session/:tourId", cfg.Bookings.CheckoutSession)
	bookings.Get("/my-bookings", cfg.Bookings.MyBookings)

	staffBookings := bookings.Group("", staffOnly)
	staffBookings.Get("/", cfg.BookingResource.GetAll)
	staffBookings.Post("/", cfg.BookingResource.Create)
	staffBookings.Get("/:id", cfg.BookingResource.GetOne())
	staffBookings.Patch("/:id", cfg.BookingResource.Update)
	staffBookings.Delete("/:id", cfg.BookingResource.Delete)
}
