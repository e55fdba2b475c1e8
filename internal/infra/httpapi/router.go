package httpapi

import (
	"context"
	"net/http"

	"bus_pass_service/internal/app"
	"bus_pass_service/internal/domain/alert"
	"bus_pass_service/internal/domain/buspass"
	"bus_pass_service/internal/domain/notification"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// AlertAdmin is the alert-configuration surface of app.AdminService.
type AlertAdmin interface {
	ListAlertConfigurations(ctx context.Context) ([]*alert.Configuration, error)
	AddAlertConfiguration(ctx context.Context, in app.AlertConfigInput) (*alert.Configuration, error)
	EditAlertConfiguration(ctx context.Context, id int64, in app.AlertConfigInput) (*alert.Configuration, error)
	ToggleAlertConfiguration(ctx context.Context, id int64) (*alert.Configuration, error)
	RecentNotifications(ctx context.Context, limit int) ([]*notification.LogEntry, error)
	PassNotifications(ctx context.Context, passID int64) ([]*notification.LogEntry, error)
}

// PassAdmin is the pass workflow surface of app.PassService.
type PassAdmin interface {
	IssuePass(ctx context.Context, req app.IssuePassRequest) (*app.IssuedPass, error)
	ApprovePass(ctx context.Context, id int64) (*buspass.Pass, error)
	RejectPass(ctx context.Context, id int64) (*buspass.Pass, error)
	PendingPasses(ctx context.Context) ([]*buspass.Pass, error)
}

// CatalogAdmin is the routes, pricing, students and payments surface of
// app.CatalogService.
type CatalogAdmin interface {
	AddRoute(ctx context.Context, in app.RouteInput) (*buspass.Route, error)
	ListRoutes(ctx context.Context) ([]*buspass.Route, error)
	RoutesByLocation(ctx context.Context, location string) ([]*buspass.Route, error)
	SetPricing(ctx context.Context, in app.PricingInput) (*buspass.Pricing, error)
	ListPricing(ctx context.Context) ([]*buspass.Pricing, error)
	RegisterStudent(ctx context.Context, in app.StudentInput) (*buspass.User, error)
	ListStudents(ctx context.Context) ([]*buspass.User, error)
	CompleteProfile(ctx context.Context, userID int64, in app.ProfileInput) (*buspass.Profile, error)
	ListPayments(ctx context.Context) ([]*buspass.Payment, error)
}

// NewRouter builds the admin HTTP API.
func NewRouter(alerts AlertAdmin, passes PassAdmin, catalog CatalogAdmin, sweeper app.AlertSweeper, adminToken string, logger *logrus.Entry) http.Handler {
	h := &Handler{
		alerts:       alerts,
		passes:       passes,
		catalog:      catalog,
		sweeper:      sweeper,
		sweepTimeout: manualSweepTimeout,
		logger:       logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(AdminToken(adminToken))

		r.Route("/alerts", func(r chi.Router) {
			r.Get("/", h.ListAlerts)
			r.Post("/", h.AddAlert)
			r.Post("/run", h.RunAlerts)
			r.Put("/{id}", h.EditAlert)
			r.Post("/{id}/toggle", h.ToggleAlert)
		})

		r.Get("/notifications", h.RecentNotifications)

		r.Route("/passes", func(r chi.Router) {
			r.Post("/", h.IssuePass)
			r.Get("/pending", h.PendingPasses)
			r.Get("/{id}/notifications", h.PassNotifications)
			r.Post("/{id}/approve", h.ApprovePass)
			r.Post("/{id}/reject", h.RejectPass)
		})

		r.Route("/routes", func(r chi.Router) {
			r.Get("/", h.ListRoutes)
			r.Post("/", h.AddRoute)
			r.Get("/by-location/{location}", h.RoutesByLocation)
		})

		r.Route("/pricing", func(r chi.Router) {
			r.Get("/", h.ListPricing)
			r.Post("/", h.SetPricing)
		})

		r.Route("/users", func(r chi.Router) {
			r.Get("/", h.ListStudents)
			r.Post("/", h.RegisterStudent)
			r.Put("/{id}/profile", h.CompleteProfile)
		})

		r.Get("/payments", h.ListPayments)
	})
	return r
}
