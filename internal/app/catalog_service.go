package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"bus_pass_service/internal/domain/buspass"
	idb "bus_pass_service/internal/infra/database"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx/types"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidCatalogInput = fmt.Errorf("invalid catalog input")

const passNumberAttempts = 5

// RouteInput describes a new route. Timings is stored as given.
type RouteInput struct {
	Name      string          `json:"name" validate:"required,max=100"`
	BusNumber string          `json:"bus_number" validate:"required,max=20"`
	Stops     []buspass.Stop  `json:"stops" validate:"dive"`
	Timings   json.RawMessage `json:"timings"`
}

type PricingInput struct {
	Location string  `json:"location" validate:"required,max=100"`
	Price    float64 `json:"price" validate:"gt=0"`
}

type StudentInput struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email,max=120"`
	Phone    string `json:"phone" validate:"required,max=15"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// ProfileInput completes a student's profile. BusNumber defaults to the route's.
type ProfileInput struct {
	PRN             string `json:"prn" validate:"required,max=20"`
	Location        string `json:"location" validate:"required,max=100"`
	Semester        string `json:"semester" validate:"required,max=20"`
	SemesterEndDate string `json:"semester_end_date" validate:"required,datetime=2006-01-02"`
	RouteID         int64  `json:"route_id" validate:"required,gt=0"`
	BusNumber       string `json:"bus_number" validate:"max=20"`
}

// CatalogService maintains the routes, pricing, students and profiles that
// pass issuance reads from.
type CatalogService struct {
	passRepo buspass.Repository
	catalog  buspass.CatalogRepository
	validate *validator.Validate
	logger   *logrus.Entry
}

func NewCatalogService(pr buspass.Repository, catalog buspass.CatalogRepository, logger *logrus.Entry) *CatalogService {
	return &CatalogService{
		passRepo: pr,
		catalog:  catalog,
		validate: validator.New(),
		logger:   logger,
	}
}

func (s *CatalogService) check(in any) error {
	if err := s.validate.Struct(in); err != nil {
		return validationError(ErrInvalidCatalogInput, err)
	}
	return nil
}

func (s *CatalogService) AddRoute(ctx context.Context, in RouteInput) (*buspass.Route, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.BusNumber = strings.TrimSpace(in.BusNumber)
	for i := range in.Stops {
		in.Stops[i].Name = strings.TrimSpace(in.Stops[i].Name)
	}
	if err := s.check(&in); err != nil {
		return nil, err
	}
	if len(in.Timings) > 0 && !json.Valid(in.Timings) {
		return nil, fmt.Errorf("%w: timings is not valid JSON", ErrInvalidCatalogInput)
	}

	route := &buspass.Route{
		Name:      in.Name,
		BusNumber: in.BusNumber,
		Stops:     buspass.Stops(in.Stops),
	}
	if len(in.Timings) > 0 {
		route.Timings = types.JSONText(in.Timings)
	}
	if err := s.catalog.CreateRoute(ctx, route); err != nil {
		return nil, fmt.Errorf("failed to create route: %w", err)
	}

	s.logger.WithFields(logrus.Fields{"route_id": route.ID, "stops": len(route.Stops)}).Info("Route added")
	return route, nil
}

func (s *CatalogService) ListRoutes(ctx context.Context) ([]*buspass.Route, error) {
	routes, err := s.catalog.ListRoutes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list routes: %w", err)
	}
	return routes, nil
}

// RoutesByLocation returns the routes that stop at location.
func (s *CatalogService) RoutesByLocation(ctx context.Context, location string) ([]*buspass.Route, error) {
	routes, err := s.ListRoutes(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*buspass.Route, 0, len(routes))
	for _, r := range routes {
		if r.Stops.Has(location) {
			out = append(out, r)
		}
	}
	return out, nil
}

// SetPricing creates the price for a location or replaces the existing one.
func (s *CatalogService) SetPricing(ctx context.Context, in PricingInput) (*buspass.Pricing, error) {
	in.Location = strings.TrimSpace(in.Location)
	if err := s.check(&in); err != nil {
		return nil, err
	}
	pricing := &buspass.Pricing{Location: in.Location, Price: in.Price}
	if err := s.catalog.UpsertPricing(ctx, pricing); err != nil {
		return nil, fmt.Errorf("failed to save pricing: %w", err)
	}
	s.logger.WithFields(logrus.Fields{"location": pricing.Location, "price": pricing.Price}).Info("Pricing saved")
	return pricing, nil
}

func (s *CatalogService) ListPricing(ctx context.Context) ([]*buspass.Pricing, error) {
	pricing, err := s.catalog.ListPricing(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list pricing: %w", err)
	}
	return pricing, nil
}

// RegisterStudent creates a student account with a bcrypt password hash.
func (s *CatalogService) RegisterStudent(ctx context.Context, in StudentInput) (*buspass.User, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Phone = strings.TrimSpace(in.Phone)
	if err := s.check(&in); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &buspass.User{Name: in.Name, Email: in.Email, Phone: in.Phone, Role: buspass.RoleStudent}
	if err := s.catalog.CreateUser(ctx, user, string(hash)); err != nil {
		if errors.Is(err, idb.ErrDuplicateEmail) {
			return nil, idb.ErrDuplicateEmail
		}
		return nil, fmt.Errorf("failed to create student: %w", err)
	}

	s.logger.WithField("user_id", user.ID).Info("Student registered")
	return user, nil
}

func (s *CatalogService) ListStudents(ctx context.Context) ([]*buspass.User, error) {
	users, err := s.catalog.ListStudents(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list students: %w", err)
	}
	return users, nil
}

// CompleteProfile stores the student's PRN, semester and route and marks the
// profile complete. A pass number is assigned on first completion and kept
// afterwards.
func (s *CatalogService) CompleteProfile(ctx context.Context, userID int64, in ProfileInput) (*buspass.Profile, error) {
	in.PRN = strings.TrimSpace(in.PRN)
	in.Location = strings.TrimSpace(in.Location)
	in.Semester = strings.TrimSpace(in.Semester)
	in.BusNumber = strings.TrimSpace(in.BusNumber)
	if err := s.check(&in); err != nil {
		return nil, err
	}
	semesterEnd, err := time.Parse("2006-01-02", in.SemesterEndDate)
	if err != nil {
		return nil, fmt.Errorf("%w: semester_end_date: %v", ErrInvalidCatalogInput, err)
	}

	if _, err := s.passRepo.GetUser(ctx, userID); err != nil {
		if errors.Is(err, idb.ErrUserNotFound) {
			return nil, idb.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user %d: %w", userID, err)
	}
	route, err := s.passRepo.GetRoute(ctx, in.RouteID)
	if err != nil {
		if errors.Is(err, idb.ErrRouteNotFound) {
			return nil, idb.ErrRouteNotFound
		}
		return nil, fmt.Errorf("failed to get route %d: %w", in.RouteID, err)
	}

	profile, err := s.passRepo.GetProfileByUserID(ctx, userID)
	if err != nil {
		if !errors.Is(err, idb.ErrProfileNotFound) {
			return nil, fmt.Errorf("failed to get profile for user %d: %w", userID, err)
		}
		profile = &buspass.Profile{UserID: userID}
	}

	busNumber := in.BusNumber
	if busNumber == "" {
		busNumber = route.BusNumber
	}
	profile.PRN = sql.NullString{String: in.PRN, Valid: true}
	profile.Location = sql.NullString{String: in.Location, Valid: true}
	profile.Semester = sql.NullString{String: in.Semester, Valid: true}
	profile.SemesterEndDate = sql.NullTime{Time: semesterEnd, Valid: true}
	profile.RouteID = sql.NullInt64{Int64: route.ID, Valid: true}
	profile.BusNumber = sql.NullString{String: busNumber, Valid: true}
	profile.IsComplete = true

	keepPassNo := profile.PassNo.Valid && profile.PassNo.String != ""
	for attempt := 1; ; attempt++ {
		if !keepPassNo {
			passNo, err := newPassNumber()
			if err != nil {
				return nil, fmt.Errorf("failed to generate pass number: %w", err)
			}
			profile.PassNo = sql.NullString{String: passNo, Valid: true}
		}

		err = s.catalog.UpsertProfile(ctx, profile)
		if err == nil {
			break
		}
		switch {
		case errors.Is(err, idb.ErrDuplicatePRN):
			return nil, idb.ErrDuplicatePRN
		case errors.Is(err, idb.ErrDuplicatePassNumber) && !keepPassNo && attempt < passNumberAttempts:
			s.logger.WithField("user_id", userID).Warn("Generated pass number already taken, retrying")
			continue
		case errors.Is(err, idb.ErrDuplicatePassNumber):
			return nil, idb.ErrDuplicatePassNumber
		}
		return nil, fmt.Errorf("failed to save profile for user %d: %w", userID, err)
	}

	s.logger.WithFields(logrus.Fields{"user_id": userID, "route_id": route.ID}).Info("Profile completed")
	return profile, nil
}

func (s *CatalogService) ListPayments(ctx context.Context) ([]*buspass.Payment, error) {
	payments, err := s.catalog.ListPayments(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	return payments, nil
}
