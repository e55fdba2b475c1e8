package app

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"bus_pass_service/internal/domain/buspass"
	idb "bus_pass_service/internal/infra/database"

	"github.com/sirupsen/logrus"
)

var ErrProfileIncomplete = fmt.Errorf("profile must be completed with a semester end date before issuing a pass")
var ErrPassNotPending = fmt.Errorf("pass status does not allow this transition")
var ErrPassAlreadyExpired = fmt.Errorf("semester end date is in the past")

const (
	mockPaymentMethod   = "Mock Payment"
	paymentCompleted    = "Completed"
	transactionIDPrefix = "TXN"
	passNumberPrefix    = "BP"
	transactionAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	passNumberAlphabet  = "0123456789"
)

// IssuePassRequest is the result of a completed (mock) checkout.
type IssuePassRequest struct {
	UserID        int64  `json:"user_id"`
	RouteID       int64  `json:"route_id"`
	Location      string `json:"location"`
	PaymentMethod string `json:"payment_method"`
}

// IssuedPass bundles what a successful issuance created.
type IssuedPass struct {
	Pass    *buspass.Pass    `json:"pass"`
	Payment *buspass.Payment `json:"payment"`
	PassNo  string           `json:"pass_no"`
}

// PassService issues passes through the mock payment flow and runs the legacy
// admin approval workflow.
type PassService struct {
	passRepo buspass.Repository
	logger   *logrus.Entry
	location *time.Location
	clock    func() time.Time
}

func NewPassService(pr buspass.Repository, logger *logrus.Entry, loc *time.Location) *PassService {
	if loc == nil {
		loc = time.Local
	}
	return &PassService{passRepo: pr, logger: logger, location: loc, clock: time.Now}
}

// IssuePass processes a mock payment and creates an Approved pass that expires
// at the student's semester end date.
func (s *PassService) IssuePass(ctx context.Context, req IssuePassRequest) (*IssuedPass, error) {
	req.Location = strings.TrimSpace(req.Location)

	profile, err := s.passRepo.GetProfileByUserID(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, idb.ErrProfileNotFound) {
			return nil, ErrProfileIncomplete
		}
		return nil, fmt.Errorf("failed to get profile for user %d: %w", req.UserID, err)
	}
	if !profile.IsComplete || !profile.SemesterEndDate.Valid {
		return nil, ErrProfileIncomplete
	}

	today := CalendarDate(s.clock().In(s.location))
	expiry := CalendarDate(profile.SemesterEndDate.Time)
	if expiry.Before(today) {
		return nil, ErrPassAlreadyExpired
	}

	route, err := s.passRepo.GetRoute(ctx, req.RouteID)
	if err != nil {
		return nil, fmt.Errorf("failed to get route %d: %w", req.RouteID, err)
	}

	pricing, err := s.passRepo.GetPricingByLocation(ctx, req.Location)
	if err != nil {
		return nil, fmt.Errorf("failed to get pricing for %q: %w", req.Location, err)
	}

	method := req.PaymentMethod
	if method == "" {
		method = mockPaymentMethod
	}
	txnID, err := randomCode(transactionIDPrefix, transactionAlphabet, 12)
	if err != nil {
		return nil, fmt.Errorf("failed to generate transaction id: %w", err)
	}

	if !profile.PassNo.Valid || profile.PassNo.String == "" {
		passNo, err := newPassNumber()
		if err != nil {
			return nil, fmt.Errorf("failed to generate pass number: %w", err)
		}
		profile.PassNo = sql.NullString{String: passNo, Valid: true}
	}
	profile.Location = sql.NullString{String: req.Location, Valid: true}
	profile.RouteID = sql.NullInt64{Int64: route.ID, Valid: true}
	profile.BusNumber = sql.NullString{String: route.BusNumber, Valid: true}

	newPass := &buspass.Pass{
		UserID:     req.UserID,
		RouteID:    route.ID,
		AmountPaid: pricing.Price,
		IssueDate:  today,
		ExpiryDate: expiry,
		Status:     buspass.PassStatusApproved, // auto-approved after payment
	}
	payment := &buspass.Payment{
		UserID:        req.UserID,
		Amount:        pricing.Price,
		PaymentMethod: method,
		TransactionID: txnID,
		Status:        paymentCompleted,
	}

	if err := s.passRepo.CreateIssuedPass(ctx, newPass, payment, profile); err != nil {
		return nil, fmt.Errorf("failed to store issued pass: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"pass_id":        newPass.ID,
		"user_id":        req.UserID,
		"transaction_id": txnID,
		"expiry_date":    expiry.Format("2006-01-02"),
	}).Info("Pass issued")

	return &IssuedPass{Pass: newPass, Payment: payment, PassNo: profile.PassNo.String}, nil
}

// ApprovePass moves a Pending or Rejected pass to Approved.
func (s *PassService) ApprovePass(ctx context.Context, id int64) (*buspass.Pass, error) {
	return s.transition(ctx, id, buspass.PassStatusApproved)
}

// RejectPass moves a Pending or Approved pass to Rejected.
func (s *PassService) RejectPass(ctx context.Context, id int64) (*buspass.Pass, error) {
	return s.transition(ctx, id, buspass.PassStatusRejected)
}

func (s *PassService) PendingPasses(ctx context.Context) ([]*buspass.Pass, error) {
	passes, err := s.passRepo.ListPassesByStatus(ctx, buspass.PassStatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending passes: %w", err)
	}
	return passes, nil
}

func (s *PassService) transition(ctx context.Context, id int64, to buspass.PassStatus) (*buspass.Pass, error) {
	p, err := s.passRepo.GetPass(ctx, id)
	if err != nil {
		if errors.Is(err, idb.ErrPassNotFound) {
			return nil, idb.ErrPassNotFound
		}
		return nil, fmt.Errorf("failed to get pass %d: %w", id, err)
	}
	if p.Status == to {
		return p, ErrPassNotPending
	}
	if err := s.passRepo.UpdatePassStatus(ctx, id, to); err != nil {
		return nil, fmt.Errorf("failed to update pass %d to %s: %w", id, to, err)
	}

	s.logger.WithFields(logrus.Fields{"pass_id": id, "from": p.Status, "to": to}).Info("Pass status changed")
	p.Status = to
	return p, nil
}

// newPassNumber returns BP followed by eight random digits.
func newPassNumber() (string, error) {
	return randomCode(passNumberPrefix, passNumberAlphabet, 8)
}

func randomCode(prefix, alphabet string, n int) (string, error) {
	var b strings.Builder
	b.WriteString(prefix)
	size := big.NewInt(int64(len(alphabet)))
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, size)
		if err != nil {
			return "", err
		}
		b.WriteByte(alphabet[idx.Int64()])
	}
	return b.String(), nil
}
