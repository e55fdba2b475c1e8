package app

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"bus_pass_service/internal/domain/alert"
	"bus_pass_service/internal/domain/buspass"
	"bus_pass_service/internal/domain/notification"
	idb "bus_pass_service/internal/infra/database"

	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type fakeAlertRepo struct {
	mu      sync.Mutex
	configs []*alert.Configuration
	listErr error
}

func (r *fakeAlertRepo) ListActive(context.Context) ([]*alert.Configuration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	var out []*alert.Configuration
	for _, c := range r.configs {
		if c.IsActive {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeAlertRepo) ListAll(context.Context) ([]*alert.Configuration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*alert.Configuration, 0, len(r.configs))
	for _, c := range r.configs {
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

func (r *fakeAlertRepo) GetByID(_ context.Context, id int64) (*alert.Configuration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.configs {
		if c.ID == id {
			cp := *c
			return &cp, nil
		}
	}
	return nil, idb.ErrAlertConfigNotFound
}

func (r *fakeAlertRepo) GetByDaysBefore(_ context.Context, days int) (*alert.Configuration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.configs {
		if c.DaysBefore == days {
			cp := *c
			return &cp, nil
		}
	}
	return nil, idb.ErrAlertConfigNotFound
}

func (r *fakeAlertRepo) Create(_ context.Context, cfg *alert.Configuration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cfg.ID = int64(len(r.configs) + 1)
	cp := *cfg
	r.configs = append(r.configs, &cp)
	return nil
}

func (r *fakeAlertRepo) Update(_ context.Context, cfg *alert.Configuration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, c := range r.configs {
		if c.ID == cfg.ID {
			cp := *cfg
			r.configs[i] = &cp
			return nil
		}
	}
	return idb.ErrAlertConfigNotFound
}

func (r *fakeAlertRepo) ToggleActive(_ context.Context, id int64) (*alert.Configuration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.configs {
		if c.ID == id {
			c.IsActive = !c.IsActive
			cp := *c
			return &cp, nil
		}
	}
	return nil, idb.ErrAlertConfigNotFound
}

// fakePassRepo returns every pass whose expiry matches, whatever its status,
// so the engine's own status check is exercised.
type fakePassRepo struct {
	mu       sync.Mutex
	passes   []*buspass.Pass
	users    map[int64]*buspass.User
	profiles map[int64]*buspass.Profile
	routes   map[int64]*buspass.Route
	pricing  map[string]*buspass.Pricing
	payments []*buspass.Payment
	userErr  error
}

func newFakePassRepo() *fakePassRepo {
	return &fakePassRepo{
		users:    map[int64]*buspass.User{},
		profiles: map[int64]*buspass.Profile{},
		routes:   map[int64]*buspass.Route{},
		pricing:  map[string]*buspass.Pricing{},
	}
}

func (r *fakePassRepo) ListApprovedPassesExpiringOn(_ context.Context, day time.Time) ([]*buspass.Pass, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*buspass.Pass
	for _, p := range r.passes {
		if CalendarDate(p.ExpiryDate).Equal(CalendarDate(day)) {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakePassRepo) ListPassesByStatus(_ context.Context, status buspass.PassStatus) ([]*buspass.Pass, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*buspass.Pass
	for _, p := range r.passes {
		if p.Status == status {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakePassRepo) GetPass(_ context.Context, id int64) (*buspass.Pass, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.passes {
		if p.ID == id {
			cp := *p
			return &cp, nil
		}
	}
	return nil, idb.ErrPassNotFound
}

func (r *fakePassRepo) UpdatePassStatus(_ context.Context, id int64, status buspass.PassStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.passes {
		if p.ID == id {
			p.Status = status
			return nil
		}
	}
	return idb.ErrPassNotFound
}

func (r *fakePassRepo) GetUser(_ context.Context, id int64) (*buspass.User, error) {
	if r.userErr != nil {
		return nil, r.userErr
	}
	if u, ok := r.users[id]; ok {
		return u, nil
	}
	return nil, idb.ErrUserNotFound
}

func (r *fakePassRepo) GetProfileByUserID(_ context.Context, userID int64) (*buspass.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.profiles[userID]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, idb.ErrProfileNotFound
}

func (r *fakePassRepo) GetRoute(_ context.Context, id int64) (*buspass.Route, error) {
	if rt, ok := r.routes[id]; ok {
		return rt, nil
	}
	return nil, idb.ErrRouteNotFound
}

func (r *fakePassRepo) GetPricingByLocation(_ context.Context, location string) (*buspass.Pricing, error) {
	if p, ok := r.pricing[location]; ok {
		return p, nil
	}
	return nil, idb.ErrPricingNotFound
}

func (r *fakePassRepo) CreateIssuedPass(_ context.Context, p *buspass.Pass, payment *buspass.Payment, profile *buspass.Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p.ID = int64(len(r.passes) + 1)
	payment.ID = int64(len(r.payments) + 1)
	payment.PassID = p.ID
	cp := *p
	r.passes = append(r.passes, &cp)
	r.payments = append(r.payments, payment)
	pr := *profile
	r.profiles[profile.UserID] = &pr
	return nil
}

type fakeLedger struct {
	mu        sync.Mutex
	entries   []*notification.LogEntry
	appendErr error
}

func (l *fakeLedger) FindSent(_ context.Context, passID, configID int64, ch notification.Channel) (*notification.LogEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if e.PassID == passID && e.AlertConfigID == configID && e.Channel == ch && e.Status == notification.StatusSent {
			return e, nil
		}
	}
	return nil, idb.ErrNotificationNotFound
}

// Append mirrors the partial unique index on sent entries.
func (l *fakeLedger) Append(_ context.Context, entry *notification.LogEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.appendErr != nil {
		return l.appendErr
	}
	if entry.Status == notification.StatusSent {
		for _, e := range l.entries {
			if e.PassID == entry.PassID && e.AlertConfigID == entry.AlertConfigID && e.Channel == entry.Channel && e.Status == notification.StatusSent {
				return idb.ErrDuplicateSentNotification
			}
		}
	}
	entry.ID = int64(len(l.entries) + 1)
	cp := *entry
	l.entries = append(l.entries, &cp)
	return nil
}

func (l *fakeLedger) ListRecent(_ context.Context, limit int) ([]*notification.LogEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := append([]*notification.LogEntry(nil), l.entries...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (l *fakeLedger) ListByPass(_ context.Context, passID int64) ([]*notification.LogEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*notification.LogEntry
	for _, e := range l.entries {
		if e.PassID == passID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (l *fakeLedger) byChannelStatus(ch notification.Channel, st notification.Status) []*notification.LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*notification.LogEntry
	for _, e := range l.entries {
		if e.Channel == ch && e.Status == st {
			out = append(out, e)
		}
	}
	return out
}

type sentMessage struct {
	Recipient string
	Subject   string
	Body      string
}

type fakeSender struct {
	channel notification.Channel
	err     error
	hang    bool // ignore ctx and never return until released
	release chan struct{}
	onSend  func()

	mu   sync.Mutex
	sent []sentMessage
}

func newFakeSender(ch notification.Channel) *fakeSender {
	return &fakeSender{channel: ch}
}

func (s *fakeSender) Channel() notification.Channel { return s.channel }

func (s *fakeSender) Send(_ context.Context, recipient, subject, body string) error {
	if s.hang {
		<-s.release
	}
	if s.onSend != nil {
		s.onSend()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sentMessage{Recipient: recipient, Subject: subject, Body: body})
	return s.err
}

func (s *fakeSender) calls() []sentMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sentMessage(nil), s.sent...)
}

var errBoom = errors.New("boom")

// fakeCatalogRepo shares state with a fakePassRepo so routes and profiles it
// stores are visible to pass issuance.
type fakeCatalogRepo struct {
	passes       *fakePassRepo
	hashes       map[int64]string
	passNoClash  int // UpsertProfile rejects this many new pass numbers first
	upsertErr    error
	profileSaves int
}

func newFakeCatalogRepo(passes *fakePassRepo) *fakeCatalogRepo {
	return &fakeCatalogRepo{passes: passes, hashes: map[int64]string{}}
}

func (c *fakeCatalogRepo) ListRoutes(context.Context) ([]*buspass.Route, error) {
	c.passes.mu.Lock()
	defer c.passes.mu.Unlock()
	out := make([]*buspass.Route, 0, len(c.passes.routes))
	for _, rt := range c.passes.routes {
		out = append(out, rt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (c *fakeCatalogRepo) CreateRoute(_ context.Context, route *buspass.Route) error {
	c.passes.mu.Lock()
	defer c.passes.mu.Unlock()
	route.ID = int64(len(c.passes.routes) + 1)
	c.passes.routes[route.ID] = route
	return nil
}

func (c *fakeCatalogRepo) ListPricing(context.Context) ([]*buspass.Pricing, error) {
	c.passes.mu.Lock()
	defer c.passes.mu.Unlock()
	out := make([]*buspass.Pricing, 0, len(c.passes.pricing))
	for _, p := range c.passes.pricing {
		out = append(out, p)
	}
	return out, nil
}

func (c *fakeCatalogRepo) UpsertPricing(_ context.Context, pricing *buspass.Pricing) error {
	c.passes.mu.Lock()
	defer c.passes.mu.Unlock()
	if existing, ok := c.passes.pricing[pricing.Location]; ok {
		pricing.ID = existing.ID
	} else {
		pricing.ID = int64(len(c.passes.pricing) + 1)
	}
	cp := *pricing
	c.passes.pricing[pricing.Location] = &cp
	return nil
}

func (c *fakeCatalogRepo) ListStudents(context.Context) ([]*buspass.User, error) {
	c.passes.mu.Lock()
	defer c.passes.mu.Unlock()
	var out []*buspass.User
	for _, u := range c.passes.users {
		if u.Role == buspass.RoleStudent {
			out = append(out, u)
		}
	}
	return out, nil
}

func (c *fakeCatalogRepo) CreateUser(_ context.Context, user *buspass.User, passwordHash string) error {
	c.passes.mu.Lock()
	defer c.passes.mu.Unlock()
	for _, u := range c.passes.users {
		if u.Email == user.Email {
			return idb.ErrDuplicateEmail
		}
	}
	user.ID = int64(len(c.passes.users) + 1)
	c.passes.users[user.ID] = user
	c.hashes[user.ID] = passwordHash
	return nil
}

// UpsertProfile mirrors the unique constraints on prn and pass_no.
func (c *fakeCatalogRepo) UpsertProfile(_ context.Context, p *buspass.Profile) error {
	c.passes.mu.Lock()
	defer c.passes.mu.Unlock()
	if c.upsertErr != nil {
		return c.upsertErr
	}
	if c.passNoClash > 0 {
		c.passNoClash--
		return idb.ErrDuplicatePassNumber
	}
	for uid, other := range c.passes.profiles {
		if uid == p.UserID {
			continue
		}
		if other.PRN.Valid && other.PRN.String == p.PRN.String {
			return idb.ErrDuplicatePRN
		}
		if other.PassNo.Valid && other.PassNo.String == p.PassNo.String {
			return idb.ErrDuplicatePassNumber
		}
	}
	if existing, ok := c.passes.profiles[p.UserID]; ok {
		p.ID = existing.ID
	} else {
		p.ID = int64(len(c.passes.profiles) + 1)
	}
	c.profileSaves++
	cp := *p
	c.passes.profiles[p.UserID] = &cp
	return nil
}

func (c *fakeCatalogRepo) ListPayments(context.Context) ([]*buspass.Payment, error) {
	c.passes.mu.Lock()
	defer c.passes.mu.Unlock()
	return append([]*buspass.Payment(nil), c.passes.payments...), nil
}
