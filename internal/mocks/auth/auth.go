package auth

// Package auth contains simple hand-written test doubles for auth and
// security ports. These are lightweight and suitable for unit tests
// without codegen.

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	domainauth "github.com/gestorhq/portal-api/internal/domain/auth"
	"github.com/gestorhq/portal-api/internal/domain/model"
	apperrors "github.com/gestorhq/portal-api/internal/errors"
	"github.com/gestorhq/portal-api/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.SessionStore       = (*MemorySessionStore)(nil)
	_ ports.PrincipalStore     = (*MemoryPrincipalStore)(nil)
	_ ports.SecurityEventStore = (*MemorySecurityEventStore)(nil)
	_ ports.PasswordHasher     = (*PlainHasher)(nil)
	_ ports.AlertSink          = (*CaptureAlertSink)(nil)
)

// ErrNotFound is returned by mocks when an entity is not present.
var ErrNotFound = ports.ErrSessionNotFound

// MemorySessionStore is an in-memory session store for unit tests.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]domainauth.Session
}

// NewMemorySessionStore creates a new in-memory session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]domainauth.Session),
	}
}

func (m *MemorySessionStore) Save(_ context.Context, sess domainauth.Session) error {
	if sess.ID == "" {
		return errors.New("session ID cannot be empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sess.ID] = sess
	return nil
}

func (m *MemorySessionStore) Get(_ context.Context, id string) (domainauth.Session, error) {
	if id == "" {
		return domainauth.Session{}, ErrNotFound
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	if !ok {
		return domainauth.Session{}, ErrNotFound
	}
	return sess, nil
}

func (m *MemorySessionStore) Delete(_ context.Context, id string) error {
	if id == "" {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *MemorySessionStore) DeleteByPrincipal(_ context.Context, principalID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, sess := range m.sessions {
		if sess.PrincipalID == principalID {
			delete(m.sessions, id)
		}
	}
	return nil
}

// Len reports the number of live sessions.
func (m *MemorySessionStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// PlainHasher stores passwords behind a marker prefix. Only for tests.
type PlainHasher struct{}

func (PlainHasher) Hash(password string) (string, error) {
	return "plain:" + password, nil
}

func (PlainHasher) Verify(password, encoded string) (bool, error) {
	stored, ok := strings.CutPrefix(encoded, "plain:")
	if !ok {
		return false, errors.New("unrecognized hash format")
	}
	return stored == password, nil
}

// MemoryPrincipalStore is an in-memory principal store for unit tests.
// It reproduces the first-account-becomes-admin rule and case-insensitive
// email uniqueness.
type MemoryPrincipalStore struct {
	mu         sync.Mutex
	principals map[string]*storedPrincipal
	nextID     int
	now        func() time.Time
}

type storedPrincipal struct {
	model.Principal
	hash string
}

// NewMemoryPrincipalStore creates a new in-memory principal store.
func NewMemoryPrincipalStore() *MemoryPrincipalStore {
	return &MemoryPrincipalStore{
		principals: make(map[string]*storedPrincipal),
		now:        time.Now,
	}
}

func (m *MemoryPrincipalStore) Create(_ context.Context, in ports.CreatePrincipalInput) (*model.Principal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range m.principals {
		if strings.EqualFold(p.Email, in.Email) {
			return nil, &apperrors.AppError{
				Code:    apperrors.ErrCodeConflict,
				Message: "This value already exists. Please choose a different one.",
				Field:   "email",
			}
		}
	}

	role := domainauth.RoleClient
	if len(m.principals) == 0 {
		role = domainauth.RoleAdmin
	}

	m.nextID++
	now := m.now().UTC()
	p := &storedPrincipal{
		Principal: model.Principal{
			ID:        "principal-" + strconv.Itoa(m.nextID),
			Name:      in.Name,
			Email:     in.Email,
			Role:      role,
			Status:    model.PrincipalActive,
			Address:   &in.Address,
			Phone:     &in.Phone,
			Company:   in.Company,
			TaxID:     in.TaxID,
			CreatedAt: now,
			UpdatedAt: now,
		},
		hash: in.PasswordHash,
	}
	m.principals[p.ID] = p
	out := p.Principal
	return &out, nil
}

func (m *MemoryPrincipalStore) GetByID(_ context.Context, id string) (*model.Principal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.principals[id]
	if !ok {
		return nil, apperrors.NotFound("principal not found")
	}
	out := p.Principal
	return &out, nil
}

func (m *MemoryPrincipalStore) GetByEmail(_ context.Context, email string) (*model.Principal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.principals {
		if strings.EqualFold(p.Email, email) {
			out := p.Principal
			return &out, nil
		}
	}
	return nil, apperrors.NotFound("principal not found")
}

func (m *MemoryPrincipalStore) GetCredentials(_ context.Context, email string) (*ports.Credentials, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.principals {
		if strings.EqualFold(p.Email, email) {
			return &ports.Credentials{Principal: p.Principal, Hash: p.hash}, nil
		}
	}
	return nil, apperrors.NotFound("principal not found")
}

func (m *MemoryPrincipalStore) UpdateProfile(_ context.Context, id string, req model.UpdateProfileRequest) (*model.Principal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.principals[id]
	if !ok {
		return nil, apperrors.NotFound("principal not found")
	}
	if req.Name != nil {
		p.Name = strings.TrimSpace(*req.Name)
	}
	if req.Address != nil {
		v := strings.TrimSpace(*req.Address)
		p.Address = &v
	}
	if req.Phone != nil {
		v := strings.TrimSpace(*req.Phone)
		p.Phone = &v
	}
	if req.Company != nil {
		if strings.TrimSpace(*req.Company) == "" {
			p.Company = nil
		} else {
			v := strings.TrimSpace(*req.Company)
			p.Company = &v
		}
	}
	if req.TaxID != nil {
		if strings.TrimSpace(*req.TaxID) == "" {
			p.TaxID = nil
		} else {
			v := strings.TrimSpace(*req.TaxID)
			p.TaxID = &v
		}
	}
	p.UpdatedAt = m.now().UTC()
	out := p.Principal
	return &out, nil
}

func (m *MemoryPrincipalStore) UpdatePasswordHash(_ context.Context, id, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.principals[id]
	if !ok {
		return apperrors.NotFound("principal not found")
	}
	p.hash = hash
	p.UpdatedAt = m.now().UTC()
	return nil
}

func (m *MemoryPrincipalStore) List(_ context.Context, opts model.ListOptions) ([]model.Principal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Principal, 0, len(m.principals))
	for _, p := range m.principals {
		out = append(out, p.Principal)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if opts.Offset > 0 {
		if opts.Offset >= len(out) {
			return nil, nil
		}
		out = out[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(out) {
		out = out[:opts.Limit]
	}
	return out, nil
}

// MemorySecurityEventStore is an in-memory audit log for unit tests. It
// mirrors the SQL derivation queries closely enough for the lockout and
// reporting paths.
type MemorySecurityEventStore struct {
	mu     sync.Mutex
	events []model.SecurityEvent
	nextID int
	now    func() time.Time

	// InsertErr, when set, is returned by Insert. Used to test that audit
	// failures never block the main flow.
	InsertErr error
}

// NewMemorySecurityEventStore creates a new in-memory audit log.
func NewMemorySecurityEventStore() *MemorySecurityEventStore {
	return &MemorySecurityEventStore{now: time.Now}
}

// SetNow overrides the clock used for assigned timestamps.
func (m *MemorySecurityEventStore) SetNow(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *MemorySecurityEventStore) Insert(_ context.Context, evt model.SecurityEvent) (*model.SecurityEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.InsertErr != nil {
		return nil, m.InsertErr
	}
	m.nextID++
	evt.ID = "evt-" + strconv.Itoa(m.nextID)
	if evt.CreatedAt.IsZero() {
		evt.CreatedAt = m.now().UTC()
	}
	// Mirror the persistence round trip: the stored JSON detail is what
	// readers get back.
	if evt.Detail != nil && len(evt.RawDetail) == 0 {
		raw, err := json.Marshal(evt.Detail)
		if err != nil {
			return nil, err
		}
		evt.RawDetail = raw
	}
	m.events = append(m.events, evt)
	out := evt
	return &out, nil
}

func (m *MemorySecurityEventStore) List(_ context.Context, filter model.SecurityEventFilter, opts model.ListOptions) ([]model.SecurityEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	matched := m.filtered(filter)
	// Newest first.
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	if opts.Offset > 0 {
		if opts.Offset >= len(matched) {
			return nil, nil
		}
		matched = matched[opts.Offset:]
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, nil
}

func (m *MemorySecurityEventStore) Count(_ context.Context, filter model.SecurityEventFilter) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.filtered(filter))), nil
}

func (m *MemorySecurityEventStore) CountFailedLogins(_ context.Context, principalID string, since time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, e := range m.events {
		if e.PrincipalID == nil || *e.PrincipalID != principalID || e.Type != model.EventLoginFailed {
			continue
		}
		if !e.CreatedAt.After(since) {
			continue
		}
		count++
	}
	return count, nil
}

func (m *MemorySecurityEventStore) LatestLockState(_ context.Context, principalID string) (*model.SecurityEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *model.SecurityEvent
	for i := range m.events {
		e := m.events[i]
		if e.PrincipalID == nil || *e.PrincipalID != principalID {
			continue
		}
		if e.Type != model.EventAccountLocked && e.Type != model.EventAccountUnlocked {
			continue
		}
		if latest == nil || !e.CreatedAt.Before(latest.CreatedAt) {
			latest = &m.events[i]
		}
	}
	if latest == nil {
		return nil, nil
	}
	out := *latest
	return &out, nil
}

func (m *MemorySecurityEventStore) CountByTypeAndDay(_ context.Context, since time.Time) ([]model.TypeDayCount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	type key struct {
		day time.Time
		typ model.EventType
	}
	counts := make(map[key]int64)
	for _, e := range m.events {
		if e.CreatedAt.Before(since) {
			continue
		}
		counts[key{e.CreatedAt.Truncate(24 * time.Hour), e.Type}]++
	}
	out := make([]model.TypeDayCount, 0, len(counts))
	for k, n := range counts {
		out = append(out, model.TypeDayCount{Day: k.day, Type: k.typ, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Day.Equal(out[j].Day) {
			return out[i].Day.After(out[j].Day)
		}
		return out[i].Type < out[j].Type
	})
	return out, nil
}

func (m *MemorySecurityEventStore) SuspiciousIPs(_ context.Context, since time.Time, threshold int) ([]model.SuspiciousIP, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[string]int64)
	for _, e := range m.events {
		if e.Type == model.EventLoginFailed && !e.CreatedAt.Before(since) {
			counts[e.IP]++
		}
	}
	var out []model.SuspiciousIP
	for ip, n := range counts {
		if n >= int64(threshold) {
			out = append(out, model.SuspiciousIP{IP: ip, Failures: n})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Failures != out[j].Failures {
			return out[i].Failures > out[j].Failures
		}
		return out[i].IP < out[j].IP
	})
	return out, nil
}

func (m *MemorySecurityEventStore) LockedAccounts(_ context.Context) ([]model.LockedAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	latest := make(map[string]model.SecurityEvent)
	for _, e := range m.events {
		if e.PrincipalID == nil {
			continue
		}
		if e.Type != model.EventAccountLocked && e.Type != model.EventAccountUnlocked {
			continue
		}
		if prev, ok := latest[*e.PrincipalID]; !ok || !e.CreatedAt.Before(prev.CreatedAt) {
			latest[*e.PrincipalID] = e
		}
	}
	var out []model.LockedAccount
	for id, e := range latest {
		if e.Type != model.EventAccountLocked {
			continue
		}
		acct := model.LockedAccount{PrincipalID: id, LockedAt: e.CreatedAt}
		if e.Email != nil {
			acct.Email = *e.Email
		}
		if d, ok := e.Detail.(model.AccountLockedDetail); ok {
			acct.FailedCount = d.FailedCount
		}
		out = append(out, acct)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LockedAt.After(out[j].LockedAt) })
	return out, nil
}

// Events returns a copy of everything recorded so far.
func (m *MemorySecurityEventStore) Events() []model.SecurityEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.SecurityEvent, len(m.events))
	copy(out, m.events)
	return out
}

// EventsOfType returns recorded events of the given type, oldest first.
func (m *MemorySecurityEventStore) EventsOfType(t model.EventType) []model.SecurityEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.SecurityEvent
	for _, e := range m.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func (m *MemorySecurityEventStore) filtered(filter model.SecurityEventFilter) []model.SecurityEvent {
	var out []model.SecurityEvent
	for _, e := range m.events {
		if len(filter.Types) > 0 {
			found := false
			for _, t := range filter.Types {
				if e.Type == t {
					found = true
					break
				}
			}
			if !found {
				continue
			}
		}
		if filter.Outcome != "" && e.Outcome != filter.Outcome {
			continue
		}
		if filter.PrincipalID != "" && (e.PrincipalID == nil || *e.PrincipalID != filter.PrincipalID) {
			continue
		}
		if filter.Email != "" && (e.Email == nil || !strings.EqualFold(*e.Email, filter.Email)) {
			continue
		}
		if filter.IP != "" && e.IP != filter.IP {
			continue
		}
		if !filter.From.IsZero() && e.CreatedAt.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && e.CreatedAt.After(filter.To) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// CaptureAlertSink records notifications for assertions.
type CaptureAlertSink struct {
	mu     sync.Mutex
	events []model.SecurityEvent

	// Err, when set, is returned by Notify.
	Err error
}

// NewCaptureAlertSink creates a new capturing alert sink.
func NewCaptureAlertSink() *CaptureAlertSink {
	return &CaptureAlertSink{}
}

func (c *CaptureAlertSink) Notify(_ context.Context, evt model.SecurityEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return c.Err
	}
	c.events = append(c.events, evt)
	return nil
}

// Notified returns a copy of the captured notifications.
func (c *CaptureAlertSink) Notified() []model.SecurityEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.SecurityEvent, len(c.events))
	copy(out, c.events)
	return out
}
