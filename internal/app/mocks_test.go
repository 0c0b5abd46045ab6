package app_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/neomorfeo/schooldesk/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- Tenants ---

type mockTenants struct {
	mu        sync.Mutex
	tenants   map[string]domain.Tenant
	order     []string
	seq       int64
	taken     map[string]bool
	createErr error
	deleteErr error
	deleted   []string
	// deletedAfter records how many document commits had happened when the
	// root record was deleted.
	deletedAfter int
	docs         *mockDocs
}

func newMockTenants() *mockTenants {
	return &mockTenants{
		tenants: make(map[string]domain.Tenant),
		taken:   make(map[string]bool),
	}
}

func (m *mockTenants) put(t domain.Tenant) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tenants[t.ID]; !ok {
		m.order = append(m.order, t.ID)
	}
	m.tenants[t.ID] = t
}

func (m *mockTenants) Create(_ context.Context, t domain.Tenant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	if _, ok := m.tenants[t.ID]; ok || m.taken[t.ID] {
		return domain.ErrCodeTaken
	}
	m.tenants[t.ID] = t
	m.order = append(m.order, t.ID)
	return nil
}

func (m *mockTenants) GetByID(_ context.Context, id string) (domain.Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tenants[id]
	if !ok {
		return domain.Tenant{}, domain.ErrTenantNotFound
	}
	return t, nil
}

// List returns newest first, i.e. reverse insertion order.
func (m *mockTenants) List(_ context.Context) ([]domain.Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Tenant, 0, len(m.order))
	for _, id := range slices.Backward(m.order) {
		if t, ok := m.tenants[id]; ok {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *mockTenants) Update(_ context.Context, t domain.Tenant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tenants[t.ID]; !ok {
		return domain.ErrTenantNotFound
	}
	m.tenants[t.ID] = t
	return nil
}

func (m *mockTenants) SetPaymentStatus(_ context.Context, id string, from, to domain.PaymentStatus) (domain.Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tenants[id]
	if !ok {
		return domain.Tenant{}, domain.ErrTenantNotFound
	}
	if t.PaymentStatus.IsPaid() != from.IsPaid() {
		return t, &domain.StaleWriteError{TenantID: id, Field: "payment_status", Expected: string(from)}
	}
	t.PaymentStatus = to
	m.tenants[id] = t
	return t, nil
}

func (m *mockTenants) SetStatus(_ context.Context, id string, from, to domain.Status) (domain.Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tenants[id]
	if !ok {
		return domain.Tenant{}, domain.ErrTenantNotFound
	}
	if t.Status.IsActive() != from.IsActive() {
		return t, &domain.StaleWriteError{TenantID: id, Field: "status", Expected: string(from)}
	}
	t.Status = to
	m.tenants[id] = t
	return t, nil
}

func (m *mockTenants) SetTrialStart(_ context.Context, id string, start time.Time, restart bool) (domain.Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tenants[id]
	if !ok {
		return domain.Tenant{}, domain.ErrTenantNotFound
	}
	if t.TrialStartDate != nil && !restart {
		return t, domain.ErrTrialAlreadyStarted
	}
	t.TrialStartDate = &start
	m.tenants[id] = t
	return t, nil
}

func (m *mockTenants) MarkCreationComplete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tenants[id]
	if !ok {
		return domain.ErrTenantNotFound
	}
	t.CreationState = domain.CreationComplete
	m.tenants[id] = t
	return nil
}

func (m *mockTenants) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	if _, ok := m.tenants[id]; !ok {
		return domain.ErrTenantNotFound
	}
	delete(m.tenants, id)
	m.deleted = append(m.deleted, id)
	if m.docs != nil {
		m.deletedAfter = m.docs.commitCount()
	}
	return nil
}

func (m *mockTenants) NextCode(_ context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	return domain.FormatCode(m.seq), nil
}

// --- Documents ---

type mockDocs struct {
	mu            sync.Mutex
	docs          map[string]map[string][]string // tenant -> collection -> ids
	counts        map[string]int                 // "tenant/collection" or "*/collection"
	recent        map[string]int
	commits       [][]domain.DocRef
	failCommitAt  int // 1-based commit number that fails; 0 never fails
	listErr       error
	attempts      int
	announcements map[string]domain.Announcement
	announceCalls [][]string
}

func newMockDocs() *mockDocs {
	return &mockDocs{
		docs:          make(map[string]map[string][]string),
		counts:        make(map[string]int),
		recent:        make(map[string]int),
		announcements: make(map[string]domain.Announcement),
	}
}

func (m *mockDocs) seed(tenantID, coll string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.docs[tenantID] == nil {
		m.docs[tenantID] = make(map[string][]string)
	}
	for i := range n {
		m.docs[tenantID][coll] = append(m.docs[tenantID][coll], fmt.Sprintf("%s-%d", coll, i))
	}
}

func (m *mockDocs) ListIDs(_ context.Context, tenantID, coll string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	return slices.Clone(m.docs[tenantID][coll]), nil
}

func (m *mockDocs) Count(_ context.Context, tenantID, coll string, since *time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if since != nil {
		return m.recent[tenantID+"/"+coll], nil
	}
	return m.counts[tenantID+"/"+coll], nil
}

func (m *mockDocs) CountAll(_ context.Context, coll string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts["*/"+coll], nil
}

func (m *mockDocs) CommitDeletes(ctx context.Context, refs []domain.DocRef) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts++
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.failCommitAt != 0 && m.attempts == m.failCommitAt {
		return fmt.Errorf("quota exceeded")
	}
	if len(refs) > domain.MaxBatchOps {
		return fmt.Errorf("batch of %d exceeds ceiling", len(refs))
	}
	m.commits = append(m.commits, refs)
	return nil
}

func (m *mockDocs) commitCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.commits)
}

func (m *mockDocs) PutAnnouncements(_ context.Context, ids []string, a domain.Announcement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.announceCalls = append(m.announceCalls, slices.Clone(ids))
	for _, id := range ids {
		m.announcements[id] = a
	}
	return nil
}

// --- Principals ---

type mockPrincipals struct {
	mu        sync.Mutex
	global    map[string]domain.Principal
	scoped    map[string]domain.Principal // "tenant/uid"
	globalErr error
	scopedPut int
}

func newMockPrincipals() *mockPrincipals {
	return &mockPrincipals{
		global: make(map[string]domain.Principal),
		scoped: make(map[string]domain.Principal),
	}
}

func (m *mockPrincipals) GetGlobal(_ context.Context, uid string) (domain.Principal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.global[uid]
	if !ok {
		return domain.Principal{}, domain.ErrPrincipalNotFound
	}
	return p, nil
}

func (m *mockPrincipals) GetScoped(_ context.Context, tenantID, uid string) (domain.Principal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.scoped[tenantID+"/"+uid]
	if !ok {
		return domain.Principal{}, domain.ErrPrincipalNotFound
	}
	return p, nil
}

func (m *mockPrincipals) PutGlobal(_ context.Context, p domain.Principal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.globalErr != nil {
		return m.globalErr
	}
	m.global[p.UID] = p
	return nil
}

func (m *mockPrincipals) PutScoped(_ context.Context, p domain.Principal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scoped[p.TenantID+"/"+p.UID] = p
	m.scopedPut++
	return nil
}

func (m *mockPrincipals) DeleteGlobal(_ context.Context, uid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.global, uid)
	return nil
}

// --- Admins ---

type mockAdmins struct {
	admins map[string]domain.SuperAdmin
	putErr error
}

func newMockAdmins(admins ...domain.SuperAdmin) *mockAdmins {
	m := &mockAdmins{admins: make(map[string]domain.SuperAdmin)}
	for _, a := range admins {
		m.admins[a.UID] = a
	}
	return m
}

func (m *mockAdmins) ListAdmins(_ context.Context) ([]domain.SuperAdmin, error) {
	out := make([]domain.SuperAdmin, 0, len(m.admins))
	for _, a := range m.admins {
		out = append(out, a)
	}
	return out, nil
}

func (m *mockAdmins) GetAdmin(_ context.Context, uid string) (domain.SuperAdmin, error) {
	a, ok := m.admins[uid]
	if !ok {
		return domain.SuperAdmin{}, domain.ErrAdminNotFound
	}
	return a, nil
}

func (m *mockAdmins) PutAdmin(_ context.Context, a domain.SuperAdmin) error {
	if m.putErr != nil {
		return m.putErr
	}
	m.admins[a.UID] = a
	return nil
}

func (m *mockAdmins) UpdatePermissions(_ context.Context, uid string, perms domain.Permissions) error {
	a, ok := m.admins[uid]
	if !ok {
		return domain.ErrAdminNotFound
	}
	a.Permissions = perms
	m.admins[uid] = a
	return nil
}

func (m *mockAdmins) DeleteAdmin(_ context.Context, uid string) error {
	if _, ok := m.admins[uid]; !ok {
		return domain.ErrAdminNotFound
	}
	delete(m.admins, uid)
	return nil
}

// --- Settings ---

type mockSettings struct {
	stored domain.Settings
	saves  int
}

func (m *mockSettings) LoadSettings(_ context.Context) (domain.Settings, error) {
	return m.stored, nil
}

func (m *mockSettings) SaveSettings(_ context.Context, s domain.Settings) error {
	m.stored = s
	m.saves++
	return nil
}

// --- Identity ---

type mockIdentity struct {
	mu         sync.Mutex
	seq        int
	accounts   map[string]string // uid -> email
	passwords  map[string]string // uid -> password
	sessions   map[string]string // token -> uid
	createErr  error
	resets     []string
	updates    []domain.PasswordUpdate
	deleted    []string
	emailMoves map[string]string
}

func newMockIdentity() *mockIdentity {
	return &mockIdentity{
		accounts:   make(map[string]string),
		passwords:  make(map[string]string),
		sessions:   make(map[string]string),
		emailMoves: make(map[string]string),
	}
}

func (m *mockIdentity) CreateAccount(_ context.Context, email, password string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return "", m.createErr
	}
	for _, e := range m.accounts {
		if e == domain.NormalizeEmail(email) {
			return "", domain.ErrEmailInUse
		}
	}
	m.seq++
	uid := fmt.Sprintf("uid-%d", m.seq)
	m.accounts[uid] = domain.NormalizeEmail(email)
	m.passwords[uid] = password
	return uid, nil
}

func (m *mockIdentity) SignIn(_ context.Context, email, password string) (domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for uid, e := range m.accounts {
		if e == domain.NormalizeEmail(email) && m.passwords[uid] == password {
			token := "token-" + uid
			m.sessions[token] = uid
			return domain.Session{ID: "sess-" + uid, UID: uid, Email: e, Token: token}, nil
		}
	}
	return domain.Session{}, domain.ErrInvalidCredentials
}

func (m *mockIdentity) SignOut(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[token]; !ok {
		return domain.ErrSessionInvalid
	}
	delete(m.sessions, token)
	return nil
}

func (m *mockIdentity) Verify(_ context.Context, token string) (domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	uid, ok := m.sessions[token]
	if !ok {
		return domain.Session{}, domain.ErrSessionInvalid
	}
	return domain.Session{ID: "sess-" + uid, UID: uid, Email: m.accounts[uid], Token: token}, nil
}

func (m *mockIdentity) Reauthenticate(_ context.Context, uid, password string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if pw, ok := m.passwords[uid]; !ok || pw != password {
		return domain.ErrInvalidCredentials
	}
	return nil
}

func (m *mockIdentity) SendPasswordReset(_ context.Context, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resets = append(m.resets, email)
	return nil
}

func (m *mockIdentity) ChangeEmail(_ context.Context, uid, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for other, e := range m.accounts {
		if e == email && other != uid {
			return domain.ErrEmailInUse
		}
	}
	m.accounts[uid] = email
	m.emailMoves[uid] = email
	return nil
}

func (m *mockIdentity) UpdateUserPassword(_ context.Context, req domain.PasswordUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates = append(m.updates, req)
	m.passwords[req.TargetUID] = req.NewPassword
	return nil
}

func (m *mockIdentity) DeleteAccount(_ context.Context, uid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.accounts, uid)
	m.deleted = append(m.deleted, uid)
	return nil
}

// --- Publisher ---

type mockPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

type publishedEvent struct {
	event  domain.Event
	tenant domain.Tenant
}

func (m *mockPublisher) Publish(_ context.Context, e domain.Event, t domain.Tenant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, publishedEvent{event: e, tenant: t})
	return m.err
}

func (m *mockPublisher) last() publishedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.events) == 0 {
		return publishedEvent{}
	}
	return m.events[len(m.events)-1]
}

// --- Validator ---

type tableValidator struct{}

func (tableValidator) Apply(_ context.Context, current domain.DeletionState, event domain.DeletionEvent) (domain.DeletionState, error) {
	for _, tr := range domain.DeletionTransitions {
		if tr.Src == current && tr.Event == event {
			return tr.Dst, nil
		}
	}
	return current, &domain.TransitionError{Event: event, Current: current}
}
