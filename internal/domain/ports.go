package domain

import (
	"context"
	"time"
)

// TenantRepository defines the persistence contract for schools.
type TenantRepository interface {
	// Create inserts a school under its code. It returns ErrCodeTaken when the
	// code is already in use.
	Create(ctx context.Context, tenant Tenant) error
	GetByID(ctx context.Context, id string) (Tenant, error)
	// List returns every school, newest first.
	List(ctx context.Context) ([]Tenant, error)
	Update(ctx context.Context, tenant Tenant) error
	// SetPaymentStatus writes to only while the stored value is still from.
	SetPaymentStatus(ctx context.Context, id string, from, to PaymentStatus) (Tenant, error)
	// SetStatus writes to only while the stored value is still from.
	SetStatus(ctx context.Context, id string, from, to Status) (Tenant, error)
	// SetTrialStart records the trial start. Unless restart is set it fails
	// with ErrTrialAlreadyStarted when a start is already recorded.
	SetTrialStart(ctx context.Context, id string, start time.Time, restart bool) (Tenant, error)
	MarkCreationComplete(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	// NextCode reserves the next value of the school code sequence.
	NextCode(ctx context.Context) (string, error)
}

// DocumentStore is the contract for the documents each school owns.
type DocumentStore interface {
	ListIDs(ctx context.Context, tenantID, collection string) ([]string, error)
	// Count counts a school's documents, optionally only those created at or
	// after since.
	Count(ctx context.Context, tenantID, collection string, since *time.Time) (int, error)
	// CountAll counts documents of a collection across every school.
	CountAll(ctx context.Context, collection string) (int, error)
	// CommitDeletes removes every referenced document atomically. It refuses
	// more than MaxBatchOps operations.
	CommitDeletes(ctx context.Context, refs []DocRef) error
	// PutAnnouncements writes the broadcast slot of each school atomically,
	// at most MaxBatchOps schools per call.
	PutAnnouncements(ctx context.Context, tenantIDs []string, a Announcement) error
}

// PrincipalRepository stores both copies of a principal record.
type PrincipalRepository interface {
	GetGlobal(ctx context.Context, uid string) (Principal, error)
	GetScoped(ctx context.Context, tenantID, uid string) (Principal, error)
	PutGlobal(ctx context.Context, p Principal) error
	PutScoped(ctx context.Context, p Principal) error
	DeleteGlobal(ctx context.Context, uid string) error
}

// AdminRepository stores super-admin registry records.
type AdminRepository interface {
	ListAdmins(ctx context.Context) ([]SuperAdmin, error)
	GetAdmin(ctx context.Context, uid string) (SuperAdmin, error)
	PutAdmin(ctx context.Context, a SuperAdmin) error
	UpdatePermissions(ctx context.Context, uid string, perms Permissions) error
	DeleteAdmin(ctx context.Context, uid string) error
}

// SettingsRepository reads and writes the global settings blob. Load returns
// a nil map when nothing has been saved yet.
type SettingsRepository interface {
	LoadSettings(ctx context.Context) (Settings, error)
	SaveSettings(ctx context.Context, s Settings) error
}

// Session is an authenticated operator session.
type Session struct {
	ID        string
	UID       string
	Email     string
	Token     string
	ExpiresAt time.Time
}

// PasswordUpdate is the argument of the privileged password update callable.
type PasswordUpdate struct {
	TargetUID   string
	NewPassword string
	TenantID    string
}

// IdentityProvider is the contract of the authentication backend.
type IdentityProvider interface {
	CreateAccount(ctx context.Context, email, password string) (uid string, err error)
	SignIn(ctx context.Context, email, password string) (Session, error)
	SignOut(ctx context.Context, token string) error
	Verify(ctx context.Context, token string) (Session, error)
	// Reauthenticate checks a freshly typed password of an already signed-in
	// account.
	Reauthenticate(ctx context.Context, uid, password string) error
	SendPasswordReset(ctx context.Context, email string) error
	// ChangeEmail moves an account to a new login email.
	ChangeEmail(ctx context.Context, uid, email string) error
	UpdateUserPassword(ctx context.Context, req PasswordUpdate) error
	DeleteAccount(ctx context.Context, uid string) error
}

// Message is an outgoing email.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Mailer delivers email.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// EventPublisher defines the contract for emitting domain events.
type EventPublisher interface {
	Publish(ctx context.Context, event Event, tenant Tenant) error
}

// TransitionValidator checks deletion workflow transitions.
type TransitionValidator interface {
	Apply(ctx context.Context, current DeletionState, event DeletionEvent) (DeletionState, error)
}
