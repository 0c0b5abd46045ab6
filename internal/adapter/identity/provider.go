package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/neomorfeo/schooldesk/internal/domain"
)

// Compile-time check: Provider implements domain.IdentityProvider.
var _ domain.IdentityProvider = (*Provider)(nil)

// MinPasswordLength is the shortest password accepted for any account.
const MinPasswordLength = 6

const (
	purposeSession = "session"
	purposeReset   = "password_reset"

	resetTTL = time.Hour
)

// Claims are the JWT claims of both session and reset tokens.
type Claims struct {
	jwt.RegisteredClaims
	Email   string `json:"email"`
	Purpose string `json:"purpose"`
}

// Config represents information required to initialize the provider.
type Config struct {
	Secret     []byte
	Issuer     string
	SessionTTL time.Duration
	AppName    string
	// ResetURL is the page that completes a password reset. The reset token
	// is appended as the "token" query parameter.
	ResetURL string
}

// Provider is a self-hosted identity provider: bcrypt password hashes and
// HS256 session tokens backed by server-side session records.
type Provider struct {
	store  Store
	mailer domain.Mailer
	log    *slog.Logger
	cfg    Config
	parser *jwt.Parser
	now    func() time.Time
}

// New creates a provider.
func New(store Store, mailer domain.Mailer, log *slog.Logger, cfg Config) *Provider {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 12 * time.Hour
	}
	return &Provider{
		store:  store,
		mailer: mailer,
		log:    log,
		cfg:    cfg,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
			jwt.WithIssuer(cfg.Issuer),
			jwt.WithExpirationRequired(),
		),
		now: time.Now,
	}
}

func checkPassword(password string) error {
	if len(password) < MinPasswordLength {
		return &domain.ValidationError{Fields: []domain.FieldError{{
			Field:   "password",
			Message: fmt.Sprintf("must be at least %d characters", MinPasswordLength),
		}}}
	}
	return nil
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hash), nil
}

func (p *Provider) CreateAccount(ctx context.Context, email, password string) (string, error) {
	if err := checkPassword(password); err != nil {
		return "", err
	}
	hash, err := hashPassword(password)
	if err != nil {
		return "", err
	}

	now := p.now().UTC()
	acct := Account{
		UID:          uuid.NewString(),
		Email:        domain.NormalizeEmail(email),
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := p.store.CreateAccount(ctx, acct); err != nil {
		return "", err
	}
	return acct.UID, nil
}

func (p *Provider) SignIn(ctx context.Context, email, password string) (domain.Session, error) {
	acct, err := p.store.AccountByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return domain.Session{}, domain.ErrInvalidCredentials
		}
		return domain.Session{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(password)); err != nil {
		return domain.Session{}, domain.ErrInvalidCredentials
	}

	now := p.now()
	rec := SessionRecord{
		ID:        uuid.NewString(),
		UID:       acct.UID,
		ExpiresAt: now.Add(p.cfg.SessionTTL).UTC(),
	}
	if err := p.store.CreateSession(ctx, rec); err != nil {
		return domain.Session{}, err
	}

	token, err := p.sign(Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        rec.ID,
			Subject:   acct.UID,
			Issuer:    p.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(rec.ExpiresAt),
		},
		Email:   acct.Email,
		Purpose: purposeSession,
	})
	if err != nil {
		return domain.Session{}, err
	}

	p.log.InfoContext(ctx, "signed in", "uid", acct.UID)
	return domain.Session{
		ID:        rec.ID,
		UID:       acct.UID,
		Email:     acct.Email,
		Token:     token,
		ExpiresAt: rec.ExpiresAt,
	}, nil
}

func (p *Provider) Verify(ctx context.Context, token string) (domain.Session, error) {
	claims, err := p.parse(token, purposeSession)
	if err != nil {
		return domain.Session{}, err
	}

	rec, err := p.store.GetSession(ctx, claims.ID)
	if err != nil {
		return domain.Session{}, err
	}
	if !rec.Active(p.now()) || rec.UID != claims.Subject {
		return domain.Session{}, domain.ErrSessionInvalid
	}

	return domain.Session{
		ID:        rec.ID,
		UID:       rec.UID,
		Email:     claims.Email,
		Token:     token,
		ExpiresAt: rec.ExpiresAt,
	}, nil
}

func (p *Provider) SignOut(ctx context.Context, token string) error {
	sess, err := p.Verify(ctx, token)
	if err != nil {
		return err
	}
	if err := p.store.RevokeSession(ctx, sess.ID); err != nil {
		return err
	}
	p.log.InfoContext(ctx, "signed out", "uid", sess.UID)
	return nil
}

func (p *Provider) Reauthenticate(ctx context.Context, uid, password string) error {
	acct, err := p.store.AccountByUID(ctx, uid)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return domain.ErrInvalidCredentials
		}
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(password)); err != nil {
		return domain.ErrInvalidCredentials
	}
	return nil
}

func (p *Provider) SendPasswordReset(ctx context.Context, email string) error {
	acct, err := p.store.AccountByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		return err
	}

	now := p.now()
	token, err := p.sign(Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   acct.UID,
			Issuer:    p.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(resetTTL)),
		},
		Email:   acct.Email,
		Purpose: purposeReset,
	})
	if err != nil {
		return err
	}

	link, err := resetLink(p.cfg.ResetURL, token)
	if err != nil {
		return err
	}

	msg := domain.Message{
		To:      acct.Email,
		Subject: "Reset your password",
		Text: fmt.Sprintf("Follow this link to reset your %s password:\n\n%s\n\nThe link expires in one hour. If you did not ask for a reset, ignore this email.",
			p.cfg.AppName, link),
		HTML: fmt.Sprintf(`<p>Follow this link to reset your %s password:</p><p><a href="%s">Reset password</a></p><p>The link expires in one hour. If you did not ask for a reset, ignore this email.</p>`,
			p.cfg.AppName, link),
	}
	if err := p.mailer.Send(ctx, msg); err != nil {
		return fmt.Errorf("sending reset email: %w", err)
	}

	p.log.InfoContext(ctx, "password reset email sent", "uid", acct.UID)
	return nil
}

func (p *Provider) ChangeEmail(ctx context.Context, uid, email string) error {
	if err := p.store.SetEmail(ctx, uid, domain.NormalizeEmail(email)); err != nil {
		return err
	}
	p.log.InfoContext(ctx, "account email changed", "uid", uid)
	return nil
}

// ConfirmPasswordReset completes a reset started by SendPasswordReset.
func (p *Provider) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	claims, err := p.parse(token, purposeReset)
	if err != nil {
		return err
	}
	return p.setPassword(ctx, claims.Subject, newPassword)
}

func (p *Provider) UpdateUserPassword(ctx context.Context, req domain.PasswordUpdate) error {
	if err := p.setPassword(ctx, req.TargetUID, req.NewPassword); err != nil {
		return err
	}
	p.log.InfoContext(ctx, "password updated by operator", "uid", req.TargetUID, "tenant_id", req.TenantID)
	return nil
}

func (p *Provider) setPassword(ctx context.Context, uid, password string) error {
	if err := checkPassword(password); err != nil {
		return err
	}
	hash, err := hashPassword(password)
	if err != nil {
		return err
	}
	if err := p.store.SetPasswordHash(ctx, uid, hash); err != nil {
		return err
	}
	return p.store.RevokeSessionsOf(ctx, uid)
}

func (p *Provider) DeleteAccount(ctx context.Context, uid string) error {
	return p.store.DeleteAccount(ctx, uid)
}

func (p *Provider) sign(claims Claims) (string, error) {
	str, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.cfg.Secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return str, nil
}

func (p *Provider) parse(token, purpose string) (Claims, error) {
	var claims Claims
	_, err := p.parser.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return p.cfg.Secret, nil
	})
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", domain.ErrSessionInvalid, err)
	}
	if claims.Purpose != purpose {
		return Claims{}, domain.ErrSessionInvalid
	}
	return claims, nil
}

func resetLink(base, token string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parsing reset url: %w", err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
