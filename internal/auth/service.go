package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/crypto/bcrypt"

	"pkt.systems/halolight/schema"
	"pkt.systems/pslog"
)

// ResetTokenPrefix starts every password reset token.
const ResetTokenPrefix = "mock-reset-token"

// Options configures the account service.
type Options struct {
	Codec TokenCodec
	Clock clockwork.Clock
	// LoginLatency is the simulated round trip for login, register and
	// password reset calls.
	LoginLatency time.Duration
	// SessionLatency is the simulated round trip for current-user lookups and logout.
	SessionLatency time.Duration
	TokenTTL       time.Duration
	RememberTTL    time.Duration
	ResetTTL       time.Duration
	Logger         pslog.Logger
}

// Service is the account API behind the login, registration and password
// reset screens.
type Service struct {
	store *Store
	opts  Options

	mu     sync.Mutex
	resets map[string]resetGrant
}

type resetGrant struct {
	userID  schema.UserID
	expires time.Time
}

// Session is the result of a successful login or registration.
type Session struct {
	User  schema.User
	Token string
	TTL   time.Duration
}

// LoginRequest carries the login form.
type LoginRequest struct {
	Email    string
	Password string
	Remember bool
	TOTP     string
}

// RegisterRequest carries the registration form.
type RegisterRequest struct {
	Name            string
	Email           string
	Password        string
	ConfirmPassword string
	Company         string
}

// ResetPasswordRequest carries the reset form.
type ResetPasswordRequest struct {
	Token           string
	Password        string
	ConfirmPassword string
}

// NewService wraps a user store with the account API.
func NewService(store *Store, opts Options) *Service {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Codec == nil {
		opts.Codec = MockTokens{Clock: opts.Clock}
	}
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = 24 * time.Hour
	}
	if opts.RememberTTL <= 0 {
		opts.RememberTTL = 7 * 24 * time.Hour
	}
	if opts.ResetTTL <= 0 {
		opts.ResetTTL = time.Hour
	}
	return &Service{store: store, opts: opts, resets: make(map[string]resetGrant)}
}

// Store returns the underlying user store.
func (s *Service) Store() *Store {
	return s.store
}

// Login verifies credentials and issues a token. Remember extends the token
// and cookie lifetime from one day to seven.
func (s *Service) Login(ctx context.Context, req LoginRequest) (Session, error) {
	if err := s.wait(ctx, s.opts.LoginLatency); err != nil {
		return Session{}, err
	}
	log := s.logger(ctx).With("email", schema.NormalizeEmail(req.Email))
	record, err := s.store.Verify(req.Email, req.Password, req.TOTP)
	if err != nil {
		log.Info("auth login rejected", "err", err)
		return Session{}, err
	}
	ttl := s.opts.TokenTTL
	if req.Remember {
		ttl = s.opts.RememberTTL
	}
	session, err := s.issue(record.Public(), ttl)
	if err != nil {
		return Session{}, err
	}
	log.Info("auth login ok", "user", record.ID, "remember", req.Remember)
	return session, nil
}

// Register creates a read-only user and signs it in for seven days.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (Session, error) {
	if err := schema.ValidatePassword(req.Password, req.ConfirmPassword); err != nil {
		return Session{}, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return Session{}, schema.ErrNameRequired
	}
	if err := schema.ValidateEmail(req.Email); err != nil {
		return Session{}, err
	}
	if err := s.wait(ctx, s.opts.LoginLatency); err != nil {
		return Session{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return Session{}, err
	}
	record, err := s.store.AddUser(Record{
		Email:        req.Email,
		Name:         name,
		Role:         schema.RoleUser,
		Permissions:  []schema.Permission{schema.PermissionRead},
		PasswordHash: string(hash),
	})
	if err != nil {
		return Session{}, err
	}
	s.logger(ctx).Info("auth user registered", "user", record.ID, "email", record.Email, "company", strings.TrimSpace(req.Company))
	return s.issue(record.Public(), s.opts.RememberTTL)
}

// ForgotPassword issues a single-use reset token for the address. Delivery
// is out of band; the token is returned so the caller can hand it over.
func (s *Service) ForgotPassword(ctx context.Context, email string) (string, error) {
	if err := schema.ValidateEmail(email); err != nil {
		return "", err
	}
	if err := s.wait(ctx, s.opts.LoginLatency); err != nil {
		return "", err
	}
	record, err := s.store.UserByEmail(email)
	if err != nil {
		return "", err
	}
	token := ResetTokenPrefix + "-" + uuid.NewString()
	s.mu.Lock()
	s.pruneResetsLocked()
	s.resets[token] = resetGrant{userID: record.ID, expires: s.opts.Clock.Now().Add(s.opts.ResetTTL)}
	s.mu.Unlock()
	s.logger(ctx).Info("auth reset token issued", "user", record.ID, "expires_in", s.opts.ResetTTL)
	return token, nil
}

// ResetPassword consumes a reset token and stores the new password.
func (s *Service) ResetPassword(ctx context.Context, req ResetPasswordRequest) error {
	if req.Password != req.ConfirmPassword {
		return schema.ErrPasswordMismatch
	}
	if !strings.HasPrefix(req.Token, ResetTokenPrefix) {
		return schema.ErrResetTokenInvalid
	}
	if err := schema.ValidatePassword(req.Password, req.ConfirmPassword); err != nil {
		return err
	}
	if err := s.wait(ctx, s.opts.LoginLatency); err != nil {
		return err
	}
	s.mu.Lock()
	grant, ok := s.resets[req.Token]
	if ok {
		delete(s.resets, req.Token)
	}
	s.mu.Unlock()
	if !ok || s.opts.Clock.Now().After(grant.expires) {
		return schema.ErrResetTokenInvalid
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if err := s.store.UpdatePassword(grant.userID, string(hash)); err != nil {
		return err
	}
	s.logger(ctx).Info("auth password reset", "user", grant.userID)
	return nil
}

// ChangePassword replaces the password of a signed-in user after checking
// the current one.
func (s *Service) ChangePassword(ctx context.Context, userID schema.UserID, current, next, confirm string) error {
	record, err := s.store.UserByID(userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(record.PasswordHash), []byte(current)); err != nil {
		return schema.ErrCurrentPasswordFail
	}
	if err := schema.ValidatePassword(next, confirm); err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.store.UpdatePassword(userID, string(hash))
}

// CurrentUser resolves a token to its user.
func (s *Service) CurrentUser(ctx context.Context, token string) (schema.User, error) {
	if err := s.wait(ctx, s.opts.SessionLatency); err != nil {
		return schema.User{}, err
	}
	return s.Resolve(token)
}

// Resolve resolves a token without the simulated latency.
func (s *Service) Resolve(token string) (schema.User, error) {
	if strings.TrimSpace(token) == "" {
		return schema.User{}, schema.ErrUnauthorized
	}
	id, err := s.opts.Codec.Parse(token)
	if err != nil {
		return schema.User{}, schema.ErrUnauthorized
	}
	record, err := s.store.UserByID(id)
	if err != nil {
		if errors.Is(err, schema.ErrUserNotFound) {
			return schema.User{}, schema.ErrUnauthorized
		}
		return schema.User{}, err
	}
	return record.Public(), nil
}

// Logout ends a session. Tokens are stateless so only the latency is simulated.
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.wait(ctx, s.opts.SessionLatency); err != nil {
		return err
	}
	s.logger(ctx).Debug("auth logout")
	return nil
}

// TokenTTL reports the lifetime for the remember choice.
func (s *Service) TokenTTL(remember bool) time.Duration {
	if remember {
		return s.opts.RememberTTL
	}
	return s.opts.TokenTTL
}

func (s *Service) issue(user schema.User, ttl time.Duration) (Session, error) {
	token, err := s.opts.Codec.Issue(user, ttl)
	if err != nil {
		return Session{}, err
	}
	return Session{User: user, Token: token, TTL: ttl}, nil
}

func (s *Service) pruneResetsLocked() {
	now := s.opts.Clock.Now()
	for token, grant := range s.resets {
		if now.After(grant.expires) {
			delete(s.resets, token)
		}
	}
}

// wait simulates network latency on the service clock.
func (s *Service) wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.opts.Clock.After(d):
		return nil
	}
}

func (s *Service) logger(ctx context.Context) pslog.Logger {
	if s.opts.Logger != nil {
		return s.opts.Logger
	}
	return pslog.Ctx(ctx)
}
