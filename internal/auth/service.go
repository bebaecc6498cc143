// Package auth is the storefront's mock credential service. Sessions live in
// the device namespace under the token, isAuthenticated and user keys.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/alexedwards/argon2id"
	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-storefront/internal/common"
	"github.com/noah-isme/toko-storefront/internal/lock"
	"github.com/noah-isme/toko-storefront/internal/obs"
	"github.com/noah-isme/toko-storefront/internal/storage"
)

const (
	defaultTokenTTL = 24 * time.Hour

	// Session keys inside a device namespace.
	KeyToken           = "token"
	KeyIsAuthenticated = "isAuthenticated"
	KeyUser            = "user"

	credentialPrefix = "credentials:"
)

var (
	// ErrInvalidCredentials is returned when a registered email's password does not match.
	ErrInvalidCredentials = common.NewAppError("INVALID_CREDENTIALS", "invalid email or password", http.StatusUnauthorized, nil)
	// ErrEmailInUse is returned by Signup for an already registered email.
	ErrEmailInUse = common.NewAppError("EMAIL_ALREADY_USED", "email is already registered", http.StatusConflict, nil)
	// ErrNoSession is returned when the device has no complete session record.
	ErrNoSession = errors.New("auth: no active session")
	// ErrInvalidToken is returned when a token fails verification.
	ErrInvalidToken = errors.New("auth: invalid token")
)

// userNamespace derives stable user ids from emails.
var userNamespace = uuid.MustParse("6f1c1f8e-3b1a-4c3e-9a57-5d2f0b8c7a11")

var validate = validator.New(validator.WithRequiredStructEnabled())

// User is the session's user summary.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Session is the result of login, signup and session checks.
type Session struct {
	User      User      `json:"user"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type credential struct {
	User         User      `json:"user"`
	PasswordHash string    `json:"passwordHash"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Config configures the auth service.
type Config struct {
	Store     storage.Store
	Secret    string
	TokenTTL  time.Duration
	Latency   time.Duration
	Issuer    string
	Audience  string
	ClockSkew time.Duration
	Logger    zerolog.Logger
	// Locker serialises signups per email; an in-process locker when nil.
	Locker lock.Locker
}

// Service implements login, signup, logout and session checks.
type Service struct {
	store     storage.Store
	locker    lock.Locker
	secret    []byte
	tokenTTL  time.Duration
	latency   time.Duration
	validator TokenValidator
	log       zerolog.Logger
	now       func() time.Time
}

// NewService constructs a Service instance with sane defaults.
func NewService(cfg Config) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("auth: store is required")
	}
	secret := strings.TrimSpace(cfg.Secret)
	if secret == "" {
		return nil, errors.New("auth: secret is required")
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		issuer = "toko-storefront"
	}
	audience := strings.TrimSpace(cfg.Audience)
	if audience == "" {
		audience = "toko-storefront-web"
	}
	skew := cfg.ClockSkew
	if skew < 0 {
		skew = 0
	}
	locker := cfg.Locker
	if locker == nil {
		locker = lock.NewLocalLocker()
	}
	return &Service{
		store:    cfg.Store,
		locker:   locker,
		secret:   []byte(secret),
		tokenTTL: ttl,
		latency:  cfg.Latency,
		validator: TokenValidator{
			Issuer:    issuer,
			Audience:  audience,
			ClockSkew: skew,
			Algorithm: jwa.HS256,
		},
		log: cfg.Logger,
		now: time.Now,
	}, nil
}

// WithNow allows tests to override the time provider.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// UserID is the stable identifier for email.
func UserID(email string) string {
	return uuid.NewSHA1(userNamespace, []byte(normaliseEmail(email))).String()
}

// Login starts a session for deviceID. Unknown emails are accepted and named
// after their local part; registered emails must match the stored password.
func (s *Service) Login(ctx context.Context, deviceID, email, password string) (Session, error) {
	email = normaliseEmail(email)
	if err := validateFields(map[string]fieldRule{
		"email":    {email, "required,email"},
		"password": {password, "required,min=6"},
	}); err != nil {
		obs.CountAuthAttempt("login", "invalid")
		return Session{}, err
	}
	if err := common.Pause(ctx, s.latency); err != nil {
		return Session{}, err
	}

	user := User{ID: UserID(email), Name: localPart(email), Email: email}
	cred, found, err := s.credential(ctx, email)
	if err != nil {
		return Session{}, err
	}
	if found {
		ok, err := argon2id.ComparePasswordAndHash(password, cred.PasswordHash)
		if err != nil || !ok {
			obs.CountAuthAttempt("login", "rejected")
			return Session{}, ErrInvalidCredentials
		}
		user = cred.User
	}

	sess, err := s.startSession(ctx, deviceID, user)
	if err != nil {
		return Session{}, err
	}
	obs.CountAuthAttempt("login", "ok")
	return sess, nil
}

// Signup registers a credential and starts a session for deviceID.
func (s *Service) Signup(ctx context.Context, deviceID, name, email, password string) (Session, error) {
	name = strings.TrimSpace(name)
	email = normaliseEmail(email)
	if err := validateFields(map[string]fieldRule{
		"name":     {name, "required,min=2"},
		"email":    {email, "required,email"},
		"password": {password, "required,min=6"},
	}); err != nil {
		obs.CountAuthAttempt("signup", "invalid")
		return Session{}, err
	}
	if err := common.Pause(ctx, s.latency); err != nil {
		return Session{}, err
	}

	hash, err := argon2id.CreateHash(password, argon2id.DefaultParams)
	if err != nil {
		return Session{}, fmt.Errorf("hash password: %w", err)
	}
	user := User{ID: UserID(email), Name: name, Email: email}
	err = s.locker.WithLock(ctx, lock.CredentialKey(email), func(ctx context.Context) error {
		if _, found, err := s.credential(ctx, email); err != nil {
			return err
		} else if found {
			return ErrEmailInUse
		}
		if err := storage.SetJSON(ctx, s.store, credentialPrefix+email, credential{User: user, PasswordHash: hash, CreatedAt: s.now().UTC()}); err != nil {
			return fmt.Errorf("store credential: %w", err)
		}
		return nil
	})
	if errors.Is(err, ErrEmailInUse) {
		obs.CountAuthAttempt("signup", "conflict")
	}
	if err != nil {
		return Session{}, err
	}

	sess, err := s.startSession(ctx, deviceID, user)
	if err != nil {
		return Session{}, err
	}
	obs.CountAuthAttempt("signup", "ok")
	return sess, nil
}

// Logout removes the device's session keys. It succeeds without a session.
func (s *Service) Logout(ctx context.Context, deviceID string) error {
	if err := s.session(deviceID).Delete(ctx, KeyToken, KeyIsAuthenticated, KeyUser); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	obs.CountAuthAttempt("logout", "ok")
	return nil
}

// CheckSession returns the device's session when all three keys are present,
// isAuthenticated is "true" and the token verifies for the stored user.
func (s *Service) CheckSession(ctx context.Context, deviceID string) (Session, error) {
	store := s.session(deviceID)

	var flag string
	ok, err := storage.GetJSON(ctx, store, KeyIsAuthenticated, &flag)
	if err != nil {
		return Session{}, err
	}
	if !ok || flag != "true" {
		return Session{}, ErrNoSession
	}
	var token string
	if ok, err = storage.GetJSON(ctx, store, KeyToken, &token); err != nil {
		return Session{}, err
	} else if !ok || token == "" {
		return Session{}, ErrNoSession
	}
	var user User
	if ok, err = storage.GetJSON(ctx, store, KeyUser, &user); err != nil {
		return Session{}, err
	} else if !ok {
		return Session{}, ErrNoSession
	}

	subject, err := s.ParseToken(token)
	if err != nil {
		return Session{}, err
	}
	if subject != user.ID {
		return Session{}, fmt.Errorf("%w: subject does not match stored user", ErrInvalidToken)
	}
	return Session{User: user, Token: token}, nil
}

func (s *Service) startSession(ctx context.Context, deviceID string, user User) (Session, error) {
	token, expiresAt, err := s.signToken(user.ID)
	if err != nil {
		return Session{}, fmt.Errorf("sign token: %w", err)
	}
	store := s.session(deviceID)
	if err := storage.SetJSON(ctx, store, KeyToken, token); err != nil {
		return Session{}, fmt.Errorf("store session: %w", err)
	}
	if err := storage.SetJSON(ctx, store, KeyIsAuthenticated, "true"); err != nil {
		return Session{}, fmt.Errorf("store session: %w", err)
	}
	if err := storage.SetJSON(ctx, store, KeyUser, user); err != nil {
		return Session{}, fmt.Errorf("store session: %w", err)
	}
	s.log.Info().Str("device", deviceID).Str("user_id", user.ID).Msg("session started")
	return Session{User: user, Token: token, ExpiresAt: expiresAt}, nil
}

func (s *Service) credential(ctx context.Context, email string) (credential, bool, error) {
	var cred credential
	found, err := storage.GetJSON(ctx, s.store, credentialPrefix+email, &cred)
	if err != nil {
		return credential{}, false, fmt.Errorf("load credential: %w", err)
	}
	return cred, found, nil
}

func (s *Service) session(deviceID string) storage.Store {
	return storage.Namespace(s.store, deviceID)
}

type fieldRule struct {
	value string
	tag   string
}

func validateFields(rules map[string]fieldRule) error {
	details := map[string]string{}
	for field, rule := range rules {
		if err := validate.Var(rule.value, rule.tag); err != nil {
			var verrs validator.ValidationErrors
			if errors.As(err, &verrs) && len(verrs) > 0 {
				details[field] = describe(verrs[0])
			} else {
				details[field] = "is invalid"
			}
		}
	}
	if len(details) > 0 {
		return common.ValidationError("invalid payload", details)
	}
	return nil
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "min":
		return "must be at least " + fe.Param() + " characters"
	default:
		return "is invalid"
	}
}

func normaliseEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func localPart(email string) string {
	if i := strings.Index(email, "@"); i > 0 {
		return email[:i]
	}
	return email
}
