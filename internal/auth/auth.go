// Package auth issues and verifies the access/refresh token pair and owns
// user creation.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/garnizeh/fieldops/internal/apperr"
	"github.com/garnizeh/fieldops/internal/authz"
	"github.com/garnizeh/fieldops/internal/models"
	"github.com/garnizeh/fieldops/pkg/repository"
)

const (
	TokenAccess  = "access"
	TokenRefresh = "refresh"

	MinPasswordLength = 8
	// MaxPasswordBytes is the most bcrypt will hash.
	MaxPasswordBytes  = 72
	maxUsernameLength = 150
)

// Claims are the JWT claims of both token kinds. Subject holds the user id.
type Claims struct {
	Role      models.Role `json:"role"`
	TokenType string      `json:"token_type"`
	jwt.RegisteredClaims
}

type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// NewUser is the input of Signup and CreateUser.
type NewUser struct {
	Username string      `json:"username"`
	Email    string      `json:"email"`
	Password string      `json:"password"`
	Role     models.Role `json:"role"`
}

type Service struct {
	users      repository.UserRepo
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	hashCost   int
	logger     *slog.Logger
	now        func() time.Time
}

func New(users repository.UserRepo, secret string, accessTTL, refreshTTL time.Duration, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if accessTTL <= 0 {
		accessTTL = 15 * time.Minute
	}
	if refreshTTL <= 0 {
		refreshTTL = 24 * time.Hour
	}
	return &Service{
		users:      users,
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		hashCost:   bcrypt.DefaultCost,
		logger:     logger,
		now:        time.Now,
	}
}

// SetHashCost overrides the bcrypt cost used for new passwords.
func (s *Service) SetHashCost(cost int) {
	if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
		s.hashCost = cost
	}
}

// Login checks the credentials and issues a token pair. Unknown users, wrong
// passwords and inactive accounts all yield apperr.ErrUnauthenticated.
func (s *Service) Login(ctx context.Context, username, password string) (*TokenPair, error) {
	u, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if u == nil {
		return nil, fmt.Errorf("unknown user %q: %w", username, apperr.ErrUnauthenticated)
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, fmt.Errorf("bad password for %q: %w", username, apperr.ErrUnauthenticated)
	}
	if !u.IsActive {
		return nil, fmt.Errorf("inactive user %q: %w", username, apperr.ErrUnauthenticated)
	}

	return s.issue(u)
}

// Refresh exchanges a valid refresh token of an active user for a new pair.
func (s *Service) Refresh(ctx context.Context, refresh string) (*TokenPair, error) {
	u, err := s.userFromToken(ctx, refresh, TokenRefresh)
	if err != nil {
		return nil, err
	}
	return s.issue(u)
}

// Authenticate resolves an access token to its active user.
func (s *Service) Authenticate(ctx context.Context, access string) (*models.User, error) {
	return s.userFromToken(ctx, access, TokenAccess)
}

func (s *Service) userFromToken(ctx context.Context, raw, kind string) (*models.User, error) {
	claims, err := s.parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, apperr.ErrUnauthenticated)
	}
	if claims.TokenType != kind {
		return nil, fmt.Errorf("expected %s token, got %q: %w", kind, claims.TokenType, apperr.ErrUnauthenticated)
	}

	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("bad subject %q: %w", claims.Subject, apperr.ErrUnauthenticated)
	}

	u, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if u == nil || !u.IsActive {
		return nil, fmt.Errorf("user %d missing or inactive: %w", id, apperr.ErrUnauthenticated)
	}

	return u, nil
}

func (s *Service) parse(raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, err
	}
	return claims, nil
}

func (s *Service) issue(u *models.User) (*TokenPair, error) {
	access, err := s.sign(u, TokenAccess, s.accessTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := s.sign(u, TokenRefresh, s.refreshTTL)
	if err != nil {
		return nil, err
	}
	return &TokenPair{Access: access, Refresh: refresh}, nil
}

func (s *Service) sign(u *models.User, kind string, ttl time.Duration) (string, error) {
	now := s.now()
	claims := Claims{
		Role:      u.Role,
		TokenType: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(u.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", kind, err)
	}
	return tok, nil
}

// Signup creates a user on behalf of actor, who must be an admin.
func (s *Service) Signup(ctx context.Context, actor *models.User, in NewUser) (*models.User, error) {
	if err := authz.Authorize(actor, authz.Create, authz.Target{Kind: authz.User}); err != nil {
		return nil, err
	}
	u, err := s.CreateUser(ctx, in)
	if err != nil {
		return nil, err
	}
	s.logger.Info("user signed up", "username", u.Username, "role", u.Role, "by", actor.Username)
	return u, nil
}

// CreateUser validates in and stores an active user with a hashed password.
func (s *Service) CreateUser(ctx context.Context, in NewUser) (*models.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)

	if err := validateNewUser(in); err != nil {
		return nil, err
	}

	existing, err := s.users.GetUserByUsername(ctx, in.Username)
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if existing != nil {
		return nil, apperr.NewValidation("username", "A user with that username already exists.")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &models.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: string(hash),
		Role:         in.Role,
		IsActive:     true,
	}
	id, err := s.users.CreateUser(ctx, u)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperr.NewValidation("username", "A user with that username already exists.")
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	u.ID = id

	return u, nil
}

// EnsureAdmin creates in as an admin when no admin exists yet. It reports
// whether a user was created.
func (s *Service) EnsureAdmin(ctx context.Context, in NewUser) (bool, error) {
	n, err := s.users.CountUsersByRole(ctx, models.RoleAdmin)
	if err != nil {
		return false, fmt.Errorf("count admins: %w", err)
	}
	if n > 0 {
		return false, nil
	}

	in.Role = models.RoleAdmin
	u, err := s.CreateUser(ctx, in)
	if err != nil {
		return false, err
	}
	s.logger.Info("bootstrap admin created", "username", u.Username)
	return true, nil
}

func validateNewUser(in NewUser) error {
	v := &apperr.ValidationError{}
	switch {
	case in.Username == "":
		v.Add("username", "This field is required.")
	case utf8.RuneCountInString(in.Username) > maxUsernameLength:
		v.Add("username", fmt.Sprintf("Ensure this field has no more than %d characters.", maxUsernameLength))
	}
	if in.Email != "" {
		if _, err := mail.ParseAddress(in.Email); err != nil {
			v.Add("email", "Enter a valid email address.")
		}
	}
	switch {
	case utf8.RuneCountInString(in.Password) < MinPasswordLength:
		v.Add("password", fmt.Sprintf("Ensure this field has at least %d characters.", MinPasswordLength))
	case len(in.Password) > MaxPasswordBytes:
		v.Add("password", fmt.Sprintf("Ensure this field has no more than %d bytes.", MaxPasswordBytes))
	}
	if !in.Role.Valid() {
		v.Add("role", fmt.Sprintf("%q is not a valid choice.", in.Role))
	}
	return v.OrNil()
}
