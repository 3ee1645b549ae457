package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/kwiatekh/docpanel-be/internal/services"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

// Role separates the two authorization domains. Admin identities come from
// configured credentials and never correspond to a users-table row.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Claims is the typed session identity carried by a token: who (Subject),
// in which domain (Role), and since when (IssuedAt).
type Claims struct {
	Role Role `json:"role"`
	jwt.RegisteredClaims
}

// IdentityKey is the context key for the session identity.
type contextKey string

const IdentityKey = contextKey("sessionIdentity")

// IdentityFromContext extracts the session identity placed by the
// middleware.
func IdentityFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(IdentityKey).(*Claims)
	return claims, ok
}

// Service mints and validates session tokens and checks the static admin
// credentials. It is constructed once at startup from configuration; there
// is no package-level state.
type Service struct {
	secret        []byte
	adminUsername string
	adminPassword string // plaintext or bcrypt hash
	sessionTTL    time.Duration
}

// NewService creates an auth Service. adminPassword may be a bcrypt hash
// (detected by the "$2" prefix) or a plaintext value.
func NewService(secret, adminUsername, adminPassword string) *Service {
	return &Service{
		secret:        []byte(secret),
		adminUsername: adminUsername,
		adminPassword: adminPassword,
		sessionTTL:    24 * time.Hour,
	}
}

func (s *Service) mint(subject string, role Role) (string, error) {
	now := time.Now()
	claims := &Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.sessionTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// MintUserToken creates a session token for a regular user.
func (s *Service) MintUserToken(username string) (string, error) {
	return s.mint(username, RoleUser)
}

// MintAdminToken creates a session token for the admin domain.
func (s *Service) MintAdminToken() (string, error) {
	return s.mint(s.adminUsername, RoleAdmin)
}

// Validate parses and verifies a token string.
func (s *Service) Validate(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// CheckAdminCredentials verifies a login attempt against the configured
// admin identity. Both comparisons are constant-time, and the failure is
// the same uniform error user login produces.
func (s *Service) CheckAdminCredentials(username, password string) error {
	userMatch := subtle.ConstantTimeCompare([]byte(username), []byte(s.adminUsername)) == 1

	var passMatch bool
	if strings.HasPrefix(s.adminPassword, "$2") {
		passMatch = bcrypt.CompareHashAndPassword([]byte(s.adminPassword), []byte(password)) == nil
	} else {
		passMatch = subtle.ConstantTimeCompare([]byte(password), []byte(s.adminPassword)) == 1
	}

	if !userMatch || !passMatch {
		log.Warn().Str("username", username).Msg("Failed admin login attempt")
		return services.ErrInvalidCredentials
	}
	return nil
}

// tokenFromRequest pulls the session token from the Authorization header,
// falling back to the session cookie.
func tokenFromRequest(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		if parts := strings.Split(authHeader, "Bearer "); len(parts) == 2 {
			return parts[1]
		}
	}
	if cookie, err := r.Cookie("token"); err == nil {
		return cookie.Value
	}
	return ""
}

// RequireRole creates a middleware that admits only sessions of the given
// role. The two domains do not overlap: a user token is rejected on admin
// routes and vice versa.
func (s *Service) RequireRole(role Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr := tokenFromRequest(r)
			if tokenStr == "" {
				http.Error(w, "Missing auth token", http.StatusUnauthorized)
				return
			}

			claims, err := s.Validate(tokenStr)
			if err != nil {
				http.Error(w, "Invalid auth token", http.StatusUnauthorized)
				return
			}
			if claims.Role != role {
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}

			ctx := context.WithValue(r.Context(), IdentityKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
