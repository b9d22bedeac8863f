package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Dosada05/chess-arena/models"
	"github.com/golang-jwt/jwt/v4"
)

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid token")
)

// Определяем константы для имен JWT claims
const (
	jwtClaimUserID = "user_id"
	jwtClaimRoles  = "roles"
)

type tokenClaims struct {
	UserID int               `json:"user_id"`
	Roles  []models.UserRole `json:"roles"`
	jwt.RegisteredClaims
}

// Authenticator проверяет HS256 токены и кладёт Principal в контекст.
type Authenticator struct {
	secret []byte
	logger *slog.Logger
}

func NewAuthenticator(secret string, logger *slog.Logger) *Authenticator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Authenticator{secret: []byte(secret), logger: logger}
}

// Authenticate rejects requests without a valid token.
func (a *Authenticator) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, err := a.principalFromRequest(r)
		if err != nil {
			a.logger.Debug("authentication failed", slog.String("path", r.URL.Path), slog.Any("error", err))
			unauthorized(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
	})
}

// Optional attaches a principal when a token is present. A present but
// invalid token is still rejected.
func (a *Authenticator) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, err := a.principalFromRequest(r)
		switch {
		case errors.Is(err, ErrMissingToken):
			next.ServeHTTP(w, r)
		case err != nil:
			unauthorized(w, err)
		default:
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		}
	})
}

func (a *Authenticator) principalFromRequest(r *http.Request) (*models.Principal, error) {
	token := bearerToken(r)
	if token == "" {
		return nil, ErrMissingToken
	}
	return a.ParseToken(token)
}

// bearerToken берёт токен из заголовка Authorization, а для WebSocket
// рукопожатия из ?token=.
func bearerToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return r.URL.Query().Get("token")
}

func (a *Authenticator) ParseToken(tokenString string) (*models.Principal, error) {
	claims := &tokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.UserID <= 0 {
		return nil, fmt.Errorf("%w: invalid user ID value in '%s' claim: %d", ErrInvalidToken, jwtClaimUserID, claims.UserID)
	}
	for _, role := range claims.Roles {
		if role != models.RoleAdmin && role != models.RoleUser {
			return nil, fmt.Errorf("%w: invalid role value in '%s' claim: %q", ErrInvalidToken, jwtClaimRoles, role)
		}
	}
	return &models.Principal{UserID: claims.UserID, Roles: claims.Roles}, nil
}

// IssueToken signs a token for principal. Used by tooling and tests.
func IssueToken(secret string, principal models.Principal, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := tokenClaims{
		UserID: principal.UserID,
		Roles:  principal.Roles,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func unauthorized(w http.ResponseWriter, err error) {
	message := "authentication required"
	if errors.Is(err, ErrInvalidToken) {
		message = ErrInvalidToken.Error()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
