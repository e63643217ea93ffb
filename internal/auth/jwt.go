package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenLifetime = 12 * time.Hour

var jwtSecret []byte

// Claims carries the authenticated user identity through the request
// context. EmpresaAlias selects the tenant schema for persistence.
type Claims struct {
	UserID        string `json:"user_id"`
	Email         string `json:"email"`
	Nombre        string `json:"nombre"`
	Rol           string `json:"rol"`
	EmpresaAlias  string `json:"empresa_alias"`
	EmpresaNombre string `json:"empresa_nombre"`
	jwt.RegisteredClaims
}

type contextKey string

const claimsKey contextKey = "claims"

// Init loads the signing secret. Without JWT_SECRET a random ephemeral
// secret is generated; tokens then stop working across restarts.
func Init() error {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			return fmt.Errorf("failed to generate ephemeral JWT secret: %w", err)
		}
		secret = hex.EncodeToString(buf)
		log.Println("Warning: JWT_SECRET not set, using ephemeral secret (tokens invalid after restart)")
	}
	jwtSecret = []byte(secret)
	return nil
}

// GenerateToken issues a signed token for an authenticated user
func GenerateToken(userID, email, nombre, rol, empresaAlias, empresaNombre string) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID:        userID,
		Email:         email,
		Nombre:        nombre,
		Rol:           rol,
		EmpresaAlias:  empresaAlias,
		EmpresaNombre: empresaNombre,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenLifetime)),
			Subject:   userID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtSecret)
}

// ParseToken validates a token string and returns its claims
func ParseToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return jwtSecret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// JWTMiddleware protects /api/* routes; /health and /api/login stay
// open so monitoring and authentication itself work.
func JWTMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" || r.URL.Path == "/api/login" {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			http.Error(w, `{"error":"missing or malformed Authorization header"}`, http.StatusUnauthorized)
			return
		}

		claims, err := ParseToken(strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			http.Error(w, `{"error":"invalid or expired token"}`, http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetClaimsFromContext returns the claims stored by the middleware
func GetClaimsFromContext(ctx context.Context) (*Claims, error) {
	claims, ok := ctx.Value(claimsKey).(*Claims)
	if !ok || claims == nil {
		return nil, errors.New("no claims in context")
	}
	return claims, nil
}
