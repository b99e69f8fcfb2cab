// Package auth verifies the bearer tokens issued by the user service and carries the
// caller's identity through the request context.
package auth

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ariefcatur/pizza-club-orders/internal/apperr"
	"github.com/golang-jwt/jwt/v5"
)

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleChef     Role = "chef"
	RoleDeliver  Role = "deliver"
	RoleCustomer Role = "customer"
)

// Staff may see and manage every order.
func (r Role) Staff() bool { return r != RoleCustomer }

type Identity struct {
	UserID int64
	Role   Role
}

type Claims struct {
	Role Role `json:"role"`
	jwt.RegisteredClaims
}

const (
	MsgMissingToken = "Missing token"
	MsgInvalidToken = "Invalid token"
	MsgForbidden    = "You do not have permission to access this resource"
)

type ctxKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}

// ErrorWriter renders a rejected request.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

type Verifier struct {
	Secret  []byte
	OnError ErrorWriter
}

// Parse validates an HS256 token and returns the identity it carries.
func (v *Verifier) Parse(raw string) (Identity, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return v.Secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return Identity{}, apperr.Wrap(apperr.KindUnauthorized, MsgInvalidToken, err)
	}
	uid, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || uid <= 0 {
		return Identity{}, apperr.New(apperr.KindUnauthorized, MsgInvalidToken)
	}
	switch claims.Role {
	case RoleAdmin, RoleChef, RoleDeliver, RoleCustomer:
	default:
		return Identity{}, apperr.New(apperr.KindUnauthorized, MsgInvalidToken)
	}
	return Identity{UserID: uid, Role: claims.Role}, nil
}

// Middleware rejects requests without a valid bearer token.
func (v *Verifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := r.Header.Get("Authorization")
		raw, ok := strings.CutPrefix(h, "Bearer ")
		if h == "" || !ok || raw == "" {
			v.OnError(w, r, apperr.New(apperr.KindUnauthorized, MsgMissingToken))
			return
		}
		id, err := v.Parse(raw)
		if err != nil {
			v.OnError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

// RequireRole lets through only callers holding one of roles. It must run after
// Middleware.
func (v *Verifier) RequireRole(roles ...Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := FromContext(r.Context())
			if !ok {
				v.OnError(w, r, apperr.New(apperr.KindUnauthorized, MsgMissingToken))
				return
			}
			for _, role := range roles {
				if id.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			v.OnError(w, r, apperr.New(apperr.KindForbidden, MsgForbidden))
		})
	}
}

// Issue signs a token for id. The user service owns login; this is used by tooling
// and tests.
func Issue(secret []byte, id Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: id.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(id.UserID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}
