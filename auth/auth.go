package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/diewo77/fieldbill/httpx"
)

type ctxKey string

const (
	sessionCookieName = "session"
	userIDCtxKey      = ctxKey("userID")
	identityCtxKey    = ctxKey("identity")
)

// Roles carried by an Identity.
const (
	RoleTechnician = "technician"
	RoleAdmin      = "admin"
)

// Identity is the authenticated caller.
type Identity struct {
	UserID uint   `json:"user_id"`
	Name   string `json:"name"`
	Role   string `json:"role"`
}

func (i Identity) IsAdmin() bool { return i.Role == RoleAdmin }

// Resolver loads the current identity of a user id, reporting false when the
// user no longer exists or is disabled. Set it during app bootstrap via
// SetResolver. If nil, token claims are trusted and cookie sessions carry the
// user id only.
type Resolver func(ctx context.Context, uid uint) (Identity, bool)

var (
	mu            sync.RWMutex
	resolver      Resolver
	sessionSecret string
	jwtSecret     string
)

// SetResolver configures the global resolver used by Middleware.
func SetResolver(r Resolver) {
	mu.Lock()
	defer mu.Unlock()
	resolver = r
}

// SetSecrets overrides the session and token signing secrets. Empty values
// keep the environment defaults.
func SetSecrets(session, token string) {
	mu.Lock()
	defer mu.Unlock()
	sessionSecret = session
	jwtSecret = token
}

func currentResolver() Resolver {
	mu.RLock()
	defer mu.RUnlock()
	return resolver
}

// Secret returns the session secret, SESSION_SECRET, or a default dev value.
func Secret() string {
	mu.RLock()
	s := sessionSecret
	mu.RUnlock()
	if s != "" {
		return s
	}
	if s := os.Getenv("SESSION_SECRET"); s != "" {
		return s
	}
	return "devsessionsecret"
}

// CreateSession sets a signed cookie with the user id.
func CreateSession(w http.ResponseWriter, userID uint) {
	uidStr := strconv.FormatUint(uint64(userID), 10)
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    uidStr + "." + sign(uidStr),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(14 * 24 * time.Hour),
	})
}

// ClearSession deletes the session cookie.
func ClearSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{Name: sessionCookieName, Value: "", Path: "/", Expires: time.Unix(0, 0), HttpOnly: true, SameSite: http.SameSiteLaxMode})
}

func sign(value string) string {
	mac := hmac.New(sha256.New, []byte(Secret()))
	mac.Write([]byte(value))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// ParseSession validates cookie and returns user id.
func ParseSession(r *http.Request) (uint, bool) {
	c, err := r.Cookie(sessionCookieName)
	if err != nil || c.Value == "" {
		return 0, false
	}
	uidStr, sig, ok := strings.Cut(c.Value, ".")
	if !ok {
		return 0, false
	}
	if !hmac.Equal([]byte(sig), []byte(sign(uidStr))) {
		return 0, false
	}
	id64, err := strconv.ParseUint(uidStr, 10, 64)
	if err != nil {
		return 0, false
	}
	return uint(id64), true
}

// WithUserID stores user id in context.
func WithUserID(ctx context.Context, userID uint) context.Context {
	return context.WithValue(ctx, userIDCtxKey, userID)
}

// UserIDFromContext extracts user id.
func UserIDFromContext(ctx context.Context) (uint, bool) {
	if id, ok := IdentityFromContext(ctx); ok {
		return id.UserID, true
	}
	v := ctx.Value(userIDCtxKey)
	if v == nil {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok
}

// WithIdentity stores the caller identity (and its user id) in context.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	ctx = WithUserID(ctx, id.UserID)
	return context.WithValue(ctx, identityCtxKey, id)
}

// IdentityFromContext returns the caller identity set by Middleware.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityCtxKey).(Identity)
	return id, ok
}

// Middleware authenticates the request from a Bearer token or, failing that,
// the session cookie. Unauthenticated requests pass through without identity.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id, ok := authenticate(r); ok {
			r = r.WithContext(WithIdentity(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

func authenticate(r *http.Request) (Identity, bool) {
	var id Identity
	if raw, ok := bearerToken(r); ok {
		claims, err := ParseToken(raw)
		if err != nil {
			return Identity{}, false
		}
		id = claims
	} else if uid, ok := ParseSession(r); ok {
		id = Identity{UserID: uid}
	} else {
		return Identity{}, false
	}
	if res := currentResolver(); res != nil {
		return res(r.Context(), id.UserID)
	}
	return id, true
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if len(h) < len(bearerPrefix) || !strings.EqualFold(h[:len(bearerPrefix)], bearerPrefix) {
		return "", false
	}
	raw := strings.TrimSpace(h[len(bearerPrefix):])
	return raw, raw != ""
}

// RequireAuth returns 401 JSON when the request carries no identity.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := UserIDFromContext(r.Context()); !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin returns 403 JSON unless the caller is an admin.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := IdentityFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if !id.IsAdmin() {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeError(w http.ResponseWriter, status int, code string) {
	httpx.JSONError(w, status, code, nil)
}
