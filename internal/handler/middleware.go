package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/Shivanand-hulikatti/workshop-enrollment/internal/logger"
	"github.com/Shivanand-hulikatti/workshop-enrollment/internal/model"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
)

// Logger returns an access log middleware writing one entry per request.
func Logger(log *logger.Logger) func(http.Handler) http.Handler {
	log = logger.OrNop(log).With("component", "http")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				log.Info("request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"bytes", ww.BytesWritten(),
					"duration", time.Since(start),
					"request_id", chimiddleware.GetReqID(r.Context()),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

// CORS allows any origin to call the API.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, PATCH, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Request-Id")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// IdentityClaims are the bearer token claims carrying the caller's identity.
type IdentityClaims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
	jwt.RegisteredClaims
}

type identityKey struct{}

// WithIdentity stores id in ctx.
func WithIdentity(ctx context.Context, id *model.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom returns the authenticated identity, or nil for anonymous requests.
func IdentityFrom(ctx context.Context) *model.Identity {
	id, _ := ctx.Value(identityKey{}).(*model.Identity)
	return id
}

var errBadAuthHeader = errors.New("authorization header must be a bearer token")

// Identity verifies an optional HS256 bearer token. Requests without an
// Authorization header pass through anonymously; a header that does not
// verify is rejected with 401.
func Identity(secret []byte, log *logger.Logger) func(http.Handler) http.Handler {
	log = logger.OrNop(log).With("component", "identity")
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}
			claims, err := parseBearer(parser, header, secret)
			if err != nil {
				log.Debug("rejecting bearer token", "error", err)
				writeError(w, http.StatusUnauthorized, "invalid bearer token")
				return
			}
			id := &model.Identity{Email: claims.Email, Name: claims.Name, Phone: claims.Phone}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

func parseBearer(parser *jwt.Parser, header string, secret []byte) (*IdentityClaims, error) {
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(raw) == "" {
		return nil, errBadAuthHeader
	}
	claims := &IdentityClaims{}
	tok, err := parser.ParseWithClaims(strings.TrimSpace(raw), claims, func(*jwt.Token) (any, error) {
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !tok.Valid {
		return nil, errors.New("token is not valid")
	}
	return claims, nil
}
