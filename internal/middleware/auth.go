package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/zooconnect/ambassador-chat/internal/auth"
	"github.com/zooconnect/ambassador-chat/internal/model/identity"
	"github.com/zooconnect/ambassador-chat/pkg/httpx"
)

type contextKey struct{ name string }

var identityKey = &contextKey{"identity"}

// Authenticate validates the bearer token and stores the resulting identity
// in the request context. Requests without a token proceed as visitors, so
// the access evaluator can deny them with its own reason code.
func Authenticate(validator auth.CredentialValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), identity.Identity{Role: identity.RoleVisitor})))
				return
			}

			token := strings.TrimPrefix(header, "Bearer ")
			if token == header {
				httpx.RespondError(w, http.StatusUnauthorized, "malformed authorization header")
				return
			}

			id, err := validator.Validate(token)
			if err != nil {
				httpx.RespondError(w, http.StatusUnauthorized, "invalid credentials")
				return
			}

			next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), id)))
		})
	}
}

func withIdentity(ctx context.Context, id identity.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFrom extracts the caller identity placed by Authenticate.
func IdentityFrom(ctx context.Context) (identity.Identity, bool) {
	id, ok := ctx.Value(identityKey).(identity.Identity)
	return id, ok
}
