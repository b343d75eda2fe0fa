package httpapi

import (
	"errors"
	"net/http"

	"github.com/lmhq-94/parkit-sub000/internal/auth"
)

const authHeader = "Authorization"

// authenticate runs the per-request token state machine: extract the bearer
// token, verify it as an access token, then load the account so the
// principal reflects current role and active status rather than stale
// claims.
func (a *API) authenticate(r *http.Request) (auth.Principal, string, error) {
	token := auth.ExtractBearer(r.Header.Get(authHeader))
	if token == "" {
		return auth.Principal{}, "", auth.ErrTokenRequired
	}
	claims, err := a.tokens.VerifyAccessToken(token)
	if err != nil {
		return auth.Principal{}, "", err
	}
	user, err := a.users.FindByID(r.Context(), claims.UserID())
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			return auth.Principal{}, "", auth.ErrUserNotFound
		}
		return auth.Principal{}, "", err
	}
	if !user.Active {
		return auth.Principal{}, "", auth.ErrUserInactive
	}
	return auth.Principal{User: user}, token, nil
}

// RequireAuth rejects requests without a valid, active identity.
func (a *API) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, token, err := a.authenticate(r)
		if err != nil {
			writeAuthError(w, r, err)
			return
		}
		ctx := auth.ContextWithPrincipal(r.Context(), principal)
		ctx = auth.ContextWithToken(ctx, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// OptionalAuth lets anonymous requests through with no principal attached;
// a token that is present but invalid is still rejected.
func (a *API) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, token, err := a.authenticate(r)
		if err != nil {
			if errors.Is(err, auth.ErrTokenRequired) {
				next.ServeHTTP(w, r)
				return
			}
			writeAuthError(w, r, err)
			return
		}
		ctx := auth.ContextWithPrincipal(r.Context(), principal)
		ctx = auth.ContextWithToken(ctx, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole composes after RequireAuth and admits only the listed roles.
func RequireRole(roles ...auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := auth.PrincipalFromContext(r.Context())
			if !ok {
				writeAuthError(w, r, auth.ErrAuthRequired)
				return
			}
			for _, role := range roles {
				if principal.User.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeAuthError(w, r, auth.ErrForbidden)
		})
	}
}

// RequireOwnership composes after RequireAuth: the {id} path value must
// resolve to a resource owned by the caller. Admins and managers override
// the owner match.
func (a *API) RequireOwnership(resourceType string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := auth.PrincipalFromContext(r.Context())
		if !ok {
			writeAuthError(w, r, auth.ErrAuthRequired)
			return
		}
		resourceID := r.PathValue("id")
		if resourceID == "" {
			writeAuthError(w, r, auth.ErrValidation.WithMessage("resource id is required"))
			return
		}
		if principal.User.Role == auth.RoleAdmin || principal.User.Role == auth.RoleManager {
			next.ServeHTTP(w, r)
			return
		}
		owner, err := a.resources.OwnerID(r.Context(), resourceType, resourceID)
		if err != nil {
			writeAuthError(w, r, err)
			return
		}
		if owner != principal.User.ID {
			writeAuthError(w, r, auth.ErrForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
