// Package auth identifies the user behind a request. The front proxy either
// forwards the username in a trusted header or, when a secret is configured,
// as a signed bearer token.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/datasud/idgo/internal/catalogsync/catcommon"
	"github.com/datasud/idgo/internal/catalogsync/db/dberror"
	"github.com/datasud/idgo/internal/catalogsync/db/models"
	"github.com/datasud/idgo/internal/common/apperrors"
	"github.com/datasud/idgo/internal/common/httpx"
)

type Options struct {
	TrustedHeader string
	JWTSecret     string
	Issuer        string
}

// identify reads the identity carried by r.
func identify(ctx context.Context, opts Options, r *http.Request) (*Identity, apperrors.Error) {
	if opts.JWTSecret != "" {
		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			return nil, ErrMissingIdentity.Msg("missing or invalid authorization header")
		}
		return ParseToken(ctx, opts.JWTSecret, opts.Issuer, strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer ")))
	}
	name := strings.TrimSpace(r.Header.Get(opts.TrustedHeader))
	if name == "" {
		return nil, ErrMissingIdentity
	}
	return &Identity{Username: name}, nil
}

// Identify sets the actor of every request. Requests without a valid identity
// are rejected.
func Identify(opts Options) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			id, err := identify(ctx, opts, r)
			if err != nil {
				log.Ctx(ctx).Warn().Err(err).Msg("authentication failed")
				httpx.ErrUnAuthorized(err.Error()).Send(w)
				return
			}
			ctx = catcommon.WithActor(ctx, &catcommon.Actor{Username: id.Username, IsAdmin: id.IsAdmin})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserGetter looks users up in the local store.
type UserGetter interface {
	GetUser(ctx context.Context, username string) (*models.User, apperrors.Error)
}

// LoadUser completes the actor with its local account. It runs after the
// store is bound to the request. Unknown and disabled accounts are rejected.
func LoadUser(users func(ctx context.Context) UserGetter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			actor := catcommon.GetActor(ctx)
			if actor == nil {
				httpx.ErrUnAuthorized().Send(w)
				return
			}
			u, err := users(ctx).GetUser(ctx, actor.Username)
			if err != nil {
				if errors.Is(err, dberror.ErrNotFound) {
					log.Ctx(ctx).Warn().Str("username", actor.Username).Msg("unknown user")
					httpx.SendError(w, ErrUnknownUser)
					return
				}
				log.Ctx(ctx).Error().Err(err).Msg("unable to load user")
				httpx.ErrApplicationError("unable to service request at this time").Send(w)
				return
			}
			if !u.IsActive {
				httpx.SendError(w, ErrInactiveUser)
				return
			}
			ctx = catcommon.WithActor(ctx, &catcommon.Actor{
				Username: u.Username,
				IsAdmin:  actor.IsAdmin || u.IsAdmin,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
