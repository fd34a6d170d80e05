package db

import (
	"context"
	"net/http"

	"github.com/datasud/idgo/internal/catalogsync/catcommon"
	"github.com/datasud/idgo/internal/common/httpx"
	"github.com/rs/zerolog/log"
)

// LoadScopedDBMiddleware is a middleware that loads a scoped db connection into the request context
// and closes it after the request is served. The acting user, if known, is set as the actor scope.
func LoadScopedDBMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, err := ConnCtx(r.Context())
		if err != nil {
			log.Ctx(r.Context()).Error().Err(err).Msg("unable to get db connection")
			httpx.ErrApplicationError("unable to service request at this time").Send(w)
			return
		}
		dbConn := DB(ctx)
		defer dbConn.Close(context.Background()) // use background to avoid canceled context

		if actor := catcommon.GetActorName(ctx); actor != "" {
			if err := dbConn.AddScope(ctx, Scope_Actor, actor); err != nil {
				log.Ctx(ctx).Error().Err(err).Msg("unable to set actor scope")
				httpx.ErrApplicationError("unable to service request at this time").Send(w)
				return
			}
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
