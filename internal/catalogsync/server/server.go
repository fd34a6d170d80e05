package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"

	"github.com/datasud/idgo/internal/catalogsync/apis"
	"github.com/datasud/idgo/internal/catalogsync/auth"
	"github.com/datasud/idgo/internal/catalogsync/catcommon"
	"github.com/datasud/idgo/internal/catalogsync/config"
	"github.com/datasud/idgo/internal/catalogsync/db"
	"github.com/datasud/idgo/internal/common/httpx"
	"github.com/datasud/idgo/internal/common/logtrace"
	commonmiddleware "github.com/datasud/idgo/internal/common/middleware"
)

type SyncServer struct {
	Router *chi.Mux
	cfg    *config.ConfigParam
	api    *apis.Service
}

// CreateNewServer builds the server around the synchronization services.
// ext is nil when no extraction service is configured.
func CreateNewServer(cfg *config.ConfigParam, rec apis.Reconciler, ext apis.Extractor) (*SyncServer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("no configuration")
	}
	s := &SyncServer{
		Router: chi.NewRouter(),
		cfg:    cfg,
	}
	s.api = apis.New(APIStore, rec, ext, apis.Options{
		UploadDir:       cfg.Datagis.UploadDir,
		MaxUploadSize:   cfg.Datagis.DownloadSizeLimit,
		ExtractorSource: cfg.Extractor.Source,
		DefaultDstSRS:   cfg.Extractor.DefaultDstSRS,
		FootprintSRS:    cfg.Extractor.FootprintSRS,
	})
	return s, nil
}

func (s *SyncServer) MountHandlers() {
	s.Router.Use(commonmiddleware.RequestLogger)
	s.Router.Use(commonmiddleware.PanicHandler)
	if s.cfg.HandleCORS {
		s.Router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.cfg.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Content-Length", "Accept-Encoding", s.cfg.Auth.TrustedHeader},
			ExposedHeaders:   []string{"Location", commonmiddleware.RequestIDHeader},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
	if timeout, err := config.ParseDuration(s.cfg.RequestTimeout); err == nil && timeout > 0 {
		s.Router.Use(commonmiddleware.SetTimeout(timeout))
	}
	s.mountResourceHandlers(s.Router)
	if logtrace.IsTraceEnabled() {
		walkFunc := func(method string, route string, handler http.Handler, middlewares ...func(http.Handler) http.Handler) error {
			log.Trace().Str("method", method).Str("route", route).Msg("route mounted")
			return nil
		}
		if err := chi.Walk(s.Router, walkFunc); err != nil {
			log.Error().Err(err).Msg("unable to list routes")
		}
	}
}

func (s *SyncServer) mountResourceHandlers(r chi.Router) {
	r.Get("/version", s.getVersion)
	r.Get("/ready", s.getReadiness)
	r.Group(func(r chi.Router) {
		r.Use(auth.Identify(auth.Options{
			TrustedHeader: s.cfg.Auth.TrustedHeader,
			JWTSecret:     s.cfg.Auth.JWTSecret,
			Issuer:        s.cfg.Auth.Issuer,
		}))
		r.Use(db.LoadScopedDBMiddleware)
		r.Use(auth.LoadUser(func(ctx context.Context) auth.UserGetter { return db.DB(ctx) }))
		s.api.Router(r)
	})
}

type GetVersionRsp struct {
	ServerVersion string `json:"serverVersion"`
	ApiVersion    string `json:"apiVersion"`
}

func (s *SyncServer) getVersion(w http.ResponseWriter, r *http.Request) {
	log.Ctx(r.Context()).Debug().Msg("GetVersion")
	rsp := &GetVersionRsp{
		ServerVersion: "Idgo Catalog Sync: " + catcommon.ServerVersion,
		ApiVersion:    catcommon.ApiVersion,
	}
	httpx.SendJsonRsp(r.Context(), w, http.StatusOK, rsp)
}

func (s *SyncServer) getReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, err := db.ConnCtx(r.Context())
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("Database connection failed during readiness check")
		httpx.SendJsonRsp(r.Context(), w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"error":  "database connection failed",
		})
		return
	}
	defer db.DB(ctx).Close(context.Background())

	httpx.SendJsonRsp(r.Context(), w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}
