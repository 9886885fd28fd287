package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/zooconnect/ambassador-chat/internal/auth"
	chathandler "github.com/zooconnect/ambassador-chat/internal/handler/chat"
	historyhandler "github.com/zooconnect/ambassador-chat/internal/handler/history"
	personahandler "github.com/zooconnect/ambassador-chat/internal/handler/persona"
	"github.com/zooconnect/ambassador-chat/internal/middleware"
	personamodel "github.com/zooconnect/ambassador-chat/internal/model/persona"
	historysvc "github.com/zooconnect/ambassador-chat/internal/service/history"
	sessionsvc "github.com/zooconnect/ambassador-chat/internal/service/session"
	turnsvc "github.com/zooconnect/ambassador-chat/internal/service/turn"
	"github.com/zooconnect/ambassador-chat/pkg/httpx"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(
	validator auth.CredentialValidator,
	personas personamodel.Store,
	sessions *sessionsvc.Service,
	processor *turnsvc.Processor,
	queries *historysvc.Service,
	logger zerolog.Logger,
) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.CORS)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httpx.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(api chi.Router) {
		api.Use(middleware.Authenticate(validator))

		personahandler.New(personas).RegisterRoutes(api)
		chathandler.New(processor, sessions, logger).RegisterRoutes(api)
		historyhandler.New(queries).RegisterRoutes(api)
	})

	return r
}
