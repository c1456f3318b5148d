package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/abimbolaoige/kfm-counsel-chat/internal/handler/assessment"
	"github.com/abimbolaoige/kfm-counsel-chat/internal/handler/chat"
	"github.com/abimbolaoige/kfm-counsel-chat/internal/handler/live"
	"github.com/abimbolaoige/kfm-counsel-chat/internal/handler/profile"
	"github.com/abimbolaoige/kfm-counsel-chat/internal/identity"
	middlewarePkg "github.com/abimbolaoige/kfm-counsel-chat/internal/middleware"
	assessmentModel "github.com/abimbolaoige/kfm-counsel-chat/internal/model/assessment"
	"github.com/abimbolaoige/kfm-counsel-chat/internal/service/counsel"
	"github.com/abimbolaoige/kfm-counsel-chat/pkg/utils"
)

// NewRouter wires HTTP routes to core services. A nil verifier treats every
// caller as a guest.
func NewRouter(conversations *counsel.Manager, banks assessmentModel.Store, verifier *identity.Verifier) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)
	r.Use(middlewarePkg.Identity(verifier))

	chatHandler := chat.New(conversations)
	liveHandler := live.New(conversations)
	profileHandler := profile.New(conversations)
	assessmentHandler := assessment.New(banks, conversations)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(api chi.Router) {
		profileHandler.RegisterRoutes(api)
		assessmentHandler.RegisterRoutes(api)

		// 聊天相关接口需要已验证的身份（访客不受限）
		api.Group(func(gated chi.Router) {
			gated.Use(middlewarePkg.RequireVerified)
			chatHandler.RegisterRoutes(gated)
			liveHandler.RegisterRoutes(gated)
		})
	})

	return r
}
