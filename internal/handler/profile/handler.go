package profile

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/abimbolaoige/kfm-counsel-chat/internal/handler/apierr"
	"github.com/abimbolaoige/kfm-counsel-chat/internal/identity"
	model "github.com/abimbolaoige/kfm-counsel-chat/internal/model/profile"
	"github.com/abimbolaoige/kfm-counsel-chat/internal/service/counsel"
	"github.com/abimbolaoige/kfm-counsel-chat/pkg/utils"
)

// Handler 用户档案的HTTP处理器
type Handler struct {
	conversations *counsel.Manager
}

// New 创建档案处理器
func New(conversations *counsel.Manager) *Handler {
	return &Handler{conversations: conversations}
}

// RegisterRoutes 注册档案相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/profile", h.handleGetProfile)
	r.Put("/profile", h.handleSaveProfile)
}

func (h *Handler) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	conv, err := h.conversations.Get(r.Context(), identity.FromContext(r.Context()))
	if err != nil {
		apierr.Write(w, err)
		return
	}

	p, err := conv.Profiles().Get(r.Context())
	if err != nil {
		apierr.Write(w, err)
		return
	}
	if p == nil {
		p = &model.UserProfile{}
	}
	utils.RespondJSON(w, http.StatusOK, p)
}

func (h *Handler) handleSaveProfile(w http.ResponseWriter, r *http.Request) {
	conv, err := h.conversations.Get(r.Context(), identity.FromContext(r.Context()))
	if err != nil {
		apierr.Write(w, err)
		return
	}

	var payload model.UserProfile
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	// 评估历史只能通过提交问卷追加。
	payload.TriageHistory = nil

	saved, err := conv.Profiles().Save(r.Context(), payload)
	if err != nil {
		apierr.Write(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, saved)
}
