package assessment

import (
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	scoring "github.com/abimbolaoige/kfm-counsel-chat/internal/analysis/assessment"
	"github.com/abimbolaoige/kfm-counsel-chat/internal/handler/apierr"
	"github.com/abimbolaoige/kfm-counsel-chat/internal/identity"
	model "github.com/abimbolaoige/kfm-counsel-chat/internal/model/assessment"
	chatsvc "github.com/abimbolaoige/kfm-counsel-chat/internal/service/chat"
	"github.com/abimbolaoige/kfm-counsel-chat/internal/service/counsel"
	"github.com/abimbolaoige/kfm-counsel-chat/pkg/utils"
)

// Handler 问卷评估的HTTP处理器
type Handler struct {
	banks         model.Store
	conversations *counsel.Manager
}

// New 创建评估处理器
func New(banks model.Store, conversations *counsel.Manager) *Handler {
	return &Handler{banks: banks, conversations: conversations}
}

// RegisterRoutes 注册评估相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/assessments", h.handleListBanks)
	r.Get("/assessments/{kind}", h.handleGetBank)
	r.Post("/assessments/{kind}", h.handleSubmit)
}

type submitResponse struct {
	Result   scoring.Result `json:"result"`
	Recorded bool           `json:"recorded"`
}

func (h *Handler) handleListBanks(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.banks.List())
}

func (h *Handler) handleGetBank(w http.ResponseWriter, r *http.Request) {
	bank, ok := h.banks.FindByKind(chi.URLParam(r, "kind"))
	if !ok {
		utils.RespondError(w, http.StatusNotFound, "assessment not found")
		return
	}
	utils.RespondJSON(w, http.StatusOK, bank)
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	bank, ok := h.banks.FindByKind(chi.URLParam(r, "kind"))
	if !ok {
		utils.RespondError(w, http.StatusNotFound, "assessment not found")
		return
	}

	var payload struct {
		Answers []scoring.Answer `json:"answers"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := scoring.Score(bank, payload.Answers)
	if err != nil {
		apierr.Write(w, err)
		return
	}

	conv, err := h.conversations.Get(r.Context(), identity.FromContext(r.Context()))
	if err != nil {
		apierr.Write(w, err)
		return
	}

	recorded := true
	if _, err := conv.Profiles().RecordAssessment(r.Context(), result); err != nil {
		if !errors.Is(err, chatsvc.ErrPersistenceUnavailable) {
			log.Printf("[assessment] record %s result: %v", bank.Kind, err)
		}
		recorded = false
	}
	utils.RespondJSON(w, http.StatusOK, submitResponse{Result: result, Recorded: recorded})
}
