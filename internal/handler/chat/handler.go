package chat

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/abimbolaoige/kfm-counsel-chat/internal/handler/apierr"
	"github.com/abimbolaoige/kfm-counsel-chat/internal/identity"
	"github.com/abimbolaoige/kfm-counsel-chat/internal/model/chat"
	chatsvc "github.com/abimbolaoige/kfm-counsel-chat/internal/service/chat"
	"github.com/abimbolaoige/kfm-counsel-chat/internal/service/counsel"
	"github.com/abimbolaoige/kfm-counsel-chat/pkg/utils"
)

// Handler 会话与消息的HTTP处理器
type Handler struct {
	conversations *counsel.Manager
}

// New 创建聊天处理器
func New(conversations *counsel.Manager) *Handler {
	return &Handler{conversations: conversations}
}

// RegisterRoutes 注册聊天相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", h.handleListSessions)
		r.Post("/", h.handleCreateSession)
		r.Route("/{sessionID}", func(r chi.Router) {
			r.Delete("/", h.handleDeleteSession)
			r.Patch("/", h.handleRenameSession)
			r.Put("/active", h.handleSelectSession)
			r.Get("/messages", h.handleListMessages)
			r.Post("/messages", h.handleSubmitMessage)
			r.Delete("/messages", h.handleClearMessages)
		})
	})
}

type sessionsResponse struct {
	Sessions []chat.Session `json:"sessions"`
	ActiveID string         `json:"activeId"`
}

type messagesResponse struct {
	SessionID string         `json:"sessionId"`
	Messages  []chat.Message `json:"messages"`
	Unsynced  []string       `json:"unsynced,omitempty"`
	State     counsel.State  `json:"state"`
}

func (h *Handler) conversation(w http.ResponseWriter, r *http.Request) (*counsel.Conversation, bool) {
	conv, err := h.conversations.Get(r.Context(), identity.FromContext(r.Context()))
	if err != nil {
		apierr.Write(w, err)
		return nil, false
	}
	return conv, true
}

func (h *Handler) handleListSessions(w http.ResponseWriter, r *http.Request) {
	conv, ok := h.conversation(w, r)
	if !ok {
		return
	}

	sessions, err := conv.Directory().List(r.Context())
	if err != nil {
		apierr.Write(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, sessionsResponse{Sessions: sessions, ActiveID: conv.Directory().Active()})
}

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	conv, ok := h.conversation(w, r)
	if !ok {
		return
	}

	id, err := conv.NewSession(r.Context())
	if err != nil {
		apierr.Write(w, err)
		return
	}
	session, found := conv.Directory().Session(id)
	if !found {
		apierr.Write(w, chatsvc.ErrSessionNotFound)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, session)
}

func (h *Handler) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	conv, ok := h.conversation(w, r)
	if !ok {
		return
	}

	if err := conv.RemoveSession(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		apierr.Write(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, sessionsResponse{Sessions: conv.Directory().Sessions(), ActiveID: conv.Directory().Active()})
}

func (h *Handler) handleRenameSession(w http.ResponseWriter, r *http.Request) {
	conv, ok := h.conversation(w, r)
	if !ok {
		return
	}

	var payload struct {
		Title string `json:"title"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id := chi.URLParam(r, "sessionID")
	if err := conv.Directory().Rename(r.Context(), id, payload.Title); err != nil {
		apierr.Write(w, err)
		return
	}
	session, found := conv.Directory().Session(id)
	if !found {
		apierr.Write(w, chatsvc.ErrSessionNotFound)
		return
	}
	utils.RespondJSON(w, http.StatusOK, session)
}

func (h *Handler) handleSelectSession(w http.ResponseWriter, r *http.Request) {
	conv, ok := h.conversation(w, r)
	if !ok {
		return
	}

	if err := conv.SwitchSession(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		apierr.Write(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, sessionsResponse{Sessions: conv.Directory().Sessions(), ActiveID: conv.Directory().Active()})
}

// open 切换到路径中的会话后返回对话。
func (h *Handler) open(w http.ResponseWriter, r *http.Request) (*counsel.Conversation, bool) {
	conv, ok := h.conversation(w, r)
	if !ok {
		return nil, false
	}
	if err := conv.SwitchSession(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		apierr.Write(w, err)
		return nil, false
	}
	return conv, true
}

func (h *Handler) handleListMessages(w http.ResponseWriter, r *http.Request) {
	conv, ok := h.open(w, r)
	if !ok {
		return
	}
	utils.RespondJSON(w, http.StatusOK, snapshot(conv))
}

// handleSubmitMessage 在路径中的会话内提交一轮；切换与回合在同一把锁下完成。
func (h *Handler) handleSubmitMessage(w http.ResponseWriter, r *http.Request) {
	conv, ok := h.conversation(w, r)
	if !ok {
		return
	}

	var payload struct {
		Text string `json:"text"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	turn, err := conv.SubmitTo(r.Context(), chi.URLParam(r, "sessionID"), payload.Text)
	if err != nil {
		apierr.Write(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, turn)
}

func (h *Handler) handleClearMessages(w http.ResponseWriter, r *http.Request) {
	conv, ok := h.open(w, r)
	if !ok {
		return
	}

	if err := conv.Log().Clear(r.Context()); err != nil {
		apierr.Write(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, snapshot(conv))
}

func snapshot(conv *counsel.Conversation) messagesResponse {
	log := conv.Log()
	messages := log.Messages()
	var unsynced []string
	for _, msg := range messages {
		if log.Unsynced(msg.ID) {
			unsynced = append(unsynced, msg.ID)
		}
	}
	return messagesResponse{
		SessionID: log.SessionID(),
		Messages:  messages,
		Unsynced:  unsynced,
		State:     conv.State(),
	}
}
