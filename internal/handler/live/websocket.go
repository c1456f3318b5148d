package live

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/abimbolaoige/kfm-counsel-chat/internal/identity"
	"github.com/abimbolaoige/kfm-counsel-chat/internal/model/chat"
	"github.com/abimbolaoige/kfm-counsel-chat/internal/service/counsel"
)

const (
	readTimeout  = 60 * time.Second
	writeTimeout = 10 * time.Second
	pingInterval = 54 * time.Second
	outboxSize   = 32
)

// Handler 实时会话推送，基于WebSocket
type Handler struct {
	conversations *counsel.Manager
	upgrader      websocket.Upgrader
}

// New 创建WebSocket处理器
func New(conversations *counsel.Manager) *Handler {
	return &Handler{
		conversations: conversations,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes 注册WebSocket路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws", h.handleWebSocket)
}

type inboundMessage struct {
	Type      string `json:"type"`
	Text      string `json:"text,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
	MessageID string `json:"messageId,omitempty"`
	On        bool   `json:"on,omitempty"`
}

type outgoingMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId,omitempty"`
	Data      any    `json:"data,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// connection 单个WebSocket连接。所有写操作都经由 outbox 串行执行。
type connection struct {
	id     string
	conn   *websocket.Conn
	conv   *counsel.Conversation
	outbox chan outgoingMessage
	ctx    context.Context
}

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conv, err := h.conversations.Get(r.Context(), identity.FromContext(r.Context()))
	if err != nil {
		http.Error(w, "conversation unavailable", http.StatusServiceUnavailable)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade failed: %v", err)
		return
	}
	defer ws.Close()

	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()

	c := &connection{
		id:     uuid.NewString(),
		conn:   ws,
		conv:   conv,
		outbox: make(chan outgoingMessage, outboxSize),
		ctx:    ctx,
	}
	log.Printf("[ws] connection %s opened scope=%s", c.id, identity.Scope(conv.Identity()))

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.writeLoop()
	}()

	stopSessions := conv.Directory().OnChange(func(sessions []chat.Session, active string) {
		c.push("sessions", "", map[string]any{"sessions": sessions, "activeId": active})
	})
	stopMessages := conv.Log().OnChange(func(sessionID string, messages []chat.Message) {
		c.push("messages", sessionID, messages)
	})
	stopEscalations := conv.OnEscalation(func(e counsel.Escalation) {
		c.push("escalation", e.SessionID, e)
	})
	defer func() {
		stopSessions()
		stopMessages()
		stopEscalations()
		cancel()
		<-done
		log.Printf("[ws] connection %s closed", c.id)
	}()

	c.push("connected", conv.Directory().Active(), map[string]any{
		"connectionId": c.id,
		"state":        conv.State(),
		"playback":     conv.Playback(),
	})
	c.pushSnapshot()

	ws.SetReadDeadline(time.Now().Add(readTimeout))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	for {
		var msg inboundMessage
		if err := ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[ws] read error on %s: %v", c.id, err)
			}
			return
		}
		ws.SetReadDeadline(time.Now().Add(readTimeout))
		c.handleMessage(msg)
	}
}

func (c *connection) handleMessage(msg inboundMessage) {
	switch msg.Type {
	case "submit":
		// 模型调用可能较慢，不阻塞读循环
		go c.submit(msg.Text)
	case "select":
		if err := c.conv.SwitchSession(c.ctx, msg.SessionID); err != nil {
			c.pushError(err)
			return
		}
		c.pushSnapshot()
	case "acknowledge":
		c.conv.AcknowledgeSafety()
		c.push("turn", c.conv.Directory().Active(), map[string]any{"state": c.conv.State()})
	case "speak":
		text, speaking := c.conv.ToggleSpeak(msg.MessageID)
		c.push("speech", c.conv.Log().SessionID(), map[string]any{
			"messageId": msg.MessageID,
			"speaking":  speaking,
			"text":      text,
		})
	case "speech_finished":
		c.conv.FinishSpeaking(msg.MessageID)
		c.push("speech", c.conv.Log().SessionID(), map[string]any{
			"messageId": msg.MessageID,
			"speaking":  false,
		})
	case "recording":
		c.conv.SetRecording(msg.On)
		c.push("speech", "", map[string]any{"recording": msg.On})
	default:
		c.push("error", "", map[string]string{"message": "unsupported message type: " + msg.Type})
	}
}

func (c *connection) submit(text string) {
	// 连接断开不应中断已开始的回合
	turn, err := c.conv.Submit(context.WithoutCancel(c.ctx), text)
	if err != nil {
		c.pushError(err)
		if !errors.Is(err, counsel.ErrModelCallFailed) {
			return
		}
	}
	c.push("turn", turn.SessionID, turn)
}

func (c *connection) pushSnapshot() {
	dir := c.conv.Directory()
	c.push("sessions", "", map[string]any{"sessions": dir.Sessions(), "activeId": dir.Active()})
	if sid := c.conv.Log().SessionID(); sid != "" {
		c.push("messages", sid, c.conv.Log().Messages())
	}
}

func (c *connection) pushError(err error) {
	data := map[string]string{"message": err.Error()}
	if errors.Is(err, counsel.ErrVerificationRequired) {
		data["gate"] = "verification"
	}
	c.push("error", "", data)
}

// push 将消息放入发送队列；队列已满时丢弃，后续快照会覆盖。
func (c *connection) push(kind, sessionID string, data any) {
	msg := outgoingMessage{
		Type:      kind,
		SessionID: sessionID,
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
	}
	select {
	case <-c.ctx.Done():
	case c.outbox <- msg:
	default:
		log.Printf("[ws] outbox full on %s, dropping %s", c.id, kind)
	}
}

func (c *connection) writeLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeTimeout))
			return
		case msg := <-c.outbox:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteJSON(msg); err != nil {
				log.Printf("[ws] write %s failed on %s: %v", msg.Type, c.id, err)
				c.conn.Close()
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				c.conn.Close()
				return
			}
		}
	}
}
