package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/abimbolaoige/kfm-counsel-chat/internal/model/chat"
	"github.com/abimbolaoige/kfm-counsel-chat/internal/service/counsel"
	"github.com/abimbolaoige/kfm-counsel-chat/internal/storage/kv"
)

type replySender struct{ reply string }

func (s replySender) Send(context.Context, string, []chat.Message) (string, error) {
	return s.reply, nil
}

func setupRouter(t *testing.T) *chi.Mux {
	t.Helper()
	manager := counsel.NewManager(counsel.NewFactory(counsel.Deps{
		Local: kv.NewMemoryStore(),
		Model: replySender{reply: "Be patient with each other. [[Ephesians 4:2]]"},
	}))
	t.Cleanup(manager.Close)

	r := chi.NewRouter()
	New(manager).RegisterRoutes(r)
	return r
}

func do(t *testing.T, r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func decode[T any](t *testing.T, resp *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(resp.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", resp.Body.String(), err)
	}
	return v
}

func TestListSessionsBootstraps(t *testing.T) {
	r := setupRouter(t)

	resp := do(t, r, http.MethodGet, "/sessions", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	got := decode[sessionsResponse](t, resp)
	if len(got.Sessions) != 1 || got.ActiveID != got.Sessions[0].ID {
		t.Fatalf("unexpected bootstrap: %+v", got)
	}
}

func TestSubmitAndReadMessages(t *testing.T) {
	r := setupRouter(t)
	sessions := decode[sessionsResponse](t, do(t, r, http.MethodGet, "/sessions", ""))
	id := sessions.ActiveID

	resp := do(t, r, http.MethodPost, "/sessions/"+id+"/messages", `{"text":"How can we communicate better?"}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if !strings.Contains(resp.Body.String(), `"state":"idle"`) || !strings.Contains(resp.Body.String(), "[[Ephesians 4:2]]") {
		t.Fatalf("unexpected turn body %s", resp.Body.String())
	}

	log := decode[messagesResponse](t, do(t, r, http.MethodGet, "/sessions/"+id+"/messages", ""))
	if len(log.Messages) != 2 || log.Messages[0].Role != chat.RoleUser || log.Messages[1].Role != chat.RoleModel {
		t.Fatalf("unexpected log: %+v", log)
	}

	list := decode[sessionsResponse](t, do(t, r, http.MethodGet, "/sessions", ""))
	if list.Sessions[0].Title != "How can we communicate better?" || list.Sessions[0].MessageCount != 2 {
		t.Fatalf("unexpected rollup: %+v", list.Sessions[0])
	}
}

func TestSubmitTrippedTurn(t *testing.T) {
	r := setupRouter(t)
	id := decode[sessionsResponse](t, do(t, r, http.MethodGet, "/sessions", "")).ActiveID

	resp := do(t, r, http.MethodPost, "/sessions/"+id+"/messages", `{"text":"I feel scared for my life"}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	turn := decode[map[string]any](t, resp)
	if turn["state"] != "safety_tripped" || turn["reply"] != nil || turn["escalation"] == nil {
		t.Fatalf("unexpected tripped turn: %+v", turn)
	}
}

func TestSubmitValidation(t *testing.T) {
	r := setupRouter(t)
	id := decode[sessionsResponse](t, do(t, r, http.MethodGet, "/sessions", "")).ActiveID

	if resp := do(t, r, http.MethodPost, "/sessions/"+id+"/messages", `{"text":"  "}`); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty text, got %d", resp.Code)
	}
	if resp := do(t, r, http.MethodPost, "/sessions/"+id+"/messages", `{`); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad body, got %d", resp.Code)
	}
	if resp := do(t, r, http.MethodGet, "/sessions/session_missing/messages", ""); resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
	if resp := do(t, r, http.MethodPost, "/sessions/session_missing/messages", `{"text":"hello"}`); resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for submit to a missing session, got %d", resp.Code)
	}
	if resp := do(t, r, http.MethodPatch, "/sessions/session_missing", `{"title":"Finances"}`); resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for rename of a missing session, got %d", resp.Code)
	}
}

func TestSubmitTargetsRouteSession(t *testing.T) {
	r := setupRouter(t)
	first := decode[sessionsResponse](t, do(t, r, http.MethodGet, "/sessions", "")).ActiveID
	second := decode[chat.Session](t, do(t, r, http.MethodPost, "/sessions", "")).ID

	resp := do(t, r, http.MethodPost, "/sessions/"+first+"/messages", `{"text":"hello"}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if turn := decode[map[string]any](t, resp); turn["sessionId"] != first {
		t.Fatalf("turn must run in %q, got %+v", first, turn)
	}

	list := decode[sessionsResponse](t, do(t, r, http.MethodGet, "/sessions", ""))
	if list.ActiveID != first {
		t.Fatalf("expected %q active after submit, got %q", first, list.ActiveID)
	}
	for _, s := range list.Sessions {
		if s.ID == second && s.MessageCount != 0 {
			t.Fatalf("untouched session gained messages: %+v", s)
		}
	}
}

func TestCreateRenameDeleteSession(t *testing.T) {
	r := setupRouter(t)
	first := decode[sessionsResponse](t, do(t, r, http.MethodGet, "/sessions", "")).ActiveID

	resp := do(t, r, http.MethodPost, "/sessions", "")
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.Code)
	}
	created := decode[chat.Session](t, resp)
	if created.Title != chat.DefaultTitle {
		t.Fatalf("unexpected new session %+v", created)
	}

	resp = do(t, r, http.MethodPatch, "/sessions/"+created.ID, `{"title":"Finances"}`)
	if resp.Code != http.StatusOK || decode[chat.Session](t, resp).Title != "Finances" {
		t.Fatalf("rename failed: %d %s", resp.Code, resp.Body.String())
	}

	resp = do(t, r, http.MethodDelete, "/sessions/"+created.ID, "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	after := decode[sessionsResponse](t, resp)
	if len(after.Sessions) != 1 || after.ActiveID != first {
		t.Fatalf("expected reselection of %q, got %+v", first, after)
	}
}

func TestClearMessagesGuest(t *testing.T) {
	r := setupRouter(t)
	id := decode[sessionsResponse](t, do(t, r, http.MethodGet, "/sessions", "")).ActiveID
	do(t, r, http.MethodPost, "/sessions/"+id+"/messages", `{"text":"Hello"}`)

	resp := do(t, r, http.MethodDelete, "/sessions/"+id+"/messages", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	log := decode[messagesResponse](t, resp)
	if len(log.Messages) != 1 || log.Messages[0].ID != chat.WelcomeID {
		t.Fatalf("expected the cleared greeting, got %+v", log.Messages)
	}
}
