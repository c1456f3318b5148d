package profile

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/abimbolaoige/kfm-counsel-chat/internal/identity"
	"github.com/abimbolaoige/kfm-counsel-chat/internal/model/chat"
	model "github.com/abimbolaoige/kfm-counsel-chat/internal/model/profile"
	"github.com/abimbolaoige/kfm-counsel-chat/internal/service/counsel"
	"github.com/abimbolaoige/kfm-counsel-chat/internal/storage/kv"
)

type silentSender struct{}

func (silentSender) Send(context.Context, string, []chat.Message) (string, error) { return "ok", nil }

func setupRouter(t *testing.T) *chi.Mux {
	t.Helper()
	manager := counsel.NewManager(counsel.NewFactory(counsel.Deps{
		Local: kv.NewMemoryStore(),
		Model: silentSender{},
	}))
	t.Cleanup(manager.Close)

	r := chi.NewRouter()
	New(manager).RegisterRoutes(r)
	return r
}

func TestGetProfileEmpty(t *testing.T) {
	r := setupRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/profile", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var got model.UserProfile
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Name != "" || len(got.TriageHistory) != 0 {
		t.Fatalf("expected empty profile, got %+v", got)
	}
}

func TestSaveProfileIgnoresTriageHistory(t *testing.T) {
	r := setupRouter(t)

	body := `{"name":"  Ada ","spouseName":"Sam","struggles":["communication"],"triageHistory":[{"date":1,"score":99,"summary":"forged"}]}`
	req := httptest.NewRequest(http.MethodPut, "/profile", strings.NewReader(body))
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/profile", nil)
	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	var got model.UserProfile
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Name != "Ada" || got.SpouseName != "Sam" {
		t.Fatalf("unexpected profile: %+v", got)
	}
	if len(got.TriageHistory) != 0 {
		t.Fatalf("triage history must not be writable, got %+v", got.TriageHistory)
	}
}

func TestSaveProfileRejectsUnknownFields(t *testing.T) {
	r := setupRouter(t)

	req := httptest.NewRequest(http.MethodPut, "/profile", strings.NewReader(`{"nickname":"x"}`))
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestMemberProfileWithoutRemoteStore(t *testing.T) {
	r := setupRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/profile", nil)
	req = req.WithContext(identity.WithIdentity(req.Context(), &identity.Identity{ID: "u1", Name: "Ada", Verified: true}))
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.Code)
	}
}
