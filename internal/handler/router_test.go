package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/abimbolaoige/kfm-counsel-chat/internal/identity"
	assessmentModel "github.com/abimbolaoige/kfm-counsel-chat/internal/model/assessment"
	"github.com/abimbolaoige/kfm-counsel-chat/internal/model/chat"
	"github.com/abimbolaoige/kfm-counsel-chat/internal/service/counsel"
	"github.com/abimbolaoige/kfm-counsel-chat/internal/storage/kv"
)

type okSender struct{}

func (okSender) Send(context.Context, string, []chat.Message) (string, error) { return "ok", nil }

func newTestRouter(t *testing.T) (http.Handler, *identity.Verifier) {
	t.Helper()
	manager := counsel.NewManager(counsel.NewFactory(counsel.Deps{
		Local: kv.NewMemoryStore(),
		Model: okSender{},
	}))
	t.Cleanup(manager.Close)

	verifier := identity.NewVerifier("test-secret", time.Hour)
	return NewRouter(manager, assessmentModel.NewMemoryStore(assessmentModel.Seed()), verifier), verifier
}

func TestGuestReachesChat(t *testing.T) {
	r, _ := newTestRouter(t)

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/sessions", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
}

func TestUnverifiedIdentityIsGated(t *testing.T) {
	r, verifier := newTestRouter(t)
	token, err := verifier.Issue(identity.Identity{ID: "u1", Name: "Ada"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/sessions", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), `"gate":"verification"`) {
		t.Fatalf("unexpected body %s", resp.Body.String())
	}

	// 档案和问卷不受验证限制
	req = httptest.NewRequest(http.MethodGet, "/api/assessments/triage", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for assessments, got %d", resp.Code)
	}
}

func TestHealthz(t *testing.T) {
	r, _ := newTestRouter(t)

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if resp.Code != http.StatusOK || !strings.Contains(resp.Body.String(), "ok") {
		t.Fatalf("unexpected healthz response %d %s", resp.Code, resp.Body.String())
	}
}
