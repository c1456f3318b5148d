package assessment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abimbolaoige/kfm-counsel-chat/internal/identity"
	model "github.com/abimbolaoige/kfm-counsel-chat/internal/model/assessment"
	"github.com/abimbolaoige/kfm-counsel-chat/internal/model/chat"
	"github.com/abimbolaoige/kfm-counsel-chat/internal/service/counsel"
	"github.com/abimbolaoige/kfm-counsel-chat/internal/storage/kv"
)

type silentSender struct{}

func (silentSender) Send(context.Context, string, []chat.Message) (string, error) { return "ok", nil }

func setup(t *testing.T) (*chi.Mux, *counsel.Manager) {
	t.Helper()
	manager := counsel.NewManager(counsel.NewFactory(counsel.Deps{
		Local: kv.NewMemoryStore(),
		Model: silentSender{},
	}))
	t.Cleanup(manager.Close)

	r := chi.NewRouter()
	New(model.NewMemoryStore(model.Seed()), manager).RegisterRoutes(r)
	return r, manager
}

func answersFor(value int, ids ...int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = `{"questionId":` + strconv.Itoa(id) + `,"selectedValue":` + strconv.Itoa(value) + `}`
	}
	return `{"answers":[` + strings.Join(parts, ",") + `]}`
}

func TestListAndGetBanks(t *testing.T) {
	r, _ := setup(t)

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/assessments", nil))
	require.Equal(t, http.StatusOK, resp.Code)

	var banks []model.Questionnaire
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&banks))
	assert.Len(t, banks, 2)

	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/assessments/singles", nil))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.NotContains(t, resp.Body.String(), "recommendation", "bands stay server side")

	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/assessments/unknown", nil))
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestSubmitRecordsResult(t *testing.T) {
	r, manager := setup(t)

	body := answersFor(5, 1, 2, 3, 4, 5)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/assessments/triage", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var got submitResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, 100, got.Result.Score)
	assert.True(t, got.Recorded)

	conv, err := manager.Get(context.Background(), nil)
	require.NoError(t, err)
	p, err := conv.Profiles().Get(context.Background())
	require.NoError(t, err)
	require.NotNil(t, p)
	require.Len(t, p.TriageHistory, 1)
	assert.Equal(t, 100, p.TriageHistory[0].Score)
}

func TestSubmitValidation(t *testing.T) {
	r, _ := setup(t)

	cases := []struct {
		name string
		body string
		want int
	}{
		{"empty answers", `{"answers":[]}`, http.StatusBadRequest},
		{"unknown question", answersFor(3, 42), http.StatusBadRequest},
		{"bad value", answersFor(9, 1), http.StatusBadRequest},
		{"malformed", `{"answers":`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := httptest.NewRecorder()
			r.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/assessments/triage", strings.NewReader(tc.body)))
			assert.Equal(t, tc.want, resp.Code)
		})
	}
}

func TestSubmitStillScoresWhenRecordingFails(t *testing.T) {
	r, _ := setup(t)

	req := httptest.NewRequest(http.MethodPost, "/assessments/triage", strings.NewReader(answersFor(1, 1, 2, 3, 4, 5)))
	req = req.WithContext(identity.WithIdentity(req.Context(), &identity.Identity{ID: "u1", Verified: true}))
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code)

	var got submitResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, 20, got.Result.Score)
	assert.False(t, got.Recorded)
}
