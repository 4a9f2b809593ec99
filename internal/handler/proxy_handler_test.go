package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"readiness-sync/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockProxyService struct {
	requests []*domain.Request
	resp     *domain.Response
}

func (m *mockProxyService) Handle(ctx context.Context, req *domain.Request) *domain.Response {
	m.requests = append(m.requests, req)
	if m.resp != nil {
		return m.resp
	}
	return &domain.Response{Success: true, RowID: "42"}
}

func execURL(t *testing.T, req interface{}, callback string) string {
	t.Helper()
	data, err := json.Marshal(req)
	require.NoError(t, err)
	q := url.Values{}
	q.Set("data", string(data))
	if callback != "" {
		q.Set("callback", callback)
	}
	return "/exec?" + q.Encode()
}

func validCreate() *domain.Request {
	return &domain.Request{
		Action: domain.ActionCreate,
		Assessment: &domain.Assessment{
			VentureID:        "remote-1",
			VentureName:      "Acme",
			AdvisorName:      "Jane",
			AssessmentNumber: 1,
			AssessmentDate:   "2026-05-04T10:00:00Z",
			IP:               3,
		},
	}
}

func decodeCallback(t *testing.T, body, callback string) *domain.Response {
	t.Helper()
	prefix := "/**/" + callback + "("
	require.True(t, strings.HasPrefix(body, prefix), body)
	require.True(t, strings.HasSuffix(body, ");"), body)
	var resp domain.Response
	require.NoError(t, json.Unmarshal([]byte(body[len(prefix):len(body)-2]), &resp))
	return &resp
}

func TestProxyHandler_CallbackMode(t *testing.T) {
	svc := &mockProxyService{}
	h := NewProxyHandler(svc, nil)

	rec := httptest.NewRecorder()
	h.Exec(rec, httptest.NewRequest(http.MethodGet, execURL(t, validCreate(), "rlSync_1_abc"), nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/javascript; charset=utf-8", rec.Header().Get("Content-Type"))
	resp := decodeCallback(t, rec.Body.String(), "rlSync_1_abc")
	assert.True(t, resp.Success)
	assert.Equal(t, "42", resp.RowID.String())

	require.Len(t, svc.requests, 1)
	assert.Equal(t, 3, svc.requests[0].IP)
}

func TestProxyHandler_BeaconMode(t *testing.T) {
	svc := &mockProxyService{}
	h := NewProxyHandler(svc, nil)

	rec := httptest.NewRecorder()
	h.Exec(rec, httptest.NewRequest(http.MethodGet, execURL(t, validCreate(), ""), nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
	assert.Len(t, svc.requests, 1)
}

func TestProxyHandler_RejectsBadCallbackName(t *testing.T) {
	svc := &mockProxyService{}
	h := NewProxyHandler(svc, nil)

	rec := httptest.NewRecorder()
	h.Exec(rec, httptest.NewRequest(http.MethodGet, execURL(t, validCreate(), "alert(1)//"), nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, svc.requests)
}

func TestProxyHandler_InvalidPayloads(t *testing.T) {
	tooLong := validCreate()
	tooLong.VentureName = strings.Repeat("x", 256)

	badScore := validCreate()
	badScore.Team = 11

	updateWithoutRow := validCreate()
	updateWithoutRow.Action = domain.ActionUpdate

	tests := []struct {
		name string
		req  interface{}
	}{
		{"unknown action", &domain.Request{Action: "drop"}},
		{"name too long", tooLong},
		{"score out of range", badScore},
		{"update without row", updateWithoutRow},
		{"create without assessment", &domain.Request{Action: domain.ActionCreate}},
		{"not json", "nope"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockProxyService{}
			h := NewProxyHandler(svc, nil)

			rec := httptest.NewRecorder()
			target := execURL(t, tt.req, "cb")
			if s, ok := tt.req.(string); ok {
				target = "/exec?callback=cb&data=" + url.QueryEscape(s)
			}
			h.Exec(rec, httptest.NewRequest(http.MethodGet, target, nil))

			assert.Equal(t, http.StatusOK, rec.Code)
			resp := decodeCallback(t, rec.Body.String(), "cb")
			assert.False(t, resp.Success)
			assert.NotEmpty(t, resp.Error)
			assert.Empty(t, svc.requests)
		})
	}
}

func TestProxyHandler_ListPassesLimit(t *testing.T) {
	svc := &mockProxyService{resp: &domain.Response{Success: true, Rows: []domain.Row{{VentureName: "Acme"}}}}
	h := NewProxyHandler(svc, nil)

	rec := httptest.NewRecorder()
	h.Exec(rec, httptest.NewRequest(http.MethodGet, execURL(t, &domain.Request{Action: domain.ActionList, Limit: 200}, "cb"), nil))

	resp := decodeCallback(t, rec.Body.String(), "cb")
	require.Len(t, resp.Rows, 1)
	assert.Equal(t, "Acme", resp.Rows[0].VentureName)
	assert.Equal(t, 200, svc.requests[0].Limit)
}
