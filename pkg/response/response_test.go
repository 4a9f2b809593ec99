package response

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidCallback(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want bool
	}{
		{"plain", "rlSync_1_ab12", true},
		{"dollar", "$cb", true},
		{"namespaced", "window.cb", true},
		{"leading digit", "1cb", false},
		{"script injection", "cb);alert(1)//", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidCallback(tt.in))
		})
	}
}

func TestCallback(t *testing.T) {
	rec := httptest.NewRecorder()

	Callback(rec, "cb_1", map[string]interface{}{"success": true, "rowId": "42"})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/javascript; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, `/**/cb_1({"rowId":"42","success":true});`, rec.Body.String())
}

func TestBeacon(t *testing.T) {
	rec := httptest.NewRecorder()

	Beacon(rec)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestError(t *testing.T) {
	rec := httptest.NewRecorder()

	Unauthorized(rec, "invalid token")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"success":false,"error":"invalid token"}`, rec.Body.String())
}
