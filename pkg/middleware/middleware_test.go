package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"sharednotes/pkg/models"
)

type fixedSession models.SessionStatus

func (s fixedSession) Status() models.SessionStatus {
	return models.SessionStatus(s)
}

func ok(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusTeapot)
}

func TestRequireSession(t *testing.T) {
	tests := []struct {
		name   string
		status models.SessionStatus
		want   int
	}{
		{"anonymous", models.SessionAnonymous, http.StatusUnauthorized},
		{"pending", models.SessionPending, http.StatusUnauthorized},
		{"authenticated", models.SessionAuthenticated, http.StatusTeapot},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := RequireSession(fixedSession(tt.status))(http.HandlerFunc(ok))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/notes", nil))

			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusUnauthorized {
				assert.JSONEq(t, `{"success":false,"message":"Please log in to continue","loading":false}`, rec.Body.String())
			}
		})
	}
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	h := RequestLogger(logger)(http.HandlerFunc(ok))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/session", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Contains(t, buf.String(), `"path":"/api/session"`)
	assert.Contains(t, buf.String(), `"status":418`)
}
