package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestServer() *Server {
	return New(zerolog.Nop())
}

func TestRegisterHTTPHealthzReportsOK(t *testing.T) {
	s := newTestServer()
	mux := http.NewServeMux()
	s.RegisterHTTP(mux)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "OK", rec.Body.String())
}

func TestHandleCompileReturnsJSONErrorOnBadModel(t *testing.T) {
	s := newTestServer()
	mux := http.NewServeMux()
	s.RegisterHTTP(mux)

	req := httptest.NewRequest(http.MethodPost, "/compile", strings.NewReader("not an onnx model"))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.Contains(t, rec.Body.String(), `"request_id"`)
}

func TestJSONEscapeHandlesQuotesAndNewlines(t *testing.T) {
	require.Equal(t, `a\"b\\c\nd`, jsonEscape(`a"b\c`+"\n"+"d"))
}
