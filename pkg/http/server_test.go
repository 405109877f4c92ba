package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type boundsBody struct {
	Symbol   string  `json:"symbol" validate:"required"`
	MinPrice float64 `json:"min_price" validate:"gt=0"`
	MaxPrice float64 `json:"max_price" validate:"gtfield=MinPrice"`
	Actor    string  `json:"actor" default:"api"`
}

func newTestServer(t *testing.T, opts ...ServerOption) *Server {
	t.Helper()
	h := HandlerFunc(func(e *echo.Echo) {
		e.PUT("/bounds", func(c echo.Context) error {
			req := new(boundsBody)
			if verr := ReadAndValidateRequest(c, req); verr != nil {
				return BadRequestResponse(c, verr)
			}
			return SuccessResponse(c, req)
		})
		e.GET("/boom", func(c echo.Context) error {
			return AppErrorResponse(c, errors.New("db password leaked here"))
		})
		e.GET("/busy", func(c echo.Context) error {
			return AppErrorResponse(c, ServiceUnavailableError("store down"))
		})
	})
	return NewServer(h, append([]ServerOption{WithMetrics(false)}, opts...)...)
}

func serve(s *Server, method, target, body string, hdr map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	return rec
}

func TestValidation_UsesJSONNames(t *testing.T) {
	s := newTestServer(t)
	rec := serve(s, http.MethodPut, "/bounds", `{"min_price":10,"max_price":5}`, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp struct {
		Status int               `json:"status"`
		Data   []ValidationError `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, http.StatusBadRequest, resp.Status)
	require.Len(t, resp.Data, 2)
	assert.Equal(t, "symbol", resp.Data[0].Field)
	assert.Equal(t, "ERR_REQUIRED", resp.Data[0].Code)
	assert.Equal(t, "max_price", resp.Data[1].Field)
	assert.Equal(t, "ERR_GTFIELD", resp.Data[1].Code)
	assert.Equal(t, "max_price must be greater than min_price", resp.Data[1].Message)
}

func TestValidation_DefaultsAndMalformed(t *testing.T) {
	s := newTestServer(t)
	rec := serve(s, http.MethodPut, "/bounds", `{"symbol":"BTC","min_price":1,"max_price":2}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"actor":"api"`)

	rec = serve(s, http.MethodPut, "/bounds", `{"symbol":`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "ERR_MALFORMED")
}

func TestAppErrorResponse(t *testing.T) {
	s := newTestServer(t)
	rec := serve(s, http.MethodGet, "/boom", "", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "password")
	assert.Contains(t, rec.Body.String(), CodeInternal)

	rec = serve(s, http.MethodGet, "/busy", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), CodeUnavailable)
}

func TestCORS(t *testing.T) {
	s := newTestServer(t, WithCORS(true, "https://desk.example"))

	rec := serve(s, http.MethodOptions, "/bounds", "", map[string]string{echo.HeaderOrigin: "https://desk.example"})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://desk.example", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
	assert.Contains(t, rec.Header().Get(echo.HeaderAccessControlAllowMethods), http.MethodPut)
	assert.Equal(t, "600", rec.Header().Get(echo.HeaderAccessControlMaxAge))

	rec = serve(s, http.MethodGet, "/busy", "", map[string]string{echo.HeaderOrigin: "https://evil.example"})
	assert.Empty(t, rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
	assert.Equal(t, echo.HeaderOrigin, rec.Header().Get(echo.HeaderVary))
}

func TestAppError(t *testing.T) {
	cause := errors.New("boom")
	err := NewAppError("ERR_X", "field", "bad thing", http.StatusBadRequest).WithError(cause)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "bad thing: boom", err.Error())
	assert.False(t, err.IsServerError())
	assert.True(t, InternalError("x").IsServerError())
	assert.Equal(t, int64(1500), TooManyRequestsError(1500).Params["retry_after_ms"])
}
