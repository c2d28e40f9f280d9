package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/twosmallonions/recipes/backend/internal/apperrors"
	"github.com/twosmallonions/recipes/backend/internal/service"
	"github.com/twosmallonions/recipes/backend/internal/types"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serveError(t *testing.T, err error) *httptest.ResponseRecorder {
	t.Helper()
	r := gin.New()
	r.Use(RequestID(), ErrorHandler(zaptest.NewLogger(t)))
	r.GET("/", func(c *gin.Context) {
		_ = c.Error(err)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	return rec
}

func TestErrorHandlerUnauthorized(t *testing.T) {
	rec := serveError(t, service.UnauthorizedError(service.AuthInvalidToken, "jwt expired", errors.New("boom")))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, rec.Body.String())
	assert.Equal(t,
		`Bearer realm="recipes", error="invalid_token", error_description="jwt expired"`,
		rec.Header().Get("WWW-Authenticate"))
}

func TestErrorHandlerValidation(t *testing.T) {
	req := types.CreateRecipeRequest{}
	verr := req.Validate()
	require.Error(t, verr)

	rec := serveError(t, apperrors.Wrap(verr, apperrors.CodeInvalid, "validation failed"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "validation_failed", body.Error)
	require.Len(t, body.Issues, 1)
	assert.Equal(t, "title", body.Issues[0].Field)
}

func TestErrorHandlerNotFoundAndConflict(t *testing.T) {
	rec := serveError(t, apperrors.New(apperrors.CodeNotFound, "recipe not found"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"not_found","message":"recipe not found"}`, rec.Body.String())

	rec = serveError(t, apperrors.New(apperrors.CodeConflict, "a recipe with this slug already exists"))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.JSONEq(t, `{"error":"conflict","message":"a recipe with this slug already exists"}`, rec.Body.String())
}

func TestErrorHandlerHidesInternalDetail(t *testing.T) {
	for _, err := range []error{
		errors.New("pq: connection refused"),
		apperrors.Wrap(errors.New("disk full"), apperrors.CodeInternal, "failed to create recipe"),
		apperrors.Wrap(&types.ValidationError{}, apperrors.CodeInternal, "stored recipe is malformed"),
	} {
		rec := serveError(t, err)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, GenericFailureBody, rec.Body.String())
		assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
	}
}

func TestErrorHandlerPassThrough(t *testing.T) {
	r := gin.New()
	r.Use(ErrorHandler(zaptest.NewLogger(t)))
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestRecovery(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), Recovery(zaptest.NewLogger(t)))
	r.GET("/", func(c *gin.Context) { panic("kaboom") })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, GenericFailureBody, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
}

func TestRequestIDPropagation(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, GetRequestID(c)) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Body.String())
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Len(t, rec.Body.String(), 36)
}
