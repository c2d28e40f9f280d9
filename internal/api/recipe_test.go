package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/twosmallonions/recipes/backend/internal/api"
	"github.com/twosmallonions/recipes/backend/internal/apperrors"
	"github.com/twosmallonions/recipes/backend/internal/middleware"
	"github.com/twosmallonions/recipes/backend/internal/mocks"
	"github.com/twosmallonions/recipes/backend/internal/router"
	"github.com/twosmallonions/recipes/backend/internal/service"
	"github.com/twosmallonions/recipes/backend/internal/testdb"
	"github.com/twosmallonions/recipes/backend/internal/types"
)

const testIssuer = "https://id.example.com/realms/recipes"

var testSecret = []byte("test-secret")

func init() {
	gin.SetMode(gin.TestMode)
}

func testVerifier() *service.TokenVerifier {
	return service.NewTokenVerifier(
		func(*jwt.Token) (any, error) { return testSecret, nil },
		service.VerifierOptions{Issuer: testIssuer, Algorithms: []string{"HS256"}},
	)
}

func tokenFor(t *testing.T, sub string) string {
	t.Helper()
	now := time.Now()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss": testIssuer,
		"sub": sub,
		"iat": now.Unix(),
		"exp": now.Add(time.Hour).Unix(),
	}).SignedString(testSecret)
	require.NoError(t, err)
	return token
}

type testApp struct {
	t      *testing.T
	router *gin.Engine
}

func newTestApp(t *testing.T) *testApp {
	db := testdb.SetupSQLite(t)
	logger := zaptest.NewLogger(t)
	return &testApp{
		t: t,
		router: router.SetupRouter(router.Options{
			Logger:         logger,
			TokenValidator: testVerifier(),
			Recipes:        api.NewRecipeHandler(service.NewRecipeService(db.DB.DB, logger)),
			Health:         api.NewHealthHandler(db, logger),
		}),
	}
}

func (a *testApp) do(method, path, body, token string) *httptest.ResponseRecorder {
	a.t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func TestCreateRecipeEndToEnd(t *testing.T) {
	app := newTestApp(t)
	token := tokenFor(t, "alice")

	rec := app.do(http.MethodPost, "/", `{"title":"Pancakes"}`, token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body["id"])
	assert.Equal(t, "Pancakes", body["title"])
	assert.Equal(t, "pancakes", body["slug"])
	assert.Contains(t, body, "description")
	assert.Nil(t, body["description"])
	assert.Equal(t, []any{}, body["instructions"])
	assert.Equal(t, []any{}, body["ingredients"])
	assert.Equal(t, body["created_at"], body["updated_at"])
	assert.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader))

	rec = app.do(http.MethodGet, "/pancakes", "", token)
	require.Equal(t, http.StatusOK, rec.Code)
	var got types.FullRecipe
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, body["id"], got.ID.String())
}

func TestCreateRecipeWithoutAuthorization(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(http.MethodPost, "/", `{"title":"Pancakes"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, rec.Body.String())
	assert.Contains(t, rec.Header().Get("WWW-Authenticate"), `error="credentials_required"`)
}

func TestCreateRecipeWithBadToken(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(http.MethodPost, "/", `{"title":"Pancakes"}`, "not.a.token")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, rec.Body.String())
	assert.Contains(t, rec.Header().Get("WWW-Authenticate"), `error="invalid_token"`)
}

func TestCreateRecipeValidationFailures(t *testing.T) {
	app := newTestApp(t)
	token := tokenFor(t, "alice")

	tests := []struct {
		name   string
		body   string
		fields []string
	}{
		{name: "empty title", body: `{"title":""}`, fields: []string{"title"}},
		{name: "title too long", body: `{"title":"` + strings.Repeat("x", 1001) + `"}`, fields: []string{"title"}},
		{name: "missing title", body: `{}`, fields: []string{"title"}},
		{name: "wrong type", body: `{"title":42}`, fields: []string{"title"}},
		{name: "empty instruction", body: `{"title":"Soup","instructions":["boil",""]}`, fields: []string{"instructions[1]"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := app.do(http.MethodPost, "/", tt.body, token)
			require.Equal(t, http.StatusBadRequest, rec.Code)

			var body middleware.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, "validation_failed", body.Error)
			fields := make([]string, len(body.Issues))
			for i, is := range body.Issues {
				fields[i] = is.Field
			}
			assert.Equal(t, tt.fields, fields)
		})
	}
}

func TestCreateRecipeMalformedJSON(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(http.MethodPost, "/", `{"title":`, tokenFor(t, "alice"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, middleware.GenericFailureBody, rec.Body.String())
}

func TestCreateRecipeConflictAndNotFound(t *testing.T) {
	app := newTestApp(t)
	token := tokenFor(t, "alice")

	require.Equal(t, http.StatusOK, app.do(http.MethodPost, "/", `{"title":"Pancakes"}`, token).Code)

	rec := app.do(http.MethodPost, "/", `{"title":"Pancakes"}`, token)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error":"conflict"`)

	rec = app.do(http.MethodGet, "/waffles", "", token)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = app.do(http.MethodGet, "/pancakes", "", tokenFor(t, "bob"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAddInstructionEndToEnd(t *testing.T) {
	app := newTestApp(t)
	token := tokenFor(t, "alice")

	require.Equal(t, http.StatusOK,
		app.do(http.MethodPost, "/", `{"title":"Pancakes","description":"fluffy","instructions":["mix"]}`, token).Code)

	rec := app.do(http.MethodPost, "/pancakes/instructions", `{"text":"fry"}`, token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var got types.FullRecipe
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, []types.RecipeInstruction{{Text: "mix"}, {Text: "fry"}}, got.Instructions)
	assert.Equal(t, "fluffy", *got.Description)

	rec = app.do(http.MethodPost, "/pancakes/instructions", `{"text":"again","position":0}`, token)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = app.do(http.MethodPost, "/pancakes/instructions", `{"text":""}`, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = app.do(http.MethodPost, "/waffles/instructions", `{"text":"fry"}`, token)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHelloAndOperationalRoutes(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(http.MethodGet, "/", "", tokenFor(t, "alice"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Hello World!", rec.Body.String())

	assert.Equal(t, http.StatusUnauthorized, app.do(http.MethodGet, "/", "", "").Code)

	rec = app.do(http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = app.do(http.MethodGet, "/readyz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = app.do(http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "recipes_http_requests_total")
}

func TestRecipeTitledLikeOperationalRoute(t *testing.T) {
	app := newTestApp(t)
	token := tokenFor(t, "alice")

	rec := app.do(http.MethodPost, "/", `{"title":"Metrics"}`, token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var created types.FullRecipe
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "metrics-recipe", created.Slug)

	rec = app.do(http.MethodGet, "/"+created.Slug, "", token)
	require.Equal(t, http.StatusOK, rec.Code)
	var got types.FullRecipe
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, created.ID, got.ID)

	rec = app.do(http.MethodPost, "/"+created.Slug+"/instructions", `{"text":"count"}`, token)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = app.do(http.MethodGet, "/metrics", "", "")
	assert.Contains(t, rec.Body.String(), "recipes_http_requests_total")
}

func TestStaticTopLevelRoutesCannotBeSlugs(t *testing.T) {
	app := newTestApp(t)
	id := uuid.Must(uuid.NewV7())

	for _, route := range app.router.Routes() {
		segment, _, _ := strings.Cut(strings.TrimPrefix(route.Path, "/"), "/")
		if segment == "" || strings.HasPrefix(segment, ":") || strings.HasPrefix(segment, "*") {
			continue
		}
		assert.NotEqual(t, segment, service.Slugify(segment, id), "route %s %s", route.Method, route.Path)
	}
}

func TestListRecipesEndToEnd(t *testing.T) {
	app := newTestApp(t)
	alice := tokenFor(t, "alice")

	rec := app.do(http.MethodGet, "/recipes", "", alice)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	require.Equal(t, http.StatusOK, app.do(http.MethodPost, "/", `{"title":"Soup"}`, alice).Code)
	require.Equal(t, http.StatusOK, app.do(http.MethodPost, "/", `{"title":"Bread","description":"sourdough"}`, alice).Code)
	require.Equal(t, http.StatusOK, app.do(http.MethodPost, "/", `{"title":"Stew"}`, tokenFor(t, "bob")).Code)

	rec = app.do(http.MethodGet, "/recipes", "", alice)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []types.RecipeSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 2)
	assert.Equal(t, "bread", list[0].Slug)
	assert.Equal(t, "sourdough", *list[0].Description)
	assert.Equal(t, "soup", list[1].Slug)

	assert.Equal(t, http.StatusUnauthorized, app.do(http.MethodGet, "/recipes", "", "").Code)
}

func TestAddIngredientEndToEnd(t *testing.T) {
	app := newTestApp(t)
	token := tokenFor(t, "alice")

	require.Equal(t, http.StatusOK,
		app.do(http.MethodPost, "/", `{"title":"Pancakes","ingredients":["2 eggs"]}`, token).Code)

	rec := app.do(http.MethodPost, "/pancakes/ingredients", `{"text":"200g flour"}`, token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var got types.FullRecipe
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, []types.RecipeIngredient{{Text: "2 eggs"}, {Text: "200g flour"}}, got.Ingredients)
	assert.Empty(t, got.Instructions)

	rec = app.do(http.MethodPost, "/pancakes/ingredients", `{"text":"milk","position":1}`, token)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = app.do(http.MethodPost, "/pancakes/ingredients", `{"text":"milk","position":"first"}`, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = app.do(http.MethodPost, "/waffles/ingredients", `{"text":"milk"}`, token)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPositionBeyondColumnRangeIsRejected(t *testing.T) {
	app := newTestApp(t)
	token := tokenFor(t, "alice")
	require.Equal(t, http.StatusOK, app.do(http.MethodPost, "/", `{"title":"Soup"}`, token).Code)

	for _, path := range []string{"/soup/instructions", "/soup/ingredients"} {
		rec := app.do(http.MethodPost, path, `{"text":"x","position":3000000000}`, token)
		require.Equal(t, http.StatusBadRequest, rec.Code, path)

		var body middleware.ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Len(t, body.Issues, 1)
		assert.Equal(t, "position", body.Issues[0].Field)
		assert.Equal(t, "max", body.Issues[0].Rule)
	}
}

type failingPinger struct{}

func (failingPinger) HealthCheck(context.Context) error { return errors.New("connection refused") }

func TestReadinessUnavailable(t *testing.T) {
	r := gin.New()
	api.NewHealthHandler(failingPinger{}, zaptest.NewLogger(t)).RegisterRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func newMockedRouter(t *testing.T, recipes *mocks.MockRecipeService, owner string) *gin.Engine {
	r := gin.New()
	r.Use(middleware.ErrorHandler(zaptest.NewLogger(t)))
	group := r.Group("/", func(c *gin.Context) { c.Set(middleware.UserIDKey, owner) })
	api.NewRecipeHandler(recipes).RegisterRoutes(group)
	return r
}

func TestCreateRecipeHandlerPassesOwner(t *testing.T) {
	recipes := new(mocks.MockRecipeService)
	now := time.Now().UTC()
	full := &types.FullRecipe{Title: "Pancakes", Slug: "pancakes", CreatedAt: now, UpdatedAt: now, Instructions: []types.RecipeInstruction{}}
	recipes.On("CreateRecipe", mock.Anything, mock.MatchedBy(func(req *types.CreateRecipeRequest) bool {
		return req.Title == "Pancakes" && req.Description != nil && *req.Description == "fluffy"
	}), "user-42").Return(full, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"title":"Pancakes","description":"fluffy"}`))
	newMockedRouter(t, recipes, "user-42").ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	recipes.AssertExpectations(t)
}

func TestCreateRecipeHandlerRejectsBeforeStore(t *testing.T) {
	recipes := new(mocks.MockRecipeService)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"title":""}`))
	newMockedRouter(t, recipes, "user-42").ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	recipes.AssertNotCalled(t, "CreateRecipe", mock.Anything, mock.Anything, mock.Anything)
}

func TestGetRecipeHandlerStoreFailure(t *testing.T) {
	recipes := new(mocks.MockRecipeService)
	recipes.On("GetFullRecipeBySlug", mock.Anything, "pancakes", "user-42").
		Return(nil, apperrors.Wrap(errors.New("connection reset"), apperrors.CodeInternal, "failed to load recipe"))

	rec := httptest.NewRecorder()
	newMockedRouter(t, recipes, "user-42").ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/pancakes", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, middleware.GenericFailureBody, rec.Body.String())
}
