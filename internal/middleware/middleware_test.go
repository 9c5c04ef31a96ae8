package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"

	"xstock-options/internal/auth"
	"xstock-options/internal/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubFinder struct {
	account *domain.Account
	err     error
}

func (s *stubFinder) FindByIDAndKey(accountID, apiKey string) (*domain.Account, error) {
	if s.err != nil {
		return nil, s.err
	}
	if accountID != s.account.AccountID.String() || apiKey != "k" {
		return nil, auth.ErrIncorrectAPIKey
	}
	return s.account, nil
}

func authApp(finder auth.AccountFinder) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	app.Use(Tracing())
	app.Get("/me", RequireAuth(finder), func(c *fiber.Ctx) error {
		return c.SendString(GetAccount(c).Name)
	})
	app.Get("/admin", RequireAdmin("secret"), func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	return app
}

func TestRequireAuth(t *testing.T) {
	acct := &domain.Account{AccountID: uuid.New(), Name: "alice"}
	app := authApp(&stubFinder{account: acct})

	req := httptest.NewRequest("GET", "/me", nil)
	req.Header.Set(AccountIDHeader, acct.AccountID.String())
	req.Header.Set(APIKeyHeader, "k")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "alice", string(body))

	req = httptest.NewRequest("GET", "/me", nil)
	req.Header.Set(AccountIDHeader, acct.AccountID.String())
	req.Header.Set(APIKeyHeader, "wrong")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 401, resp.StatusCode)
}

func TestRequireAuth_LookupFailure(t *testing.T) {
	app := authApp(&stubFinder{err: errors.New("db down")})
	resp, err := app.Test(httptest.NewRequest("GET", "/me", nil))
	require.NoError(t, err)
	assert.Equal(t, 500, resp.StatusCode)

	app = authApp(nil)
	resp, err = app.Test(httptest.NewRequest("GET", "/me", nil))
	require.NoError(t, err)
	assert.Equal(t, 503, resp.StatusCode)
}

func TestRequireAdmin(t *testing.T) {
	app := authApp(nil)

	req := httptest.NewRequest("GET", "/admin", nil)
	req.Header.Set(AdminKeyHeader, "secret")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	req = httptest.NewRequest("GET", "/admin", nil)
	req.Header.Set(AdminKeyHeader, "nope")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 403, resp.StatusCode)
}

func TestTracing_ReusesIncomingID(t *testing.T) {
	app := authApp(nil)
	id := uuid.New().String()

	req := httptest.NewRequest("GET", "/admin", nil)
	req.Header.Set(traceIDHeader, id)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, id, resp.Header.Get(traceIDHeader))

	req = httptest.NewRequest("GET", "/admin", nil)
	req.Header.Set(traceIDHeader, "not-a-uuid")
	resp, err = app.Test(req)
	require.NoError(t, err)
	got := resp.Header.Get(traceIDHeader)
	assert.NotEqual(t, "not-a-uuid", got)
	_, err = uuid.Parse(got)
	assert.NoError(t, err)
}

func TestHealthMarker(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	app := fiber.New()
	app.Use(HealthMarker(rdb))
	app.Get("/x", func(c *fiber.Ctx) error { return c.SendStatus(500) })
	app.Get("/health/json", func(c *fiber.Ctx) error { return c.SendStatus(200) })

	_, err := app.Test(httptest.NewRequest("GET", "/x", nil))
	require.NoError(t, err)
	_, err = app.Test(httptest.NewRequest("GET", "/health/json", nil))
	require.NoError(t, err)

	total, _ := mr.Get(KeyReqTotal)
	errs, _ := mr.Get(KeyReqErrors)
	assert.Equal(t, "1", total)
	assert.Equal(t, "1", errs)
	entries, err := mr.List(KeyErrorLog)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	nilApp := fiber.New()
	nilApp.Use(HealthMarker(nil))
	nilApp.Get("/x", func(c *fiber.Ctx) error { return c.SendStatus(204) })
	resp, err := nilApp.Test(httptest.NewRequest("GET", "/x", nil))
	require.NoError(t, err)
	assert.Equal(t, 204, resp.StatusCode)
}

func corsApp() *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	app.Use(Tracing())
	app.Use(CORS(CORSConfig{AllowedSuffix: ".xstock.fi", DevPassword: "letmein"}))
	app.Get("/quotes", func(c *fiber.Ctx) error { return c.SendString("ok") })
	return app
}

func TestCORS(t *testing.T) {
	app := corsApp()

	resp, err := app.Test(httptest.NewRequest("GET", "/quotes", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Empty(t, resp.Header.Get(fiber.HeaderAccessControlAllowOrigin))

	req := httptest.NewRequest("GET", "/quotes", nil)
	req.Header.Set(fiber.HeaderOrigin, "https://app.XSTOCK.fi")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "https://app.XSTOCK.fi", resp.Header.Get(fiber.HeaderAccessControlAllowOrigin))
	assert.Contains(t, resp.Header.Get(fiber.HeaderAccessControlAllowHeaders), APIKeyHeader)

	req = httptest.NewRequest("OPTIONS", "/quotes", nil)
	req.Header.Set(fiber.HeaderOrigin, "http://localhost:5173")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 204, resp.StatusCode)

	req = httptest.NewRequest("GET", "/quotes", nil)
	req.Header.Set(fiber.HeaderOrigin, "https://evil.example")
	req.Header.Set(devPasswordHeader, "letmein")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
}

func TestCORS_RejectsUnknownFrontend(t *testing.T) {
	req := httptest.NewRequest("GET", "/quotes", nil)
	req.Header.Set(fiber.HeaderOrigin, "https://xstock.fi.evil.example")
	resp, err := corsApp().Test(req)
	require.NoError(t, err)
	assert.Equal(t, 403, resp.StatusCode)

	var body struct {
		Error struct {
			Code    string            `json:"code"`
			Details map[string]string `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "OriginNotAllowed", body.Error.Code)
	assert.Equal(t, "https://xstock.fi.evil.example", body.Error.Details["origin"])
}

func TestErrorHandler(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	app.Use(Tracing())
	app.Get("/rejected", func(c *fiber.Ctx) error {
		return fmt.Errorf("buy: %w", domain.ErrOptionNotListed)
	})
	app.Get("/broken", func(c *fiber.Ctx) error { return errors.New("db down") })

	type errBody struct {
		Error struct {
			Message    string                 `json:"message"`
			StatusCode int                    `json:"statusCode"`
			Code       string                 `json:"code"`
			Details    map[string]interface{} `json:"details"`
		} `json:"error"`
	}

	resp, err := app.Test(httptest.NewRequest("GET", "/rejected", nil))
	require.NoError(t, err)
	assert.Equal(t, 409, resp.StatusCode)
	var body errBody
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "OptionNotListed", body.Error.Code)

	resp, err = app.Test(httptest.NewRequest("GET", "/broken", nil))
	require.NoError(t, err)
	assert.Equal(t, 500, resp.StatusCode)
	body = errBody{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "Internal Server Error", body.Error.Message)
	assert.Equal(t, resp.Header.Get(traceIDHeader), body.Error.Details["trace_id"])

	resp, err = app.Test(httptest.NewRequest("GET", "/missing", nil))
	require.NoError(t, err)
	assert.Equal(t, 404, resp.StatusCode)
}

func TestAPIHeaders(t *testing.T) {
	app := fiber.New()
	app.Use(APIHeaders("1.2.3"))
	app.Get("/x", func(c *fiber.Ctx) error { return c.SendStatus(204) })

	resp, err := app.Test(httptest.NewRequest("GET", "/x", nil))
	require.NoError(t, err)
	assert.Equal(t, "no-store", resp.Header.Get(fiber.HeaderCacheControl))
	assert.Equal(t, "1.2.3", resp.Header.Get(VenueVersionHeader))
}
