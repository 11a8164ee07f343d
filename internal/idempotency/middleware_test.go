package idempotency

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestApp mounts the middleware in front of a counting handler that
// returns a distinct body per execution, so a replay is distinguishable
// from a re-run.
func newTestApp(store *memStore) (*fiber.App, *int32) {
	var handlerCalls int32
	app := fiber.New()
	app.Use(Middleware(NewCoordinator(store)))
	app.Post("/api/v1/transfers", func(c *fiber.Ctx) error {
		n := atomic.AddInt32(&handlerCalls, 1)
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"success": true,
			"data":    fiber.Map{"execution": n},
		})
	})
	app.Get("/api/v1/transfers/t-1", func(c *fiber.Ctx) error {
		atomic.AddInt32(&handlerCalls, 1)
		return c.JSON(fiber.Map{"success": true})
	})
	return app, &handlerCalls
}

func postTransfer(t *testing.T, app *fiber.App, key, body string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/transfers", strings.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if key != "" {
		req.Header.Set(HeaderKey, key)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func TestMiddleware(t *testing.T) {
	t.Run("rejects a malformed key before touching the store", func(t *testing.T) {
		store := newMemStore()
		app, handlerCalls := newTestApp(store)

		resp := postTransfer(t, app, "bad key!", `{"amount":100}`)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
		assert.Zero(t, atomic.LoadInt32(handlerCalls))
		assert.Zero(t, atomic.LoadInt32(&store.calls))
	})

	t.Run("rejects a key longer than 255 characters", func(t *testing.T) {
		store := newMemStore()
		app, handlerCalls := newTestApp(store)

		resp := postTransfer(t, app, strings.Repeat("a", 256), `{"amount":100}`)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
		assert.Zero(t, atomic.LoadInt32(handlerCalls))
	})

	t.Run("replays the stored response byte for byte", func(t *testing.T) {
		store := newMemStore()
		app, handlerCalls := newTestApp(store)

		first := postTransfer(t, app, "key-1", `{"amount":100}`)
		assert.Equal(t, fiber.StatusCreated, first.StatusCode)
		assert.Empty(t, first.Header.Get(HeaderReplayed))
		firstBody := readBody(t, first)

		second := postTransfer(t, app, "key-1", `{"amount":100}`)
		assert.Equal(t, fiber.StatusCreated, second.StatusCode)
		assert.Equal(t, "true", second.Header.Get(HeaderReplayed))
		assert.Equal(t, "key-1", second.Header.Get(HeaderOriginalRequestID))
		assert.Equal(t, firstBody, readBody(t, second))

		// The handler ran exactly once; the second response came from
		// the store.
		assert.Equal(t, int32(1), atomic.LoadInt32(handlerCalls))
	})

	t.Run("same key with a different body executes fresh", func(t *testing.T) {
		store := newMemStore()
		app, handlerCalls := newTestApp(store)

		postTransfer(t, app, "key-1", `{"amount":100}`)
		resp := postTransfer(t, app, "key-1", `{"amount":999}`)

		assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
		assert.Empty(t, resp.Header.Get(HeaderReplayed))
		assert.Equal(t, int32(2), atomic.LoadInt32(handlerCalls))
	})

	t.Run("requests without a key bypass the coordinator", func(t *testing.T) {
		store := newMemStore()
		app, handlerCalls := newTestApp(store)

		postTransfer(t, app, "", `{"amount":100}`)
		resp := postTransfer(t, app, "", `{"amount":100}`)

		assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
		assert.Empty(t, resp.Header.Get(HeaderReplayed))
		assert.Equal(t, int32(2), atomic.LoadInt32(handlerCalls))
		assert.Zero(t, atomic.LoadInt32(&store.calls))
	})

	t.Run("non-mutating methods bypass the coordinator", func(t *testing.T) {
		store := newMemStore()
		app, handlerCalls := newTestApp(store)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/transfers/t-1", nil)
		req.Header.Set(HeaderKey, "key-1")
		resp, err := app.Test(req)
		require.NoError(t, err)

		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Empty(t, resp.Header.Get(HeaderReplayed))
		assert.Equal(t, int32(1), atomic.LoadInt32(handlerCalls))
		assert.Zero(t, atomic.LoadInt32(&store.calls))
	})

	t.Run("a held lock answers 409", func(t *testing.T) {
		store := newMemStore()
		store.locks["key-1"] = lockStateProcessing
		app, handlerCalls := newTestApp(store)

		resp := postTransfer(t, app, "key-1", `{"amount":100}`)
		assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
		assert.Zero(t, atomic.LoadInt32(handlerCalls))
	})
}
