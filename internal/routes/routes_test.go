package routes

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/fasthttp/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contacthub/contacthub/internal/activity"
	"github.com/contacthub/contacthub/internal/config"
	"github.com/contacthub/contacthub/internal/contacts"
	"github.com/contacthub/contacthub/internal/logging"
	"github.com/contacthub/contacthub/internal/realtime"
)

func newTestApp(t *testing.T, cache *redis.Client) *fiber.App {
	t.Helper()
	cfg := config.Config{
		AppName:         "ContactHub",
		AppEnv:          "test",
		JWTSecret:       "test-secret",
		AccessTokenTTL:  time.Hour,
		BcryptCost:      4,
		IdempotencyTTL:  time.Minute,
		StorageBackend:  config.StorageDisk,
		UploadDir:       t.TempDir(),
		UploadURLPrefix: "/uploads",
		MaxUploadBytes:  1 << 20,
		CORSOrigins:     "*",
	}
	app := fiber.New()
	require.NoError(t, Setup(app, Deps{Cfg: cfg, Cache: cache, Logger: logging.Discard()}))
	return app
}

type client struct {
	t     *testing.T
	app   *fiber.App
	token string
}

func (c *client) do(req *http.Request) (*http.Response, []byte) {
	c.t.Helper()
	if c.token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+c.token)
	}
	resp, err := c.app.Test(req, -1)
	require.NoError(c.t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	return resp, body
}

func (c *client) json(method, target string, payload any) (*http.Response, []byte) {
	c.t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(c.t, err)
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, body)
	if payload != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	return c.do(req)
}

func signUp(t *testing.T, app *fiber.App, name, email string) *client {
	t.Helper()
	anon := &client{t: t, app: app}
	resp, _ := anon.json(fiber.MethodPost, "/register", map[string]string{"name": name, "email": email, "password": "secret"})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp, body := anon.json(fiber.MethodPost, "/login", map[string]string{"email": email, "password": "secret"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var login struct {
		Token     string `json:"token"`
		ExpiresIn int64  `json:"expires_in"`
		UserID    string `json:"user_id"`
	}
	require.NoError(t, json.Unmarshal(body, &login))
	require.NotEmpty(t, login.Token)
	assert.Equal(t, int64(3600), login.ExpiresIn)
	return &client{t: t, app: app, token: login.Token}
}

func multipartContact(t *testing.T, fields map[string]string, photo string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if photo != "" {
		part, err := w.CreateFormFile("photo", "bob.png")
		require.NoError(t, err)
		_, err = part.Write([]byte(photo))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	req := httptest.NewRequest(fiber.MethodPost, "/contacts", &buf)
	req.Header.Set(fiber.HeaderContentType, w.FormDataContentType())
	return req
}

func TestContactLifecycle(t *testing.T) {
	app := newTestApp(t, nil)
	ann := signUp(t, app, "Ann", "ann@x.com")

	resp, body := ann.do(multipartContact(t, map[string]string{"name": "Bob", "email": "b@x.com", "tags": "work,friend"}, "pixels"))
	require.Equal(t, fiber.StatusCreated, resp.StatusCode, string(body))
	var bob contacts.Contact
	require.NoError(t, json.Unmarshal(body, &bob))
	assert.Equal(t, "Bob", bob.Name)
	assert.Equal(t, []string{"work", "friend"}, bob.Tags)
	require.True(t, strings.HasPrefix(bob.Photo, "/uploads/"), bob.Photo)

	resp, body = (&client{t: t, app: app}).do(httptest.NewRequest(fiber.MethodGet, bob.Photo, nil))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "pixels", string(body))

	resp, body = ann.json(fiber.MethodGet, "/contacts", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var list []contacts.Contact
	require.NoError(t, json.Unmarshal(body, &list))
	require.Len(t, list, 1)
	assert.Equal(t, bob.ID, list[0].ID)

	resp, body = ann.json(fiber.MethodGet, "/contacts/export", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get(fiber.HeaderContentDisposition), "contacts.csv")
	assert.Equal(t, "name,email,tags\nBob,b@x.com,\"work,friend\"\n", string(body))

	resp, body = ann.json(fiber.MethodPut, "/contacts/"+bob.ID, map[string]string{"name": "Robert", "email": "b@x.com"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode, string(body))
	var updated contacts.Contact
	require.NoError(t, json.Unmarshal(body, &updated))
	assert.Equal(t, "Robert", updated.Name)
	assert.Equal(t, []string{"work", "friend"}, updated.Tags)

	resp, body = ann.json(fiber.MethodPut, "/contacts/"+bob.ID, map[string]any{"name": "Robert", "tags": []string{}})
	require.Equal(t, fiber.StatusOK, resp.StatusCode, string(body))
	require.NoError(t, json.Unmarshal(body, &updated))
	assert.Empty(t, updated.Tags)

	resp, body = ann.json(fiber.MethodGet, "/contacts/"+bob.ID, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &updated))
	assert.Equal(t, "Robert", updated.Name)

	resp, body = ann.json(fiber.MethodDelete, "/contacts/"+bob.ID, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"message":"Contact deleted"}`, string(body))

	resp, _ = ann.json(fiber.MethodDelete, "/contacts/"+bob.ID, nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, body = ann.json(fiber.MethodGet, "/activity", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var records []activity.Record
	require.NoError(t, json.Unmarshal(body, &records))
	require.Len(t, records, 4)
	assert.Equal(t, activity.ActionContactAdded, records[0].Action)
	assert.Equal(t, activity.ActionContactUpdated, records[1].Action)
	assert.Equal(t, activity.ActionContactDeleted, records[3].Action)
	for _, r := range records {
		assert.Equal(t, bob.ID, r.ContactID)
	}
}

func TestOwnershipIsolation(t *testing.T) {
	app := newTestApp(t, nil)
	ann := signUp(t, app, "Ann", "ann@x.com")
	cat := signUp(t, app, "Cat", "cat@x.com")

	resp, body := ann.json(fiber.MethodPost, "/contacts", map[string]string{"name": "Bob", "tags": "work"})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode, string(body))
	var bob contacts.Contact
	require.NoError(t, json.Unmarshal(body, &bob))

	resp, body = cat.json(fiber.MethodGet, "/contacts", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[]`, string(body))

	resp, _ = cat.json(fiber.MethodGet, "/contacts/"+bob.ID, nil)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	resp, _ = cat.json(fiber.MethodPut, "/contacts/"+bob.ID, map[string]string{"name": "Hacked"})
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	resp, _ = cat.json(fiber.MethodDelete, "/contacts/"+bob.ID, nil)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp, body = cat.json(fiber.MethodGet, "/contacts/export", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "name,email,tags\n", string(body))

	resp, body = ann.json(fiber.MethodGet, "/contacts/"+bob.ID, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &bob))
	assert.Equal(t, "Bob", bob.Name)

	resp, _ = cat.json(fiber.MethodGet, "/activity", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestAuthErrors(t *testing.T) {
	app := newTestApp(t, nil)
	signUp(t, app, "Ann", "ann@x.com")
	anon := &client{t: t, app: app}

	resp, _ := anon.json(fiber.MethodPost, "/register", map[string]string{"name": "Ann", "email": "ANN@x.com", "password": "other"})
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)

	resp, _ = anon.json(fiber.MethodPost, "/register", map[string]string{"name": "", "email": "nope", "password": ""})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, _ = anon.json(fiber.MethodPost, "/login", map[string]string{"email": "ann@x.com", "password": "wrong"})
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp, _ = anon.json(fiber.MethodPost, "/login", map[string]string{"email": "ghost@x.com", "password": "secret"})
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	for _, target := range []string{"/contacts", "/contacts/export", "/activity"} {
		resp, _ = anon.json(fiber.MethodGet, target, nil)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode, target)
	}

	forged := &client{t: t, app: app, token: "not-a-token"}
	resp, _ = forged.json(fiber.MethodGet, "/contacts", nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestContactValidation(t *testing.T) {
	app := newTestApp(t, nil)
	ann := signUp(t, app, "Ann", "ann@x.com")

	resp, _ := ann.json(fiber.MethodPost, "/contacts", map[string]string{"email": "b@x.com"})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, _ = ann.json(fiber.MethodPost, "/contacts", map[string]string{"name": "Bob", "email": "not-an-email"})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, _ = ann.json(fiber.MethodPut, "/contacts/missing", map[string]string{"name": "Ghost"})
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	req := httptest.NewRequest(fiber.MethodPost, "/contacts", strings.NewReader("name=Bob"))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMETextPlain)
	resp, _ = ann.do(req)
	assert.Equal(t, fiber.StatusUnsupportedMediaType, resp.StatusCode)
}

func TestWebSocketRequiresUpgrade(t *testing.T) {
	app := newTestApp(t, nil)
	ann := signUp(t, app, "Ann", "ann@x.com")

	resp, _ := ann.json(fiber.MethodGet, "/ws", nil)
	assert.Equal(t, fiber.StatusUpgradeRequired, resp.StatusCode)
}

func TestIdempotentContactCreate(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { cache.Close() })

	app := newTestApp(t, cache)
	ann := signUp(t, app, "Ann", "ann@x.com")

	create := func() contacts.Contact {
		req := httptest.NewRequest(fiber.MethodPost, "/contacts", strings.NewReader(`{"name":"Bob"}`))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		req.Header.Set("Idempotency-Key", "create-bob")
		resp, body := ann.do(req)
		require.Equal(t, fiber.StatusCreated, resp.StatusCode, string(body))
		var c contacts.Contact
		require.NoError(t, json.Unmarshal(body, &c))
		return c
	}
	first := create()
	second := create()
	assert.Equal(t, first.ID, second.ID)

	resp, body := ann.json(fiber.MethodGet, "/contacts", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var list []contacts.Contact
	require.NoError(t, json.Unmarshal(body, &list))
	assert.Len(t, list, 1)
}

func TestHealth(t *testing.T) {
	app := newTestApp(t, nil)
	resp, body := (&client{t: t, app: app}).json(fiber.MethodGet, "/healthz", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"postgres":"not configured"`)
}

func TestUnauthenticatedMutationsHaveNoEffect(t *testing.T) {
	app := newTestApp(t, nil)
	ann := signUp(t, app, "Ann", "ann@x.com")

	resp, body := ann.json(fiber.MethodPost, "/contacts", map[string]string{"name": "Bob", "tags": "work"})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode, string(body))
	var bob contacts.Contact
	require.NoError(t, json.Unmarshal(body, &bob))

	snapshot := func() (string, string) {
		resp, contactsBody := ann.json(fiber.MethodGet, "/contacts", nil)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
		resp, activityBody := ann.json(fiber.MethodGet, "/activity", nil)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
		return string(contactsBody), string(activityBody)
	}
	wantContacts, wantActivity := snapshot()

	callers := map[string]*client{
		"no token":     {t: t, app: app},
		"forged token": {t: t, app: app, token: "forged.token.value"},
	}
	requests := []struct {
		method, target string
		payload        any
	}{
		{fiber.MethodPost, "/contacts", map[string]string{"name": "Mallory"}},
		{fiber.MethodPut, "/contacts/" + bob.ID, map[string]string{"name": "Hacked", "tags": "x"}},
		{fiber.MethodDelete, "/contacts/" + bob.ID, nil},
	}
	for name, caller := range callers {
		for _, r := range requests {
			t.Run(name+" "+r.method, func(t *testing.T) {
				caller.t = t
				resp, _ := caller.json(r.method, r.target, r.payload)
				assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

				gotContacts, gotActivity := snapshot()
				assert.JSONEq(t, wantContacts, gotContacts)
				assert.JSONEq(t, wantActivity, gotActivity)
			})
		}
	}
}

func TestWebSocketReceivesContactEvents(t *testing.T) {
	app := newTestApp(t, nil)
	ann := signUp(t, app, "Ann", "ann@x.com")

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.ShutdownWithTimeout(time.Second) })

	url := "ws://" + ln.Addr().String() + "/ws?token=" + ann.token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	_, _, err = websocket.DefaultDialer.Dial("ws://"+ln.Addr().String()+"/ws", nil)
	assert.Error(t, err, "handshake without a token must be refused")

	read := func() realtime.Event {
		t.Helper()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		var ev struct {
			Name string          `json:"event"`
			Data json.RawMessage `json:"data"`
		}
		require.NoError(t, conn.ReadJSON(&ev))
		return realtime.Event{Name: ev.Name, Data: ev.Data}
	}

	require.NoError(t, conn.WriteJSON(map[string]string{"event": "joinRoom"}))
	require.Equal(t, realtime.EventJoined, read().Name)

	resp, body := ann.json(fiber.MethodPost, "/contacts", map[string]string{"name": "Bob", "email": "b@x.com"})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode, string(body))
	var bob contacts.Contact
	require.NoError(t, json.Unmarshal(body, &bob))

	ev := read()
	require.Equal(t, realtime.EventUpdateContactList, ev.Name)
	var pushed contacts.Contact
	require.NoError(t, json.Unmarshal(ev.Data.(json.RawMessage), &pushed))
	assert.Equal(t, bob.ID, pushed.ID)
	assert.Equal(t, "Bob", pushed.Name)

	resp, _ = ann.json(fiber.MethodDelete, "/contacts/"+bob.ID, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	ev = read()
	require.Equal(t, realtime.EventContactDeleted, ev.Name)
	assert.JSONEq(t, `{"id":"`+bob.ID+`"}`, string(ev.Data.(json.RawMessage)))
}
