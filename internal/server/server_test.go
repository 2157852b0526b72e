package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eddmann/whatsapp-archive/internal/archive"
	"github.com/eddmann/whatsapp-archive/internal/metrics"
	"github.com/eddmann/whatsapp-archive/internal/resolve"
	"github.com/eddmann/whatsapp-archive/internal/store"
	"github.com/eddmann/whatsapp-archive/internal/store/storetest"
)

const (
	bob   = "447700900002@s.whatsapp.net"
	group = "120363000000000001@g.us"
)

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	db := storetest.Messages(t)
	acc := storetest.AccountStore(t)

	storetest.AddChat(t, db, bob, "Bob", time.Time{})
	storetest.AddChat(t, db, group, "Book Club", time.Time{})
	storetest.AddMessages(t, db,
		storetest.Msg{ID: "b1", Chat: bob, Sender: "447700900002", Content: "hi", At: storetest.At(1)},
		storetest.Msg{ID: "b2", Chat: bob, Sender: "me", Content: "hello bob", At: storetest.At(2), FromMe: true},
		storetest.Msg{ID: "g1", Chat: group, Sender: "447700900002", Content: "chapter one", At: storetest.At(3)},
	)
	acc.AddContact(t, storetest.Contact{JID: bob, FullName: "Bob Jones"})

	svc := archive.New(db, resolve.New(db, acc.AccountDB), zerolog.Nop())
	return New("127.0.0.1:0", svc, zerolog.Nop()).Handler()
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		r = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestRequestID(t *testing.T) {
	h := newTestServer(t)

	w := do(t, h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	_, err := uuid.Parse(w.Header().Get(RequestIDHeader))
	assert.NoError(t, err)

	id := uuid.NewString()
	r := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	r.Header.Set(RequestIDHeader, id)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	assert.Equal(t, id, rec.Header().Get(RequestIDHeader))

	w = do(t, h, http.MethodGet, "/nowhere", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
}

func TestListMessages(t *testing.T) {
	h := newTestServer(t)

	w := do(t, h, http.MethodGet, "/api/messages?chat_jid="+bob, "")
	require.Equal(t, http.StatusOK, w.Code)
	msgs := decode[[]store.Message](t, w)
	require.Len(t, msgs, 2)
	assert.Equal(t, "b2", msgs[0].ID)
	require.NotNil(t, msgs[1].SenderName)
	assert.Equal(t, "Bob Jones", *msgs[1].SenderName)

	w = do(t, h, http.MethodGet, "/api/messages?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode[ErrorResponse](t, w).Error, "limit")

	w = do(t, h, http.MethodGet, "/api/messages?after=yesterday", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMessageContext(t *testing.T) {
	h := newTestServer(t)

	w := do(t, h, http.MethodGet, "/api/messages/b2/context?chat_jid="+bob+"&before=1&after=1", "")
	require.Equal(t, http.StatusOK, w.Code)
	mc := decode[store.MessageContext](t, w)
	assert.Equal(t, "b2", mc.Message.ID)
	require.Len(t, mc.Before, 1)
	assert.Equal(t, "b1", mc.Before[0].ID)
	assert.Empty(t, mc.After)

	w = do(t, h, http.MethodGet, "/api/messages/missing/context", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestChats(t *testing.T) {
	h := newTestServer(t)

	w := do(t, h, http.MethodGet, "/api/chats", "")
	require.Equal(t, http.StatusOK, w.Code)
	chats := decode[[]store.Chat](t, w)
	require.Len(t, chats, 2)
	assert.Equal(t, group, chats[0].JID)

	w = do(t, h, http.MethodGet, "/api/chats?sort_by=size", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodGet, "/api/chats/"+bob, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "hello bob", *decode[store.Chat](t, w).LastMessage)

	w = do(t, h, http.MethodGet, "/api/chats/nobody@s.whatsapp.net", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestContacts(t *testing.T) {
	h := newTestServer(t)

	w := do(t, h, http.MethodGet, "/api/contacts", "")
	require.Equal(t, http.StatusOK, w.Code)
	contacts := decode[[]store.Contact](t, w)
	require.Len(t, contacts, 1)
	assert.Equal(t, "Bob Jones", contacts[0].Name)

	w = do(t, h, http.MethodGet, "/api/contacts/search?query=jones", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]store.Contact](t, w), 1)

	w = do(t, h, http.MethodGet, "/api/contacts/search", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodGet, "/api/contacts/"+bob, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "447700900002", decode[store.Contact](t, w).Phone)

	w = do(t, h, http.MethodGet, "/api/contacts/999@s.whatsapp.net", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestNicknames(t *testing.T) {
	h := newTestServer(t)

	w := do(t, h, http.MethodPut, "/api/nicknames/"+bob, `{"nickname":"Bobby"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[store.Result](t, w).Success)

	w = do(t, h, http.MethodGet, "/api/contacts/"+bob, "")
	assert.Equal(t, "Bobby", decode[store.Contact](t, w).Name)

	w = do(t, h, http.MethodGet, "/api/nicknames", "")
	list := decode[[]store.Nickname](t, w)
	require.Len(t, list, 1)
	assert.Equal(t, bob, list[0].JID)

	w = do(t, h, http.MethodPut, "/api/nicknames/"+bob, `{"nickname":"  "}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodPut, "/api/nicknames/"+bob, `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodDelete, "/api/nicknames/"+bob, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, h, http.MethodDelete, "/api/nicknames/"+bob, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMetricsEndpointAndCounter(t *testing.T) {
	h := newTestServer(t)
	counter := metrics.HTTPRequests.WithLabelValues("GET", "GET /api/chats", "200")
	before := testutil.ToFloat64(counter)

	do(t, h, http.MethodGet, "/api/chats", "")
	assert.Equal(t, before+1, testutil.ToFloat64(counter))

	w := do(t, h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "whatsapp_archive_http_requests_total")
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, StatusFor(fmt.Errorf("x: %w", store.ErrInvalidArgument)))
	assert.Equal(t, http.StatusNotFound, StatusFor(fmt.Errorf("x: %w", store.ErrNotFound)))
	assert.Equal(t, http.StatusServiceUnavailable, StatusFor(&store.StorageError{Op: "x", Err: errors.New("disk")}))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(errors.New("boom")))
}
