package archive

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eddmann/whatsapp-archive/internal/metrics"
	"github.com/eddmann/whatsapp-archive/internal/resolve"
	"github.com/eddmann/whatsapp-archive/internal/store"
	"github.com/eddmann/whatsapp-archive/internal/store/storetest"
)

const (
	direct = "123@s.whatsapp.net"
	alice  = "447700900001@s.whatsapp.net"
	group  = "120363000000000001@g.us"
)

func newService(t *testing.T) (*Service, *store.DB, *storetest.Accounts) {
	t.Helper()
	db := storetest.Messages(t)
	acc := storetest.AccountStore(t)
	return New(db, resolve.New(db, acc.AccountDB), zerolog.Nop()), db, acc
}

// seed stores a three message conversation in direct and a busy group.
func seed(t *testing.T, db *store.DB) {
	t.Helper()
	storetest.AddChat(t, db, direct, "", time.Time{})
	storetest.AddChat(t, db, group, "Book Club", time.Time{})
	storetest.AddMessages(t, db,
		storetest.Msg{ID: "t1", Chat: direct, Sender: "123", Content: "one", At: storetest.At(1)},
		storetest.Msg{ID: "g1", Chat: group, Sender: "447700900001", Content: "group one", At: storetest.At(2)},
		storetest.Msg{ID: "t2", Chat: direct, Sender: "me", Content: "two", At: storetest.At(3), FromMe: true},
		storetest.Msg{ID: "g2", Chat: group, Sender: "447700900001", Content: "group two", At: storetest.At(4)},
		storetest.Msg{ID: "t3", Chat: direct, Sender: "123", Content: "three", At: storetest.At(5)},
		storetest.Msg{ID: "g3", Chat: group, Sender: "123", Content: "group three", At: storetest.At(6)},
	)
}

func ids(msgs []store.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}

func TestGetContextWindow(t *testing.T) {
	svc, db, _ := newService(t)
	seed(t, db)
	ctx := context.Background()

	mc, err := svc.GetContext(ctx, "t2", direct, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, "t2", mc.Message.ID)
	assert.Equal(t, []string{"t1"}, ids(mc.Before))
	assert.Equal(t, []string{"t3"}, ids(mc.After))
	assert.Equal(t, []string{"t1", "t2", "t3"}, ids(mc.Chronological()))
}

func TestGetContextNearestFirstAndBoundaries(t *testing.T) {
	svc, db, _ := newService(t)
	seed(t, db)
	ctx := context.Background()

	mc, err := svc.GetContext(ctx, "g3", "", 5, 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"g2", "g1"}, ids(mc.Before))
	assert.Empty(t, mc.After)
	for _, m := range append(mc.Before, mc.After...) {
		assert.Equal(t, group, m.ChatJID)
		assert.False(t, m.SameAs(mc.Message))
	}

	mc, err = svc.GetContext(ctx, "t1", direct, 3, -2)
	require.NoError(t, err)
	assert.Empty(t, mc.Before, "first message has nothing before it")
	assert.Empty(t, mc.After, "negative counts are zero")
}

func TestGetContextErrors(t *testing.T) {
	svc, db, _ := newService(t)
	seed(t, db)
	ctx := context.Background()

	_, err := svc.GetContext(ctx, "missing", "", 1, 1)
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = svc.GetContext(ctx, "t1", group, 1, 1)
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = svc.GetContext(ctx, " ", "", 1, 1)
	assert.ErrorIs(t, err, store.ErrInvalidArgument)
}

func TestListMessagesDefaultsAndEnrichment(t *testing.T) {
	svc, db, acc := newService(t)
	seed(t, db)
	acc.AddContact(t, storetest.Contact{JID: alice, FullName: "Alice Smith"})
	ctx := context.Background()

	msgs, err := svc.ListMessages(ctx, MessageFilter{ChatJID: group})
	require.NoError(t, err)
	assert.Equal(t, []string{"g3", "g2", "g1"}, ids(msgs))

	require.NotNil(t, msgs[1].SenderName)
	assert.Equal(t, "Alice Smith", *msgs[1].SenderName, "bare phone senders resolve through the account store")
	assert.Equal(t, "123", *msgs[0].SenderName)
}

func TestListMessagesPagesConcatenate(t *testing.T) {
	svc, db, _ := newService(t)
	seed(t, db)
	ctx := context.Background()

	all, err := svc.ListMessages(ctx, MessageFilter{Limit: 100})
	require.NoError(t, err)
	require.Len(t, all, 6)

	var paged []string
	for page := 0; page < 3; page++ {
		msgs, err := svc.ListMessages(ctx, MessageFilter{Limit: 2, Page: page})
		require.NoError(t, err)
		paged = append(paged, ids(msgs)...)
	}
	assert.Equal(t, ids(all), paged)
}

func TestListMessagesTimeBounds(t *testing.T) {
	svc, db, _ := newService(t)
	seed(t, db)
	ctx := context.Background()

	msgs, err := svc.ListMessages(ctx, MessageFilter{
		After:  storetest.At(2).Format(time.RFC3339),
		Before: "2024-03-01T09:05:00Z",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"g2", "t2"}, ids(msgs))

	msgs, err = svc.ListMessages(ctx, MessageFilter{After: "2024-03-01T10:04:00+01:00"})
	require.NoError(t, err)
	assert.Equal(t, []string{"g3", "t3"}, ids(msgs), "offsets are honoured")

	msgs, err = svc.ListMessages(ctx, MessageFilter{Before: "2024-03-01"})
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestListMessagesRejectsMalformedTime(t *testing.T) {
	svc, db, _ := newService(t)
	seed(t, db)

	_, err := svc.ListMessages(context.Background(), MessageFilter{After: "yesterday"})
	assert.ErrorIs(t, err, store.ErrInvalidArgument)

	_, err = svc.ListMessages(context.Background(), MessageFilter{Before: "2024-13-45"})
	assert.ErrorIs(t, err, store.ErrInvalidArgument)
}

func TestListMessagesWithContext(t *testing.T) {
	svc, db, _ := newService(t)
	seed(t, db)

	f := DefaultMessageFilter()
	f.Query = "two"
	f.IncludeContext = true
	msgs, err := svc.ListMessages(context.Background(), f)
	require.NoError(t, err)
	// g2 then t2, each expanded to its own chat's window.
	assert.Equal(t, []string{"g1", "g2", "g3", "t1", "t2", "t3"}, ids(msgs))
}

func TestListMessagesDegradesOnStorageFailure(t *testing.T) {
	db, err := store.Open(filepath.Join(t.TempDir(), "no-bridge.db"))
	require.NoError(t, err)
	t.Cleanup(db.CloseQuietly)
	svc := New(db, resolve.New(db, nil), zerolog.Nop())

	before := testutil.ToFloat64(metrics.StorageFailures.WithLabelValues("list_messages"))
	msgs, err := svc.ListMessages(context.Background(), MessageFilter{})
	require.NoError(t, err)
	assert.NotNil(t, msgs)
	assert.Empty(t, msgs)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.StorageFailures.WithLabelValues("list_messages")))

	chats, err := svc.ListChats(context.Background(), DefaultChatFilter())
	require.NoError(t, err)
	assert.Empty(t, chats)

	contacts, err := svc.ListAllContacts(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, contacts)

	_, err = svc.GetContext(context.Background(), "x", "", 1, 1)
	assert.ErrorIs(t, err, store.ErrStorageUnavailable, "single lookups propagate")
}

func TestListMessagesRejectsOverflowingPage(t *testing.T) {
	svc, db, _ := newService(t)
	seed(t, db)
	_, err := svc.ListMessages(context.Background(), MessageFilter{Limit: 10, Page: math.MaxInt})
	assert.ErrorIs(t, err, store.ErrInvalidArgument)
}

func TestChatHistoryOldestFirstAcrossPages(t *testing.T) {
	svc, db, acc := newService(t)
	storetest.AddChat(t, db, alice, "", time.Time{})
	acc.AddContact(t, storetest.Contact{JID: alice, FullName: "Alice Smith"})
	msgs := make([]storetest.Msg, HistoryPageSize+2)
	for i := range msgs {
		msgs[i] = storetest.Msg{ID: fmt.Sprintf("h%03d", i), Chat: alice, Sender: "447700900001", Content: "hi", At: storetest.At(i)}
	}
	storetest.AddMessages(t, db, msgs...)

	history, err := svc.ChatHistory(context.Background(), alice)
	require.NoError(t, err)
	require.Len(t, history, HistoryPageSize+2)
	assert.Equal(t, "h000", history[0].ID)
	assert.Equal(t, fmt.Sprintf("h%03d", HistoryPageSize+1), history[len(history)-1].ID)
	require.NotNil(t, history[0].SenderName)
	assert.Equal(t, "Alice Smith", *history[0].SenderName)
}

func TestChatHistoryFailsOnStorageFailure(t *testing.T) {
	db, err := store.Open(filepath.Join(t.TempDir(), "no-bridge.db"))
	require.NoError(t, err)
	t.Cleanup(db.CloseQuietly)
	svc := New(db, resolve.New(db, nil), zerolog.Nop())

	history, err := svc.ChatHistory(context.Background(), alice)
	assert.ErrorIs(t, err, store.ErrStorageUnavailable)
	assert.Nil(t, history)

	_, err = svc.ChatHistory(context.Background(), " ")
	assert.ErrorIs(t, err, store.ErrInvalidArgument)
}

func TestListChats(t *testing.T) {
	svc, db, _ := newService(t)
	seed(t, db)
	storetest.AddChat(t, db, alice, "Alice", time.Time{})
	ctx := context.Background()

	chats, err := svc.ListChats(ctx, DefaultChatFilter())
	require.NoError(t, err)
	require.Len(t, chats, 3)
	assert.Equal(t, group, chats[0].JID)
	assert.Equal(t, "group three", *chats[0].LastMessage)

	f := DefaultChatFilter()
	f.SortBy = "name"
	chats, err = svc.ListChats(ctx, f)
	require.NoError(t, err)
	assert.Equal(t, []string{direct, alice, group}, []string{chats[0].JID, chats[1].JID, chats[2].JID})

	f.SortBy = "size"
	_, err = svc.ListChats(ctx, f)
	assert.ErrorIs(t, err, store.ErrInvalidArgument)
}

func TestDirectChatAndContactChats(t *testing.T) {
	svc, db, _ := newService(t)
	seed(t, db)
	ctx := context.Background()

	c, err := svc.GetDirectChatByContact(ctx, "+123")
	require.NoError(t, err)
	assert.Equal(t, direct, c.JID)

	chats, err := svc.ContactChats(ctx, "123", 0, 0)
	require.NoError(t, err)
	require.Len(t, chats, 2)
	assert.Equal(t, group, chats[0].JID)

	m, err := svc.LastInteraction(ctx, "123")
	require.NoError(t, err)
	assert.Equal(t, "g3", m.ID)
	assert.NotNil(t, m.SenderName)
}

func TestNicknameFlowsIntoSenderNames(t *testing.T) {
	svc, db, _ := newService(t)
	seed(t, db)
	ctx := context.Background()

	res, err := svc.SetNickname(ctx, "123", "Uncle Bob")
	require.NoError(t, err)
	assert.True(t, res.Success)

	msgs, err := svc.ListMessages(ctx, MessageFilter{ChatJID: direct})
	require.NoError(t, err)
	assert.Equal(t, "Uncle Bob", *msgs[0].SenderName)
}

func TestParseTime(t *testing.T) {
	for _, s := range []string{
		"2024-03-01T09:00:00Z",
		"2024-03-01T09:00:00.123456+02:00",
		"2024-03-01T09:00:00",
		"2024-03-01 09:00:00",
		"2024-03-01T09:00",
		"2024-03-01",
	} {
		_, err := ParseTime(s)
		assert.NoError(t, err, s)
	}
	_, err := ParseTime("01/03/2024")
	assert.ErrorIs(t, err, store.ErrInvalidArgument)
}
