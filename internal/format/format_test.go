package format

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/eddmann/whatsapp-archive/internal/store"
)

type namer map[string]string

func (n namer) ResolveName(_ context.Context, id string) string {
	if v, ok := n[id]; ok {
		return v
	}
	return id
}

func ptr[T any](v T) *T { return &v }

var at = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

func TestMessage(t *testing.T) {
	f := New(namer{"123": "Bob"})
	ctx := context.Background()

	got := f.Message(ctx, store.Message{ID: "m1", ChatJID: "g@g.us", ChatName: ptr("Club"), Sender: "123", Content: "hello", Timestamp: at})
	assert.Equal(t, "[2024-03-01 09:30:00] Chat: Club From: Bob: hello\n", got)

	got = f.Message(ctx, store.Message{ID: "m2", ChatJID: "g@g.us", Sender: "123", SenderName: ptr("Robert"), Timestamp: at, MediaType: ptr("image")})
	assert.Equal(t, "[2024-03-01 09:30:00] From: Robert: [image - Message ID: m2 - Chat JID: g@g.us] \n", got)

	f.ShowChat = false
	got = f.Message(ctx, store.Message{ChatName: ptr("Club"), Sender: "123", Content: "hi", Timestamp: at, IsFromMe: true})
	assert.Equal(t, "[2024-03-01 09:30:00] From: Me: hi\n", got)
}

func TestMessagesEmpty(t *testing.T) {
	assert.Equal(t, "No messages to display.", New(nil).Messages(context.Background(), nil))
}

func TestContextMarksTarget(t *testing.T) {
	f := &Formatter{}
	mc := &store.MessageContext{
		Message: store.Message{ID: "b", ChatJID: "c", Sender: "x", Content: "two", Timestamp: at},
		Before:  []store.Message{{ID: "a", ChatJID: "c", Sender: "x", Content: "one", Timestamp: at}},
	}
	got := f.Context(context.Background(), mc)
	assert.Equal(t, "  [2024-03-01 09:30:00] From: x: one\n> [2024-03-01 09:30:00] From: x: two\n", got)
}

func TestContact(t *testing.T) {
	c := store.Contact{
		JID:          "447700900001@s.whatsapp.net",
		Phone:        "447700900001",
		Name:         "Alice Smith",
		FullName:     ptr("Alice Smith"),
		PushName:     ptr("Ali"),
		BusinessName: ptr("Alice Ltd"),
		Nickname:     ptr("Mum"),
	}
	want := "Alice Smith (447700900001)\n" +
		"   JID: 447700900001@s.whatsapp.net\n" +
		"   Display Name: Ali\n" +
		"   Business: Alice Ltd\n" +
		"   Nickname: Mum\n"
	assert.Equal(t, want, Contact(c))
	assert.Equal(t, "No contacts found.", Contacts(nil))
}
