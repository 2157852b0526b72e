package store_test

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eddmann/whatsapp-archive/internal/store"
	"github.com/eddmann/whatsapp-archive/internal/store/storetest"
)

func chatIDs(chats []store.Chat) []string {
	out := make([]string, len(chats))
	for i, c := range chats {
		out[i] = c.JID
	}
	return out
}

func TestListChatsByLastActive(t *testing.T) {
	db := seedMessages(t)
	storetest.AddChat(t, db, bob, "", time.Time{})

	chats, err := db.ListChats(context.Background(), store.ListChatsOptions{IncludeLastMessage: true})
	require.NoError(t, err)
	assert.Equal(t, []string{group, alice, bob}, chatIDs(chats))

	assert.True(t, chats[0].IsGroup)
	require.NotNil(t, chats[0].LastMessage)
	assert.Equal(t, "50% done", *chats[0].LastMessage)
	assert.Equal(t, "447700900001", *chats[0].LastSender)
	assert.False(t, *chats[0].LastIsFromMe)

	assert.Nil(t, chats[2].Name)
	assert.Nil(t, chats[2].LastMessageTime)
	assert.Nil(t, chats[2].LastMessage)
}

func TestListChatsWithoutLastMessage(t *testing.T) {
	db := seedMessages(t)
	chats, err := db.ListChats(context.Background(), store.ListChatsOptions{})
	require.NoError(t, err)
	require.Len(t, chats, 2)
	assert.Nil(t, chats[0].LastMessage)
	assert.NotNil(t, chats[0].LastMessageTime)
}

func TestListChatsByName(t *testing.T) {
	db := seedMessages(t)
	storetest.AddChat(t, db, bob, "bob", time.Time{})
	storetest.AddChat(t, db, "123@s.whatsapp.net", "", time.Time{})

	chats, err := db.ListChats(context.Background(), store.ListChatsOptions{SortBy: store.SortName})
	require.NoError(t, err)
	assert.Equal(t, []string{"123@s.whatsapp.net", alice, bob, group}, chatIDs(chats))
}

func TestListChatsQueryAndPaging(t *testing.T) {
	db := seedMessages(t)
	ctx := context.Background()

	chats, err := db.ListChats(ctx, store.ListChatsOptions{Query: "book"})
	require.NoError(t, err)
	assert.Equal(t, []string{group}, chatIDs(chats))

	chats, err = db.ListChats(ctx, store.ListChatsOptions{Query: "g.us"})
	require.NoError(t, err)
	assert.Equal(t, []string{group}, chatIDs(chats))

	chats, err = db.ListChats(ctx, store.ListChatsOptions{Limit: 1, Page: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{alice}, chatIDs(chats))

	n, err := db.CountChats(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestChatSearchFoldsNonASCII(t *testing.T) {
	db := seedMessages(t)
	storetest.AddChat(t, db, bob, "Élodie", time.Time{})
	ctx := context.Background()

	chats, err := db.ListChats(ctx, store.ListChatsOptions{Query: "élodie"})
	require.NoError(t, err)
	assert.Equal(t, []string{bob}, chatIDs(chats))

	n, err := db.CountChats(ctx, "ÉLODIE")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	matches, err := db.IndividualChatsMatching(ctx, "élo", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{bob}, chatIDs(matches))
}

func TestChatPagingRejectsOverflow(t *testing.T) {
	db := seedMessages(t)
	ctx := context.Background()

	_, err := db.ListChats(ctx, store.ListChatsOptions{Limit: 2, Page: math.MaxInt})
	assert.ErrorIs(t, err, store.ErrInvalidArgument)

	_, err = db.ContactChats(ctx, alice, math.MaxInt, 2)
	assert.ErrorIs(t, err, store.ErrInvalidArgument)
}

func TestListChatsRejectsUnknownSort(t *testing.T) {
	db := seedMessages(t)
	_, err := db.ListChats(context.Background(), store.ListChatsOptions{SortBy: "size"})
	assert.ErrorIs(t, err, store.ErrInvalidArgument)
}

func TestGetChat(t *testing.T) {
	db := seedMessages(t)
	ctx := context.Background()

	c, err := db.GetChat(ctx, alice, true)
	require.NoError(t, err)
	assert.Equal(t, "Alice", c.DisplayName())
	require.NotNil(t, c.LastMessage)
	assert.Equal(t, "", *c.LastMessage)

	_, err = db.GetChat(ctx, bob, false)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDirectChatByPhoneSkipsGroups(t *testing.T) {
	db := seedMessages(t)
	ctx := context.Background()

	c, err := db.DirectChatByPhone(ctx, "447700900001")
	require.NoError(t, err)
	assert.Equal(t, alice, c.JID)

	_, err = db.DirectChatByPhone(ctx, "120363000000000001")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestContactChats(t *testing.T) {
	db := seedMessages(t)
	chats, err := db.ContactChats(context.Background(), "447700900001", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{group, alice}, chatIDs(chats))
}

func TestChatNameLookups(t *testing.T) {
	db := seedMessages(t)
	storetest.AddChat(t, db, "120363447700900009@g.us", "Family 447700900009", time.Time{})
	ctx := context.Background()

	name, err := db.ChatName(ctx, group)
	require.NoError(t, err)
	assert.Equal(t, "Book Club", name)

	name, err = db.ChatName(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, "", name)

	name, err = db.ChatNameByPhone(ctx, "447700900001")
	require.NoError(t, err)
	assert.Equal(t, "Alice", name)

	name, err = db.ChatNameByPhone(ctx, "447700900009")
	require.NoError(t, err)
	assert.Equal(t, "", name, "group chats never answer a phone lookup")
}

func TestIndividualChats(t *testing.T) {
	db := seedMessages(t)
	ctx := context.Background()

	c, err := db.IndividualChat(ctx, group)
	require.NoError(t, err)
	assert.Nil(t, c)

	c, err = db.IndividualChat(ctx, alice)
	require.NoError(t, err)
	require.NotNil(t, c)

	matched, err := db.IndividualChatsMatching(ctx, "ali", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{alice}, chatIDs(matched))

	all, err := db.IndividualChats(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{alice}, chatIDs(all))
}
