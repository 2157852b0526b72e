package cli

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eddmann/whatsapp-archive/internal/archive"
	"github.com/eddmann/whatsapp-archive/internal/resolve"
	"github.com/eddmann/whatsapp-archive/internal/store"
	"github.com/eddmann/whatsapp-archive/internal/store/storetest"
)

const exportChatJID = "447700900001@s.whatsapp.net"

func TestExportChatOldestFirst(t *testing.T) {
	db := storetest.Messages(t)
	storetest.AddChat(t, db, exportChatJID, "Alice", time.Time{})
	storetest.AddMessages(t, db,
		storetest.Msg{ID: "e1", Chat: exportChatJID, Sender: "447700900001", Content: "first", At: storetest.At(1)},
		storetest.Msg{ID: "e2", Chat: exportChatJID, Sender: "me", Content: "second", At: storetest.At(2), FromMe: true},
	)
	svc := archive.New(db, resolve.New(db, nil), zerolog.Nop())
	ctx := context.Background()

	chat, err := svc.GetChat(ctx, exportChatJID, false)
	require.NoError(t, err)
	data, msgs, err := exportChat(ctx, svc, chat)
	require.NoError(t, err)
	assert.Len(t, msgs, 2)

	var doc Export
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, exportChatJID, doc.JID)
	assert.Equal(t, "Alice", doc.Name)
	assert.Equal(t, 2, doc.MessageCount)
	require.Len(t, doc.Messages, 2)
	assert.Equal(t, "e1", doc.Messages[0].ID)
	assert.Equal(t, "e2", doc.Messages[1].ID)
}

func TestExportChatFailsWhenHistoryUnreadable(t *testing.T) {
	db, err := store.Open(filepath.Join(t.TempDir(), "no-bridge.db"))
	require.NoError(t, err)
	t.Cleanup(db.CloseQuietly)
	svc := archive.New(db, resolve.New(db, nil), zerolog.Nop())

	data, msgs, err := exportChat(context.Background(), svc, &store.Chat{JID: exportChatJID})
	assert.ErrorIs(t, err, store.ErrStorageUnavailable)
	assert.Nil(t, data)
	assert.Nil(t, msgs)
}
