// Package storetest builds throwaway archive databases for tests.
package storetest

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/eddmann/whatsapp-archive/internal/store"
)

// BridgeSchema is the chat history layout written by the WhatsApp bridge.
const BridgeSchema = `
	CREATE TABLE IF NOT EXISTS chats (
		jid TEXT PRIMARY KEY,
		name TEXT,
		last_message_time TIMESTAMP
	);
	CREATE TABLE IF NOT EXISTS messages (
		id TEXT,
		chat_jid TEXT,
		sender TEXT,
		content TEXT,
		timestamp TIMESTAMP,
		is_from_me BOOLEAN,
		media_type TEXT,
		filename TEXT,
		url TEXT,
		media_key BLOB,
		file_sha256 BLOB,
		file_enc_sha256 BLOB,
		file_length INTEGER,
		PRIMARY KEY (id, chat_jid),
		FOREIGN KEY (chat_jid) REFERENCES chats(jid)
	);`

// AccountSchema is the subset of the session store the archive reads.
const AccountSchema = `
	CREATE TABLE IF NOT EXISTS whatsmeow_contacts (
		our_jid TEXT,
		their_jid TEXT,
		first_name TEXT,
		full_name TEXT,
		push_name TEXT,
		business_name TEXT,
		PRIMARY KEY (our_jid, their_jid)
	);`

// OwnJID is the account that owns every fixture contact row.
const OwnJID = "447700900000@s.whatsapp.net"

// Base is the reference instant fixtures count from.
var Base = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

// At returns Base shifted by the given number of minutes.
func At(minutes int) time.Time {
	return Base.Add(time.Duration(minutes) * time.Minute)
}

// Messages opens a fresh chat history database with the bridge tables.
func Messages(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "messages.db"))
	require.NoError(t, err)
	t.Cleanup(db.CloseQuietly)

	_, err = db.Messages.Exec(BridgeSchema)
	require.NoError(t, err)
	return db
}

// Accounts holds a writable handle next to the read-only store under test.
type Accounts struct {
	*store.AccountDB
	rw *sql.DB
}

// AccountStore creates a session store file and opens it read-only.
func AccountStore(t *testing.T) *Accounts {
	t.Helper()
	path := filepath.Join(t.TempDir(), "whatsapp.db")

	rw, err := sql.Open("sqlite3", "file:"+path)
	require.NoError(t, err)
	rw.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = rw.Close() })
	_, err = rw.Exec(AccountSchema)
	require.NoError(t, err)

	ro, err := store.OpenAccounts(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ro.Close() })
	return &Accounts{AccountDB: ro, rw: rw}
}

// Contact describes an account record; empty names are stored as NULL.
type Contact struct {
	JID          string
	FirstName    string
	FullName     string
	PushName     string
	BusinessName string
}

// AddContact inserts an account record.
func (a *Accounts) AddContact(t *testing.T, c Contact) {
	t.Helper()
	_, err := a.rw.Exec(`INSERT INTO whatsmeow_contacts
		(our_jid, their_jid, first_name, full_name, push_name, business_name)
		VALUES (?, ?, ?, ?, ?, ?)`,
		OwnJID, c.JID, null(c.FirstName), null(c.FullName), null(c.PushName), null(c.BusinessName))
	require.NoError(t, err)
}

// AddChat inserts a chat. An empty name is stored as NULL and a zero time
// leaves last_message_time unset.
func AddChat(t *testing.T, db *store.DB, jid, name string, last time.Time) {
	t.Helper()
	var lastArg any
	if !last.IsZero() {
		lastArg = last
	}
	_, err := db.Messages.Exec(
		"INSERT INTO chats (jid, name, last_message_time) VALUES (?, ?, ?)",
		jid, null(name), lastArg)
	require.NoError(t, err)
}

// Msg describes a stored message.
type Msg struct {
	ID        string
	Chat      string
	Sender    string
	Content   string
	At        time.Time
	FromMe    bool
	MediaType string
	Filename  string
}

// AddMessages inserts messages in order and keeps each chat's
// last_message_time at its newest message.
func AddMessages(t *testing.T, db *store.DB, msgs ...Msg) {
	t.Helper()
	for _, m := range msgs {
		_, err := db.Messages.Exec(`INSERT INTO messages
			(id, chat_jid, sender, content, timestamp, is_from_me, media_type, filename)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			m.ID, m.Chat, m.Sender, m.Content, m.At, m.FromMe, null(m.MediaType), null(m.Filename))
		require.NoError(t, err)

		_, err = db.Messages.Exec(`UPDATE chats SET last_message_time = ?
			WHERE jid = ? AND (last_message_time IS NULL OR julianday(last_message_time) < julianday(?))`,
			m.At, m.Chat, m.At)
		require.NoError(t, err)
	}
}

func null(s string) any {
	if s == "" {
		return nil
	}
	return s
}
