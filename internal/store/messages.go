package store

import (
	"context"
	"database/sql"
	"fmt"
)

const messageColumns = `
	m.rowid, m.id, m.chat_jid, COALESCE(m.sender, ''), COALESCE(m.content, ''),
	m.timestamp, m.is_from_me, m.media_type, m.filename, c.name
	FROM messages m
	LEFT JOIN chats c ON m.chat_jid = c.jid`

// newestFirst orders by instant, not by the stored text, since the bridge
// writes local times whose offset changes with DST.
const newestFirst = " ORDER BY julianday(m.timestamp) DESC, m.rowid DESC"

// ListMessages returns messages matching the given options, newest first.
// Messages sharing a timestamp are ordered by insertion, newest first.
func (d *DB) ListMessages(ctx context.Context, opts ListMessagesOptions) ([]Message, error) {
	if err := d.ready(); err != nil {
		return nil, storageErr("list messages", err)
	}

	where, args := messageFilter(opts)
	paging, err := pageClause(opts.Limit, opts.Page)
	if err != nil {
		return nil, err
	}
	query := "SELECT " + messageColumns + where + newestFirst + paging
	return d.scanMessages(ctx, "list messages", query, args)
}

// CountMessages returns the number of messages, optionally restricted to a chat.
func (d *DB) CountMessages(ctx context.Context, chatJID string) (int, error) {
	if err := d.ready(); err != nil {
		return 0, storageErr("count messages", err)
	}
	var count int
	var err error
	if chatJID == "" {
		err = d.Messages.QueryRowContext(ctx, "SELECT COUNT(*) FROM messages").Scan(&count)
	} else {
		err = d.Messages.QueryRowContext(ctx, "SELECT COUNT(*) FROM messages WHERE chat_jid = ?", chatJID).Scan(&count)
	}
	return count, storageErr("count messages", err)
}

func messageFilter(opts ListMessagesOptions) (string, []any) {
	where := " WHERE 1=1"
	var args []any

	// julianday normalises both sides to UTC whatever offset was stored.
	if opts.After != nil {
		where += " AND julianday(m.timestamp) > julianday(?)"
		args = append(args, opts.After.UTC())
	}
	if opts.Before != nil {
		where += " AND julianday(m.timestamp) < julianday(?)"
		args = append(args, opts.Before.UTC())
	}
	if opts.Sender != "" {
		where += " AND m.sender = ?"
		args = append(args, opts.Sender)
	}
	if opts.ChatJID != "" {
		where += " AND m.chat_jid = ?"
		args = append(args, opts.ChatJID)
	}
	if opts.Query != "" {
		where += " AND " + contains("m.content")
		args = append(args, likePattern(opts.Query))
	}
	return where, args
}

// MessageByID returns a message by id. When chatJID is empty and the id
// occurs in several chats, the most recent one wins.
func (d *DB) MessageByID(ctx context.Context, id, chatJID string) (*Message, error) {
	if err := d.ready(); err != nil {
		return nil, storageErr("get message", err)
	}

	query := "SELECT " + messageColumns + " WHERE m.id = ?"
	args := []any{id}
	if chatJID != "" {
		query += " AND m.chat_jid = ?"
		args = append(args, chatJID)
	}
	query += newestFirst + " LIMIT 1"

	msgs, err := d.scanMessages(ctx, "get message", query, args)
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, fmt.Errorf("message %q: %w", id, ErrNotFound)
	}
	return &msgs[0], nil
}

// MessagesBefore returns up to n messages of the same chat preceding target,
// nearest first. Messages sharing target's instant are ordered by insertion.
func (d *DB) MessagesBefore(ctx context.Context, target Message, n int) ([]Message, error) {
	return d.neighbours(ctx, "messages before", target, n, "<", "DESC")
}

// MessagesAfter returns up to n messages of the same chat following target,
// nearest first.
func (d *DB) MessagesAfter(ctx context.Context, target Message, n int) ([]Message, error) {
	return d.neighbours(ctx, "messages after", target, n, ">", "ASC")
}

func (d *DB) neighbours(ctx context.Context, op string, target Message, n int, cmp, dir string) ([]Message, error) {
	if n <= 0 {
		return []Message{}, nil
	}
	if err := d.ready(); err != nil {
		return nil, storageErr(op, err)
	}

	// The bound is target's stored value, so it is exact.
	query := "SELECT " + messageColumns + `
		WHERE m.chat_jid = ?
		AND (julianday(m.timestamp), m.rowid) ` + cmp + ` (SELECT julianday(timestamp), rowid FROM messages WHERE rowid = ?)
		ORDER BY julianday(m.timestamp) ` + dir + `, m.rowid ` + dir + `
		LIMIT ?`
	return d.scanMessages(ctx, op, query, []any{target.ChatJID, target.rowid, n})
}

// LastInteraction returns the most recent message sent by jid or exchanged
// in its direct chat.
func (d *DB) LastInteraction(ctx context.Context, jid string) (*Message, error) {
	if err := d.ready(); err != nil {
		return nil, storageErr("last interaction", err)
	}
	query := "SELECT " + messageColumns + `
		WHERE m.sender = ? OR m.chat_jid = ?` + newestFirst + `
		LIMIT 1`
	msgs, err := d.scanMessages(ctx, "last interaction", query, []any{jid, jid})
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, fmt.Errorf("interaction with %q: %w", jid, ErrNotFound)
	}
	return &msgs[0], nil
}

// MediaMessage returns the message with the given id, failing with
// ErrInvalidArgument when it carries no media. chatJID may be empty.
func (d *DB) MediaMessage(ctx context.Context, id, chatJID string) (*Message, error) {
	msg, err := d.MessageByID(ctx, id, chatJID)
	if err != nil {
		return nil, err
	}
	if msg.MediaType == nil || *msg.MediaType == "" {
		return nil, fmt.Errorf("message %q has no media: %w", id, ErrInvalidArgument)
	}
	return msg, nil
}

func (d *DB) scanMessages(ctx context.Context, op, query string, args []any) ([]Message, error) {
	rows, err := d.Messages.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr(op, err)
	}
	defer func() { _ = rows.Close() }()

	messages := []Message{}
	for rows.Next() {
		var m Message
		var mediaType, filename, chatName sql.NullString
		var fromMe sql.NullBool
		var ts sql.NullTime

		if err := rows.Scan(&m.rowid, &m.ID, &m.ChatJID, &m.Sender, &m.Content,
			&ts, &fromMe, &mediaType, &filename, &chatName); err != nil {
			return nil, storageErr(op, err)
		}

		m.Timestamp = ts.Time
		m.IsFromMe = fromMe.Bool
		if mediaType.Valid && mediaType.String != "" {
			m.MediaType = &mediaType.String
		}
		if filename.Valid && filename.String != "" {
			m.Filename = &filename.String
		}
		if chatName.Valid && chatName.String != "" {
			m.ChatName = &chatName.String
		}

		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(op, err)
	}
	return messages, nil
}
