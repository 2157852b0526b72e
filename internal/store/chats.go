package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/eddmann/whatsapp-archive/internal/jid"
)

// The last message of a chat is the one stored at last_message_time; when
// several share it the highest id wins.
const (
	chatColumnsWithLast = `
		c.jid, c.name, c.last_message_time, m.content, m.sender, m.is_from_me
		FROM chats c
		LEFT JOIN messages m ON m.rowid = (
			SELECT rowid FROM messages
			WHERE chat_jid = c.jid AND julianday(timestamp) = julianday(c.last_message_time)
			ORDER BY id DESC LIMIT 1
		)`
	chatColumns = `
		c.jid, c.name, c.last_message_time, NULL, NULL, NULL
		FROM chats c`

	notGroup = ` AND c.jid NOT LIKE '%` + jid.GroupSuffix + `'`

	lastActiveFirst = " ORDER BY julianday(c.last_message_time) DESC NULLS LAST, c.jid"
)

func chatSelect(includeLast bool) string {
	if includeLast {
		return "SELECT " + chatColumnsWithLast
	}
	return "SELECT " + chatColumns
}

func chatOrder(sort ChatSort) (string, error) {
	switch sort {
	case "", SortLastActive:
		return lastActiveFirst, nil
	case SortName:
		return " ORDER BY COALESCE(NULLIF(c.name, ''), c.jid) COLLATE NOCASE, c.jid", nil
	default:
		return "", fmt.Errorf("unknown sort %q: %w", sort, ErrInvalidArgument)
	}
}

// ListChats returns chats matching the given options.
func (d *DB) ListChats(ctx context.Context, opts ListChatsOptions) ([]Chat, error) {
	order, err := chatOrder(opts.SortBy)
	if err != nil {
		return nil, err
	}
	paging, err := pageClause(opts.Limit, opts.Page)
	if err != nil {
		return nil, err
	}
	if err := d.ready(); err != nil {
		return nil, storageErr("list chats", err)
	}

	query := chatSelect(opts.IncludeLastMessage) + " WHERE 1=1"
	var args []any

	if opts.Query != "" {
		query += " AND (" + contains("c.name") + " OR " + contains("c.jid") + ")"
		pattern := likePattern(opts.Query)
		args = append(args, pattern, pattern)
	}

	query += order + paging
	return d.scanChats(ctx, "list chats", query, args)
}

// CountChats returns the total number of chats matching the query.
func (d *DB) CountChats(ctx context.Context, query string) (int, error) {
	if err := d.ready(); err != nil {
		return 0, storageErr("count chats", err)
	}
	var count int
	var err error
	if query == "" {
		err = d.Messages.QueryRowContext(ctx, "SELECT COUNT(*) FROM chats").Scan(&count)
	} else {
		pattern := likePattern(query)
		err = d.Messages.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM chats WHERE "+contains("name")+" OR "+contains("jid"),
			pattern, pattern).Scan(&count)
	}
	return count, storageErr("count chats", err)
}

// GetChat returns the chat with the exact identifier.
func (d *DB) GetChat(ctx context.Context, chatJID string, includeLast bool) (*Chat, error) {
	if err := d.ready(); err != nil {
		return nil, storageErr("get chat", err)
	}
	chats, err := d.scanChats(ctx, "get chat", chatSelect(includeLast)+" WHERE c.jid = ?", []any{chatJID})
	if err != nil {
		return nil, err
	}
	if len(chats) == 0 {
		return nil, fmt.Errorf("chat %q: %w", chatJID, ErrNotFound)
	}
	return &chats[0], nil
}

// DirectChatByPhone returns the individual chat whose identifier contains phone.
func (d *DB) DirectChatByPhone(ctx context.Context, phone string) (*Chat, error) {
	if err := d.ready(); err != nil {
		return nil, storageErr("direct chat", err)
	}
	query := chatSelect(true) + " WHERE " + contains("c.jid") + notGroup + " ORDER BY c.jid LIMIT 1"
	chats, err := d.scanChats(ctx, "direct chat", query, []any{likePattern(phone)})
	if err != nil {
		return nil, err
	}
	if len(chats) == 0 {
		return nil, fmt.Errorf("direct chat for %q: %w", phone, ErrNotFound)
	}
	return &chats[0], nil
}

// ContactChats returns the chats a contact participates in: their direct
// chat and every chat containing a message they sent.
func (d *DB) ContactChats(ctx context.Context, contactJID string, limit, page int) ([]Chat, error) {
	paging, err := pageClause(limit, page)
	if err != nil {
		return nil, err
	}
	if err := d.ready(); err != nil {
		return nil, storageErr("contact chats", err)
	}
	query := chatSelect(true) + `
		WHERE c.jid = ?
		OR EXISTS (SELECT 1 FROM messages s WHERE s.chat_jid = c.jid AND s.sender = ?)` + lastActiveFirst + paging
	return d.scanChats(ctx, "contact chats", query, []any{contactJID, contactJID})
}

// ChatName returns the stored name of the chat with the exact identifier,
// or "" when there is no such chat or it is unnamed.
func (d *DB) ChatName(ctx context.Context, chatJID string) (string, error) {
	if err := d.ready(); err != nil {
		return "", storageErr("chat name", err)
	}
	var name sql.NullString
	err := d.Messages.QueryRowContext(ctx, "SELECT name FROM chats WHERE jid = ?", chatJID).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", storageErr("chat name", err)
	}
	return name.String, nil
}

// ChatNameByPhone returns the name of the first named individual chat whose
// identifier contains phone. Group chats never match.
func (d *DB) ChatNameByPhone(ctx context.Context, phone string) (string, error) {
	if err := d.ready(); err != nil {
		return "", storageErr("chat name by phone", err)
	}
	var name string
	err := d.Messages.QueryRowContext(ctx, `
		SELECT c.name FROM chats c
		WHERE `+contains("c.jid")+notGroup+`
		AND c.name IS NOT NULL AND c.name != ''
		ORDER BY c.jid LIMIT 1`, likePattern(phone)).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", storageErr("chat name by phone", err)
	}
	return name, nil
}

// IndividualChat returns the non-group chat with the exact identifier, or
// nil when there is none.
func (d *DB) IndividualChat(ctx context.Context, chatJID string) (*Chat, error) {
	if jid.IsGroup(chatJID) {
		return nil, nil
	}
	c, err := d.GetChat(ctx, chatJID, false)
	if IsNotFound(err) {
		return nil, nil
	}
	return c, err
}

// IndividualChatsMatching returns non-group chats whose name or identifier
// contains query.
func (d *DB) IndividualChatsMatching(ctx context.Context, query string, limit int) ([]Chat, error) {
	if err := d.ready(); err != nil {
		return nil, storageErr("search individual chats", err)
	}
	pattern := likePattern(query)
	q := chatSelect(false) + `
		WHERE (` + contains("c.name") + ` OR ` + contains("c.jid") + `)` + notGroup + `
		ORDER BY COALESCE(NULLIF(c.name, ''), c.jid) COLLATE NOCASE, c.jid`
	if limit > 0 {
		q += fmt.Sprintf(" LIMIT %d", limit)
	}
	return d.scanChats(ctx, "search individual chats", q, []any{pattern, pattern})
}

// IndividualChats returns every non-group chat ordered by identifier.
func (d *DB) IndividualChats(ctx context.Context) ([]Chat, error) {
	if err := d.ready(); err != nil {
		return nil, storageErr("individual chats", err)
	}
	return d.scanChats(ctx, "individual chats", chatSelect(false)+" WHERE 1=1"+notGroup+" ORDER BY c.jid", nil)
}

func (d *DB) scanChats(ctx context.Context, op, query string, args []any) ([]Chat, error) {
	rows, err := d.Messages.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr(op, err)
	}
	defer func() { _ = rows.Close() }()

	chats := []Chat{}
	for rows.Next() {
		var chatJID string
		var name sql.NullString
		var lastTime sql.NullTime
		var lastMsg, lastSender sql.NullString
		var lastFromMe sql.NullBool

		if err := rows.Scan(&chatJID, &name, &lastTime, &lastMsg, &lastSender, &lastFromMe); err != nil {
			return nil, storageErr(op, err)
		}

		chat := Chat{
			JID:     chatJID,
			IsGroup: jid.IsGroup(chatJID),
		}
		if name.Valid && name.String != "" {
			chat.Name = &name.String
		}
		if lastTime.Valid {
			chat.LastMessageTime = &lastTime.Time
		}
		if lastMsg.Valid {
			chat.LastMessage = &lastMsg.String
		}
		if lastSender.Valid {
			chat.LastSender = &lastSender.String
		}
		if lastFromMe.Valid {
			chat.LastIsFromMe = &lastFromMe.Bool
		}

		chats = append(chats, chat)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(op, err)
	}
	return chats, nil
}
