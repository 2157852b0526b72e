package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// SetNickname creates or replaces the nickname for jid.
func (d *DB) SetNickname(ctx context.Context, contactJID, nickname string) (Result, error) {
	contactJID = strings.TrimSpace(contactJID)
	nickname = strings.TrimSpace(nickname)
	if contactJID == "" {
		return Result{Message: "jid is required"}, fmt.Errorf("jid is required: %w", ErrInvalidArgument)
	}
	if nickname == "" {
		return Result{Message: "nickname is required"}, fmt.Errorf("nickname is required: %w", ErrInvalidArgument)
	}
	if err := d.ready(); err != nil {
		return Result{Message: "storage unavailable"}, storageErr("set nickname", err)
	}

	_, err := d.Messages.ExecContext(ctx, `
		INSERT INTO contact_nicknames (jid, nickname, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(jid) DO UPDATE SET
			nickname = excluded.nickname,
			updated_at = excluded.updated_at
	`, contactJID, nickname, time.Now().UTC())
	if err != nil {
		return Result{Message: fmt.Sprintf("failed to set nickname: %v", err)}, storageErr("set nickname", err)
	}
	return Result{Success: true, Message: fmt.Sprintf("Nickname for %s set to %q", contactJID, nickname)}, nil
}

// Nickname returns the nickname for jid and whether one is set.
func (d *DB) Nickname(ctx context.Context, contactJID string) (string, bool, error) {
	if err := d.ready(); err != nil {
		return "", false, storageErr("get nickname", err)
	}
	var nickname string
	err := d.Messages.QueryRowContext(ctx,
		"SELECT nickname FROM contact_nicknames WHERE jid = ?", contactJID).Scan(&nickname)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, storageErr("get nickname", err)
	}
	return nickname, true, nil
}

// RemoveNickname deletes the nickname for jid.
func (d *DB) RemoveNickname(ctx context.Context, contactJID string) (Result, error) {
	if err := d.ready(); err != nil {
		return Result{Message: "storage unavailable"}, storageErr("remove nickname", err)
	}
	res, err := d.Messages.ExecContext(ctx, "DELETE FROM contact_nicknames WHERE jid = ?", contactJID)
	if err != nil {
		return Result{Message: fmt.Sprintf("failed to remove nickname: %v", err)}, storageErr("remove nickname", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Result{Message: fmt.Sprintf("failed to remove nickname: %v", err)}, storageErr("remove nickname", err)
	}
	if n == 0 {
		return Result{Message: fmt.Sprintf("No nickname found for %s", contactJID)},
			fmt.Errorf("nickname for %q: %w", contactJID, ErrNotFound)
	}
	return Result{Success: true, Message: fmt.Sprintf("Nickname for %s removed", contactJID)}, nil
}

// ListNicknames returns every nickname ordered by nickname.
func (d *DB) ListNicknames(ctx context.Context) ([]Nickname, error) {
	if err := d.ready(); err != nil {
		return nil, storageErr("list nicknames", err)
	}
	rows, err := d.Messages.QueryContext(ctx,
		"SELECT jid, nickname, updated_at FROM contact_nicknames ORDER BY nickname, jid")
	if err != nil {
		return nil, storageErr("list nicknames", err)
	}
	defer func() { _ = rows.Close() }()

	out := []Nickname{}
	for rows.Next() {
		var n Nickname
		var updated sql.NullTime
		if err := rows.Scan(&n.JID, &n.Nickname, &updated); err != nil {
			return nil, storageErr("list nicknames", err)
		}
		n.UpdatedAt = updated.Time
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list nicknames", err)
	}
	return out, nil
}

// NicknameMap returns every nickname keyed by jid.
func (d *DB) NicknameMap(ctx context.Context) (map[string]string, error) {
	list, err := d.ListNicknames(ctx)
	if err != nil {
		return nil, err
	}
	m := make(map[string]string, len(list))
	for _, n := range list {
		m[n.JID] = n.Nickname
	}
	return m, nil
}
