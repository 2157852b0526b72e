package store

import (
	"context"
	"database/sql"
	"fmt"
)

// AccountDB is a read-only view of the contact table maintained by the
// WhatsApp session store.
type AccountDB struct {
	Contacts *sql.DB
	path     string
}

const accountColumns = `their_jid, first_name, full_name, push_name, business_name FROM whatsmeow_contacts`

// accountName mirrors AccountContact.BestName for ordering in SQL.
const accountName = `COALESCE(NULLIF(full_name, ''), NULLIF(push_name, ''), NULLIF(first_name, ''), NULLIF(business_name, ''), their_jid)`

// OpenAccounts opens the account store at path without write access.
func OpenAccounts(path string) (*AccountDB, error) {
	dsn := fmt.Sprintf("file:%s?mode=ro&_busy_timeout=5000", path)
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, storageErr("open account db", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, storageErr("open account db", err)
	}
	return &AccountDB{Contacts: db, path: path}, nil
}

// Path returns the file the store was opened from.
func (a *AccountDB) Path() string {
	if a == nil {
		return ""
	}
	return a.path
}

// Close closes the database connection.
func (a *AccountDB) Close() error {
	if a == nil || a.Contacts == nil {
		return nil
	}
	return a.Contacts.Close()
}

// Ping checks that the store answers.
func (a *AccountDB) Ping(ctx context.Context) error {
	if err := a.ready(); err != nil {
		return storageErr("ping account db", err)
	}
	return storageErr("ping account db", a.Contacts.PingContext(ctx))
}

// ContactByJID returns the account record for jid, or nil when there is none.
func (a *AccountDB) ContactByJID(ctx context.Context, contactJID string) (*AccountContact, error) {
	if err := a.ready(); err != nil {
		return nil, storageErr("account contact", err)
	}
	contacts, err := a.scan(ctx, "account contact",
		"SELECT "+accountColumns+" WHERE their_jid = ? ORDER BY our_jid LIMIT 1", contactJID)
	if err != nil {
		return nil, err
	}
	if len(contacts) == 0 {
		return nil, nil
	}
	return &contacts[0], nil
}

// SearchContacts returns account records whose names or identifier contain
// query, ordered by display name.
func (a *AccountDB) SearchContacts(ctx context.Context, query string, limit int) ([]AccountContact, error) {
	if err := a.ready(); err != nil {
		return nil, storageErr("search account contacts", err)
	}
	pattern := likePattern(query)
	q := "SELECT " + accountColumns + `
		WHERE ` + contains("first_name") + `
		OR ` + contains("full_name") + `
		OR ` + contains("push_name") + `
		OR ` + contains("business_name") + `
		OR ` + contains("their_jid") + `
		ORDER BY ` + accountName + ` COLLATE NOCASE, their_jid`
	if limit > 0 {
		q += fmt.Sprintf(" LIMIT %d", limit)
	}
	return a.scan(ctx, "search account contacts", q, pattern, pattern, pattern, pattern, pattern)
}

// AllContacts returns every account record ordered by identifier.
func (a *AccountDB) AllContacts(ctx context.Context) ([]AccountContact, error) {
	if err := a.ready(); err != nil {
		return nil, storageErr("all account contacts", err)
	}
	return a.scan(ctx, "all account contacts", "SELECT "+accountColumns+" ORDER BY their_jid")
}

func (a *AccountDB) ready() error {
	if a == nil || a.Contacts == nil {
		return errClosed
	}
	return nil
}

func (a *AccountDB) scan(ctx context.Context, op, query string, args ...any) ([]AccountContact, error) {
	rows, err := a.Contacts.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr(op, err)
	}
	defer func() { _ = rows.Close() }()

	out := []AccountContact{}
	seen := map[string]bool{}
	for rows.Next() {
		var c AccountContact
		var first, full, push, business sql.NullString
		if err := rows.Scan(&c.JID, &first, &full, &push, &business); err != nil {
			return nil, storageErr(op, err)
		}
		// The same contact appears once per linked account; keep the first.
		if seen[c.JID] {
			continue
		}
		seen[c.JID] = true
		c.FirstName = nullable(first)
		c.FullName = nullable(full)
		c.PushName = nullable(push)
		c.BusinessName = nullable(business)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(op, err)
	}
	return out, nil
}

func nullable(s sql.NullString) *string {
	if !s.Valid || s.String == "" {
		return nil
	}
	return &s.String
}
