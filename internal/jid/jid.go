// Package jid classifies and splits WhatsApp identifiers as stored in the
// archive databases.
package jid

import (
	"strings"

	"go.mau.fi/whatsmeow/types"
)

const (
	// UserSuffix marks an individual contact.
	UserSuffix = "@" + types.DefaultUserServer
	// LegacyUserSuffix marks an individual contact in the pre-multidevice format.
	LegacyUserSuffix = "@" + types.LegacyUserServer
	// GroupSuffix marks a group chat.
	GroupSuffix = "@" + types.GroupServer
)

// IsGroup reports whether the identifier names a group chat.
func IsGroup(id string) bool {
	return strings.HasSuffix(id, GroupSuffix)
}

// Phone returns the part of the identifier before the server separator.
// Identifiers without a separator are returned unchanged.
func Phone(id string) string {
	user, _, _ := strings.Cut(id, "@")
	return user
}

// HasServer reports whether the identifier carries a server part.
func HasServer(id string) bool {
	return strings.Contains(id, "@")
}

// Candidates returns the identifiers a bare phone number may be stored
// under, in lookup order.
func Candidates(phone string) []string {
	return []string{
		phone + UserSuffix,
		phone + LegacyUserSuffix,
		phone,
	}
}

// Parse converts a phone number or full identifier into a whatsmeow JID.
// Bare phone numbers are treated as individual contacts.
func Parse(id string) (types.JID, error) {
	if HasServer(id) {
		return types.ParseJID(id)
	}
	return types.NewJID(id, types.DefaultUserServer), nil
}
