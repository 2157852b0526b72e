// Package format renders archive records as plain text.
package format

import (
	"context"
	"fmt"
	"strings"

	"github.com/eddmann/whatsapp-archive/internal/store"
)

// TimeLayout is used for message timestamps.
const TimeLayout = "2006-01-02 15:04:05"

// NoMessages is printed for an empty message list.
const NoMessages = "No messages to display."

// Namer resolves an identifier to a display name.
type Namer interface {
	ResolveName(ctx context.Context, id string) string
}

// Formatter renders messages and contacts. Names is consulted only for
// messages whose sender has not been resolved yet and may be nil.
type Formatter struct {
	Names    Namer
	ShowChat bool
}

// New returns a Formatter that shows chat names.
func New(names Namer) *Formatter {
	return &Formatter{Names: names, ShowChat: true}
}

// Message renders one message as a single line.
func (f *Formatter) Message(ctx context.Context, m store.Message) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] ", m.Timestamp.Format(TimeLayout))
	if f.ShowChat && m.ChatName != nil && *m.ChatName != "" {
		fmt.Fprintf(&b, "Chat: %s ", *m.ChatName)
	}
	fmt.Fprintf(&b, "From: %s: ", f.sender(ctx, m))
	if m.MediaType != nil && *m.MediaType != "" {
		fmt.Fprintf(&b, "[%s - Message ID: %s - Chat JID: %s] ", *m.MediaType, m.ID, m.ChatJID)
	}
	b.WriteString(m.Content)
	b.WriteByte('\n')
	return b.String()
}

// Messages renders a list of messages, or NoMessages when it is empty.
func (f *Formatter) Messages(ctx context.Context, msgs []store.Message) string {
	if len(msgs) == 0 {
		return NoMessages
	}
	var b strings.Builder
	for _, m := range msgs {
		b.WriteString(f.Message(ctx, m))
	}
	return b.String()
}

// Context renders a context window oldest first, marking the target.
func (f *Formatter) Context(ctx context.Context, mc *store.MessageContext) string {
	var b strings.Builder
	for _, m := range mc.Chronological() {
		if m.SameAs(mc.Message) {
			b.WriteString("> ")
		} else {
			b.WriteString("  ")
		}
		b.WriteString(f.Message(ctx, m))
	}
	return b.String()
}

func (f *Formatter) sender(ctx context.Context, m store.Message) string {
	switch {
	case m.IsFromMe:
		return "Me"
	case m.SenderName != nil && *m.SenderName != "":
		return *m.SenderName
	case f.Names != nil:
		return f.Names.ResolveName(ctx, m.Sender)
	default:
		return m.Sender
	}
}

// Contact renders a contact as an indented block. Names equal to the
// display name are not repeated.
func Contact(c store.Contact) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s)\n", c.Name, c.Phone)
	fmt.Fprintf(&b, "   JID: %s\n", c.JID)
	line := func(label string, v *string, skipIfName bool) {
		if v == nil || *v == "" || (skipIfName && *v == c.Name) {
			return
		}
		fmt.Fprintf(&b, "   %s: %s\n", label, *v)
	}
	line("Full Name", c.FullName, true)
	line("First Name", c.FirstName, true)
	line("Display Name", c.PushName, true)
	line("Business", c.BusinessName, false)
	line("Nickname", c.Nickname, false)
	return b.String()
}

// Contacts renders several contacts separated by blank lines.
func Contacts(cs []store.Contact) string {
	if len(cs) == 0 {
		return "No contacts found."
	}
	parts := make([]string, len(cs))
	for i, c := range cs {
		parts[i] = Contact(c)
	}
	return strings.Join(parts, "\n")
}
