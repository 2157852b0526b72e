package store

import "time"

// Chat represents a WhatsApp chat (direct message or group).
type Chat struct {
	JID             string     `json:"jid"`
	Name            *string    `json:"name,omitempty"`
	IsGroup         bool       `json:"is_group"`
	LastMessageTime *time.Time `json:"last_message_time,omitempty"`
	LastMessage     *string    `json:"last_message,omitempty"`
	LastSender      *string    `json:"last_sender,omitempty"`
	LastIsFromMe    *bool      `json:"last_is_from_me,omitempty"`
}

// DisplayName returns the chat name, or the JID when the chat is unnamed.
func (c Chat) DisplayName() string {
	if c.Name != nil && *c.Name != "" {
		return *c.Name
	}
	return c.JID
}

// Message represents a WhatsApp message.
type Message struct {
	ID         string    `json:"id"`
	ChatJID    string    `json:"chat_jid"`
	ChatName   *string   `json:"chat_name,omitempty"`
	Sender     string    `json:"sender"`
	SenderName *string   `json:"sender_name,omitempty"`
	Content    string    `json:"content"`
	Timestamp  time.Time `json:"timestamp"`
	IsFromMe   bool      `json:"is_from_me"`
	MediaType  *string   `json:"media_type,omitempty"`
	Filename   *string   `json:"filename,omitempty"`

	// rowid orders messages that share a timestamp.
	rowid int64
}

// SameAs reports whether both values identify the same stored message.
func (m Message) SameAs(o Message) bool {
	return m.ID == o.ID && m.ChatJID == o.ChatJID
}

// MessageContext is a target message with its neighbours in the same chat.
// Before and After are both ordered nearest to the target first.
type MessageContext struct {
	Message Message   `json:"message"`
	Before  []Message `json:"before"`
	After   []Message `json:"after"`
}

// Chronological returns the window oldest first with the target in place.
func (c *MessageContext) Chronological() []Message {
	out := make([]Message, 0, len(c.Before)+1+len(c.After))
	for i := len(c.Before) - 1; i >= 0; i-- {
		out = append(out, c.Before[i])
	}
	out = append(out, c.Message)
	return append(out, c.After...)
}

// Contact is a resolved identity merged from every source.
type Contact struct {
	JID          string  `json:"jid"`
	Phone        string  `json:"phone_number"`
	Name         string  `json:"name"`
	FirstName    *string `json:"first_name,omitempty"`
	FullName     *string `json:"full_name,omitempty"`
	PushName     *string `json:"push_name,omitempty"`
	BusinessName *string `json:"business_name,omitempty"`
	Nickname     *string `json:"nickname,omitempty"`
}

// AccountContact is a row of the account store's contact table.
type AccountContact struct {
	JID          string
	FirstName    *string
	FullName     *string
	PushName     *string
	BusinessName *string
}

// BestName picks full, push, first, then business name. Empty when none is set.
func (a AccountContact) BestName() string {
	for _, n := range []*string{a.FullName, a.PushName, a.FirstName, a.BusinessName} {
		if n != nil && *n != "" {
			return *n
		}
	}
	return ""
}

// Nickname is a user-defined display name override.
type Nickname struct {
	JID       string    `json:"jid"`
	Nickname  string    `json:"nickname"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Result reports the outcome of a nickname write.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ChatSort selects the ordering of ListChats.
type ChatSort string

const (
	SortLastActive ChatSort = "last_active"
	SortName       ChatSort = "name"
)

// ListChatsOptions contains options for listing chats.
type ListChatsOptions struct {
	Query              string
	Limit              int
	Page               int
	SortBy             ChatSort
	IncludeLastMessage bool
}

// ListMessagesOptions contains options for listing messages.
// After and Before are exclusive bounds.
type ListMessagesOptions struct {
	After   *time.Time
	Before  *time.Time
	Sender  string
	ChatJID string
	Query   string
	Limit   int
	Page    int
}

// DBStats contains database statistics.
type DBStats struct {
	Chats     int `json:"chats"`
	Messages  int `json:"messages"`
	Nicknames int `json:"nicknames"`
}
