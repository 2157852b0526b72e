// Package archive is the query surface over the WhatsApp archive: filtered
// message and chat listings, context windows and contact lookups, with every
// sender resolved to a display name.
package archive

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/eddmann/whatsapp-archive/internal/metrics"
	"github.com/eddmann/whatsapp-archive/internal/resolve"
	"github.com/eddmann/whatsapp-archive/internal/store"
)

const (
	DefaultLimit         = 20
	DefaultContextBefore = 1
	DefaultContextAfter  = 1
)

// MessageFilter selects messages. After and Before are exclusive ISO-8601
// bounds; Page is zero-based.
type MessageFilter struct {
	After          string
	Before         string
	Sender         string
	ChatJID        string
	Query          string
	Limit          int
	Page           int
	IncludeContext bool
	ContextBefore  int
	ContextAfter   int
}

// DefaultMessageFilter returns a filter with the documented defaults.
func DefaultMessageFilter() MessageFilter {
	return MessageFilter{
		Limit:         DefaultLimit,
		ContextBefore: DefaultContextBefore,
		ContextAfter:  DefaultContextAfter,
	}
}

// ChatFilter selects chats.
type ChatFilter struct {
	Query              string
	Limit              int
	Page               int
	SortBy             string
	IncludeLastMessage bool
}

// DefaultChatFilter returns a filter with the documented defaults.
func DefaultChatFilter() ChatFilter {
	return ChatFilter{
		Limit:              DefaultLimit,
		SortBy:             string(store.SortLastActive),
		IncludeLastMessage: true,
	}
}

// Service answers archive queries. Bulk listings degrade to empty results
// when a store fails; single lookups return the error.
type Service struct {
	db       *store.DB
	resolver *resolve.Resolver
	log      zerolog.Logger
}

// New creates a Service.
func New(db *store.DB, resolver *resolve.Resolver, log zerolog.Logger) *Service {
	return &Service{db: db, resolver: resolver, log: log}
}

// Resolver exposes the name resolver backing the service.
func (s *Service) Resolver() *resolve.Resolver {
	return s.resolver
}

// ListMessages returns messages matching f, newest first. With
// IncludeContext each match is replaced by its chronological window, so the
// result may exceed Limit.
func (s *Service) ListMessages(ctx context.Context, f MessageFilter) ([]store.Message, error) {
	defer metrics.ObserveSince("list_messages", time.Now())

	opts := store.ListMessagesOptions{
		Sender:  f.Sender,
		ChatJID: f.ChatJID,
		Query:   f.Query,
		Limit:   f.Limit,
		Page:    max(f.Page, 0),
	}
	if opts.Limit <= 0 {
		opts.Limit = DefaultLimit
	}

	var err error
	if opts.After, err = parseBound("after", f.After); err != nil {
		return nil, err
	}
	if opts.Before, err = parseBound("before", f.Before); err != nil {
		return nil, err
	}

	msgs, err := s.db.ListMessages(ctx, opts)
	if err != nil {
		if store.IsStorage(err) {
			return s.degradeMessages("list_messages", err)
		}
		return nil, err
	}

	names := s.nameMemo()
	if !f.IncludeContext {
		s.enrich(ctx, names, msgs)
		return msgs, nil
	}

	before, after := max(f.ContextBefore, 0), max(f.ContextAfter, 0)
	out := make([]store.Message, 0, len(msgs)*(1+before+after))
	for _, m := range msgs {
		mc, err := s.window(ctx, m, before, after)
		if err != nil {
			s.degraded("message_context", err)
			out = append(out, m)
			continue
		}
		out = append(out, mc.Chronological()...)
	}
	s.enrich(ctx, names, out)
	return out, nil
}

// GetContext returns the message with the given id and its neighbours in the
// same chat. chatJID may be empty, in which case the most recent message with
// that id is used. Negative counts are treated as zero.
func (s *Service) GetContext(ctx context.Context, messageID, chatJID string, before, after int) (*store.MessageContext, error) {
	defer metrics.ObserveSince("get_context", time.Now())

	if strings.TrimSpace(messageID) == "" {
		return nil, fmt.Errorf("message id is required: %w", store.ErrInvalidArgument)
	}
	target, err := s.db.MessageByID(ctx, messageID, chatJID)
	if err != nil {
		return nil, err
	}

	mc, err := s.window(ctx, *target, max(before, 0), max(after, 0))
	if err != nil {
		return nil, err
	}

	names := s.nameMemo()
	s.enrichOne(ctx, names, &mc.Message)
	s.enrich(ctx, names, mc.Before)
	s.enrich(ctx, names, mc.After)
	return mc, nil
}

func (s *Service) window(ctx context.Context, target store.Message, before, after int) (*store.MessageContext, error) {
	b, err := s.db.MessagesBefore(ctx, target, before)
	if err != nil {
		return nil, err
	}
	a, err := s.db.MessagesAfter(ctx, target, after)
	if err != nil {
		return nil, err
	}
	return &store.MessageContext{Message: target, Before: b, After: a}, nil
}

// HistoryPageSize is the number of rows ChatHistory reads per query.
const HistoryPageSize = 500

// ChatHistory returns every message of a chat, oldest first, with sender
// names resolved. Unlike ListMessages it fails on storage errors rather
// than returning a partial history.
func (s *Service) ChatHistory(ctx context.Context, chatJID string) ([]store.Message, error) {
	defer metrics.ObserveSince("chat_history", time.Now())
	if strings.TrimSpace(chatJID) == "" {
		return nil, fmt.Errorf("chat jid is required: %w", store.ErrInvalidArgument)
	}

	var all []store.Message
	for page := 0; ; page++ {
		msgs, err := s.db.ListMessages(ctx, store.ListMessagesOptions{
			ChatJID: chatJID,
			Limit:   HistoryPageSize,
			Page:    page,
		})
		if err != nil {
			return nil, fmt.Errorf("read page %d: %w", page, err)
		}
		all = append(all, msgs...)
		if len(msgs) < HistoryPageSize {
			break
		}
	}
	slices.Reverse(all)
	s.enrich(ctx, s.nameMemo(), all)
	return all, nil
}

// ListChats returns chats matching f.
func (s *Service) ListChats(ctx context.Context, f ChatFilter) ([]store.Chat, error) {
	defer metrics.ObserveSince("list_chats", time.Now())

	opts := store.ListChatsOptions{
		Query:              f.Query,
		Limit:              f.Limit,
		Page:               max(f.Page, 0),
		SortBy:             store.ChatSort(f.SortBy),
		IncludeLastMessage: f.IncludeLastMessage,
	}
	if opts.Limit <= 0 {
		opts.Limit = DefaultLimit
	}

	chats, err := s.db.ListChats(ctx, opts)
	if err != nil {
		if store.IsStorage(err) {
			return s.degradeChats("list_chats", err)
		}
		return nil, err
	}
	return chats, nil
}

// CountChats returns the number of chats matching query.
func (s *Service) CountChats(ctx context.Context, query string) (int, error) {
	return s.db.CountChats(ctx, query)
}

// CountMessages returns the number of messages, optionally in one chat.
func (s *Service) CountMessages(ctx context.Context, chatJID string) (int, error) {
	return s.db.CountMessages(ctx, chatJID)
}

// GetChat returns a single chat.
func (s *Service) GetChat(ctx context.Context, chatJID string, includeLast bool) (*store.Chat, error) {
	return s.db.GetChat(ctx, chatJID, includeLast)
}

// GetDirectChatByContact returns the individual chat with the given phone.
func (s *Service) GetDirectChatByContact(ctx context.Context, phone string) (*store.Chat, error) {
	phone = strings.TrimPrefix(strings.TrimSpace(phone), "+")
	if phone == "" {
		return nil, fmt.Errorf("phone number is required: %w", store.ErrInvalidArgument)
	}
	return s.db.DirectChatByPhone(ctx, phone)
}

// ContactChats returns the chats a contact takes part in, most recent first.
func (s *Service) ContactChats(ctx context.Context, contactJID string, limit, page int) ([]store.Chat, error) {
	defer metrics.ObserveSince("contact_chats", time.Now())
	if limit <= 0 {
		limit = DefaultLimit
	}
	chats, err := s.db.ContactChats(ctx, contactJID, limit, page)
	if err != nil {
		if store.IsStorage(err) {
			return s.degradeChats("contact_chats", err)
		}
		return nil, err
	}
	return chats, nil
}

// LastInteraction returns the most recent message exchanged with a contact.
func (s *Service) LastInteraction(ctx context.Context, contactJID string) (*store.Message, error) {
	m, err := s.db.LastInteraction(ctx, contactJID)
	if err != nil {
		return nil, err
	}
	s.enrichOne(ctx, s.nameMemo(), m)
	return m, nil
}

// ListAllContacts returns known contacts, named ones first.
func (s *Service) ListAllContacts(ctx context.Context, limit int) ([]store.Contact, error) {
	defer metrics.ObserveSince("list_contacts", time.Now())
	contacts, err := s.resolver.ListAllContacts(ctx, limit)
	if err != nil {
		return s.degradeContacts("list_contacts", err)
	}
	return contacts, nil
}

// SearchContacts returns contacts matching query.
func (s *Service) SearchContacts(ctx context.Context, query string) ([]store.Contact, error) {
	defer metrics.ObserveSince("search_contacts", time.Now())
	contacts, err := s.resolver.SearchContacts(ctx, query)
	if err != nil {
		return s.degradeContacts("search_contacts", err)
	}
	return contacts, nil
}

// ResolveName returns the display name for id.
func (s *Service) ResolveName(ctx context.Context, id string) string {
	return s.resolver.ResolveName(ctx, id)
}

// ResolveContact returns the merged contact record for id, or nil.
func (s *Service) ResolveContact(ctx context.Context, id string) (*store.Contact, error) {
	return s.resolver.ResolveContact(ctx, id)
}

// ResolveByPhone returns the contact for a phone number, or nil.
func (s *Service) ResolveByPhone(ctx context.Context, phone string) (*store.Contact, error) {
	return s.resolver.ResolveByPhone(ctx, phone)
}

// SetNickname stores a nickname override.
func (s *Service) SetNickname(ctx context.Context, contactJID, nickname string) (store.Result, error) {
	return s.resolver.SetNickname(ctx, contactJID, nickname)
}

// Nickname returns the override for a contact.
func (s *Service) Nickname(ctx context.Context, contactJID string) (string, bool, error) {
	return s.resolver.Nickname(ctx, contactJID)
}

// RemoveNickname deletes the override for a contact.
func (s *Service) RemoveNickname(ctx context.Context, contactJID string) (store.Result, error) {
	return s.resolver.RemoveNickname(ctx, contactJID)
}

// ListNicknames returns every override.
func (s *Service) ListNicknames(ctx context.Context) ([]store.Nickname, error) {
	return s.resolver.ListNicknames(ctx)
}

// Stats returns row counts for diagnostics.
func (s *Service) Stats(ctx context.Context) (store.DBStats, error) {
	return s.db.Stats(ctx)
}

// nameMemo caches resolved names for the duration of one call.
func (s *Service) nameMemo() map[string]string {
	return map[string]string{}
}

func (s *Service) enrich(ctx context.Context, names map[string]string, msgs []store.Message) {
	for i := range msgs {
		s.enrichOne(ctx, names, &msgs[i])
	}
}

func (s *Service) enrichOne(ctx context.Context, names map[string]string, m *store.Message) {
	if m.Sender == "" {
		return
	}
	name, ok := names[m.Sender]
	if !ok {
		name = s.resolver.ResolveName(ctx, m.Sender)
		names[m.Sender] = name
	}
	m.SenderName = &name
}

func (s *Service) degraded(op string, err error) {
	metrics.StorageFailures.WithLabelValues(op).Inc()
	s.log.Warn().Err(err).Str("op", op).Msg("storage failure, returning partial result")
}

func (s *Service) degradeMessages(op string, err error) ([]store.Message, error) {
	s.degraded(op, err)
	return []store.Message{}, nil
}

func (s *Service) degradeChats(op string, err error) ([]store.Chat, error) {
	s.degraded(op, err)
	return []store.Chat{}, nil
}

func (s *Service) degradeContacts(op string, err error) ([]store.Contact, error) {
	s.degraded(op, err)
	return []store.Contact{}, nil
}

// Ping checks that the messages store is reachable.
func (s *Service) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// MediaMessage returns a message that carries media, resolving its chat when
// chatJID is empty.
func (s *Service) MediaMessage(ctx context.Context, messageID, chatJID string) (*store.Message, error) {
	if strings.TrimSpace(messageID) == "" {
		return nil, fmt.Errorf("message id is required: %w", store.ErrInvalidArgument)
	}
	return s.db.MediaMessage(ctx, messageID, chatJID)
}
