// Package resolve merges nickname overrides, the account contact table and
// chat names into one display identity per WhatsApp identifier.
package resolve

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/rs/zerolog"

	"github.com/eddmann/whatsapp-archive/internal/jid"
	"github.com/eddmann/whatsapp-archive/internal/metrics"
	"github.com/eddmann/whatsapp-archive/internal/store"
)

const (
	// DefaultContactLimit bounds ListAllContacts when no limit is given.
	DefaultContactLimit = 100
	// SearchLimit caps SearchContacts.
	SearchLimit = 50
)

// Sources reported by ResolveName, also used as metric labels.
const (
	SourceNickname  = "nickname"
	SourceAccount   = "account"
	SourceChat      = "chat"
	SourceChatPhone = "chat_phone"
	SourceFallback  = "fallback"
	SourceCache     = "cache"
)

// NameCache stores resolved display names. Failures never fail resolution.
type NameCache interface {
	Get(ctx context.Context, id string) (string, bool, error)
	Set(ctx context.Context, id, name string) error
	Delete(ctx context.Context, ids ...string) error
}

// Resolver answers "who is this identifier" from every source available.
// A nil account store is skipped; the chat history store is required.
type Resolver struct {
	messages *store.DB
	accounts *store.AccountDB
	cache    NameCache
	log      zerolog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithCache enables the name cache.
func WithCache(c NameCache) Option {
	return func(r *Resolver) { r.cache = c }
}

// WithLogger sets the logger used for degraded lookups.
func WithLogger(l zerolog.Logger) Option {
	return func(r *Resolver) { r.log = l }
}

// New creates a Resolver over the chat history and account stores.
func New(messages *store.DB, accounts *store.AccountDB, opts ...Option) *Resolver {
	r := &Resolver{messages: messages, accounts: accounts, log: zerolog.Nop()}
	for _, o := range opts {
		o(r)
	}
	return r
}

// ResolveName returns the best display name for id. It never fails: sources
// that error are skipped and id itself is the last resort.
func (r *Resolver) ResolveName(ctx context.Context, id string) string {
	name, _ := r.ResolveNameSource(ctx, id)
	return name
}

// ResolveNameSource is ResolveName that also reports which source answered.
func (r *Resolver) ResolveNameSource(ctx context.Context, id string) (string, string) {
	if id == "" {
		return id, SourceFallback
	}

	if r.cache != nil {
		name, ok, err := r.cache.Get(ctx, id)
		if err != nil {
			r.log.Debug().Err(err).Str("id", id).Msg("name cache read failed")
		} else if ok && name != "" {
			metrics.NameResolutions.WithLabelValues(SourceCache).Inc()
			return name, SourceCache
		}
	}

	name, source := r.lookupName(ctx, id)
	metrics.NameResolutions.WithLabelValues(source).Inc()

	if r.cache != nil && source != SourceFallback {
		if err := r.cache.Set(ctx, id, name); err != nil {
			r.log.Debug().Err(err).Str("id", id).Msg("name cache write failed")
		}
	}
	return name, source
}

func (r *Resolver) lookupName(ctx context.Context, id string) (string, string) {
	keys := lookupKeys(id)

	for _, k := range keys {
		nick, ok, err := r.messages.Nickname(ctx, k)
		if err != nil {
			r.degraded("resolve_nickname", err)
			break
		}
		if ok && nick != "" {
			return nick, SourceNickname
		}
	}

	for _, k := range keys {
		if r.accounts == nil {
			break
		}
		c, err := r.accounts.ContactByJID(ctx, k)
		if err != nil {
			r.degraded("resolve_account", err)
			break
		}
		// A record with every name empty falls through to the chat names.
		if c != nil {
			if name := c.BestName(); name != "" {
				return name, SourceAccount
			}
		}
	}

	name, err := r.messages.ChatName(ctx, id)
	if err != nil {
		r.degraded("resolve_chat", err)
		return id, SourceFallback
	}
	if name != "" {
		return name, SourceChat
	}

	if phone := jid.Phone(id); phone != "" {
		name, err = r.messages.ChatNameByPhone(ctx, phone)
		if err != nil {
			r.degraded("resolve_chat_phone", err)
		} else if name != "" {
			return name, SourceChatPhone
		}
	}

	return id, SourceFallback
}

// lookupKeys returns id, plus the individual-chat forms when id is a bare
// phone number.
func lookupKeys(id string) []string {
	if jid.HasServer(id) {
		return []string{id}
	}
	return append([]string{id}, jid.Candidates(id)[:2]...)
}

// ResolveContact builds the merged record for id. It returns nil, nil when
// neither the account store nor the chat history knows id.
func (r *Resolver) ResolveContact(ctx context.Context, id string) (*store.Contact, error) {
	var acc *store.AccountContact
	var accErr error
	if r.accounts != nil {
		acc, accErr = r.accounts.ContactByJID(ctx, id)
		if accErr != nil {
			r.degraded("resolve_contact_account", accErr)
		}
	}

	var chat *store.Chat
	var chatErr error
	if acc == nil {
		chat, chatErr = r.messages.IndividualChat(ctx, id)
	}

	if acc == nil && chat == nil {
		return nil, errors.Join(accErr, chatErr)
	}

	c := &store.Contact{JID: id, Phone: jid.Phone(id)}
	if acc != nil {
		c.FirstName, c.FullName, c.PushName, c.BusinessName = acc.FirstName, acc.FullName, acc.PushName, acc.BusinessName
		c.Name = acc.BestName()
	}
	if c.Name == "" {
		if chat != nil && chat.Name != nil {
			c.Name = *chat.Name
		} else if name, err := r.messages.ChatName(ctx, id); err == nil {
			c.Name = name
		}
	}
	if c.Name == "" {
		c.Name = c.Phone
	}

	r.attachNickname(ctx, c)
	if c.Nickname != nil {
		c.Name = *c.Nickname
	}
	return c, nil
}

// ResolveByPhone finds a contact by phone number, trying each identifier form
// before falling back to a substring match over individual chats.
func (r *Resolver) ResolveByPhone(ctx context.Context, phone string) (*store.Contact, error) {
	phone = strings.TrimPrefix(strings.TrimSpace(phone), "+")
	if phone == "" {
		return nil, fmt.Errorf("phone number is required: %w", store.ErrInvalidArgument)
	}

	var errs []error
	for _, id := range jid.Candidates(phone) {
		c, err := r.ResolveContact(ctx, id)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if c != nil {
			return c, nil
		}
	}

	chats, err := r.messages.IndividualChatsMatching(ctx, phone, 1)
	if err != nil {
		return nil, errors.Join(append(errs, err)...)
	}
	if len(chats) == 0 {
		return nil, errors.Join(errs...)
	}
	return r.ResolveContact(ctx, chats[0].JID)
}

// ListAllContacts returns account contacts named by the account and chat
// sources. Named contacts come first ordered case-insensitively, unnamed
// ones follow ordered by identifier.
func (r *Resolver) ListAllContacts(ctx context.Context, limit int) ([]store.Contact, error) {
	if limit <= 0 {
		limit = DefaultContactLimit
	}

	accounts, err := r.accounts.AllContacts(ctx)
	if err != nil {
		return nil, err
	}
	nicknames := r.nicknameMap(ctx)

	var named, unnamed []store.Contact
	for _, a := range accounts {
		if jid.IsGroup(a.JID) {
			continue
		}
		c := fromAccount(a)
		if c.Name == "" {
			c.Name = r.chatName(ctx, a.JID)
		}
		if nick, ok := nicknames[a.JID]; ok {
			c.Nickname = &nick
		}
		if c.Name == "" {
			c.Name = c.Phone
			unnamed = append(unnamed, c)
			continue
		}
		named = append(named, c)
	}

	slices.SortStableFunc(named, byName)
	slices.SortStableFunc(unnamed, func(a, b store.Contact) int { return cmp.Compare(a.JID, b.JID) })

	out := append(named, unnamed...)
	if len(out) > limit {
		out = out[:limit]
	}
	if out == nil {
		out = []store.Contact{}
	}
	return out, nil
}

// SearchContacts matches query against account names, identifiers,
// nicknames and individual chat names. At most SearchLimit results are
// returned, ordered by display name.
func (r *Resolver) SearchContacts(ctx context.Context, query string) ([]store.Contact, error) {
	query = strings.TrimSpace(query)
	nicknames := r.nicknameMap(ctx)
	found := map[string]store.Contact{}

	var accounts []store.AccountContact
	var accErr error
	if r.accounts != nil {
		accounts, accErr = r.accounts.SearchContacts(ctx, query, SearchLimit)
		if accErr != nil {
			r.degraded("search_contacts_account", accErr)
		}
	}
	for _, a := range accounts {
		if jid.IsGroup(a.JID) {
			continue
		}
		c := fromAccount(a)
		if c.Name == "" {
			c.Name = c.Phone
		}
		found[a.JID] = c
	}

	chats, chatErr := r.messages.IndividualChatsMatching(ctx, query, SearchLimit)
	if chatErr != nil {
		r.degraded("search_contacts_chat", chatErr)
	}
	for _, ch := range chats {
		if _, ok := found[ch.JID]; ok {
			continue
		}
		found[ch.JID] = store.Contact{JID: ch.JID, Phone: jid.Phone(ch.JID), Name: cmp.Or(ptrValue(ch.Name), jid.Phone(ch.JID))}
	}

	if accErr != nil && chatErr != nil {
		return nil, errors.Join(accErr, chatErr)
	}

	lower := strings.ToLower(query)
	for id, nick := range nicknames {
		if _, ok := found[id]; ok || jid.IsGroup(id) || !strings.Contains(strings.ToLower(nick), lower) {
			continue
		}
		if c, err := r.ResolveContact(ctx, id); err == nil && c != nil {
			found[id] = *c
		} else {
			found[id] = store.Contact{JID: id, Phone: jid.Phone(id), Name: nick}
		}
	}

	out := make([]store.Contact, 0, len(found))
	for id, c := range found {
		if nick, ok := nicknames[id]; ok {
			c.Nickname = &nick
			c.Name = nick
		}
		out = append(out, c)
	}
	slices.SortFunc(out, byName)
	if len(out) > SearchLimit {
		out = out[:SearchLimit]
	}
	return out, nil
}

// Nickname returns the override for id.
func (r *Resolver) Nickname(ctx context.Context, id string) (string, bool, error) {
	return r.messages.Nickname(ctx, id)
}

// ListNicknames returns every override ordered by nickname.
func (r *Resolver) ListNicknames(ctx context.Context) ([]store.Nickname, error) {
	return r.messages.ListNicknames(ctx)
}

// SetNickname stores an override and drops cached names for id.
func (r *Resolver) SetNickname(ctx context.Context, id, nickname string) (store.Result, error) {
	res, err := r.messages.SetNickname(ctx, id, nickname)
	if err == nil {
		r.invalidate(ctx, strings.TrimSpace(id))
	}
	return res, err
}

// RemoveNickname deletes an override and drops cached names for id.
func (r *Resolver) RemoveNickname(ctx context.Context, id string) (store.Result, error) {
	res, err := r.messages.RemoveNickname(ctx, id)
	if err == nil {
		r.invalidate(ctx, id)
	}
	return res, err
}

func (r *Resolver) invalidate(ctx context.Context, id string) {
	if r.cache == nil {
		return
	}
	keys := []string{id}
	if phone := jid.Phone(id); phone != id && phone != "" {
		keys = append(keys, phone)
	}
	if err := r.cache.Delete(ctx, keys...); err != nil {
		r.log.Warn().Err(err).Str("id", id).Msg("name cache invalidation failed")
	}
}

func (r *Resolver) attachNickname(ctx context.Context, c *store.Contact) {
	nick, ok, err := r.messages.Nickname(ctx, c.JID)
	if err != nil {
		r.degraded("resolve_nickname", err)
		return
	}
	if ok {
		c.Nickname = &nick
	}
}

func (r *Resolver) nicknameMap(ctx context.Context) map[string]string {
	m, err := r.messages.NicknameMap(ctx)
	if err != nil {
		r.degraded("list_nicknames", err)
		return map[string]string{}
	}
	return m
}

func (r *Resolver) chatName(ctx context.Context, id string) string {
	name, err := r.messages.ChatName(ctx, id)
	if err != nil {
		r.degraded("resolve_chat", err)
		return ""
	}
	if name != "" {
		return name
	}
	name, err = r.messages.ChatNameByPhone(ctx, jid.Phone(id))
	if err != nil {
		r.degraded("resolve_chat_phone", err)
		return ""
	}
	return name
}

func (r *Resolver) degraded(op string, err error) {
	metrics.StorageFailures.WithLabelValues(op).Inc()
	r.log.Warn().Err(err).Str("op", op).Msg("lookup degraded")
}

func fromAccount(a store.AccountContact) store.Contact {
	return store.Contact{
		JID:          a.JID,
		Phone:        jid.Phone(a.JID),
		Name:         a.BestName(),
		FirstName:    a.FirstName,
		FullName:     a.FullName,
		PushName:     a.PushName,
		BusinessName: a.BusinessName,
	}
}

func byName(a, b store.Contact) int {
	return cmp.Or(
		cmp.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)),
		cmp.Compare(a.JID, b.JID),
	)
}

func ptrValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
