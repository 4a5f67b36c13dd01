// Package registry tracks live client connections by identifier and
// dispatches unicast, broadcast and roster messages to them.
package registry

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/samber/lo"
)

const (
	// RosterTag prefixes every roster message.
	RosterTag = "CLIENT_LIST"
	// RelaySeparator sits between the sender identifier and the relayed text.
	RelaySeparator = " from server: "
)

// FormatRoster renders identifiers as "CLIENT_LIST:a,b,c".
func FormatRoster(identifiers []string) string {
	return RosterTag + ":" + strings.Join(identifiers, ",")
}

// FormatRelay renders a chat message as "<sender> from server: <text>".
func FormatRelay(sender, text string) string {
	return sender + RelaySeparator + text
}

type member struct {
	id string
	ch Channel
}

// Registry is the single source of truth for who is connected. All access to
// the identifier mapping goes through its methods, which are safe for
// concurrent use. Channels are compared with ==, so implementations must be
// comparable (pointer receivers are).
type Registry struct {
	mu    sync.Mutex
	conns map[string]Channel
	order []string // first-insertion order of the keys in conns
	log   *slog.Logger
}

// New returns an empty Registry.
func New(log *slog.Logger) *Registry {
	return &Registry{
		conns: make(map[string]Channel),
		log:   log,
	}
}

// Connect registers ch under identifier. An existing entry for the same
// identifier is replaced in place; its channel is left open and becomes
// unreachable through the registry.
func (r *Registry) Connect(identifier string, ch Channel) {
	r.mu.Lock()
	prev, replaced := r.conns[identifier]
	r.conns[identifier] = ch
	if !replaced {
		r.order = append(r.order, identifier)
	}
	total := len(r.conns)
	r.mu.Unlock()

	if replaced && prev != ch {
		r.log.Warn("Identifier reused, previous connection is no longer addressable", "id", identifier)
	}
	r.log.Info("Client connected", "id", identifier, "total", total)
}

// Disconnect removes the first entry whose channel is ch and reports whether
// one was found. Unknown channels are ignored.
func (r *Registry) Disconnect(ch Channel) bool {
	r.mu.Lock()
	idx := slices.IndexFunc(r.order, func(id string) bool {
		return r.conns[id] == ch
	})
	if idx < 0 {
		r.mu.Unlock()
		return false
	}
	identifier := r.order[idx]
	delete(r.conns, identifier)
	r.order = slices.Delete(r.order, idx, idx+1)
	total := len(r.conns)
	r.mu.Unlock()

	r.log.Info("Client disconnected", "id", identifier, "total", total)
	return true
}

// SendToOne sends text to the channel registered under identifier. It returns
// false when nobody is registered under it or the channel refused the write.
func (r *Registry) SendToOne(identifier, text string) bool {
	r.mu.Lock()
	ch, ok := r.conns[identifier]
	r.mu.Unlock()
	if !ok {
		r.log.Debug("Unicast to unknown identifier dropped", "id", identifier)
		return false
	}
	return r.deliver(member{id: identifier, ch: ch}, text)
}

// Broadcast sends text once to every channel registered when the call starts.
// A failing channel never stops delivery to the others.
func (r *Registry) Broadcast(text string) {
	r.fanOut(r.snapshot(), text)
}

// BroadcastRoster sends the current roster to every registered channel. The
// roster and the recipients come from the same snapshot.
func (r *Registry) BroadcastRoster() {
	members := r.snapshot()
	ids := lo.Map(members, func(m member, _ int) string { return m.id })
	r.fanOut(members, FormatRoster(ids))
}

// ListIdentifiers returns a copy of the registered identifiers.
func (r *Registry) ListIdentifiers() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.order)
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

func (r *Registry) snapshot() []member {
	r.mu.Lock()
	defer r.mu.Unlock()
	return lo.Map(r.order, func(id string, _ int) member {
		return member{id: id, ch: r.conns[id]}
	})
}

func (r *Registry) fanOut(members []member, text string) {
	failed := lo.Reject(members, func(m member, _ int) bool {
		return r.deliver(m, text)
	})
	if len(failed) > 0 {
		r.log.Warn("Broadcast incomplete",
			"recipients", len(members),
			"failed", lo.Map(failed, func(m member, _ int) string { return m.id }))
	}
}

// deliver isolates a single send, including a panicking channel.
func (r *Registry) deliver(m member, text string) (ok bool) {
	defer func() {
		if p := recover(); p != nil {
			r.log.Error("Recovered from panic while sending", "id", m.id, "panic", fmt.Sprint(p))
			ok = false
		}
	}()

	if err := m.ch.SendText(text); err != nil {
		r.log.Warn("Send failed", "id", m.id, "error", err)
		return false
	}
	return true
}
