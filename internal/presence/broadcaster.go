package presence

import (
	"github.com/AdityaGahukar/PingWave/internal/domain"
	"github.com/AdityaGahukar/PingWave/internal/registry"
	"github.com/AdityaGahukar/PingWave/pkg/log"
)

// Broadcaster owns the presence side of connection lifecycle: every
// registry transition that changes the set of online user ids is
// followed by a full online-list push to every live connection.
// Multi-device adds and removes that leave the set unchanged do not
// broadcast.
type Broadcaster struct {
	reg *registry.Registry
}

// NewBroadcaster creates a Broadcaster over the given registry.
func NewBroadcaster(reg *registry.Registry) *Broadcaster {
	return &Broadcaster{reg: reg}
}

// Connected registers a freshly authenticated handle. The newcomer
// always receives the current online set; everyone else is notified
// only when the user was previously offline.
func (b *Broadcaster) Connected(h registry.Handle) {
	cameOnline := b.reg.Add(h)

	if err := h.Push(domain.EventOnlineUsers, b.reg.Snapshot()); err != nil {
		l := log.L()
		l.Debug().Err(err).Str(log.FieldConnID, h.ID()).Msg("snapshot push failed")
	}

	if cameOnline {
		b.broadcast()
	}

	l := log.L()
	l.Info().
		Str(log.FieldUserID, h.UserID()).
		Str(log.FieldConnID, h.ID()).
		Bool("came_online", cameOnline).
		Msg("connection registered")
}

// Disconnected removes a handle. Safe to call more than once per
// handle; only an actual offline transition broadcasts.
func (b *Broadcaster) Disconnected(h registry.Handle) {
	wentOffline := b.reg.Remove(h)
	if wentOffline {
		b.broadcast()
	}

	l := log.L()
	l.Info().
		Str(log.FieldUserID, h.UserID()).
		Str(log.FieldConnID, h.ID()).
		Bool("went_offline", wentOffline).
		Msg("connection removed")
}

// broadcast pushes the current online set to every live connection.
// Fire-and-forget: a stale handle failing does not block the rest and
// is not retried; its own disconnect event cleans it up.
func (b *Broadcaster) broadcast() {
	online := b.reg.Snapshot()
	for _, h := range b.reg.Handles() {
		if err := h.Push(domain.EventOnlineUsers, online); err != nil {
			l := log.L()
			l.Debug().Err(err).Str(log.FieldConnID, h.ID()).Msg("presence push failed")
		}
	}
}
