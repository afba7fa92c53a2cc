package client

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AdityaGahukar/PingWave/internal/domain"
)

// SendFunc performs the actual send request against the server.
type SendFunc func(ctx context.Context, receiverID string, req *domain.SendMessageRequest) (*domain.Message, error)

// Entry is one row of the local message list. While Pending is set the
// message exists only locally, under a temporary id; reconciliation
// either confirms it in place or removes it.
type Entry struct {
	Message domain.Message
	TempID  string
	Pending bool
}

// SyncEngine keeps the local view of one conversation consistent with
// the server: optimistic inserts on send, reconciliation against the
// server response, and appends from pushed newMessage events scoped to
// the selected partner.
//
// At most one push subscription is live at a time; selecting a new
// partner always tears down the previous listener first, so an event
// is never appended twice.
type SyncEngine struct {
	mu      sync.Mutex
	entries []Entry

	send      SendFunc
	bus       *EventBus
	partnerID string
	cancelSub func()
}

// NewSyncEngine creates a SyncEngine sending through send and
// listening on bus.
func NewSyncEngine(send SendFunc, bus *EventBus) *SyncEngine {
	return &SyncEngine{
		send: send,
		bus:  bus,
	}
}

// SelectPartner switches the engine to a conversation, replacing the
// local list with the given history and moving the push subscription
// over to the new partner.
func (e *SyncEngine) SelectPartner(partnerID string, history []domain.Message) {
	e.mu.Lock()
	if e.cancelSub != nil {
		e.cancelSub()
		e.cancelSub = nil
	}

	e.partnerID = partnerID
	e.entries = make([]Entry, 0, len(history))
	for _, msg := range history {
		e.entries = append(e.entries, Entry{Message: msg})
	}

	if e.bus != nil {
		e.cancelSub = e.bus.Subscribe(e.handleEvent)
	}
	e.mu.Unlock()
}

// ClearPartner leaves the current conversation and stops listening.
func (e *SyncEngine) ClearPartner() {
	e.mu.Lock()
	if e.cancelSub != nil {
		e.cancelSub()
		e.cancelSub = nil
	}
	e.partnerID = ""
	e.entries = nil
	e.mu.Unlock()
}

// Send appends an optimistic entry, issues the request, and reconciles
// the entry against the outcome. After Send returns, the list holds
// either the confirmed entry or nothing for this message; never a stuck
// pending one.
func (e *SyncEngine) Send(ctx context.Context, text, image string) (*domain.Message, error) {
	e.mu.Lock()
	partnerID := e.partnerID
	tempID := uuid.New().String()
	e.entries = append(e.entries, Entry{
		Message: domain.Message{
			ID:         tempID,
			ReceiverID: partnerID,
			Text:       text,
			Image:      image,
			CreatedAt:  time.Now(),
		},
		TempID:  tempID,
		Pending: true,
	})
	e.mu.Unlock()

	msg, err := e.send(ctx, partnerID, &domain.SendMessageRequest{Text: text, Image: image})
	if err != nil {
		e.removeByTempID(tempID)
		return nil, err
	}

	e.confirm(tempID, *msg)
	return msg, nil
}

// Entries returns a copy of the current message list.
func (e *SyncEngine) Entries() []Entry {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]Entry, len(e.entries))
	copy(out, e.entries)
	return out
}

// confirm replaces the pending entry in place, preserving its visual
// position. When the entry is gone (the list was reset meanwhile) the
// confirmed message is appended instead.
func (e *SyncEngine) confirm(tempID string, msg domain.Message) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i := range e.entries {
		if e.entries[i].TempID == tempID {
			e.entries[i] = Entry{Message: msg}
			return
		}
	}
	e.entries = append(e.entries, Entry{Message: msg})
}

// removeByTempID drops a failed optimistic entry. Idempotent.
func (e *SyncEngine) removeByTempID(tempID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i := range e.entries {
		if e.entries[i].TempID == tempID {
			e.entries = append(e.entries[:i], e.entries[i+1:]...)
			return
		}
	}
}

// handleEvent appends pushed messages from the selected partner. All
// other events, and messages from other senders, are ignored here.
func (e *SyncEngine) handleEvent(evt IncomingEvent) {
	if evt.Event != domain.EventNewMessage {
		return
	}

	var msg domain.Message
	if err := json.Unmarshal(evt.Data, &msg); err != nil {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if msg.SenderID != e.partnerID {
		return
	}
	e.entries = append(e.entries, Entry{Message: msg})
}
