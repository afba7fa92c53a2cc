package relay

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AdityaGahukar/PingWave/internal/cache"
	"github.com/AdityaGahukar/PingWave/internal/domain"
	"github.com/AdityaGahukar/PingWave/internal/registry"
	"github.com/AdityaGahukar/PingWave/internal/repository"
)

type fakeUserRepo struct {
	users map[string]domain.User
}

func (r *fakeUserRepo) Create(ctx context.Context, user *domain.User) error { return nil }

func (r *fakeUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return &u, nil
}

func (r *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (r *fakeUserRepo) Exists(ctx context.Context, id string) (bool, error) {
	_, ok := r.users[id]
	return ok, nil
}

func (r *fakeUserRepo) ListExcept(ctx context.Context, id string) ([]domain.User, error) {
	var out []domain.User
	for _, u := range r.users {
		if u.ID != id {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r *fakeUserRepo) GetByIDs(ctx context.Context, ids []string) ([]domain.User, error) {
	var out []domain.User
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

type fakeMessageRepo struct {
	mu        sync.Mutex
	messages  []domain.Message
	createErr error
	nextID    int
}

func (r *fakeMessageRepo) Create(ctx context.Context, msg *domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.createErr != nil {
		return r.createErr
	}
	r.nextID++
	msg.ID = string(rune('a' + r.nextID - 1))
	msg.CreatedAt = time.Now().UTC()
	r.messages = append(r.messages, *msg)
	return nil
}

func (r *fakeMessageRepo) Between(ctx context.Context, userA, userB string) ([]domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []domain.Message
	for _, m := range r.messages {
		if (m.SenderID == userA && m.ReceiverID == userB) || (m.SenderID == userB && m.ReceiverID == userA) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *fakeMessageRepo) PartnerIDs(ctx context.Context, userID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := map[string]bool{}
	var out []string
	for _, m := range r.messages {
		var partner string
		switch userID {
		case m.SenderID:
			partner = m.ReceiverID
		case m.ReceiverID:
			partner = m.SenderID
		default:
			continue
		}
		if !seen[partner] {
			seen[partner] = true
			out = append(out, partner)
		}
	}
	return out, nil
}

type fakeStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: make(map[string][]byte)}
}

func (s *fakeStorage) Write(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.objects[key] = data
	s.mu.Unlock()
	return nil
}

func (s *fakeStorage) Read(ctx context.Context, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, errors.New("not found")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *fakeStorage) Delete(ctx context.Context, key string) error { return nil }

func (s *fakeStorage) Exists(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok, nil
}

func (s *fakeStorage) GetURL(ctx context.Context, key string, expires time.Duration) (string, error) {
	return "/uploads/" + key, nil
}

type pushedEvent struct {
	event   string
	payload interface{}
}

type fakeHandle struct {
	mu     sync.Mutex
	id     string
	userID string
	pushes []pushedEvent
	fail   bool
}

func (h *fakeHandle) ID() string     { return h.id }
func (h *fakeHandle) UserID() string { return h.userID }

func (h *fakeHandle) Push(event string, payload interface{}) error {
	if h.fail {
		return errors.New("dead handle")
	}
	h.mu.Lock()
	h.pushes = append(h.pushes, pushedEvent{event: event, payload: payload})
	h.mu.Unlock()
	return nil
}

type fixture struct {
	relay    MessageService
	users    *fakeUserRepo
	messages *fakeMessageRepo
	reg      *registry.Registry
	storage  *fakeStorage
	history  cache.HistoryCache
}

func newFixture() *fixture {
	users := &fakeUserRepo{users: map[string]domain.User{
		"alice": {ID: "alice", FullName: "Alice", Email: "alice@example.com"},
		"bob":   {ID: "bob", FullName: "Bob", Email: "bob@example.com"},
		"carol": {ID: "carol", FullName: "Carol", Email: "carol@example.com"},
	}}
	messages := &fakeMessageRepo{}
	reg := registry.New()
	store := newFakeStorage()
	history := cache.NewMemoryHistoryCache()

	return &fixture{
		relay: New(users, messages, reg, store, history, Config{
			HistoryCacheTTL: time.Minute,
			ImageURLTTL:     time.Hour,
		}),
		users:    users,
		messages: messages,
		reg:      reg,
		storage:  store,
		history:  history,
	}
}

func TestSend_RejectsEmptyContent(t *testing.T) {
	f := newFixture()

	_, err := f.relay.Send(context.Background(), "alice", "bob", &domain.SendMessageRequest{})
	assert.ErrorIs(t, err, ErrEmptyContent)

	_, err = f.relay.Send(context.Background(), "alice", "bob", &domain.SendMessageRequest{Text: "   "})
	assert.ErrorIs(t, err, ErrEmptyContent)
	assert.Empty(t, f.messages.messages, "nothing persisted")
}

func TestSend_RejectsSelfSend(t *testing.T) {
	f := newFixture()
	bob := &fakeHandle{id: "b1", userID: "alice"}
	f.reg.Add(bob)

	_, err := f.relay.Send(context.Background(), "alice", "alice", &domain.SendMessageRequest{Text: "hi"})

	assert.ErrorIs(t, err, ErrSelfSend)
	assert.Empty(t, f.messages.messages, "no message row created")
	assert.Empty(t, bob.pushes, "no push happened")
}

func TestSend_RejectsUnknownReceiver(t *testing.T) {
	f := newFixture()

	_, err := f.relay.Send(context.Background(), "alice", "zzz", &domain.SendMessageRequest{Text: "hi"})

	assert.ErrorIs(t, err, ErrReceiverNotFound)
	assert.Empty(t, f.messages.messages)
}

func TestSend_PersistsAndPushesToOnlineReceiver(t *testing.T) {
	f := newFixture()
	bobTab := &fakeHandle{id: "b1", userID: "bob"}
	f.reg.Add(bobTab)

	msg, err := f.relay.Send(context.Background(), "alice", "bob", &domain.SendMessageRequest{Text: "hi"})
	require.NoError(t, err)
	require.NotEmpty(t, msg.ID)
	assert.Equal(t, "alice", msg.SenderID)
	assert.Equal(t, "hi", msg.Text)

	require.Len(t, bobTab.pushes, 1)
	assert.Equal(t, domain.EventNewMessage, bobTab.pushes[0].event)
	pushed := bobTab.pushes[0].payload.(*domain.Message)
	assert.Equal(t, msg.ID, pushed.ID)
	assert.Equal(t, "hi", pushed.Text)
}

func TestSend_OfflineReceiverStillPersists(t *testing.T) {
	f := newFixture()

	msg, err := f.relay.Send(context.Background(), "alice", "bob", &domain.SendMessageRequest{Text: "missed you"})
	require.NoError(t, err)

	// The message is recoverable through a history read even though no
	// push happened.
	history, err := f.relay.History(context.Background(), "bob", "alice")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, msg.ID, history[0].ID)
}

func TestSend_PushFailureIsInvisibleToSender(t *testing.T) {
	f := newFixture()
	dead := &fakeHandle{id: "b1", userID: "bob", fail: true}
	f.reg.Add(dead)

	msg, err := f.relay.Send(context.Background(), "alice", "bob", &domain.SendMessageRequest{Text: "hi"})
	require.NoError(t, err, "delivery failure is swallowed")
	assert.NotEmpty(t, msg.ID)
	assert.Len(t, f.messages.messages, 1)
}

func TestSend_PersistFailureAbortsEverything(t *testing.T) {
	f := newFixture()
	f.messages.createErr = errors.New("disk full")
	bobTab := &fakeHandle{id: "b1", userID: "bob"}
	f.reg.Add(bobTab)

	_, err := f.relay.Send(context.Background(), "alice", "bob", &domain.SendMessageRequest{Text: "hi"})

	require.Error(t, err)
	assert.Empty(t, bobTab.pushes, "nothing pushed when persistence failed")
}

func TestSend_MultiDeviceReceiverGetsAllPushes(t *testing.T) {
	f := newFixture()
	tab1 := &fakeHandle{id: "b1", userID: "bob"}
	tab2 := &fakeHandle{id: "b2", userID: "bob"}
	f.reg.Add(tab1)
	f.reg.Add(tab2)

	_, err := f.relay.Send(context.Background(), "alice", "bob", &domain.SendMessageRequest{Text: "hi"})
	require.NoError(t, err)

	assert.Len(t, tab1.pushes, 1)
	assert.Len(t, tab2.pushes, 1)
}

func TestSend_StoresImageAndPersistsURL(t *testing.T) {
	f := newFixture()

	payload := "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("png-bytes"))
	msg, err := f.relay.Send(context.Background(), "alice", "bob", &domain.SendMessageRequest{Image: payload})
	require.NoError(t, err)

	assert.Contains(t, msg.Image, "/uploads/messages/")
	assert.Len(t, f.storage.objects, 1)
}

func TestSend_RejectsUndecodableImage(t *testing.T) {
	f := newFixture()

	_, err := f.relay.Send(context.Background(), "alice", "bob", &domain.SendMessageRequest{Image: "data:image/png;base64,!!!"})
	assert.ErrorIs(t, err, ErrBadImage)
	assert.Empty(t, f.messages.messages)
}

func TestSend_InvalidatesHistoryCache(t *testing.T) {
	f := newFixture()

	_, err := f.relay.Send(context.Background(), "alice", "bob", &domain.SendMessageRequest{Text: "one"})
	require.NoError(t, err)

	// Prime the cache.
	first, err := f.relay.History(context.Background(), "alice", "bob")
	require.NoError(t, err)
	require.Len(t, first, 1)

	_, err = f.relay.Send(context.Background(), "alice", "bob", &domain.SendMessageRequest{Text: "two"})
	require.NoError(t, err)

	second, err := f.relay.History(context.Background(), "bob", "alice")
	require.NoError(t, err)
	assert.Len(t, second, 2, "cache was invalidated by the send")
}

func TestContacts_ExcludesCaller(t *testing.T) {
	f := newFixture()

	contacts, err := f.relay.Contacts(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, contacts, 2)
	for _, u := range contacts {
		assert.NotEqual(t, "alice", u.ID)
	}
}

func TestChatPartners_DistinctAcrossDirections(t *testing.T) {
	f := newFixture()

	ctx := context.Background()
	_, err := f.relay.Send(ctx, "alice", "bob", &domain.SendMessageRequest{Text: "1"})
	require.NoError(t, err)
	_, err = f.relay.Send(ctx, "bob", "alice", &domain.SendMessageRequest{Text: "2"})
	require.NoError(t, err)
	_, err = f.relay.Send(ctx, "carol", "alice", &domain.SendMessageRequest{Text: "3"})
	require.NoError(t, err)

	partners, err := f.relay.ChatPartners(ctx, "alice")
	require.NoError(t, err)

	ids := make([]string, 0, len(partners))
	for _, p := range partners {
		ids = append(ids, p.ID)
	}
	assert.ElementsMatch(t, []string{"bob", "carol"}, ids)
}
