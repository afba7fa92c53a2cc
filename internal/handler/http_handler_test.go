package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AdityaGahukar/PingWave/internal/auth"
	"github.com/AdityaGahukar/PingWave/internal/config"
	"github.com/AdityaGahukar/PingWave/internal/domain"
	"github.com/AdityaGahukar/PingWave/internal/presence"
	"github.com/AdityaGahukar/PingWave/internal/registry"
	"github.com/AdityaGahukar/PingWave/internal/relay"
	"github.com/AdityaGahukar/PingWave/internal/repository"
	"github.com/AdityaGahukar/PingWave/internal/service"
	"github.com/AdityaGahukar/PingWave/pkg/jwt"
	"github.com/AdityaGahukar/PingWave/pkg/response"
)

type stubUserService struct {
	signupResult *service.AuthResult
	signupErr    error
	loginResult  *service.AuthResult
	loginErr     error
}

func (s *stubUserService) Signup(ctx context.Context, req *domain.SignupRequest) (*service.AuthResult, error) {
	return s.signupResult, s.signupErr
}

func (s *stubUserService) Login(ctx context.Context, req *domain.LoginRequest) (*service.AuthResult, error) {
	return s.loginResult, s.loginErr
}

type stubMessageService struct {
	sendResult *domain.Message
	sendErr    error
	history    []domain.Message
	partners   []domain.UserResponse
}

func (s *stubMessageService) Send(ctx context.Context, senderID, receiverID string, req *domain.SendMessageRequest) (*domain.Message, error) {
	return s.sendResult, s.sendErr
}

func (s *stubMessageService) Contacts(ctx context.Context, userID string) ([]domain.UserResponse, error) {
	return nil, nil
}

func (s *stubMessageService) ChatPartners(ctx context.Context, userID string) ([]domain.UserResponse, error) {
	return s.partners, nil
}

func (s *stubMessageService) History(ctx context.Context, userID, otherID string) ([]domain.Message, error) {
	return s.history, nil
}

type stubUserRepo struct {
	users map[string]domain.User
}

func (r *stubUserRepo) Create(ctx context.Context, user *domain.User) error { return nil }

func (r *stubUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return &u, nil
}

func (r *stubUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return nil, repository.ErrUserNotFound
}

func (r *stubUserRepo) Exists(ctx context.Context, id string) (bool, error) {
	_, ok := r.users[id]
	return ok, nil
}

func (r *stubUserRepo) ListExcept(ctx context.Context, id string) ([]domain.User, error) {
	return nil, nil
}

func (r *stubUserRepo) GetByIDs(ctx context.Context, ids []string) ([]domain.User, error) {
	return nil, nil
}

type testEnv struct {
	router   *gin.Engine
	tokens   *jwt.Manager
	users    *stubUserService
	messages *stubMessageService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mgr, err := jwt.NewManager("handler-test-secret", time.Hour, "pingwave")
	require.NoError(t, err)

	repo := &stubUserRepo{users: map[string]domain.User{
		"alice": {ID: "alice", FullName: "Alice", Email: "alice@example.com"},
	}}
	validator := auth.NewValidator(mgr, repo)

	users := &stubUserService{}
	messages := &stubMessageService{}

	h := NewHandler(users, messages, validator, 3600, false)
	r := gin.New()
	h.RegisterRoutes(r)

	ws := NewWSHandler(validator, presence.NewBroadcaster(registry.New()), config.WebSocketConfig{
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
		PingInterval:   54 * time.Second,
		MaxMessageSize: 1024,
		SendBufferSize: 16,
	})
	ws.RegisterRoutes(r)

	return &testEnv{router: r, tokens: mgr, users: users, messages: messages}
}

func (e *testEnv) request(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.AddCookie(&http.Cookie{Name: auth.CookieName, Value: token})
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) response.Response {
	t.Helper()
	var env response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestSignup_SetsSessionCookie(t *testing.T) {
	env := newTestEnv(t)
	env.users.signupResult = &service.AuthResult{
		User:  domain.UserResponse{ID: "alice", FullName: "Alice", Email: "alice@example.com"},
		Token: "issued-token",
	}

	w := env.request(t, http.MethodPost, "/auth/signup", "", domain.SignupRequest{
		FullName: "Alice",
		Email:    "alice@example.com",
		Password: "secret1",
	})

	assert.Equal(t, http.StatusCreated, w.Code)
	env2 := decodeEnvelope(t, w)
	assert.True(t, env2.Success)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, auth.CookieName, cookies[0].Name)
	assert.Equal(t, "issued-token", cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
}

func TestSignup_RejectsInvalidBody(t *testing.T) {
	env := newTestEnv(t)

	w := env.request(t, http.MethodPost, "/auth/signup", "", gin.H{"email": "not-an-email"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSignup_DuplicateEmailConflicts(t *testing.T) {
	env := newTestEnv(t)
	env.users.signupErr = service.ErrEmailTaken

	w := env.request(t, http.MethodPost, "/auth/signup", "", domain.SignupRequest{
		FullName: "Alice",
		Email:    "alice@example.com",
		Password: "secret1",
	})

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestLogin_BadCredentials(t *testing.T) {
	env := newTestEnv(t)
	env.users.loginErr = service.ErrInvalidCredentials

	w := env.request(t, http.MethodPost, "/auth/login", "", domain.LoginRequest{
		Email:    "alice@example.com",
		Password: "wrong-password",
	})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	env2 := decodeEnvelope(t, w)
	assert.Equal(t, "invalid email or password", env2.Error.Message)
}

func TestMessages_RequireAuth(t *testing.T) {
	env := newTestEnv(t)

	w := env.request(t, http.MethodGet, "/messages/contacts", "", nil)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	env2 := decodeEnvelope(t, w)
	assert.Equal(t, domain.HandshakeNoToken, env2.Error.Message)
}

func TestMessages_RejectTamperedToken(t *testing.T) {
	env := newTestEnv(t)

	w := env.request(t, http.MethodGet, "/messages/contacts", "tampered.token.value", nil)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	env2 := decodeEnvelope(t, w)
	assert.Equal(t, domain.HandshakeInvalidToken, env2.Error.Message)
}

func TestMessages_RejectDeletedUser(t *testing.T) {
	env := newTestEnv(t)
	token, err := env.tokens.Generate("ghost")
	require.NoError(t, err)

	w := env.request(t, http.MethodGet, "/messages/contacts", token, nil)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	env2 := decodeEnvelope(t, w)
	assert.Equal(t, domain.HandshakeUserNotFound, env2.Error.Message)
}

func TestSend_MapsRelayErrors(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"empty content", relay.ErrEmptyContent, http.StatusBadRequest},
		{"self send", relay.ErrSelfSend, http.StatusBadRequest},
		{"bad image", relay.ErrBadImage, http.StatusBadRequest},
		{"unknown receiver", relay.ErrReceiverNotFound, http.StatusNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.messages.sendErr = tc.err
			token, err := env.tokens.Generate("alice")
			require.NoError(t, err)

			w := env.request(t, http.MethodPost, "/messages/send/bob", token, domain.SendMessageRequest{Text: "hi"})

			assert.Equal(t, tc.wantStatus, w.Code)
		})
	}
}

func TestSend_CreatedOnSuccess(t *testing.T) {
	env := newTestEnv(t)
	env.messages.sendResult = &domain.Message{ID: "m1", SenderID: "alice", ReceiverID: "bob", Text: "hi"}
	token, err := env.tokens.Generate("alice")
	require.NoError(t, err)

	w := env.request(t, http.MethodPost, "/messages/send/bob", token, domain.SendMessageRequest{Text: "hi"})

	assert.Equal(t, http.StatusCreated, w.Code)
	env2 := decodeEnvelope(t, w)
	assert.True(t, env2.Success)
}

func TestHistory_ReturnsMessages(t *testing.T) {
	env := newTestEnv(t)
	env.messages.history = []domain.Message{
		{ID: "m1", SenderID: "alice", ReceiverID: "bob", Text: "one"},
		{ID: "m2", SenderID: "bob", ReceiverID: "alice", Text: "two"},
	}
	token, err := env.tokens.Generate("alice")
	require.NoError(t, err)

	w := env.request(t, http.MethodGet, "/messages/bob", token, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	var env2 struct {
		Success bool             `json:"success"`
		Data    []domain.Message `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env2))
	require.Len(t, env2.Data, 2)
	assert.Equal(t, "m1", env2.Data[0].ID)
}

func TestAuthCheck_ReturnsCurrentUser(t *testing.T) {
	env := newTestEnv(t)
	token, err := env.tokens.Generate("alice")
	require.NoError(t, err)

	w := env.request(t, http.MethodGet, "/auth/check", token, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	var env2 struct {
		Success bool                `json:"success"`
		Data    domain.UserResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env2))
	assert.Equal(t, "alice", env2.Data.ID)
}

func TestLogout_ClearsCookie(t *testing.T) {
	env := newTestEnv(t)

	w := env.request(t, http.MethodPost, "/auth/logout", "", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, auth.CookieName, cookies[0].Name)
	assert.Empty(t, cookies[0].Value)
	assert.Negative(t, cookies[0].MaxAge)
}

func TestWebSocket_RejectsBeforeUpgrade(t *testing.T) {
	cases := []struct {
		name       string
		token      func(t *testing.T, env *testEnv) string
		wantReason string
	}{
		{
			name:       "no token",
			token:      func(t *testing.T, env *testEnv) string { return "" },
			wantReason: domain.HandshakeNoToken,
		},
		{
			name:       "invalid token",
			token:      func(t *testing.T, env *testEnv) string { return "bogus" },
			wantReason: domain.HandshakeInvalidToken,
		},
		{
			name: "user gone",
			token: func(t *testing.T, env *testEnv) string {
				token, err := env.tokens.Generate("ghost")
				require.NoError(t, err)
				return token
			},
			wantReason: domain.HandshakeUserNotFound,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t)

			w := env.request(t, http.MethodGet, "/ws", tc.token(t, env), nil)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			env2 := decodeEnvelope(t, w)
			assert.Equal(t, tc.wantReason, env2.Error.Message)
		})
	}
}
