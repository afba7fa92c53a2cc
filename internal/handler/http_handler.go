package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AdityaGahukar/PingWave/internal/audit"
	"github.com/AdityaGahukar/PingWave/internal/auth"
	"github.com/AdityaGahukar/PingWave/internal/domain"
	"github.com/AdityaGahukar/PingWave/internal/relay"
	"github.com/AdityaGahukar/PingWave/internal/service"
	"github.com/AdityaGahukar/PingWave/pkg/log"
	"github.com/AdityaGahukar/PingWave/pkg/response"
)

// Handler handles the REST surface: auth and messaging.
type Handler struct {
	users        service.UserService
	messages     relay.MessageService
	validator    *auth.Validator
	cookieMaxAge int
	cookieSecure bool
}

// NewHandler creates a new HTTP handler.
func NewHandler(
	users service.UserService,
	messages relay.MessageService,
	validator *auth.Validator,
	cookieMaxAge int,
	cookieSecure bool,
) *Handler {
	return &Handler{
		users:        users,
		messages:     messages,
		validator:    validator,
		cookieMaxAge: cookieMaxAge,
		cookieSecure: cookieSecure,
	}
}

// RegisterRoutes registers all routes. The extra middlewares (rate
// limiting) run in front of the message routes only, before auth, so
// abusive traffic is dropped before it costs a token validation.
func (h *Handler) RegisterRoutes(r *gin.Engine, messageMiddlewares ...gin.HandlerFunc) {
	authGroup := r.Group("/auth")
	{
		authGroup.POST("/signup", h.Signup)
		authGroup.POST("/login", h.Login)
		authGroup.POST("/logout", h.Logout)
		authGroup.GET("/check", auth.RequireAuth(h.validator), h.Check)
	}

	messages := r.Group("/messages")
	messages.Use(messageMiddlewares...)
	messages.Use(auth.RequireAuth(h.validator))
	{
		messages.GET("/contacts", h.Contacts)
		messages.GET("/chats", h.ChatPartners)
		messages.GET("/:id", h.History)
		messages.POST("/send/:id", h.Send)
	}
}

// Signup handles user registration and issues the session cookie.
func (h *Handler) Signup(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	var req domain.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		l.Warn().Err(err).Msg("invalid signup request")
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.users.Signup(ctx, &req)
	if err != nil {
		if errors.Is(err, service.ErrEmailTaken) {
			response.Conflict(c, "email already exists")
			return
		}
		l.Error().Err(err).Msg("signup failed")
		response.InternalError(c, "failed to sign up")
		return
	}

	h.setSessionCookie(c, result.Token)
	response.Created(c, result.User)
}

// Login handles user login and issues the session cookie.
func (h *Handler) Login(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	var req domain.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		l.Warn().Err(err).Msg("invalid login request")
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.users.Login(ctx, &req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			response.Unauthorized(c, "invalid email or password")
			return
		}
		l.Error().Err(err).Msg("login failed")
		response.InternalError(c, "failed to login")
		return
	}

	h.setSessionCookie(c, result.Token)
	response.Success(c, result.User)
}

// Logout clears the session cookie.
func (h *Handler) Logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(auth.CookieName, "", -1, "/", "", h.cookieSecure, true)

	if user := auth.CurrentUser(c); user != nil {
		audit.Log(c.Request.Context(), audit.ActionLogout, user.ID, "user logged out")
	}
	response.Success(c, gin.H{"message": "logged out successfully"})
}

// Check returns the authenticated user.
func (h *Handler) Check(c *gin.Context) {
	user := auth.CurrentUser(c)
	if user == nil {
		response.Unauthorized(c, domain.HandshakeNoToken)
		return
	}
	response.Success(c, user.ToResponse())
}

// Contacts returns every user except the caller.
func (h *Handler) Contacts(c *gin.Context) {
	ctx := c.Request.Context()
	user := auth.CurrentUser(c)

	users, err := h.messages.Contacts(ctx, user.ID)
	if err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Msg("contacts lookup failed")
		response.InternalError(c, "failed to load contacts")
		return
	}
	response.Success(c, gin.H{"users": users})
}

// ChatPartners returns the caller's distinct prior conversation
// partners.
func (h *Handler) ChatPartners(c *gin.Context) {
	ctx := c.Request.Context()
	user := auth.CurrentUser(c)

	partners, err := h.messages.ChatPartners(ctx, user.ID)
	if err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Msg("chat partners lookup failed")
		response.InternalError(c, "failed to load chats")
		return
	}
	response.Success(c, gin.H{"chat_partners": partners})
}

// History returns the ordered conversation between the caller and the
// user in the path.
func (h *Handler) History(c *gin.Context) {
	ctx := c.Request.Context()
	user := auth.CurrentUser(c)
	otherID := c.Param("id")

	messages, err := h.messages.History(ctx, user.ID, otherID)
	if err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Msg("history lookup failed")
		response.InternalError(c, "failed to load messages")
		return
	}
	response.Success(c, messages)
}

// Send validates and relays a new message to the user in the path.
func (h *Handler) Send(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)
	user := auth.CurrentUser(c)
	receiverID := c.Param("id")

	var req domain.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		l.Warn().Err(err).Msg("invalid send request")
		response.BadRequest(c, err.Error())
		return
	}

	msg, err := h.messages.Send(ctx, user.ID, receiverID, &req)
	if err != nil {
		switch {
		case errors.Is(err, relay.ErrEmptyContent):
			response.BadRequest(c, "Message text or image is required.")
		case errors.Is(err, relay.ErrSelfSend):
			response.BadRequest(c, "You cannot send message to yourself.")
		case errors.Is(err, relay.ErrBadImage):
			response.BadRequest(c, "Invalid image payload.")
		case errors.Is(err, relay.ErrReceiverNotFound):
			response.NotFound(c, "Receiver user not found.")
		default:
			l.Error().Err(err).Msg("send failed")
			response.InternalError(c, "failed to send message")
		}
		return
	}

	response.Created(c, msg)
}

func (h *Handler) setSessionCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(auth.CookieName, token, h.cookieMaxAge, "/", "", h.cookieSecure, true)
}
