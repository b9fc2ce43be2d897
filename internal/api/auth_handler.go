package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"resumebuilder/internal/api/middleware"
	"resumebuilder/internal/auth"
	"resumebuilder/internal/database"
	"resumebuilder/internal/repository"
)

// AuthHandler serves registration, login, profile and Google sign-in.
type AuthHandler struct {
	users         *repository.Users
	authService   *auth.AuthService
	google        *auth.GoogleService
	limiter       *loginLimiter
	uiRedirectURL string
}

// NewAuthHandler builds the handler. google and redisClient may be nil; the
// first disables Google sign-in, the second disables login rate limiting.
func NewAuthHandler(
	users *repository.Users,
	authService *auth.AuthService,
	google *auth.GoogleService,
	redisClient redis.UniversalClient,
	loginRateLimitPerHour int,
	uiRedirectURL string,
) *AuthHandler {
	return &AuthHandler{
		users:         users,
		authService:   authService,
		google:        google,
		limiter:       newLoginLimiter(redisClient, loginRateLimitPerHour),
		uiRedirectURL: uiRedirectURL,
	}
}

type registerRequest struct {
	Name     string `json:"name" binding:"required,max=128"`
	Email    string `json:"email" binding:"required,email,max=255"`
	Password string `json:"password" binding:"required,min=6,max=72"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type tokenResponse struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expires_in"`
}

type profileResponse struct {
	ID        uint      `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Google    bool      `json:"google"`
	CreatedAt time.Time `json:"createdAt"`
}

// Register creates an account and signs the caller in.
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	logger := middleware.LoggerFromContext(c)

	hashed, err := auth.HashPassword(req.Password)
	if err != nil {
		logger.Error("hash password failed", slog.Any("error", err))
		Internal(c)
		return
	}

	user := database.User{
		Name:         strings.TrimSpace(req.Name),
		Email:        req.Email,
		PasswordHash: hashed,
	}
	if err := h.users.Create(ctx, &user); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			BadRequest(c, "User already exists")
			return
		}
		logger.Error("create user failed", slog.Any("error", err))
		Internal(c)
		return
	}

	logger.Info("user registered", slog.Uint64("user_id", uint64(user.ID)))
	h.replyWithToken(c, user.ID)
}

// Login checks the password and returns an access token.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	logger := middleware.LoggerFromContext(c)
	email := strings.ToLower(strings.TrimSpace(req.Email))

	allowed, err := h.limiter.Allow(ctx, c.ClientIP(), email)
	if err != nil {
		logger.Warn("login rate counter unavailable", slog.Any("error", err))
	} else if !allowed {
		Error(c, http.StatusTooManyRequests, "Too many login attempts, try again later")
		return
	}

	user, err := h.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			logger.Info("login failed: user not found")
			Error(c, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		logger.Error("login query failed", slog.Any("error", err))
		Internal(c)
		return
	}

	if user.PasswordHash == "" || !auth.CheckPasswordHash(req.Password, user.PasswordHash) {
		logger.Info("login failed: password mismatch", slog.Uint64("user_id", uint64(user.ID)))
		Error(c, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	h.replyWithToken(c, user.ID)
}

// Profile returns the signed-in account.
func (h *AuthHandler) Profile(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	user, err := h.users.FindByID(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			Unauthorized(c)
			return
		}
		middleware.LoggerFromContext(c).Error("load profile failed", slog.Any("error", err))
		Internal(c)
		return
	}

	c.JSON(http.StatusOK, profileResponse{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		Google:    user.GoogleID != nil,
		CreatedAt: user.CreatedAt,
	})
}

// GoogleStart redirects to the Google consent page.
func (h *AuthHandler) GoogleStart(c *gin.Context) {
	if h.google == nil {
		Unavailable(c, auth.ErrGoogleDisabled.Error())
		return
	}
	c.Redirect(http.StatusFound, h.google.AuthCodeURL())
}

// GoogleCallback finishes the code flow and redirects to the UI with a token.
func (h *AuthHandler) GoogleCallback(c *gin.Context) {
	if h.google == nil {
		Unavailable(c, auth.ErrGoogleDisabled.Error())
		return
	}

	state, code := c.Query("state"), c.Query("code")
	if state == "" || code == "" {
		BadRequest(c, "missing state or code")
		return
	}

	ctx := c.Request.Context()
	logger := middleware.LoggerFromContext(c)

	profile, err := h.google.Exchange(ctx, state, code)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidState) {
			BadRequest(c, "invalid or expired state")
			return
		}
		logger.Warn("google exchange failed", slog.Any("error", err))
		Error(c, http.StatusBadGateway, "Google sign-in failed")
		return
	}

	user, err := h.users.FindOrCreateGoogle(ctx, profile.Sub, profile.Email, profile.Name)
	if err != nil {
		logger.Error("link google account failed", slog.Any("error", err))
		Internal(c)
		return
	}

	token, _, err := h.authService.GenerateToken(user.ID)
	if err != nil {
		logger.Error("generate token failed", slog.Any("error", err))
		Internal(c)
		return
	}

	target, err := auth.AppendToken(h.uiRedirectURL, token)
	if err != nil {
		logger.Error("build ui redirect failed", slog.Any("error", err))
		Internal(c)
		return
	}
	c.Redirect(http.StatusFound, target)
}

func (h *AuthHandler) replyWithToken(c *gin.Context, userID uint) {
	token, _, err := h.authService.GenerateToken(userID)
	if err != nil {
		middleware.LoggerFromContext(c).Error("generate token failed", slog.Any("error", err))
		Internal(c)
		return
	}
	c.JSON(http.StatusOK, tokenResponse{
		Token:     token,
		ExpiresIn: int(h.authService.AccessTokenTTL().Seconds()),
	})
}
