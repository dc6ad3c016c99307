package http

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"careerbridge/internal/domain"
	"careerbridge/internal/oauth"
	"careerbridge/internal/service"
)

// AuthHandler mantiene dependencias para los endpoints de autenticación.
type AuthHandler struct {
	logger      *zap.Logger
	accounts    *service.AccountService
	tokens      *service.TokenService
	providers   *oauth.Registry
	states      service.LoginStateStore
	limiter     service.LoginRateLimiter
	frontendURL string
}

func NewAuthHandler(
	logger *zap.Logger,
	accounts *service.AccountService,
	tokens *service.TokenService,
	providers *oauth.Registry,
	states service.LoginStateStore,
	limiter service.LoginRateLimiter,
	frontendURL string,
) *AuthHandler {
	return &AuthHandler{
		logger:      logger,
		accounts:    accounts,
		tokens:      tokens,
		providers:   providers,
		states:      states,
		limiter:     limiter,
		frontendURL: frontendURL,
	}
}

// Register maneja POST /auth/register.
func (h *AuthHandler) Register(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required,min=6"`
		FullName string `json:"full_name" binding:"required,min=2"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid register request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	account, err := h.accounts.Register(c.Request.Context(), service.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmailTaken):
			c.JSON(http.StatusConflict, gin.H{"error": "Email already in use."})
		case errors.Is(err, service.ErrInvalidEmail), errors.Is(err, service.ErrInvalidCredentials):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		default:
			h.logger.Error("register failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not register"})
		}
		return
	}

	token, err := h.tokens.Issue(account.ID, account.Email)
	if err != nil {
		h.logger.Error("token issue failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not issue token"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"account_id": account.ID, "token": token})
}

// Login maneja POST /auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid login request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	if h.limiter != nil && !h.limiter.Allow(req.Email) {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
		return
	}

	account, err := h.accounts.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		h.logger.Error("login failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not login"})
		return
	}

	token, err := h.tokens.Issue(account.ID, account.Email)
	if err != nil {
		h.logger.Error("token issue failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not issue token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "account": accountSummary(account)})
}

// OAuthLogin maneja GET /auth/:provider/login.
func (h *AuthHandler) OAuthLogin(c *gin.Context) {
	p, err := h.providers.Get(c.Param("provider"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown oauth provider"})
		return
	}

	state, err := service.GenerateLoginState()
	if err != nil {
		h.logger.Error("state generation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not start login"})
		return
	}
	if err := h.states.Store(state, p.Name(), service.LoginStateTTL); err != nil {
		h.logger.Error("state store failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not start login"})
		return
	}

	c.Redirect(http.StatusFound, p.AuthCodeURL(state))
}

// OAuthCallback maneja GET /auth/:provider/callback. Termina siempre en un
// redirect al frontend: con token y new_user si el login prosperó, al login
// del frontend si el proveedor devolvió error o el state no valida.
func (h *AuthHandler) OAuthCallback(c *gin.Context) {
	p, err := h.providers.Get(c.Param("provider"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown oauth provider"})
		return
	}

	if errParam := c.Query("error"); errParam != "" {
		h.logger.Warn("oauth callback returned error",
			zap.String("provider", p.Name()),
			zap.String("error", errParam),
			zap.String("description", c.Query("error_description")),
		)
		h.redirectToLogin(c)
		return
	}

	ok, err := h.states.Consume(c.Query("state"), p.Name())
	if err != nil {
		h.logger.Error("state consume failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not complete login"})
		return
	}
	if !ok {
		h.logger.Warn("oauth callback with invalid state", zap.String("provider", p.Name()))
		h.redirectToLogin(c)
		return
	}

	code := c.Query("code")
	if code == "" {
		h.logger.Warn("oauth callback missing code", zap.String("provider", p.Name()))
		h.redirectToLogin(c)
		return
	}

	identity, err := p.Exchange(c.Request.Context(), code)
	if err != nil {
		switch {
		case errors.Is(err, oauth.ErrCodeExchange), errors.Is(err, oauth.ErrNoVerifiedEmail):
			h.logger.Warn("oauth authentication rejected", zap.String("provider", p.Name()), zap.Error(err))
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		default:
			h.logger.Error("oauth provider call failed", zap.String("provider", p.Name()), zap.Error(err))
			c.JSON(http.StatusBadGateway, gin.H{"error": "provider unavailable"})
		}
		return
	}

	account, isNew, err := h.accounts.ResolveOAuth(c.Request.Context(), identity)
	if err != nil {
		h.logger.Error("identity resolution failed", zap.String("provider", p.Name()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not resolve account"})
		return
	}

	token, err := h.tokens.Issue(account.ID, account.Email)
	if err != nil {
		h.logger.Error("token issue failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not issue token"})
		return
	}

	redirectURL := fmt.Sprintf("%s/auth/callback?token=%s&new_user=%t",
		h.frontendURL, url.QueryEscape(token), isNew)
	c.Redirect(http.StatusFound, redirectURL)
}

// Me maneja GET /me, el camino de consumo del token validado.
func (h *AuthHandler) Me(c *gin.Context) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	account, err := h.accounts.GetByID(c.Request.Context(), claims.Subject)
	if err != nil {
		if errors.Is(err, service.ErrAccountNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
			return
		}
		h.logger.Error("account lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load account"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"account": accountSummary(account)})
}

func (h *AuthHandler) redirectToLogin(c *gin.Context) {
	c.Redirect(http.StatusFound, h.frontendURL+"/login")
}

// accountSummary arma la vista pública de una cuenta, sin hash ni oauth_id.
func accountSummary(account domain.Account) gin.H {
	summary := gin.H{
		"id":         account.ID,
		"email":      account.Email,
		"full_name":  account.FullName,
		"created_at": account.CreatedAt,
	}
	if account.AvatarURL != nil {
		summary["avatar_url"] = *account.AvatarURL
	}
	if account.Provider != nil {
		summary["provider"] = *account.Provider
	}
	return summary
}
