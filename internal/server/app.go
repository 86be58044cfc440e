package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"finpilot/backend/internal/actions"
	"finpilot/backend/internal/advice"
	"finpilot/backend/internal/chat"
	"finpilot/backend/internal/config"
	"finpilot/backend/internal/finance"
)

// Advisor produces one advice response; *advice.Orchestrator implements it.
type Advisor interface {
	GenerateAdvice(ctx context.Context, req advice.Request) (advice.Response, error)
	ProviderNames() []string
}

type ProfileStore interface {
	GetProfile(ctx context.Context, userID string) (finance.Profile, error)
	EnsureProfile(ctx context.Context, userID, displayName string) (finance.Profile, error)
	UpdateProfile(ctx context.Context, update finance.Profile) (finance.Profile, error)
}

type Deps struct {
	Snapshots advice.SnapshotBuilder
	Advisor   Advisor
	Actions   *actions.Executor
	Chat      *chat.Service
	Profiles  ProfileStore
	Logger    *zap.Logger
}

type App struct {
	cfg       config.Config
	snapshots advice.SnapshotBuilder
	advisor   Advisor
	actions   *actions.Executor
	chat      *chat.Service
	profiles  ProfileStore
	logger    *zap.Logger
	upgrader  websocket.Upgrader
}

type AuthUser struct {
	ID       string
	Name     string
	Locale   string
	Currency string
}

func New(cfg config.Config, deps Deps) *App {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{
		cfg:       cfg,
		snapshots: deps.Snapshots,
		advisor:   deps.Advisor,
		actions:   deps.Actions,
		chat:      deps.Chat,
		profiles:  deps.Profiles,
		logger:    logger,
	}
	a.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     a.allowedOrigin,
	}
	return a
}

func (a *App) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     a.cfg.CORSAllowOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", a.health)
	router.POST("/dev/local-token", a.issueLocalDevToken)

	api := router.Group(a.cfg.APIPrefix)
	api.Use(a.authMiddleware())

	api.GET("/settings/me", a.getMySettings)
	api.PATCH("/settings/me", a.updateMySettings)
	api.GET("/context", a.getContext)
	api.POST("/advice/preview", a.previewAdvice)
	api.POST("/chat/query", a.chatQuery)
	api.GET("/conversations", a.listConversations)
	api.POST("/conversations", a.createConversation)
	api.GET("/conversations/:conversation_id", a.getConversation)
	api.DELETE("/conversations/:conversation_id", a.deleteConversation)
	api.POST("/conversations/:conversation_id/archive", a.archiveConversation)
	api.POST("/conversations/:conversation_id/unarchive", a.unarchiveConversation)
	api.GET("/conversations/:conversation_id/messages", a.listMessages)
	api.POST("/conversations/:conversation_id/messages", a.createMessage)
	api.GET("/conversations/:conversation_id/stream", a.streamConversation)
	api.GET("/conversations/:conversation_id/export.csv", a.exportConversationCSV)
	api.POST("/actions/apply", a.applyAction)

	return router
}

func (a *App) health(c *gin.Context) {
	providers := []string{}
	if a.advisor != nil {
		providers = a.advisor.ProviderNames()
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"service":   "finpilot-api",
		"storage":   a.cfg.StorageDriver,
		"providers": providers,
	})
}

func (a *App) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c)
		if !ok {
			writeError(c, http.StatusUnauthorized, "Bearer token required")
			return
		}

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
			if token.Method == nil || token.Method.Alg() != a.cfg.JWTAlgorithm {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(a.cfg.JWTSecret), nil
		})
		if err != nil || !token.Valid {
			writeError(c, http.StatusUnauthorized, "Invalid bearer token")
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			writeError(c, http.StatusUnauthorized, "Invalid token payload")
			return
		}
		if a.cfg.JWTAudience != "" && !claimHasAudience(claims["aud"], a.cfg.JWTAudience) {
			writeError(c, http.StatusUnauthorized, "Invalid token audience")
			return
		}
		if a.cfg.JWTIssuer != "" {
			issuer, _ := claims["iss"].(string)
			if issuer != a.cfg.JWTIssuer {
				writeError(c, http.StatusUnauthorized, "Invalid token issuer")
				return
			}
		}
		sub, _ := claims["sub"].(string)
		sub = strings.TrimSpace(sub)
		if sub == "" {
			writeError(c, http.StatusUnauthorized, "Token subject missing")
			return
		}

		user, err := a.getOrCreateUser(c.Request.Context(), sub, claims)
		if err != nil {
			writeError(c, http.StatusUnauthorized, err.Error())
			return
		}

		c.Set("authUser", user)
		c.Next()
	}
}

// bearerToken reads the Authorization header. Browsers cannot set headers on
// a websocket handshake, so upgrades may pass access_token instead.
func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
		token := strings.TrimSpace(authHeader[len("Bearer "):])
		return token, token != ""
	}
	if authHeader == "" && websocket.IsWebSocketUpgrade(c.Request) {
		token := strings.TrimSpace(c.Query("access_token"))
		return token, token != ""
	}
	return "", false
}

func claimHasAudience(value any, audience string) bool {
	switch v := value.(type) {
	case string:
		return v == audience
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && s == audience {
				return true
			}
		}
	case []string:
		for _, item := range v {
			if item == audience {
				return true
			}
		}
	}
	return false
}

func (a *App) getOrCreateUser(ctx context.Context, userID string, claims jwt.MapClaims) (AuthUser, error) {
	if a.profiles == nil {
		return AuthUser{ID: userID}, nil
	}
	profile, err := a.profiles.GetProfile(ctx, userID)
	if err != nil {
		return AuthUser{}, err
	}
	if profile.UserID == "" {
		if !a.cfg.AuthAutoCreateUser {
			return AuthUser{}, errors.New("User not found")
		}
		name := ""
		if rawName, ok := claims["name"].(string); ok {
			name = strings.TrimSpace(rawName)
		}
		if name == "" {
			name = fmt.Sprintf("user-%s", truncate(userID, 8))
		}
		profile, err = a.profiles.EnsureProfile(ctx, userID, name)
		if err != nil {
			return AuthUser{}, err
		}
	}
	return AuthUser{
		ID:       profile.UserID,
		Name:     profile.DisplayName,
		Locale:   profile.Locale,
		Currency: profile.Currency,
	}, nil
}

func (a *App) allowedOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range a.cfg.CORSAllowOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

func truncate(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	return value[:limit]
}

func authUserFromContext(c *gin.Context) (AuthUser, bool) {
	raw, ok := c.Get("authUser")
	if !ok {
		return AuthUser{}, false
	}
	user, ok := raw.(AuthUser)
	return user, ok
}

// formatterFor picks request overrides first, then the profile, then config.
func (a *App) formatterFor(user AuthUser, locale, currency string) finance.Formatter {
	return finance.NewFormatter(
		firstNonEmpty(locale, user.Locale, a.cfg.DefaultLocale),
		firstNonEmpty(currency, user.Currency, a.cfg.DefaultCurrency),
	)
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

type httpError struct {
	Status int
	Detail string
}

func (e *httpError) Error() string {
	return e.Detail
}

func writeError(c *gin.Context, status int, detail string) {
	c.AbortWithStatusJSON(status, gin.H{"detail": detail})
}

func (a *App) writeServiceError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	var httpErr *httpError
	switch {
	case errors.As(err, &httpErr):
		writeError(c, httpErr.Status, httpErr.Detail)
	case errors.Is(err, chat.ErrConversationNotFound):
		writeError(c, http.StatusNotFound, "Conversation not found")
	case errors.Is(err, chat.ErrUserRequired),
		errors.Is(err, chat.ErrConversationRequired),
		errors.Is(err, chat.ErrContentRequired),
		errors.Is(err, chat.ErrInvalidRole),
		errors.Is(err, chat.ErrInvalidType):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, advice.ErrNoFinancialData):
		writeError(c, http.StatusUnprocessableEntity, "No financial data is available for this user yet")
	case errors.Is(err, context.DeadlineExceeded):
		writeError(c, http.StatusGatewayTimeout, "Request timed out")
	default:
		a.logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		writeError(c, http.StatusInternalServerError, "Internal server error")
	}
}

func mustJSON(c *gin.Context, payload any) bool {
	if err := c.ShouldBindJSON(payload); err != nil {
		writeError(c, http.StatusBadRequest, "Invalid request payload")
		return false
	}
	return true
}
