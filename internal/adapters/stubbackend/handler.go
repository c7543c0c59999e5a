// Package stubbackend is a development stand-in for the recommendation
// service. It speaks the same endpoints, cookies and message strings, with
// in-memory accounts and a fixed catalog.
package stubbackend

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"animeai/internal/domain/outcome"
)

// CookieName is the session cookie the stub sets and reads.
const CookieName = "access_token"

// Reply strings that have no meaning to the frontend beyond display.
const (
	msgSignupSuccessful  = "Signup successful"
	msgLoggedIn          = "User logged in successfully"
	msgLoggedOut         = "User logged out successfully"
	msgAnimeViewed       = "Anime viewed successfully"
	detailEmailTaken     = "Email already registered. Please login instead."
	detailBadCredentials = "Invalid login credentials"
	detailNotAuth        = "Not authenticated"
	detailInvalidToken   = "Invalid token"
	detailShortPassword  = "Password should be at least 6 characters"
)

// minBackendPassword mirrors the hosted auth provider's own minimum, which is
// looser than the frontend's.
const minBackendPassword = 6

// Handler serves the stub endpoints.
type Handler struct {
	Users  *Users
	Tokens TokenService
	Views  *ViewLog
}

// NewHandler creates a Handler.
func NewHandler(users *Users, tokens TokenService) *Handler {
	return &Handler{Users: users, Tokens: tokens, Views: NewViewLog()}
}

// RegisterRoutes mounts the user and anime groups under api.
func (h *Handler) RegisterRoutes(api *gin.RouterGroup) {
	users := api.Group("/users")
	users.POST("/signup", h.signup)
	users.POST("/login", h.login)
	users.POST("/logout", h.logout)
	users.GET("/home", h.home)

	animeGroup := api.Group("/anime")
	animeGroup.POST("/recommendation", h.recommendation)
	animeGroup.POST("/getAnime", h.getAnime)
}

// validationError mimics a FastAPI 422 body.
func validationError(c *gin.Context, field string) {
	c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": []gin.H{{
		"loc":  []string{"body", field},
		"msg":  "field required",
		"type": "value_error.missing",
	}}})
}

type signupReq struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Gender   string `json:"gender"`
}

func (h *Handler) signup(c *gin.Context) {
	var req signupReq
	if err := c.ShouldBindJSON(&req); err != nil {
		validationError(c, "email")
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		validationError(c, "email")
		return
	}
	if len(req.Password) < minBackendPassword {
		c.JSON(http.StatusBadRequest, gin.H{"detail": detailShortPassword})
		return
	}

	u, err := h.Users.Create(req.Name, req.Email, req.Password, req.Gender)
	if errors.Is(err, errEmailTaken) {
		c.JSON(http.StatusBadRequest, gin.H{"detail": detailEmailTaken})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Signup failed"})
		return
	}
	if !h.setSession(c, u) {
		return
	}
	slog.Info("stub_event", "event", "signup", "user", u.ID)
	c.JSON(http.StatusOK, gin.H{"message": msgSignupSuccessful})
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		validationError(c, "email")
		return
	}

	u, err := h.Users.Authenticate(req.Email, req.Password)
	switch {
	case errors.Is(err, errUnknownEmail):
		c.JSON(http.StatusOK, gin.H{"message": outcome.MessageEmailNotFound})
		return
	case err != nil:
		c.JSON(http.StatusBadRequest, gin.H{"detail": detailBadCredentials})
		return
	}
	if !h.setSession(c, u) {
		return
	}
	slog.Info("stub_event", "event", "login", "user", u.ID)
	c.JSON(http.StatusOK, gin.H{"message": outcome.MessageLoginSuccessful})
}

func (h *Handler) logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CookieName, "", -1, "/", "", false, true)
	c.JSON(http.StatusOK, msgLoggedOut)
}

// home answers with a bare JSON string, like the service it stands in for.
func (h *Handler) home(c *gin.Context) {
	raw, err := c.Cookie(CookieName)
	if err != nil || raw == "" {
		c.JSON(http.StatusOK, outcome.MessageNotAuthenticated)
		return
	}
	claims, err := h.Tokens.Parse(raw)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": detailInvalidToken})
		return
	}
	if _, ok := h.Users.Get(claims.Email); !ok {
		c.JSON(http.StatusOK, outcome.MessageNotSignedUp)
		return
	}
	c.JSON(http.StatusOK, msgLoggedIn)
}

type recommendReq struct {
	Query string `json:"query"`
}

func (h *Handler) recommendation(c *gin.Context) {
	raw, err := c.Cookie(CookieName)
	if err != nil || raw == "" {
		c.JSON(http.StatusOK, gin.H{"message": outcome.MessageNotAuthenticated})
		return
	}
	if _, err := h.Tokens.Parse(raw); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": detailInvalidToken})
		return
	}

	var req recommendReq
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Query) == "" {
		validationError(c, "query")
		return
	}
	c.JSON(http.StatusOK, Recommend(req.Query))
}

type getAnimeReq struct {
	Title string `json:"title"`
	Genre string `json:"genre"`
}

// getAnime records a view. It accepts the cookie or a bearer header.
func (h *Handler) getAnime(c *gin.Context) {
	raw, _ := c.Cookie(CookieName)
	if raw == "" {
		if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
			raw = strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
		}
	}
	if raw == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": detailNotAuth})
		return
	}
	claims, err := h.Tokens.Parse(raw)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": detailInvalidToken})
		return
	}

	var req getAnimeReq
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Title) == "" {
		validationError(c, "title")
		return
	}
	h.Views.Add(claims.Subject, req.Title)
	c.JSON(http.StatusOK, msgAnimeViewed)
}

// setSession signs a token and sets the session cookie. It writes the error
// reply itself and reports false on failure.
func (h *Handler) setSession(c *gin.Context, u *User) bool {
	token, exp, err := h.Tokens.Sign(u)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "token failed"})
		return false
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CookieName, token, int(time.Until(exp).Seconds()), "/", "", false, true)
	return true
}

// NewRouter builds the stub's gin engine.
// PRE: secret is non-empty
// POST: returns an engine serving /api/users/* and /api/anime/*
func NewRouter(secret []byte, bcryptCost int) (*gin.Engine, *Handler) {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())
	r.GET("/", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "Server running"}) })

	h := NewHandler(NewUsers(bcryptCost), TokenService{Secret: secret, Issuer: "animeai-stub", Duration: time.Hour})
	h.RegisterRoutes(r.Group("/api"))
	return r, h
}

// requestLogger logs each stub request through slog.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Debug("stub_request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration_ms", float64(time.Since(start).Microseconds())/1000.0,
		)
	}
}
