package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/okulov/parley/internal/auth"
	"github.com/okulov/parley/internal/store"
)

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func fail(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"success": false, "message": msg})
}

func (a *API) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Username == "" || req.Email == "" || req.Password == "" {
		fail(c, http.StatusBadRequest, "All fields are required")
		return
	}

	username := auth.SanitizeInput(req.Username)
	email := auth.SanitizeInput(req.Email)

	if !auth.IsValidUsername(username) {
		fail(c, http.StatusBadRequest, "Username must be 3-20 characters, alphanumeric and underscore only")
		return
	}
	if !auth.IsValidEmail(email) {
		fail(c, http.StatusBadRequest, "Invalid email format")
		return
	}
	if !auth.IsValidPassword(req.Password) {
		fail(c, http.StatusBadRequest, "Password must be at least 6 characters with letters and numbers")
		return
	}

	if _, _, err := a.Store.GetUserByEmail(c.Request.Context(), email); err == nil {
		fail(c, http.StatusBadRequest, "User already exists with this email")
		return
	} else if !errors.Is(err, store.ErrNotFound) {
		fail(c, http.StatusInternalServerError, "Database error")
		return
	}

	hashed, err := auth.HashPassword(req.Password)
	if err != nil {
		fail(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	userID, err := a.Store.CreateUser(c.Request.Context(), username, email, hashed)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("create user")
		fail(c, http.StatusInternalServerError, "Failed to create user")
		return
	}

	token, err := a.Verifier.GenerateToken(userID, username, email)
	if err != nil {
		fail(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "User registered successfully",
		"token":   token,
		"user":    gin.H{"id": userID, "username": username, "email": email},
	})
}

func (a *API) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" || req.Password == "" {
		fail(c, http.StatusBadRequest, "Email and password are required")
		return
	}

	email := auth.SanitizeInput(req.Email)
	user, hashed, err := a.Store.GetUserByEmail(c.Request.Context(), email)
	if errors.Is(err, store.ErrNotFound) {
		fail(c, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	if err != nil {
		fail(c, http.StatusInternalServerError, "Database error")
		return
	}

	if !auth.ComparePassword(req.Password, hashed) {
		fail(c, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	token, err := a.Verifier.GenerateToken(user.ID, user.Username, user.Email)
	if err != nil {
		fail(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Login successful",
		"token":   token,
		"user": gin.H{
			"id":       user.ID,
			"username": user.Username,
			"email":    user.Email,
			"avatar":   user.Avatar,
		},
	})
}

func (a *API) Profile(c *gin.Context) {
	id := identityFrom(c)
	user, err := a.Store.GetUserByID(c.Request.Context(), id.UserID)
	if err != nil {
		fail(c, http.StatusNotFound, "User not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "user": user})
}

// OnlineUsers reads from the registry, the single source of truth for
// reachability; the persisted status column is only a mirror.
func (a *API) OnlineUsers(c *gin.Context) {
	id := identityFrom(c)
	c.JSON(http.StatusOK, gin.H{"success": true, "users": a.Hub.ListOnline(id.UserID)})
}

func (a *API) Messages(c *gin.Context) {
	id := identityFrom(c)
	otherID, err := strconv.ParseInt(c.Param("userId"), 10, 64)
	if err != nil {
		fail(c, http.StatusBadRequest, "Invalid user id")
		return
	}

	messages, err := a.Store.MessagesBetween(c.Request.Context(), id.UserID, otherID, 50)
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to fetch messages")
		return
	}
	// Oldest first for rendering.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	if err := a.Store.MarkMessagesRead(c.Request.Context(), otherID, id.UserID); err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("mark messages read")
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "messages": messages})
}

func (a *API) CallHistory(c *gin.Context) {
	id := identityFrom(c)
	calls, err := a.Store.CallHistory(c.Request.Context(), id.UserID, 20)
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to fetch call history")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "calls": calls})
}
