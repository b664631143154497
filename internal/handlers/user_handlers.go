package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/01moynul/servehub/internal/models"
	"github.com/01moynul/servehub/internal/storage"
)

// --- User Registration ---

// RegisterUserInput is separate from models.User because we never accept an
// id or points from the client. Admin accounts are provisioned out of band.
type RegisterUserInput struct {
	FullName  string `json:"fullName" binding:"required,max=255"`
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=8"`
	Role      string `json:"role" binding:"required,oneof=volunteer organizer"`
	AvatarURL string `json:"avatarUrl" binding:"omitempty,url,max=512"`
}

// Register is the handler for POST /v1/register
func (h *Handlers) Register(c *gin.Context) {
	// 1. --- Bind & Validate JSON ---
	var input RegisterUserInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	// 2. --- Hash the Password ---
	var password models.Password
	if err := password.Set(input.Password); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to hash password"})
		return
	}

	// 3. --- Save to Database ---
	user := models.User{
		ID:           uuid.New().String(),
		Role:         input.Role,
		Email:        strings.ToLower(strings.TrimSpace(input.Email)),
		PasswordHash: password.Hash,
		FullName:     strings.TrimSpace(input.FullName),
		AvatarURL:    input.AvatarURL,
		CreatedAt:    time.Now().UTC(),
	}
	if err := h.Users.CreateUser(c.Request.Context(), user); err != nil {
		h.respondError(c, err)
		return
	}

	// 4. --- Send Success Response ---
	// Gin respects the 'json:"-"' tag on PasswordHash.
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "Account registered successfully.",
		"user":    user,
	})
}

// --- User Login ---

// LoginInput is the body of POST /v1/login.
type LoginInput struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Login is the handler for POST /v1/login
func (h *Handlers) Login(c *gin.Context) {
	// 1. --- Bind & Validate JSON ---
	var input LoginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	// 2. --- Find the user ---
	// Unknown email and wrong password get the same answer.
	user, err := h.Users.GetUserByEmail(c.Request.Context(), input.Email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Invalid email or password"})
			return
		}
		h.respondError(c, err)
		return
	}

	// 3. --- Check the password ---
	password := models.Password{Hash: user.PasswordHash}
	ok, err := password.Matches(input.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Invalid email or password"})
		return
	}

	// 4. --- Issue the token ---
	token, err := h.Tokens.GenerateToken(user.ID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"token":   token,
		"user":    user,
	})
}
