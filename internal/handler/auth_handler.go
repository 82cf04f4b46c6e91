package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"dispatch-booking-api/internal/auth"
	"dispatch-booking-api/internal/middleware"
)

const refreshTokenTTL = 7 * 24 * time.Hour

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password required"})
		return
	}

	u, err := h.store.UserByEmail(c.Request.Context(), req.Email)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	if !auth.CheckPassword(u.PasswordHash, req.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	tok, err := auth.MakeToken(u.ID, u.Role, h.secret)
	if err != nil {
		h.domainErr(c, err)
		return
	}

	raw, hash, err := auth.GenerateRefreshToken()
	if err != nil {
		h.domainErr(c, err)
		return
	}
	if _, err := h.store.CreateRefreshToken(c.Request.Context(), u.ID, hash, time.Now().Add(refreshTokenTTL)); err != nil {
		h.domainErr(c, err)
		return
	}

	h.log.Infow("technician logged in", "userId", u.ID)
	c.JSON(http.StatusOK, gin.H{
		"token":        tok,
		"refreshToken": raw,
		"userId":       u.ID,
		"name":         u.Name,
		"role":         u.Role,
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (h *Handler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.RefreshToken == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "refreshToken required"})
		return
	}

	rt, err := h.store.GetRefreshTokenByHash(c.Request.Context(), auth.HashRefreshToken(req.RefreshToken))
	if err != nil || rt.Revoked || time.Now().After(rt.ExpiresAt) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
		return
	}

	u, err := h.store.UserByID(c.Request.Context(), rt.UserID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
		return
	}

	newRaw, newHash, err := auth.GenerateRefreshToken()
	if err != nil {
		h.domainErr(c, err)
		return
	}
	newID := uuid.New().String()
	if err := h.store.RotateRefreshToken(c.Request.Context(), rt.ID, newID, rt.UserID, newHash, time.Now().Add(refreshTokenTTL)); err != nil {
		h.domainErr(c, err)
		return
	}

	tok, err := auth.MakeToken(u.ID, u.Role, h.secret)
	if err != nil {
		h.domainErr(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": tok, "refreshToken": newRaw})
}

func (h *Handler) Logout(c *gin.Context) {
	uid := c.GetString(middleware.UserIDKey)
	if err := h.store.RevokeAllRefreshTokens(c.Request.Context(), uid); err != nil {
		h.domainErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
