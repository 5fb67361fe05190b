package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/aiblog/aiblog/config"
	"github.com/aiblog/aiblog/models"
	"github.com/aiblog/aiblog/utils"
)

const refreshTokenTTL = 7 * 24 * time.Hour

// AuthController handles registration and login.
type AuthController struct {
	db *gorm.DB
}

func NewAuthController(db *gorm.DB) *AuthController {
	return &AuthController{db: db}
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Register creates a new account. Username and email must both be unused.
func (a *AuthController) Register(ctx *gin.Context) {
	var req registerRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusUnprocessableEntity, 42200, "invalid request body")
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if req.Username == "" || req.Email == "" || req.Password == "" {
		utils.Error(ctx, http.StatusUnprocessableEntity, 42201, "username, email and password are required")
		return
	}

	var count int64
	if err := a.db.Model(&models.User{}).
		Where("username = ? OR email = ?", req.Username, req.Email).
		Count(&count).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50010, "failed to check existing users")
		return
	}
	if count > 0 {
		utils.Error(ctx, http.StatusBadRequest, 40010, "Email or username already exists")
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50011, "failed to hash password")
		return
	}

	user := models.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		IsActive:     true,
	}
	if err := a.db.Create(&user).Error; err != nil {
		// lost the race with a concurrent registration
		utils.Error(ctx, http.StatusBadRequest, 40011, "Email or username already exists")
		return
	}

	utils.Success(ctx, gin.H{"message": "User created successfully"})
}

// Login verifies credentials and issues access and refresh tokens.
func (a *AuthController) Login(ctx *gin.Context) {
	var req loginRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusUnprocessableEntity, 42210, "invalid request body")
		return
	}

	var user models.User
	if err := a.db.Where("username = ?", strings.TrimSpace(req.Username)).First(&user).Error; err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40020, "incorrect username or password")
		return
	}
	if !user.IsActive || !utils.CheckPassword(user.PasswordHash, req.Password) {
		utils.Error(ctx, http.StatusBadRequest, 40020, "incorrect username or password")
		return
	}

	cfg := config.Get()
	access, err := utils.GenerateToken(user.Username, time.Duration(cfg.AccessTokenTTLMin)*time.Minute)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50020, "failed to issue token")
		return
	}
	refresh, err := utils.GenerateToken(user.Username, refreshTokenTTL)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50021, "failed to issue token")
		return
	}

	utils.Success(ctx, gin.H{
		"access_token":  access,
		"refresh_token": refresh,
		"token_type":    "bearer",
	})
}
