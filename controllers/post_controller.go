package controllers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/aiblog/aiblog/ai"
	"github.com/aiblog/aiblog/middleware"
	"github.com/aiblog/aiblog/models"
	"github.com/aiblog/aiblog/utils"
)

func blockedMessage(reason string) string {
	return fmt.Sprintf("Content was blocked, reason - it contains inappropriate content: %s", reason)
}

// PostController handles post CRUD. Every create and update passes through
// the moderation gate before the result is returned.
type PostController struct {
	db  *gorm.DB
	mod ai.Moderator
}

func NewPostController(db *gorm.DB, mod ai.Moderator) *PostController {
	return &PostController{db: db, mod: mod}
}

type postRequest struct {
	Title            string `json:"title"`
	Content          string `json:"content"`
	AutoReplyEnabled bool   `json:"auto_reply_enabled"`
	ReplyDelay       int    `json:"reply_delay"`
}

// Create moderates the title first, then the content. A blocked post is
// persisted with its block reason so the author can see what happened.
func (p *PostController) Create(ctx *gin.Context) {
	user, ok := middleware.CurrentUser(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40100, "authentication required")
		return
	}

	var req postRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusUnprocessableEntity, 42220, "invalid request body")
		return
	}

	title := strings.TrimSpace(utils.Sanitize(req.Title))
	content := strings.TrimSpace(utils.Sanitize(req.Content))
	if title == "" || content == "" {
		utils.Error(ctx, http.StatusUnprocessableEntity, 42221, "title and content must not be empty")
		return
	}
	if req.ReplyDelay < 0 {
		utils.Error(ctx, http.StatusUnprocessableEntity, 42222, "reply_delay must not be negative")
		return
	}

	verdict := p.mod.Moderate(ctx.Request.Context(), title)
	if !verdict.Blocked {
		verdict = p.mod.Moderate(ctx.Request.Context(), content)
	}

	post := models.Post{
		UserID:           user.ID,
		Title:            title,
		Content:          content,
		IsBlocked:        verdict.Blocked,
		BlockReason:      verdict.Reason,
		AutoReplyEnabled: req.AutoReplyEnabled,
		ReplyDelay:       req.ReplyDelay,
	}
	if err := p.db.Create(&post).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50030, "failed to create post")
		return
	}

	if verdict.Blocked {
		utils.Error(ctx, http.StatusBadRequest, 40030, blockedMessage(verdict.Reason))
		return
	}
	utils.Success(ctx, post)
}

// List returns visible posts, newest first. Blocked posts are excluded.
func (p *PostController) List(ctx *gin.Context) {
	var posts []models.Post
	if err := p.db.Where("is_blocked = ?", false).
		Preload("User").
		Order("created_at DESC").
		Find(&posts).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50031, "failed to retrieve posts")
		return
	}
	utils.Success(ctx, posts)
}

// Get returns a single post by ID, blocked or not.
func (p *PostController) Get(ctx *gin.Context) {
	var post models.Post
	if err := p.db.Preload("User").First(&post, ctx.Param("id")).Error; err != nil {
		utils.Error(ctx, http.StatusNotFound, 40430, "post not found")
		return
	}
	utils.Success(ctx, post)
}

// Update replaces a post's fields and runs the new text back through
// moderation. Only the author may update.
func (p *PostController) Update(ctx *gin.Context) {
	user, ok := middleware.CurrentUser(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40100, "authentication required")
		return
	}

	var post models.Post
	if err := p.db.First(&post, ctx.Param("id")).Error; err != nil {
		utils.Error(ctx, http.StatusNotFound, 40430, "post not found")
		return
	}
	if post.UserID != user.ID {
		utils.Error(ctx, http.StatusForbidden, 40330, "not the author of this post")
		return
	}

	var req postRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusUnprocessableEntity, 42220, "invalid request body")
		return
	}

	title := strings.TrimSpace(utils.Sanitize(req.Title))
	content := strings.TrimSpace(utils.Sanitize(req.Content))
	if title == "" || content == "" {
		utils.Error(ctx, http.StatusUnprocessableEntity, 42221, "title and content must not be empty")
		return
	}
	if req.ReplyDelay < 0 {
		utils.Error(ctx, http.StatusUnprocessableEntity, 42222, "reply_delay must not be negative")
		return
	}

	verdict := p.mod.Moderate(ctx.Request.Context(), title)
	if !verdict.Blocked {
		verdict = p.mod.Moderate(ctx.Request.Context(), content)
	}

	post.Title = title
	post.Content = content
	post.AutoReplyEnabled = req.AutoReplyEnabled
	post.ReplyDelay = req.ReplyDelay
	post.IsBlocked = verdict.Blocked
	post.BlockReason = verdict.Reason
	if err := p.db.Save(&post).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50032, "failed to update post")
		return
	}

	if verdict.Blocked {
		utils.Error(ctx, http.StatusBadRequest, 40030, blockedMessage(verdict.Reason))
		return
	}
	utils.Success(ctx, post)
}

// Delete removes a post and all of its comments. The author or a superuser
// may delete.
func (p *PostController) Delete(ctx *gin.Context) {
	user, ok := middleware.CurrentUser(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40100, "authentication required")
		return
	}

	var post models.Post
	if err := p.db.First(&post, ctx.Param("id")).Error; err != nil {
		utils.Error(ctx, http.StatusNotFound, 40430, "post not found")
		return
	}
	if post.UserID != user.ID && !user.IsSuperuser {
		utils.Error(ctx, http.StatusForbidden, 40331, "not allowed to delete this post")
		return
	}

	err := p.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", post.ID).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		return tx.Delete(&post).Error
	})
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50033, "failed to delete post")
		return
	}

	utils.Success(ctx, gin.H{"deleted": post.ID})
}
