package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/aiblog/aiblog/ai"
	"github.com/aiblog/aiblog/middleware"
	"github.com/aiblog/aiblog/models"
	"github.com/aiblog/aiblog/tasks"
	"github.com/aiblog/aiblog/utils"
)

// CommentController handles comment CRUD against a post's comment tree and
// schedules auto-replies when the post has them enabled.
type CommentController struct {
	db        *gorm.DB
	mod       ai.Moderator
	scheduler tasks.ReplyScheduler
	log       *zap.SugaredLogger
}

func NewCommentController(db *gorm.DB, mod ai.Moderator, scheduler tasks.ReplyScheduler, log *zap.SugaredLogger) *CommentController {
	return &CommentController{db: db, mod: mod, scheduler: scheduler, log: log}
}

type commentRequest struct {
	Content  string `json:"content"`
	ParentID *uint  `json:"parent_id"`
}

// Create adds a comment to the post in the path. Commenting on a blocked
// post, or replying to a blocked parent, is forbidden. A clean comment on an
// auto-reply post gets a reply scheduled at reply_delay*10 seconds.
func (c *CommentController) Create(ctx *gin.Context) {
	user, ok := middleware.CurrentUser(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40100, "authentication required")
		return
	}

	var post models.Post
	if err := c.db.First(&post, ctx.Param("id")).Error; err != nil {
		utils.Error(ctx, http.StatusNotFound, 40430, "post not found")
		return
	}
	if post.IsBlocked {
		utils.Error(ctx, http.StatusForbidden, 40340, "cannot comment on a blocked post")
		return
	}

	var req commentRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusUnprocessableEntity, 42230, "invalid request body")
		return
	}

	if req.ParentID != nil {
		var parent models.Comment
		if err := c.db.First(&parent, *req.ParentID).Error; err != nil {
			utils.Error(ctx, http.StatusNotFound, 40440, "parent comment not found")
			return
		}
		if parent.IsBlocked {
			utils.Error(ctx, http.StatusForbidden, 40341, "cannot reply to a blocked comment")
			return
		}
	}

	content := strings.TrimSpace(utils.Sanitize(req.Content))
	if content == "" {
		utils.Error(ctx, http.StatusUnprocessableEntity, 42231, "content must not be empty")
		return
	}

	verdict := c.mod.Moderate(ctx.Request.Context(), content)

	comment := models.Comment{
		PostID:      post.ID,
		ParentID:    req.ParentID,
		UserID:      user.ID,
		Content:     content,
		IsBlocked:   verdict.Blocked,
		BlockReason: verdict.Reason,
	}
	if err := c.db.Create(&comment).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50040, "failed to create comment")
		return
	}

	if verdict.Blocked {
		utils.Error(ctx, http.StatusBadRequest, 40030, blockedMessage(verdict.Reason))
		return
	}

	if post.AutoReplyEnabled {
		delay := time.Duration(post.ReplyDelay*10) * time.Second
		if err := c.scheduler.Schedule(ctx.Request.Context(), post.ID, comment.ID, delay); err != nil {
			c.log.Warnf("failed to schedule auto-reply for comment %d: %v", comment.ID, err)
		}
	}

	utils.Success(ctx, comment)
}

// List returns all comments of a post, blocked ones included, oldest first.
func (c *CommentController) List(ctx *gin.Context) {
	var post models.Post
	if err := c.db.First(&post, ctx.Param("id")).Error; err != nil {
		utils.Error(ctx, http.StatusNotFound, 40430, "post not found")
		return
	}

	var comments []models.Comment
	if err := c.db.Where("post_id = ?", post.ID).
		Preload("User").
		Order("created_at ASC").
		Find(&comments).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50041, "failed to retrieve comments")
		return
	}
	utils.Success(ctx, comments)
}

// Get returns a single comment by ID.
func (c *CommentController) Get(ctx *gin.Context) {
	var comment models.Comment
	if err := c.db.Preload("User").First(&comment, ctx.Param("id")).Error; err != nil {
		utils.Error(ctx, http.StatusNotFound, 40440, "comment not found")
		return
	}
	utils.Success(ctx, comment)
}

// Update replaces a comment's content and re-moderates it. Author only.
func (c *CommentController) Update(ctx *gin.Context) {
	user, ok := middleware.CurrentUser(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40100, "authentication required")
		return
	}

	var comment models.Comment
	if err := c.db.First(&comment, ctx.Param("id")).Error; err != nil {
		utils.Error(ctx, http.StatusNotFound, 40440, "comment not found")
		return
	}
	if comment.UserID != user.ID {
		utils.Error(ctx, http.StatusForbidden, 40342, "not the author of this comment")
		return
	}

	var req commentRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusUnprocessableEntity, 42230, "invalid request body")
		return
	}

	content := strings.TrimSpace(utils.Sanitize(req.Content))
	if content == "" {
		utils.Error(ctx, http.StatusUnprocessableEntity, 42231, "content must not be empty")
		return
	}

	verdict := c.mod.Moderate(ctx.Request.Context(), content)

	comment.Content = content
	comment.IsBlocked = verdict.Blocked
	comment.BlockReason = verdict.Reason
	if err := c.db.Save(&comment).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50042, "failed to update comment")
		return
	}

	if verdict.Blocked {
		utils.Error(ctx, http.StatusBadRequest, 40030, blockedMessage(verdict.Reason))
		return
	}
	utils.Success(ctx, comment)
}

// Delete removes a comment together with its whole reply subtree. The
// author or a superuser may delete.
func (c *CommentController) Delete(ctx *gin.Context) {
	user, ok := middleware.CurrentUser(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40100, "authentication required")
		return
	}

	var comment models.Comment
	if err := c.db.First(&comment, ctx.Param("id")).Error; err != nil {
		utils.Error(ctx, http.StatusNotFound, 40440, "comment not found")
		return
	}
	if comment.UserID != user.ID && !user.IsSuperuser {
		utils.Error(ctx, http.StatusForbidden, 40343, "not allowed to delete this comment")
		return
	}

	err := c.db.Transaction(func(tx *gorm.DB) error {
		// breadth-first walk so arbitrarily deep reply chains go with the root
		ids := []uint{comment.ID}
		frontier := []uint{comment.ID}
		for len(frontier) > 0 {
			var children []uint
			if err := tx.Model(&models.Comment{}).
				Where("parent_id IN ?", frontier).
				Pluck("id", &children).Error; err != nil {
				return err
			}
			ids = append(ids, children...)
			frontier = children
		}
		return tx.Delete(&models.Comment{}, ids).Error
	})
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50043, "failed to delete comment")
		return
	}

	utils.Success(ctx, gin.H{"deleted": comment.ID})
}
