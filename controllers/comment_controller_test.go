package controllers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/aiblog/aiblog/ai"
	"github.com/aiblog/aiblog/middleware"
	"github.com/aiblog/aiblog/models"
)

type commentTestEnv struct {
	router    *gin.Engine
	db        *gorm.DB
	scheduler *stubScheduler
}

func setupCommentEnv(t *testing.T, mod ai.Moderator) commentTestEnv {
	t.Helper()

	db := newTestDB(t)
	scheduler := &stubScheduler{}
	ctrl := NewCommentController(db, mod, scheduler, testLogger())
	auth := middleware.AuthRequired(db)

	r := gin.New()
	r.POST("/comments/:id/create", auth, ctrl.Create)
	r.GET("/comments/list/:id", ctrl.List)
	r.GET("/comments/:id", ctrl.Get)
	r.PUT("/comments/:id", auth, ctrl.Update)
	r.DELETE("/comments/:id", auth, ctrl.Delete)
	return commentTestEnv{router: r, db: db, scheduler: scheduler}
}

func createTestPost(t *testing.T, db *gorm.DB, userID uint, autoReply bool, delay int) models.Post {
	t.Helper()

	post := models.Post{
		UserID:           userID,
		Title:            "A post",
		Content:          "Post content",
		AutoReplyEnabled: autoReply,
		ReplyDelay:       delay,
	}
	require.NoError(t, db.Create(&post).Error)
	return post
}

func TestCreateComment(t *testing.T) {
	env := setupCommentEnv(t, newStubModerator())
	author := createTestUser(t, env.db, "alice", false)
	post := createTestPost(t, env.db, author.ID, false, 0)

	w := doJSON(t, env.router, http.MethodPost, fmt.Sprintf("/comments/%d/create", post.ID), authHeader(t, author), map[string]string{
		"content": "Nice post",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var comment models.Comment
	require.NoError(t, env.db.First(&comment).Error)
	require.Equal(t, post.ID, comment.PostID)
	require.Nil(t, comment.ParentID)
	require.False(t, comment.IsBlocked)
	require.Empty(t, env.scheduler.Calls())
}

func TestCreateCommentMissingPost(t *testing.T) {
	env := setupCommentEnv(t, newStubModerator())
	user := createTestUser(t, env.db, "alice", false)

	w := doJSON(t, env.router, http.MethodPost, "/comments/9999/create", authHeader(t, user), map[string]string{
		"content": "Nice post",
	})
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateCommentOnBlockedPost(t *testing.T) {
	env := setupCommentEnv(t, newStubModerator())
	user := createTestUser(t, env.db, "alice", false)
	post := models.Post{UserID: user.ID, Title: "Bad", Content: "bad", IsBlocked: true, BlockReason: "HARM_CATEGORY_HARASSMENT"}
	require.NoError(t, env.db.Create(&post).Error)

	w := doJSON(t, env.router, http.MethodPost, fmt.Sprintf("/comments/%d/create", post.ID), authHeader(t, user), map[string]string{
		"content": "Nice post",
	})
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestCreateCommentParentChecks(t *testing.T) {
	env := setupCommentEnv(t, newStubModerator())
	user := createTestUser(t, env.db, "alice", false)
	post := createTestPost(t, env.db, user.ID, false, 0)

	missing := uint(9999)
	w := doJSON(t, env.router, http.MethodPost, fmt.Sprintf("/comments/%d/create", post.ID), authHeader(t, user), map[string]interface{}{
		"content":   "A reply",
		"parent_id": missing,
	})
	require.Equal(t, http.StatusNotFound, w.Code)

	blockedParent := models.Comment{PostID: post.ID, UserID: user.ID, Content: "bad", IsBlocked: true, BlockReason: "HARM_CATEGORY_HARASSMENT"}
	require.NoError(t, env.db.Create(&blockedParent).Error)

	w = doJSON(t, env.router, http.MethodPost, fmt.Sprintf("/comments/%d/create", post.ID), authHeader(t, user), map[string]interface{}{
		"content":   "A reply",
		"parent_id": blockedParent.ID,
	})
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestCreateCommentBlocked(t *testing.T) {
	env := setupCommentEnv(t, newStubModerator())
	user := createTestUser(t, env.db, "alice", false)
	post := createTestPost(t, env.db, user.ID, true, 1)

	w := doJSON(t, env.router, http.MethodPost, fmt.Sprintf("/comments/%d/create", post.ID), authHeader(t, user), map[string]string{
		"content": "this has a badword in it",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, decodeEnvelope(t, w).Message, "Content was blocked")

	// persisted as blocked, and no auto-reply gets scheduled
	var comment models.Comment
	require.NoError(t, env.db.First(&comment).Error)
	require.True(t, comment.IsBlocked)
	require.Empty(t, env.scheduler.Calls())
}

func TestCreateCommentSchedulesAutoReply(t *testing.T) {
	env := setupCommentEnv(t, newStubModerator())
	author := createTestUser(t, env.db, "alice", false)
	post := createTestPost(t, env.db, author.ID, true, 3)

	w := doJSON(t, env.router, http.MethodPost, fmt.Sprintf("/comments/%d/create", post.ID), authHeader(t, author), map[string]string{
		"content": "Nice post",
	})
	require.Equal(t, http.StatusOK, w.Code)

	calls := env.scheduler.Calls()
	require.Len(t, calls, 1)
	require.Equal(t, post.ID, calls[0].PostID)
	require.Equal(t, 30*time.Second, calls[0].Delay)

	var comment models.Comment
	require.NoError(t, env.db.First(&comment).Error)
	require.Equal(t, comment.ID, calls[0].CommentID)
}

func TestListCommentsIncludesBlocked(t *testing.T) {
	env := setupCommentEnv(t, newStubModerator())
	user := createTestUser(t, env.db, "alice", false)
	post := createTestPost(t, env.db, user.ID, false, 0)

	clean := models.Comment{PostID: post.ID, UserID: user.ID, Content: "fine"}
	blocked := models.Comment{PostID: post.ID, UserID: user.ID, Content: "bad", IsBlocked: true, BlockReason: "HARM_CATEGORY_HARASSMENT"}
	require.NoError(t, env.db.Create(&clean).Error)
	require.NoError(t, env.db.Create(&blocked).Error)

	w := doJSON(t, env.router, http.MethodGet, fmt.Sprintf("/comments/list/%d", post.ID), "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var comments []models.Comment
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &comments))
	require.Len(t, comments, 2)
}

func TestUpdateComment(t *testing.T) {
	env := setupCommentEnv(t, newStubModerator())
	author := createTestUser(t, env.db, "alice", false)
	other := createTestUser(t, env.db, "bob", false)
	post := createTestPost(t, env.db, author.ID, false, 0)

	comment := models.Comment{PostID: post.ID, UserID: author.ID, Content: "original"}
	require.NoError(t, env.db.Create(&comment).Error)

	w := doJSON(t, env.router, http.MethodPut, fmt.Sprintf("/comments/%d", comment.ID), authHeader(t, other), map[string]string{
		"content": "edited",
	})
	require.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(t, env.router, http.MethodPut, fmt.Sprintf("/comments/%d", comment.ID), authHeader(t, author), map[string]string{
		"content": "now a badword appears",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)

	var updated models.Comment
	require.NoError(t, env.db.First(&updated, comment.ID).Error)
	require.True(t, updated.IsBlocked)
}

func TestDeleteCommentCascades(t *testing.T) {
	env := setupCommentEnv(t, newStubModerator())
	author := createTestUser(t, env.db, "alice", false)
	post := createTestPost(t, env.db, author.ID, false, 0)

	root := models.Comment{PostID: post.ID, UserID: author.ID, Content: "root"}
	require.NoError(t, env.db.Create(&root).Error)
	child := models.Comment{PostID: post.ID, UserID: author.ID, ParentID: &root.ID, Content: "child"}
	require.NoError(t, env.db.Create(&child).Error)
	grandchild := models.Comment{PostID: post.ID, UserID: author.ID, ParentID: &child.ID, Content: "grandchild"}
	require.NoError(t, env.db.Create(&grandchild).Error)
	sibling := models.Comment{PostID: post.ID, UserID: author.ID, Content: "sibling"}
	require.NoError(t, env.db.Create(&sibling).Error)

	w := doJSON(t, env.router, http.MethodDelete, fmt.Sprintf("/comments/%d", root.ID), authHeader(t, author), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var remaining []models.Comment
	require.NoError(t, env.db.Find(&remaining).Error)
	require.Len(t, remaining, 1)
	require.Equal(t, "sibling", remaining[0].Content)
}

func TestDeleteCommentAuthorization(t *testing.T) {
	env := setupCommentEnv(t, newStubModerator())
	author := createTestUser(t, env.db, "alice", false)
	other := createTestUser(t, env.db, "bob", false)
	admin := createTestUser(t, env.db, "root", true)
	post := createTestPost(t, env.db, author.ID, false, 0)

	comment := models.Comment{PostID: post.ID, UserID: author.ID, Content: "hello"}
	require.NoError(t, env.db.Create(&comment).Error)

	w := doJSON(t, env.router, http.MethodDelete, fmt.Sprintf("/comments/%d", comment.ID), authHeader(t, other), nil)
	require.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(t, env.router, http.MethodDelete, fmt.Sprintf("/comments/%d", comment.ID), authHeader(t, admin), nil)
	require.Equal(t, http.StatusOK, w.Code)
}
