package controllers

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/aiblog/aiblog/middleware"
	"github.com/aiblog/aiblog/models"
)

func setupAnalyticsRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()

	db := newTestDB(t)
	ctrl := NewAnalyticsController(db)

	r := gin.New()
	r.GET("/analytics/comments-daily-breakdown", middleware.AuthRequired(db), ctrl.CommentsDailyBreakdown)
	return r, db
}

func seedComment(t *testing.T, db *gorm.DB, postID, userID uint, createdAt time.Time, blocked bool) {
	t.Helper()

	comment := models.Comment{PostID: postID, UserID: userID, Content: "c", IsBlocked: blocked}
	require.NoError(t, db.Create(&comment).Error)
	require.NoError(t, db.Model(&models.Comment{}).Where("id = ?", comment.ID).Update("created_at", createdAt).Error)
}

func TestAnalyticsRequiresSuperuser(t *testing.T) {
	r, db := setupAnalyticsRouter(t)
	user := createTestUser(t, db, "alice", false)

	w := doJSON(t, r, http.MethodGet, "/analytics/comments-daily-breakdown?date_from=2026-01-01&date_to=2026-01-02", authHeader(t, user), nil)
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestAnalyticsValidatesDates(t *testing.T) {
	r, db := setupAnalyticsRouter(t)
	admin := createTestUser(t, db, "root", true)

	w := doJSON(t, r, http.MethodGet, "/analytics/comments-daily-breakdown?date_from=not-a-date&date_to=2026-01-02", authHeader(t, admin), nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodGet, "/analytics/comments-daily-breakdown?date_from=2026-01-05&date_to=2026-01-02", authHeader(t, admin), nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAnalyticsDailyBreakdown(t *testing.T) {
	r, db := setupAnalyticsRouter(t)
	admin := createTestUser(t, db, "root", true)
	post := createTestPost(t, db, admin.ID, false, 0)

	// timestamps seeded in server-local time, the clock rows are written with
	day1 := time.Date(2026, 1, 1, 10, 0, 0, 0, time.Local)
	day3 := time.Date(2026, 1, 3, 18, 30, 0, 0, time.Local)
	seedComment(t, db, post.ID, admin.ID, day1, false)
	seedComment(t, db, post.ID, admin.ID, day1, true)
	// just before midnight still counts on the day it shows as created
	seedComment(t, db, post.ID, admin.ID, time.Date(2026, 1, 1, 23, 30, 0, 0, time.Local), false)
	seedComment(t, db, post.ID, admin.ID, day3, false)
	// outside the requested range
	seedComment(t, db, post.ID, admin.ID, time.Date(2026, 1, 10, 0, 0, 0, 0, time.Local), false)

	w := doJSON(t, r, http.MethodGet, "/analytics/comments-daily-breakdown?date_from=2026-01-01&date_to=2026-01-03", authHeader(t, admin), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var days []struct {
		Date            string `json:"date"`
		TotalComments   int64  `json:"total_comments"`
		BlockedComments int64  `json:"blocked_comments"`
	}
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &days))
	require.Len(t, days, 3)

	require.Equal(t, "2026-01-01", days[0].Date)
	require.EqualValues(t, 3, days[0].TotalComments)
	require.EqualValues(t, 1, days[0].BlockedComments)

	// quiet day still appears, zero filled
	require.Equal(t, "2026-01-02", days[1].Date)
	require.EqualValues(t, 0, days[1].TotalComments)
	require.EqualValues(t, 0, days[1].BlockedComments)

	require.Equal(t, "2026-01-03", days[2].Date)
	require.EqualValues(t, 1, days[2].TotalComments)
	require.EqualValues(t, 0, days[2].BlockedComments)
}
