package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/aiblog/aiblog/middleware"
	"github.com/aiblog/aiblog/models"
	"github.com/aiblog/aiblog/utils"
)

const dateLayout = "2006-01-02"

// AnalyticsController exposes comment statistics to superusers.
type AnalyticsController struct {
	db *gorm.DB
}

func NewAnalyticsController(db *gorm.DB) *AnalyticsController {
	return &AnalyticsController{db: db}
}

type dailyCommentStats struct {
	Date            string `json:"date"`
	TotalComments   int64  `json:"total_comments"`
	BlockedComments int64  `json:"blocked_comments"`
}

// CommentsDailyBreakdown returns, for each day in [date_from, date_to], how
// many comments were created and how many of those were blocked. Days with
// no activity are included with zero counts. Bucketing happens in Go so the
// query stays portable across database drivers. Days follow server-local
// time, the same clock comment rows are written with, so a comment never
// lands in a different day than its stored creation date shows.
func (a *AnalyticsController) CommentsDailyBreakdown(ctx *gin.Context) {
	user, ok := middleware.CurrentUser(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40100, "authentication required")
		return
	}
	if !user.IsSuperuser {
		utils.Error(ctx, http.StatusForbidden, 40350, "superuser access required")
		return
	}

	from, err := time.ParseInLocation(dateLayout, ctx.Query("date_from"), time.Local)
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40040, "date_from must be a valid YYYY-MM-DD date")
		return
	}
	to, err := time.ParseInLocation(dateLayout, ctx.Query("date_to"), time.Local)
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40041, "date_to must be a valid YYYY-MM-DD date")
		return
	}
	if from.After(to) {
		utils.Error(ctx, http.StatusBadRequest, 40042, "date_from must not be after date_to")
		return
	}

	var comments []models.Comment
	if err := a.db.Select("created_at", "is_blocked").
		Where("created_at >= ? AND created_at < ?", from, to.AddDate(0, 0, 1)).
		Find(&comments).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50050, "failed to retrieve comment stats")
		return
	}

	buckets := make(map[string]*dailyCommentStats)
	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		key := day.Format(dateLayout)
		buckets[key] = &dailyCommentStats{Date: key}
	}
	for _, c := range comments {
		key := c.CreatedAt.In(time.Local).Format(dateLayout)
		stats, ok := buckets[key]
		if !ok {
			continue
		}
		stats.TotalComments++
		if c.IsBlocked {
			stats.BlockedComments++
		}
	}

	result := make([]dailyCommentStats, 0, len(buckets))
	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		result = append(result, *buckets[day.Format(dateLayout)])
	}

	utils.Success(ctx, result)
}
