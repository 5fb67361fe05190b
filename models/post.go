package models

import "time"

// Post represents an article created by a user. Posts that fail the
// moderation gate keep their content but carry a block flag and reason.
type Post struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	UserID           uint      `gorm:"index;not null" json:"author_id"`
	Title            string    `gorm:"size:255;not null" json:"title"`
	Content          string    `gorm:"type:text;not null" json:"content"`
	IsBlocked        bool      `gorm:"default:false" json:"is_blocked"`
	BlockReason      string    `gorm:"size:255" json:"block_reason"`
	AutoReplyEnabled bool      `gorm:"default:false" json:"auto_reply_enabled"`
	ReplyDelay       int       `gorm:"default:0" json:"reply_delay"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
	User             User      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"author"`
	Comments         []Comment `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"comments,omitempty"`
}
