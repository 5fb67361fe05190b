package models

import "time"

// Comment represents a reply to a post. Comments form a tree: a comment with
// a nil ParentID is a root, replies point at their parent comment in the same
// table. Deleting a comment removes its whole reply subtree.
type Comment struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	PostID      uint      `gorm:"index;not null" json:"post_id"`
	ParentID    *uint     `gorm:"index" json:"parent_id"`
	UserID      uint      `gorm:"index;not null" json:"author_id"`
	Content     string    `gorm:"type:text;not null" json:"content"`
	IsBlocked   bool      `gorm:"default:false" json:"is_blocked"`
	BlockReason string    `gorm:"size:255" json:"block_reason"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	User        User      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"author"`
}
