package domain

import (
	"gorm.io/datatypes"

	"neurolab/internal/store"
)

type Notification struct {
	store.Model
	UserID  int64          `gorm:"column:user_id;not null;index" json:"userId"`
	Title   string         `gorm:"column:title;size:255;not null" json:"title"`
	Body    string         `gorm:"column:body;size:4096" json:"body"`
	Payload datatypes.JSON `gorm:"column:payload" json:"payload,omitempty"`
	IsRead  bool           `gorm:"column:is_read;not null;default:false" json:"isRead"`
}

func (Notification) TableName() string { return "notifications" }
func (Notification) Columns() []string { return []string{"user_id", "title", "is_read"} }
