package domain

import (
	"gorm.io/datatypes"

	"neurolab/internal/store"
)

const (
	TaskPending = "pending"
	TaskRunning = "running"
	TaskDone    = "done"
	TaskFailed  = "failed"
)

// Task is a processing job made of ordered steps.
type Task struct {
	store.Model
	Name        string `gorm:"column:name;size:128;not null" json:"name"`
	Description string `gorm:"column:description;size:2048" json:"description"`
	CreatorID   int64  `gorm:"column:creator_id;not null;index" json:"creatorId"`
	Status      string `gorm:"column:status;size:16;not null;default:pending" json:"status"`
}

func (Task) TableName() string { return "tasks" }
func (Task) Columns() []string { return []string{"name", "description", "creator_id", "status"} }

type TaskStep struct {
	store.Model
	TaskID int64          `gorm:"column:task_id;not null;index" json:"taskId"`
	Seq    int            `gorm:"column:seq;not null" json:"seq"`
	Name   string         `gorm:"column:name;size:128;not null" json:"name"`
	Params datatypes.JSON `gorm:"column:params" json:"params,omitempty"`
}

func (TaskStep) TableName() string { return "task_steps" }
func (TaskStep) Columns() []string { return []string{"task_id", "seq", "name"} }
