package domain

import (
	"time"

	"neurolab/internal/store"
)

type Experiment struct {
	store.Model
	Name        string     `gorm:"column:name;size:128;not null" json:"name"`
	Description string     `gorm:"column:description;size:2048" json:"description"`
	CreatorID   int64      `gorm:"column:creator_id;not null;index" json:"creatorId"`
	StartedAt   *time.Time `gorm:"column:started_at" json:"startedAt"`
}

func (Experiment) TableName() string { return "experiments" }
func (Experiment) Columns() []string {
	return []string{"name", "description", "creator_id", "started_at"}
}

// Paradigm is a stimulation protocol within one experiment.
type Paradigm struct {
	store.Model
	ExperimentID int64  `gorm:"column:experiment_id;not null;index" json:"experimentId"`
	Name         string `gorm:"column:name;size:128;not null" json:"name"`
	Description  string `gorm:"column:description;size:2048" json:"description"`
}

func (Paradigm) TableName() string { return "paradigms" }
func (Paradigm) Columns() []string { return []string{"experiment_id", "name", "description"} }

// File is a recorded data file. The bytes live in blob storage under BlobKey.
// A file without a paradigm is top level within its experiment.
type File struct {
	store.Model
	ExperimentID int64  `gorm:"column:experiment_id;not null;index" json:"experimentId"`
	ParadigmID   *int64 `gorm:"column:paradigm_id;index" json:"paradigmId"`
	Name         string `gorm:"column:name;size:255;not null" json:"name"`
	ContentType  string `gorm:"column:content_type;size:128" json:"contentType"`
	Size         int64  `gorm:"column:size;not null" json:"size"`
	BlobKey      string `gorm:"column:blob_key;size:255;not null" json:"-"`
	UploaderID   int64  `gorm:"column:uploader_id;not null" json:"uploaderId"`
}

func (File) TableName() string { return "files" }
func (File) Columns() []string {
	return []string{"experiment_id", "paradigm_id", "name", "content_type", "size", "uploader_id"}
}
