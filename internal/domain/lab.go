package domain

import "neurolab/internal/store"

type Species struct {
	store.Model
	Name        string `gorm:"column:name;size:128;not null;index" json:"name"`
	Description string `gorm:"column:description;size:1024" json:"description"`
}

func (Species) TableName() string { return "species" }
func (Species) Columns() []string { return []string{"name", "description"} }

// Device is a piece of acquisition hardware, e.g. an EEG amplifier.
type Device struct {
	store.Model
	Name        string `gorm:"column:name;size:128;not null" json:"name"`
	Type        string `gorm:"column:type;size:64;not null;index" json:"type"`
	Serial      string `gorm:"column:serial;size:128" json:"serial"`
	Description string `gorm:"column:description;size:1024" json:"description"`
}

func (Device) TableName() string { return "devices" }
func (Device) Columns() []string { return []string{"name", "type", "serial", "description"} }

type Dataset struct {
	store.Model
	Name        string `gorm:"column:name;size:128;not null" json:"name"`
	Description string `gorm:"column:description;size:1024" json:"description"`
	SpeciesID   *int64 `gorm:"column:species_id;index" json:"speciesId"`
	DeviceID    *int64 `gorm:"column:device_id;index" json:"deviceId"`
}

func (Dataset) TableName() string { return "datasets" }
func (Dataset) Columns() []string {
	return []string{"name", "description", "species_id", "device_id"}
}

// HumanSubject is a study participant. SubjectIndex is the externally visible
// number handed out by the subject counter, never reused.
type HumanSubject struct {
	store.Model
	SubjectIndex int64  `gorm:"column:subject_index;uniqueIndex;not null" json:"subjectIndex"`
	Name         string `gorm:"column:name;size:128;not null" json:"name"`
	Gender       string `gorm:"column:gender;size:16" json:"gender"`
	BirthYear    *int   `gorm:"column:birth_year" json:"birthYear"`
	Note         string `gorm:"column:note;size:1024" json:"note"`
}

func (HumanSubject) TableName() string { return "human_subjects" }
func (HumanSubject) Columns() []string {
	return []string{"subject_index", "name", "gender", "birth_year", "note"}
}
