// Package domain holds the persisted entities. Every type embeds store.Model
// and lists its queryable columns for the search builder.
package domain

import "neurolab/internal/store"

type User struct {
	store.Model
	Email        string `gorm:"column:email;uniqueIndex;size:191;not null" json:"email"`
	Name         string `gorm:"column:name;size:64;not null" json:"name"`
	PasswordHash string `gorm:"column:password_hash;size:100;not null" json:"-"`
	Role         string `gorm:"column:role;size:16;not null;default:user" json:"role"`
}

func (User) TableName() string { return "users" }
func (User) Columns() []string { return []string{"email", "name", "role"} }
