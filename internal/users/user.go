package users

import (
	"strings"
	"time"
)

// User is a public profile owned by the identity provider.
type User struct {
	ID         int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Username   string    `gorm:"column:username;size:64;not null;uniqueIndex" json:"-"`
	PublicName string    `gorm:"column:public_name;size:320;not null" json:"public_name"`
	IconURL    string    `gorm:"column:icon_url;size:512" json:"icon_url"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

// TableName exposes the table backing user records.
func (User) TableName() string {
	return "users"
}

// NewUser describes a user record to create.
type NewUser struct {
	Username   string
	PublicName string
	IconURL    string
}

func normalizeUsername(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

// UnknownName is shown when a user profile cannot be resolved.
const UnknownName = "Unknown User"

// Placeholder stands in for a profile that could not be fetched.
// A blank name falls back to UnknownName.
func Placeholder(id int64, name string) User {
	name = strings.TrimSpace(name)
	if name == "" {
		name = UnknownName
	}
	return User{ID: id, PublicName: name}
}
