package models

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// User is the owner of budgets and templates. Authentication is out of scope
// for the engine, the row only exists so that created_by and updated_by
// attribution references something real.
type User struct {
	DefaultModel
	Email     string `gorm:"uniqueIndex"`
	FirstName string
	LastName  string
}

var ErrUserEmailMissing = errors.New("the user email must be set")

// BeforeSave validates the user row.
func (u *User) BeforeSave(_ *gorm.DB) error {
	u.Email = strings.TrimSpace(strings.ToLower(u.Email))
	if u.Email == "" {
		return ErrUserEmailMissing
	}

	return nil
}

// FullName returns the display name of the user.
func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}
