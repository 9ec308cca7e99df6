package models

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// Group labels a set of siblings under one parent. It is purely
// presentational, but referential integrity still applies: every member of a
// group must be a child of the group's parent.
type Group struct {
	DefaultModel
	Parent `gorm:"embedded"`
	Name   string
	Color  string
}

var ErrGroupMemberNotSibling = errors.New("all members of a group must be children of the group's parent")

// BeforeSave trims the presentational fields.
func (g *Group) BeforeSave(_ *gorm.DB) error {
	g.Name = strings.TrimSpace(g.Name)
	g.Color = strings.TrimSpace(g.Color)

	return nil
}

// BeforeCreate verifies that the parent exists.
func (g *Group) BeforeCreate(tx *gorm.DB) error {
	_ = g.DefaultModel.BeforeCreate(tx)

	_, err := g.Parent.Budget(tx)
	return err
}

// MemberCount counts the accounts and subaccounts assigned to the group.
func (g Group) MemberCount(db *gorm.DB) (int64, error) {
	var accounts, subAccounts int64

	err := db.Model(&Account{}).Where("group_id = ?", g.ID).Count(&accounts).Error
	if err != nil {
		return 0, err
	}

	err = db.Model(&SubAccount{}).Where("group_id = ?", g.ID).Count(&subAccounts).Error
	if err != nil {
		return 0, err
	}

	return accounts + subAccounts, nil
}
