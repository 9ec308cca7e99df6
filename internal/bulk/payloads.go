package bulk

import (
	"time"

	"github.com/google/uuid"
	"github.com/happybudget/backend/internal/models"
	"github.com/shopspring/decimal"
)

// AccountPayload creates one account under a budget.
type AccountPayload struct {
	Identifier  string     `json:"identifier"`
	Description string     `json:"description"`
	GroupID     *uuid.UUID `json:"groupId"`
}

// AccountChange updates one account. Nil fields are left untouched; a group
// id of uuid.Nil detaches the account from its group.
type AccountChange struct {
	ID          uuid.UUID  `json:"id" binding:"required"`
	Identifier  *string    `json:"identifier"`
	Description *string    `json:"description"`
	GroupID     *uuid.UUID `json:"groupId"`
}

// SubAccountPayload creates one subaccount under an account or another
// subaccount.
type SubAccountPayload struct {
	Identifier  string           `json:"identifier"`
	Description string           `json:"description"`
	Quantity    *decimal.Decimal `json:"quantity"`
	Rate        *decimal.Decimal `json:"rate"`
	Multiplier  *decimal.Decimal `json:"multiplier"`
	Unit        string           `json:"unit"`
	GroupID     *uuid.UUID       `json:"groupId"`
	FringeIDs   []uuid.UUID      `json:"fringes"`
}

// SubAccountChange updates one subaccount. Nil fields are left untouched; a
// group id of uuid.Nil detaches the subaccount from its group; a non-nil
// fringe id slice replaces the assignment set; a non-nil parent moves the
// subaccount and its subtree under another account or subaccount of the
// same budget.
type SubAccountChange struct {
	ID          uuid.UUID        `json:"id" binding:"required"`
	Identifier  *string          `json:"identifier"`
	Description *string          `json:"description"`
	Quantity    *decimal.Decimal `json:"quantity"`
	Rate        *decimal.Decimal `json:"rate"`
	Multiplier  *decimal.Decimal `json:"multiplier"`
	Unit        *string          `json:"unit"`
	GroupID     *uuid.UUID       `json:"groupId"`
	FringeIDs   *[]uuid.UUID     `json:"fringes"`
	Parent      *models.Parent   `json:"parent"`
}

// MarkupPayload creates one markup under a budget, account or subaccount.
// Percent markups must name at least one child, flat markups must not name
// any.
type MarkupPayload struct {
	Identifier  string                 `json:"identifier"`
	Description string                 `json:"description"`
	Unit        models.CalculationUnit `json:"unit" binding:"required"`
	Rate        decimal.Decimal        `json:"rate"`
	ChildIDs    []uuid.UUID            `json:"children"`
}

// MarkupChange updates one markup. Changing the unit from percent to flat
// implicitly clears the children; changing it to percent requires children.
type MarkupChange struct {
	ID          uuid.UUID               `json:"id" binding:"required"`
	Identifier  *string                 `json:"identifier"`
	Description *string                 `json:"description"`
	Unit        *models.CalculationUnit `json:"unit"`
	Rate        *decimal.Decimal        `json:"rate"`
	ChildIDs    *[]uuid.UUID            `json:"children"`
}

// FringePayload creates one fringe on a budget.
type FringePayload struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Unit        models.CalculationUnit `json:"unit" binding:"required"`
	Rate        decimal.Decimal        `json:"rate"`
	Cutoff      *decimal.Decimal       `json:"cutoff"`
	Color       string                 `json:"color"`
}

// FringeChange updates one fringe.
type FringeChange struct {
	ID          uuid.UUID               `json:"id" binding:"required"`
	Name        *string                 `json:"name"`
	Description *string                 `json:"description"`
	Unit        *models.CalculationUnit `json:"unit"`
	Rate        *decimal.Decimal        `json:"rate"`
	Cutoff      *decimal.Decimal        `json:"cutoff"`
	Color       *string                 `json:"color"`
}

// GroupPayload creates one group under a budget, account or subaccount. All
// members must be children of the group's parent.
type GroupPayload struct {
	Name      string      `json:"name"`
	Color     string      `json:"color"`
	MemberIDs []uuid.UUID `json:"children"`
}

// GroupChange updates one group.
type GroupChange struct {
	ID        uuid.UUID    `json:"id" binding:"required"`
	Name      *string      `json:"name"`
	Color     *string      `json:"color"`
	MemberIDs *[]uuid.UUID `json:"children"`
}

// ActualPayload creates one actual on a budget, owned by a subaccount or a
// markup of that budget.
type ActualPayload struct {
	OwnerType     models.OwnerType `json:"ownerType" binding:"required"`
	OwnerID       uuid.UUID        `json:"ownerId" binding:"required"`
	Name          string           `json:"name"`
	Notes         string           `json:"notes"`
	PurchaseOrder string           `json:"purchaseOrder"`
	Date          *time.Time       `json:"date"`
	Value         decimal.Decimal  `json:"value"`
}

// ActualChange updates one actual.
type ActualChange struct {
	ID            uuid.UUID         `json:"id" binding:"required"`
	OwnerType     *models.OwnerType `json:"ownerType"`
	OwnerID       *uuid.UUID        `json:"ownerId"`
	Name          *string           `json:"name"`
	Notes         *string           `json:"notes"`
	PurchaseOrder *string           `json:"purchaseOrder"`
	Date          *time.Time        `json:"date"`
	Value         *decimal.Decimal  `json:"value"`
}
