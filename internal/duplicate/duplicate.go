// Package duplicate deep-copies budget trees.
//
// A copy recreates the full tree with fresh ids: accounts, the subaccount
// hierarchy, fringes, markups, groups, actuals and every relation between
// them. The derived fields are carried over verbatim, a copied tree computes
// to the same values as its source and needs no recalculation.
package duplicate

import (
	"errors"

	"github.com/google/uuid"
	"github.com/happybudget/backend/internal/models"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

var ErrDeriveFromBudget = errors.New("only a template can be used to derive a new budget")

// Duplicate copies the budget within its own domain. The copy is attributed
// to the acting user regardless of who built the source.
func Duplicate(db *gorm.DB, budgetID, userID uuid.UUID) (*models.Budget, error) {
	var clone *models.Budget

	err := db.Transaction(func(tx *gorm.DB) error {
		source, err := loadBudget(tx, budgetID)
		if err != nil {
			return err
		}

		clone, err = copyTree(tx, source, source.Domain, userID)
		return err
	})
	if err != nil {
		return nil, err
	}

	return clone, nil
}

// Derive creates a budget in the budget domain from a template. The given
// name replaces the template's name when set. Templates carry no actuals, so
// the derived budget starts with a zero actual side.
func Derive(db *gorm.DB, templateID, userID uuid.UUID, name string) (*models.Budget, error) {
	var clone *models.Budget

	err := db.Transaction(func(tx *gorm.DB) error {
		source, err := loadBudget(tx, templateID)
		if err != nil {
			return err
		}

		if source.Domain != models.DomainTemplate {
			return ErrDeriveFromBudget
		}

		clone, err = copyTree(tx, source, models.DomainBudget, userID)
		if err != nil {
			return err
		}

		if name != "" {
			clone.Name = name
			return tx.Model(clone).Select("Name").Updates(clone).Error
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return clone, nil
}

func loadBudget(tx *gorm.DB, id uuid.UUID) (models.Budget, error) {
	var budget models.Budget
	err := tx.First(&budget, "id = ?", id).Error

	return budget, err
}

// copyTree recreates the budget's tree under a fresh root. Rows are created
// top-down so that the integrity hooks always find the parents, with clone
// ids assigned before any row is written so that cross references can be
// translated up front.
func copyTree(tx *gorm.DB, source models.Budget, domain models.Domain, userID uuid.UUID) (*models.Budget, error) {
	budgets := mapping{}
	accounts := mapping{}
	subAccounts := mapping{}
	markups := mapping{}
	fringes := mapping{}
	groups := mapping{}

	clone := source
	clone.DefaultModel = models.DefaultModel{ID: budgets.fresh(source.ID)}
	clone.Domain = domain
	clone.Community = false
	clone.CreatedByID = userID
	clone.UpdatedByID = userID

	if err := tx.Create(&clone).Error; err != nil {
		return nil, err
	}

	// Fringes carry no references, they only get fresh ids.
	var sourceFringes []models.Fringe
	err := tx.Where("budget_id = ?", source.ID).Find(&sourceFringes).Error
	if err != nil {
		return nil, err
	}

	for _, fringe := range sourceFringes {
		row := fringe
		row.DefaultModel = models.DefaultModel{ID: fringes.fresh(fringe.ID)}
		row.BudgetID = clone.ID

		if err := tx.Create(&row).Error; err != nil {
			return nil, err
		}
	}

	// Groups are created after their parents exist, but their clone ids must
	// be known before the members are copied.
	sourceGroups, err := groupsOfBudget(tx, source.ID)
	if err != nil {
		return nil, err
	}

	for _, group := range sourceGroups {
		groups.fresh(group.ID)
	}

	var sourceAccounts []models.Account
	err = tx.Where("budget_id = ?", source.ID).Find(&sourceAccounts).Error
	if err != nil {
		return nil, err
	}

	for _, account := range sourceAccounts {
		row := account
		row.DefaultModel = models.DefaultModel{ID: accounts.fresh(account.ID)}
		row.BudgetID = clone.ID
		row.Domain = domain
		row.GroupID = groups.remap(account.GroupID, "group")

		if err := tx.Create(&row).Error; err != nil {
			return nil, err
		}
	}

	// Level order guarantees that every subaccount's parent is already
	// copied when its own row is written.
	var sourceSubAccounts []models.SubAccount
	err = tx.Where("budget_id = ?", source.ID).
		Order("nested_level ASC").
		Find(&sourceSubAccounts).Error
	if err != nil {
		return nil, err
	}

	for _, subAccount := range sourceSubAccounts {
		row := subAccount
		row.DefaultModel = models.DefaultModel{ID: subAccounts.fresh(subAccount.ID)}
		row.BudgetID = clone.ID
		row.Domain = domain
		row.GroupID = groups.remap(subAccount.GroupID, "group")

		parentMap := accounts
		if subAccount.ParentType == models.ParentTypeSubAccount {
			parentMap = subAccounts
		}
		parentID, ok := parentMap.lookup(subAccount.ParentID)
		if !ok {
			return nil, models.ErrResourceNotFound
		}
		row.Parent = models.Parent{ParentType: subAccount.ParentType, ParentID: parentID}

		if err := tx.Omit("Fringes").Create(&row).Error; err != nil {
			return nil, err
		}
	}

	for _, group := range sourceGroups {
		row := group
		id, _ := groups.lookup(group.ID)
		row.DefaultModel = models.DefaultModel{ID: id}

		parentID, err := remapParent(group.Parent, budgets, accounts, subAccounts)
		if err != nil {
			return nil, err
		}
		row.Parent = models.Parent{ParentType: group.ParentType, ParentID: parentID}

		if err := tx.Create(&row).Error; err != nil {
			return nil, err
		}
	}

	var sourceMarkups []models.Markup
	err = tx.Where("budget_id = ?", source.ID).Find(&sourceMarkups).Error
	if err != nil {
		return nil, err
	}

	for _, markup := range sourceMarkups {
		row := markup
		row.DefaultModel = models.DefaultModel{ID: markups.fresh(markup.ID)}
		row.BudgetID = clone.ID

		parentID, err := remapParent(markup.Parent, budgets, accounts, subAccounts)
		if err != nil {
			return nil, err
		}
		row.Parent = models.Parent{ParentType: markup.ParentType, ParentID: parentID}

		if err := tx.Omit("Accounts", "SubAccounts").Create(&row).Error; err != nil {
			return nil, err
		}
	}

	err = copyJoinRows(tx, "markup_accounts", "markup_id", "account_id",
		markups, accounts, uuidKeys(markups))
	if err != nil {
		return nil, err
	}

	err = copyJoinRows(tx, "markup_sub_accounts", "markup_id", "sub_account_id",
		markups, subAccounts, uuidKeys(markups))
	if err != nil {
		return nil, err
	}

	err = copyJoinRows(tx, "subaccount_fringes", "sub_account_id", "fringe_id",
		subAccounts, fringes, uuidKeys(subAccounts))
	if err != nil {
		return nil, err
	}

	// Templates hold no actuals, so this loop only runs for budget sources.
	var sourceActuals []models.Actual
	err = tx.Where("budget_id = ?", source.ID).Find(&sourceActuals).Error
	if err != nil {
		return nil, err
	}

	for _, actual := range sourceActuals {
		row := actual
		row.DefaultModel = models.DefaultModel{ID: uuid.New()}
		row.BudgetID = clone.ID

		ownerMap := subAccounts
		if actual.OwnerType == models.OwnerTypeMarkup {
			ownerMap = markups
		}
		ownerID, ok := ownerMap.lookup(actual.OwnerID)
		if !ok {
			return nil, models.ErrResourceNotFound
		}
		row.OwnerID = ownerID

		if err := tx.Create(&row).Error; err != nil {
			return nil, err
		}
	}

	return &clone, nil
}

// groupsOfBudget collects every group in the budget's tree, whichever node
// it hangs off of.
func groupsOfBudget(tx *gorm.DB, budgetID uuid.UUID) ([]models.Group, error) {
	var groups []models.Group
	err := tx.
		Where("parent_type = ? AND parent_id = ?", models.ParentTypeBudget, budgetID).
		Or("parent_type = ? AND parent_id IN (?)", models.ParentTypeAccount,
			tx.Session(&gorm.Session{NewDB: true}).Model(&models.Account{}).Select("id").Where("budget_id = ?", budgetID)).
		Or("parent_type = ? AND parent_id IN (?)", models.ParentTypeSubAccount,
			tx.Session(&gorm.Session{NewDB: true}).Model(&models.SubAccount{}).Select("id").Where("budget_id = ?", budgetID)).
		Find(&groups).Error

	return groups, err
}

func remapParent(parent models.Parent, budgets, accounts, subAccounts mapping) (uuid.UUID, error) {
	var m mapping
	switch parent.ParentType {
	case models.ParentTypeBudget:
		m = budgets
	case models.ParentTypeAccount:
		m = accounts
	case models.ParentTypeSubAccount:
		m = subAccounts
	default:
		return uuid.Nil, models.ErrInvalidParentType
	}

	id, ok := m.lookup(parent.ParentID)
	if !ok {
		return uuid.Nil, models.ErrResourceNotFound
	}

	return id, nil
}

// copyJoinRows recreates a many to many table with both sides translated to
// the clone ids.
func copyJoinRows(tx *gorm.DB, table, leftColumn, rightColumn string, left, right mapping, leftSourceIDs []uuid.UUID) error {
	if len(leftSourceIDs) == 0 {
		return nil
	}

	type joinRow struct {
		LeftID  uuid.UUID
		RightID uuid.UUID
	}

	var rows []joinRow
	err := tx.Table(table).
		Select(leftColumn+" AS left_id", rightColumn+" AS right_id").
		Where(leftColumn+" IN ?", leftSourceIDs).
		Find(&rows).Error
	if err != nil {
		return err
	}

	for _, row := range rows {
		leftID, ok := left.lookup(row.LeftID)
		if !ok {
			log.Error().Str("table", table).Str("id", row.LeftID.String()).Msg("join row references an id outside the copied tree, skipping it")
			continue
		}
		rightID, ok := right.lookup(row.RightID)
		if !ok {
			log.Error().Str("table", table).Str("id", row.RightID.String()).Msg("join row references an id outside the copied tree, skipping it")
			continue
		}

		err := tx.Exec(
			"INSERT INTO "+table+" ("+leftColumn+", "+rightColumn+") VALUES (?, ?)",
			leftID, rightID,
		).Error
		if err != nil {
			return err
		}
	}

	return nil
}

func uuidKeys(m mapping) []uuid.UUID {
	keys := make([]uuid.UUID, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}

	return keys
}
