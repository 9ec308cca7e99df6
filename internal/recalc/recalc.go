// Package recalc drives the per-node calculation kernel bottom-up over a
// heterogeneous set of budget tree instances.
//
// A single bulk edit can touch instances at different tree levels across
// different budgets. Parents need the post-edit values of children that have
// not been persisted yet, so the traversal carries recalculated but unsaved
// children forward and persists everything in one batched write per level at
// the end.
package recalc

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/happybudget/backend/internal/cache"
	"github.com/happybudget/backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Routine selects which kernel method the traversal invokes per node.
type Routine string

const (
	RoutineEstimate  Routine = "estimate"
	RoutineActualize Routine = "actualize"
	RoutineCalculate Routine = "calculate"
)

// Tree is a set of budget tree instances needing recalculation. The same
// shape is returned as the set of instances whose derived fields changed.
type Tree struct {
	Budgets     []*models.Budget
	Accounts    []*models.Account
	SubAccounts []*models.SubAccount
}

// Empty reports whether the tree holds no instances.
func (t Tree) Empty() bool {
	return len(t.Budgets) == 0 && len(t.Accounts) == 0 && len(t.SubAccounts) == 0
}

// AddBudget adds a budget to the tree unless it is already present.
func (t *Tree) AddBudget(budget *models.Budget) {
	for _, b := range t.Budgets {
		if b.ID == budget.ID {
			return
		}
	}
	t.Budgets = append(t.Budgets, budget)
}

// AddAccount adds an account to the tree unless it is already present.
func (t *Tree) AddAccount(account *models.Account) {
	for _, a := range t.Accounts {
		if a.ID == account.ID {
			return
		}
	}
	t.Accounts = append(t.Accounts, account)
}

// AddSubAccount adds a subaccount to the tree unless it is already present.
func (t *Tree) AddSubAccount(subAccount *models.SubAccount) {
	for _, s := range t.SubAccounts {
		if s.ID == subAccount.ID {
			return
		}
	}
	t.SubAccounts = append(t.SubAccounts, subAccount)
}

// Options controls a traversal run.
type Options struct {
	// Commit persists the dirty tree in one batched write per level.
	Commit bool
	// Context carries the deletion sets the accumulators must ignore.
	Context models.CalculationContext
	// Invalidator, when set, is notified about the dirty instances after the
	// commit phase.
	Invalidator cache.Invalidator
}

// EstimateAll recalculates the estimated fields for the instances and all
// affected ancestors.
func EstimateAll(db *gorm.DB, tree Tree, opts Options) (Tree, error) {
	return Run(db, tree, RoutineEstimate, opts)
}

// ActualizeAll recalculates the actuals for the instances and all affected
// ancestors.
func ActualizeAll(db *gorm.DB, tree Tree, opts Options) (Tree, error) {
	return Run(db, tree, RoutineActualize, opts)
}

// CalculateAll runs estimation and actualization for the instances and all
// affected ancestors.
func CalculateAll(db *gorm.DB, tree Tree, opts Options) (Tree, error) {
	return Run(db, tree, RoutineCalculate, opts)
}

// Run performs one bottom-up pass over the input tree.
//
// SubAccounts are processed grouped by nested level, deepest first, so that
// every invocation of the kernel sees fully recalculated descendants. Dirty
// subaccounts pull their parents into the filtration: a subaccount parent is
// processed in the next level iteration, an account parent enters the account
// phase. Dirty accounts pull in their budgets the same way.
func Run(db *gorm.DB, tree Tree, routine Routine, opts Options) (Tree, error) {
	var dirty Tree

	levels, maxLevel := groupByLevel(tree.SubAccounts)

	accounts := map[uuid.UUID]*models.Account{}
	for _, account := range tree.Accounts {
		accounts[account.ID] = account
	}

	budgets := map[uuid.UUID]*models.Budget{}
	for _, budget := range tree.Budgets {
		budgets[budget.ID] = budget
	}

	// Recalculated but not yet persisted children, keyed by parent id.
	unsaved := map[uuid.UUID][]models.SubAccount{}

	for level := maxLevel; level >= 0; level-- {
		next := map[uuid.UUID][]models.SubAccount{}

		for _, subAccount := range levels[level] {
			children, err := subAccount.Children(db)
			if err != nil {
				return Tree{}, err
			}
			children = overlay(children, unsaved[subAccount.ID])

			changed, err := runSubAccount(db, subAccount, children, routine, opts.Context)
			if err != nil {
				return Tree{}, err
			}
			if !changed {
				continue
			}

			dirty.AddSubAccount(subAccount)
			next[subAccount.ParentID] = append(next[subAccount.ParentID], *subAccount)

			switch subAccount.ParentType {
			case models.ParentTypeSubAccount:
				if err := pullSubAccountParent(db, levels, level-1, subAccount.ParentID); err != nil {
					return Tree{}, err
				}
			case models.ParentTypeAccount:
				if err := pullAccountParent(db, accounts, subAccount.ParentID); err != nil {
					return Tree{}, err
				}
			}
		}

		unsaved = next
	}

	// Account phase. All subaccount levels are exhausted, every dirty
	// subaccount below an account is in the unsaved mapping.
	dirtyAccounts := map[uuid.UUID][]models.Account{}
	for _, account := range accounts {
		children, err := account.SubAccounts(db)
		if err != nil {
			return Tree{}, err
		}
		children = overlay(children, unsaved[account.ID])

		changed, err := runAccount(db, account, children, routine, opts.Context)
		if err != nil {
			return Tree{}, err
		}
		if !changed {
			continue
		}

		dirty.AddAccount(account)
		dirtyAccounts[account.BudgetID] = append(dirtyAccounts[account.BudgetID], *account)

		if err := pullBudget(db, budgets, account.BudgetID); err != nil {
			return Tree{}, err
		}
	}

	// Budget phase.
	for _, budget := range budgets {
		children, err := budget.Accounts(db)
		if err != nil {
			return Tree{}, err
		}
		children = overlayAccounts(children, dirtyAccounts[budget.ID])

		changed, err := runBudget(db, budget, children, routine, opts.Context)
		if err != nil {
			return Tree{}, err
		}
		if !changed {
			continue
		}

		dirty.AddBudget(budget)
	}

	if opts.Commit {
		if err := Commit(db, dirty, routine); err != nil {
			return Tree{}, err
		}

		if opts.Invalidator != nil {
			Invalidate(opts.Invalidator, dirty)
		}
	}

	return dirty, nil
}

// Commit persists the dirty tree, restricted to the columns the routine
// touches, in one batched statement per tree level.
func Commit(db *gorm.DB, dirty Tree, routine Routine) error {
	if len(dirty.SubAccounts) > 0 {
		rows := make([]models.SubAccount, 0, len(dirty.SubAccounts))
		for _, s := range dirty.SubAccounts {
			rows = append(rows, *s)
		}

		err := upsert(db, &rows, columnsFor(routine, models.SubAccount{}.EstimatedFields(), models.SubAccount{}.CalculatedFields()))
		if err != nil {
			return err
		}
	}

	if len(dirty.Accounts) > 0 {
		rows := make([]models.Account, 0, len(dirty.Accounts))
		for _, a := range dirty.Accounts {
			rows = append(rows, *a)
		}

		err := upsert(db, &rows, columnsFor(routine, models.Account{}.EstimatedFields(), models.Account{}.CalculatedFields()))
		if err != nil {
			return err
		}
	}

	if len(dirty.Budgets) > 0 {
		rows := make([]models.Budget, 0, len(dirty.Budgets))
		for _, b := range dirty.Budgets {
			rows = append(rows, *b)
		}

		err := upsert(db, &rows, columnsFor(routine, models.Budget{}.EstimatedFields(), models.Budget{}.CalculatedFields()))
		if err != nil {
			return err
		}
	}

	return nil
}

// Invalidate notifies the sink about every instance in the dirty tree.
func Invalidate(invalidator cache.Invalidator, dirty Tree) {
	if len(dirty.Budgets) > 0 {
		ids := make([]uuid.UUID, 0, len(dirty.Budgets))
		for _, b := range dirty.Budgets {
			ids = append(ids, b.ID)
		}
		invalidator.Invalidate("budget", ids)
	}

	if len(dirty.Accounts) > 0 {
		ids := make([]uuid.UUID, 0, len(dirty.Accounts))
		for _, a := range dirty.Accounts {
			ids = append(ids, a.ID)
		}
		invalidator.Invalidate("account", ids)
	}

	if len(dirty.SubAccounts) > 0 {
		ids := make([]uuid.UUID, 0, len(dirty.SubAccounts))
		for _, s := range dirty.SubAccounts {
			ids = append(ids, s.ID)
		}
		invalidator.Invalidate("subaccount", ids)
	}
}

// upsert writes full rows in one statement, updating only the given columns
// on conflict.
func upsert[T any](db *gorm.DB, rows *[]T, columns []string) error {
	return db.
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns(columns),
		}).
		Create(rows).Error
}

func columnsFor(routine Routine, estimated, calculated []string) []string {
	switch routine {
	case RoutineEstimate:
		return estimated
	case RoutineActualize:
		return []string{"actual"}
	default:
		return calculated
	}
}

func runSubAccount(db *gorm.DB, s *models.SubAccount, children []models.SubAccount, routine Routine, ctx models.CalculationContext) (bool, error) {
	switch routine {
	case RoutineEstimate:
		return s.Estimate(db, children, ctx)
	case RoutineActualize:
		return s.Actualize(db, children, ctx)
	case RoutineCalculate:
		return s.Calculate(db, children, ctx)
	}

	return false, fmt.Errorf("unknown recalculation routine %q", routine)
}

func runAccount(db *gorm.DB, a *models.Account, children []models.SubAccount, routine Routine, ctx models.CalculationContext) (bool, error) {
	switch routine {
	case RoutineEstimate:
		return a.Estimate(db, children, ctx)
	case RoutineActualize:
		return a.Actualize(db, children, ctx)
	case RoutineCalculate:
		return a.Calculate(db, children, ctx)
	}

	return false, fmt.Errorf("unknown recalculation routine %q", routine)
}

func runBudget(db *gorm.DB, b *models.Budget, children []models.Account, routine Routine, ctx models.CalculationContext) (bool, error) {
	switch routine {
	case RoutineEstimate:
		return b.Estimate(db, children, ctx)
	case RoutineActualize:
		return b.Actualize(db, children, ctx)
	case RoutineCalculate:
		return b.Calculate(db, children, ctx)
	}

	return false, fmt.Errorf("unknown recalculation routine %q", routine)
}

// groupByLevel indexes the subaccounts by nested level and returns the
// deepest level present.
func groupByLevel(subAccounts []*models.SubAccount) (map[int]map[uuid.UUID]*models.SubAccount, int) {
	levels := map[int]map[uuid.UUID]*models.SubAccount{}
	maxLevel := -1

	for _, subAccount := range subAccounts {
		level := subAccount.NestedLevel
		if levels[level] == nil {
			levels[level] = map[uuid.UUID]*models.SubAccount{}
		}
		levels[level][subAccount.ID] = subAccount

		if level > maxLevel {
			maxLevel = level
		}
	}

	return levels, maxLevel
}

// pullSubAccountParent adds the parent subaccount to the given level of the
// filtration unless it is already scheduled.
func pullSubAccountParent(db *gorm.DB, levels map[int]map[uuid.UUID]*models.SubAccount, level int, parentID uuid.UUID) error {
	if level < 0 {
		return fmt.Errorf("subaccount parent %s would sit below nesting level 0", parentID)
	}

	if levels[level] == nil {
		levels[level] = map[uuid.UUID]*models.SubAccount{}
	}
	if _, ok := levels[level][parentID]; ok {
		return nil
	}

	var parent models.SubAccount
	if err := db.First(&parent, "id = ?", parentID).Error; err != nil {
		return err
	}

	levels[level][parentID] = &parent
	return nil
}

// pullAccountParent adds the parent account to the filtration unless it is
// already scheduled.
func pullAccountParent(db *gorm.DB, accounts map[uuid.UUID]*models.Account, parentID uuid.UUID) error {
	if _, ok := accounts[parentID]; ok {
		return nil
	}

	var parent models.Account
	if err := db.First(&parent, "id = ?", parentID).Error; err != nil {
		return err
	}

	accounts[parentID] = &parent
	return nil
}

// pullBudget adds the budget to the filtration unless it is already
// scheduled.
func pullBudget(db *gorm.DB, budgets map[uuid.UUID]*models.Budget, budgetID uuid.UUID) error {
	if _, ok := budgets[budgetID]; ok {
		return nil
	}

	var budget models.Budget
	if err := db.First(&budget, "id = ?", budgetID).Error; err != nil {
		return err
	}

	budgets[budgetID] = &budget
	return nil
}

// overlay replaces persisted child rows with their recalculated, not yet
// persisted counterparts.
func overlay(children []models.SubAccount, unsaved []models.SubAccount) []models.SubAccount {
	for _, pending := range unsaved {
		replaced := false
		for i := range children {
			if children[i].ID == pending.ID {
				children[i] = pending
				replaced = true
				break
			}
		}

		if !replaced {
			children = append(children, pending)
		}
	}

	return children
}

// overlayAccounts is overlay for the budget phase.
func overlayAccounts(children []models.Account, unsaved []models.Account) []models.Account {
	for _, pending := range unsaved {
		replaced := false
		for i := range children {
			if children[i].ID == pending.ID {
				children[i] = pending
				replaced = true
				break
			}
		}

		if !replaced {
			children = append(children, pending)
		}
	}

	return children
}
