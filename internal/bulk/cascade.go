package bulk

import (
	"errors"

	"github.com/google/uuid"
	"github.com/happybudget/backend/internal/models"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// collectSubtree walks the subaccount tree below the given roots and returns
// every subaccount id in it, the roots included.
func collectSubtree(tx *gorm.DB, rootIDs []uuid.UUID) ([]uuid.UUID, error) {
	all := append([]uuid.UUID{}, rootIDs...)
	frontier := rootIDs

	for len(frontier) > 0 {
		var children []uuid.UUID
		err := tx.Model(&models.SubAccount{}).
			Where("parent_type = ? AND parent_id IN ?", models.ParentTypeSubAccount, frontier).
			Pluck("id", &children).Error
		if err != nil {
			return nil, err
		}

		all = append(all, children...)
		frontier = children
	}

	return all, nil
}

// deleteSubAccountRows removes subaccount rows and every relational overlay
// hanging off of them: actuals, attached markups (with their actuals),
// groups, fringe assignments and markup memberships.
func deleteSubAccountRows(tx *gorm.DB, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}

	err := tx.Where("owner_type = ? AND owner_id IN ?", models.OwnerTypeSubAccount, ids).
		Delete(&models.Actual{}).Error
	if err != nil {
		return err
	}

	err = deleteMarkupsForParent(tx, models.ParentTypeSubAccount, ids)
	if err != nil {
		return err
	}

	err = tx.Where("parent_type = ? AND parent_id IN ?", models.ParentTypeSubAccount, ids).
		Delete(&models.Group{}).Error
	if err != nil {
		return err
	}

	err = tx.Exec("DELETE FROM subaccount_fringes WHERE sub_account_id IN ?", ids).Error
	if err != nil {
		return err
	}

	err = tx.Exec("DELETE FROM markup_sub_accounts WHERE sub_account_id IN ?", ids).Error
	if err != nil {
		return err
	}

	return tx.Where("id IN ?", ids).Delete(&models.SubAccount{}).Error
}

// deleteAccountRows removes account rows, their subaccount subtrees and all
// relational overlays.
func deleteAccountRows(tx *gorm.DB, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}

	var subIDs []uuid.UUID
	err := tx.Model(&models.SubAccount{}).
		Where("parent_type = ? AND parent_id IN ?", models.ParentTypeAccount, ids).
		Pluck("id", &subIDs).Error
	if err != nil {
		return err
	}

	subtree, err := collectSubtree(tx, subIDs)
	if err != nil {
		return err
	}

	err = deleteSubAccountRows(tx, subtree)
	if err != nil {
		return err
	}

	err = deleteMarkupsForParent(tx, models.ParentTypeAccount, ids)
	if err != nil {
		return err
	}

	err = tx.Where("parent_type = ? AND parent_id IN ?", models.ParentTypeAccount, ids).
		Delete(&models.Group{}).Error
	if err != nil {
		return err
	}

	err = tx.Exec("DELETE FROM markup_accounts WHERE account_id IN ?", ids).Error
	if err != nil {
		return err
	}

	return tx.Where("id IN ?", ids).Delete(&models.Account{}).Error
}

// deleteMarkupsForParent removes the markups attached to the given parents,
// together with their actuals and membership rows.
func deleteMarkupsForParent(tx *gorm.DB, parentType models.ParentType, parentIDs []uuid.UUID) error {
	var markupIDs []uuid.UUID
	err := tx.Model(&models.Markup{}).
		Where("parent_type = ? AND parent_id IN ?", parentType, parentIDs).
		Pluck("id", &markupIDs).Error
	if err != nil {
		return err
	}

	return deleteMarkupRows(tx, markupIDs)
}

// deleteMarkupRows removes markup rows, their actuals and membership rows.
func deleteMarkupRows(tx *gorm.DB, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}

	err := tx.Where("owner_type = ? AND owner_id IN ?", models.OwnerTypeMarkup, ids).
		Delete(&models.Actual{}).Error
	if err != nil {
		return err
	}

	err = tx.Exec("DELETE FROM markup_accounts WHERE markup_id IN ?", ids).Error
	if err != nil {
		return err
	}

	err = tx.Exec("DELETE FROM markup_sub_accounts WHERE markup_id IN ?", ids).Error
	if err != nil {
		return err
	}

	return tx.Where("id IN ?", ids).Delete(&models.Markup{}).Error
}

// gcGroups deletes the given groups when they no longer have members. A
// group that is already gone was deleted by a parallel operation; that race
// is tolerated.
func gcGroups(tx *gorm.DB, groupIDs []uuid.UUID) error {
	for _, id := range groupIDs {
		var group models.Group
		err := tx.First(&group, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, models.ErrResourceNotFound) {
			log.Info().Str("group", id.String()).Msg("group was already deleted")
			continue
		}
		if err != nil {
			return err
		}

		count, err := group.MemberCount(tx)
		if err != nil {
			return err
		}

		if count == 0 {
			if err := tx.Delete(&group).Error; err != nil {
				return err
			}
		}
	}

	return nil
}

// markupsEmptiedBy returns the percent markups whose entire child set lies
// inside the deletion set. The recalculation that runs before the rows
// disappear must already exclude them, or their contribution and actual
// would be committed to the ancestors one last time.
func markupsEmptiedBy(tx *gorm.DB, table, column string, markupIDs, deleted []uuid.UUID) ([]uuid.UUID, error) {
	var emptied []uuid.UUID

	for _, id := range markupIDs {
		var markup models.Markup
		err := tx.First(&markup, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}

		if markup.Unit != models.UnitPercent {
			continue
		}

		count, err := markup.ChildCount(tx)
		if err != nil {
			return nil, err
		}

		var doomed int64
		err = tx.Table(table).
			Where("markup_id = ?", id).
			Where(column+" IN ?", deleted).
			Count(&doomed).Error
		if err != nil {
			return nil, err
		}

		if count == doomed {
			emptied = append(emptied, id)
		}
	}

	return emptied, nil
}

// gcEmptyPercentMarkups deletes percent markups that lost their last child.
// A percent markup without children cannot persist.
func gcEmptyPercentMarkups(tx *gorm.DB, markupIDs []uuid.UUID) ([]uuid.UUID, error) {
	var removed []uuid.UUID

	for _, id := range markupIDs {
		var markup models.Markup
		err := tx.First(&markup, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, models.ErrResourceNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}

		if markup.Unit != models.UnitPercent {
			continue
		}

		count, err := markup.ChildCount(tx)
		if err != nil {
			return nil, err
		}

		if count == 0 {
			log.Info().Str("markup", id.String()).Msg("removing percent markup without children")
			if err := deleteMarkupRows(tx, []uuid.UUID{id}); err != nil {
				return nil, err
			}
			removed = append(removed, id)
		}
	}

	return removed, nil
}
