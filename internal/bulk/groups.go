package bulk

import (
	"github.com/google/uuid"
	"github.com/happybudget/backend/internal/models"
	"gorm.io/gorm"
)

// AddGroups creates the groups under the parent in one transaction and
// assigns the named members to them. Groups are presentational, no
// recalculation runs.
func (s Service) AddGroups(parent models.Parent, userID uuid.UUID, payloads []GroupPayload) ([]models.Group, error) {
	created := make([]models.Group, 0, len(payloads))
	var budgetID uuid.UUID

	err := s.db.Transaction(func(tx *gorm.DB) error {
		budget, err := parent.Budget(tx)
		if err != nil {
			return err
		}
		budgetID = budget.ID

		for _, payload := range payloads {
			group := models.Group{
				Parent: parent,
				Name:   payload.Name,
				Color:  payload.Color,
			}
			if err := tx.Create(&group).Error; err != nil {
				return err
			}

			if err := assignGroupMembers(tx, &group, payload.MemberIDs); err != nil {
				return err
			}

			created = append(created, group)
		}

		return touchBudget(tx, budget.ID, userID)
	})
	if err != nil {
		return nil, err
	}

	s.invalidator.Invalidate("group", uuids(created, func(g models.Group) uuid.UUID { return g.ID }))
	s.invalidator.Invalidate("budget", []uuid.UUID{budgetID})

	return created, nil
}

// UpdateGroups applies the changes to the groups in one transaction. A
// non-nil member id slice replaces the membership, and a group left without
// members is garbage collected.
func (s Service) UpdateGroups(parent models.Parent, userID uuid.UUID, changes []GroupChange) ([]models.Group, error) {
	updated := make([]models.Group, 0, len(changes))
	var budgetID uuid.UUID

	err := s.db.Transaction(func(tx *gorm.DB) error {
		budget, err := parent.Budget(tx)
		if err != nil {
			return err
		}
		budgetID = budget.ID

		var resized []uuid.UUID

		for _, change := range changes {
			var group models.Group
			err := tx.First(&group,
				"id = ? AND parent_type = ? AND parent_id = ?",
				change.ID, parent.ParentType, parent.ParentID,
			).Error
			if err != nil {
				return err
			}

			if change.Name != nil {
				group.Name = *change.Name
			}
			if change.Color != nil {
				group.Color = *change.Color
			}

			err = tx.Model(&group).Select("Name", "Color").Updates(&group).Error
			if err != nil {
				return err
			}

			if change.MemberIDs != nil {
				if err := clearGroupMembers(tx, group.ID); err != nil {
					return err
				}
				if err := assignGroupMembers(tx, &group, *change.MemberIDs); err != nil {
					return err
				}
				resized = append(resized, group.ID)
			}

			updated = append(updated, group)
		}

		if err := gcGroups(tx, resized); err != nil {
			return err
		}

		return touchBudget(tx, budget.ID, userID)
	})
	if err != nil {
		return nil, err
	}

	s.invalidator.Invalidate("group", uuids(updated, func(g models.Group) uuid.UUID { return g.ID }))
	s.invalidator.Invalidate("budget", []uuid.UUID{budgetID})

	return updated, nil
}

// DeleteGroups removes the groups in one transaction. Members keep existing,
// they just lose their label.
func (s Service) DeleteGroups(parent models.Parent, userID uuid.UUID, ids []uuid.UUID) error {
	var budgetID uuid.UUID

	err := s.db.Transaction(func(tx *gorm.DB) error {
		budget, err := parent.Budget(tx)
		if err != nil {
			return err
		}
		budgetID = budget.ID

		var groups []models.Group
		err = tx.Where("id IN ? AND parent_type = ? AND parent_id = ?",
			ids, parent.ParentType, parent.ParentID,
		).Find(&groups).Error
		if err != nil {
			return err
		}
		if len(groups) != len(ids) {
			return models.ErrResourceNotFound
		}

		for _, id := range ids {
			if err := clearGroupMembers(tx, id); err != nil {
				return err
			}
		}

		if err := tx.Where("id IN ?", ids).Delete(&models.Group{}).Error; err != nil {
			return err
		}

		return touchBudget(tx, budget.ID, userID)
	})
	if err != nil {
		return err
	}

	s.invalidator.Invalidate("group", ids)
	s.invalidator.Invalidate("budget", []uuid.UUID{budgetID})

	return nil
}

// assignGroupMembers points the named siblings at the group. A budget group
// labels accounts, an account or subaccount group labels subaccounts.
func assignGroupMembers(tx *gorm.DB, group *models.Group, memberIDs []uuid.UUID) error {
	if len(memberIDs) == 0 {
		return nil
	}

	if group.ParentType == models.ParentTypeBudget {
		var count int64
		err := tx.Model(&models.Account{}).
			Where("id IN ? AND budget_id = ?", memberIDs, group.ParentID).
			Count(&count).Error
		if err != nil {
			return err
		}
		if count != int64(len(memberIDs)) {
			return models.ErrGroupMemberNotSibling
		}

		return tx.Model(&models.Account{}).
			Where("id IN ?", memberIDs).
			Update("group_id", group.ID).Error
	}

	var count int64
	err := tx.Model(&models.SubAccount{}).
		Where("id IN ? AND parent_type = ? AND parent_id = ?", memberIDs, group.ParentType, group.ParentID).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count != int64(len(memberIDs)) {
		return models.ErrGroupMemberNotSibling
	}

	return tx.Model(&models.SubAccount{}).
		Where("id IN ?", memberIDs).
		Update("group_id", group.ID).Error
}

// clearGroupMembers detaches every member from the group.
func clearGroupMembers(tx *gorm.DB, groupID uuid.UUID) error {
	err := tx.Model(&models.Account{}).
		Where("group_id = ?", groupID).
		Update("group_id", nil).Error
	if err != nil {
		return err
	}

	return tx.Model(&models.SubAccount{}).
		Where("group_id = ?", groupID).
		Update("group_id", nil).Error
}
