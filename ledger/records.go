package ledger

import (
	"sort"

	"github.com/anjiri1684/skillcoin/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// lockUsers reads the given users with row locks, always in ascending id
// order so two transactions touching the same pair cannot deadlock.
func lockUsers(tx *gorm.DB, ids ...string) (map[string]*models.User, error) {
	uniq := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		uniq = append(uniq, id)
	}
	sort.Strings(uniq)

	var users []models.User
	if len(uniq) > 0 {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id IN ?", uniq).
			Order("id").
			Find(&users).Error; err != nil {
			return nil, err
		}
	}
	out := make(map[string]*models.User, len(users))
	for i := range users {
		out[users[i].ID] = &users[i]
	}
	return out, nil
}

func requireUser(users map[string]*models.User, id, op, label string) (*models.User, error) {
	u, ok := users[id]
	if !ok {
		return nil, newErrorf(KindNotFound, op, "%s not found.", label)
	}
	return u, nil
}

// updateUser writes updates only if the row still carries the version that
// was read, then bumps the version.
func updateUser(tx *gorm.DB, u *models.User, updates map[string]any) error {
	updates["version"] = u.Version + 1
	res := tx.Model(&models.User{}).
		Where("id = ? AND version = ?", u.ID, u.Version).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrConflict
	}
	u.Version++
	return nil
}

func updateCourse(tx *gorm.DB, c *models.Course, updates map[string]any) error {
	updates["version"] = c.Version + 1
	res := tx.Model(&models.Course{}).
		Where("id = ? AND version = ?", c.ID, c.Version).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrConflict
	}
	c.Version++
	return nil
}

// findLocked loads the record with the given id into dest. found is false
// when no such record exists.
func findLocked(tx *gorm.DB, dest any, id string) (found bool, err error) {
	res := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).Limit(1).Find(dest)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func exists(tx *gorm.DB, model any, query string, args ...any) (bool, error) {
	var n int64
	if err := tx.Model(model).Where(query, args...).Limit(1).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}
