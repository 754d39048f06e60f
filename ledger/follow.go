package ledger

import (
	"context"
	"strings"

	"github.com/anjiri1684/skillcoin/models"
	"gorm.io/gorm"
)

type FollowResult struct {
	IsFollowing bool `json:"isFollowing"`
	// Changed is false when the relationship already matched the request.
	Changed bool `json:"changed"`
}

// ToggleFollowTeacher sets whether studentID follows teacherID. Repeating a
// request is a no-op, so counters move at most once per real change.
func (c *Core) ToggleFollowTeacher(ctx context.Context, studentID, teacherID string, follow bool) (*FollowResult, error) {
	const op = "ledger.toggleFollowTeacher"
	studentID, err := requireCaller(op, studentID)
	if err != nil {
		return nil, err
	}
	teacherID = strings.TrimSpace(teacherID)
	if teacherID == "" {
		return nil, newError(KindInvalidArgument, op, "teacherId is required.")
	}
	if studentID == teacherID {
		return nil, newError(KindInvalidArgument, op, "You cannot follow yourself.")
	}

	var changed bool
	err = c.inTx(ctx, op, func(tx *gorm.DB) error {
		changed = false
		users, err := lockUsers(tx, studentID, teacherID)
		if err != nil {
			return err
		}
		teacher, err := requireUser(users, teacherID, op, "Teacher")
		if err != nil {
			return err
		}
		student, err := requireUser(users, studentID, op, "Student")
		if err != nil {
			return err
		}

		followID := models.FollowID(studentID, teacherID)
		var existing models.Follow
		found, err := findLocked(tx, &existing, followID)
		if err != nil {
			return err
		}

		switch {
		case follow && !found:
			if err := tx.Create(&models.Follow{ID: followID, StudentID: studentID, TeacherID: teacherID}).Error; err != nil {
				return err
			}
			if err := updateUser(tx, teacher, map[string]any{"followers": teacher.Followers + 1}); err != nil {
				return err
			}
			if err := updateUser(tx, student, map[string]any{"following": student.Following + 1}); err != nil {
				return err
			}
			changed = true
		case !follow && found:
			if err := tx.Delete(&models.Follow{}, "id = ?", followID).Error; err != nil {
				return err
			}
			if err := updateUser(tx, teacher, map[string]any{"followers": decrement(teacher.Followers)}); err != nil {
				return err
			}
			if err := updateUser(tx, student, map[string]any{"following": decrement(student.Following)}); err != nil {
				return err
			}
			changed = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed && follow {
		c.opts.Notifier.Notify(teacherID, Event{Type: EventNewFollower, Data: map[string]string{"student_id": studentID}})
	}
	return &FollowResult{IsFollowing: follow, Changed: changed}, nil
}

func decrement(n int64) int64 {
	if n <= 0 {
		return 0
	}
	return n - 1
}
