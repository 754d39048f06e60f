package ledger

import (
	"context"
	"strings"

	"github.com/anjiri1684/skillcoin/models"
	"gorm.io/gorm"
)

type ReviewInput struct {
	TeacherID string
	CourseID  string
	Rating    int
	Comment   string
}

type ReviewResult struct {
	ReviewID       string  `json:"reviewId"`
	Rating         int     `json:"rating"`
	TeacherRating  float64 `json:"teacherRating"`
	TeacherReviews int64   `json:"teacherReviews"`
}

// RunningAverage folds one more rating into an average over n ratings.
func RunningAverage(avg float64, n int64, rating int) float64 {
	if n < 0 {
		n = 0
	}
	return (avg*float64(n) + float64(rating)) / float64(n+1)
}

// CreateReview stores a review and folds it into the teacher's (and the
// course's) running rating in the same transaction. The student must own the
// course or have completed a session with the teacher.
func (c *Core) CreateReview(ctx context.Context, studentID string, in ReviewInput) (*ReviewResult, error) {
	const op = "ledger.createReview"
	studentID, err := requireCaller(op, studentID)
	if err != nil {
		return nil, err
	}
	teacherID := strings.TrimSpace(in.TeacherID)
	courseID := strings.TrimSpace(in.CourseID)
	if teacherID == "" {
		return nil, newError(KindInvalidArgument, op, "teacherId is required.")
	}
	if teacherID == studentID {
		return nil, newError(KindInvalidArgument, op, "You cannot review yourself.")
	}
	rating := models.ClampRating(in.Rating)

	var result *ReviewResult
	err = c.inTx(ctx, op, func(tx *gorm.DB) error {
		var (
			course      models.Course
			courseFound bool
			err         error
		)
		// Course before users, the same order BuyCourse takes its locks in.
		if courseID != "" {
			courseFound, err = findLocked(tx, &course, courseID)
			if err != nil {
				return err
			}
			if courseFound && course.TeacherID != teacherID {
				return newError(KindInvalidArgument, op, "This course is not taught by that teacher.")
			}
		}

		users, err := lockUsers(tx, teacherID)
		if err != nil {
			return err
		}
		teacher, err := requireUser(users, teacherID, op, "Teacher")
		if err != nil {
			return err
		}

		interacted := false
		if courseID != "" {
			if interacted, err = exists(tx, &models.Purchase{}, "id = ?", models.PurchaseID(studentID, courseID)); err != nil {
				return err
			}
		}
		if !interacted {
			interacted, err = exists(tx, &models.Booking{},
				"student_id = ? AND teacher_id = ? AND status = ?", studentID, teacherID, models.BookingCompleted)
			if err != nil {
				return err
			}
		}
		if !interacted {
			return newError(KindFailedPrecondition, op, "You can only review teachers you have interacted with.")
		}

		review := models.Review{
			TeacherID: teacherID,
			StudentID: studentID,
			Rating:    rating,
			Comment:   strings.TrimSpace(in.Comment),
		}
		if courseID != "" {
			review.CourseID = &courseID
		}
		if err := tx.Create(&review).Error; err != nil {
			return err
		}

		newRating := RunningAverage(teacher.Rating, teacher.Reviews, rating)
		if err := updateUser(tx, teacher, map[string]any{
			"rating":  newRating,
			"reviews": teacher.Reviews + 1,
		}); err != nil {
			return err
		}

		if courseFound {
			if err := updateCourse(tx, &course, map[string]any{
				"rating":  RunningAverage(course.Rating, course.Reviews, rating),
				"reviews": course.Reviews + 1,
			}); err != nil {
				return err
			}
		}

		result = &ReviewResult{
			ReviewID:       review.ID,
			Rating:         rating,
			TeacherRating:  newRating,
			TeacherReviews: teacher.Reviews + 1,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.opts.Notifier.Notify(teacherID, Event{Type: EventReviewCreated, Data: result})
	return result, nil
}
