package ledger

import (
	"context"
	"strings"

	"github.com/anjiri1684/skillcoin/models"
	"gorm.io/gorm"
)

type PurchaseResult struct {
	PurchaseID string `json:"purchaseId"`
	CourseID   string `json:"courseId"`
	Price      int64  `json:"price"`
	Coins      int64  `json:"coins"`
}

// BuyCourse debits the student, credits the course's teacher and records the
// purchase. Buying the same course twice is rejected with already-exists.
func (c *Core) BuyCourse(ctx context.Context, studentID, courseID string) (*PurchaseResult, error) {
	const op = "ledger.buyCourse"
	studentID, err := requireCaller(op, studentID)
	if err != nil {
		return nil, err
	}
	courseID = strings.TrimSpace(courseID)
	if courseID == "" {
		return nil, newError(KindInvalidArgument, op, "courseId is required.")
	}

	var (
		result  *PurchaseResult
		teacher balance
	)
	err = c.inTx(ctx, op, func(tx *gorm.DB) error {
		var course models.Course
		found, err := findLocked(tx, &course, courseID)
		if err != nil {
			return err
		}
		if !found {
			return newError(KindNotFound, op, "Course not found.")
		}
		if course.TeacherID == studentID {
			return newError(KindInvalidArgument, op, "You cannot purchase your own course.")
		}

		purchaseID := models.PurchaseID(studentID, courseID)
		owned, err := exists(tx, &models.Purchase{}, "id = ?", purchaseID)
		if err != nil {
			return err
		}
		if owned {
			return newError(KindAlreadyExists, op, "You have already purchased this course.")
		}

		users, err := lockUsers(tx, studentID, course.TeacherID)
		if err != nil {
			return err
		}
		student, err := requireUser(users, studentID, op, "Student")
		if err != nil {
			return err
		}
		teach, err := requireUser(users, course.TeacherID, op, "Teacher")
		if err != nil {
			return err
		}
		if student.Coins < course.Price {
			return newError(KindFailedPrecondition, op, "Insufficient coins to purchase this course.")
		}

		if err := applyTransfer(tx, op, transfer{
			From:         student,
			To:           teach,
			Amount:       course.Price,
			Reason:       models.ReasonCoursePurchase,
			Reference:    purchaseID,
			Insufficient: "Insufficient coins to purchase this course.",
		}); err != nil {
			return err
		}

		if err := tx.Create(&models.Purchase{
			ID:          purchaseID,
			StudentID:   studentID,
			TeacherID:   course.TeacherID,
			CourseID:    courseID,
			Price:       course.Price,
			PurchasedAt: c.now(),
		}).Error; err != nil {
			return err
		}

		result = &PurchaseResult{PurchaseID: purchaseID, CourseID: courseID, Price: course.Price, Coins: student.Coins}
		teacher = balance{UserID: teach.ID, Coins: teach.Coins}
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.log.Info("course purchased", "purchase_id", result.PurchaseID, "price", result.Price)
	c.notifyCoins(balance{UserID: studentID, Coins: result.Coins}, teacher)
	return result, nil
}
