package models

import "time"

// Purchase is the entitlement record for a course. Its ID is derived from the
// student and course, so a student holds at most one per course.
type Purchase struct {
	ID          string    `gorm:"primaryKey;size:255" json:"id"`
	StudentID   string    `gorm:"size:128;not null;index" json:"student_id"`
	TeacherID   string    `gorm:"size:128;not null" json:"teacher_id"`
	CourseID    string    `gorm:"size:64;not null;index" json:"course_id"`
	Price       int64     `gorm:"not null" json:"price"`
	PurchasedAt time.Time `gorm:"not null" json:"purchased_at"`
}

func PurchaseID(studentID, courseID string) string {
	return studentID + "_" + courseID
}
