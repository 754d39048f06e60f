package models

import "time"

// Follow exists while StudentID follows TeacherID.
type Follow struct {
	ID        string    `gorm:"primaryKey;size:255" json:"id"`
	StudentID string    `gorm:"size:128;not null;index" json:"student_id"`
	TeacherID string    `gorm:"size:128;not null;index" json:"teacher_id"`
	CreatedAt time.Time `json:"created_at"`
}

func FollowID(studentID, teacherID string) string {
	return studentID + "_" + teacherID
}
