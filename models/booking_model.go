package models

import (
	"strconv"
	"time"
)

type BookingStatus string

const (
	BookingScheduled BookingStatus = "scheduled"
	BookingCompleted BookingStatus = "completed"
	BookingCancelled BookingStatus = "cancelled"
)

// Terminal reports whether no further transition is allowed out of s.
func (s BookingStatus) Terminal() bool {
	return s == BookingCompleted || s == BookingCancelled
}

type Booking struct {
	ID              string        `gorm:"primaryKey;size:255" json:"id"`
	StudentID       string        `gorm:"size:128;not null;index" json:"student_id"`
	TeacherID       string        `gorm:"size:128;not null;uniqueIndex:idx_bookings_teacher_slot,priority:1" json:"teacher_id"`
	StartTime       time.Time     `gorm:"not null;uniqueIndex:idx_bookings_teacher_slot,priority:2;index" json:"start_time"`
	EndTime         time.Time     `gorm:"not null" json:"end_time"`
	DurationMinutes int           `gorm:"not null" json:"duration_minutes"`
	TotalPrice      int64         `gorm:"not null" json:"total_price"`
	Status          BookingStatus `gorm:"size:20;not null;default:'scheduled';index" json:"status"`
	MeetingLink     string        `gorm:"size:512" json:"meeting_link"`

	ReminderSent   bool       `gorm:"not null;default:false" json:"reminder_sent"`
	ReminderSentAt *time.Time `json:"reminder_sent_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func BookingID(studentID, teacherID string, start time.Time) string {
	return studentID + "_" + teacherID + "_" + strconv.FormatInt(start.UnixMilli(), 10)
}

// Participant reports whether userID is the student or the teacher on b.
func (b *Booking) Participant(userID string) bool {
	return userID != "" && (b.StudentID == userID || b.TeacherID == userID)
}
