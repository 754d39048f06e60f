package models

import (
	"strings"
	"time"

	"gorm.io/datatypes"
)

type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
)

// MaxPricePerHour caps what a teacher may charge.
const MaxPricePerHour = 1_000_000

type User struct {
	ID           string                      `gorm:"primaryKey;size:128" json:"id"`
	DisplayName  string                      `gorm:"size:255;not null" json:"display_name"`
	Email        string                      `gorm:"size:255;not null;unique" json:"email"`
	PasswordHash string                      `gorm:"not null" json:"-"`
	Bio          string                      `gorm:"type:text" json:"bio"`
	Skills       datatypes.JSONSlice[string] `json:"skills"`
	CourseIDs    datatypes.JSONSlice[string] `gorm:"column:course_ids" json:"courses"`

	Following int64   `gorm:"not null;default:0" json:"following"`
	Followers int64   `gorm:"not null;default:0" json:"followers"`
	Reviews   int64   `gorm:"not null;default:0" json:"reviews"`
	Coins     int64   `gorm:"not null;default:0" json:"coins"`
	Rating    float64 `gorm:"not null;default:0" json:"rating"`

	Role         Role   `gorm:"size:20;not null;default:'student'" json:"role"`
	PricePerHour *int64 `json:"price_per_hour,omitempty"`

	// Version is bumped on every ledger write and used as a compare-and-set guard.
	Version int64 `gorm:"not null;default:0" json:"-"`

	LastSeen  *time.Time `json:"last_seen,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (u *User) IsTeacher() bool { return u.Role == RoleTeacher }

// HasSkill reports whether skill is already on the profile (case-insensitive).
func (u *User) HasSkill(skill string) bool {
	for _, s := range u.Skills {
		if equalFold(s, skill) {
			return true
		}
	}
	return false
}

func equalFold(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
