package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Course struct {
	ID          string                      `gorm:"primaryKey;size:64" json:"id"`
	Title       string                      `gorm:"size:255;not null;index" json:"title"`
	Description string                      `gorm:"type:text" json:"description"`
	TeacherID   string                      `gorm:"size:128;not null;index" json:"teacher_id"`
	Price       int64                       `gorm:"not null;default:0" json:"price"`
	SkillTags   datatypes.JSONSlice[string] `json:"skill_tags"`
	VideoURL    *string                     `gorm:"size:512" json:"video_url,omitempty"`
	VideoPath   *string                     `gorm:"size:512" json:"-"`

	Rating  float64 `gorm:"not null;default:0" json:"rating"`
	Reviews int64   `gorm:"not null;default:0" json:"reviews"`
	Version int64   `gorm:"not null;default:0" json:"-"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (c *Course) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// HasTag reports whether tag is one of the course's skill tags (case-insensitive).
func (c *Course) HasTag(tag string) bool {
	for _, t := range c.SkillTags {
		if equalFold(t, tag) {
			return true
		}
	}
	return false
}
