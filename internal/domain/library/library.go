package library

import "time"

// Library is a named catalogue of items. Items of a non-editable library can
// be read but not changed.
type Library struct {
	Name       string    `gorm:"column:name;primaryKey" json:"name"`
	IsEditable bool      `gorm:"column:is_editable;not null;default:false" json:"is_editable"`
	CreatedAt  time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time `gorm:"not null" json:"updated_at"`
}

func (Library) TableName() string { return "library" }
