// Package model holds the GORM-mapped entities. Every entity must be listed in
// Entities so the schema migrator picks it up at startup.
package model

import "time"

// Student is the persisted form of a student. ID is a surrogate key that never
// leaves the storage layer; BusinessID is what clients address.
type Student struct {
	ID         uint      `gorm:"column:id;primaryKey;autoIncrement"`
	BusinessID int       `gorm:"column:business_id;not null;uniqueIndex"`
	FirstName  string    `gorm:"column:first_name;not null"`
	LastName   string    `gorm:"column:last_name;not null"`
	BirthDate  time.Time `gorm:"column:birth_date;index"`
	CreatedAt  time.Time `gorm:"column:created_at"`
	UpdatedAt  time.Time `gorm:"column:updated_at"`
}

func (Student) TableName() string { return "students" }

// Entities returns every mapped entity.
func Entities() []any {
	return []any{&Student{}}
}
