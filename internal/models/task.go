package models

import (
	"fmt"
	"time"
)

// DueTimeLayout is the wall-clock format of a task's optional due time
const DueTimeLayout = "15:04"

// Task is the subset of a task record the reminder engine reads.
// Tasks are owned by the task/note store; this service never writes them
// outside of tests and seeding.
type Task struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	UserID    uint       `gorm:"not null;index" json:"user_id"`
	Title     string     `gorm:"size:200;not null" json:"title"`
	DueDate   *time.Time `gorm:"index" json:"due_date,omitempty"`
	DueTime   string     `gorm:"size:5" json:"due_time,omitempty"`
	Status    string     `gorm:"size:20;not null;default:'pending'" json:"status"`
	Archived  bool       `gorm:"not null;default:false" json:"archived"`
	CreatedAt time.Time  `json:"created_at"`
}

// TableName specifies the table name for the Task model
func (Task) TableName() string {
	return "task"
}

// DueAt combines due date and due time into one naive instant.
// A missing due time means the start of the due day; a missing due date means nil.
func (t *Task) DueAt() (*time.Time, error) {
	return CombineDue(t.DueDate, t.DueTime)
}

// CombineDue builds the due instant from a date and an optional HH:MM time
func CombineDue(date *time.Time, clock string) (*time.Time, error) {
	if date == nil {
		return nil, nil
	}
	y, m, d := date.Date()
	due := time.Date(y, m, d, 0, 0, 0, 0, date.Location())
	if clock != "" {
		parsed, err := time.Parse(DueTimeLayout, clock)
		if err != nil {
			return nil, fmt.Errorf("invalid due time %q: %w", clock, err)
		}
		due = due.Add(time.Duration(parsed.Hour())*time.Hour + time.Duration(parsed.Minute())*time.Minute)
	}
	return &due, nil
}
