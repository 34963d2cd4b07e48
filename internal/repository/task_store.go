package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"notetracker/internal/models"

	"gorm.io/gorm"
)

// TaskStore gives read access to task due dates and ownership
type TaskStore struct {
	db *gorm.DB
}

func NewTaskStore(db *gorm.DB) *TaskStore {
	return &TaskStore{db: db}
}

// Get loads a task
func (s *TaskStore) Get(ctx context.Context, taskID uint) (*models.Task, error) {
	var task models.Task
	err := s.db.WithContext(ctx).First(&task, taskID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load task %d: %w", taskID, err)
	}
	return &task, nil
}

// GetDueDate returns the task's naive due instant, or nil when the task has no due date
func (s *TaskStore) GetDueDate(ctx context.Context, taskID uint) (*time.Time, error) {
	task, err := s.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	return task.DueAt()
}
