package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TaskStatus enumerates the task lifecycle states
type TaskStatus string

const (
	StatusOpen      TaskStatus = "open"
	StatusAssigned  TaskStatus = "assigned"
	StatusCompleted TaskStatus = "completed"
	StatusCancelled TaskStatus = "cancelled"
)

// Task represents a published campus task
type Task struct {
	ID          string     `gorm:"primaryKey;type:uuid" json:"id"`
	Title       string     `gorm:"not null" json:"title"`
	Description string     `gorm:"type:text" json:"description"`
	Reward      float64    `json:"reward"`
	Status      TaskStatus `gorm:"index;default:open" json:"status"`
	PublisherID string     `gorm:"index;type:uuid;not null" json:"publisher_id"`
	AssigneeID  *string    `gorm:"index;type:uuid" json:"assignee_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (t *Task) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.Status == "" {
		t.Status = StatusOpen
	}
	return nil
}

// Application records a user applying to work on a task
type Application struct {
	ID        string    `gorm:"primaryKey;type:uuid" json:"id"`
	TaskID    string    `gorm:"index;type:uuid;not null" json:"task_id"`
	UserID    string    `gorm:"index;type:uuid;not null" json:"user_id"`
	Message   string    `json:"message,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (a *Application) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	return nil
}

// CreateTaskRequest is the request structure for publishing a task
type CreateTaskRequest struct {
	Title       string  `json:"title" binding:"required,max=128"`
	Description string  `json:"description"`
	Reward      float64 `json:"reward" binding:"gte=0"`
}

// ApplyRequest is the request structure for applying to a task
type ApplyRequest struct {
	Message string `json:"message"`
}

// AssignRequest is the request structure for assigning a task
type AssignRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

// Summary is the task projection attached to conversation listings
type Summary struct {
	ID     string     `json:"id"`
	Title  string     `json:"title"`
	Status TaskStatus `json:"status"`
}

// ToSummary strips task fields down to what chat listings show
func (t *Task) ToSummary() *Summary {
	return &Summary{
		ID:     t.ID,
		Title:  t.Title,
		Status: t.Status,
	}
}
