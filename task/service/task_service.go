package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"campus-taskhub/backend/pkg/cache"
	apperrors "campus-taskhub/backend/pkg/errors"
	"campus-taskhub/backend/task/models"
	"campus-taskhub/backend/task/repository"

	"gorm.io/gorm"
)

// TaskService owns the task lifecycle and answers the participant and
// existence questions the chat service gates on.
type TaskService struct {
	repo   repository.TaskRepository
	lookup *cache.Cache
}

func NewTaskService(repo repository.TaskRepository, lookupTTL time.Duration) *TaskService {
	return &TaskService{
		repo:   repo,
		lookup: cache.New(lookupTTL, 2*lookupTTL),
	}
}

// Publish creates a new open task owned by the publisher
func (s *TaskService) Publish(ctx context.Context, publisherID string, req *models.CreateTaskRequest) (*models.Task, error) {
	task := &models.Task{
		Title:       req.Title,
		Description: req.Description,
		Reward:      req.Reward,
		PublisherID: publisherID,
		Status:      models.StatusOpen,
	}
	if err := s.repo.Create(ctx, task); err != nil {
		return nil, apperrors.NewTransientStoreError("task store unavailable")
	}
	return task, nil
}

// Get returns a single task
func (s *TaskService) Get(ctx context.Context, id string) (*models.Task, error) {
	task, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFoundError("TASK_NOT_FOUND", "Task does not exist")
		}
		return nil, apperrors.NewTransientStoreError("task store unavailable")
	}
	return task, nil
}

// List returns open tasks, or tasks in the given status
func (s *TaskService) List(ctx context.Context, status models.TaskStatus, limit, offset int) ([]models.Task, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.List(ctx, status, limit, offset)
}

// MyPublished returns tasks the user published
func (s *TaskService) MyPublished(ctx context.Context, userID string) ([]models.Task, error) {
	return s.repo.ListByPublisher(ctx, userID)
}

// MyAssigned returns tasks assigned to the user
func (s *TaskService) MyAssigned(ctx context.Context, userID string) ([]models.Task, error) {
	return s.repo.ListByAssignee(ctx, userID)
}

// MyApplied returns tasks the user applied to
func (s *TaskService) MyApplied(ctx context.Context, userID string) ([]models.Task, error) {
	return s.repo.ListApplied(ctx, userID)
}

// Apply records an application by userID for the task
func (s *TaskService) Apply(ctx context.Context, taskID, userID string, req *models.ApplyRequest) (*models.Application, error) {
	task, err := s.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}

	if task.PublisherID == userID {
		return nil, apperrors.NewValidationError("OWN_TASK", "Cannot apply to your own task")
	}
	if task.Status != models.StatusOpen {
		return nil, apperrors.NewConflictError("TASK_NOT_OPEN", "Task is no longer open for applications")
	}

	already, err := s.repo.HasApplication(ctx, taskID, userID)
	if err != nil {
		return nil, apperrors.NewTransientStoreError("task store unavailable")
	}
	if already {
		return nil, apperrors.NewConflictError("ALREADY_APPLIED", "You have already applied to this task")
	}

	app := &models.Application{
		TaskID:  taskID,
		UserID:  userID,
		Message: req.Message,
	}
	if err := s.repo.CreateApplication(ctx, app); err != nil {
		return nil, apperrors.NewTransientStoreError("task store unavailable")
	}

	// Participation changed, drop the stale cache entry
	s.lookup.Delete(participantKey(taskID, userID))

	return app, nil
}

// Assign sets the task's assignee. Only the publisher may assign, and only
// to a user who applied.
func (s *TaskService) Assign(ctx context.Context, taskID, publisherID string, req *models.AssignRequest) (*models.Task, error) {
	task, err := s.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}

	if task.PublisherID != publisherID {
		return nil, apperrors.NewPermissionError("NOT_PUBLISHER", "Only the publisher can assign this task")
	}
	if task.Status != models.StatusOpen {
		return nil, apperrors.NewConflictError("TASK_NOT_OPEN", "Task is not open")
	}

	applied, err := s.repo.HasApplication(ctx, taskID, req.UserID)
	if err != nil {
		return nil, apperrors.NewTransientStoreError("task store unavailable")
	}
	if !applied {
		return nil, apperrors.NewValidationError("NOT_AN_APPLICANT", "Assignee must have applied to the task")
	}

	assignee := req.UserID
	task.AssigneeID = &assignee
	task.Status = models.StatusAssigned
	if err := s.repo.Update(ctx, task); err != nil {
		return nil, apperrors.NewTransientStoreError("task store unavailable")
	}

	s.lookup.Delete(summaryKey(taskID))

	return task, nil
}

// TaskExists reports whether the task ID resolves to a stored task
func (s *TaskService) TaskExists(ctx context.Context, taskID string) (bool, error) {
	if v, ok := s.lookup.Get(existsKey(taskID)); ok {
		return v.(bool), nil
	}
	exists, err := s.repo.Exists(ctx, taskID)
	if err != nil {
		return false, err
	}
	s.lookup.Set(existsKey(taskID), exists)
	return exists, nil
}

// IsParticipant reports whether the user may exchange messages about the
// task: the publisher, the assignee, or any applicant qualifies.
func (s *TaskService) IsParticipant(ctx context.Context, taskID, userID string) (bool, error) {
	if v, ok := s.lookup.Get(participantKey(taskID, userID)); ok {
		return v.(bool), nil
	}

	task, err := s.repo.GetByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}

	participant := task.PublisherID == userID ||
		(task.AssigneeID != nil && *task.AssigneeID == userID)
	if !participant {
		participant, err = s.repo.HasApplication(ctx, taskID, userID)
		if err != nil {
			return false, err
		}
	}

	s.lookup.Set(participantKey(taskID, userID), participant)
	return participant, nil
}

// Summary returns the task projection used by conversation listings
func (s *TaskService) Summary(ctx context.Context, taskID string) (*models.Summary, error) {
	if v, ok := s.lookup.Get(summaryKey(taskID)); ok {
		return v.(*models.Summary), nil
	}

	task, err := s.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}

	summary := task.ToSummary()
	s.lookup.Set(summaryKey(taskID), summary)
	return summary, nil
}

func existsKey(taskID string) string {
	return fmt.Sprintf("task:exists:%s", taskID)
}

func participantKey(taskID, userID string) string {
	return fmt.Sprintf("task:participant:%s:%s", taskID, userID)
}

func summaryKey(taskID string) string {
	return fmt.Sprintf("task:summary:%s", taskID)
}
