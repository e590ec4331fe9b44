package service

import (
	"context"

	"campus-taskhub/backend/chat/models"
	tasksvc "campus-taskhub/backend/task/service"
	usersvc "campus-taskhub/backend/user/service"
)

// TaskDirectoryAdapter exposes the task service through the chat
// service's TaskDirectory contract
type TaskDirectoryAdapter struct {
	tasks *tasksvc.TaskService
}

func NewTaskDirectoryAdapter(tasks *tasksvc.TaskService) *TaskDirectoryAdapter {
	return &TaskDirectoryAdapter{tasks: tasks}
}

func (a *TaskDirectoryAdapter) TaskExists(ctx context.Context, taskID string) (bool, error) {
	return a.tasks.TaskExists(ctx, taskID)
}

func (a *TaskDirectoryAdapter) IsParticipant(ctx context.Context, taskID, userID string) (bool, error) {
	return a.tasks.IsParticipant(ctx, taskID, userID)
}

func (a *TaskDirectoryAdapter) Summary(ctx context.Context, taskID string) (*models.TaskSummary, error) {
	summary, err := a.tasks.Summary(ctx, taskID)
	if err != nil {
		return nil, err
	}
	return &models.TaskSummary{
		ID:     summary.ID,
		Title:  summary.Title,
		Status: string(summary.Status),
	}, nil
}

// UserDirectoryAdapter exposes the user service through the chat
// service's UserDirectory contract
type UserDirectoryAdapter struct {
	users *usersvc.UserService
}

func NewUserDirectoryAdapter(users *usersvc.UserService) *UserDirectoryAdapter {
	return &UserDirectoryAdapter{users: users}
}

func (a *UserDirectoryAdapter) UserExists(ctx context.Context, userID string) (bool, error) {
	return a.users.UserExists(ctx, userID)
}

func (a *UserDirectoryAdapter) Profile(ctx context.Context, userID string) (*models.UserSummary, error) {
	profile, err := a.users.Profile(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &models.UserSummary{
		ID:       profile.ID,
		Username: profile.Username,
		Avatar:   profile.Avatar,
	}, nil
}
