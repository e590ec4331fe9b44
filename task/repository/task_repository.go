package repository

import (
	"context"

	"campus-taskhub/backend/task/models"

	"gorm.io/gorm"
)

type TaskRepository interface {
	Create(ctx context.Context, task *models.Task) error
	GetByID(ctx context.Context, id string) (*models.Task, error)
	List(ctx context.Context, status models.TaskStatus, limit, offset int) ([]models.Task, error)
	ListByPublisher(ctx context.Context, publisherID string) ([]models.Task, error)
	ListByAssignee(ctx context.Context, assigneeID string) ([]models.Task, error)
	ListApplied(ctx context.Context, userID string) ([]models.Task, error)
	Update(ctx context.Context, task *models.Task) error
	Exists(ctx context.Context, id string) (bool, error)

	CreateApplication(ctx context.Context, app *models.Application) error
	HasApplication(ctx context.Context, taskID, userID string) (bool, error)
	ListApplications(ctx context.Context, taskID string) ([]models.Application, error)
}

type GormTaskRepository struct {
	db *gorm.DB
}

func NewGormTaskRepository(db *gorm.DB) *GormTaskRepository {
	return &GormTaskRepository{db: db}
}

func (r *GormTaskRepository) Create(ctx context.Context, task *models.Task) error {
	return r.db.WithContext(ctx).Create(task).Error
}

func (r *GormTaskRepository) GetByID(ctx context.Context, id string) (*models.Task, error) {
	var task models.Task
	err := r.db.WithContext(ctx).First(&task, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func (r *GormTaskRepository) List(ctx context.Context, status models.TaskStatus, limit, offset int) ([]models.Task, error) {
	var tasks []models.Task
	q := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Offset(offset)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	err := q.Find(&tasks).Error
	return tasks, err
}

func (r *GormTaskRepository) ListByPublisher(ctx context.Context, publisherID string) ([]models.Task, error) {
	var tasks []models.Task
	err := r.db.WithContext(ctx).
		Where("publisher_id = ?", publisherID).
		Order("created_at DESC").
		Find(&tasks).Error
	return tasks, err
}

func (r *GormTaskRepository) ListByAssignee(ctx context.Context, assigneeID string) ([]models.Task, error) {
	var tasks []models.Task
	err := r.db.WithContext(ctx).
		Where("assignee_id = ?", assigneeID).
		Order("created_at DESC").
		Find(&tasks).Error
	return tasks, err
}

func (r *GormTaskRepository) ListApplied(ctx context.Context, userID string) ([]models.Task, error) {
	var tasks []models.Task
	err := r.db.WithContext(ctx).
		Joins("JOIN applications ON applications.task_id = tasks.id").
		Where("applications.user_id = ?", userID).
		Order("tasks.created_at DESC").
		Find(&tasks).Error
	return tasks, err
}

func (r *GormTaskRepository) Update(ctx context.Context, task *models.Task) error {
	return r.db.WithContext(ctx).Save(task).Error
}

func (r *GormTaskRepository) Exists(ctx context.Context, id string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Task{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

func (r *GormTaskRepository) CreateApplication(ctx context.Context, app *models.Application) error {
	return r.db.WithContext(ctx).Create(app).Error
}

func (r *GormTaskRepository) HasApplication(ctx context.Context, taskID, userID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Application{}).
		Where("task_id = ? AND user_id = ?", taskID, userID).
		Count(&count).Error
	return count > 0, err
}

func (r *GormTaskRepository) ListApplications(ctx context.Context, taskID string) ([]models.Application, error) {
	var apps []models.Application
	err := r.db.WithContext(ctx).
		Where("task_id = ?", taskID).
		Order("created_at ASC").
		Find(&apps).Error
	return apps, err
}
