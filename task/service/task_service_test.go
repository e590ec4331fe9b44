package service

import (
	"context"
	"testing"
	"time"

	apperrors "campus-taskhub/backend/pkg/errors"
	"campus-taskhub/backend/task/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeTaskRepo struct {
	tasks map[string]*models.Task
	apps  []models.Application
}

func newFakeTaskRepo() *fakeTaskRepo {
	return &fakeTaskRepo{tasks: make(map[string]*models.Task)}
}

func (r *fakeTaskRepo) Create(ctx context.Context, task *models.Task) error {
	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	stored := *task
	r.tasks[task.ID] = &stored
	return nil
}

func (r *fakeTaskRepo) GetByID(ctx context.Context, id string) (*models.Task, error) {
	task, ok := r.tasks[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *task
	return &copied, nil
}

func (r *fakeTaskRepo) List(ctx context.Context, status models.TaskStatus, limit, offset int) ([]models.Task, error) {
	var out []models.Task
	for _, t := range r.tasks {
		if status == "" || t.Status == status {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (r *fakeTaskRepo) ListByPublisher(ctx context.Context, publisherID string) ([]models.Task, error) {
	var out []models.Task
	for _, t := range r.tasks {
		if t.PublisherID == publisherID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (r *fakeTaskRepo) ListByAssignee(ctx context.Context, assigneeID string) ([]models.Task, error) {
	var out []models.Task
	for _, t := range r.tasks {
		if t.AssigneeID != nil && *t.AssigneeID == assigneeID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (r *fakeTaskRepo) ListApplied(ctx context.Context, userID string) ([]models.Task, error) {
	var out []models.Task
	for _, a := range r.apps {
		if a.UserID == userID {
			if t, ok := r.tasks[a.TaskID]; ok {
				out = append(out, *t)
			}
		}
	}
	return out, nil
}

func (r *fakeTaskRepo) Update(ctx context.Context, task *models.Task) error {
	if _, ok := r.tasks[task.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	stored := *task
	r.tasks[task.ID] = &stored
	return nil
}

func (r *fakeTaskRepo) Exists(ctx context.Context, id string) (bool, error) {
	_, ok := r.tasks[id]
	return ok, nil
}

func (r *fakeTaskRepo) CreateApplication(ctx context.Context, app *models.Application) error {
	if app.ID == "" {
		app.ID = uuid.New().String()
	}
	r.apps = append(r.apps, *app)
	return nil
}

func (r *fakeTaskRepo) HasApplication(ctx context.Context, taskID, userID string) (bool, error) {
	for _, a := range r.apps {
		if a.TaskID == taskID && a.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeTaskRepo) ListApplications(ctx context.Context, taskID string) ([]models.Application, error) {
	var out []models.Application
	for _, a := range r.apps {
		if a.TaskID == taskID {
			out = append(out, a)
		}
	}
	return out, nil
}

func newTestService(t *testing.T) (*TaskService, *fakeTaskRepo) {
	t.Helper()
	repo := newFakeTaskRepo()
	return NewTaskService(repo, time.Minute), repo
}

func publishTask(t *testing.T, svc *TaskService, publisherID string) *models.Task {
	t.Helper()
	task, err := svc.Publish(context.Background(), publisherID, &models.CreateTaskRequest{
		Title:       "Pick up a package",
		Description: "Campus mail room, before 5pm",
		Reward:      15,
	})
	require.NoError(t, err)
	return task
}

func TestPublishCreatesOpenTask(t *testing.T) {
	svc, _ := newTestService(t)
	publisher := uuid.New().String()

	task := publishTask(t, svc, publisher)

	assert.NotEmpty(t, task.ID)
	assert.Equal(t, models.StatusOpen, task.Status)
	assert.Equal(t, publisher, task.PublisherID)
}

func TestApplyValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	publisher := uuid.New().String()
	applicant := uuid.New().String()
	task := publishTask(t, svc, publisher)

	_, err := svc.Apply(ctx, task.ID, publisher, &models.ApplyRequest{})
	require.Error(t, err)
	assert.Equal(t, "OWN_TASK", apperrors.FromError(err).Code)

	_, err = svc.Apply(ctx, task.ID, applicant, &models.ApplyRequest{Message: "I can do this"})
	require.NoError(t, err)

	_, err = svc.Apply(ctx, task.ID, applicant, &models.ApplyRequest{})
	require.Error(t, err)
	assert.Equal(t, "ALREADY_APPLIED", apperrors.FromError(err).Code)

	_, err = svc.Apply(ctx, uuid.New().String(), applicant, &models.ApplyRequest{})
	require.Error(t, err)
	assert.Equal(t, "TASK_NOT_FOUND", apperrors.FromError(err).Code)
}

func TestAssignValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	publisher := uuid.New().String()
	applicant := uuid.New().String()
	stranger := uuid.New().String()
	task := publishTask(t, svc, publisher)

	_, err := svc.Apply(ctx, task.ID, applicant, &models.ApplyRequest{})
	require.NoError(t, err)

	_, err = svc.Assign(ctx, task.ID, stranger, &models.AssignRequest{UserID: applicant})
	require.Error(t, err)
	assert.Equal(t, "NOT_PUBLISHER", apperrors.FromError(err).Code)

	_, err = svc.Assign(ctx, task.ID, publisher, &models.AssignRequest{UserID: stranger})
	require.Error(t, err)
	assert.Equal(t, "NOT_AN_APPLICANT", apperrors.FromError(err).Code)

	assigned, err := svc.Assign(ctx, task.ID, publisher, &models.AssignRequest{UserID: applicant})
	require.NoError(t, err)
	assert.Equal(t, models.StatusAssigned, assigned.Status)
	require.NotNil(t, assigned.AssigneeID)
	assert.Equal(t, applicant, *assigned.AssigneeID)

	_, err = svc.Assign(ctx, task.ID, publisher, &models.AssignRequest{UserID: applicant})
	require.Error(t, err)
	assert.Equal(t, "TASK_NOT_OPEN", apperrors.FromError(err).Code)
}

func TestIsParticipantCoversAllRoles(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	publisher := uuid.New().String()
	applicant := uuid.New().String()
	stranger := uuid.New().String()
	task := publishTask(t, svc, publisher)

	ok, err := svc.IsParticipant(ctx, task.ID, publisher)
	require.NoError(t, err)
	assert.True(t, ok, "publisher is a participant")

	ok, err = svc.IsParticipant(ctx, task.ID, stranger)
	require.NoError(t, err)
	assert.False(t, ok, "uninvolved user is not a participant")

	_, err = svc.Apply(ctx, task.ID, applicant, &models.ApplyRequest{})
	require.NoError(t, err)

	ok, err = svc.IsParticipant(ctx, task.ID, applicant)
	require.NoError(t, err)
	assert.True(t, ok, "applicant is a participant")

	ok, err = svc.IsParticipant(ctx, uuid.New().String(), publisher)
	require.NoError(t, err)
	assert.False(t, ok, "unknown task has no participants")
}

func TestApplyInvalidatesParticipantCache(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	publisher := uuid.New().String()
	applicant := uuid.New().String()
	task := publishTask(t, svc, publisher)

	// seed the cached negative answer
	ok, err := svc.IsParticipant(ctx, task.ID, applicant)
	require.NoError(t, err)
	require.False(t, ok)

	_, err = svc.Apply(ctx, task.ID, applicant, &models.ApplyRequest{})
	require.NoError(t, err)

	ok, err = svc.IsParticipant(ctx, task.ID, applicant)
	require.NoError(t, err)
	assert.True(t, ok, "applying must supersede the cached answer")
}

func TestTaskExists(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	task := publishTask(t, svc, uuid.New().String())

	ok, err := svc.TaskExists(ctx, task.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.TaskExists(ctx, uuid.New().String())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSummaryReflectsAssignment(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	publisher := uuid.New().String()
	applicant := uuid.New().String()
	task := publishTask(t, svc, publisher)

	summary, err := svc.Summary(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusOpen, summary.Status)

	_, err = svc.Apply(ctx, task.ID, applicant, &models.ApplyRequest{})
	require.NoError(t, err)
	_, err = svc.Assign(ctx, task.ID, publisher, &models.AssignRequest{UserID: applicant})
	require.NoError(t, err)

	summary, err = svc.Summary(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAssigned, summary.Status)
}
