package service

import (
	"context"
	"io"
	"sort"
	"strings"
	"testing"
	"time"

	"campus-taskhub/backend/chat/models"
	"campus-taskhub/backend/chat/room"
	apperrors "campus-taskhub/backend/pkg/errors"
	"campus-taskhub/backend/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// fakeMessageRepo is an in-memory persistence collaborator mirroring the
// query semantics of the gorm repository
type fakeMessageRepo struct {
	messages []*models.Message
	failing  bool
}

var errStoreDown = apperrors.NewTransientStoreError("store down")

func (r *fakeMessageRepo) Create(ctx context.Context, m *models.Message) error {
	if r.failing {
		return errStoreDown
	}
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	stored := *m
	r.messages = append(r.messages, &stored)
	return nil
}

func (r *fakeMessageRepo) GetByID(ctx context.Context, id string) (*models.Message, error) {
	for _, m := range r.messages {
		if m.ID == id {
			copied := *m
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeMessageRepo) ListByParticipant(ctx context.Context, userID string) ([]models.Message, error) {
	if r.failing {
		return nil, errStoreDown
	}
	var out []models.Message
	for _, m := range r.messages {
		if m.IsDeleted {
			continue
		}
		if m.SenderID == userID || m.ReceiverID == userID {
			out = append(out, *m)
		}
	}
	sortMessages(out)
	return out, nil
}

func (r *fakeMessageRepo) ListByRoom(ctx context.Context, roomID string, limit, offset int) ([]models.Message, error) {
	var out []models.Message
	for _, m := range r.messages {
		if m.RoomID == roomID && !m.IsDeleted {
			out = append(out, *m)
		}
	}
	sortMessages(out)
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeMessageRepo) CountByRoom(ctx context.Context, roomID string) (int64, error) {
	var count int64
	for _, m := range r.messages {
		if m.RoomID == roomID && !m.IsDeleted {
			count++
		}
	}
	return count, nil
}

func (r *fakeMessageRepo) MarkRead(ctx context.Context, roomID, receiverID string) error {
	for _, m := range r.messages {
		if m.RoomID == roomID && m.ReceiverID == receiverID {
			m.IsRead = true
		}
	}
	return nil
}

func (r *fakeMessageRepo) SoftDelete(ctx context.Context, id string) error {
	for _, m := range r.messages {
		if m.ID == id {
			m.IsDeleted = true
		}
	}
	return nil
}

func sortMessages(msgs []models.Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		if msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return msgs[i].Seq < msgs[j].Seq
		}
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
}

type fakeTaskDir struct {
	tasks        map[string]*models.TaskSummary
	participants map[string]map[string]bool
}

func newFakeTaskDir() *fakeTaskDir {
	return &fakeTaskDir{
		tasks:        make(map[string]*models.TaskSummary),
		participants: make(map[string]map[string]bool),
	}
}

func (d *fakeTaskDir) addTask(taskID string, participantIDs ...string) {
	d.tasks[taskID] = &models.TaskSummary{ID: taskID, Title: "Task " + taskID[:8], Status: "open"}
	d.participants[taskID] = make(map[string]bool)
	for _, id := range participantIDs {
		d.participants[taskID][id] = true
	}
}

func (d *fakeTaskDir) TaskExists(ctx context.Context, taskID string) (bool, error) {
	return d.tasks[taskID] != nil, nil
}

func (d *fakeTaskDir) IsParticipant(ctx context.Context, taskID, userID string) (bool, error) {
	return d.participants[taskID][userID], nil
}

func (d *fakeTaskDir) Summary(ctx context.Context, taskID string) (*models.TaskSummary, error) {
	if summary, ok := d.tasks[taskID]; ok {
		return summary, nil
	}
	return nil, apperrors.NewNotFoundError("TASK_NOT_FOUND", "Task does not exist")
}

type fakeUserDir struct {
	users map[string]*models.UserSummary
}

func newFakeUserDir() *fakeUserDir {
	return &fakeUserDir{users: make(map[string]*models.UserSummary)}
}

func (d *fakeUserDir) addUser(userID, username string) {
	d.users[userID] = &models.UserSummary{ID: userID, Username: username}
}

func (d *fakeUserDir) UserExists(ctx context.Context, userID string) (bool, error) {
	return d.users[userID] != nil, nil
}

func (d *fakeUserDir) Profile(ctx context.Context, userID string) (*models.UserSummary, error) {
	if profile, ok := d.users[userID]; ok {
		return profile, nil
	}
	return nil, apperrors.NewNotFoundError("USER_NOT_FOUND", "User does not exist")
}

type captureBroadcaster struct {
	roomIDs  []string
	payloads []any
}

func (b *captureBroadcaster) Broadcast(roomID string, payload any) {
	b.roomIDs = append(b.roomIDs, roomID)
	b.payloads = append(b.payloads, payload)
}

type fixture struct {
	svc       *ChatService
	repo      *fakeMessageRepo
	tasks     *fakeTaskDir
	users     *fakeUserDir
	broadcast *captureBroadcaster

	taskID string
	u1, u2 string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	repo := &fakeMessageRepo{}
	tasks := newFakeTaskDir()
	users := newFakeUserDir()
	broadcast := &captureBroadcaster{}
	log := logger.New(logger.Config{Level: "error", JSON: true, Output: io.Discard})

	f := &fixture{
		svc:       NewChatService(repo, tasks, users, broadcast, log),
		repo:      repo,
		tasks:     tasks,
		users:     users,
		broadcast: broadcast,
		taskID:    uuid.New().String(),
		u1:        uuid.New().String(),
		u2:        uuid.New().String(),
	}

	users.addUser(f.u1, "alice")
	users.addUser(f.u2, "bob")
	tasks.addTask(f.taskID, f.u1, f.u2)

	return f
}

func (f *fixture) send(t *testing.T, senderID, receiverID, content string) *models.Message {
	t.Helper()
	msg, err := f.svc.SendMessage(context.Background(), senderID, &models.SendMessageRequest{
		TaskID:     f.taskID,
		ReceiverID: receiverID,
		Content:    content,
	})
	require.NoError(t, err)
	return msg
}

func TestSendMessageTrimsContent(t *testing.T) {
	f := newFixture(t)

	msg := f.send(t, f.u1, f.u2, "  hello  ")
	assert.Equal(t, "hello", msg.Content)

	for _, blank := range []string{"   ", "\n\t", ""} {
		_, err := f.svc.SendMessage(context.Background(), f.u1, &models.SendMessageRequest{
			TaskID:     f.taskID,
			ReceiverID: f.u2,
			Content:    blank,
		})
		require.Error(t, err)
		assert.Equal(t, "EMPTY_CONTENT", apperrors.FromError(err).Code)
	}
}

func TestSendMessageRejectsSelfMessage(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.SendMessage(context.Background(), f.u1, &models.SendMessageRequest{
		TaskID:     f.taskID,
		ReceiverID: f.u1,
		Content:    "hi me",
	})
	require.Error(t, err)
	assert.Equal(t, "SELF_MESSAGE", apperrors.FromError(err).Code)
	assert.Empty(t, f.repo.messages, "no message may be stored on validation failure")
}

func TestSendMessageRejectsMalformedIdentifiers(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.SendMessage(context.Background(), f.u1, &models.SendMessageRequest{
		TaskID:     "not-a-task",
		ReceiverID: f.u2,
		Content:    "hi",
	})
	require.Error(t, err)
	assert.Equal(t, "INVALID_IDENTIFIER", apperrors.FromError(err).Code)
}

func TestSendMessagePermissionChecks(t *testing.T) {
	f := newFixture(t)

	outsider := uuid.New().String()
	f.users.addUser(outsider, "mallory")

	_, err := f.svc.SendMessage(context.Background(), outsider, &models.SendMessageRequest{
		TaskID:     f.taskID,
		ReceiverID: f.u1,
		Content:    "let me in",
	})
	require.Error(t, err)
	assert.Equal(t, "NOT_TASK_PARTICIPANT", apperrors.FromError(err).Code)

	_, err = f.svc.SendMessage(context.Background(), f.u1, &models.SendMessageRequest{
		TaskID:     f.taskID,
		ReceiverID: outsider,
		Content:    "hi outsider",
	})
	require.Error(t, err)
	assert.Equal(t, "RECEIVER_NOT_PARTICIPANT", apperrors.FromError(err).Code)

	assert.Empty(t, f.repo.messages)
}

func TestSendMessageUnknownTaskAndReceiver(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.SendMessage(context.Background(), f.u1, &models.SendMessageRequest{
		TaskID:     uuid.New().String(),
		ReceiverID: f.u2,
		Content:    "hi",
	})
	require.Error(t, err)
	assert.Equal(t, "TASK_NOT_FOUND", apperrors.FromError(err).Code)

	ghost := uuid.New().String()
	f.tasks.participants[f.taskID][ghost] = true
	_, err = f.svc.SendMessage(context.Background(), f.u1, &models.SendMessageRequest{
		TaskID:     f.taskID,
		ReceiverID: ghost,
		Content:    "hi ghost",
	})
	require.Error(t, err)
	assert.Equal(t, "RECEIVER_NOT_FOUND", apperrors.FromError(err).Code)
}

func TestSendMessageCanonicalizesIdentifiers(t *testing.T) {
	f := newFixture(t)

	// Uppercase hex is a valid spelling of the same UUIDs; the stored row
	// must carry the canonical form or the receiver never finds the room
	msg, err := f.svc.SendMessage(context.Background(), strings.ToUpper(f.u1), &models.SendMessageRequest{
		TaskID:     strings.ToUpper(f.taskID),
		ReceiverID: strings.ToUpper(f.u2),
		Content:    "hello",
	})
	require.NoError(t, err)

	assert.Equal(t, f.taskID, msg.TaskID)
	assert.Equal(t, f.u1, msg.SenderID)
	assert.Equal(t, f.u2, msg.ReceiverID)

	expectedRoom, err := room.ComputeID(f.taskID, f.u1, f.u2)
	require.NoError(t, err)
	assert.Equal(t, expectedRoom, msg.RoomID)

	// The receiver, identified in canonical form, sees the conversation
	// and can clear it
	conversations, err := f.svc.ListConversations(context.Background(), f.u2)
	require.NoError(t, err)
	require.Len(t, conversations, 1)
	assert.Equal(t, f.u1, conversations[0].OtherUserID)
	assert.Equal(t, 1, conversations[0].UnreadCount)

	require.NoError(t, f.svc.MarkRead(context.Background(), strings.ToUpper(f.u2), f.taskID, f.u1))
	conversations, err = f.svc.ListConversations(context.Background(), f.u2)
	require.NoError(t, err)
	require.Len(t, conversations, 1)
	assert.Equal(t, 0, conversations[0].UnreadCount)
}

func TestSendMessageEndToEnd(t *testing.T) {
	f := newFixture(t)

	first := f.send(t, f.u1, f.u2, "hello")
	expectedRoom, err := room.ComputeID(f.taskID, f.u1, f.u2)
	require.NoError(t, err)
	assert.Equal(t, expectedRoom, first.RoomID)
	assert.False(t, first.IsRead)
	assert.Equal(t, models.TypeText, first.MessageType)

	// Opposite direction lands in the same room
	second := f.send(t, f.u2, f.u1, "hi back")
	assert.Equal(t, expectedRoom, second.RoomID)

	conversations, err := f.svc.ListConversations(context.Background(), f.u1)
	require.NoError(t, err)
	require.Len(t, conversations, 1)

	conv := conversations[0]
	assert.Equal(t, expectedRoom, conv.RoomID)
	assert.Equal(t, "hi back", conv.LastMessage)
	assert.Equal(t, f.u2, conv.OtherUserID)
	assert.Equal(t, "bob", conv.OtherUser.Username)
	assert.Equal(t, 1, conv.UnreadCount, "the reply from bob is unread for alice")

	// Both sends were broadcast to the room
	require.Len(t, f.broadcast.roomIDs, 2)
	assert.Equal(t, expectedRoom, f.broadcast.roomIDs[0])
}

func TestCounterpartyWhenViewerSentEveryMessage(t *testing.T) {
	f := newFixture(t)

	f.send(t, f.u1, f.u2, "one")
	f.send(t, f.u1, f.u2, "two")
	f.send(t, f.u1, f.u2, "three")

	// The naive "other side of the last message" rule would resolve the
	// counterparty to the viewer here
	forSender, err := f.svc.ListConversations(context.Background(), f.u1)
	require.NoError(t, err)
	require.Len(t, forSender, 1)
	assert.Equal(t, f.u2, forSender[0].OtherUserID)

	forReceiver, err := f.svc.ListConversations(context.Background(), f.u2)
	require.NoError(t, err)
	require.Len(t, forReceiver, 1)
	assert.Equal(t, f.u1, forReceiver[0].OtherUserID)
	assert.Equal(t, 3, forReceiver[0].UnreadCount)
}

func TestUnreadAccounting(t *testing.T) {
	f := newFixture(t)

	for i := 0; i < 5; i++ {
		f.send(t, f.u1, f.u2, "msg")
	}
	f.repo.messages[0].IsRead = true
	f.repo.messages[1].IsRead = true

	conversations, err := f.svc.ListConversations(context.Background(), f.u2)
	require.NoError(t, err)
	require.Len(t, conversations, 1)
	assert.Equal(t, 3, conversations[0].UnreadCount)

	require.NoError(t, f.svc.MarkRead(context.Background(), f.u2, f.taskID, f.u1))

	conversations, err = f.svc.ListConversations(context.Background(), f.u2)
	require.NoError(t, err)
	require.Len(t, conversations, 1)
	assert.Equal(t, 0, conversations[0].UnreadCount)
}

func TestDeletedOnlyMessageHidesRoom(t *testing.T) {
	f := newFixture(t)

	msg := f.send(t, f.u1, f.u2, "now you see me")
	require.NoError(t, f.svc.DeleteMessage(context.Background(), f.u1, msg.ID))

	for _, viewer := range []string{f.u1, f.u2} {
		conversations, err := f.svc.ListConversations(context.Background(), viewer)
		require.NoError(t, err)
		assert.Empty(t, conversations)
	}
}

func TestDeleteMessageSenderOnly(t *testing.T) {
	f := newFixture(t)

	msg := f.send(t, f.u1, f.u2, "mine")

	err := f.svc.DeleteMessage(context.Background(), f.u2, msg.ID)
	require.Error(t, err)
	assert.Equal(t, "NOT_MESSAGE_SENDER", apperrors.FromError(err).Code)

	err = f.svc.DeleteMessage(context.Background(), f.u2, uuid.New().String())
	require.Error(t, err)
	assert.Equal(t, "MESSAGE_NOT_FOUND", apperrors.FromError(err).Code)
}

func TestIntegrityViolationExcludesRoomOnly(t *testing.T) {
	f := newFixture(t)

	// A healthy room
	f.send(t, f.u1, f.u2, "normal traffic")

	// A corrupted room: two messages sharing one room ID but naming three
	// distinct users across sender/receiver
	u3 := uuid.New().String()
	f.users.addUser(u3, "carol")
	corruptRoom := "corrupt-room"
	now := time.Now()
	f.repo.messages = append(f.repo.messages,
		&models.Message{
			ID: uuid.New().String(), TaskID: f.taskID, RoomID: corruptRoom,
			SenderID: f.u1, ReceiverID: f.u2, Content: "a",
			MessageType: models.TypeText, Seq: 100, CreatedAt: now,
		},
		&models.Message{
			ID: uuid.New().String(), TaskID: f.taskID, RoomID: corruptRoom,
			SenderID: u3, ReceiverID: f.u1, Content: "b",
			MessageType: models.TypeText, Seq: 101, CreatedAt: now.Add(time.Second),
		},
	)

	conversations, err := f.svc.ListConversations(context.Background(), f.u1)
	require.NoError(t, err, "one corrupt room must not fail the listing")
	require.Len(t, conversations, 1, "the corrupt room is excluded, not guessed at")
	assert.NotEqual(t, corruptRoom, conversations[0].RoomID)
}

func TestVanishedTaskDropsConversation(t *testing.T) {
	f := newFixture(t)

	f.send(t, f.u1, f.u2, "hello")
	delete(f.tasks.tasks, f.taskID)

	conversations, err := f.svc.ListConversations(context.Background(), f.u1)
	require.NoError(t, err)
	assert.Empty(t, conversations, "a conversation referencing a deleted task is dropped, not surfaced with null fields")
}

func TestConversationsSortedByLastMessageTime(t *testing.T) {
	f := newFixture(t)

	task2 := uuid.New().String()
	u3 := uuid.New().String()
	f.users.addUser(u3, "carol")
	f.tasks.addTask(task2, f.u1, u3)

	f.send(t, f.u1, f.u2, "older room")

	_, err := f.svc.SendMessage(context.Background(), f.u1, &models.SendMessageRequest{
		TaskID:     task2,
		ReceiverID: u3,
		Content:    "newer room",
	})
	require.NoError(t, err)

	// Force distinct timestamps regardless of clock resolution
	f.repo.messages[0].CreatedAt = time.Now().Add(-time.Minute)

	conversations, err := f.svc.ListConversations(context.Background(), f.u1)
	require.NoError(t, err)
	require.Len(t, conversations, 2)
	assert.Equal(t, "newer room", conversations[0].LastMessage)
	assert.Equal(t, "older room", conversations[1].LastMessage)
}

func TestEmptyLogYieldsEmptyList(t *testing.T) {
	f := newFixture(t)

	conversations, err := f.svc.ListConversations(context.Background(), f.u1)
	require.NoError(t, err)
	assert.NotNil(t, conversations)
	assert.Empty(t, conversations)
}

func TestRoomMessagesPagination(t *testing.T) {
	f := newFixture(t)

	for i := 0; i < 5; i++ {
		f.send(t, f.u1, f.u2, "msg")
	}

	page, err := f.svc.RoomMessages(context.Background(), f.u1, f.taskID, f.u2, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(5), page.Total)
	assert.Len(t, page.Messages, 2)

	last, err := f.svc.RoomMessages(context.Background(), f.u1, f.taskID, f.u2, 3, 2)
	require.NoError(t, err)
	assert.Len(t, last.Messages, 1)
}

func TestSendMessageStoreFailureIsRetryable(t *testing.T) {
	f := newFixture(t)
	f.repo.failing = true

	_, err := f.svc.SendMessage(context.Background(), f.u1, &models.SendMessageRequest{
		TaskID:     f.taskID,
		ReceiverID: f.u2,
		Content:    "hello",
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsRetryable(err))
}
