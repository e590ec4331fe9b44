package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"campus-taskhub/backend/chat/models"
	"campus-taskhub/backend/chat/repository"
	"campus-taskhub/backend/chat/room"
	apperrors "campus-taskhub/backend/pkg/errors"
	"campus-taskhub/backend/pkg/logger"
	"campus-taskhub/backend/pkg/metrics"

	"gorm.io/gorm"
)

// TaskDirectory answers task existence and messaging-permission questions
type TaskDirectory interface {
	TaskExists(ctx context.Context, taskID string) (bool, error)
	IsParticipant(ctx context.Context, taskID, userID string) (bool, error)
	Summary(ctx context.Context, taskID string) (*models.TaskSummary, error)
}

// UserDirectory resolves user IDs to accounts and public profiles
type UserDirectory interface {
	UserExists(ctx context.Context, userID string) (bool, error)
	Profile(ctx context.Context, userID string) (*models.UserSummary, error)
}

// Broadcaster delivers payloads to the live subscribers of a room.
// Delivery is best effort and never affects persistence.
type Broadcaster interface {
	Broadcast(roomID string, payload any)
}

// Options bounds page sizes and message length
type Options struct {
	DefaultPageSize int
	MaxPageSize     int
	MaxContentSize  int
}

func defaultOptions() Options {
	return Options{
		DefaultPageSize: 50,
		MaxPageSize:     100,
		MaxContentSize:  2000,
	}
}

// ChatService implements the message ingestion gate and the conversation
// aggregator over the append-only message log.
type ChatService struct {
	repo        repository.MessageRepository
	tasks       TaskDirectory
	users       UserDirectory
	broadcaster Broadcaster
	log         *logger.Logger
	opts        Options

	// seq orders messages created in the same millisecond within a room
	seq atomic.Int64
}

func NewChatService(
	repo repository.MessageRepository,
	tasks TaskDirectory,
	users UserDirectory,
	broadcaster Broadcaster,
	log *logger.Logger,
	opts ...Options,
) *ChatService {
	o := defaultOptions()
	if len(opts) > 0 {
		o = opts[0]
	}
	return &ChatService{
		repo:        repo,
		tasks:       tasks,
		users:       users,
		broadcaster: broadcaster,
		log:         log,
		opts:        o,
	}
}

// SendMessage validates a candidate message, stamps it with its room ID and
// appends it to the log. Validation failures are terminal: no message is
// stored on any failure.
func (s *ChatService) SendMessage(ctx context.Context, senderID string, req *models.SendMessageRequest) (*models.Message, error) {
	// Canonicalize once; the lookups below, the stored row and the room ID
	// must all carry the same representation of each identifier
	taskID, err := room.Canonicalize(req.TaskID)
	if err != nil {
		metrics.MessagesRejected.WithLabelValues("validation").Inc()
		return nil, roomErrToAppError(err)
	}
	senderID, err = room.Canonicalize(senderID)
	if err != nil {
		metrics.MessagesRejected.WithLabelValues("validation").Inc()
		return nil, roomErrToAppError(err)
	}
	receiverID, err := room.Canonicalize(req.ReceiverID)
	if err != nil {
		metrics.MessagesRejected.WithLabelValues("validation").Inc()
		return nil, roomErrToAppError(err)
	}

	roomID, err := room.ComputeID(taskID, senderID, receiverID)
	if err != nil {
		metrics.MessagesRejected.WithLabelValues("validation").Inc()
		return nil, roomErrToAppError(err)
	}

	content := strings.TrimSpace(req.Content)
	if content == "" {
		metrics.MessagesRejected.WithLabelValues("empty_content").Inc()
		return nil, apperrors.NewValidationError("EMPTY_CONTENT", "Message content must not be blank")
	}
	if s.opts.MaxContentSize > 0 && len(content) > s.opts.MaxContentSize {
		metrics.MessagesRejected.WithLabelValues("content_too_long").Inc()
		return nil, apperrors.NewValidationError("CONTENT_TOO_LONG", "Message content exceeds the maximum length")
	}

	msgType := req.MessageType
	if msgType == "" {
		msgType = models.TypeText
	}
	if !msgType.Valid() {
		metrics.MessagesRejected.WithLabelValues("bad_type").Inc()
		return nil, apperrors.NewValidationError("INVALID_MESSAGE_TYPE", "Unsupported message type")
	}

	exists, err := s.tasks.TaskExists(ctx, taskID)
	if err != nil {
		return nil, apperrors.NewTransientStoreError("task lookup unavailable")
	}
	if !exists {
		metrics.MessagesRejected.WithLabelValues("task_not_found").Inc()
		return nil, apperrors.NewNotFoundError("TASK_NOT_FOUND", "Task does not exist")
	}

	ok, err := s.tasks.IsParticipant(ctx, taskID, senderID)
	if err != nil {
		return nil, apperrors.NewTransientStoreError("task lookup unavailable")
	}
	if !ok {
		metrics.MessagesRejected.WithLabelValues("sender_not_participant").Inc()
		return nil, apperrors.NewPermissionError("NOT_TASK_PARTICIPANT", "Sender is not a participant of this task")
	}

	exists, err = s.users.UserExists(ctx, receiverID)
	if err != nil {
		return nil, apperrors.NewTransientStoreError("user lookup unavailable")
	}
	if !exists {
		metrics.MessagesRejected.WithLabelValues("receiver_not_found").Inc()
		return nil, apperrors.NewNotFoundError("RECEIVER_NOT_FOUND", "Receiver does not exist")
	}

	ok, err = s.tasks.IsParticipant(ctx, taskID, receiverID)
	if err != nil {
		return nil, apperrors.NewTransientStoreError("task lookup unavailable")
	}
	if !ok {
		metrics.MessagesRejected.WithLabelValues("receiver_not_participant").Inc()
		return nil, apperrors.NewPermissionError("RECEIVER_NOT_PARTICIPANT", "Receiver is not a participant of this task")
	}

	message := &models.Message{
		TaskID:      taskID,
		SenderID:    senderID,
		ReceiverID:  receiverID,
		Content:     content,
		MessageType: msgType,
		RoomID:      roomID,
		IsRead:      false,
		IsDeleted:   false,
		Seq:         s.seq.Add(1),
		CreatedAt:   time.Now(),
	}

	if err := s.repo.Create(ctx, message); err != nil {
		return nil, apperrors.NewTransientStoreError("message store unavailable")
	}

	metrics.MessagesSent.WithLabelValues(string(msgType)).Inc()

	// Live delivery is best effort; the append above already succeeded
	if s.broadcaster != nil {
		s.broadcaster.Broadcast(roomID, map[string]any{
			"type":    "receive_message",
			"message": message,
		})
	}

	return message, nil
}

// ListConversations derives the viewer's deduplicated conversation list
// from the message log. Pure read: it never mutates the log, and a bad
// room only ever costs that one room, never the whole listing.
func (s *ChatService) ListConversations(ctx context.Context, viewerID string) ([]models.Conversation, error) {
	viewerID, err := room.Canonicalize(viewerID)
	if err != nil {
		return nil, apperrors.NewValidationError("INVALID_IDENTIFIER", "Viewer ID is not a valid identifier")
	}

	messages, err := s.repo.ListByParticipant(ctx, viewerID)
	if err != nil {
		return nil, apperrors.NewTransientStoreError("message store unavailable")
	}

	metrics.ConversationListings.Inc()

	// Group by room, preserving the repository's (created_at, seq) order
	// inside each group
	groups := make(map[string][]models.Message)
	order := make([]string, 0)
	for _, m := range messages {
		if _, seen := groups[m.RoomID]; !seen {
			order = append(order, m.RoomID)
		}
		groups[m.RoomID] = append(groups[m.RoomID], m)
	}

	conversations := make([]models.Conversation, 0, len(order))
	for _, roomID := range order {
		group := groups[roomID]

		// The counterparty is the unique participant across the whole
		// group that is not the viewer. Resolving from the last message
		// alone mislabels rooms where the viewer sent every message.
		otherID, ok := s.resolveCounterparty(roomID, group, viewerID)
		if !ok {
			continue
		}

		last := group[len(group)-1]

		unread := 0
		for _, m := range group {
			if m.ReceiverID == viewerID && !m.IsRead {
				unread++
			}
		}

		// A conversation pointing at a vanished task or user is dropped,
		// not surfaced with null fields
		taskSummary, err := s.tasks.Summary(ctx, last.TaskID)
		if err != nil {
			s.skipRoom(roomID, "task", err)
			continue
		}
		otherUser, err := s.users.Profile(ctx, otherID)
		if err != nil {
			s.skipRoom(roomID, "user", err)
			continue
		}

		conversations = append(conversations, models.Conversation{
			RoomID:          roomID,
			TaskID:          last.TaskID,
			OtherUserID:     otherID,
			Task:            taskSummary,
			OtherUser:       otherUser,
			LastMessage:     last.Content,
			LastMessageType: last.MessageType,
			LastMessageTime: last.CreatedAt,
			UnreadCount:     unread,
		})
	}

	sort.SliceStable(conversations, func(i, j int) bool {
		return conversations[i].LastMessageTime.After(conversations[j].LastMessageTime)
	})

	return conversations, nil
}

// resolveCounterparty returns the single participant in the group that is
// not the viewer. A group with more than one distinct other participant
// violates the room invariant; it is reported and excluded, never guessed.
func (s *ChatService) resolveCounterparty(roomID string, group []models.Message, viewerID string) (string, bool) {
	others := make(map[string]struct{})
	var otherID string
	for _, m := range group {
		if m.SenderID != viewerID {
			others[m.SenderID] = struct{}{}
			otherID = m.SenderID
		}
		if m.ReceiverID != viewerID {
			others[m.ReceiverID] = struct{}{}
			otherID = m.ReceiverID
		}
	}

	if len(others) != 1 {
		metrics.IntegrityViolations.Inc()
		s.log.Error("room groups more than one counterparty, excluding it",
			"room_id", roomID,
			"viewer_id", viewerID,
			"distinct_counterparties", len(others),
			"error", apperrors.NewDataIntegrityError("room participant invariant violated").Error(),
		)
		return "", false
	}

	return otherID, true
}

func (s *ChatService) skipRoom(roomID, lookup string, err error) {
	if apperrors.IsNotFound(err) {
		// Deleted task or account; dropping the room is the designed
		// behavior, nothing to report
		return
	}
	s.log.Warn("conversation lookup failed, excluding room",
		"room_id", roomID,
		"lookup", lookup,
		"error", err.Error(),
	)
}

// RoomMessages returns one page of the room shared by the viewer and the
// other user on the given task
func (s *ChatService) RoomMessages(ctx context.Context, viewerID, taskID, otherID string, page, pageSize int) (*models.RoomMessagesPage, error) {
	roomID, err := room.ComputeID(taskID, viewerID, otherID)
	if err != nil {
		return nil, roomErrToAppError(err)
	}

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = s.opts.DefaultPageSize
	}
	if pageSize > s.opts.MaxPageSize {
		pageSize = s.opts.MaxPageSize
	}

	total, err := s.repo.CountByRoom(ctx, roomID)
	if err != nil {
		return nil, apperrors.NewTransientStoreError("message store unavailable")
	}

	messages, err := s.repo.ListByRoom(ctx, roomID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, apperrors.NewTransientStoreError("message store unavailable")
	}

	return &models.RoomMessagesPage{
		Messages: messages,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}, nil
}

// MarkRead flips every unread message addressed to the viewer in the room.
// Idempotent; read flags are never reset.
func (s *ChatService) MarkRead(ctx context.Context, viewerID, taskID, otherID string) error {
	roomID, err := room.ComputeID(taskID, viewerID, otherID)
	if err != nil {
		return roomErrToAppError(err)
	}
	// The repository matches receiver_id against stored rows, which hold
	// the canonical form
	viewerID, err = room.Canonicalize(viewerID)
	if err != nil {
		return roomErrToAppError(err)
	}

	if err := s.repo.MarkRead(ctx, roomID, viewerID); err != nil {
		return apperrors.NewTransientStoreError("message store unavailable")
	}
	return nil
}

// DeleteMessage soft-deletes one message. Only the sender may delete, and
// the row stays in storage.
func (s *ChatService) DeleteMessage(ctx context.Context, viewerID, messageID string) error {
	viewerID, err := room.Canonicalize(viewerID)
	if err != nil {
		return roomErrToAppError(err)
	}

	message, err := s.repo.GetByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.NewNotFoundError("MESSAGE_NOT_FOUND", "Message does not exist")
		}
		return apperrors.NewTransientStoreError("message store unavailable")
	}

	if message.SenderID != viewerID {
		return apperrors.NewPermissionError("NOT_MESSAGE_SENDER", "Only the sender can delete a message")
	}

	if err := s.repo.SoftDelete(ctx, messageID); err != nil {
		return apperrors.NewTransientStoreError("message store unavailable")
	}
	return nil
}

func roomErrToAppError(err error) *apperrors.AppError {
	switch {
	case errors.Is(err, room.ErrSameParticipant):
		return apperrors.NewValidationError("SELF_MESSAGE", "Sender and receiver must be different users")
	case errors.Is(err, room.ErrEmptyIdentifier):
		return apperrors.NewValidationError("MISSING_IDENTIFIER", "A required identifier is missing")
	default:
		return apperrors.NewValidationError("INVALID_IDENTIFIER", "An identifier is malformed")
	}
}
