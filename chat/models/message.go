package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MessageType enumerates the supported message payloads
type MessageType string

const (
	TypeText  MessageType = "text"
	TypeImage MessageType = "image"
	TypeFile  MessageType = "file"
)

// Valid reports whether the type is one of the supported tags
func (t MessageType) Valid() bool {
	switch t {
	case TypeText, TypeImage, TypeFile:
		return true
	}
	return false
}

// Message is a single directed chat message. Rows are append-only: after
// creation only IsRead (receiver, false to true) and IsDeleted ever change.
type Message struct {
	ID          string      `gorm:"primaryKey;type:uuid" json:"id"`
	TaskID      string      `gorm:"index;type:uuid;not null" json:"taskId"`
	SenderID    string      `gorm:"index;type:uuid;not null" json:"senderId"`
	ReceiverID  string      `gorm:"index;type:uuid;not null" json:"receiverId"`
	Content     string      `gorm:"type:text;not null" json:"content"`
	MessageType MessageType `gorm:"default:text" json:"messageType"`
	// RoomID is computed once at creation and stored, never recomputed
	// on read, so the room index stays usable.
	RoomID    string    `gorm:"index;not null" json:"roomId"`
	IsRead    bool      `gorm:"default:false" json:"isRead"`
	IsDeleted bool      `gorm:"default:false;index" json:"isDeleted"`
	// Seq breaks ordering ties between messages created in the same
	// millisecond; assigned monotonically by the ingestion gate.
	Seq       int64     `gorm:"index" json:"-"`
	CreatedAt time.Time `gorm:"index" json:"createdAt"`
}

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	return nil
}

// SendMessageRequest is the request structure for sending a message
type SendMessageRequest struct {
	TaskID      string      `json:"taskId" binding:"required"`
	ReceiverID  string      `json:"receiverId" binding:"required"`
	Content     string      `json:"content" binding:"required"`
	MessageType MessageType `json:"messageType"`
}

// UserSummary is the counterparty projection attached to conversations
type UserSummary struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar,omitempty"`
}

// TaskSummary is the task projection attached to conversations
type TaskSummary struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Status string `json:"status"`
}

// Conversation is the derived per-viewer projection of one room. It has no
// independent lifecycle; every listing recomputes it from the message log.
type Conversation struct {
	RoomID          string       `json:"roomId"`
	TaskID          string       `json:"taskId"`
	OtherUserID     string       `json:"otherUserId"`
	Task            *TaskSummary `json:"task,omitempty"`
	OtherUser       *UserSummary `json:"otherUser,omitempty"`
	LastMessage     string       `json:"lastMessage"`
	LastMessageType MessageType  `json:"lastMessageType"`
	LastMessageTime time.Time    `json:"lastMessageTime"`
	UnreadCount     int          `json:"unreadCount"`
}

// RoomMessagesPage is one page of a room's history
type RoomMessagesPage struct {
	Messages []Message `json:"messages"`
	Total    int64     `json:"total"`
	Page     int       `json:"page"`
	PageSize int       `json:"pageSize"`
}
