package domain

import (
	"time"
)

// Message is a persisted chat message between two users. Messages are
// immutable once created; the image field holds a URL into object
// storage, never the image bytes.
type Message struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"sender_id"`
	ReceiverID string    `json:"receiver_id"`
	Text       string    `json:"text,omitempty"`
	Image      string    `json:"image,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// MessageModel is the GORM model for the messages table.
type MessageModel struct {
	ID         string    `gorm:"type:varchar(36);primaryKey"`
	SenderID   string    `gorm:"type:varchar(36);index;not null"`
	ReceiverID string    `gorm:"type:varchar(36);index;not null"`
	Text       string    `gorm:"type:text"`
	Image      string    `gorm:"type:varchar(512)"`
	CreatedAt  time.Time `gorm:"autoCreateTime;index"`
}

// TableName specifies the table name for MessageModel.
func (MessageModel) TableName() string {
	return "messages"
}

// ToDomain converts MessageModel to domain Message.
func (m *MessageModel) ToDomain() *Message {
	return &Message{
		ID:         m.ID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Text:       m.Text,
		Image:      m.Image,
		CreatedAt:  m.CreatedAt,
	}
}

// MessageToModel converts domain Message to MessageModel.
func MessageToModel(msg *Message) *MessageModel {
	return &MessageModel{
		ID:         msg.ID,
		SenderID:   msg.SenderID,
		ReceiverID: msg.ReceiverID,
		Text:       msg.Text,
		Image:      msg.Image,
		CreatedAt:  msg.CreatedAt,
	}
}

// SendMessageRequest is the body of POST /messages/send/:id. Image is
// a base64 payload (optionally a data URI); at least one of Text and
// Image must be present, which the relay enforces.
type SendMessageRequest struct {
	Text  string `json:"text"`
	Image string `json:"image"`
}
