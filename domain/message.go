// Package domain contains core concepts of the Pick & Roll social app.
// This file defines chat messages.
package domain

import (
	"time"
)

// PrivateMessage is a message of a one-to-one conversation.
// CreatedAt is nil until the store has assigned the server timestamp.
type PrivateMessage struct {
	ID        string     `json:"id"`
	SenderID  string     `json:"sender_id"`
	Content   string     `json:"content"`
	CreatedAt *time.Time `json:"created_at"`
}

// ChatMessage is a message of the public chat room.
type ChatMessage struct {
	ID        string     `json:"id,omitempty"`
	UserID    string     `json:"user_id"`
	Email     string     `json:"email"`
	Content   string     `json:"content"`
	Lang      string     `json:"lang,omitempty"`
	CreatedAt *time.Time `json:"created_at"`
}
