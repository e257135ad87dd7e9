package services

import (
	"context"
	"fmt"
	"log/slog"
	"pick-roll/contract"
	"pick-roll/domain"
	"pick-roll/errors"
	"pick-roll/moderation"
	"pick-roll/observability"
	"strings"

	"github.com/samber/lo"
)

const ChatCollection = "chat"

type IPublicChatService interface {
	SaveMessage(ctx context.Context, message domain.ChatMessage) (string, error)
	Subscribe(ctx context.Context, onChange func([]domain.ChatMessage)) (contract.Unsubscribe, error)
}

type PublicChatService struct {
	store     contract.DocumentStore
	moderator moderation.Moderator
	log       *slog.Logger
	metrics   *observability.Metrics
}

func NewPublicChatService(store contract.DocumentStore, moderator moderation.Moderator,
	log *slog.Logger, metrics *observability.Metrics) *PublicChatService {
	return &PublicChatService{store: store, moderator: moderator, log: log, metrics: metrics}
}

type chatMessageInput struct {
	UserID  string `validate:"required"`
	Email   string `validate:"required,email"`
	Content string `validate:"required,max=2000"`
}

// SaveMessage stores a censored message in the public room.
// Missing user id, email or content fails with ErrIncompleteMessage.
func (s *PublicChatService) SaveMessage(ctx context.Context, message domain.ChatMessage) (string, error) {
	input := chatMessageInput{
		UserID:  strings.TrimSpace(message.UserID),
		Email:   strings.TrimSpace(message.Email),
		Content: strings.TrimSpace(message.Content),
	}
	if input.UserID == "" || input.Email == "" || input.Content == "" {
		s.log.Debug("Incomplete chat message refused", "user_id", input.UserID)
		return "", errors.ErrIncompleteMessage
	}
	if err := validateStruct(input); err != nil {
		return "", err
	}

	content, censored := s.moderator.Censor(input.Content)
	if len(censored) > 0 {
		s.log.Info("Chat message censored", "user_id", input.UserID, "words", len(censored))
	}

	id, err := s.store.Add(ctx, ChatCollection, contract.Fields{
		"user_id":    input.UserID,
		"email":      input.Email,
		"content":    content,
		"lang":       moderation.DetectLanguage(input.Content),
		"created_at": contract.ServerTimestamp,
	})
	if err != nil {
		return "", fmt.Errorf("saving chat message: %w", err)
	}
	s.metrics.MessagesSent.WithLabelValues(observability.KindPublic).Inc()
	return id, nil
}

// Subscribe delivers the whole room, oldest first, on every change.
func (s *PublicChatService) Subscribe(ctx context.Context, onChange func([]domain.ChatMessage)) (contract.Unsubscribe, error) {
	return s.store.Subscribe(ctx, ChatCollection, contract.Order{Field: "created_at"},
		func(docs []contract.Document) {
			onChange(lo.Map(docs, func(doc contract.Document, _ int) domain.ChatMessage {
				return domain.ChatMessage{
					ID:        doc.ID,
					UserID:    doc.String("user_id"),
					Email:     doc.String("email"),
					Content:   doc.String("content"),
					Lang:      doc.String("lang"),
					CreatedAt: doc.Time("created_at"),
				}
			}))
		})
}
