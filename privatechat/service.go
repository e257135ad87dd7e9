package privatechat

import (
	"context"
	"fmt"
	"log/slog"
	"pick-roll/contract"
	"pick-roll/domain"
	"pick-roll/errors"
	"pick-roll/observability"
	"strings"

	"github.com/samber/lo"
)

const (
	senderField    = "sender_id"
	contentField   = "content"
	createdAtField = "created_at"
)

// Service sends and follows the messages of one-to-one conversations.
type Service struct {
	gate    *Gate
	store   contract.DocumentStore
	log     *slog.Logger
	metrics *observability.Metrics
}

func NewService(gate *Gate, store contract.DocumentStore, log *slog.Logger, metrics *observability.Metrics) *Service {
	return &Service{gate: gate, store: store, log: log, metrics: metrics}
}

// SendMessage appends a message to the conversation between sender and receiver
// and returns the id of the new message.
func (s *Service) SendMessage(ctx context.Context, senderID, receiverID, content string) (string, error) {
	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("%w: empty message", errors.ErrInvalidArgument)
	}
	key, err := s.gate.Ensure(ctx, senderID, receiverID)
	if err != nil {
		return "", err
	}

	id, err := s.store.Add(ctx, MessagesPath(key), contract.Fields{
		senderField:    strings.TrimSpace(senderID),
		contentField:   content,
		createdAtField: contract.ServerTimestamp,
	})
	if err != nil {
		return "", backendError(err)
	}
	s.metrics.MessagesSent.WithLabelValues(observability.KindPrivate).Inc()
	return id, nil
}

// Subscribe delivers the whole conversation, oldest first, on every change.
// A message still waiting for its server timestamp has a nil CreatedAt.
func (s *Service) Subscribe(ctx context.Context, senderID, receiverID string,
	onChange func([]domain.PrivateMessage)) (contract.Unsubscribe, error) {
	key, err := s.gate.Ensure(ctx, senderID, receiverID)
	if err != nil {
		return nil, err
	}

	unsubscribe, err := s.store.Subscribe(ctx, MessagesPath(key), contract.Order{Field: createdAtField},
		func(docs []contract.Document) {
			onChange(lo.Map(docs, func(doc contract.Document, _ int) domain.PrivateMessage {
				return toPrivateMessage(doc)
			}))
		})
	if err != nil {
		return nil, backendError(err)
	}
	s.log.Debug("Private conversation followed", "key", key)
	return unsubscribe, nil
}

func toPrivateMessage(doc contract.Document) domain.PrivateMessage {
	return domain.PrivateMessage{
		ID:        doc.ID,
		SenderID:  doc.String(senderField),
		Content:   doc.String(contentField),
		CreatedAt: doc.Time(createdAtField),
	}
}
