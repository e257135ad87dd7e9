package privatechat

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"pick-roll/contract"
	"pick-roll/errors"
	"pick-roll/observability"
)

const (
	ConversationsCollection = "private-chats"
	MessagesCollection      = "messages"
	participantsField       = "participants"
)

// ConversationPath is the document path of a conversation record.
func ConversationPath(key string) string {
	return ConversationsCollection + "/" + key
}

// MessagesPath is the collection holding the messages of a conversation.
func MessagesPath(key string) string {
	return ConversationPath(key) + "/" + MessagesCollection
}

// Gate makes sure a conversation record exists before anything is written under it.
//
// Overlapping calls for a key that is not cached yet may both read and both
// create: Set is an upsert on the same path, so the outcome is one record.
type Gate struct {
	store   contract.DocumentStore
	cache   *ConversationCache
	log     *slog.Logger
	metrics *observability.Metrics
}

func NewGate(store contract.DocumentStore, cache *ConversationCache,
	log *slog.Logger, metrics *observability.Metrics) *Gate {
	return &Gate{store: store, cache: cache, log: log, metrics: metrics}
}

// Ensure returns the conversation key once the record is known to exist.
// The key is only cached after a successful read or create.
func (g *Gate) Ensure(ctx context.Context, idA, idB string) (string, error) {
	key, err := DeriveConversationKey(idA, idB)
	if err != nil {
		return "", err
	}

	if g.cache.Confirmed(key) {
		g.metrics.GateCacheHits.Inc()
		g.log.Debug("Conversation found in cache", "key", key)
		return key, nil
	}

	g.metrics.GateStoreReads.Inc()
	path := ConversationPath(key)
	_, found, err := g.store.Get(ctx, path)
	if err != nil {
		return "", backendError(err)
	}

	if !found {
		err = g.store.Set(ctx, path, contract.Fields{
			participantsField: Participants(idA, idB),
		})
		if err != nil {
			return "", backendError(err)
		}
		g.metrics.ConversationsCreated.Inc()
		g.log.Info("Conversation created", "key", key)
	}

	g.cache.Confirm(key)
	return key, nil
}

// backendError keeps PermissionDenied and InvalidArgument visible and reports
// anything else as BackendUnavailable.
func backendError(err error) error {
	switch {
	case stderrors.Is(err, errors.ErrPermissionDenied),
		stderrors.Is(err, errors.ErrBackendUnavailable),
		stderrors.Is(err, errors.ErrInvalidArgument):
		return err
	}
	return fmt.Errorf("%w: %w", errors.ErrBackendUnavailable, err)
}
