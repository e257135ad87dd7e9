package privatechat

import (
	"context"
	"fmt"
	"log/slog"
	"pick-roll/contract"
	"pick-roll/errors"
	"pick-roll/mocks"
	"pick-roll/observability"
	"pick-roll/repositories"
	"sync"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newTestGate(t *testing.T) (*Gate, *mocks.MockDocumentStore, *ConversationCache, *observability.Metrics) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockDocumentStore(ctrl)
	cache := NewConversationCache()
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	gate := NewGate(store, cache, logs.GetLoggerFromLevel(slog.LevelDebug), metrics)
	return gate, store, cache, metrics
}

func newBadgerGate(t *testing.T) (*Gate, *repositories.DocumentRepository, *ConversationCache) {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	store := repositories.NewDocumentRepository(db, log)
	cache := NewConversationCache()
	return NewGate(store, cache, log, observability.NewMetrics(prometheus.NewRegistry())), store, cache
}

func TestGate_Ensure_Creates_Missing_Conversation(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	gate, store, cache, metrics := newTestGate(t)

	// Given no conversation record exists
	store.EXPECT().Get(ctx, "private-chats/u1_u2").Return(contract.Document{}, false, nil).Times(1)
	store.EXPECT().
		Set(ctx, "private-chats/u1_u2", contract.Fields{"participants": []string{"u1", "u2"}}).
		Return(nil).
		Times(1)

	// When the gate is crossed
	key, err := gate.Ensure(ctx, "u1", "u2")

	// Then one read and one write happened and the key is cached
	req.NoError(err)
	req.Equal("u1_u2", key)
	req.True(cache.Confirmed("u1_u2"))
	req.Equal(float64(1), testutil.ToFloat64(metrics.ConversationsCreated))
}

func TestGate_Ensure_Twice_Creates_Once(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	gate, store, _, metrics := newTestGate(t)

	store.EXPECT().Get(ctx, "private-chats/u1_u2").Return(contract.Document{}, false, nil).Times(1)
	store.EXPECT().Set(ctx, "private-chats/u1_u2", gomock.Any()).Return(nil).Times(1)

	_, err := gate.Ensure(ctx, "u1", "u2")
	req.NoError(err)

	// When called again with the arguments reversed, no backend call is made
	key, err := gate.Ensure(ctx, "u2", "u1")
	req.NoError(err)
	req.Equal("u1_u2", key)
	req.Equal(float64(1), testutil.ToFloat64(metrics.GateCacheHits))
	req.Equal(float64(1), testutil.ToFloat64(metrics.GateStoreReads))
}

func TestGate_Ensure_Existing_Conversation_Is_Not_Rewritten(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	gate, store, cache, _ := newTestGate(t)

	existing := contract.Document{ID: "u1_u2", Path: "private-chats/u1_u2",
		Fields: contract.Fields{"participants": []any{"u1", "u2"}}}
	store.EXPECT().Get(ctx, "private-chats/u1_u2").Return(existing, true, nil).Times(1)
	store.EXPECT().Set(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	_, err := gate.Ensure(ctx, "u2", "u1")

	req.NoError(err)
	req.True(cache.Confirmed("u1_u2"))
}

func TestGate_Ensure_Invalid_Ids_Never_Reach_The_Store(t *testing.T) {
	req := require.New(t)
	gate, store, cache, _ := newTestGate(t)

	store.EXPECT().Get(gomock.Any(), gomock.Any()).Times(0)
	store.EXPECT().Set(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	_, err := gate.Ensure(context.Background(), "", "u2")

	req.ErrorIs(err, errors.ErrInvalidArgument)
	req.Zero(cache.Len())
}

func TestGate_Ensure_Read_Failure_Is_Not_Cached(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	gate, store, cache, _ := newTestGate(t)

	gomock.InOrder(
		store.EXPECT().Get(ctx, "private-chats/u1_u2").
			Return(contract.Document{}, false, fmt.Errorf("connection reset")),
		store.EXPECT().Get(ctx, "private-chats/u1_u2").
			Return(contract.Document{}, true, nil),
	)

	// When the first read fails
	_, err := gate.Ensure(ctx, "u1", "u2")

	// Then the failure surfaces as BackendUnavailable and nothing is cached
	req.ErrorIs(err, errors.ErrBackendUnavailable)
	req.False(cache.Confirmed("u1_u2"))

	// And a retry checks the store again
	_, err = gate.Ensure(ctx, "u1", "u2")
	req.NoError(err)
	req.True(cache.Confirmed("u1_u2"))
}

func TestGate_Ensure_Write_Failure_Keeps_Permission_Denied(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	gate, store, cache, _ := newTestGate(t)

	store.EXPECT().Get(ctx, "private-chats/u1_u2").Return(contract.Document{}, false, nil)
	store.EXPECT().Set(ctx, "private-chats/u1_u2", gomock.Any()).
		Return(fmt.Errorf("%w: rules rejected write", errors.ErrPermissionDenied))

	_, err := gate.Ensure(ctx, "u1", "u2")

	req.ErrorIs(err, errors.ErrPermissionDenied)
	req.False(cache.Confirmed("u1_u2"))
}

func TestConversationPaths(t *testing.T) {
	req := require.New(t)
	req.Equal("private-chats/u1_u2", ConversationPath("u1_u2"))
	req.Equal("private-chats/u1_u2/messages", MessagesPath("u1_u2"))
}

func TestGate_Ensure_Concurrent_First_Contact_Yields_One_Record(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	gate, store, cache := newBadgerGate(t)
	const callers = 16
	keys := make([]string, callers)
	errs := make([]error, callers)

	// Given both participants open the conversation at the same time
	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if i%2 == 0 {
				keys[i], errs[i] = gate.Ensure(ctx, "u2", "u1")
				return
			}
			keys[i], errs[i] = gate.Ensure(ctx, " u1", "u2 ")
		}()
	}
	wg.Wait()

	// Then every caller got the same key
	for i := range callers {
		req.NoError(errs[i])
		req.Equal("u1_u2", keys[i])
	}
	req.True(cache.Confirmed("u1_u2"))

	// And a single record holds the sorted participants
	docs, err := store.Query(ctx, ConversationsCollection, contract.Order{})
	req.NoError(err)
	req.Len(docs, 1)
	req.Equal("u1_u2", docs[0].ID)
	req.Equal([]string{"u1", "u2"}, docs[0].Strings(participantsField))
}

func TestGate_Ensure_Refuses_Ids_Addressing_Another_Record(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	gate, store, _ := newBadgerGate(t)

	// Given an existing conversation between w and x
	key, err := gate.Ensure(ctx, "w", "x")
	req.NoError(err)
	req.Equal("w_x", key)

	// When an id tries to reach under that conversation
	_, err = gate.Ensure(ctx, "w", "x/messages/forged")

	// Then nothing is written there
	req.ErrorIs(err, errors.ErrInvalidArgument)
	messages, err := store.Query(ctx, MessagesPath("w_x"), contract.Order{})
	req.NoError(err)
	req.Empty(messages)
	_, found, err := store.Get(ctx, ConversationPath("w_x/messages/forged"))
	req.NoError(err)
	req.False(found)
}
