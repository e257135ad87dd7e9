package services

import (
	"log/slog"
	"pick-roll/moderation"
	"pick-roll/observability"
	"pick-roll/repositories"
	"pick-roll/search"
	"testing"
	"time"

	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store     *repositories.DocumentRepository
	index     *search.Index
	moderator moderation.Moderator
	metrics   *observability.Metrics
	log       *slog.Logger
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	writer, err := bluge.OpenWriter(bluge.DefaultConfig(t.TempDir()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = writer.Close() })

	moderator, err := moderation.NewModerator([]string{"flop"}, '*', log)
	require.NoError(t, err)

	return fixture{
		store:     repositories.NewDocumentRepository(db, log),
		index:     search.NewIndex(writer, log),
		moderator: moderator,
		metrics:   observability.NewMetrics(prometheus.NewRegistry()),
		log:       log,
	}
}

func waitFor[T any](t *testing.T, updates <-chan T) T {
	t.Helper()
	select {
	case v := <-updates:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("no update delivered")
		var zero T
		return zero
	}
}
