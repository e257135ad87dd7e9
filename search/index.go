package search

import (
	"context"
	"fmt"
	"log/slog"
	"pick-roll/domain"
	"pick-roll/errors"
	"strings"

	"github.com/blugelabs/bluge"
)

const (
	idField     = "_id"
	textField   = "text"
	authorField = "author"
)

// Index is the full-text index of the feed.
type Index struct {
	writer *bluge.Writer
	log    *slog.Logger
}

func NewIndex(writer *bluge.Writer, log *slog.Logger) *Index {
	return &Index{writer: writer, log: log}
}

// IndexPost adds or replaces the post in the index.
func (i *Index) IndexPost(post domain.Post) error {
	doc := bluge.NewDocument(post.ID).
		AddField(bluge.NewTextField(textField, post.Title+" "+post.Content)).
		AddField(bluge.NewKeywordField(authorField, strings.ToLower(post.UserEmail)))
	if err := i.writer.Update(doc.ID(), doc); err != nil {
		return fmt.Errorf("indexing post %s: %w", post.ID, err)
	}
	return nil
}

// Search returns the ids of the matching posts, best match first.
func (i *Index) Search(ctx context.Context, query Query) ([]string, error) {
	if query.IsEmpty() {
		return nil, fmt.Errorf("%w: empty search", errors.ErrInvalidArgument)
	}

	q := bluge.NewBooleanQuery()
	if query.Terms != "" {
		q.AddMust(bluge.NewMatchQuery(query.Terms).SetField(textField))
	}
	if query.Author != "" {
		q.AddMust(bluge.NewTermQuery(strings.ToLower(query.Author)).SetField(authorField))
	}

	reader, err := i.writer.Reader()
	if err != nil {
		return nil, err
	}
	defer func() { _ = reader.Close() }()

	matches, err := reader.Search(ctx, bluge.NewTopNSearch(query.Limit, q))
	if err != nil {
		return nil, err
	}

	var ids []string
	match, err := matches.Next()
	for err == nil && match != nil {
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			if field == idField {
				ids = append(ids, string(value))
			}
			return true
		})
		if err != nil {
			return nil, err
		}
		match, err = matches.Next()
	}
	if err != nil {
		return nil, err
	}
	i.log.Debug("Feed searched", "terms", query.Terms, "author", query.Author, "hits", len(ids))
	return ids, nil
}
