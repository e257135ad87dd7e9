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
	"pick-roll/search"
	"strings"

	"github.com/samber/lo"
)

const (
	PostsCollection    = "publicaciones"
	CommentsCollection = "comments"
	DefaultLatestPosts = 3
)

type IPostService interface {
	List(ctx context.Context) ([]domain.Post, error)
	Latest(ctx context.Context) ([]domain.Post, error)
	ListByAuthor(ctx context.Context, email string) ([]domain.Post, error)
	Create(ctx context.Context, post domain.Post, userEmail string) (string, error)
	Search(ctx context.Context, text string) ([]domain.Post, error)
	CreateComment(ctx context.Context, postID string, comment domain.Comment, userEmail string) (string, error)
	SubscribeToComments(ctx context.Context, postID string, onChange func([]domain.Comment)) (contract.Unsubscribe, error)
}

type PostService struct {
	store       contract.DocumentStore
	index       *search.Index
	moderator   moderation.Moderator
	log         *slog.Logger
	metrics     *observability.Metrics
	latestLimit int
}

func NewPostService(store contract.DocumentStore, index *search.Index, moderator moderation.Moderator,
	log *slog.Logger, metrics *observability.Metrics, latestLimit int) *PostService {
	if latestLimit <= 0 {
		latestLimit = DefaultLatestPosts
	}
	return &PostService{
		store:       store,
		index:       index,
		moderator:   moderator,
		log:         log,
		metrics:     metrics,
		latestLimit: latestLimit,
	}
}

type postInput struct {
	Title     string `validate:"required,max=150"`
	Content   string `validate:"required,max=5000"`
	UserEmail string `validate:"required,email"`
}

type commentInput struct {
	Content   string `validate:"required,max=1000"`
	UserEmail string `validate:"required,email"`
}

var newestFirst = contract.Order{Field: "timestamp", Direction: contract.Descending}

func (s *PostService) List(ctx context.Context) ([]domain.Post, error) {
	return s.query(ctx, newestFirst)
}

// Latest returns the newest posts, for the home page.
func (s *PostService) Latest(ctx context.Context) ([]domain.Post, error) {
	order := newestFirst
	order.Limit = s.latestLimit
	return s.query(ctx, order)
}

func (s *PostService) ListByAuthor(ctx context.Context, email string) ([]domain.Post, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, fmt.Errorf("%w: empty author", errors.ErrInvalidArgument)
	}
	posts, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return lo.Filter(posts, func(post domain.Post, _ int) bool {
		return strings.EqualFold(post.UserEmail, email)
	}), nil
}

// Create stores the post stamped with its author and a server timestamp, then indexes it.
func (s *PostService) Create(ctx context.Context, post domain.Post, userEmail string) (string, error) {
	input := postInput{
		Title:     strings.TrimSpace(post.Title),
		Content:   strings.TrimSpace(post.Content),
		UserEmail: strings.TrimSpace(userEmail),
	}
	if err := validateStruct(input); err != nil {
		return "", err
	}

	id, err := s.store.Add(ctx, PostsCollection, contract.Fields{
		"title":     input.Title,
		"content":   input.Content,
		"userEmail": input.UserEmail,
		"timestamp": contract.ServerTimestamp,
	})
	if err != nil {
		return "", fmt.Errorf("creating post: %w", err)
	}

	// The post is stored even if indexing fails; Reindex repairs the index.
	if err = s.index.IndexPost(domain.Post{ID: id, Title: input.Title, Content: input.Content, UserEmail: input.UserEmail}); err != nil {
		s.log.Error("Post not indexed", "post_id", id, "error", err)
	}
	s.log.Info("Post created", "post_id", id, "author", input.UserEmail)
	return id, nil
}

// Search runs a full-text query and returns the posts in relevance order.
// Hits whose document has since disappeared are skipped.
func (s *PostService) Search(ctx context.Context, text string) ([]domain.Post, error) {
	ids, err := s.index.Search(ctx, search.NewQuery(text))
	if err != nil {
		return nil, err
	}
	posts := make([]domain.Post, 0, len(ids))
	for _, id := range ids {
		doc, found, err := s.store.Get(ctx, PostsCollection+"/"+id)
		if err != nil {
			return nil, err
		}
		if found {
			posts = append(posts, toPost(doc))
		}
	}
	return posts, nil
}

// Reindex rebuilds the search index from the stored posts.
func (s *PostService) Reindex(ctx context.Context) (int, error) {
	posts, err := s.List(ctx)
	if err != nil {
		return 0, err
	}
	for _, post := range posts {
		if err = s.index.IndexPost(post); err != nil {
			return 0, err
		}
	}
	return len(posts), nil
}

// CreateComment adds a moderated comment under an existing post.
func (s *PostService) CreateComment(ctx context.Context, postID string, comment domain.Comment, userEmail string) (string, error) {
	if err := s.requirePost(ctx, postID); err != nil {
		return "", err
	}
	input := commentInput{
		Content:   strings.TrimSpace(comment.Content),
		UserEmail: strings.TrimSpace(userEmail),
	}
	if err := validateStruct(input); err != nil {
		return "", err
	}

	content, censored := s.moderator.Censor(input.Content)
	if len(censored) > 0 {
		s.log.Info("Comment censored", "post_id", postID, "words", len(censored))
	}
	id, err := s.store.Add(ctx, commentsPath(postID), contract.Fields{
		"content":   content,
		"userEmail": input.UserEmail,
		"timestamp": contract.ServerTimestamp,
	})
	if err != nil {
		return "", fmt.Errorf("creating comment: %w", err)
	}
	s.metrics.MessagesSent.WithLabelValues(observability.KindComment).Inc()
	return id, nil
}

// SubscribeToComments delivers the comments of a post, newest first, on every change.
func (s *PostService) SubscribeToComments(ctx context.Context, postID string,
	onChange func([]domain.Comment)) (contract.Unsubscribe, error) {
	if err := s.requirePost(ctx, postID); err != nil {
		return nil, err
	}
	return s.store.Subscribe(ctx, commentsPath(postID), newestFirst, func(docs []contract.Document) {
		onChange(lo.Map(docs, func(doc contract.Document, _ int) domain.Comment {
			return domain.Comment{
				ID:        doc.ID,
				Content:   doc.String("content"),
				UserEmail: doc.String("userEmail"),
				Timestamp: doc.Time("timestamp"),
			}
		}))
	})
}

func (s *PostService) requirePost(ctx context.Context, postID string) error {
	if strings.TrimSpace(postID) == "" {
		return fmt.Errorf("%w: empty post id", errors.ErrInvalidArgument)
	}
	_, found, err := s.store.Get(ctx, PostsCollection+"/"+postID)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: post %s", errors.ErrNotFound, postID)
	}
	return nil
}

func (s *PostService) query(ctx context.Context, order contract.Order) ([]domain.Post, error) {
	docs, err := s.store.Query(ctx, PostsCollection, order)
	if err != nil {
		return nil, err
	}
	return lo.Map(docs, func(doc contract.Document, _ int) domain.Post {
		return toPost(doc)
	}), nil
}

func toPost(doc contract.Document) domain.Post {
	return domain.Post{
		ID:        doc.ID,
		Title:     doc.String("title"),
		Content:   doc.String("content"),
		UserEmail: doc.String("userEmail"),
		Timestamp: doc.Time("timestamp"),
	}
}

func commentsPath(postID string) string {
	return PostsCollection + "/" + postID + "/" + CommentsCollection
}
