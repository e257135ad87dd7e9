package services

import (
	"bufio"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"pick-roll/auth"
	"pick-roll/contract"
	"pick-roll/domain"
	"pick-roll/domain/mimetypes"
	"pick-roll/errors"
	"pick-roll/repositories"
	"pick-roll/runtime"
	"pick-roll/storage"
	"strings"
	"sync"

	"github.com/samber/lo"
)

// sniffLength is how many bytes mimetype needs to recognise common image formats.
const sniffLength = 3072

type IAuthService interface {
	Register(ctx context.Context, email, password string) (Session, error)
	Login(ctx context.Context, email, password string) (Session, error)
	Authenticate(token string) (*auth.Claims, error)
	ChangePassword(ctx context.Context, userID, newPassword string) error
	CurrentUser(ctx context.Context, userID string) (domain.UserData, error)
	UpdateUser(ctx context.Context, userID string, update domain.ProfileUpdate) (domain.UserData, error)
	UpdatePhoto(ctx context.Context, userID string, photo io.Reader) (string, error)
	IsAdmin(ctx context.Context, userID string) (bool, error)
	SubscribeToUser(ctx context.Context, userID string, fn func(domain.UserData)) (func(), error)
	Logout(userID string)
}

// Session is returned on registration and login.
type Session struct {
	Token string          `json:"token"`
	User  domain.UserData `json:"user"`
}

type AuthService struct {
	users     repositories.IUserRepository
	tokens    *auth.TokenIssuer
	blobs     contract.BlobStorage
	observers *runtime.Hub[domain.UserData]
	log       *slog.Logger
}

func NewAuthService(users repositories.IUserRepository, tokens *auth.TokenIssuer,
	blobs contract.BlobStorage, log *slog.Logger) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		blobs:     blobs,
		observers: runtime.NewHub[domain.UserData](),
		log:       log,
	}
}

// Register creates the credentials and the profile {email, role: user},
// then opens a session.
func (s *AuthService) Register(ctx context.Context, email, password string) (Session, error) {
	email = repositories.NormalizeEmail(email)
	// Validation runs before any expensive hashing
	if err := auth.ValidateRegister(auth.RegisterRequest{Email: email, Password: password}); err != nil {
		return Session{}, err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return Session{}, fmt.Errorf("hashing failed: %w", err)
	}
	account, err := s.users.CreateAccount(ctx, email, hash)
	if err != nil {
		return Session{}, err
	}
	profile := domain.UserProfile{ID: account.ID, Email: account.Email, Role: domain.RoleUser}
	if err = s.users.CreateProfile(ctx, profile); err != nil {
		return Session{}, err
	}
	s.log.Info("User registered", "user_id", account.ID)

	return s.openSession(account, profile)
}

// Login never tells an unknown email from a wrong password.
func (s *AuthService) Login(ctx context.Context, email, password string) (Session, error) {
	account, err := s.users.GetAccount(ctx, email)
	if stderrors.Is(err, errors.ErrNotFound) {
		return Session{}, errors.ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, err
	}

	match, err := auth.ComparePassword(password, account.PasswordHash)
	if err != nil || !match {
		return Session{}, errors.ErrInvalidCredentials
	}

	profile, err := s.users.GetProfile(ctx, account.ID)
	if stderrors.Is(err, errors.ErrNotFound) {
		profile = domain.UserProfile{ID: account.ID, Email: account.Email, Role: domain.RoleUser}
	} else if err != nil {
		return Session{}, err
	}
	return s.openSession(account, profile)
}

func (s *AuthService) Authenticate(token string) (*auth.Claims, error) {
	if strings.TrimSpace(token) == "" {
		return nil, errors.ErrNotAuthenticated
	}
	return s.tokens.Validate(token)
}

func (s *AuthService) ChangePassword(ctx context.Context, userID, newPassword string) error {
	if err := auth.ValidatePassword(newPassword); err != nil {
		return err
	}
	profile, err := s.users.GetProfile(ctx, userID)
	if err != nil {
		return err
	}
	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hashing failed: %w", err)
	}
	if err = s.users.UpdatePassword(ctx, profile.Email, hash); err != nil {
		return err
	}
	s.log.Info("Password changed", "user_id", userID)
	return nil
}

// CurrentUser returns the full snapshot of a signed-in user.
// An admin role claim in the request identity also grants admin.
func (s *AuthService) CurrentUser(ctx context.Context, userID string) (domain.UserData, error) {
	profile, err := s.users.GetProfile(ctx, userID)
	if err != nil {
		return domain.UserData{}, err
	}
	data := toUserData(profile)
	if claims, ok := auth.ClaimsFrom(ctx); ok && claims.UserID == userID && claims.HasRole(domain.RoleAdmin) {
		data.IsAdmin = true
		data.Role = domain.RoleAdmin
	}
	return data, nil
}

func (s *AuthService) UpdateUser(ctx context.Context, userID string, update domain.ProfileUpdate) (domain.UserData, error) {
	if err := validateStruct(update); err != nil {
		return domain.UserData{}, err
	}
	err := s.users.UpdateProfile(ctx, userID, contract.Fields{
		repositories.FieldDisplayName:  strings.TrimSpace(update.DisplayName),
		repositories.FieldBio:          strings.TrimSpace(update.Bio),
		repositories.FieldNBAFavorites: strings.TrimSpace(update.NBAFavorites),
		repositories.FieldLocation:     strings.TrimSpace(update.Location),
		repositories.FieldCareer:       strings.TrimSpace(update.Career),
	})
	if err != nil {
		return domain.UserData{}, err
	}
	return s.publish(ctx, userID)
}

// UpdatePhoto stores the avatar at users/{id}/avatar.{ext} and saves its URL on the profile.
// Only PNG, JPEG, GIF and WebP images are accepted.
func (s *AuthService) UpdatePhoto(ctx context.Context, userID string, photo io.Reader) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", fmt.Errorf("%w: empty user id", errors.ErrInvalidArgument)
	}
	buffered := bufio.NewReaderSize(photo, sniffLength)
	head, err := buffered.Peek(sniffLength)
	if err != nil && !stderrors.Is(err, io.EOF) && !stderrors.Is(err, bufio.ErrBufferFull) {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			return "", fmt.Errorf("%w: photo exceeds %d bytes", errors.ErrInvalidArgument, tooLarge.Limit)
		}
		return "", fmt.Errorf("%w: reading photo: %v", errors.ErrInvalidArgument, err)
	}
	if !mimetypes.OneOf(storage.MimeType(head), mimetypes.ProfilePhotos...) {
		return "", fmt.Errorf("%w: photo is not an image", errors.ErrInvalidArgument)
	}

	name := fmt.Sprintf("%s/%s/avatar%s", repositories.UsersCollection, userID, storage.Extension(head))
	if err = s.blobs.Upload(ctx, name, buffered); err != nil {
		return "", err
	}
	url, err := s.blobs.URL(ctx, name)
	if err != nil {
		return "", err
	}
	if err = s.users.UpdateProfile(ctx, userID, contract.Fields{repositories.FieldPhotoURL: url}); err != nil {
		return "", err
	}
	if _, err = s.publish(ctx, userID); err != nil {
		return "", err
	}
	return url, nil
}

func (s *AuthService) IsAdmin(ctx context.Context, userID string) (bool, error) {
	data, err := s.CurrentUser(ctx, userID)
	if err != nil {
		return false, err
	}
	return data.IsAdmin, nil
}

// SubscribeToUser calls fn with the current snapshot, then after every profile change.
// A change published while the snapshot is read supersedes it.
func (s *AuthService) SubscribeToUser(ctx context.Context, userID string, fn func(domain.UserData)) (func(), error) {
	var mu sync.Mutex
	published := false
	cancel := s.observers.Subscribe(userID, func(data domain.UserData) {
		mu.Lock()
		defer mu.Unlock()
		published = true
		fn(data)
	})
	current, err := s.CurrentUser(ctx, userID)
	if err != nil {
		cancel()
		return nil, err
	}
	mu.Lock()
	defer mu.Unlock()
	if !published {
		fn(current)
	}
	return cancel, nil
}

// Logout tells the observers of the user that the session ended.
// Tokens are stateless and stay valid until they expire.
func (s *AuthService) Logout(userID string) {
	s.observers.Publish(userID, domain.UserData{})
	s.log.Info("User logged out", "user_id", userID)
}

func (s *AuthService) publish(ctx context.Context, userID string) (domain.UserData, error) {
	data, err := s.CurrentUser(ctx, userID)
	if err != nil {
		return domain.UserData{}, err
	}
	s.observers.Publish(userID, data)
	return data, nil
}

func (s *AuthService) openSession(account repositories.Account, profile domain.UserProfile) (Session, error) {
	token, err := s.tokens.Generate(account.ID, account.Email, account.Roles)
	if err != nil {
		return Session{}, err
	}
	data := toUserData(profile)
	if lo.Contains(account.Roles, domain.RoleAdmin) {
		data.IsAdmin = true
	}
	return Session{Token: token, User: data}, nil
}

func toUserData(profile domain.UserProfile) domain.UserData {
	return domain.UserData{
		UserProfile: profile,
		IsAdmin:     profile.Role == domain.RoleAdmin,
		FullyLoaded: true,
	}
}
