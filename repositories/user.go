//go:generate go run go.uber.org/mock/mockgen -source=user.go -destination=../mocks/mock_user_repository.go -package=mocks
package repositories

import (
	"context"
	stderrors "errors"
	"fmt"
	"pick-roll/contract"
	"pick-roll/domain"
	"pick-roll/errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	AccountsCollection = "accounts"
	UsersCollection    = "users"
)

// Profile document fields.
const (
	FieldEmail        = "email"
	FieldDisplayName  = "displayName"
	FieldBio          = "bio"
	FieldNBAFavorites = "nbaFavorites"
	FieldLocation     = "location"
	FieldCareer       = "career"
	FieldPhotoURL     = "photoURL"
	FieldRole         = "role"
)

type IUserRepository interface {
	CreateAccount(ctx context.Context, email, passwordHash string) (Account, error)
	GetAccount(ctx context.Context, email string) (Account, error)
	UpdatePassword(ctx context.Context, email, passwordHash string) error
	CreateProfile(ctx context.Context, profile domain.UserProfile) error
	GetProfile(ctx context.Context, userID string) (domain.UserProfile, error)
	UpdateProfile(ctx context.Context, userID string, fields contract.Fields) error
}

// Account holds the credentials of a user, keyed by email.
type Account struct {
	ID           string
	Email        string
	PasswordHash string
	Roles        []string
	CreatedAt    *time.Time
}

type UserRepository struct {
	store contract.DocumentStore
}

func NewUserRepository(store contract.DocumentStore) IUserRepository {
	return &UserRepository{store: store}
}

// NormalizeEmail is the form emails are stored and looked up with.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CreateAccount stores the credentials under accounts/{email} with a fresh user id.
// It fails with ErrUserAlreadyExists when the email is taken.
func (u *UserRepository) CreateAccount(ctx context.Context, email, passwordHash string) (Account, error) {
	account := Account{
		ID:           uuid.New().String(),
		Email:        NormalizeEmail(email),
		PasswordHash: passwordHash,
		Roles:        []string{domain.RoleUser},
	}
	err := u.store.Create(ctx, accountPath(account.Email), contract.Fields{
		"uid":           account.ID,
		"email":         account.Email,
		"password_hash": account.PasswordHash,
		"roles":         account.Roles,
		"created_at":    contract.ServerTimestamp,
	})
	if stderrors.Is(err, errors.ErrAlreadyExists) {
		return Account{}, errors.ErrUserAlreadyExists
	}
	if err != nil {
		return Account{}, err
	}
	return account, nil
}

func (u *UserRepository) GetAccount(ctx context.Context, email string) (Account, error) {
	doc, found, err := u.store.Get(ctx, accountPath(NormalizeEmail(email)))
	if err != nil {
		return Account{}, err
	}
	if !found {
		return Account{}, fmt.Errorf("%w: account %s", errors.ErrNotFound, email)
	}
	return Account{
		ID:           doc.String("uid"),
		Email:        doc.String("email"),
		PasswordHash: doc.String("password_hash"),
		Roles:        doc.Strings("roles"),
		CreatedAt:    doc.Time("created_at"),
	}, nil
}

func (u *UserRepository) UpdatePassword(ctx context.Context, email, passwordHash string) error {
	return u.store.Update(ctx, accountPath(NormalizeEmail(email)), contract.Fields{
		"password_hash": passwordHash,
	})
}

func (u *UserRepository) CreateProfile(ctx context.Context, profile domain.UserProfile) error {
	if profile.ID == "" {
		return fmt.Errorf("%w: profile without id", errors.ErrInvalidArgument)
	}
	role := profile.Role
	if role == "" {
		role = domain.RoleUser
	}
	return u.store.Set(ctx, profilePath(profile.ID), contract.Fields{
		FieldEmail: profile.Email,
		FieldRole:  role,
	})
}

// GetProfile returns ErrNotFound when users/{id} does not exist.
func (u *UserRepository) GetProfile(ctx context.Context, userID string) (domain.UserProfile, error) {
	if strings.TrimSpace(userID) == "" {
		return domain.UserProfile{}, fmt.Errorf("%w: empty user id", errors.ErrInvalidArgument)
	}
	doc, found, err := u.store.Get(ctx, profilePath(userID))
	if err != nil {
		return domain.UserProfile{}, err
	}
	if !found {
		return domain.UserProfile{}, fmt.Errorf("%w: user %s", errors.ErrNotFound, userID)
	}
	return toUserProfile(doc), nil
}

// UpdateProfile merges fields into users/{id}.
func (u *UserRepository) UpdateProfile(ctx context.Context, userID string, fields contract.Fields) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("%w: empty user id", errors.ErrInvalidArgument)
	}
	return u.store.Update(ctx, profilePath(userID), fields)
}

func toUserProfile(doc contract.Document) domain.UserProfile {
	return domain.UserProfile{
		ID:           doc.ID,
		Email:        doc.String(FieldEmail),
		DisplayName:  doc.String(FieldDisplayName),
		Bio:          doc.String(FieldBio),
		NBAFavorites: doc.String(FieldNBAFavorites),
		Location:     doc.String(FieldLocation),
		Career:       doc.String(FieldCareer),
		PhotoURL:     doc.String(FieldPhotoURL),
		Role:         doc.String(FieldRole),
	}
}

func accountPath(email string) string {
	return AccountsCollection + "/" + email
}

func profilePath(userID string) string {
	return UsersCollection + "/" + userID
}
