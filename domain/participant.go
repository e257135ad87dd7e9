// Package domain contains core concepts of the Pick & Roll social app.
// This file defines users and their public profile.
package domain

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// UserProfile is the public profile stored under users/{id}.
type UserProfile struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	DisplayName  string `json:"displayName"`
	Bio          string `json:"bio"`
	NBAFavorites string `json:"nbaFavorites"`
	Location     string `json:"location"`
	Career       string `json:"career"`
	PhotoURL     string `json:"photoURL"`
	Role         string `json:"role"`
}

// ProfileUpdate carries the editable part of a profile.
type ProfileUpdate struct {
	DisplayName  string `json:"displayName" validate:"max=60"`
	Bio          string `json:"bio" validate:"max=500"`
	NBAFavorites string `json:"nbaFavorites" validate:"max=200"`
	Location     string `json:"location" validate:"max=100"`
	Career       string `json:"career" validate:"max=200"`
}

// UserData is the snapshot pushed to observers of a signed-in user.
type UserData struct {
	UserProfile
	IsAdmin     bool `json:"isAdmin"`
	FullyLoaded bool `json:"fullyLoaded"`
}
