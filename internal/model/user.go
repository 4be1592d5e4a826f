package model

import "time"

// User is an account. It can sign in with email/password, GitHub, or both.
//
// GitHubID is zero for accounts that never used GitHub; the stores keep it
// as NULL so the unique index only applies to real GitHub ids.
type User struct {
	ID           string    `json:"id"        bson:"_id"`
	Login        string    `json:"login"     bson:"login"`
	Email        string    `json:"email"     bson:"email"`
	PasswordHash string    `json:"-"         bson:"password_hash,omitempty"`
	GitHubID     int64     `json:"githubId,omitempty" bson:"github_id,omitempty"`
	AvatarURL    string    `json:"avatarUrl" bson:"avatar_url"`
	CreatedAt    time.Time `json:"createdAt" bson:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt" bson:"updated_at"`
}
