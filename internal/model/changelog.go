package model

import "time"

// ChangelogEntry is a release note shown to every user.
type ChangelogEntry struct {
	ID        string    `json:"id"        bson:"_id"`
	Version   string    `json:"version"   bson:"version"`
	Date      string    `json:"date"      bson:"date"`
	Changes   []string  `json:"changes"   bson:"changes"`
	CreatedAt time.Time `json:"createdAt" bson:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updated_at"`
}
