// Package model defines the data structures shared by every layer.
package model

import "time"

// Snippet is a labelled piece of code owned by one user.
//
// SubCategoryName is a pointer so that "no sub-category" serialises as null
// and is stored as NULL, which is what the cascade in the sub-category
// repository writes when a label is deleted.
type Snippet struct {
	ID              string    `json:"id"              bson:"_id"`
	UserID          string    `json:"userId"          bson:"user_id"`
	Title           string    `json:"title"           bson:"title"`
	Description     string    `json:"description"     bson:"description"`
	Code            string    `json:"code"            bson:"code"`
	Category        Category  `json:"category"        bson:"category"`
	SubCategoryName *string   `json:"subCategoryName" bson:"sub_category_name,omitempty"`
	CreatedAt       time.Time `json:"createdAt"       bson:"created_at"`
	UpdatedAt       time.Time `json:"updatedAt"       bson:"updated_at"`
}

// SubCategory is a user-defined label under a parent Category.
// (UserID, ParentCategory, Name) is unique.
type SubCategory struct {
	ID             string    `json:"id"             bson:"_id"`
	UserID         string    `json:"userId"         bson:"user_id"`
	Name           string    `json:"name"           bson:"name"`
	ParentCategory Category  `json:"parentCategory" bson:"parent_category"`
	CreatedAt      time.Time `json:"createdAt"      bson:"created_at"`
}

// StringPtr returns nil for an empty string.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
