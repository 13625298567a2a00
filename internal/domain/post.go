package domain

import "time"

// Field limits for a post, counted in characters after trimming.
const (
	TitleMinLength   = 1
	TitleMaxLength   = 200
	ContentMinLength = 10
	ContentMaxLength = 5000
	AuthorMinLength  = 1
	AuthorMaxLength  = 100

	SearchTermMaxLength = 100
)

// Post is a stored blog post. UserID and PublishedAt are written once at
// creation and never changed by an update.
type Post struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	Author      string    `json:"author"`
	PublishedAt time.Time `json:"publishedDate"`
	UserID      string    `json:"userId"`
}

// PermissionView is the pair of decisions computed for one caller against one
// post. It is derived on every read and never persisted.
type PermissionView struct {
	CanEdit   bool `json:"canEdit"`
	CanDelete bool `json:"canDelete"`
}

// PostView is a post annotated with the permissions of the caller it was read for.
type PostView struct {
	Post
	PermissionView
}

// PostFilter narrows a store listing. Zero values mean "no constraint".
type PostFilter struct {
	TitleContains string
	OwnerID       string
	Limit         int
}

// PostInput carries the mutable fields of a post as submitted by a caller.
type PostInput struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Author  string `json:"author"`
}

// UpdatePostInput identifies the post to update along with its new fields.
type UpdatePostInput struct {
	ID int64 `json:"id"`
	PostInput
}
