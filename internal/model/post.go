package model

import "time"

// Post is either a top-level thread (ParentID == nil) or a reply to another
// post. Posts form a tree through ParentID; depth is unbounded in storage and
// bounded only when a thread is read back.
//
// Posts are never updated in place. Deleting a post removes its replies and
// every Like on any of them (enforced by ON DELETE CASCADE in the schema).
//
// The fields below CreatedAt are read-time projections. They are filled in by
// the service layer for a single response and are never written to storage.
type Post struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"authorId"`
	Content   string    `json:"content"`
	ParentID  *string   `json:"parentId"`
	CreatedAt time.Time `json:"createdAt"`

	Author        *User   `json:"author,omitempty"`
	LikesCount    int     `json:"likesCount"`
	RepliesCount  int     `json:"repliesCount"`
	IsLikedByUser bool    `json:"isLikedByUser"`
	Replies       []*Post `json:"replies,omitempty"`
}

// IsTopLevel reports whether the post starts a thread.
func (p *Post) IsTopLevel() bool {
	return p.ParentID == nil
}
