package model

import "time"

// Like records that a user approves of a post. At most one Like exists per
// (UserID, PostID); the pair is the table's primary key.
type Like struct {
	UserID    string    `json:"userId"`
	PostID    string    `json:"postId"`
	CreatedAt time.Time `json:"createdAt"`
}

// LikeStatus is the state of a (user, post) pair after a toggle.
type LikeStatus string

const (
	StatusLiked   LikeStatus = "liked"
	StatusUnliked LikeStatus = "unliked"
)

// ToggleResult is returned by a like toggle. LikesCount is recounted inside
// the toggle's transaction, never cached.
type ToggleResult struct {
	Status        LikeStatus `json:"status"`
	LikesCount    int        `json:"likesCount"`
	IsLikedByUser bool       `json:"isLikedByUser"`
}

// LeaderboardEntry is a user ranked by karma earned inside a time window.
// RecentKarma is derived from Like timestamps for this response only.
type LeaderboardEntry struct {
	User
	RecentKarma int `json:"recentKarma"`
}
