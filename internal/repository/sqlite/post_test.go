package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sakif/karma-feed/internal/apperror"
	"github.com/sakif/karma-feed/internal/model"
	"github.com/sakif/karma-feed/internal/repository"
)

func TestInsertPost_TopLevelAndReply(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	author := createTestUser(t, db, "author")

	root := createTestPost(t, db, author, nil, "root")
	reply := createTestPost(t, db, author, root, "reply")

	got, err := db.GetPostByID(ctx, root.ID)
	if err != nil {
		t.Fatalf("GetPostByID() error = %v", err)
	}
	if got.ParentID != nil {
		t.Errorf("root ParentID = %v, want nil", *got.ParentID)
	}
	if got.Author == nil || got.Author.Username != "author" {
		t.Errorf("root Author = %+v, want author", got.Author)
	}

	got, err = db.GetPostByID(ctx, reply.ID)
	if err != nil {
		t.Fatalf("GetPostByID() error = %v", err)
	}
	if got.ParentID == nil || *got.ParentID != root.ID {
		t.Errorf("reply ParentID = %v, want %s", got.ParentID, root.ID)
	}
	if got.IsTopLevel() {
		t.Error("reply reported as top-level")
	}
}

func TestInsertPost_MissingParent(t *testing.T) {
	db := newTestDB(t)
	author := createTestUser(t, db, "author")
	missing := "cv0000000000000000a0"

	err := db.WithinTx(context.Background(), func(tx repository.Tx) error {
		return tx.InsertPost(context.Background(), &model.Post{
			AuthorID: author.ID, Content: "orphan", ParentID: &missing,
		})
	})
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("InsertPost() error = %v, want ErrNotFound", err)
	}
}

func TestInsertPost_BlankContentRejectedBySchema(t *testing.T) {
	db := newTestDB(t)
	author := createTestUser(t, db, "author")

	err := db.WithinTx(context.Background(), func(tx repository.Tx) error {
		return tx.InsertPost(context.Background(), &model.Post{AuthorID: author.ID, Content: "   "})
	})
	if err == nil {
		t.Fatal("InsertPost() with blank content succeeded, want error")
	}
}

func TestListTopLevel_NewestFirstWithoutReplies(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	author := createTestUser(t, db, "author")

	first := createTestPost(t, db, author, nil, "first")
	time.Sleep(2 * time.Millisecond)
	second := createTestPost(t, db, author, nil, "second")
	createTestPost(t, db, author, first, "a reply")

	posts, err := db.ListTopLevel(ctx, repository.ListOptions{Limit: 10})
	if err != nil {
		t.Fatalf("ListTopLevel() error = %v", err)
	}
	if len(posts) != 2 {
		t.Fatalf("got %d posts, want 2", len(posts))
	}
	if posts[0].ID != second.ID || posts[1].ID != first.ID {
		t.Errorf("order = [%s %s], want [%s %s]", posts[0].ID, posts[1].ID, second.ID, first.ID)
	}

	page, err := db.ListTopLevel(ctx, repository.ListOptions{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("ListTopLevel(offset) error = %v", err)
	}
	if len(page) != 1 || page[0].ID != first.ID {
		t.Errorf("page = %+v, want [first]", page)
	}
}

func TestListByParentIDs_OneLevel(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	author := createTestUser(t, db, "author")

	a := createTestPost(t, db, author, nil, "a")
	b := createTestPost(t, db, author, nil, "b")
	a1 := createTestPost(t, db, author, a, "a1")
	b1 := createTestPost(t, db, author, b, "b1")
	createTestPost(t, db, author, a1, "a1-deep")

	replies, err := db.ListByParentIDs(ctx, []string{a.ID, b.ID})
	if err != nil {
		t.Fatalf("ListByParentIDs() error = %v", err)
	}
	if len(replies) != 2 {
		t.Fatalf("got %d replies, want 2", len(replies))
	}
	ids := map[string]bool{replies[0].ID: true, replies[1].ID: true}
	if !ids[a1.ID] || !ids[b1.ID] {
		t.Errorf("replies = %v, want a1 and b1", ids)
	}

	none, err := db.ListByParentIDs(ctx, nil)
	if err != nil || len(none) != 0 {
		t.Errorf("ListByParentIDs(nil) = %v, %v; want empty, nil", none, err)
	}
}

func TestCountsAndLikedBy(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	author := createTestUser(t, db, "author")
	fan1 := createTestUser(t, db, "fan1")
	fan2 := createTestUser(t, db, "fan2")

	popular := createTestPost(t, db, author, nil, "popular")
	quiet := createTestPost(t, db, author, nil, "quiet")
	createTestPost(t, db, fan1, popular, "reply 1")
	createTestPost(t, db, fan2, popular, "reply 2")
	insertTestLike(t, db, fan1, popular, time.Now())
	insertTestLike(t, db, fan2, popular, time.Now())

	ids := []string{popular.ID, quiet.ID}

	likes, err := db.CountLikes(ctx, ids)
	if err != nil {
		t.Fatalf("CountLikes() error = %v", err)
	}
	if likes[popular.ID] != 2 || likes[quiet.ID] != 0 {
		t.Errorf("likes = %v, want popular:2 quiet:0", likes)
	}

	replies, err := db.CountReplies(ctx, ids)
	if err != nil {
		t.Fatalf("CountReplies() error = %v", err)
	}
	if replies[popular.ID] != 2 || replies[quiet.ID] != 0 {
		t.Errorf("replies = %v, want popular:2 quiet:0", replies)
	}

	liked, err := db.LikedBy(ctx, fan1.ID, ids)
	if err != nil {
		t.Fatalf("LikedBy() error = %v", err)
	}
	if !liked[popular.ID] || liked[quiet.ID] {
		t.Errorf("liked = %v, want popular only", liked)
	}

	anon, err := db.LikedBy(ctx, "", ids)
	if err != nil || len(anon) != 0 {
		t.Errorf("LikedBy(anonymous) = %v, %v; want empty", anon, err)
	}
}

func TestListByAuthor(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")

	root := createTestPost(t, db, alice, nil, "mine")
	createTestPost(t, db, alice, root, "my reply")
	createTestPost(t, db, bob, root, "not mine")

	posts, err := db.ListByAuthor(ctx, alice.ID)
	if err != nil {
		t.Fatalf("ListByAuthor() error = %v", err)
	}
	if len(posts) != 2 {
		t.Errorf("got %d posts, want 2 (replies included)", len(posts))
	}
	for _, p := range posts {
		if p.AuthorID != alice.ID {
			t.Errorf("post %s author = %s, want alice", p.ID, p.AuthorID)
		}
	}
}

func TestDeletePost_CascadesToRepliesAndLikes(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	author := createTestUser(t, db, "author")
	fan := createTestUser(t, db, "fan")

	root := createTestPost(t, db, author, nil, "root")
	child := createTestPost(t, db, fan, root, "child")
	grandchild := createTestPost(t, db, author, child, "grandchild")
	insertTestLike(t, db, fan, root, time.Now())
	insertTestLike(t, db, author, child, time.Now())

	if err := db.DeletePost(ctx, root.ID); err != nil {
		t.Fatalf("DeletePost() error = %v", err)
	}

	for _, id := range []string{root.ID, child.ID, grandchild.ID} {
		if _, err := db.GetPostByID(ctx, id); !errors.Is(err, apperror.ErrNotFound) {
			t.Errorf("post %s: error = %v, want ErrNotFound", id, err)
		}
	}
	if _, err := db.GetLike(ctx, fan.ID, root.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("like on deleted root: error = %v, want ErrNotFound", err)
	}
	if _, err := db.GetLike(ctx, author.ID, child.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("like on deleted child: error = %v, want ErrNotFound", err)
	}

	if err := db.DeletePost(ctx, root.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("second DeletePost() error = %v, want ErrNotFound", err)
	}
}
