package content

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"scribe/common"
	"scribe/database"
	"scribe/models"
	"scribe/policy"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := common.OpenSQLite(":memory:", nil)
	require.NoError(t, err)
	require.NoError(t, database.RunMigrations(db, nil))
	return db
}

func createUser(t *testing.T, db *gorm.DB, name string, role models.Role) policy.Identity {
	t.Helper()
	user := models.User{
		Name:         name,
		Email:        fmt.Sprintf("%s@example.com", name),
		PasswordHash: "x",
		Role:         role,
	}
	require.NoError(t, db.Create(&user).Error)
	return policy.Identity{UserID: user.ID, Role: user.Role}
}

func createCategory(t *testing.T, db *gorm.DB, name string) models.Category {
	t.Helper()
	category := models.Category{Name: name, Slug: generateSlug(name)}
	require.NoError(t, db.Create(&category).Error)
	return category
}

func ptr[T any](v T) *T { return &v }

func fieldsOf(t *testing.T, err error) []string {
	t.Helper()
	var v *common.ValidationError
	require.True(t, errors.As(err, &v), "expected validation error, got %v", err)
	fields := make([]string, 0, len(v.Fields))
	for _, f := range v.Fields {
		fields = append(fields, f.Field)
	}
	return fields
}

func TestCreatePost(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db, nil)
	alice := createUser(t, db, "alice", models.RoleReader)
	tech := createCategory(t, db, "Tech")

	post, err := svc.CreatePost(t.Context(), alice, PostDraft{
		Title:    "  Hello  ",
		Content:  "# Intro\n\nFirst **post** body.",
		Category: tech.ID,
		Tags:     TagList{"go", " go ", "", "web"},
	})
	require.NoError(t, err)

	assert.Equal(t, "Hello", post.Title)
	assert.Equal(t, alice.UserID, post.AuthorID)
	assert.Equal(t, "Intro First post body.", post.Excerpt)
	assert.Equal(t, []string{"go", "web"}, []string(post.Tags))
	assert.True(t, post.IsPublished)
	assert.Zero(t, post.ViewCount)
	require.NotNil(t, post.Category)
	assert.Equal(t, "Tech", post.Category.Name)
	require.NotNil(t, post.Author)
	assert.Equal(t, "alice", post.Author.Name)
}

func TestCreatePost_Validation(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db, nil)
	alice := createUser(t, db, "alice", models.RoleReader)

	_, err := svc.CreatePost(t.Context(), alice, PostDraft{})
	assert.ElementsMatch(t, []string{"title", "content", "category"}, fieldsOf(t, err))

	_, err = svc.CreatePost(t.Context(), alice, PostDraft{Title: "t", Content: "c", Category: "not-a-uuid"})
	var v *common.ValidationError
	require.ErrorAs(t, err, &v)
	assert.Equal(t, "Invalid category ID", v.Fields[0].Message)

	_, err = svc.CreatePost(t.Context(), alice, PostDraft{
		Title:    strings.Repeat("x", 101),
		Content:  "c",
		Category: "1b4e28ba-2fa1-41d2-883f-0016d3cca427",
	})
	require.ErrorAs(t, err, &v)
	assert.ElementsMatch(t, []string{"title", "category"}, fieldsOf(t, err))
	assert.Contains(t, v.Error(), "Category not found")
}

func TestPost_WhitespaceContentIsEmpty(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db, nil)
	alice := createUser(t, db, "alice", models.RoleReader)
	tech := createCategory(t, db, "Tech")

	_, err := svc.CreatePost(t.Context(), alice, PostDraft{Title: "Hi", Content: "   \n\t ", Category: tech.ID})
	assert.Equal(t, []string{"content"}, fieldsOf(t, err))

	var count int64
	require.NoError(t, db.Model(&models.Post{}).Count(&count).Error)
	assert.Zero(t, count)

	post, err := svc.CreatePost(t.Context(), alice, PostDraft{Title: "Hi", Content: "    indented code", Category: tech.ID})
	require.NoError(t, err)
	assert.Equal(t, "    indented code", post.Content)

	_, err = svc.UpdatePost(t.Context(), alice, post.ID, PostPatch{Content: ptr(" \n ")})
	assert.Equal(t, []string{"content"}, fieldsOf(t, err))
}

func TestCreatePost_Anonymous(t *testing.T) {
	svc := NewService(setupTestDB(t), nil)
	_, err := svc.CreatePost(t.Context(), policy.Identity{}, PostDraft{Title: "t", Content: "c"})
	assert.ErrorIs(t, err, common.ErrUnauthenticated)
}

func TestUpdatePost_Permissions(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db, nil)
	alice := createUser(t, db, "alice", models.RoleReader)
	bob := createUser(t, db, "bob", models.RoleReader)
	admin := createUser(t, db, "root", models.RoleAdmin)
	tech := createCategory(t, db, "Tech")

	post, err := svc.CreatePost(t.Context(), alice, PostDraft{Title: "Hello", Content: "body", Category: tech.ID})
	require.NoError(t, err)

	// forbidden regardless of payload, even an invalid one
	_, err = svc.UpdatePost(t.Context(), bob, post.ID, PostPatch{Title: ptr("")})
	assert.ErrorIs(t, err, common.ErrForbidden)
	_, err = svc.UpdatePost(t.Context(), bob, post.ID, PostPatch{Title: ptr("Mine now")})
	assert.ErrorIs(t, err, common.ErrForbidden)

	updated, err := svc.UpdatePost(t.Context(), alice, post.ID, PostPatch{Title: ptr("Hello again")})
	require.NoError(t, err)
	assert.Equal(t, "Hello again", updated.Title)
	assert.Equal(t, alice.UserID, updated.AuthorID)

	updated, err = svc.UpdatePost(t.Context(), admin, post.ID, PostPatch{Tags: &TagList{"edited"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"edited"}, []string(updated.Tags))
	assert.Equal(t, alice.UserID, updated.AuthorID)

	_, err = svc.UpdatePost(t.Context(), alice, "missing", PostPatch{})
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestUpdatePost_RefreshesDerivedExcerpt(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db, nil)
	alice := createUser(t, db, "alice", models.RoleReader)
	tech := createCategory(t, db, "Tech")

	post, err := svc.CreatePost(t.Context(), alice, PostDraft{Title: "t", Content: "old body", Category: tech.ID})
	require.NoError(t, err)
	updated, err := svc.UpdatePost(t.Context(), alice, post.ID, PostPatch{Content: ptr("new body")})
	require.NoError(t, err)
	assert.Equal(t, "new body", updated.Excerpt)

	manual, err := svc.CreatePost(t.Context(), alice, PostDraft{Title: "t", Content: "body", Excerpt: "custom", Category: tech.ID})
	require.NoError(t, err)
	updated, err = svc.UpdatePost(t.Context(), alice, manual.ID, PostPatch{Content: ptr("other body")})
	require.NoError(t, err)
	assert.Equal(t, "custom", updated.Excerpt)
}

func TestDeletePost(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db, nil)
	alice := createUser(t, db, "alice", models.RoleReader)
	bob := createUser(t, db, "bob", models.RoleReader)
	tech := createCategory(t, db, "Tech")

	post, err := svc.CreatePost(t.Context(), alice, PostDraft{Title: "t", Content: "c", Category: tech.ID})
	require.NoError(t, err)
	_, err = svc.AddComment(t.Context(), bob, post.ID, CommentDraft{Content: "nice"})
	require.NoError(t, err)

	assert.ErrorIs(t, svc.DeletePost(t.Context(), bob, post.ID), common.ErrForbidden)
	require.NoError(t, svc.DeletePost(t.Context(), alice, post.ID))
	assert.ErrorIs(t, svc.DeletePost(t.Context(), alice, post.ID), common.ErrNotFound)

	var comments int64
	require.NoError(t, db.Model(&models.Comment{}).Where("post_id = ?", post.ID).Count(&comments).Error)
	assert.Zero(t, comments)
}

func TestGetPost_CountsViews(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db, nil)
	alice := createUser(t, db, "alice", models.RoleReader)
	tech := createCategory(t, db, "Tech")

	post, err := svc.CreatePost(t.Context(), alice, PostDraft{Title: "t", Content: "c", Category: tech.ID})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.GetPost(t.Context(), post.ID)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := svc.GetPost(t.Context(), post.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(6), got.ViewCount)

	_, err = svc.GetPost(t.Context(), "missing")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestAddComment(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db, nil)
	alice := createUser(t, db, "alice", models.RoleReader)
	bob := createUser(t, db, "bob", models.RoleReader)
	tech := createCategory(t, db, "Tech")

	post, err := svc.CreatePost(t.Context(), alice, PostDraft{Title: "t", Content: "c", Category: tech.ID})
	require.NoError(t, err)

	_, err = svc.AddComment(t.Context(), bob, post.ID, CommentDraft{Content: "   "})
	assert.Equal(t, []string{"content"}, fieldsOf(t, err))

	_, err = svc.AddComment(t.Context(), bob, post.ID, CommentDraft{Content: strings.Repeat("a", 1001)})
	assert.Equal(t, []string{"content"}, fieldsOf(t, err))

	_, err = svc.AddComment(t.Context(), bob, "missing", CommentDraft{Content: "hi"})
	assert.ErrorIs(t, err, common.ErrNotFound)

	_, err = svc.AddComment(t.Context(), policy.Identity{}, post.ID, CommentDraft{Content: "hi"})
	assert.ErrorIs(t, err, common.ErrUnauthenticated)

	got, err := svc.AddComment(t.Context(), bob, post.ID, CommentDraft{Content: " first "})
	require.NoError(t, err)
	require.Len(t, got.Comments, 1)
	assert.Equal(t, "first", got.Comments[0].Content)
	assert.Equal(t, bob.UserID, got.Comments[0].UserID)
	require.NotNil(t, got.Comments[0].User)
	assert.Equal(t, "bob", got.Comments[0].User.Name)
}

func TestAddComment_ConcurrentAppendsKeepEveryComment(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db, nil)
	alice := createUser(t, db, "alice", models.RoleReader)
	bob := createUser(t, db, "bob", models.RoleReader)
	tech := createCategory(t, db, "Tech")

	post, err := svc.CreatePost(t.Context(), alice, PostDraft{Title: "t", Content: "c", Category: tech.ID})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i, who := range []policy.Identity{alice, bob, alice, bob} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.AddComment(t.Context(), who, post.ID, CommentDraft{Content: fmt.Sprintf("comment %d", i)})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := svc.GetPost(t.Context(), post.ID)
	require.NoError(t, err)
	contents := make([]string, 0, len(got.Comments))
	for _, c := range got.Comments {
		contents = append(contents, c.Content)
	}
	assert.ElementsMatch(t, []string{"comment 0", "comment 1", "comment 2", "comment 3"}, contents)
}

func TestListPosts_Pagination(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db, nil)
	alice := createUser(t, db, "alice", models.RoleReader)
	tech := createCategory(t, db, "Tech")
	life := createCategory(t, db, "Life")

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range 5 {
		category := tech.ID
		if i == 4 {
			category = life.ID
		}
		require.NoError(t, db.Create(&models.Post{
			Title:       fmt.Sprintf("post %d", i),
			Content:     "c",
			AuthorID:    alice.UserID,
			CategoryID:  category,
			IsPublished: true,
			CreatedAt:   base.Add(time.Duration(i) * time.Hour),
		}).Error)
	}

	first, err := svc.ListPosts(t.Context(), ListQuery{Page: 1, Limit: 2})
	require.NoError(t, err)
	require.Len(t, first.Posts, 2)
	assert.Equal(t, "post 4", first.Posts[0].Title)
	assert.Equal(t, "post 3", first.Posts[1].Title)
	assert.Equal(t, &PageRef{Page: 2, Limit: 2}, first.Pagination.Next)
	assert.Nil(t, first.Pagination.Prev)

	last, err := svc.ListPosts(t.Context(), ListQuery{Page: 3, Limit: 2})
	require.NoError(t, err)
	require.Len(t, last.Posts, 1)
	assert.Equal(t, "post 0", last.Posts[0].Title)
	assert.Nil(t, last.Pagination.Next)
	assert.Equal(t, &PageRef{Page: 2, Limit: 2}, last.Pagination.Prev)

	filtered, err := svc.ListPosts(t.Context(), ListQuery{Category: life.ID})
	require.NoError(t, err)
	require.Len(t, filtered.Posts, 1)
	assert.Equal(t, "post 4", filtered.Posts[0].Title)

	defaults, err := svc.ListPosts(t.Context(), ListQuery{Page: -3, Limit: 1000})
	require.NoError(t, err)
	assert.Len(t, defaults.Posts, 5)
	assert.Nil(t, defaults.Pagination.Next)

	huge, err := svc.ListPosts(t.Context(), ListQuery{Page: math.MaxInt, Limit: 2})
	require.NoError(t, err)
	assert.Empty(t, huge.Posts)
	assert.Nil(t, huge.Pagination.Next)
	require.NotNil(t, huge.Pagination.Prev)
	assert.Equal(t, maxPage-1, huge.Pagination.Prev.Page)
}

func TestCategories(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db, nil)
	alice := createUser(t, db, "alice", models.RoleReader)
	admin := createUser(t, db, "root", models.RoleAdmin)

	_, err := svc.CreateCategory(t.Context(), alice, CategoryDraft{Name: "Tech"})
	assert.ErrorIs(t, err, common.ErrForbidden)

	tech, err := svc.CreateCategory(t.Context(), admin, CategoryDraft{Name: "Café Tech", Description: "all things"})
	require.NoError(t, err)
	assert.Equal(t, "cafe-tech", tech.Slug)

	_, err = svc.CreateCategory(t.Context(), admin, CategoryDraft{Name: "café tech"})
	assert.ErrorIs(t, err, common.ErrConflict)
	_, err = svc.CreateCategory(t.Context(), admin, CategoryDraft{Name: "!!!"})
	assert.Equal(t, []string{"name"}, fieldsOf(t, err))

	life, err := svc.CreateCategory(t.Context(), admin, CategoryDraft{Name: "Life"})
	require.NoError(t, err)
	_, err = svc.UpdateCategory(t.Context(), admin, life.ID, CategoryPatch{Name: ptr("CAFE TECH")})
	assert.ErrorIs(t, err, common.ErrConflict)

	renamed, err := svc.UpdateCategory(t.Context(), admin, life.ID, CategoryPatch{Name: ptr("Daily Life")})
	require.NoError(t, err)
	assert.Equal(t, "daily-life", renamed.Slug)

	list, err := svc.ListCategories(t.Context())
	require.NoError(t, err)
	assert.Len(t, list, 2)

	_, err = svc.CreatePost(t.Context(), alice, PostDraft{Title: "t", Content: "c", Category: tech.ID})
	require.NoError(t, err)
	assert.ErrorIs(t, svc.DeleteCategory(t.Context(), admin, tech.ID), common.ErrConflict)
	assert.ErrorIs(t, svc.DeleteCategory(t.Context(), alice, life.ID), common.ErrForbidden)
	require.NoError(t, svc.DeleteCategory(t.Context(), admin, life.ID))

	_, err = svc.GetCategory(t.Context(), life.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestGenerateSlug(t *testing.T) {
	tests := map[string]string{
		"Hello World":       "hello-world",
		"  Ação   Rápida  ": "acao-rapida",
		"Go_Lang 2024!":     "go_lang-2024",
		"Full-Stack":        "fullstack",
		"???":               "",
	}
	for in, want := range tests {
		assert.Equal(t, want, generateSlug(in), in)
	}
}

func TestDeriveExcerpt(t *testing.T) {
	assert.Equal(t, "Title Some text with a link.", deriveExcerpt("# Title\n\nSome *text* with [a link](http://x.y).\n\n```go\ncode()\n```"))

	long := deriveExcerpt(strings.Repeat("word ", 100))
	assert.LessOrEqual(t, len([]rune(long)), maxExcerptLength)
	assert.True(t, strings.HasSuffix(long, "word..."))
}

func TestTagList(t *testing.T) {
	var fromArray, fromString TagList
	require.NoError(t, fromArray.UnmarshalJSON([]byte(`["a"," b","a"]`)))
	require.NoError(t, fromString.UnmarshalJSON([]byte(`"a, b ,,a"`)))
	assert.Equal(t, []string{"a", "b"}, normalizeTags(fromArray))
	assert.Equal(t, []string{"a", "b"}, normalizeTags(fromString))
	assert.NotNil(t, normalizeTags(nil))

	var bad TagList
	assert.Error(t, bad.UnmarshalJSON([]byte(`42`)))
}
