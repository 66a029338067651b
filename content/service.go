// Package content owns posts, their comments and categories.
package content

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"scribe/common"
	"scribe/models"
	"scribe/policy"
)

const (
	defaultPageLimit = 10
	maxPageLimit     = 100

	// keeps (page-1)*limit far from integer overflow
	maxPage = 1 << 20
)

// PostDraft is the body of a new post. Author, views and timestamps are
// never taken from the caller.
type PostDraft struct {
	Title    string  `json:"title"`
	Content  string  `json:"content"`
	Excerpt  string  `json:"excerpt"`
	Category string  `json:"category"`
	Tags     TagList `json:"tags"`
}

// PostPatch holds the fields an update may change. Nil means unchanged.
type PostPatch struct {
	Title    *string  `json:"title"`
	Content  *string  `json:"content"`
	Excerpt  *string  `json:"excerpt"`
	Category *string  `json:"category"`
	Tags     *TagList `json:"tags"`
}

type CommentDraft struct {
	Content string `json:"content"`
}

type CategoryDraft struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type CategoryPatch struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

type ListQuery struct {
	Page     int
	Limit    int
	Category string
}

type PageRef struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

type Pagination struct {
	Next *PageRef `json:"next,omitempty"`
	Prev *PageRef `json:"prev,omitempty"`
}

type PostPage struct {
	Posts      []models.Post
	Pagination Pagination
}

type postInput struct {
	Title    string `json:"title" validate:"required,max=100"`
	Content  string `json:"content" validate:"required"`
	Excerpt  string `json:"excerpt" validate:"max=200"`
	Category string `json:"category" validate:"required,uuid"`
}

type commentInput struct {
	Content string `json:"content" validate:"required,max=1000"`
}

type categoryInput struct {
	Name        string `json:"name" validate:"required,max=50"`
	Description string `json:"description" validate:"max=200"`
}

type Service struct {
	store  *store
	logger *slog.Logger
	now    func() time.Time
}

func NewService(db *gorm.DB, logger *slog.Logger) *Service {
	return &Service{
		store:  newStore(db),
		logger: common.ResolveLogger(logger),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// deny picks 401 for anonymous callers and 403 for everyone else.
func deny(id policy.Identity, msg string) error {
	if !id.Authenticated() {
		return common.Unauthenticated("Not authorized to access this route")
	}
	return common.Forbidden(msg)
}

func (s *Service) ListPosts(ctx context.Context, q ListQuery) (*PostPage, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Page > maxPage {
		q.Page = maxPage
	}
	if q.Limit < 1 {
		q.Limit = defaultPageLimit
	}
	if q.Limit > maxPageLimit {
		q.Limit = maxPageLimit
	}

	posts, err := s.store.listPosts(ctx, strings.TrimSpace(q.Category), (q.Page-1)*q.Limit, q.Limit)
	if err != nil {
		return nil, err
	}

	page := &PostPage{Posts: posts}
	if len(posts) == q.Limit {
		page.Pagination.Next = &PageRef{Page: q.Page + 1, Limit: q.Limit}
	}
	if q.Page > 1 {
		page.Pagination.Prev = &PageRef{Page: q.Page - 1, Limit: q.Limit}
	}
	return page, nil
}

// GetPost counts a view and returns the post with its comments.
func (s *Service) GetPost(ctx context.Context, id string) (*models.Post, error) {
	if err := s.store.incrementViews(ctx, id); err != nil {
		return nil, err
	}
	post, err := s.store.getPost(ctx, id)
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (s *Service) CreatePost(ctx context.Context, id policy.Identity, draft PostDraft) (*models.Post, error) {
	if !policy.CanCreatePost(id) {
		return nil, deny(id, "Not authorized to create posts")
	}

	in := postInput{
		Title:    strings.TrimSpace(draft.Title),
		Content:  draft.Content,
		Excerpt:  strings.TrimSpace(draft.Excerpt),
		Category: strings.TrimSpace(draft.Category),
	}
	if err := s.validatePost(ctx, in); err != nil {
		return nil, err
	}
	if in.Excerpt == "" {
		in.Excerpt = deriveExcerpt(in.Content)
	}

	post := models.Post{
		Title:       in.Title,
		Content:     in.Content,
		Excerpt:     in.Excerpt,
		AuthorID:    id.UserID,
		CategoryID:  in.Category,
		Tags:        datatypes.JSONSlice[string](normalizeTags(draft.Tags)),
		IsPublished: true,
	}
	if err := s.store.createPost(ctx, &post); err != nil {
		return nil, err
	}

	s.logger.Info("post created", "post_id", post.ID, "author_id", post.AuthorID)
	created, err := s.store.getPost(ctx, post.ID)
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// AuthorizePostMutation loads the post and checks the caller may change or
// delete it: 404 when it does not exist, then 401/403. It reads nothing from
// the request payload.
func (s *Service) AuthorizePostMutation(ctx context.Context, id policy.Identity, postID string) (models.Post, error) {
	post, err := s.store.getPost(ctx, postID)
	if err != nil {
		return post, err
	}
	if !policy.CanMutatePost(id, post) {
		return post, deny(id, "Not authorized to modify this post")
	}
	return post, nil
}

// UpdatePost applies patch if the caller may mutate the post. Existence is
// checked first, then permission, then the merged result is validated.
func (s *Service) UpdatePost(ctx context.Context, id policy.Identity, postID string, patch PostPatch) (*models.Post, error) {
	post, err := s.AuthorizePostMutation(ctx, id, postID)
	if err != nil {
		return nil, err
	}

	in := postInput{
		Title:    post.Title,
		Content:  post.Content,
		Excerpt:  post.Excerpt,
		Category: post.CategoryID,
	}
	if patch.Title != nil {
		in.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Content != nil {
		in.Content = *patch.Content
		// keep a derived excerpt in step with the new body
		if patch.Excerpt == nil && post.Excerpt == deriveExcerpt(post.Content) {
			in.Excerpt = ""
		}
	}
	if patch.Excerpt != nil {
		in.Excerpt = strings.TrimSpace(*patch.Excerpt)
	}
	if patch.Category != nil {
		in.Category = strings.TrimSpace(*patch.Category)
	}
	if err := s.validatePost(ctx, in); err != nil {
		return nil, err
	}
	if in.Excerpt == "" {
		in.Excerpt = deriveExcerpt(in.Content)
	}

	updates := map[string]any{
		"title":       in.Title,
		"content":     in.Content,
		"excerpt":     in.Excerpt,
		"category_id": in.Category,
		"updated_at":  s.now(),
	}
	if patch.Tags != nil {
		updates["tags"] = datatypes.JSONSlice[string](normalizeTags(*patch.Tags))
	}

	matched, err := s.store.updatePost(ctx, postID, post.AuthorID, updates)
	if err != nil {
		return nil, err
	}
	if !matched {
		return nil, errPostNotFound
	}

	updated, err := s.store.getPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (s *Service) DeletePost(ctx context.Context, id policy.Identity, postID string) error {
	post, err := s.AuthorizePostMutation(ctx, id, postID)
	if err != nil {
		return err
	}

	deleted, err := s.store.deletePost(ctx, postID, post.AuthorID)
	if err != nil {
		return err
	}
	if !deleted {
		return errPostNotFound
	}

	s.logger.Info("post deleted", "post_id", postID, "by", id.UserID)
	return nil
}

// AddComment appends one comment and returns the post with all of them.
func (s *Service) AddComment(ctx context.Context, id policy.Identity, postID string, draft CommentDraft) (*models.Post, error) {
	if !policy.CanComment(id) {
		return nil, deny(id, "Not authorized to comment")
	}

	in := commentInput{Content: strings.TrimSpace(draft.Content)}
	if err := common.ValidateStruct(in).OrNil(); err != nil {
		return nil, err
	}

	comment := models.Comment{
		PostID:    postID,
		UserID:    id.UserID,
		Content:   in.Content,
		CreatedAt: s.now(),
	}
	if err := s.store.appendComment(ctx, &comment); err != nil {
		return nil, err
	}

	post, err := s.store.getPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	return &post, nil
}

// validatePost checks in with the body trimmed, so whitespace-only content is
// rejected while the stored Markdown keeps its indentation.
func (s *Service) validatePost(ctx context.Context, in postInput) error {
	in.Content = strings.TrimSpace(in.Content)
	v := common.ValidateStruct(in)
	if !v.Has("category") {
		exists, err := s.store.categoryExists(ctx, in.Category)
		if err != nil {
			return err
		}
		if !exists {
			v.Add("category", "Category not found")
		}
	}
	return v.OrNil()
}

func (s *Service) ListCategories(ctx context.Context) ([]models.Category, error) {
	return s.store.listCategories(ctx)
}

func (s *Service) GetCategory(ctx context.Context, id string) (*models.Category, error) {
	category, err := s.store.getCategory(ctx, id)
	if err != nil {
		return nil, err
	}
	return &category, nil
}

// AuthorizeCategoryCreate and AuthorizeCategoryMutation need no lookup, so
// handlers call them before decoding the body.
func AuthorizeCategoryCreate(id policy.Identity) error {
	if !policy.CanCreateCategory(id) {
		return deny(id, "Not authorized to manage categories")
	}
	return nil
}

func AuthorizeCategoryMutation(id policy.Identity) error {
	if !policy.CanMutateCategory(id) {
		return deny(id, "Not authorized to manage categories")
	}
	return nil
}

func (s *Service) CreateCategory(ctx context.Context, id policy.Identity, draft CategoryDraft) (*models.Category, error) {
	if err := AuthorizeCategoryCreate(id); err != nil {
		return nil, err
	}

	in := categoryInput{
		Name:        strings.TrimSpace(draft.Name),
		Description: strings.TrimSpace(draft.Description),
	}
	slug, err := s.validateCategory(ctx, in, "")
	if err != nil {
		return nil, err
	}

	category := models.Category{Name: in.Name, Slug: slug, Description: in.Description}
	if err := s.store.createCategory(ctx, &category); err != nil {
		if common.IsUniqueViolation(err) {
			return nil, errCategoryExists
		}
		return nil, err
	}

	s.logger.Info("category created", "category_id", category.ID, "slug", category.Slug)
	return &category, nil
}

func (s *Service) UpdateCategory(ctx context.Context, id policy.Identity, categoryID string, patch CategoryPatch) (*models.Category, error) {
	if err := AuthorizeCategoryMutation(id); err != nil {
		return nil, err
	}

	category, err := s.store.getCategory(ctx, categoryID)
	if err != nil {
		return nil, err
	}

	in := categoryInput{Name: category.Name, Description: category.Description}
	if patch.Name != nil {
		in.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Description != nil {
		in.Description = strings.TrimSpace(*patch.Description)
	}
	slug, err := s.validateCategory(ctx, in, categoryID)
	if err != nil {
		return nil, err
	}

	matched, err := s.store.updateCategory(ctx, categoryID, map[string]any{
		"name":        in.Name,
		"slug":        slug,
		"description": in.Description,
		"updated_at":  s.now(),
	})
	if err != nil {
		if common.IsUniqueViolation(err) {
			return nil, errCategoryExists
		}
		return nil, err
	}
	if !matched {
		return nil, errCategoryNotFound
	}
	return s.GetCategory(ctx, categoryID)
}

func (s *Service) DeleteCategory(ctx context.Context, id policy.Identity, categoryID string) error {
	if err := AuthorizeCategoryMutation(id); err != nil {
		return err
	}
	if err := s.store.deleteCategory(ctx, categoryID); err != nil {
		return err
	}
	s.logger.Info("category deleted", "category_id", categoryID)
	return nil
}

var errCategoryExists = common.Conflict("Category already exists")

// validateCategory checks the fields and name uniqueness, returning the slug.
func (s *Service) validateCategory(ctx context.Context, in categoryInput, excludeID string) (string, error) {
	v := common.ValidateStruct(in)
	slug := generateSlug(in.Name)
	if !v.Has("name") && slug == "" {
		v.Add("name", "Name must contain letters or numbers")
	}
	if err := v.OrNil(); err != nil {
		return "", err
	}

	taken, err := s.store.categoryTaken(ctx, in.Name, slug, excludeID)
	if err != nil {
		return "", err
	}
	if taken {
		return "", errCategoryExists
	}
	return slug, nil
}
