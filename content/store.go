package content

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"scribe/common"
	"scribe/models"
)

var (
	errPostNotFound     = common.NotFound("Post not found")
	errCategoryNotFound = common.NotFound("Category not found")
)

// store holds every query of the content module. Writes that must not lose
// a concurrent change are expressed as single conditional statements or
// short transactions.
type store struct {
	db *gorm.DB
}

func newStore(db *gorm.DB) *store {
	return &store{db: db}
}

func (s *store) posts(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).
		Preload("Author").
		Preload("Category").
		Preload("Comments", func(db *gorm.DB) *gorm.DB {
			return db.Order("comments.created_at ASC, comments.id ASC")
		}).
		Preload("Comments.User")
}

func (s *store) getPost(ctx context.Context, id string) (models.Post, error) {
	var post models.Post
	err := s.posts(ctx).First(&post, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return post, errPostNotFound
	}
	return post, err
}

func (s *store) listPosts(ctx context.Context, categoryID string, offset, limit int) ([]models.Post, error) {
	query := s.posts(ctx).Where("is_published = ?", true)
	if categoryID != "" {
		query = query.Where("category_id = ?", categoryID)
	}

	posts := []models.Post{}
	err := query.
		Order("created_at DESC").
		Order("id DESC").
		Offset(offset).
		Limit(limit).
		Find(&posts).Error
	return posts, err
}

func (s *store) createPost(ctx context.Context, post *models.Post) error {
	return s.db.WithContext(ctx).Omit(clause.Associations).Create(post).Error
}

// updatePost writes updates only if the row still has the author the caller
// was authorized against. It reports whether a row matched.
func (s *store) updatePost(ctx context.Context, id, authorID string, updates map[string]any) (bool, error) {
	result := s.db.WithContext(ctx).
		Model(&models.Post{}).
		Where("id = ? AND author_id = ?", id, authorID).
		Updates(updates)
	return result.RowsAffected > 0, result.Error
}

// deletePost removes the post and its comments in one transaction, under the
// same author guard as updatePost.
func (s *store) deletePost(ctx context.Context, id, authorID string) (bool, error) {
	deleted := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("id = ? AND author_id = ?", id, authorID).Delete(&models.Post{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}
		deleted = true
		return tx.Where("post_id = ?", id).Delete(&models.Comment{}).Error
	})
	return deleted, err
}

func (s *store) incrementViews(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).
		Model(&models.Post{}).
		Where("id = ?", id).
		UpdateColumn("view_count", gorm.Expr("view_count + ?", 1))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errPostNotFound
	}
	return nil
}

// appendComment inserts comment while holding the post row, so a concurrent
// delete cannot leave it orphaned. Other comments are never rewritten.
func (s *store) appendComment(ctx context.Context, comment *models.Comment) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var post models.Post
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").
			First(&post, "id = ?", comment.PostID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errPostNotFound
		}
		if err != nil {
			return err
		}
		return tx.Omit(clause.Associations).Create(comment).Error
	})
}

func (s *store) categoryExists(ctx context.Context, id string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Category{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

func (s *store) listCategories(ctx context.Context) ([]models.Category, error) {
	categories := []models.Category{}
	err := s.db.WithContext(ctx).Order("name ASC").Find(&categories).Error
	return categories, err
}

func (s *store) getCategory(ctx context.Context, id string) (models.Category, error) {
	var category models.Category
	err := s.db.WithContext(ctx).First(&category, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return category, errCategoryNotFound
	}
	return category, err
}

// categoryTaken reports whether another category already uses name (in any
// case) or slug.
func (s *store) categoryTaken(ctx context.Context, name, slug, excludeID string) (bool, error) {
	query := s.db.WithContext(ctx).
		Model(&models.Category{}).
		Where("(LOWER(name) = ? OR slug = ?)", strings.ToLower(name), slug)
	if excludeID != "" {
		query = query.Where("id <> ?", excludeID)
	}

	var count int64
	err := query.Count(&count).Error
	return count > 0, err
}

func (s *store) createCategory(ctx context.Context, category *models.Category) error {
	return s.db.WithContext(ctx).Create(category).Error
}

func (s *store) updateCategory(ctx context.Context, id string, updates map[string]any) (bool, error) {
	result := s.db.WithContext(ctx).
		Model(&models.Category{}).
		Where("id = ?", id).
		Updates(updates)
	return result.RowsAffected > 0, result.Error
}

// deleteCategory refuses while any post still references the category.
func (s *store) deleteCategory(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var category models.Category
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&category, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errCategoryNotFound
		}
		if err != nil {
			return err
		}

		var inUse int64
		if err := tx.Model(&models.Post{}).Where("category_id = ?", id).Count(&inUse).Error; err != nil {
			return err
		}
		if inUse > 0 {
			return common.Conflict("Category has posts and cannot be deleted")
		}

		return tx.Delete(&category).Error
	})
}
