package content

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"scribe/auth"
	"scribe/common"
)

type ContentModule struct {
	service     *Service
	requireAuth gin.HandlerFunc
	logger      *slog.Logger
}

func NewContentModule(service *Service, tokens auth.TokenVerifier, logger *slog.Logger) *ContentModule {
	return &ContentModule{
		service:     service,
		requireAuth: auth.RequireAuth(tokens),
		logger:      common.ResolveLogger(logger),
	}
}

func (m *ContentModule) RegisterRoutes(router gin.IRouter) {
	posts := router.Group("/posts")
	{
		posts.GET("", m.listPosts)
		posts.GET("/:id", m.getPost)
		posts.POST("", m.requireAuth, m.createPost)
		posts.PUT("/:id", m.requireAuth, m.updatePost)
		posts.DELETE("/:id", m.requireAuth, m.deletePost)
		posts.POST("/:id/comments", m.requireAuth, m.addComment)
	}

	categories := router.Group("/categories")
	{
		categories.GET("", m.listCategories)
		categories.GET("/:id", m.getCategory)
		categories.POST("", m.requireAuth, m.createCategory)
		categories.PUT("/:id", m.requireAuth, m.updateCategory)
		categories.DELETE("/:id", m.requireAuth, m.deleteCategory)
	}
}

func (m *ContentModule) listPosts(c *gin.Context) {
	page, _ := strconv.Atoi(c.Query("page"))
	limit, _ := strconv.Atoi(c.Query("limit"))

	result, err := m.service.ListPosts(c.Request.Context(), ListQuery{
		Page:     page,
		Limit:    limit,
		Category: c.Query("category"),
	})
	if err != nil {
		common.RespondError(c, m.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"count":      len(result.Posts),
		"pagination": result.Pagination,
		"data":       result.Posts,
	})
}

func (m *ContentModule) getPost(c *gin.Context) {
	post, err := m.service.GetPost(c.Request.Context(), c.Param("id"))
	if err != nil {
		common.RespondError(c, m.logger, err)
		return
	}
	common.RespondData(c, http.StatusOK, post)
}

func (m *ContentModule) createPost(c *gin.Context) {
	var draft PostDraft
	if !common.BindJSON(c, m.logger, &draft) {
		return
	}

	post, err := m.service.CreatePost(c.Request.Context(), auth.CurrentIdentity(c), draft)
	if err != nil {
		common.RespondError(c, m.logger, err)
		return
	}
	common.RespondData(c, http.StatusCreated, post)
}

func (m *ContentModule) updatePost(c *gin.Context) {
	id := auth.CurrentIdentity(c)
	// a caller who may not touch the post is refused before the body is read
	if _, err := m.service.AuthorizePostMutation(c.Request.Context(), id, c.Param("id")); err != nil {
		common.RespondError(c, m.logger, err)
		return
	}

	var patch PostPatch
	if !common.BindJSON(c, m.logger, &patch) {
		return
	}

	post, err := m.service.UpdatePost(c.Request.Context(), id, c.Param("id"), patch)
	if err != nil {
		common.RespondError(c, m.logger, err)
		return
	}
	common.RespondData(c, http.StatusOK, post)
}

func (m *ContentModule) deletePost(c *gin.Context) {
	if err := m.service.DeletePost(c.Request.Context(), auth.CurrentIdentity(c), c.Param("id")); err != nil {
		common.RespondError(c, m.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (m *ContentModule) addComment(c *gin.Context) {
	var draft CommentDraft
	if !common.BindJSON(c, m.logger, &draft) {
		return
	}

	post, err := m.service.AddComment(c.Request.Context(), auth.CurrentIdentity(c), c.Param("id"), draft)
	if err != nil {
		common.RespondError(c, m.logger, err)
		return
	}
	common.RespondData(c, http.StatusCreated, post)
}

func (m *ContentModule) listCategories(c *gin.Context) {
	categories, err := m.service.ListCategories(c.Request.Context())
	if err != nil {
		common.RespondError(c, m.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "count": len(categories), "data": categories})
}

func (m *ContentModule) getCategory(c *gin.Context) {
	category, err := m.service.GetCategory(c.Request.Context(), c.Param("id"))
	if err != nil {
		common.RespondError(c, m.logger, err)
		return
	}
	common.RespondData(c, http.StatusOK, category)
}

func (m *ContentModule) createCategory(c *gin.Context) {
	if err := AuthorizeCategoryCreate(auth.CurrentIdentity(c)); err != nil {
		common.RespondError(c, m.logger, err)
		return
	}

	var draft CategoryDraft
	if !common.BindJSON(c, m.logger, &draft) {
		return
	}

	category, err := m.service.CreateCategory(c.Request.Context(), auth.CurrentIdentity(c), draft)
	if err != nil {
		common.RespondError(c, m.logger, err)
		return
	}
	common.RespondData(c, http.StatusCreated, category)
}

func (m *ContentModule) updateCategory(c *gin.Context) {
	if err := AuthorizeCategoryMutation(auth.CurrentIdentity(c)); err != nil {
		common.RespondError(c, m.logger, err)
		return
	}

	var patch CategoryPatch
	if !common.BindJSON(c, m.logger, &patch) {
		return
	}

	category, err := m.service.UpdateCategory(c.Request.Context(), auth.CurrentIdentity(c), c.Param("id"), patch)
	if err != nil {
		common.RespondError(c, m.logger, err)
		return
	}
	common.RespondData(c, http.StatusOK, category)
}

func (m *ContentModule) deleteCategory(c *gin.Context) {
	if err := m.service.DeleteCategory(c.Request.Context(), auth.CurrentIdentity(c), c.Param("id")); err != nil {
		common.RespondError(c, m.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}
