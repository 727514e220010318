package controllers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/cppla/stillalive/models"
	"github.com/cppla/stillalive/services"
	"github.com/cppla/stillalive/utils"
)

const postsListTTL = 5 * time.Minute

// PostController handles short status posts. Quota and ownership rules live in PostService;
// the read-only listings query gorm directly.
type PostController struct {
	db  *gorm.DB
	svc *services.PostService
}

// NewPostController creates a new PostController instance.
func NewPostController(db *gorm.DB, svc *services.PostService) *PostController {
	return &PostController{db: db, svc: svc}
}

// CreatePost publishes a post if the caller still has quota for today.
func (p *PostController) CreatePost(ctx *gin.Context) {
	var req struct {
		Content  string `json:"content" binding:"required,max=2000"`
		ImageURL string `json:"image_url" binding:"omitempty,url,max=1024"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40020, "invalid request payload")
		return
	}

	content := utils.SanitizeText(req.Content)
	if content == "" {
		utils.Error(ctx, http.StatusBadRequest, 40021, "content cannot be empty")
		return
	}

	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	post, err := p.svc.Create(ctx.Request.Context(), userID, content, req.ImageURL)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}

	p.invalidate(ctx, userID)
	utils.Success(ctx, gin.H{"post": post})
}

// Quota reports how many posts the caller has left today and when the count resets.
func (p *PostController) Quota(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	q, err := p.svc.CurrentQuota(ctx.Request.Context(), userID)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	utils.Success(ctx, q)
}

// ListPosts returns the newest posts with their authors.
func (p *PostController) ListPosts(ctx *gin.Context) {
	page, pageSize := parsePagination(ctx.Query("page"), ctx.Query("page_size"))
	cacheKey := fmt.Sprintf("cache:posts:list:page=%d:size=%d", page, pageSize)
	if b, ok := utils.CacheGetBytes(ctx.Request.Context(), cacheKey); ok {
		ctx.Data(http.StatusOK, "application/json", b)
		return
	}

	payload, err := p.listPosts(ctx, p.db.Model(&models.Post{}), page, pageSize)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	utils.CacheSetJSON(ctx.Request.Context(), cacheKey, utils.SuccessEnvelope(payload), postsListTTL)
	utils.Success(ctx, payload)
}

// ListMyPosts returns posts created by the authenticated user.
func (p *PostController) ListMyPosts(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	page, pageSize := parsePagination(ctx.Query("page"), ctx.Query("page_size"))
	payload, err := p.listPosts(ctx, p.db.Model(&models.Post{}).Where("user_id = ?", userID), page, pageSize)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	utils.Success(ctx, payload)
}

// ListUserPosts returns posts created by a specific user (public)
func (p *PostController) ListUserPosts(ctx *gin.Context) {
	userID, ok := parseIDParam(ctx, "id")
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40060, "invalid user id")
		return
	}
	page, pageSize := parsePagination(ctx.Query("page"), ctx.Query("page_size"))
	cacheKey := fmt.Sprintf("%spage=%d:size=%d", userPostsCachePrefix(userID), page, pageSize)
	if b, ok := utils.CacheGetBytes(ctx.Request.Context(), cacheKey); ok {
		ctx.Data(http.StatusOK, "application/json", b)
		return
	}

	payload, err := p.listPosts(ctx, p.db.Model(&models.Post{}).Where("user_id = ?", userID), page, pageSize)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	utils.CacheSetJSON(ctx.Request.Context(), cacheKey, utils.SuccessEnvelope(payload), postsListTTL)
	utils.Success(ctx, payload)
}

// DeletePost removes a post owned by the caller. Missing and foreign posts look the same.
func (p *PostController) DeletePost(ctx *gin.Context) {
	postID, ok := parseIDParam(ctx, "id")
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40023, "invalid post id")
		return
	}
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	if err := p.svc.Delete(ctx.Request.Context(), userID, postID); err != nil {
		writeServiceError(ctx, err)
		return
	}

	p.invalidate(ctx, userID)
	utils.Success(ctx, gin.H{"message": "post deleted"})
}

func (p *PostController) listPosts(ctx *gin.Context, q *gorm.DB, page, pageSize int) (gin.H, error) {
	q = q.WithContext(ctx.Request.Context())
	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, &services.StorageError{Op: "count posts", Err: err}
	}
	posts := []models.Post{}
	err := q.Preload("User").
		Order("created_at DESC").Order("id DESC").
		Offset((page - 1) * pageSize).Limit(pageSize).
		Find(&posts).Error
	if err != nil {
		return nil, &services.StorageError{Op: "list posts", Err: err}
	}
	return paginationPayload(posts, page, pageSize, total), nil
}

func (p *PostController) invalidate(ctx *gin.Context, userID uint) {
	utils.InvalidateByPrefix(ctx.Request.Context(), "cache:posts:list:")
	utils.InvalidateByPrefix(ctx.Request.Context(), userPostsCachePrefix(userID))
}

func userPostsCachePrefix(userID uint) string {
	return fmt.Sprintf("cache:user:%d:posts:", userID)
}
