package posts

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/openblog/backend/internal/auth"
	"github.com/openblog/backend/internal/cache"
	"github.com/openblog/backend/internal/db"
	apperrors "github.com/openblog/backend/internal/errors"
	"github.com/openblog/backend/internal/logger"
	"github.com/openblog/backend/internal/metrics"
	"github.com/openblog/backend/internal/websocket"
)

const (
	defaultLimit = 20
	maxLimit     = 100

	listCacheKey = "posts:list"
	listCacheTTL = 60 * time.Second
)

// PostStore is the persistence surface the post handlers need.
type PostStore interface {
	List(ctx context.Context, limit, offset int) ([]*db.Post, int, error)
	GetByID(ctx context.Context, id uuid.UUID) (*db.Post, error)
	Create(ctx context.Context, post *db.Post) error
	Update(ctx context.Context, post *db.Post) error
	Delete(ctx context.Context, id uuid.UUID) error
	Search(ctx context.Context, query string, limit, offset int) ([]*db.Post, int, error)
}

type AuthorInfo struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

type PostResponse struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Content   string     `json:"content"`
	Author    AuthorInfo `json:"author"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

type ListResponse struct {
	Posts  []*PostResponse `json:"posts"`
	Total  int             `json:"total"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

type CreateRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type UpdateRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type RemoveRequest struct {
	ID string `json:"id"`
}

// Notifier publishes post change events to connected clients.
type Notifier interface {
	PostChanged(ctx context.Context, eventType, postID, title, author string)
}

type Handlers struct {
	store       PostStore
	cache       *cache.Cache
	broadcaster Notifier
	metrics     *metrics.Metrics
}

func NewHandlers(store PostStore, c *cache.Cache, b Notifier, m *metrics.Metrics) *Handlers {
	return &Handlers{store: store, cache: c, broadcaster: b, metrics: m}
}

// List returns posts newest first. The default page is cached in redis
// since the public feed is by far the hottest endpoint.
func (h *Handlers) List(w http.ResponseWriter, r *http.Request) error {
	requestID := logger.GetRequestID(r.Context())
	limit, offset := pagination(r)

	cacheable := h.cache != nil && limit == defaultLimit && offset == 0
	if cacheable {
		if cached, ok := h.cache.Get(r.Context(), listCacheKey); ok {
			h.incCounter("post_list_cache_hits")
			w.Header().Set("Content-Type", "application/json")
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(cached))
			return nil
		}
		h.incCounter("post_list_cache_misses")
	}

	posts, total, err := h.store.List(r.Context(), limit, offset)
	if err != nil {
		return apperrors.DatabaseError("failed to list posts").WithCause(err)
	}

	resp := listResponse(posts, total, limit, offset)

	if cacheable {
		if data, err := json.Marshal(resp); err == nil {
			h.cache.Set(r.Context(), listCacheKey, string(data), listCacheTTL)
		}
	}

	apperrors.WriteJSON(w, requestID, http.StatusOK, resp)
	return nil
}

// Get returns a single post by ID.
func (h *Handlers) Get(w http.ResponseWriter, r *http.Request) error {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return apperrors.ValidationError("invalid post ID")
	}

	post, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, db.ErrPostNotFound) {
			return apperrors.PostNotFound()
		}
		return apperrors.DatabaseError("failed to get post").WithCause(err)
	}

	apperrors.WriteJSON(w, logger.GetRequestID(r.Context()), http.StatusOK, postResponse(post))
	return nil
}

// Search matches posts against ?q= by title and content.
func (h *Handlers) Search(w http.ResponseWriter, r *http.Request) error {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		return apperrors.ValidationError("search query is required")
	}

	limit, offset := pagination(r)

	posts, total, err := h.store.Search(r.Context(), query, limit, offset)
	if err != nil {
		return apperrors.DatabaseError("failed to search posts").WithCause(err)
	}

	apperrors.WriteJSON(w, logger.GetRequestID(r.Context()), http.StatusOK, listResponse(posts, total, limit, offset))
	return nil
}

// Add creates a post owned by the authenticated user.
func (h *Handlers) Add(w http.ResponseWriter, r *http.Request) error {
	identity := auth.IdentityFromContext(r.Context())
	if identity == nil {
		return apperrors.Unauthorized("not authenticated")
	}

	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return apperrors.BadRequest("invalid request body")
	}
	if err := validatePostFields(req.Title, req.Content); err != nil {
		return apperrors.ValidationError(err.Error())
	}

	now := time.Now()
	post := &db.Post{
		ID:        uuid.New(),
		Title:     req.Title,
		Content:   req.Content,
		UserID:    identity.UserID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := h.store.Create(r.Context(), post); err != nil {
		return apperrors.DatabaseError("failed to create post").WithCause(err)
	}

	// Re-read for author fields before anyone hears about the post
	created, err := h.store.GetByID(r.Context(), post.ID)
	if err != nil {
		created = post
	}

	h.invalidateList(r.Context())
	h.incCounter("posts_created")
	h.notify(r.Context(), websocket.EventPostCreated, created)

	apperrors.WriteJSON(w, logger.GetRequestID(r.Context()), http.StatusCreated, postResponse(created))
	return nil
}

// Update modifies a post. Only the owner may update it.
func (h *Handlers) Update(w http.ResponseWriter, r *http.Request) error {
	identity := auth.IdentityFromContext(r.Context())
	if identity == nil {
		return apperrors.Unauthorized("not authenticated")
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return apperrors.ValidationError("invalid post ID")
	}

	var req UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return apperrors.BadRequest("invalid request body")
	}
	if err := validatePostFields(req.Title, req.Content); err != nil {
		return apperrors.ValidationError(err.Error())
	}

	post, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, db.ErrPostNotFound) {
			return apperrors.PostNotFound()
		}
		return apperrors.DatabaseError("failed to get post").WithCause(err)
	}

	if post.UserID != identity.UserID {
		return apperrors.Unauthorized("not the author of this post")
	}

	post.Title = req.Title
	post.Content = req.Content

	if err := h.store.Update(r.Context(), post); err != nil {
		if errors.Is(err, db.ErrPostNotFound) {
			return apperrors.PostNotFound()
		}
		return apperrors.DatabaseError("failed to update post").WithCause(err)
	}

	h.invalidateList(r.Context())
	h.notify(r.Context(), websocket.EventPostUpdated, post)

	updated, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		updated = post
	}

	apperrors.WriteJSON(w, logger.GetRequestID(r.Context()), http.StatusOK, postResponse(updated))
	return nil
}

// Remove deletes a post. Only the owner may remove it.
func (h *Handlers) Remove(w http.ResponseWriter, r *http.Request) error {
	identity := auth.IdentityFromContext(r.Context())
	if identity == nil {
		return apperrors.Unauthorized("not authenticated")
	}

	var req RemoveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return apperrors.BadRequest("invalid request body")
	}

	id, err := uuid.Parse(req.ID)
	if err != nil {
		return apperrors.ValidationError("invalid post ID")
	}

	post, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, db.ErrPostNotFound) {
			return apperrors.PostNotFound()
		}
		return apperrors.DatabaseError("failed to get post").WithCause(err)
	}

	if post.UserID != identity.UserID {
		return apperrors.Unauthorized("not the author of this post")
	}

	if err := h.store.Delete(r.Context(), id); err != nil {
		if errors.Is(err, db.ErrPostNotFound) {
			return apperrors.PostNotFound()
		}
		return apperrors.DatabaseError("failed to delete post").WithCause(err)
	}

	h.invalidateList(r.Context())
	h.notify(r.Context(), websocket.EventPostDeleted, post)

	apperrors.WriteJSON(w, logger.GetRequestID(r.Context()), http.StatusOK, map[string]string{"message": "post removed"})
	return nil
}

func (h *Handlers) invalidateList(ctx context.Context) {
	if h.cache != nil {
		h.cache.Delete(ctx, listCacheKey)
	}
}

func (h *Handlers) incCounter(name string) {
	if h.metrics != nil {
		h.metrics.IncCounter(name)
	}
}

func (h *Handlers) notify(ctx context.Context, eventType string, post *db.Post) {
	if h.broadcaster != nil {
		h.broadcaster.PostChanged(ctx, eventType, post.ID.String(), post.Title, post.AuthorName)
	}
}

func pagination(r *http.Request) (limit, offset int) {
	limit = defaultLimit
	offset = 0

	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	return limit, offset
}

func validatePostFields(title, content string) error {
	if strings.TrimSpace(title) == "" {
		return errors.New("title is required")
	}
	if len(title) > 255 {
		return errors.New("title must be at most 255 characters")
	}
	if strings.TrimSpace(content) == "" {
		return errors.New("content is required")
	}
	return nil
}

func postResponse(post *db.Post) *PostResponse {
	return &PostResponse{
		ID:      post.ID.String(),
		Title:   post.Title,
		Content: post.Content,
		Author: AuthorInfo{
			ID:     post.UserID.String(),
			Name:   post.AuthorName,
			Avatar: post.AuthorAvatar,
		},
		CreatedAt: post.CreatedAt,
		UpdatedAt: post.UpdatedAt,
	}
}

func listResponse(posts []*db.Post, total, limit, offset int) *ListResponse {
	out := make([]*PostResponse, 0, len(posts))
	for _, p := range posts {
		out = append(out, postResponse(p))
	}
	return &ListResponse{
		Posts:  out,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	}
}
