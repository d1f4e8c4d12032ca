package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/openblog/backend/internal/auth"
	apperrors "github.com/openblog/backend/internal/errors"
	"github.com/openblog/backend/internal/logger"
	"github.com/openblog/backend/internal/storage"
)

const (
	// Avatars above this size are rejected before touching storage.
	maxAvatarBytes = 500 * 1024

	avatarPrefix = "uploads/images/"
)

var allowedAvatarTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
}

// AvatarHandlers covers avatar upload and serving stored images.
type AvatarHandlers struct {
	authService *auth.Service
	uploader    *storage.Uploader
	store       *storage.Client
}

func NewAvatarHandlers(authService *auth.Service, uploader *storage.Uploader, store *storage.Client) *AvatarHandlers {
	return &AvatarHandlers{
		authService: authService,
		uploader:    uploader,
		store:       store,
	}
}

// Upload accepts a multipart avatar image, stores it and records the
// new key on the user.
func (h *AvatarHandlers) Upload(w http.ResponseWriter, r *http.Request) error {
	identity := auth.IdentityFromContext(r.Context())
	if identity == nil {
		return apperrors.Unauthorized("not authenticated")
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxAvatarBytes+4096)
	if err := r.ParseMultipartForm(maxAvatarBytes); err != nil {
		return apperrors.ValidationError("avatar must be at most 500KB")
	}

	file, header, err := r.FormFile("avatar")
	if err != nil {
		return apperrors.ValidationError("avatar file is required")
	}
	defer file.Close()

	if header.Size > maxAvatarBytes {
		return apperrors.ValidationError("avatar must be at most 500KB")
	}

	ext := strings.ToLower(path.Ext(header.Filename))
	contentType, ok := allowedAvatarTypes[ext]
	if !ok {
		return apperrors.ValidationError("avatar must be a png, jpg or jpeg image")
	}

	key := fmt.Sprintf("%s%s%s", avatarPrefix, uuid.NewString(), ext)

	if err := h.uploader.Upload(r.Context(), key, file, header.Size, contentType); err != nil {
		return apperrors.StorageError("failed to store avatar").WithCause(err)
	}

	if err := h.authService.UpdateAvatar(r.Context(), identity.UserID, key); err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			return apperrors.UserNotFound()
		}
		return apperrors.InternalError("failed to update avatar").WithCause(err)
	}

	user, err := h.authService.UserByID(r.Context(), identity.UserID)
	if err != nil {
		return apperrors.InternalError("failed to load user").WithCause(err)
	}

	apperrors.WriteJSON(w, logger.GetRequestID(r.Context()), http.StatusOK, map[string]string{
		"avatar": user.Avatar,
	})
	return nil
}

// ServeImage streams a stored image back to the client.
func (h *AvatarHandlers) ServeImage(w http.ResponseWriter, r *http.Request) error {
	name := r.PathValue("name")
	if name == "" || strings.Contains(name, "/") || strings.Contains(name, "..") {
		return apperrors.ValidationError("invalid image name")
	}

	ext := strings.ToLower(path.Ext(name))
	if _, ok := allowedAvatarTypes[ext]; !ok {
		return apperrors.NotFound("image")
	}

	obj, info, err := h.store.GetObject(r.Context(), avatarPrefix+name)
	if err != nil {
		return apperrors.NotFound("image")
	}
	defer obj.Close()

	contentType := info.ContentType
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = allowedAvatarTypes[ext]
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	w.Header().Set("Cache-Control", "public, max-age=86400")
	if info.ETag != "" {
		w.Header().Set("ETag", info.ETag)
	}
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, obj); err != nil {
		logger.Warn(r.Context(), "image stream interrupted", map[string]any{"error": err.Error()})
	}
	return nil
}
