package content

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/FACorreiaa/citcs-portal/internal/app/domain"
	"github.com/FACorreiaa/citcs-portal/internal/app/guard"
	"github.com/FACorreiaa/citcs-portal/internal/app/models"
	"github.com/FACorreiaa/citcs-portal/internal/app/renderer"
	"github.com/FACorreiaa/citcs-portal/internal/app/views"
)

type ContentHandlers struct {
	*domain.BaseHandler
	svc    *Service
	logger *zap.Logger
}

func NewContentHandlers(svc *Service, logger *zap.Logger, base *domain.BaseHandler) *ContentHandlers {
	return &ContentHandlers{BaseHandler: base, svc: svc, logger: logger}
}

// RecordJSON is the public JSON shape of a record.
type RecordJSON struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	Summary     string            `json:"summary"`
	Description string            `json:"description"`
	ImageURL    string            `json:"image_url"`
	IsFeatured  bool              `json:"is_featured"`
	Attributes  map[string]string `json:"attributes"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

func toJSON(records []models.Record) []RecordJSON {
	out := make([]RecordJSON, 0, len(records))
	for _, r := range records {
		out = append(out, RecordJSON{
			ID:          r.ID,
			Title:       r.Title,
			Summary:     r.Summary,
			Description: r.Description,
			ImageURL:    r.ImageURL,
			IsFeatured:  r.IsFeatured,
			Attributes:  r.Attributes,
			CreatedAt:   r.CreatedAt,
			UpdatedAt:   r.UpdatedAt,
		})
	}
	return out
}

// Home renders the landing page with the featured records.
func (h *ContentHandlers) Home(c *gin.Context) {
	featured, err := h.svc.Featured(c.Request.Context())
	if err != nil {
		h.logger.Warn("Home page without featured records", zap.Error(err))
	}
	h.RenderPage(c, "CITCS", "Home", views.Home(featured))
}

func (h *ContentHandlers) Contact(c *gin.Context) {
	h.RenderPage(c, "Contact", "Contact", views.Contact(models.ContactDetails))
}

// Public serves the read-only listing of info as HTML or JSON.
func (h *ContentHandlers) Public(info models.EntityInfo) gin.HandlerFunc {
	return func(c *gin.Context) {
		records, err := h.svc.PublicList(c.Request.Context(), info.Entity)
		if err != nil {
			h.RenderError(c, http.StatusInternalServerError, "Could not load "+strings.ToLower(info.Label)+".", err)
			return
		}
		if c.NegotiateFormat(gin.MIMEHTML, gin.MIMEJSON) == gin.MIMEJSON {
			c.JSON(http.StatusOK, gin.H{"entity": info.Entity, "records": toJSON(records)})
			return
		}
		h.RenderPage(c, info.Label, info.Label, views.PublicList(info, records))
	}
}

// Dashboard greets the console user and shows the count of every entity.
func (h *ContentHandlers) Dashboard(c *gin.Context) {
	if !guard.RequireConsole(c) {
		return
	}
	snap := guard.SnapshotFrom(c)
	h.RenderAdmin(c, "Dashboard", "Dashboard", views.Dashboard(snap.Email(), snap.Role, h.svc.Counts(c.Request.Context())))
}

func page(info models.EntityInfo) string {
	return strings.ToLower(info.Label)
}

func (h *ContentHandlers) List(info models.EntityInfo) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !guard.RequireAdmin(c, page(info)) {
			return
		}
		records, err := h.svc.List(c.Request.Context(), info.Entity)
		if err != nil {
			h.RenderError(c, http.StatusInternalServerError, "Could not load "+page(info)+".", err)
			return
		}
		h.RenderAdmin(c, info.Label, info.Label, views.ContentList(info, records, flashFromQuery(c, info)))
	}
}

func (h *ContentHandlers) New(info models.EntityInfo) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !guard.RequireAdmin(c, page(info)) {
			return
		}
		h.renderForm(c, views.ContentFormData{Info: info})
	}
}

func (h *ContentHandlers) Edit(info models.EntityInfo) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !guard.RequireAdmin(c, page(info)) {
			return
		}
		rec, err := h.svc.Get(c.Request.Context(), info.Entity, c.Param("id"))
		if err != nil {
			h.fail(c, info, err)
			return
		}
		h.renderForm(c, views.ContentFormData{Info: info, ID: rec.ID, Input: models.RecordInput{
			Title:       rec.Title,
			Summary:     rec.Summary,
			Description: rec.Description,
			ImageURL:    rec.ImageURL,
			IsFeatured:  rec.IsFeatured,
			Attributes:  rec.Attributes,
		}})
	}
}

func (h *ContentHandlers) Create(info models.EntityInfo) gin.HandlerFunc {
	return func(c *gin.Context) {
		h.save(c, info, "")
	}
}

func (h *ContentHandlers) Update(info models.EntityInfo) gin.HandlerFunc {
	return func(c *gin.Context) {
		h.save(c, info, c.Param("id"))
	}
}

func (h *ContentHandlers) save(c *gin.Context, info models.EntityInfo, id string) {
	if !guard.RequireAdmin(c, page(info)) {
		return
	}
	ctx := c.Request.Context()
	actorID := guard.SnapshotFrom(c).User.UserID
	in := inputFromForm(c)

	if url, err := h.uploadFromForm(c, info); err != nil {
		h.renderForm(c, views.ContentFormData{Info: info, ID: id, Input: in, Error: message(err)})
		return
	} else if url != "" {
		in.ImageURL = url
	}

	var err error
	if id == "" {
		_, err = h.svc.Create(ctx, actorID, info.Entity, in)
	} else {
		_, err = h.svc.Update(ctx, actorID, info.Entity, id, in)
	}
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			h.fail(c, info, err)
			return
		}
		h.logger.Warn("Content save failed", zap.String("entity", string(info.Entity)), zap.Error(err))
		h.renderForm(c, views.ContentFormData{Info: info, ID: id, Input: in, Error: message(err)})
		return
	}
	renderer.Redirect(c, info.AdminPath()+"?flash=saved")
}

func (h *ContentHandlers) Delete(info models.EntityInfo) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !guard.RequireAdmin(c, page(info)) {
			return
		}
		actorID := guard.SnapshotFrom(c).User.UserID
		if err := h.svc.Delete(c.Request.Context(), actorID, info.Entity, c.Param("id")); err != nil {
			h.logger.Warn("Content delete failed", zap.String("entity", string(info.Entity)), zap.Error(err))
			renderer.Redirect(c, info.AdminPath()+"?flash=delete_failed")
			return
		}
		renderer.Redirect(c, info.AdminPath()+"?flash=deleted")
	}
}

// Upload stores a single image and answers with its public URL.
func (h *ContentHandlers) Upload(info models.EntityInfo) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !guard.SnapshotFrom(c).IsAdmin() {
			c.JSON(http.StatusForbidden, gin.H{"error": "You need admin access to manage " + page(info) + "."})
			return
		}
		url, err := h.uploadFromForm(c, info)
		switch {
		case err != nil:
			c.JSON(statusOf(err), gin.H{"error": message(err)})
		case url == "":
			c.JSON(http.StatusBadRequest, gin.H{"error": "Choose an image to upload."})
		default:
			c.JSON(http.StatusOK, gin.H{"url": url})
		}
	}
}

// uploadFromForm stores the optional "image" file. It returns "" when none was sent.
func (h *ContentHandlers) uploadFromForm(c *gin.Context, info models.EntityInfo) (string, error) {
	fh, err := c.FormFile("image")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return "", nil
		}
		return "", err
	}
	if fh.Size == 0 {
		return "", nil
	}
	if fh.Size > MaxUploadSize {
		return "", errTooLarge
	}
	f, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()
	actorID := guard.SnapshotFrom(c).User.UserID
	return h.svc.Upload(c.Request.Context(), actorID, info.Entity, fh.Filename, f)
}

func (h *ContentHandlers) renderForm(c *gin.Context, d views.ContentFormData) {
	d.UploadEnabled = h.svc.UploadEnabled()
	h.RenderAdmin(c, d.Info.Label, d.Info.Label, views.ContentForm(d))
}

func (h *ContentHandlers) fail(c *gin.Context, info models.EntityInfo, err error) {
	if errors.Is(err, models.ErrNotFound) {
		h.Logger.Info("Record not found", zap.String("entity", string(info.Entity)), zap.Error(err))
		h.RenderAdmin(c, info.Label, info.Label, views.ErrorPage(http.StatusNotFound, "That "+info.Singular+" no longer exists."))
		return
	}
	h.RenderError(c, http.StatusInternalServerError, "Could not load "+page(info)+".", err)
}

func inputFromForm(c *gin.Context) models.RecordInput {
	return models.RecordInput{
		Title:       c.PostForm("title"),
		Summary:     c.PostForm("summary"),
		Description: c.PostForm("description"),
		ImageURL:    c.PostForm("image_url"),
		IsFeatured:  c.PostForm("is_featured") == "true",
		Attributes:  ParseAttributes(c.PostForm("attributes")),
	}
}

var errTooLarge = errors.New("image exceeds the upload limit")

func message(err error) string {
	switch {
	case errors.Is(err, models.ErrValidation):
		if strings.Contains(err.Error(), "title") {
			return "Title is required."
		}
		return "Only image files can be uploaded."
	case errors.Is(err, models.ErrForbidden):
		return "Could not save. Admin access is required."
	case errors.Is(err, models.ErrStorageDisabled):
		return "Image uploads are not configured. Paste an image URL instead."
	case errors.Is(err, errTooLarge):
		return "Images must be 5 MB or smaller."
	default:
		return "Could not save. Please try again."
	}
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, models.ErrValidation), errors.Is(err, errTooLarge):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, models.ErrStorageDisabled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func flashFromQuery(c *gin.Context, info models.EntityInfo) views.Flash {
	switch c.Query("flash") {
	case "saved":
		return views.Flash{Kind: views.FlashSuccess, Message: "Saved."}
	case "deleted":
		return views.Flash{Kind: views.FlashSuccess, Message: "Deleted."}
	case "delete_failed":
		return views.Flash{Kind: views.FlashError, Message: "Could not delete that " + info.Singular + "."}
	}
	return views.Flash{}
}
