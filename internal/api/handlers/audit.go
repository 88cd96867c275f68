package handlers

import (
	"encoding/base64"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sitelens/sitelens/internal/domain"
	"github.com/sitelens/sitelens/internal/pipeline"
	"github.com/sitelens/sitelens/pkg/httputil"
)

// AuditHandler exposes the audit pipeline over HTTP.
type AuditHandler struct {
	service *pipeline.Service
	logger  *zap.Logger
}

// NewAuditHandler creates a new audit handler
func NewAuditHandler(service *pipeline.Service, logger *zap.Logger) *AuditHandler {
	return &AuditHandler{service: service, logger: logger}
}

// createAuditRequest accepts either a URL or a base64 image, not both.
type createAuditRequest struct {
	URL         string `json:"url,omitempty"`
	ImageBase64 string `json:"image_base64,omitempty"`
}

// auditAccepted is the synchronous answer: the id to poll plus the report
// as it stood when the background phase detached.
type auditAccepted struct {
	ID     uuid.UUID           `json:"id"`
	Report *domain.AuditReport `json:"report"`
}

// Create handles POST /api/v1/audits
func (h *AuditHandler) Create(w http.ResponseWriter, r *http.Request) {
	contentType := r.Header.Get("Content-Type")

	// Raw image uploads come as multipart form data; JSON covers both URL
	// audits and base64 image audits.
	if strings.HasPrefix(contentType, "multipart/form-data") {
		h.createFromUpload(w, r)
		return
	}

	var req createAuditRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.ErrorFromDomain(w, err)
		return
	}

	switch {
	case req.URL != "" && req.ImageBase64 != "":
		httputil.ErrorFromDomain(w, domain.ValidationError("body", "provide url or image_base64, not both"))
	case req.URL != "":
		h.respond(w, r, func() (*domain.AuditReport, error) {
			return h.service.StartURLAudit(r.Context(), req.URL)
		})
	case req.ImageBase64 != "":
		data, err := base64.StdEncoding.DecodeString(req.ImageBase64)
		if err != nil {
			httputil.ErrorFromDomain(w, domain.ValidationError("image_base64", "invalid base64 payload"))
			return
		}
		h.respond(w, r, func() (*domain.AuditReport, error) {
			return h.service.StartImageAudit(r.Context(), data)
		})
	default:
		httputil.ErrorFromDomain(w, domain.ValidationError("body", "url or image_base64 is required"))
	}
}

func (h *AuditHandler) createFromUpload(w http.ResponseWriter, r *http.Request) {
	file, _, err := r.FormFile("image")
	if err != nil {
		httputil.ErrorFromDomain(w, domain.ValidationError("image", "image file is required"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		httputil.ErrorFromDomain(w, domain.ValidationError("image", "reading upload: "+err.Error()))
		return
	}

	h.respond(w, r, func() (*domain.AuditReport, error) {
		return h.service.StartImageAudit(r.Context(), data)
	})
}

func (h *AuditHandler) respond(w http.ResponseWriter, r *http.Request, start func() (*domain.AuditReport, error)) {
	report, err := start()
	if err != nil {
		h.logger.Warn("audit rejected", zap.Error(err))
		httputil.ErrorFromDomain(w, err)
		return
	}
	httputil.JSON(w, http.StatusAccepted, auditAccepted{ID: report.ID, Report: report})
}

// Get handles GET /api/v1/audits/{id}
func (h *AuditHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	report, err := h.service.GetReport(r.Context(), id)
	if err != nil {
		httputil.ErrorFromDomain(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, report)
}

// GetStatus handles GET /api/v1/audits/{id}/status. Polling clients hit
// this once a second, so it returns only the status, not the screenshots.
func (h *AuditHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	report, err := h.service.GetReport(r.Context(), id)
	if err != nil {
		httputil.ErrorFromDomain(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, report.Status)
}

// GetScreenshot handles GET /api/v1/audits/{id}/screenshots/{kind}. The
// default answer is the image bytes; ?presigned=true answers with a
// time-limited archive URL instead, for clients that want to hand the
// download off.
func (h *AuditHandler) GetScreenshot(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	kind := chi.URLParam(r, "kind")

	if r.URL.Query().Get("presigned") == "true" {
		url, err := h.service.ScreenshotURL(r.Context(), id, kind)
		if err != nil {
			httputil.ErrorFromDomain(w, err)
			return
		}
		httputil.JSON(w, http.StatusOK, map[string]string{"url": url})
		return
	}

	data, err := h.service.Screenshot(r.Context(), id, kind)
	if err != nil {
		httputil.ErrorFromDomain(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Write(data)
}

func (h *AuditHandler) parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.ErrorFromDomain(w, domain.ValidationError("id", "invalid audit id"))
		return uuid.Nil, false
	}
	return id, true
}
