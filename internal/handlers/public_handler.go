package handlers

import (
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"ticket-portal/internal/services"
	"ticket-portal/utils"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

const maxScreenshotSize = 5 << 20

var screenshotExts = map[string]bool{"png": true, "jpg": true, "jpeg": true, "webp": true}

// PublicHandler backs the referral page. None of its routes require auth.
type PublicHandler struct {
	app         core.App
	submissions *services.SubmissionService
	inventory   *services.InventoryService
}

func NewPublicHandler(app core.App, submissions *services.SubmissionService, inventory *services.InventoryService) *PublicHandler {
	return &PublicHandler{
		app:         app,
		submissions: submissions,
		inventory:   inventory,
	}
}

// GetPartner - GET /public/partners/{code}
func (h *PublicHandler) GetPartner(e *core.RequestEvent) error {
	partner, err := h.submissions.ResolvePartner(e.Request.Context(), e.Request.PathValue("code"))
	if err != nil {
		return respondError(e, "h.submissions.ResolvePartner()", err)
	}
	return e.JSON(http.StatusOK, map[string]any{
		"partner_code": partner.PartnerCode,
		"name":         partner.Name,
	})
}

func (h *PublicHandler) ListTiers(e *core.RequestEvent) error {
	tiers, err := h.inventory.PublicTiers(e.Request.Context())
	if err != nil {
		return respondError(e, "h.inventory.PublicTiers()", err)
	}
	return e.JSON(http.StatusOK, map[string]any{"items": tiers})
}

// UploadScreenshot stores a payment screenshot and returns the path to send
// back with the submission.
func (h *PublicHandler) UploadScreenshot(e *core.RequestEvent) error {
	files, err := e.FindUploadedFiles("file")
	if err != nil || len(files) == 0 {
		return apis.NewBadRequestError("Missing screenshot file", err)
	}
	file := files[0]

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(file.OriginalName), "."))
	if !screenshotExts[ext] {
		return apis.NewBadRequestError("Screenshot must be a png, jpg or webp image", nil)
	}
	if file.Size > maxScreenshotSize {
		return apis.NewBadRequestError("Screenshot is larger than 5MB", nil)
	}

	key, err := utils.GenerateObjectKey("screenshots", ext, time.Now())
	if err != nil {
		return respondError(e, "utils.GenerateObjectKey()", err)
	}

	fsys, err := h.app.NewFilesystem()
	if err != nil {
		return respondError(e, "h.app.NewFilesystem()", err)
	}
	defer fsys.Close()

	if err := fsys.UploadFile(file, key); err != nil {
		slog.Error("fsys.UploadFile()", "key", key, "error", err)
		return apis.NewInternalServerError("Failed to store screenshot", nil)
	}
	return e.JSON(http.StatusCreated, map[string]any{"path": key})
}

func (h *PublicHandler) SubmitSale(e *core.RequestEvent) error {
	var req services.PublicSubmission
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	sale, err := h.submissions.SubmitPublicSale(e.Request.Context(), req)
	if err != nil {
		return respondError(e, "h.submissions.SubmitPublicSale()", err)
	}
	return e.JSON(http.StatusCreated, map[string]any{
		"id":     sale.ID,
		"status": sale.Status,
		"amount": sale.Amount,
	})
}
