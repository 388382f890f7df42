package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/nuestrovinculo/vinculo/cmd/vinculo/models"
	"github.com/nuestrovinculo/vinculo/cmd/vinculo/service"
	"github.com/nuestrovinculo/vinculo/cmd/vinculo/spool"
	"github.com/nuestrovinculo/vinculo/common/bootstrap"
	"github.com/nuestrovinculo/vinculo/common/config"
	"github.com/nuestrovinculo/vinculo/common/storagenet"
)

// VideoFormField is the multipart field holding the uploaded video
const VideoFormField = "video"

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error    string `json:"error"`
	TxID     string `json:"txId,omitempty"`
	VideoURL string `json:"videoUrl,omitempty"`

	// Settlement-chain transfer the node has not credited yet
	FundingTxID string `json:"fundingTxId,omitempty"`
}

// CardHandler handles card lookups and video uploads
type CardHandler struct {
	components *bootstrap.Components
	cardSvc    *service.CardService
	spool      *spool.Spool
}

// NewCardHandler creates a new card handler
func NewCardHandler(components *bootstrap.Components, cardSvc *service.CardService, sp *spool.Spool) *CardHandler {
	return &CardHandler{
		components: components,
		cardSvc:    cardSvc,
		spool:      sp,
	}
}

// GetCard returns the card's initial and final videos
// GET /card/:cardId
func (h *CardHandler) GetCard(c echo.Context) error {
	cardID := c.Param("cardId")
	ctx := c.Request().Context()

	view, err := h.cardSvc.GetCard(ctx, cardID)
	if err != nil {
		return h.fail(c, err)
	}

	h.components.Logger.WithContext(ctx).Debug("card fetched", "card_id", cardID, "registered", view.Registered)
	return c.JSON(http.StatusOK, view)
}

// UploadVideo stores the multipart "video" file and records its URL on the card
// POST /card/:cardId/upload
func (h *CardHandler) UploadVideo(c echo.Context) error {
	cardID := c.Param("cardId")
	ctx := c.Request().Context()
	log := h.components.Logger.WithContext(ctx).WithCardID(cardID)

	header, err := c.FormFile(VideoFormField)
	if err != nil {
		log.Warn("upload without video file", "error", err)
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "no video file uploaded"})
	}
	if header.Size == 0 {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "uploaded video is empty"})
	}

	src, err := header.Open()
	if err != nil {
		log.Error("failed to open uploaded file", "error", err)
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to read uploaded video"})
	}
	defer src.Close()

	file, err := h.spool.Save(src)
	if err != nil {
		log.Error("failed to spool upload", "error", err)
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to read uploaded video"})
	}
	defer file.Release()

	payload, err := file.ReadAll()
	if err != nil {
		log.Error("failed to read spooled upload", "path", file.Path, "error", err)
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to read uploaded video"})
	}

	url, err := h.cardSvc.SubmitVideo(ctx, cardID, payload)
	if err != nil {
		return h.fail(c, err)
	}

	return c.JSON(http.StatusOK, models.UploadResult{VideoURL: url})
}

// fail maps service errors to a status and a distinct message
func (h *CardHandler) fail(c echo.Context, err error) error {
	log := h.components.Logger.WithContext(c.Request().Context())
	kind := service.ErrorKind(err)

	var lost *service.PersistedUploadLostError
	var missing *config.MissingError
	var unregistered *storagenet.FundingUnregisteredError

	switch {
	case errors.Is(err, service.ErrInvalidInput):
		log.Warn("rejected request", "kind", kind, "error", err)
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})

	case errors.As(err, &missing):
		log.Warn("storage network not configured", "kind", kind, "key", missing.Key)
		return c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error: "video storage is not configured: " + missing.Key + " is not set",
		})

	case errors.As(err, &lost):
		log.Error("request failed", "kind", kind, "error", err)
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:    "video was uploaded but could not be saved to the card",
			TxID:     lost.TxID,
			VideoURL: lost.URL,
		})

	case errors.As(err, &unregistered):
		log.Error("request failed", "kind", kind, "fund_tx_id", unregistered.TxID, "error", err)
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:       "storage account was funded but the node has not credited it; do not retry until it does",
			FundingTxID: unregistered.TxID,
		})

	case errors.Is(err, service.ErrStorageNetworkTimeout):
		log.Error("request failed", "kind", kind, "error", err)
		return c.JSON(http.StatusGatewayTimeout, ErrorResponse{Error: "video storage timed out"})

	case errors.Is(err, service.ErrStorageNetwork):
		log.Error("request failed", "kind", kind, "error", err)
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to upload video to storage"})

	case errors.Is(err, service.ErrStoreUnavailable):
		log.Error("request failed", "kind", kind, "error", err)
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to read card"})

	default:
		log.Error("request failed", "kind", kind, "error", err)
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}
