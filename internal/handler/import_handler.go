package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Edmaione/Terrain-Financials-sub001/internal/domain"
	"github.com/Edmaione/Terrain-Financials-sub001/internal/service"
	"github.com/Edmaione/Terrain-Financials-sub001/pkg/logger"
	"github.com/Edmaione/Terrain-Financials-sub001/pkg/response"
)

type ImportHandler struct {
	service service.ImportService
}

func NewImportHandler(service service.ImportService) *ImportHandler {
	return &ImportHandler{service: service}
}

type DetectRequest struct {
	CSVText string `json:"csv_text" binding:"required"`
}

type ImportRequest struct {
	AccountID string `json:"account_id"`
	CSVText   string `json:"csv_text" binding:"required"`
	Filename  string `json:"filename"`
	Source    string `json:"source" binding:"omitempty,oneof=csv pdf_statement relay"`
}

type ConfirmMappingRequest struct {
	AccountID       string `json:"account_id" binding:"required"`
	HeaderSignature string `json:"header_signature" binding:"required"`
}

// Detect godoc
// @Summary Detect the owning account for a CSV file
// @Description Fingerprint the file layout and propose an account without importing
// @Tags imports
// @Accept json
// @Produce json
// @Param request body DetectRequest true "Raw CSV text"
// @Success 200 {object} response.Response
// @Failure 422 {object} response.Response
// @Failure 500 {object} response.Response
// @Router /api/v1/imports/detect [post]
func (h *ImportHandler) Detect(c *gin.Context) {
	var req DetectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	result, err := h.service.Detect(req.CSVText)
	if err != nil {
		logger.GetLogger().WithError(err).Error("Detection failed")
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, "Detection completed", result)
}

// Import godoc
// @Summary Import a bank CSV export
// @Description Parse, detect, normalize and idempotently ingest a CSV file
// @Tags imports
// @Accept json
// @Produce json
// @Param request body ImportRequest true "Import request"
// @Success 200 {object} response.Response
// @Failure 422 {object} response.Response
// @Failure 500 {object} response.Response
// @Router /api/v1/imports [post]
func (h *ImportHandler) Import(c *gin.Context) {
	var req ImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.GetLogger().WithError(err).Error("Invalid request")
		response.ValidationError(c, err.Error())
		return
	}

	result, err := h.service.Import(service.ImportRequest{
		AccountID: req.AccountID,
		CSVText:   req.CSVText,
		Filename:  req.Filename,
		Source:    domain.TransactionSource(req.Source),
	})
	if err != nil {
		logger.GetLogger().WithError(err).Error("Import failed")
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, "Import completed successfully", result)
}

// ConfirmMapping godoc
// @Summary Confirm a detected account for a header signature
// @Description Records or reinforces a layout-to-account mapping used by future detections
// @Tags imports
// @Accept json
// @Produce json
// @Param request body ConfirmMappingRequest true "Mapping confirmation"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 422 {object} response.Response
// @Router /api/v1/imports/mappings [post]
func (h *ImportHandler) ConfirmMapping(c *gin.Context) {
	var req ConfirmMappingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	mapping, err := h.service.ConfirmMapping(req.AccountID, req.HeaderSignature)
	if err != nil {
		logger.GetLogger().WithError(err).Error("Failed to confirm mapping")
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, "Mapping confirmed", mapping)
}

// ListMappings godoc
// @Summary List stored layout-to-account mappings
// @Tags imports
// @Produce json
// @Success 200 {object} response.Response
// @Failure 500 {object} response.Response
// @Router /api/v1/imports/mappings [get]
func (h *ImportHandler) ListMappings(c *gin.Context) {
	mappings, err := h.service.ListMappings()
	if err != nil {
		logger.GetLogger().WithError(err).Error("Failed to list mappings")
		response.InternalError(c, "Failed to list mappings", err.Error())
		return
	}

	response.Success(c, http.StatusOK, "Mappings retrieved successfully", mappings)
}
