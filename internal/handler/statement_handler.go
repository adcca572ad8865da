package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/Edmaione/Terrain-Financials-sub001/internal/domain"
	"github.com/Edmaione/Terrain-Financials-sub001/internal/parser"
	"github.com/Edmaione/Terrain-Financials-sub001/internal/service"
	"github.com/Edmaione/Terrain-Financials-sub001/pkg/logger"
	"github.com/Edmaione/Terrain-Financials-sub001/pkg/response"
)

type StatementHandler struct {
	service service.ReconciliationService
}

func NewStatementHandler(service service.ReconciliationService) *StatementHandler {
	return &StatementHandler{service: service}
}

type CreateStatementRequest struct {
	AccountID        string             `json:"account_id" binding:"required"`
	PeriodStart      string             `json:"period_start" binding:"required"`
	PeriodEnd        string             `json:"period_end" binding:"required"`
	BeginningBalance string             `json:"beginning_balance" binding:"required"`
	EndingBalance    string             `json:"ending_balance" binding:"required"`
	ExtractedRows    []ExtractedRowBody `json:"extracted_rows"`
}

type ExtractedRowBody struct {
	Date        string `json:"date" binding:"required"`
	Payee       string `json:"payee"`
	Description string `json:"description"`
	Amount      string `json:"amount" binding:"required"`
}

type ClearRequest struct {
	TransactionIDs []string `json:"transaction_ids" binding:"required,min=1"`
	Action         string   `json:"action" binding:"required,oneof=clear unclear"`
}

type MatchExtractedRequest struct {
	ExtractedRows []ExtractedRowBody `json:"extracted_rows" binding:"required"`
	CreateMissing bool               `json:"create_missing"`
}

// CreateStatement godoc
// @Summary Create a bank statement
// @Description Register a statement period; balances are sign-normalized by account type
// @Tags statements
// @Accept json
// @Produce json
// @Param request body CreateStatementRequest true "Statement data"
// @Success 201 {object} response.Response
// @Failure 422 {object} response.Response
// @Failure 500 {object} response.Response
// @Router /api/v1/statements [post]
func (h *StatementHandler) CreateStatement(c *gin.Context) {
	var req CreateStatementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	periodStart, err := parser.ParseDate(req.PeriodStart)
	if err != nil {
		response.BadRequest(c, "Invalid period_start format", "Use YYYY-MM-DD format")
		return
	}
	periodEnd, err := parser.ParseDate(req.PeriodEnd)
	if err != nil {
		response.BadRequest(c, "Invalid period_end format", "Use YYYY-MM-DD format")
		return
	}

	beginning, err := decimal.NewFromString(req.BeginningBalance)
	if err != nil {
		response.BadRequest(c, "Invalid beginning_balance", err.Error())
		return
	}
	ending, err := decimal.NewFromString(req.EndingBalance)
	if err != nil {
		response.BadRequest(c, "Invalid ending_balance", err.Error())
		return
	}

	extracted, err := parseExtractedRows(req.ExtractedRows)
	if err != nil {
		response.BadRequest(c, "Invalid extracted rows", err.Error())
		return
	}

	stmt, err := h.service.CreateStatement(req.AccountID, periodStart, periodEnd, beginning, ending, extracted)
	if err != nil {
		logger.GetLogger().WithError(err).Error("Failed to create statement")
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, "Statement created successfully", stmt)
}

// Clear godoc
// @Summary Clear or unclear transactions against a statement
// @Tags statements
// @Accept json
// @Produce json
// @Param id path string true "Statement ID"
// @Param request body ClearRequest true "Transaction ids and action"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /api/v1/statements/{id}/clear [post]
func (h *StatementHandler) Clear(c *gin.Context) {
	var req ClearRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	err := h.service.Clear(c.Param("id"), req.TransactionIDs, service.ClearAction(req.Action))
	if err != nil {
		logger.GetLogger().WithError(err).Error("Failed to update clearings")
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, "Clearing updated successfully", map[string]int{"count": len(req.TransactionIDs)})
}

// MatchExtracted godoc
// @Summary Match extracted statement rows against ledger transactions
// @Tags statements
// @Accept json
// @Produce json
// @Param id path string true "Statement ID"
// @Param request body MatchExtractedRequest true "Extracted rows"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /api/v1/statements/{id}/match [post]
func (h *StatementHandler) MatchExtracted(c *gin.Context) {
	var req MatchExtractedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	rows, err := parseExtractedRows(req.ExtractedRows)
	if err != nil {
		response.BadRequest(c, "Invalid extracted rows", err.Error())
		return
	}

	result, err := h.service.MatchExtracted(c.Param("id"), rows, req.CreateMissing)
	if err != nil {
		logger.GetLogger().WithError(err).Error("Failed to match extracted rows")
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, "Matching completed", result)
}

// AutoMatch godoc
// @Summary Retry the statement's unmatched residue
// @Tags statements
// @Produce json
// @Param id path string true "Statement ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/statements/{id}/auto-match [post]
func (h *StatementHandler) AutoMatch(c *gin.Context) {
	matched, err := h.service.AutoMatch(c.Param("id"))
	if err != nil {
		logger.GetLogger().WithError(err).Error("Auto-match failed")
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, "Auto-match completed", map[string]int{"matched": matched})
}

// GetSummary godoc
// @Summary Get the reconciliation summary for a statement
// @Tags statements
// @Produce json
// @Param id path string true "Statement ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/statements/{id}/summary [get]
func (h *StatementHandler) GetSummary(c *gin.Context) {
	summary, err := h.service.Summarize(c.Param("id"))
	if err != nil {
		logger.GetLogger().WithError(err).Error("Failed to summarize statement")
		response.FromError(c, err)
		return
	}
	if summary == nil {
		response.NotFound(c, "Statement not found")
		return
	}

	response.Success(c, http.StatusOK, "Summary retrieved successfully", summary)
}

// Reconcile godoc
// @Summary Finalize a statement
// @Description Marks the statement reconciled when the computed difference is within tolerance
// @Tags statements
// @Produce json
// @Param id path string true "Statement ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /api/v1/statements/{id}/reconcile [post]
func (h *StatementHandler) Reconcile(c *gin.Context) {
	summary, err := h.service.Reconcile(c.Param("id"))
	if err != nil {
		logger.GetLogger().WithError(err).Error("Reconciliation failed")
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, "Statement reconciled successfully", summary)
}

// Cancel godoc
// @Summary Cancel a statement
// @Tags statements
// @Produce json
// @Param id path string true "Statement ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /api/v1/statements/{id}/cancel [post]
func (h *StatementHandler) Cancel(c *gin.Context) {
	if err := h.service.Cancel(c.Param("id")); err != nil {
		logger.GetLogger().WithError(err).Error("Failed to cancel statement")
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, "Statement canceled", nil)
}

func parseExtractedRows(bodies []ExtractedRowBody) ([]domain.ExtractedRow, error) {
	rows := make([]domain.ExtractedRow, 0, len(bodies))
	for _, body := range bodies {
		date, err := parser.ParseDate(body.Date)
		if err != nil {
			return nil, err
		}
		amount, err := decimal.NewFromString(body.Amount)
		if err != nil {
			return nil, err
		}
		rows = append(rows, domain.ExtractedRow{
			Date:        date,
			Payee:       body.Payee,
			Description: body.Description,
			Amount:      amount,
		})
	}
	return rows, nil
}
