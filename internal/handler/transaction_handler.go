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

type TransactionHandler struct {
	service service.TransactionService
}

func NewTransactionHandler(service service.TransactionService) *TransactionHandler {
	return &TransactionHandler{service: service}
}

type SplitRequest struct {
	Amount     string  `json:"amount" binding:"required"`
	CategoryID *string `json:"category_id"`
	Memo       string  `json:"memo"`
}

type CreateTransactionRequest struct {
	AccountID   string         `json:"account_id" binding:"required"`
	Date        string         `json:"date" binding:"required"`
	Payee       string         `json:"payee"`
	Description string         `json:"description"`
	Amount      string         `json:"amount" binding:"required"`
	Splits      []SplitRequest `json:"splits"`
}

type ListTransactionsRequest struct {
	AccountID string `form:"account_id" binding:"required"`
	StartDate string `form:"start_date" binding:"required"`
	EndDate   string `form:"end_date" binding:"required"`
}

// CreateTransaction godoc
// @Summary Create a ledger transaction
// @Description Create a transaction; splits, when present, must sum to zero
// @Tags transactions
// @Accept json
// @Produce json
// @Param transaction body CreateTransactionRequest true "Transaction data"
// @Success 201 {object} response.Response
// @Failure 422 {object} response.Response
// @Failure 500 {object} response.Response
// @Router /api/v1/transactions [post]
func (h *TransactionHandler) CreateTransaction(c *gin.Context) {
	var req CreateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.GetLogger().WithError(err).Error("Invalid request")
		response.ValidationError(c, err.Error())
		return
	}

	date, err := parser.ParseDate(req.Date)
	if err != nil {
		response.BadRequest(c, "Invalid date format", "Use YYYY-MM-DD format")
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		response.BadRequest(c, "Invalid amount", err.Error())
		return
	}

	tx := &domain.Transaction{
		AccountID:   req.AccountID,
		Date:        date,
		Payee:       req.Payee,
		Description: req.Description,
		Amount:      amount,
	}

	for _, split := range req.Splits {
		splitAmount, err := decimal.NewFromString(split.Amount)
		if err != nil {
			response.BadRequest(c, "Invalid split amount", err.Error())
			return
		}
		tx.Splits = append(tx.Splits, domain.Split{
			Amount:     splitAmount,
			CategoryID: split.CategoryID,
			Memo:       split.Memo,
		})
	}

	if err := h.service.Create(tx); err != nil {
		logger.GetLogger().WithError(err).Error("Failed to create transaction")
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, "Transaction created successfully", tx)
}

// GetTransaction godoc
// @Summary Get transaction by ID
// @Tags transactions
// @Produce json
// @Param id path string true "Transaction ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/transactions/{id} [get]
func (h *TransactionHandler) GetTransaction(c *gin.Context) {
	tx, err := h.service.GetByID(c.Param("id"))
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, "Transaction retrieved successfully", tx)
}

// ApproveTransaction godoc
// @Summary Approve a pending transaction
// @Description Mark a transaction as reviewed; approving twice is a no-op
// @Tags transactions
// @Produce json
// @Param id path string true "Transaction ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 500 {object} response.Response
// @Router /api/v1/transactions/{id}/approve [post]
func (h *TransactionHandler) ApproveTransaction(c *gin.Context) {
	if err := h.service.Approve(c.Param("id")); err != nil {
		logger.GetLogger().WithError(err).Error("Failed to approve transaction")
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, "Transaction approved successfully", nil)
}

// ListTransactions godoc
// @Summary List transactions for an account and date range
// @Tags transactions
// @Produce json
// @Param account_id query string true "Account ID"
// @Param start_date query string true "Start date (YYYY-MM-DD)"
// @Param end_date query string true "End date (YYYY-MM-DD)"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 500 {object} response.Response
// @Router /api/v1/transactions [get]
func (h *TransactionHandler) ListTransactions(c *gin.Context) {
	var req ListTransactionsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	start, err := parser.ParseDate(req.StartDate)
	if err != nil {
		response.BadRequest(c, "Invalid start_date format", "Use YYYY-MM-DD format")
		return
	}
	end, err := parser.ParseDate(req.EndDate)
	if err != nil {
		response.BadRequest(c, "Invalid end_date format", "Use YYYY-MM-DD format")
		return
	}

	transactions, err := h.service.GetByAccountAndDateRange(req.AccountID, start, end)
	if err != nil {
		logger.GetLogger().WithError(err).Error("Failed to list transactions")
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, "Transactions retrieved successfully", transactions)
}
