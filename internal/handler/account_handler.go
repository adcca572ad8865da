package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Edmaione/Terrain-Financials-sub001/internal/domain"
	"github.com/Edmaione/Terrain-Financials-sub001/internal/repository"
	"github.com/Edmaione/Terrain-Financials-sub001/pkg/logger"
	"github.com/Edmaione/Terrain-Financials-sub001/pkg/response"
)

type AccountHandler struct {
	repo repository.AccountRepository
}

func NewAccountHandler(repo repository.AccountRepository) *AccountHandler {
	return &AccountHandler{repo: repo}
}

type CreateAccountRequest struct {
	Name          string `json:"name" binding:"required"`
	Institution   string `json:"institution"`
	Type          string `json:"type" binding:"required,oneof=checking savings credit_card loan investment"`
	AccountNumber string `json:"account_number"`
	Last4         string `json:"last4" binding:"omitempty,len=4,numeric"`
}

// CreateAccount godoc
// @Summary Create an account
// @Description Register a bank or card account in the ledger
// @Tags accounts
// @Accept json
// @Produce json
// @Param account body CreateAccountRequest true "Account data"
// @Success 201 {object} response.Response
// @Failure 422 {object} response.Response
// @Failure 500 {object} response.Response
// @Router /api/v1/accounts [post]
func (h *AccountHandler) CreateAccount(c *gin.Context) {
	var req CreateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	account := &domain.Account{
		ID:            uuid.New().String(),
		Name:          req.Name,
		Institution:   req.Institution,
		Type:          domain.AccountType(req.Type),
		AccountNumber: req.AccountNumber,
		Last4:         req.Last4,
		Active:        true,
	}

	if err := h.repo.Create(account); err != nil {
		logger.GetLogger().WithError(err).Error("Failed to create account")
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, "Account created successfully", account)
}

// GetAccount godoc
// @Summary Get account by ID
// @Tags accounts
// @Produce json
// @Param id path string true "Account ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/accounts/{id} [get]
func (h *AccountHandler) GetAccount(c *gin.Context) {
	account, err := h.repo.GetByID(c.Param("id"))
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, "Account retrieved successfully", account)
}

// ListAccounts godoc
// @Summary List accounts
// @Tags accounts
// @Produce json
// @Success 200 {object} response.Response
// @Failure 500 {object} response.Response
// @Router /api/v1/accounts [get]
func (h *AccountHandler) ListAccounts(c *gin.Context) {
	accounts, err := h.repo.List()
	if err != nil {
		logger.GetLogger().WithError(err).Error("Failed to list accounts")
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, "Accounts retrieved successfully", accounts)
}
