package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"betting-service/internal/services"
	"betting-service/pkg/common"
)

func (h *Handler) CreateWallet(c *gin.Context) {
	var req services.CreateWalletDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	wallet, err := h.Wallets.CreateWallet(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, common.NewSuccessResponseWithStatus(wallet, "Wallet created", http.StatusCreated))
}

func (h *Handler) GetBalance(c *gin.Context) {
	balance, err := h.Wallets.GetBalance(c.Request.Context(), userID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(balance, "Wallet fetched"))
}

func (h *Handler) AdjustBalance(c *gin.Context) {
	var req services.AdjustBalanceDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	trx, err := h.Wallets.AdjustBalance(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(trx, "Wallet adjusted"))
}

func (h *Handler) Reconcile(c *gin.Context) {
	id, ok := pathID(c, "userId")
	if !ok {
		return
	}
	rec, err := h.Wallets.Reconcile(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(rec, "Wallet reconciled"))
}

func (h *Handler) GetTransactions(c *gin.Context) {
	start, ok := queryDate(c, "start_date")
	if !ok {
		return
	}
	end, ok := queryDate(c, "end_date")
	if !ok {
		return
	}
	res, err := h.Wallets.GetUserTransactions(c.Request.Context(), services.TransactionFilterDTO{
		UserId:    userID(c),
		Type:      c.Query("type"),
		StartDate: start,
		EndDate:   end,
		Page:      queryInt(c, "page"),
		Limit:     queryInt(c, "limit"),
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
