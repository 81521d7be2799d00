package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"betting-service/internal/services"
	"betting-service/pkg/common"
)

type PlaceBetRequest struct {
	OddsId         int             `json:"odds_id" binding:"required"`
	Stake          decimal.Decimal `json:"stake"`
	IdempotencyKey string          `json:"idempotency_key" binding:"required"`
}

func (h *Handler) PlaceBet(c *gin.Context) {
	var req PlaceBetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	res, err := h.Bets.PlaceBet(c.Request.Context(), services.PlaceBetDTO{
		UserId:         userID(c),
		OddsId:         req.OddsId,
		Stake:          req.Stake,
		IdempotencyKey: req.IdempotencyKey,
		IpAddress:      c.ClientIP(),
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	if res.Duplicate {
		c.JSON(http.StatusOK, common.NewSuccessResponse(res, "Bet already placed"))
		return
	}
	c.JSON(http.StatusCreated, common.NewSuccessResponseWithStatus(res, "Bet placed", http.StatusCreated))
}

func (h *Handler) GetUserBets(c *gin.Context) {
	start, ok := queryDate(c, "start_date")
	if !ok {
		return
	}
	end, ok := queryDate(c, "end_date")
	if !ok {
		return
	}

	res, err := h.Bets.GetUserBets(c.Request.Context(), services.BetFilterDTO{
		UserId:    userID(c),
		Status:    c.Query("status"),
		MatchId:   queryInt(c, "match_id"),
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

func (h *Handler) GetBet(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	bet, err := h.Bets.GetBetById(c.Request.Context(), userID(c), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(bet, "Bet fetched"))
}
