package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"betting-service/pkg/common"
)

func (h *Handler) VoidBet(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	bet, err := h.Settlement.VoidBet(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(bet, "Bet voided"))
}

func (h *Handler) SettleMatch(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	res, err := h.Settlement.SettleMatch(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(res, "Match settled"))
}

func (h *Handler) VoidMatchBets(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	res, err := h.Settlement.VoidMatchBets(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(res, "Match bets voided"))
}
