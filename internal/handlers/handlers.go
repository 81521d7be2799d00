package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"betting-service/internal/services"
	"betting-service/pkg/common"
)

// UserHeader carries the authenticated user id set by the API gateway.
const UserHeader = "X-User-Id"

type Handler struct {
	Bets       *services.BetService
	Settlement *services.SettlementService
	Wallets    *services.WalletService
	Log        *zap.Logger
}

func New(bets *services.BetService, settlement *services.SettlementService, wallets *services.WalletService, log *zap.Logger) *Handler {
	return &Handler{Bets: bets, Settlement: settlement, Wallets: wallets, Log: log}
}

func (h *Handler) Register(r *gin.Engine) {
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	player := r.Group("/", h.requireUser)
	player.POST("/bets", h.PlaceBet)
	player.GET("/bets", h.GetUserBets)
	player.GET("/bets/:id", h.GetBet)
	player.GET("/wallets/balance", h.GetBalance)
	player.GET("/transactions", h.GetTransactions)

	admin := r.Group("/admin")
	admin.POST("/wallets", h.CreateWallet)
	admin.POST("/wallets/adjust", h.AdjustBalance)
	admin.GET("/wallets/:userId/reconcile", h.Reconcile)
	admin.POST("/bets/:id/void", h.VoidBet)
	admin.POST("/matches/:id/settle", h.SettleMatch)
	admin.POST("/matches/:id/void", h.VoidMatchBets)
}

func (h *Handler) requireUser(c *gin.Context) {
	id, err := strconv.Atoi(c.GetHeader(UserHeader))
	if err != nil || id <= 0 {
		c.AbortWithStatusJSON(http.StatusUnauthorized, common.NewErrorResponse(common.CodeUnauthorized, "missing or invalid "+UserHeader, nil, http.StatusUnauthorized))
		return
	}
	c.Set("userId", id)
	c.Next()
}

func userID(c *gin.Context) int {
	return c.GetInt("userId")
}

// StatusFor maps a service error to its HTTP status.
func StatusFor(err error) int {
	switch services.Kind(err) {
	case services.KindNotFound:
		return http.StatusNotFound
	case services.KindInvalidState:
		return http.StatusConflict
	case services.KindPolicyViolation:
		return http.StatusUnprocessableEntity
	case services.KindInvalidInput:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) fail(c *gin.Context, err error) {
	status := StatusFor(err)
	message := err.Error()
	var data interface{}

	var limitErr *services.LimitExceededError
	if errors.As(err, &limitErr) {
		data = gin.H{"reason": limitErr.Reason}
		message = limitErr.Message
	}
	if status == http.StatusInternalServerError {
		h.Log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		message = "internal server error"
	}
	c.JSON(status, common.NewErrorResponse(string(services.Kind(err)), message, data, status))
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, common.NewErrorResponse(common.CodeBadRequest, message, nil, http.StatusBadRequest))
}

func pathID(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return id, true
}

// queryDate accepts RFC3339 or a plain date.
func queryDate(c *gin.Context, name string) (*time.Time, bool) {
	v := c.Query(name)
	if v == "" {
		return nil, true
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, v); err == nil {
			return &t, true
		}
	}
	badRequest(c, "invalid "+name)
	return nil, false
}

func queryInt(c *gin.Context, name string) int {
	n, _ := strconv.Atoi(c.Query(name))
	return n
}
