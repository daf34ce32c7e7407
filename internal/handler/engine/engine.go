package engine

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cast"

	"tradecap/internal/account"
	"tradecap/internal/dao"
	"tradecap/internal/position"
	"tradecap/internal/strategy"
	"tradecap/pkg/response"
)

// 引擎控制接口：状态查询、暂停恢复、紧急停止

type Handler struct {
	engine *strategy.Engine
	pm     *position.Manager
	store  *account.Store
	trades *dao.TradeDao // 可为nil（纸面模式不接库）
}

func NewHandler(e *strategy.Engine, pm *position.Manager, store *account.Store, trades *dao.TradeDao) *Handler {
	return &Handler{engine: e, pm: pm, store: store, trades: trades}
}

type statusResp struct {
	Account        account.State `json:"account"`
	AdmissionOpen  bool          `json:"admission_open"`
	Stopped        bool          `json:"stopped"`
	OpenPositions  int           `json:"open_positions"`
	StuckPositions int           `json:"stuck_positions"`
}

// 引擎与账户状态
func (h *Handler) StatusGet() gin.HandlerFunc {
	return func(c *gin.Context) {
		response.JSON(c, nil, statusResp{
			Account:        h.store.Snapshot(),
			AdmissionOpen:  h.engine.AdmissionOpen(),
			Stopped:        h.engine.Stopped(),
			OpenPositions:  len(h.pm.List()),
			StuckPositions: len(h.pm.ListStuck()),
		})
	}
}

// 当前仓位列表
func (h *Handler) PositionsGet() gin.HandlerFunc {
	return func(c *gin.Context) {
		response.JSON(c, nil, h.pm.List())
	}
}

// 冻结待人工处理的仓位
func (h *Handler) StuckGet() gin.HandlerFunc {
	return func(c *gin.Context) {
		response.JSON(c, nil, h.pm.ListStuck())
	}
}

// 最近的成交记录，?symbol=BTC/USDT&limit=50
func (h *Handler) TradesGet() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.trades == nil {
			response.JSON(c, errors.New("trade history not available in this mode"), nil)
			return
		}
		symbol := c.Query("symbol")
		limit := cast.ToInt(c.DefaultQuery("limit", "50"))
		if limit <= 0 || limit > 500 {
			limit = 50
		}
		list, err := h.trades.TradesGetRecent(c, symbol, limit)
		response.JSON(c, err, list)
	}
}

func (h *Handler) Pause() gin.HandlerFunc {
	return func(c *gin.Context) {
		h.engine.Pause()
		response.JSON(c, nil, nil)
	}
}

func (h *Handler) Resume() gin.HandlerFunc {
	return func(c *gin.Context) {
		h.engine.Resume()
		response.JSON(c, nil, nil)
	}
}

type emergencyReq struct {
	CloseAll bool   `json:"close_all"`
	Confirm  string `json:"confirm" binding:"required,eq=EMERGENCY"` // 防误触
}

// 紧急停止，需要confirm=EMERGENCY
func (h *Handler) EmergencyStop() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req emergencyReq
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequests(c, "confirm field required")
			return
		}
		// 平仓不能跟着请求断开一起取消
		h.engine.EmergencyStop(context.WithoutCancel(c.Request.Context()), req.CloseAll)
		response.JSON(c, nil, gin.H{"stopped": true, "closed_all": req.CloseAll})
	}
}

type paramsUpdateReq struct {
	MinConfidenceLong  *float64 `json:"min_confidence_long" binding:"omitempty,gt=0,lte=1"`
	MinConfidenceShort *float64 `json:"min_confidence_short" binding:"omitempty,gt=0,lte=1"`
	MaxOpenPositions   *int     `json:"max_open_positions" binding:"omitempty,gt=0"`
	MaxTotalExposure   *float64 `json:"max_total_exposure" binding:"omitempty,gt=0,lte=1"`
	DailyLossLimit     *float64 `json:"daily_loss_limit" binding:"omitempty,gt=0,lt=1"`
	WeeklyLossLimit    *float64 `json:"weekly_loss_limit" binding:"omitempty,gt=0,lt=1"`
}

// 热更新部分风控参数，整体替换，进行中的一轮用旧值
func (h *Handler) ParamsUpdate() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req paramsUpdateReq
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequests(c, err.Error())
			return
		}
		p := h.engine.Params()
		if req.MinConfidenceLong != nil {
			p.MinConfidenceLong = *req.MinConfidenceLong
		}
		if req.MinConfidenceShort != nil {
			p.MinConfidenceShort = *req.MinConfidenceShort
		}
		if req.MaxOpenPositions != nil {
			p.MaxOpenPositions = *req.MaxOpenPositions
		}
		if req.MaxTotalExposure != nil {
			p.MaxTotalExposure = *req.MaxTotalExposure
		}
		if req.DailyLossLimit != nil {
			p.DailyLossLimit = *req.DailyLossLimit
		}
		if req.WeeklyLossLimit != nil {
			p.WeeklyLossLimit = *req.WeeklyLossLimit
		}
		h.engine.UpdateParams(p)
		response.JSON(c, nil, p)
	}
}

func (h *Handler) ParamsGet() gin.HandlerFunc {
	return func(c *gin.Context) {
		response.JSON(c, nil, h.engine.Params())
	}
}
