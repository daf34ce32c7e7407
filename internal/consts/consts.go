package consts

import "time"

const (
	// RequestId 请求id名称
	RequestId = "request_id"

	// 响应码
	CodeSuccess = 0
	CodeError   = 1

	// 冷却记录的redis前缀
	CooldownPrefix = "tradecap:cooldown:"

	DateLayout   = "2006-01-02"
	TimeLayout   = "2006-01-02 15:04:05"
	TimeLayoutMs = "2006-01-02 15:04:05.000"

	// 默认redis过期时间
	RedisExrDefault = time.Hour * 24 * 5
)

// 平仓原因
const (
	ExitReasonStopLoss   = "stop_loss"
	ExitReasonTakeProfit = "take_profit"
	ExitReasonTrailing   = "trailing_stop"
	ExitReasonForceClose = "force_close"
	ExitReasonManual     = "manual"
	ExitReasonEmergency  = "emergency_stop"
)
