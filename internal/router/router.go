package router

import (
	"github.com/gin-gonic/gin"

	"tradecap/internal/handler/engine"
	"tradecap/internal/handler/monitor"
)

type ApiRouter struct {
	engineHandler  *engine.Handler
	monitorHandler *monitor.Handler
}

func NewApiRouter(eh *engine.Handler, mh *monitor.Handler) *ApiRouter {
	return &ApiRouter{engineHandler: eh, monitorHandler: mh}
}

func (api *ApiRouter) Load(g *gin.Engine) {

	base := g.Group("/api/v1")

	e := base.Group("/engine")
	{
		e.GET("/status", api.engineHandler.StatusGet())
		e.GET("/params", api.engineHandler.ParamsGet())
		e.POST("/params", api.engineHandler.ParamsUpdate())
		e.POST("/pause", api.engineHandler.Pause())
		e.POST("/resume", api.engineHandler.Resume())
		// 紧急停止，需要在body里确认
		e.POST("/emergency-stop", api.engineHandler.EmergencyStop())
	}

	p := base.Group("/positions")
	{
		p.GET("/list", api.engineHandler.PositionsGet())
		p.GET("/stuck", api.engineHandler.StuckGet())
	}

	t := base.Group("/trades")
	{
		t.GET("/recent", api.engineHandler.TradesGet())
	}

	m := base.Group("/monitor")
	{
		m.GET("/ws", api.monitorHandler.ServeWS) // 通过websocket连接推送引擎状态
	}
}
