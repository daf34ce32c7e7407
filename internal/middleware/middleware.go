package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// 全局中间件和基础路由

type Middleware struct{}

func NewMiddleware() *Middleware {
	return &Middleware{}
}

func (m *Middleware) Load(g *gin.Engine) {
	g.Use(gin.Recovery())
	g.Use(RequestId())
	g.Use(Logger)
	g.Use(NoCache())
	g.Use(Options())
	g.Use(Secure())

	// 健康检查
	g.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})
}
