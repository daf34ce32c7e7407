package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tradecap/internal/consts"
)

// 代表响应给客户端的的一个消息结构，包括错误码，错误信息，响应数据
type ApiResponse struct {
	RequestId string      `json:"request_id"` // 请求的唯一ID
	Code      int         `json:"code"`       // 错误码 0表示无错误
	Message   string      `json:"message"`    // 提示信息
	Data      interface{} `json:"data"`       // 响应数据，前端从这个里面取出数据展示
}

// 发送json格式数据
func JSON(c *gin.Context, err error, data interface{}) {
	// 如果失败的话返回http状态码400（一般也可以全部返回200）
	// 返回400 更严谨一些，个人接触的项目中大部分都是400。
	if err != nil {
		c.JSON(http.StatusBadRequest, ApiResponse{
			RequestId: c.GetString(consts.RequestId),
			Code:      consts.CodeError,
			Message:   err.Error(),
			Data:      data,
		})
		return
	}
	c.JSON(http.StatusOK, ApiResponse{
		RequestId: c.GetString(consts.RequestId),
		Code:      consts.CodeSuccess,
		Message:   "ok",
		Data:      data,
	})
}

// 请求频繁，返回429
func TooManyRequests(c *gin.Context) {
	c.JSON(http.StatusTooManyRequests, ApiResponse{
		RequestId: c.GetString(consts.RequestId),
		Code:      consts.CodeError,
		Message:   "The request is too frequent. Please try again later.",
		Data:      nil,
	})
}

// 参数非法，返回400
func BadRequests(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, ApiResponse{
		RequestId: c.GetString(consts.RequestId),
		Code:      consts.CodeError,
		Message:   message,
		Data:      nil,
	})
}
