package shared

import (
	"github.com/shkeeper-next/internal/http/response"
	"github.com/shkeeper-next/internal/models"

	"github.com/gin-gonic/gin"
)

const merchantContextKey = "merchant"

// GetContextUint 从上下文读取 uint 值并统一处理错误响应。
func GetContextUint(c *gin.Context, key string) (uint, bool) {
	value, exists := c.Get(key)
	if !exists {
		RespondError(c, response.CodeUnauthorized, "未认证", nil)
		return 0, false
	}

	switch v := value.(type) {
	case uint:
		return v, true
	case int:
		if v < 0 {
			RespondError(c, response.CodeBadRequest, "非法的上下文参数", nil)
			return 0, false
		}
		return uint(v), true
	case float64:
		if v < 0 {
			RespondError(c, response.CodeBadRequest, "非法的上下文参数", nil)
			return 0, false
		}
		return uint(v), true
	default:
		RespondError(c, response.CodeBadRequest, "非法的上下文参数", nil)
		return 0, false
	}
}

// MerchantFromContext 从上下文读取鉴权中间件写入的商户
func MerchantFromContext(c *gin.Context) (*models.Merchant, bool) {
	value, ok := c.Get(merchantContextKey)
	if !ok {
		RespondError(c, response.CodeUnauthorized, "未认证", nil)
		return nil, false
	}
	merchant, ok := value.(*models.Merchant)
	if !ok || merchant == nil {
		RespondError(c, response.CodeUnauthorized, "未认证", nil)
		return nil, false
	}
	return merchant, true
}
