package public

import "github.com/shkeeper-next/internal/provider"

// Handler 商户端接口处理器入口
// 说明：该处理器覆盖商户注册登录、账单、台账与出金接口。
type Handler struct {
	*provider.Container
}

// New 创建商户端处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}
