package gateway

import "github.com/shkeeper-next/internal/provider"

// Handler 链上守护进程回调处理器入口
// 说明：该处理器仅接收携带后端密钥的内部回调。
type Handler struct {
	*provider.Container
}

// New 创建回调处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}
