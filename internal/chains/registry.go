package chains

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Registry 币种后端注册表（构造期注入，运行期只读）
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

// NewRegistry 创建注册表
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[string]Adapter)}
	for _, a := range adapters {
		r.Register(a)
	}
	return r
}

// Register 注册币种后端（同名覆盖）
func (r *Registry) Register(adapter Adapter) {
	if adapter == nil {
		return
	}
	key := normalizeCrypto(adapter.Crypto())
	if key == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[key] = adapter
}

// Get 按币种获取后端
func (r *Registry) Get(crypto string) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	adapter, ok := r.adapters[normalizeCrypto(crypto)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCrypto, crypto)
	}
	return adapter, nil
}

// Payer 按币种获取出金能力，后端不支持出金时返回 ErrPayoutUnsupported
func (r *Registry) Payer(crypto string) (Payer, error) {
	adapter, err := r.Get(crypto)
	if err != nil {
		return nil, err
	}
	payer, ok := adapter.(Payer)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPayoutUnsupported, crypto)
	}
	return payer, nil
}

// Has 判断币种是否已接入
func (r *Registry) Has(crypto string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.adapters[normalizeCrypto(crypto)]
	return ok
}

// List 返回已接入币种列表（按字典序）
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cryptos := make([]string, 0, len(r.adapters))
	for key := range r.adapters {
		cryptos = append(cryptos, key)
	}
	sort.Strings(cryptos)
	return cryptos
}

func normalizeCrypto(crypto string) string {
	return strings.ToUpper(strings.TrimSpace(crypto))
}
