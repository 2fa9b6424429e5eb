package service

import (
	"strings"
	"sync"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	TopUpTypeFixed  = "FIXED"
	TopUpTypeCustom = "CUSTOM"
)

const (
	DefaultCustomTopUpMin int64 = 10000
	DefaultCustomTopUpMax int64 = 1000000
)

var amountPrinter = message.NewPrinter(language.English)

// formatAmount 千分位格式，如 10,000
func formatAmount(amount int64) string {
	return amountPrinter.Sprintf("%d", amount)
}

// TopUpPolicy 一次充值解析后的金额与类型，不直接持久化
type TopUpPolicy struct {
	Amount int64
	Type   string
}

// PolicyFunc 校验请求金额并给出最终充值金额
type PolicyFunc func(amount int64) (TopUpPolicy, error)

// FixedTopUp 固定面额由前端给出，这里原样透传不做校验
func FixedTopUp(amount int64) (TopUpPolicy, error) {
	return TopUpPolicy{Amount: amount, Type: TopUpTypeFixed}, nil
}

// CustomTopUp 自定义金额，闭区间 [min, max]
func CustomTopUp(min, max int64) PolicyFunc {
	return func(amount int64) (TopUpPolicy, error) {
		if amount < min || amount > max {
			return TopUpPolicy{}, newError(ErrInvalidAmount,
				"Custom top-up amount must be between %s and %s", formatAmount(min), formatAmount(max))
		}
		return TopUpPolicy{Amount: amount, Type: TopUpTypeCustom}, nil
	}
}

// TopUpFactory 按名称解析充值策略，可注册新策略而不改调用方
type TopUpFactory struct {
	mu       sync.RWMutex
	policies map[string]PolicyFunc
}

// NewTopUpFactory 注册 FIXED 与 CUSTOM
func NewTopUpFactory(customMin, customMax int64) *TopUpFactory {
	f := &TopUpFactory{policies: make(map[string]PolicyFunc)}
	f.Register(TopUpTypeFixed, FixedTopUp)
	f.Register(TopUpTypeCustom, CustomTopUp(customMin, customMax))
	return f
}

func (f *TopUpFactory) Register(name string, policy PolicyFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.policies[normalizeTopUpType(name)] = policy
}

// Create 名称大小写不敏感
func (f *TopUpFactory) Create(name string, amount int64) (TopUpPolicy, error) {
	f.mu.RLock()
	policy, ok := f.policies[normalizeTopUpType(name)]
	f.mu.RUnlock()

	if !ok {
		return TopUpPolicy{}, newError(ErrUnknownTopUpType, "Unknown top-up type: %s", name)
	}
	return policy(amount)
}

func normalizeTopUpType(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}
