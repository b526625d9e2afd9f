package models

import (
	"database/sql/driver"
	"encoding/json"

	"github.com/shopspring/decimal"
)

// CoinAmount 链上金额类型（保留 8 位小数）
type CoinAmount struct {
	decimal.Decimal
}

// NewCoinAmountFromDecimal 从 decimal 创建链上金额
func NewCoinAmountFromDecimal(amount decimal.Decimal) CoinAmount {
	return CoinAmount{Decimal: amount.Round(8)}
}

// MarshalJSON 统一输出 8 位小数的字符串
func (c CoinAmount) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Decimal.Round(8).StringFixed(8))
}

// UnmarshalJSON 解析金额（字符串或数字）
func (c *CoinAmount) UnmarshalJSON(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return err
		}
		c.Decimal = d.Round(8)
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	c.Decimal = decimal.NewFromFloat(f).Round(8)
	return nil
}

// Value 用于数据库写入
func (c CoinAmount) Value() (driver.Value, error) {
	return c.Decimal.Round(8).Value()
}

// Scan 用于数据库读取
func (c *CoinAmount) Scan(value interface{}) error {
	if err := c.Decimal.Scan(value); err != nil {
		return err
	}
	c.Decimal = c.Decimal.Round(8)
	return nil
}

// String 返回 8 位小数格式
func (c CoinAmount) String() string {
	return c.Decimal.Round(8).StringFixed(8)
}
