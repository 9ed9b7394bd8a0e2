package domain

import "strings"

// Code 是待对账的外部标识符（例如输电线路编号 "LT-100"）。
//
// 约束：只做 trim + 非空校验，不做任何格式规范化——
// 各机构的编号体系差异太大，宁可原样匹配，也不允许“猜”出一个错的。
type Code string

// ParseCode 校验并解析一个 code 单元格。
// 空串/纯空白返回 false（调用方应跳过该行，而不是带着空 code 去查询）。
func ParseCode(s string) (Code, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	return Code(s), true
}
