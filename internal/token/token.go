// Package token 计算行级消歧 token。
//
// token 是一条生产者与解析端之间的弱约定：QS 生成端把 "[EXT:<token>]"
// 嵌入描述文本，merge 端用同样的输入重算 token 并做字面子串匹配。
// 因此两端的计算必须逐字节一致，任何改动都等于撕毁协议。
package token

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
)

// descriptorLimit 限定参与摘要的几何描述前缀长度（按字符数，不是字节数）。
const descriptorLimit = 256

// Token 由 (要素身份, 几何描述) 推导 12 位十六进制消歧 token。
//
// 规则：
// - descriptor 截断到前 256 个字符
// - 以 '|' 拼接 identity 与截断结果
// - 丢弃非法 UTF-8 字节（不报错），对 UTF-8 字节做 SHA-1
// - 取摘要十六进制的前 12 位
//
// 纯函数：相同输入永远得到相同输出。“无上下文”由调用方约定为空 token，
// 本函数不对空输入做特判。
func Token(identity, descriptor string) string {
	r := []rune(descriptor)
	if len(r) > descriptorLimit {
		r = r[:descriptorLimit]
	}

	basis := strings.ToValidUTF8(identity+"|"+string(r), "")
	sum := sha1.Sum([]byte(basis))
	return hex.EncodeToString(sum[:])[:12]
}

// Tag 把 token 包装成描述文本里的字面标记。空 token 返回空串。
func Tag(tok string) string {
	if tok == "" {
		return ""
	}
	return "[EXT:" + tok + "]"
}
