// Package sparql 构造 WDQS 查询并解析其 JSON 结果。
//
// 查询构造是纯函数：不联网、不感知批大小（分批由调用方负责）。
package sparql

import (
	"regexp"
	"strings"
)

// DefaultProperty 是匹配属性全部非法/缺失时的兜底（catalog code）。
const DefaultProperty = "P528"

// propRE 是匹配属性的严格语法：P + 数字。
// 不合法的条目静默丢弃（宁可少一个 UNION 分支，也不能把垃圾拼进查询）。
var propRE = regexp.MustCompile(`^P[0-9]+$`)

// BuildQuery 生成一批 code 的查询文本。
//
// 结构：
// - VALUES ?code { "..." ... }：空白 code 排除；内部双引号直接剥掉（不转义）
// - 每个合法属性一个 { ?item wdt:P... ?code . } 分支，UNION 连接
// - OPTIONAL 描述查询，按 descLang 过滤语言
func BuildQuery(props []string, codes []string, descLang string) string {
	values := buildValuesList(codes)

	unions := make([]string, 0, len(props))
	for _, p := range props {
		p = strings.TrimSpace(p)
		if !propRE.MatchString(p) {
			continue
		}
		unions = append(unions, "{ ?item wdt:"+p+" ?code . }")
	}
	unionBlock := "{ ?item wdt:" + DefaultProperty + " ?code . }"
	if len(unions) > 0 {
		unionBlock = strings.Join(unions, " UNION ")
	}

	var b strings.Builder
	b.WriteString("SELECT ?item ?code ?desc WHERE {\n")
	b.WriteString("  VALUES ?code { ")
	b.WriteString(values)
	b.WriteString(" }\n  ")
	b.WriteString(unionBlock)
	b.WriteString("\n  OPTIONAL {\n    ?item schema:description ?desc .\n    FILTER (LANG(?desc) = \"")
	b.WriteString(strings.TrimSpace(descLang))
	b.WriteString("\")\n  }\n}\n")
	return b.String()
}

func buildValuesList(codes []string) string {
	quoted := make([]string, 0, len(codes))
	for _, c := range codes {
		if strings.TrimSpace(c) == "" {
			continue
		}
		quoted = append(quoted, `"`+strings.ReplaceAll(c, `"`, "")+`"`)
	}
	return strings.Join(quoted, " ")
}

// Chunk 把去重排序后的 code 列表切成定长批次（末批可短）。
// 每个 code 恰好出现在一个批次中。
func Chunk(codes []string, n int) [][]string {
	if n < 1 {
		n = 1
	}
	out := make([][]string, 0, (len(codes)+n-1)/n)
	for i := 0; i < len(codes); i += n {
		end := i + n
		if end > len(codes) {
			end = len(codes)
		}
		out = append(out, codes[i:end])
	}
	return out
}
