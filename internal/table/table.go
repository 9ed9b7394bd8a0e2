// Package table 是 header+rows 的最小字符串表格模型。
//
// merge/harmonize/qs 都在它之上工作：单元格一律是字符串，
// 数值语义由各自的变换函数负责，表格层不做任何类型推断。
package table

import (
	"fmt"
	"sort"
	"strings"
)

type Table struct {
	Header []string
	Rows   [][]string
}

// Column 按列名找下标：先精确匹配，再大小写不敏感匹配。
func (t *Table) Column(name string) (int, bool) {
	for i, h := range t.Header {
		if h == name {
			return i, true
		}
	}
	for i, h := range t.Header {
		if strings.EqualFold(h, name) {
			return i, true
		}
	}
	return 0, false
}

// Get 取单元格；越界返回空串（ragged 行按缺失处理，不 panic）。
func (t *Table) Get(row, col int) string {
	if row < 0 || row >= len(t.Rows) {
		return ""
	}
	r := t.Rows[row]
	if col < 0 || col >= len(r) {
		return ""
	}
	return r[col]
}

// InsertColumn 在下标 after 之后插入一列。len(values) 必须等于行数。
func (t *Table) InsertColumn(name string, after int, values []string) error {
	if len(values) != len(t.Rows) {
		return fmt.Errorf("列 %q 的值数量 %d 与行数 %d 不一致", name, len(values), len(t.Rows))
	}
	at := after + 1
	if at < 0 || at > len(t.Header) {
		return fmt.Errorf("插入位置 %d 越界（列数 %d）", at, len(t.Header))
	}

	t.Header = insertStr(t.Header, at, name)
	for i := range t.Rows {
		// 短行先补齐到原 header 长度，保证插入位置一致。
		for len(t.Rows[i]) < len(t.Header)-1 {
			t.Rows[i] = append(t.Rows[i], "")
		}
		t.Rows[i] = insertStr(t.Rows[i], at, values[i])
	}
	return nil
}

func insertStr(s []string, at int, v string) []string {
	s = append(s, "")
	copy(s[at+1:], s[at:])
	s[at] = v
	return s
}

// SelectCodeColumn 决定 code 列：override > 配置候选 > 启发式评分。
// 三者都失败返回错误（调用方应在任何远端调用之前 fatal）。
func SelectCodeColumn(t *Table, override string, configured []string) (int, error) {
	if strings.TrimSpace(override) != "" {
		if i, ok := t.Column(override); ok {
			return i, nil
		}
		return 0, fmt.Errorf("指定的 code 列 %q 不存在", override)
	}
	for _, c := range configured {
		if i, ok := t.Column(c); ok {
			return i, nil
		}
	}
	if guesses := HeuristicCodeCandidates(t.Header); len(guesses) > 0 {
		i, _ := t.Column(guesses[0])
		return i, nil
	}
	return 0, fmt.Errorf("无法自动识别 code 列；请用 --code-col 显式指定")
}

// HeuristicCodeCandidates 对列名打分并按分值降序返回候选。
// 评分规则与各机构导出文件的常见命名对齐：codigo/código > code > id/circuit。
func HeuristicCodeCandidates(columns []string) []string {
	type scored struct {
		score int
		name  string
	}
	ranked := make([]scored, 0, len(columns))
	for _, c := range columns {
		cl := strings.ToLower(c)
		score := 0
		if strings.Contains(cl, "codigo") || strings.Contains(cl, "código") {
			score += 3
		}
		if strings.Contains(cl, "code") {
			score += 2
		}
		if cl == "id" || strings.HasPrefix(cl, "id_") || strings.HasSuffix(cl, "_id") {
			score++
		}
		if strings.Contains(cl, "circuit") {
			score++
		}
		if score > 0 {
			ranked = append(ranked, scored{score: score, name: c})
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	out := make([]string, 0, len(ranked))
	for _, r := range ranked {
		out = append(out, r.name)
	}
	return out
}
