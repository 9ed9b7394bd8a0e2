// Package qs 把 harmonized 表装配成 QuickStatements 上传 CSV。
//
// 每个声明（P31/P17/P625/P528/P2436/P2043）都跟随同一组引用列
// （S248 来源、s854 URL、s813 访问时间）；引用元数据严格来自配置，
// 缺失就留空列，绝不猜。
package qs

import (
	"regexp"
	"strings"

	"github.com/John-Robertt/WDQC/internal/config"
	"github.com/John-Robertt/WDQC/internal/geom"
	"github.com/John-Robertt/WDQC/internal/table"
	"github.com/John-Robertt/WDQC/internal/token"
)

// 固定的 schema/单位常量（Wikidata 实体，不随配置变化）。
const (
	QOverheadLine = "Q2144320" // P31：架空输电线
	UMetre        = "U828224"  // P2043 的长度单位（米）
	QVolt         = "Q25250"   // P2436 的电压单位（伏）
)

// OutputName 是 QS 上传文件的固定名（P1114 声明被刻意排除在外）。
const OutputName = "qs_transmision_upload_no_p1114.csv"

const (
	fallbackLabel = "Linea/circuito del SIN"
	fallbackDesc  = "Linea/circuito del SIN de país"
)

// Header 是 QS CSV 的固定列序（引用列名按 QS 约定重复出现）。
var Header = []string{
	"qid", "Len", "Les", "Den", "Des",
	"P31", "S248", "s854", "s813",
	"P17", "S248", "s854", "s813",
	"P625", "S248", "s854", "s813",
	"P528", "S248", "s854", "s813",
	"P2436", "S248", "s854", "s813",
	"P2043", "S248", "s854", "s813",
}

var (
	decimalRE = regexp.MustCompile(`[-+]?\d+(?:\.\d+)?`)
	dateRE    = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

// Build 把 harmonized 表逐行装配为 QS 表。
// 输入行即使字段残缺也会产出一行（空单元格由 QS 端忽略），行数一致。
func Build(t *table.Table, meta config.CountryMeta) *table.Table {
	// 缺列返回 -1，table.Get 对负下标给空串：残缺输入退化为空单元格。
	col := func(name string) int {
		if i, ok := t.Column(name); ok {
			return i
		}
		return -1
	}

	sourceQID := strings.TrimSpace(meta.SourceQID)
	sourceURL := strings.TrimSpace(meta.SourceURL)
	if sourceURL != "" {
		// URL 与 P528 一样需要显式引号。
		sourceURL = `"` + sourceURL + `"`
	}
	accessTime := AsTimeStr(meta.AccessTime)
	countryQID := strings.TrimSpace(meta.CountryQID)

	out := &table.Table{Header: append([]string(nil), Header...)}
	for i := range t.Rows {
		qid := ""
		if q := strings.TrimSpace(t.Get(i, col("qid"))); strings.HasPrefix(q, "Q") {
			qid = q
		}

		code := strings.TrimSpace(t.Get(i, col("Codigo")))
		tramo := strings.TrimSpace(t.Get(i, col("TRAMO")))
		coordsJSON := strings.TrimSpace(t.Get(i, col("_coords_json")))
		fid := t.Get(i, col("_feature_id"))

		tok := token.Token(fid, coordsJSON)

		label := code
		if label == "" {
			label = fallbackLabel
		}
		desc := tramo
		if desc == "" {
			desc = fallbackDesc
		}
		desc += " " + token.Tag(tok)

		coords := geom.Centroid(coordsJSON)
		voltage := VoltsFromKV(t.Get(i, col("Un")))
		length := PlainDecimal(t.Get(i, col("Long")))
		lengthCell := ""
		if length != "" {
			lengthCell = "+" + length + UMetre
		}

		row := make([]string, 0, len(Header))
		row = append(row, qid, label, label, desc, desc)
		row = append(row, QOverheadLine, sourceQID, sourceURL, accessTime)
		row = append(row, countryQID, sourceQID, sourceURL, accessTime)
		row = append(row, coords, sourceQID, sourceURL, accessTime)
		row = append(row, `"`+label+`"`, sourceQID, sourceURL, accessTime)
		row = append(row, voltage, sourceQID, sourceURL, accessTime)
		row = append(row, lengthCell, sourceQID, sourceURL, accessTime)
		out.Rows = append(out.Rows, row)
	}
	return out
}

// AsTimeStr 把配置里的访问时间转成 QS 的天精度时间。
// 已是 QS 形态（+...Z/11）原样返回；YYYY-MM-DD 补全；其余返回空串。
func AsTimeStr(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if strings.HasPrefix(s, "+") && strings.HasSuffix(s, "/11") {
		return s
	}
	if dateRE.MatchString(s) {
		return "+" + s + "T00:00:00Z/11"
	}
	return ""
}

// PlainDecimal 从单元格提取第一个数值，输出无指数的十进制字面量。
// 逗号小数点归一为点；正号与整数部分的前导零剥掉；提不出数值返回空串。
func PlainDecimal(v string) string {
	s := strings.TrimSpace(v)
	if s == "" {
		return ""
	}
	s = strings.ReplaceAll(s, ",", ".")
	m := decimalRE.FindString(s)
	if m == "" {
		return ""
	}
	return normalizeDecimal(m)
}

// VoltsFromKV 把 kV 数值换算为伏并带上单位后缀（精确十进制移位，无浮点误差）。
func VoltsFromKV(v string) string {
	d := PlainDecimal(v)
	if d == "" {
		return ""
	}
	return shiftDecimal(d, 3) + "U" + strings.TrimPrefix(QVolt, "Q")
}

func normalizeDecimal(s string) string {
	sign := ""
	switch {
	case strings.HasPrefix(s, "-"):
		sign, s = "-", s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}

	intPart, fracPart := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, fracPart = s[:i], s[i+1:]
	}
	intPart = strings.TrimLeft(intPart, "0")
	if intPart == "" {
		intPart = "0"
	}
	if fracPart != "" {
		return sign + intPart + "." + fracPart
	}
	return sign + intPart
}

// shiftDecimal 把十进制字面量的小数点右移 n 位（字符串运算，保持精确）。
func shiftDecimal(s string, n int) string {
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}

	intPart, fracPart := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, fracPart = s[:i], s[i+1:]
	}
	for len(fracPart) < n {
		fracPart += "0"
	}

	intPart += fracPart[:n]
	fracPart = fracPart[n:]

	intPart = strings.TrimLeft(intPart, "0")
	if intPart == "" {
		intPart = "0"
	}
	fracPart = strings.TrimRight(fracPart, "0")
	if fracPart != "" {
		return sign + intPart + "." + fracPart
	}
	return sign + intPart
}
