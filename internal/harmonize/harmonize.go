// Package harmonize 把任意机构的线路导出表规范化为 QS 输入 schema。
//
// 输出列固定为：country,qid,Codigo,TRAMO,Un,Long,_feature_id,_coords_json。
// 列映射由 profile + 输入条目覆盖共同决定；机械变换（单位换算、WKT 解析）
// 都在这里完成，后续阶段只消费干净的 harmonized 表。
package harmonize

import (
	"crypto/sha1"
	"encoding/hex"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/John-Robertt/WDQC/internal/config"
	"github.com/John-Robertt/WDQC/internal/geom"
	"github.com/John-Robertt/WDQC/internal/table"
)

// TargetColumns 是 harmonized 输出的固定列序。
var TargetColumns = []string{"country", "qid", "Codigo", "TRAMO", "Un", "Long", "_feature_id", "_coords_json"}

// mappedTargets 是需要从输入表映射的目标列（country 来自配置，不映射）。
var mappedTargets = []string{"qid", "Codigo", "TRAMO", "Un", "Long", "_feature_id", "_coords_json"}

const (
	transformPassthrough = "passthrough"
	transformKmToM       = "km_to_m"
	transformCoordsJSON  = "to_coords_json"
)

var (
	numberRE = regexp.MustCompile(`[-+]?\d+(?:\.\d+)?`)
	kvRE     = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*kV`)
)

type mappedCol struct {
	idx       int // -1 表示输入表没有任何候选列
	transform string
}

type mapping map[string]mappedCol

// deriveMapping 为每个目标列确定来源列与变换：
// 输入条目覆盖 > profile > 目标列同名；候选按序做大小写不敏感匹配。
func deriveMapping(t *table.Table, profileCols, overrideCols map[string]config.ColumnSpec) mapping {
	m := make(mapping, len(mappedTargets))
	for _, target := range mappedTargets {
		spec := overrideCols[target]
		profSpec := profileCols[target]

		candidates := spec.Candidates
		if len(candidates) == 0 {
			candidates = profSpec.Candidates
		}
		if len(candidates) == 0 {
			candidates = []string{target}
		}

		transform := spec.Transform
		if transform == "" {
			transform = profSpec.Transform
		}
		if transform == "" {
			transform = transformPassthrough
		}

		idx := -1
		for _, c := range candidates {
			if i, ok := t.Column(strings.TrimPrefix(c, "\uFEFF")); ok {
				idx = i
				break
			}
		}
		m[target] = mappedCol{idx: idx, transform: transform}
	}
	return m
}

// Harmonize 把输入表转换为 harmonized 表。
// 没有 Codigo 的行直接丢弃（没有 code 的行对后续任何阶段都没有价值）。
func Harmonize(t *table.Table, prof config.Profile, inp config.Input) *table.Table {
	m := deriveMapping(t, prof.Columns, inp.Columns)
	country := inp.Country.Label

	out := &table.Table{Header: append([]string(nil), TargetColumns...)}
	for i := range t.Rows {
		rec := buildRow(t, i, m, country)
		if rec != nil {
			out.Rows = append(out.Rows, rec)
		}
	}
	return out
}

func buildRow(t *table.Table, row int, m mapping, country string) []string {
	get := func(target string) string {
		mc := m[target]
		if mc.idx < 0 {
			return ""
		}
		return t.Get(row, mc.idx)
	}

	codigo := strings.TrimSpace(get("Codigo"))
	if codigo == "" {
		return nil
	}

	qid := strings.TrimSpace(get("qid"))
	tramo := strings.TrimSpace(get("TRAMO"))

	un, unOK := toNumber(get("Un"))
	if !unOK {
		// 部分导出把电压藏在自由文本里（"... 230 kV ..."）。
		if i, ok := t.Column("nivel_tension_circuito"); ok {
			un, unOK = extractKV(t.Get(row, i))
		}
	}

	var long float64
	longOK := false
	if mc := m["Long"]; mc.idx >= 0 {
		if mc.transform == transformKmToM {
			if v, ok := toNumber(t.Get(row, mc.idx)); ok {
				long, longOK = v*1000.0, true
			}
		} else {
			long, longOK = toNumber(t.Get(row, mc.idx))
		}
	}
	if !longOK {
		if i, ok := t.Column("Shape__Length"); ok {
			long, longOK = toNumber(t.Get(row, i))
		}
	}

	coords := ""
	if mc := m["_coords_json"]; mc.idx >= 0 {
		raw := t.Get(row, mc.idx)
		if mc.transform == transformCoordsJSON {
			if j, ok := geom.CoordsJSON(raw); ok {
				coords = j
			} else {
				// 解析失败（例如被截断的 WKT）：保留清理后的原文，
				// 至少 token 计算仍然稳定。
				coords = cleanGeomText(raw)
			}
		} else {
			coords = strings.TrimSpace(raw)
		}
	}

	unStr := ""
	if unOK {
		unStr = formatNumber(un)
	}
	longStr := ""
	if longOK {
		longStr = formatNumber(long)
	}

	return []string{
		country,
		qid,
		codigo,
		tramo,
		unStr,
		longStr,
		featureID(codigo, longStr, coords),
		coords,
	}
}

// featureID 是行的稳定标识：对 (code, 长度, 几何) 做 SHA-1 取前 12 位。
// 同一要素重复导出必须得到同一 ID，token 协议依赖这一点。
// 注意：数值与 coords JSON 的渲染细节（无冗余小数位、无空格）参与摘要，
// 其他工具链若渲染不同，其旧上传里的 ID/token 不能与本工具互认。
func featureID(codigo, longStr, coords string) string {
	h := sha1.New()
	h.Write([]byte(codigo))
	h.Write([]byte(longStr))
	h.Write([]byte(coords))
	return hex.EncodeToString(h.Sum(nil))[:12]
}

// toNumber 从任意单元格文本提取第一个数值（逗号小数点归一为点）。
func toNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	s = strings.ReplaceAll(s, ",", ".")
	m := numberRE.FindString(s)
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func extractKV(s string) (float64, bool) {
	m := kvRE.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func cleanGeomText(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "'")
	if strings.HasSuffix(s, "'") || strings.HasSuffix(s, `"`) {
		s = s[:len(s)-1]
	}
	return s
}

// OutputPath 是 harmonize 的输出文件路径：与输入同目录、固定后缀。
func OutputPath(inputPath string) string {
	dir := filepath.Dir(inputPath)
	base := filepath.Base(inputPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, stem+config.HarmonizedSuffix+".csv")
}
