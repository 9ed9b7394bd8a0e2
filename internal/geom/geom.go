// Package geom 解析线路几何并求质心。
//
// 输入可能是三种形态：coords JSON（[[[lon,lat],...],...]）、
// WKT MULTILINESTRING、WKT LINESTRING。解析失败一律返回空串/false，
// 不报错——几何缺失只是少一个 P625 声明，不应中断整个批处理。
package geom

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

var (
	multiLineRE = regexp.MustCompile(`(?is)MULTILINESTRING\s*\(\((.*)\)\)`)
	lineRE      = regexp.MustCompile(`(?is)LINESTRING\s*\((.*)\)`)
	segSplitRE  = regexp.MustCompile(`\)\s*,\s*\(`)
)

// Point 是 (lon, lat) 顺序的坐标（与 WKT/GeoJSON 一致）。
type Point struct {
	Lon float64
	Lat float64
}

// ParseWKTMultiLine 把 MULTILINESTRING 解析为分段点列。
// 允许首尾带单/双引号残留（导出工具常见），非 MULTILINESTRING 返回 false。
func ParseWKTMultiLine(wkt string) ([][]Point, bool) {
	s := stripQuotes(wkt)
	m := multiLineRE.FindStringSubmatch(s)
	if m == nil {
		return nil, false
	}

	var lines [][]Point
	for _, seg := range segSplitRE.Split(m[1], -1) {
		pts := parsePairs(seg)
		if len(pts) > 0 {
			lines = append(lines, pts)
		}
	}
	if len(lines) == 0 {
		return nil, false
	}
	return lines, true
}

// CoordsJSON 把 MULTILINESTRING 序列化为 coords JSON（[[[lon,lat],...],...]）。
func CoordsJSON(wkt string) (string, bool) {
	lines, ok := ParseWKTMultiLine(wkt)
	if !ok {
		return "", false
	}
	out := make([][][2]float64, 0, len(lines))
	for _, line := range lines {
		seg := make([][2]float64, 0, len(line))
		for _, p := range line {
			seg = append(seg, [2]float64{p.Lon, p.Lat})
		}
		out = append(out, seg)
	}
	b, err := json.Marshal(out)
	if err != nil {
		return "", false
	}
	return string(b), true
}

// Centroid 从任意几何形态求 "@lat/lon"（QS 的 P625 形式）。
// 依次尝试 coords JSON、MULTILINESTRING、LINESTRING；都失败返回空串。
func Centroid(coordsIn string) string {
	s := stripQuotes(coordsIn)
	if s == "" {
		return ""
	}

	var geom [][][2]float64
	if err := json.Unmarshal([]byte(s), &geom); err == nil {
		var pts []Point
		for _, line := range geom {
			for _, c := range line {
				pts = append(pts, Point{Lon: c[0], Lat: c[1]})
			}
		}
		if at := meanPoint(pts); at != "" {
			return at
		}
	}

	if lines, ok := ParseWKTMultiLine(s); ok {
		var pts []Point
		for _, line := range lines {
			pts = append(pts, line...)
		}
		return meanPoint(pts)
	}

	if m := lineRE.FindStringSubmatch(s); m != nil {
		return meanPoint(parsePairs(m[1]))
	}
	return ""
}

func meanPoint(pts []Point) string {
	if len(pts) == 0 {
		return ""
	}
	var lon, lat float64
	for _, p := range pts {
		lon += p.Lon
		lat += p.Lat
	}
	n := float64(len(pts))
	return "@" + formatFloat(lat/n) + "/" + formatFloat(lon/n)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func parsePairs(seg string) []Point {
	var pts []Point
	for _, pair := range strings.Split(seg, ",") {
		parts := strings.Fields(strings.TrimSpace(pair))
		if len(parts) < 2 {
			continue
		}
		lon, err1 := strconv.ParseFloat(parts[0], 64)
		lat, err2 := strconv.ParseFloat(parts[1], 64)
		if err1 != nil || err2 != nil {
			continue
		}
		pts = append(pts, Point{Lon: lon, Lat: lat})
	}
	return pts
}

func stripQuotes(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "'")
	s = strings.Trim(s, `"`)
	return strings.TrimSpace(s)
}
