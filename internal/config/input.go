package config

import (
	"path/filepath"
	"strings"
)

// HarmonizedSuffix 是 harmonize 输出文件的固定后缀。
// qs 用它把 "<stem>_harmonized_for_qs.csv" 反查回 inputs 里的原始条目。
const HarmonizedSuffix = "_harmonized_for_qs"

func baseName(p string) string {
	return filepath.Base(strings.TrimSpace(p))
}

func trimSuffixName(base string) string {
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	return strings.TrimSuffix(stem, HarmonizedSuffix)
}

func hasPrefixName(base, stem string) bool {
	if stem == "" {
		return false
	}
	return strings.HasPrefix(strings.TrimSuffix(base, filepath.Ext(base)), stem)
}
