// Package config 读取 wdqc.yaml 并与 CLI 参数合并为最终配置。
//
// 实现层只消费 Effective*（已合并、已钳位），不再做二次默认/优先级判断。
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/goccy/go-yaml"

	"github.com/John-Robertt/WDQC/internal/domain"
)

// 错误码的唯一出处是 domain（对外报告的稳定标识集中一处维护）。
const (
	// ErrCodeNotFound 表示显式指定的配置文件不存在。
	ErrCodeNotFound = domain.ErrCodeConfigNotFound
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = domain.ErrCodeConfigInvalid
)

// 合并阶段的内置默认值（未设置的选项回退到这些值）。
const (
	DefaultUserAgent = "OET-wikidata-qid-generator/merge (mailto:info@openenergytransition.org)"
	DefaultBatchSize = 75
	DefaultThrottle  = 3.0
	DefaultRetries   = 5
	DefaultBackoff   = 1.6
	DefaultLanguage  = "es"
)

// DefaultMatchProps 是匹配属性的默认集合（P528 = catalog code）。
func DefaultMatchProps() []string { return []string{"P528"} }

// DefaultCodeCandidates 是 code 列的默认候选名（按优先级排列）。
func DefaultCodeCandidates() []string {
	return []string{"Codigo", "codigo", "id_circuito", "Code", "code", "ID", "id"}
}

// FileConfig 对应 wdqc.yaml 的解析结构。
type FileConfig struct {
	WikidataMerge MergeSection       `yaml:"wikidata_merge"`
	Profiles      map[string]Profile `yaml:"profiles"`
	Inputs        []Input            `yaml:"inputs"`
}

// MergeSection 是 merge 的文件级配置。指针字段用于区分“未设置”与“设为零值”。
type MergeSection struct {
	MatchProps     []string `yaml:"wikidata_match_props"`
	CodeCandidates []string `yaml:"code_candidates"`
	UserAgent      string   `yaml:"user_agent"`
	BatchSize      *int     `yaml:"batch_size"`
	Throttle       *float64 `yaml:"throttle"`
	Retries        *int     `yaml:"retries"`
	Backoff        *float64 `yaml:"backoff"`
	Language       string   `yaml:"language"`
}

// Profile 描述一类输入文件的列映射。
type Profile struct {
	Columns map[string]ColumnSpec `yaml:"columns"`
}

// ColumnSpec 是单个目标列的映射规则。
type ColumnSpec struct {
	Candidates []string `yaml:"candidates"`
	Transform  string   `yaml:"transform"`
}

// Input 是 harmonize/qs 的一个输入文件条目。
type Input struct {
	Path    string                `yaml:"path"`
	Profile string                `yaml:"profile"`
	Columns map[string]ColumnSpec `yaml:"columns"`
	Country CountryMeta           `yaml:"country"`
}

// CountryMeta 是 QS 引用元数据（严格来自配置，缺失就留空列）。
type CountryMeta struct {
	Label      string `yaml:"label"`
	CountryQID string `yaml:"country_qid"`
	SourceQID  string `yaml:"source_qid"`
	SourceURL  string `yaml:"source_url"`
	AccessTime string `yaml:"access_time"`
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到配置文件 %q", e.Code, e.Path)
	case ErrCodeInvalid:
		if e.Err != nil {
			return fmt.Sprintf("%s：配置文件 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置文件 %q 无效", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Load 读取并解析配置文件。
// path 为空返回零值 FileConfig（merge 可无配置运行，全部走默认值）；
// path 非空但文件不存在/不可解析，显式报错——静默回退默认值会掩盖拼写错误。
func Load(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, &Error{Code: ErrCodeNotFound, Path: path, Err: err}
		}
		return FileConfig{}, &Error{Code: ErrCodeInvalid, Path: path, Err: err}
	}
	var fc FileConfig
	if err := yaml.Unmarshal(b, &fc); err != nil {
		return FileConfig{}, &Error{Code: ErrCodeInvalid, Path: path, Err: err}
	}
	return fc, nil
}

// MergeCLI 只包含 merge 暴露的覆盖项，并保留“是否显式指定”的信息。
// 这能保证覆盖优先级可实现：例如 --throttle=0 必须能覆盖配置里的 3.0。
type MergeCLI struct {
	Props    []string
	PropsSet bool

	CodeCol string

	Lang    string
	LangSet bool

	BatchSize    int
	BatchSizeSet bool

	Throttle    float64
	ThrottleSet bool

	Retries    int
	RetriesSet bool

	Backoff    float64
	BackoffSet bool

	UserAgent    string
	UserAgentSet bool
}

// EffectiveMerge 是合并并做最小钳位后的最终 merge 配置。
type EffectiveMerge struct {
	MatchProps     []string
	CodeCandidates []string
	CodeCol        string

	UserAgent string
	BatchSize int
	Throttle  float64
	Retries   int
	Backoff   float64
	Language  string
}

// MergeEffective 按固定优先级合并：CLI > 配置文件 > 内置默认值。
//
// 钳位规则：
// - batch_size/retries 至少为 1
// - throttle 不得为负（0 表示不限速）
// - backoff 必须 >1，否则退避不再指数增长：回退默认 1.6
func MergeEffective(fc FileConfig, cli MergeCLI) EffectiveMerge {
	m := fc.WikidataMerge

	props := DefaultMatchProps()
	if len(m.MatchProps) > 0 {
		props = append([]string(nil), m.MatchProps...)
	}
	if cli.PropsSet && len(cli.Props) > 0 {
		props = append([]string(nil), cli.Props...)
	}

	candidates := DefaultCodeCandidates()
	if len(m.CodeCandidates) > 0 {
		candidates = append([]string(nil), m.CodeCandidates...)
	}

	ua := DefaultUserAgent
	if m.UserAgent != "" {
		ua = m.UserAgent
	}
	if cli.UserAgentSet && cli.UserAgent != "" {
		ua = cli.UserAgent
	}

	batch := DefaultBatchSize
	if m.BatchSize != nil {
		batch = *m.BatchSize
	}
	if cli.BatchSizeSet {
		batch = cli.BatchSize
	}
	if batch < 1 {
		batch = 1
	}

	throttle := DefaultThrottle
	if m.Throttle != nil {
		throttle = *m.Throttle
	}
	if cli.ThrottleSet {
		throttle = cli.Throttle
	}
	if throttle < 0 {
		throttle = 0
	}

	retries := DefaultRetries
	if m.Retries != nil {
		retries = *m.Retries
	}
	if cli.RetriesSet {
		retries = cli.Retries
	}
	if retries < 1 {
		retries = 1
	}

	backoff := DefaultBackoff
	if m.Backoff != nil {
		backoff = *m.Backoff
	}
	if cli.BackoffSet {
		backoff = cli.Backoff
	}
	if backoff <= 1 {
		backoff = DefaultBackoff
	}

	lang := DefaultLanguage
	if m.Language != "" {
		lang = m.Language
	}
	if cli.LangSet && cli.Lang != "" {
		lang = cli.Lang
	}

	return EffectiveMerge{
		MatchProps:     props,
		CodeCandidates: candidates,
		CodeCol:        cli.CodeCol,
		UserAgent:      ua,
		BatchSize:      batch,
		Throttle:       throttle,
		Retries:        retries,
		Backoff:        backoff,
		Language:       lang,
	}
}

// FindInput 按文件名匹配 inputs 条目（qs 需要对应的 country 元数据）。
// 先比 basename，再比宽松的前缀（去掉 harmonize 的输出后缀）。
func (fc FileConfig) FindInput(csvPath string) (Input, bool) {
	base := baseName(csvPath)
	for _, inp := range fc.Inputs {
		if inp.Path != "" && baseName(inp.Path) == base {
			return inp, true
		}
	}
	stem := trimSuffixName(base)
	for _, inp := range fc.Inputs {
		if inp.Path != "" && hasPrefixName(baseName(inp.Path), stem) {
			return inp, true
		}
	}
	return Input{}, false
}
