package domain

import (
	"encoding/json"
	"time"
)

const (
	ErrCodeConfigNotFound     = "config_not_found"
	ErrCodeConfigInvalid      = "config_invalid"
	ErrCodeCodeColumnNotFound = "code_column_not_found"
	ErrCodeFetchFailed        = "fetch_failed"
	ErrCodeParseFailed        = "parse_failed"
	ErrCodeIOFailed           = "io_failed"
)

// MergeReport 是 merge 的对外稳定输出（stdout JSON / 摘要行）。
//
// 约束：字段一旦发布就不再改名；时间必须是 UTC RFC3339。
type MergeReport struct {
	Input      string `json:"input"`
	Output     string `json:"output"`
	CodeColumn string `json:"code_column"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// Batches / Candidates 是运行规模信息（便于操作者核对限速与命中量）。
	Batches    int `json:"batches"`
	Candidates int `json:"candidates"`

	Summary MergeSummary `json:"summary"`
}

// MergeSummary 按行计数。Rows = Resolved + ResolvedFirst + Unresolved + Ambiguous。
type MergeSummary struct {
	Rows          int `json:"rows"`
	Resolved      int `json:"resolved"`
	ResolvedFirst int `json:"resolved_first"`
	Unresolved    int `json:"unresolved"`
	Ambiguous     int `json:"ambiguous"`
}

// Summarize 由逐行结论计算 summary（纯函数，行顺序无关）。
func Summarize(outcomes []Outcome) MergeSummary {
	var s MergeSummary
	s.Rows = len(outcomes)
	for _, o := range outcomes {
		switch o {
		case OutcomeResolved:
			s.Resolved++
		case OutcomeResolvedFirst:
			s.ResolvedFirst++
		case OutcomeUnresolved:
			s.Unresolved++
		case OutcomeAmbiguous:
			s.Ambiguous++
		}
	}
	return s
}

// Finalize 把时间统一为 UTC，保证 JSON 输出为 RFC3339 且后缀 Z。
func (r *MergeReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()
}

// MarshalJSON 仅用于集中约束输出稳定性（当前透传默认行为）。
func (r MergeReport) MarshalJSON() ([]byte, error) {
	type Alias MergeReport
	return json.Marshal(Alias(r))
}
