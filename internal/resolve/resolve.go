// Package resolve 聚合远端命中并做逐行消歧。
package resolve

import (
	"strings"

	"github.com/John-Robertt/WDQC/internal/domain"
	"github.com/John-Robertt/WDQC/internal/token"
)

// Index 按 code 聚合所有批次返回的候选。
//
// 约束：
// - 到达顺序即存储顺序（“无 token 取首个”依赖它）
// - (code, qid) 跨批次重复时都保留，不去重——下游必须容忍重复
// - 只由单一处理线程写入，不加锁
type Index struct {
	hits  map[domain.Code][]domain.Candidate
	total int
}

func NewIndex() *Index {
	return &Index{hits: make(map[domain.Code][]domain.Candidate, 128)}
}

// Add 追加一个候选。qid 为空表示响应里缺字段，直接丢弃（候选不得凭空造）。
func (x *Index) Add(code domain.Code, qid, desc string) {
	if code == "" || qid == "" {
		return
	}
	x.hits[code] = append(x.hits[code], domain.Candidate{QID: qid, Desc: desc})
	x.total++
}

// Hits 返回某 code 的全部候选（可能为 nil）。平均 O(1)。
func (x *Index) Hits(code domain.Code) []domain.Candidate {
	return x.hits[code]
}

// Total 是累计候选数（运行规模信息，供日志/报告使用）。
func (x *Index) Total() int { return x.total }

// Resolve 把 (候选列表, 行级 token) 归结为唯一结论。
//
// 规则（固定，纯函数，与行顺序无关）：
// - 零命中 -> Unresolved
// - 唯一命中 -> Resolved（无需看 token）
// - 多命中 + 空 token -> ResolvedFirst：按约定取首个。没有消歧上下文时
//   这是唯一可做的兼容行为，但必须与有把握的 Resolved 分开计数
// - 多命中 + 非空 token -> 在描述里找字面子串 "[EXT:<token>]"；
//   恰好命中一个 -> Resolved(它)；零个或多个 -> Ambiguous
func Resolve(hits []domain.Candidate, tok string) domain.Resolution {
	switch {
	case len(hits) == 0:
		return domain.Resolution{Outcome: domain.OutcomeUnresolved}
	case len(hits) == 1:
		return domain.Resolution{QID: hits[0].QID, Outcome: domain.OutcomeResolved}
	case tok == "":
		return domain.Resolution{QID: hits[0].QID, Outcome: domain.OutcomeResolvedFirst}
	}

	tag := token.Tag(tok)
	var matched []domain.Candidate
	for _, h := range hits {
		if strings.Contains(h.Desc, tag) {
			matched = append(matched, h)
		}
	}
	if len(matched) == 1 {
		return domain.Resolution{QID: matched[0].QID, Outcome: domain.OutcomeResolved}
	}
	return domain.Resolution{Outcome: domain.OutcomeAmbiguous}
}
