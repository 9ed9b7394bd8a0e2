// Package merge 是核心流程：code 提取 -> 分批查询 -> 聚合 -> 逐行消歧。
package merge

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/John-Robertt/WDQC/internal/config"
	"github.com/John-Robertt/WDQC/internal/domain"
	"github.com/John-Robertt/WDQC/internal/resolve"
	"github.com/John-Robertt/WDQC/internal/sparql"
	"github.com/John-Robertt/WDQC/internal/table"
	"github.com/John-Robertt/WDQC/internal/token"
)

const (
	// OutputColumn 插在 code 列之后，承载解析出的 QID（未解析留空）。
	OutputColumn = "wikidata"

	featureIDColumn  = "_feature_id"
	coordsJSONColumn = "_coords_json"
)

// Querier 是远端查询的最小接口（生产实现是 wdqs.Client）。
type Querier interface {
	Query(ctx context.Context, query string) (*sparql.Response, error)
}

// Error 是 merge 的致命错误（带 error_code，供上层输出稳定的报告）。
type Error struct {
	ErrCode string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s：%v", e.ErrCode, e.Err)
	}
	return e.ErrCode
}

func (e *Error) Unwrap() error { return e.Err }

// ErrCode 从 error 中提取 error_code；若不是 *Error 则返回空串。
func ErrCode(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.ErrCode
	}
	return ""
}

// Execute 对整张表执行一次 merge：原地插入 wikidata 列并返回报告。
//
// 约束（与远端的契约）：
// - code 在查询前去重 + 字典序排序，每个 code 恰好出现在一个批次里
// - 批次严格串行：上一批（含重试）完成前不发下一批
// - 任何批次 fatal（重试耗尽 / 响应不合法）都在写出任何结果之前中止
// - 逐行结论只依赖 (该行 code 的命中集, 该行 token)，与行顺序无关
func Execute(ctx context.Context, eff config.EffectiveMerge, t *table.Table, q Querier, log *zap.SugaredLogger) (domain.MergeReport, error) {
	rep := domain.MergeReport{StartedAt: time.Now().UTC()}

	codeIdx, err := table.SelectCodeColumn(t, eff.CodeCol, eff.CodeCandidates)
	if err != nil {
		// 远端调用之前就要失败：带着空表跑完一轮限速查询毫无意义。
		return rep, &Error{ErrCode: domain.ErrCodeCodeColumnNotFound, Err: err}
	}
	rep.CodeColumn = t.Header[codeIdx]

	tokens := rowTokens(t)
	codes := uniqueCodes(t, codeIdx)

	if log != nil {
		log.Infow("开始解析",
			"code_column", rep.CodeColumn,
			"unique_codes", len(codes),
			"props", strings.Join(eff.MatchProps, ","),
			"batch_size", eff.BatchSize,
			"lang", eff.Language)
	}

	idx := resolve.NewIndex()
	batches := sparql.Chunk(codes, eff.BatchSize)
	for _, batch := range batches {
		query := sparql.BuildQuery(eff.MatchProps, batch, eff.Language)
		resp, qerr := q.Query(ctx, query)
		if qerr != nil {
			var pe *sparql.ParseError
			if errors.As(qerr, &pe) {
				return rep, &Error{ErrCode: domain.ErrCodeParseFailed, Err: qerr}
			}
			return rep, &Error{ErrCode: domain.ErrCodeFetchFailed, Err: qerr}
		}

		for _, b := range resp.Results.Bindings {
			if b.Code.Value == "" || b.Item.Value == "" {
				continue
			}
			idx.Add(domain.Code(b.Code.Value), sparql.EntityID(b.Item.Value), b.Desc.Value)
		}
		if log != nil {
			log.Infow("批次完成", "size", len(batch), "cumulative_candidates", idx.Total())
		}
	}
	rep.Batches = len(batches)
	rep.Candidates = idx.Total()

	chosen := make([]string, len(t.Rows))
	outcomes := make([]domain.Outcome, len(t.Rows))
	for i := range t.Rows {
		code, ok := domain.ParseCode(t.Get(i, codeIdx))
		if !ok {
			// 空 code 行：零命中语义，计入 unresolved。
			outcomes[i] = domain.OutcomeUnresolved
			continue
		}
		r := resolve.Resolve(idx.Hits(code), tokens[i])
		chosen[i] = r.QID
		outcomes[i] = r.Outcome
	}

	if err := t.InsertColumn(OutputColumn, codeIdx, chosen); err != nil {
		return rep, &Error{ErrCode: domain.ErrCodeIOFailed, Err: err}
	}

	rep.Summary = domain.Summarize(outcomes)
	rep.FinishedAt = time.Now().UTC()
	rep.Finalize()
	return rep, nil
}

// rowTokens 计算每行的消歧 token。
// _feature_id 或 _coords_json 任一列缺失：整表 token 为空（禁用消歧）。
func rowTokens(t *table.Table) []string {
	tokens := make([]string, len(t.Rows))

	fidIdx, okFid := t.Column(featureIDColumn)
	coordsIdx, okCoords := t.Column(coordsJSONColumn)
	if !okFid || !okCoords {
		return tokens
	}
	for i := range t.Rows {
		tokens[i] = token.Token(t.Get(i, fidIdx), t.Get(i, coordsIdx))
	}
	return tokens
}

// uniqueCodes 提取去重 + 字典序排序的 code 集合（空白单元格排除）。
func uniqueCodes(t *table.Table, codeIdx int) []string {
	set := make(map[string]struct{}, len(t.Rows))
	for i := range t.Rows {
		if c, ok := domain.ParseCode(t.Get(i, codeIdx)); ok {
			set[string(c)] = struct{}{}
		}
	}
	codes := make([]string, 0, len(set))
	for c := range set {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}
