package merge

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/John-Robertt/WDQC/internal/config"
	"github.com/John-Robertt/WDQC/internal/domain"
	"github.com/John-Robertt/WDQC/internal/sparql"
	"github.com/John-Robertt/WDQC/internal/table"
	"github.com/John-Robertt/WDQC/internal/token"
)

// fakeQuerier 按 code 出现与否回放命中（Binding 顺序即到达顺序）。
type fakeQuerier struct {
	queries []string
	hits    map[string][]sparql.Binding
	err     error
}

func (f *fakeQuerier) Query(_ context.Context, query string) (*sparql.Response, error) {
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	resp := &sparql.Response{}
	for code, bs := range f.hits {
		if strings.Contains(query, `"`+code+`"`) {
			resp.Results.Bindings = append(resp.Results.Bindings, bs...)
		}
	}
	return resp, nil
}

func binding(code, qid, desc string) sparql.Binding {
	return sparql.Binding{
		Item: sparql.Value{Value: "http://www.wikidata.org/entity/" + qid},
		Code: sparql.Value{Value: code},
		Desc: sparql.Value{Value: desc},
	}
}

func testEffective() config.EffectiveMerge {
	return config.MergeEffective(config.FileConfig{}, config.MergeCLI{})
}

func TestExecute_EndToEnd(t *testing.T) {
	tbl := &table.Table{
		Header: []string{"Codigo", "TRAMO"},
		Rows: [][]string{
			{"LT-100", "norte"},
			{"LT-200", "sur"},
			{"LT-100", "norte b"},
		},
	}
	q := &fakeQuerier{hits: map[string][]sparql.Binding{
		"LT-100": {binding("LT-100", "Q10", "línea del SIN")},
	}}

	rep, err := Execute(context.Background(), testEffective(), tbl, q, nil)
	if err != nil {
		t.Fatalf("Execute 失败：%v", err)
	}

	if !reflect.DeepEqual(tbl.Header, []string{"Codigo", "wikidata", "TRAMO"}) {
		t.Fatalf("wikidata 列必须插在 code 列之后：%v", tbl.Header)
	}
	got := []string{tbl.Rows[0][1], tbl.Rows[1][1], tbl.Rows[2][1]}
	if !reflect.DeepEqual(got, []string{"Q10", "", "Q10"}) {
		t.Fatalf("逐行 QID 不正确：%v", got)
	}

	if rep.CodeColumn != "Codigo" {
		t.Fatalf("报告 code_column 不正确：%q", rep.CodeColumn)
	}
	if rep.Batches != 1 || rep.Candidates != 1 {
		t.Fatalf("批次/候选计数不正确：%+v", rep)
	}
	want := domain.MergeSummary{Rows: 3, Resolved: 2, Unresolved: 1}
	if rep.Summary != want {
		t.Fatalf("summary 不正确：%+v", rep.Summary)
	}
	if rep.StartedAt.IsZero() || rep.FinishedAt.Before(rep.StartedAt) {
		t.Fatalf("时间戳不正确：%+v", rep)
	}
}

func TestExecute_EachCodeInExactlyOneBatch(t *testing.T) {
	tbl := &table.Table{
		Header: []string{"Codigo"},
		Rows: [][]string{
			{"LT-300"}, {"LT-100"}, {"LT-200"}, {"LT-100"}, {"  "},
		},
	}
	eff := testEffective()
	eff.BatchSize = 2
	q := &fakeQuerier{}

	rep, err := Execute(context.Background(), eff, tbl, q, nil)
	if err != nil {
		t.Fatalf("Execute 失败：%v", err)
	}
	// 3 个去重 code，批大小 2 -> 2 个批次。
	if rep.Batches != 2 || len(q.queries) != 2 {
		t.Fatalf("批次数不正确：%d / %d", rep.Batches, len(q.queries))
	}
	for _, code := range []string{"LT-100", "LT-200", "LT-300"} {
		n := 0
		for _, query := range q.queries {
			n += strings.Count(query, `"`+code+`"`)
		}
		if n != 1 {
			t.Fatalf("code %s 应恰好出现在一个批次中，实际 %d 次", code, n)
		}
	}
}

func TestExecute_CodeColumnNotFound(t *testing.T) {
	tbl := &table.Table{
		Header: []string{"nombre", "valor"},
		Rows:   [][]string{{"a", "b"}},
	}
	q := &fakeQuerier{}

	_, err := Execute(context.Background(), testEffective(), tbl, q, nil)
	if ErrCode(err) != domain.ErrCodeCodeColumnNotFound {
		t.Fatalf("期望 %s，实际 %v", domain.ErrCodeCodeColumnNotFound, err)
	}
	// 找不到 code 列必须在任何远端调用之前失败。
	if len(q.queries) != 0 {
		t.Fatalf("不应发出任何查询，实际 %d 次", len(q.queries))
	}
}

func TestExecute_TokenDisambiguation(t *testing.T) {
	tbl := &table.Table{
		Header: []string{"Codigo", "_feature_id", "_coords_json"},
		Rows: [][]string{
			{"LT-100", "fid-a", "[[[1,2]]]"},
			{"LT-100", "fid-b", "[[[3,4]]]"},
		},
	}
	tokA := token.Token("fid-a", "[[[1,2]]]")
	q := &fakeQuerier{hits: map[string][]sparql.Binding{
		"LT-100": {
			binding("LT-100", "Q10", "línea "+token.Tag(tokA)),
			binding("LT-100", "Q20", "línea sin etiqueta"),
		},
	}}

	rep, err := Execute(context.Background(), testEffective(), tbl, q, nil)
	if err != nil {
		t.Fatalf("Execute 失败：%v", err)
	}
	if got := tbl.Rows[0][1]; got != "Q10" {
		t.Fatalf("token 命中的行应解析为 Q10，实际 %q", got)
	}
	if got := tbl.Rows[1][1]; got != "" {
		t.Fatalf("token 未命中的多候选行必须悬置，实际 %q", got)
	}
	want := domain.MergeSummary{Rows: 2, Resolved: 1, Ambiguous: 1}
	if rep.Summary != want {
		t.Fatalf("summary 不正确：%+v", rep.Summary)
	}
}

func TestExecute_MultiHitWithoutTokenTakesFirst(t *testing.T) {
	tbl := &table.Table{
		Header: []string{"Codigo"},
		Rows:   [][]string{{"LT-100"}},
	}
	q := &fakeQuerier{hits: map[string][]sparql.Binding{
		"LT-100": {
			binding("LT-100", "Q10", "primera"),
			binding("LT-100", "Q20", "segunda"),
		},
	}}

	rep, err := Execute(context.Background(), testEffective(), tbl, q, nil)
	if err != nil {
		t.Fatalf("Execute 失败：%v", err)
	}
	if got := tbl.Rows[0][1]; got != "Q10" {
		t.Fatalf("无 token 的多候选行应取首个到达的候选，实际 %q", got)
	}
	want := domain.MergeSummary{Rows: 1, ResolvedFirst: 1}
	if rep.Summary != want {
		t.Fatalf("summary 不正确：%+v", rep.Summary)
	}
}

func TestExecute_FetchFailure(t *testing.T) {
	tbl := &table.Table{
		Header: []string{"Codigo"},
		Rows:   [][]string{{"LT-100"}},
	}
	q := &fakeQuerier{err: errors.New("conexión rechazada")}

	_, err := Execute(context.Background(), testEffective(), tbl, q, nil)
	if ErrCode(err) != domain.ErrCodeFetchFailed {
		t.Fatalf("期望 %s，实际 %v", domain.ErrCodeFetchFailed, err)
	}
	// 致命失败不得写出任何结果列。
	if len(tbl.Header) != 1 {
		t.Fatalf("失败后不应插入输出列：%v", tbl.Header)
	}
}

func TestExecute_ParseFailure(t *testing.T) {
	tbl := &table.Table{
		Header: []string{"Codigo"},
		Rows:   [][]string{{"LT-100"}},
	}
	q := &fakeQuerier{err: &sparql.ParseError{Err: errors.New("json inválido")}}

	_, err := Execute(context.Background(), testEffective(), tbl, q, nil)
	if ErrCode(err) != domain.ErrCodeParseFailed {
		t.Fatalf("期望 %s，实际 %v", domain.ErrCodeParseFailed, err)
	}
}
