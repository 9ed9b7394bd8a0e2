package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	appmerge "github.com/John-Robertt/WDQC/internal/app/merge"
	"github.com/John-Robertt/WDQC/internal/config"
	"github.com/John-Robertt/WDQC/internal/csvx"
	"github.com/John-Robertt/WDQC/internal/domain"
	"github.com/John-Robertt/WDQC/internal/wdqs"
)

var mergeFlags struct {
	input     string
	output    string
	codeCol   string
	props     []string
	lang      string
	batchSize int
	throttle  float64
	retries   int
	backoff   float64
	userAgent string
}

var mergeCmd = &cobra.Command{
	Use:   "merge --input <csv|xlsx> --output <csv>",
	Short: "按 code 解析 Wikidata QID，并在 code 列后插入 wikidata 列",
	Long: `merge 提取 code 列（可显式指定，否则按配置候选 + 启发式识别），
去重排序后分批查询 WDQS，按行级消歧 token 归结出唯一 QID。

任一批次重试耗尽或响应不合法都会中止运行，不写出任何结果文件。`,
	RunE: runMerge,
}

func init() {
	f := mergeCmd.Flags()
	f.StringVar(&mergeFlags.input, "input", "", "输入表（.csv 或 .xlsx）")
	f.StringVar(&mergeFlags.output, "output", "", "输出 CSV（wikidata 列插在 code 列之后）")
	f.StringVar(&mergeFlags.codeCol, "code-col", "", "显式指定 code 列名（覆盖候选与启发式）")
	f.StringSliceVar(&mergeFlags.props, "props", nil, "覆盖匹配属性（例如 P528,P712）")
	f.StringVar(&mergeFlags.lang, "lang", "", "描述语言（默认取配置，最终默认 es）")
	f.IntVar(&mergeFlags.batchSize, "batch-size", 0, "覆盖批大小")
	f.Float64Var(&mergeFlags.throttle, "throttle", 0, "覆盖批间最小间隔（秒）")
	f.IntVar(&mergeFlags.retries, "retries", 0, "覆盖总尝试次数")
	f.Float64Var(&mergeFlags.backoff, "backoff", 0, "覆盖指数退避底数")
	f.StringVar(&mergeFlags.userAgent, "user-agent", "", "覆盖 WDQS 的 User-Agent")
	_ = mergeCmd.MarkFlagRequired("input")
	_ = mergeCmd.MarkFlagRequired("output")
}

func runMerge(cmd *cobra.Command, args []string) error {
	log := newLogger()
	defer func() { _ = log.Sync() }()

	fc, err := loadConfig()
	if err != nil {
		return err
	}

	f := cmd.Flags()
	eff := config.MergeEffective(fc, config.MergeCLI{
		Props:        mergeFlags.props,
		PropsSet:     f.Changed("props"),
		CodeCol:      mergeFlags.codeCol,
		Lang:         mergeFlags.lang,
		LangSet:      f.Changed("lang"),
		BatchSize:    mergeFlags.batchSize,
		BatchSizeSet: f.Changed("batch-size"),
		Throttle:     mergeFlags.throttle,
		ThrottleSet:  f.Changed("throttle"),
		Retries:      mergeFlags.retries,
		RetriesSet:   f.Changed("retries"),
		Backoff:      mergeFlags.backoff,
		BackoffSet:   f.Changed("backoff"),
		UserAgent:    mergeFlags.userAgent,
		UserAgentSet: f.Changed("user-agent"),
	})

	t, err := csvx.ReadTable(mergeFlags.input)
	if err != nil {
		return fmt.Errorf("%s：读取输入失败：%w", domain.ErrCodeIOFailed, err)
	}

	client := wdqs.New(wdqs.Options{
		UserAgent: eff.UserAgent,
		Retries:   eff.Retries,
		Backoff:   eff.Backoff,
		Throttle:  eff.Throttle,
	}, log)

	rep, err := appmerge.Execute(context.Background(), eff, t, client, log)
	if err != nil {
		return err
	}

	if err := csvx.WriteTable(mergeFlags.output, t); err != nil {
		return fmt.Errorf("%s：写出失败：%w", domain.ErrCodeIOFailed, err)
	}

	rep.Input = mergeFlags.input
	rep.Output = mergeFlags.output
	emitMergeReport(rep, log)
	return nil
}

// emitMergeReport：摘要走 stderr 日志；非 TTY 时 stdout 必须且仅输出一个 JSON。
func emitMergeReport(rep domain.MergeReport, log *zap.SugaredLogger) {
	log.Infow("完成",
		"rows", rep.Summary.Rows,
		"resolved", rep.Summary.Resolved,
		"resolved_first", rep.Summary.ResolvedFirst,
		"unresolved", rep.Summary.Unresolved,
		"ambiguous", rep.Summary.Ambiguous,
		"output", rep.Output)

	if !isTTY(os.Stdout) {
		enc := json.NewEncoder(os.Stdout)
		_ = enc.Encode(rep)
	}
}
