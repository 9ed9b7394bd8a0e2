package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/John-Robertt/WDQC/internal/csvx"
	"github.com/John-Robertt/WDQC/internal/domain"
	"github.com/John-Robertt/WDQC/internal/qs"
)

var qsCmd = &cobra.Command{
	Use:   "qs <harmonized.csv> [output-dir]",
	Short: "由 harmonized 表生成 QuickStatements 上传 CSV",
	Long: `qs 读取 harmonized（且通常已 merge 过）的表，逐行装配 QS 声明与引用列。
国家/来源元数据按输入文件名从配置 inputs 里反查；找不到条目时引用列留空。`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runQS,
}

func runQS(cmd *cobra.Command, args []string) error {
	log := newLogger()
	defer func() { _ = log.Sync() }()

	input := args[0]
	outDir := "qs_output"
	if len(args) >= 2 {
		outDir = args[1]
	}

	fc, err := loadConfig()
	if err != nil {
		return err
	}

	inp, found := fc.FindInput(input)
	if !found {
		log.Warnw("配置里找不到该输入的条目，引用列将留空", "input", input)
	}

	t, err := csvx.ReadTable(input)
	if err != nil {
		return fmt.Errorf("%s：读取输入失败：%w", domain.ErrCodeIOFailed, err)
	}

	out := qs.Build(t, inp.Country)
	dst := filepath.Join(outDir, qs.OutputName)
	if err := csvx.WriteTable(dst, out); err != nil {
		return fmt.Errorf("%s：写出失败：%w", domain.ErrCodeIOFailed, err)
	}

	log.Infow("QS 文件已生成", "rows", len(out.Rows), "output", dst)
	return nil
}
