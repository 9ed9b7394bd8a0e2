package main

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/John-Robertt/WDQC/internal/config"
)

// defaultConfigName 是无 --config 时在 cwd 下探测的配置文件名。
const defaultConfigName = "wdqc.yaml"

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "wdqc",
	Short: "输电线路数据 -> Wikidata 对账流水线",
	Long: `wdqc 把机构导出的输电线路表对账到 Wikidata：

  harmonize  把任意导出表规范化为统一 schema
  merge      按 code 解析 QID 并插入 wikidata 列（核心）
  qs         生成 QuickStatements 上传 CSV

stdout 只输出结果 JSON（非 TTY 时）；日志与进度一律走 stderr。`,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "配置文件路径（默认探测 ./"+defaultConfigName+"）")
	rootCmd.AddCommand(harmonizeCmd, mergeCmd, qsCmd)
}

// loadConfig 按发现规则读取配置：
// 1) --config 显式给出：必须存在且可解析
// 2) 未给出：cwd 下有 wdqc.yaml 则读它；没有则返回零值（merge 全走默认值）
func loadConfig() (config.FileConfig, error) {
	path := cfgPath
	if path == "" {
		if _, err := os.Stat(defaultConfigName); err == nil {
			path = defaultConfigName
		}
	}
	return config.Load(path)
}

// newLogger 构造 stderr 上的控制台日志（不污染 stdout 的 JSON 契约）。
func newLogger() *zap.SugaredLogger {
	cfg := zap.NewDevelopmentConfig()
	cfg.DisableStacktrace = true
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	log, err := cfg.Build()
	if err != nil {
		return zap.NewNop().Sugar()
	}
	return log.Sugar()
}

func isTTY(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
