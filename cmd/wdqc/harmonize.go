package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/John-Robertt/WDQC/internal/csvx"
	"github.com/John-Robertt/WDQC/internal/domain"
	"github.com/John-Robertt/WDQC/internal/harmonize"
)

// 兜底 profile 名：输入条目没写 profile 时尝试它（与既有配置习惯对齐）。
const fallbackProfile = "qs_input_schema"

var harmonizeCmd = &cobra.Command{
	Use:   "harmonize",
	Short: "把配置里的每个输入表规范化为 QS 输入 schema",
	Long: `harmonize 逐个处理配置 inputs 里的文件：按 profile + 条目覆盖做列映射，
完成单位换算与 WKT 解析，输出 <输入名>_harmonized_for_qs.csv。

缺失的输入文件跳过（警告），不中断其余条目。`,
	RunE: runHarmonize,
}

func runHarmonize(cmd *cobra.Command, args []string) error {
	log := newLogger()
	defer func() { _ = log.Sync() }()

	fc, err := loadConfig()
	if err != nil {
		return err
	}
	if len(fc.Inputs) == 0 {
		return fmt.Errorf("%s：配置缺少 inputs（harmonize 需要至少一个输入条目）", domain.ErrCodeConfigInvalid)
	}

	for _, inp := range fc.Inputs {
		if inp.Path == "" {
			log.Warnw("输入条目缺少 path，跳过")
			continue
		}
		if _, err := os.Stat(inp.Path); err != nil {
			log.Warnw("输入文件不存在，跳过", "path", inp.Path)
			continue
		}

		t, err := csvx.ReadTable(inp.Path)
		if err != nil {
			return fmt.Errorf("%s：读取 %q 失败：%w", domain.ErrCodeIOFailed, inp.Path, err)
		}

		prof, ok := fc.Profiles[inp.Profile]
		if !ok {
			if p, has := fc.Profiles[fallbackProfile]; has {
				log.Warnw("输入未指定有效 profile，使用兜底", "path", inp.Path, "profile", fallbackProfile)
				prof = p
			} else {
				log.Warnw("找不到任何 profile，使用空映射", "path", inp.Path)
			}
		}

		out := harmonize.Harmonize(t, prof, inp)
		dst := harmonize.OutputPath(inp.Path)
		if err := csvx.WriteTable(dst, out); err != nil {
			return fmt.Errorf("%s：写出 %q 失败：%w", domain.ErrCodeIOFailed, dst, err)
		}
		log.Infow("harmonize 完成", "input", inp.Path, "rows", len(out.Rows), "output", dst)
	}
	return nil
}
