// Package csvx 读写机构导出的表格文件。
//
// 现实里的导出文件五花八门：带 BOM、整行被套一层引号、行长参差、
// 甚至直接给 XLSX。读取层把这些都消化掉，上层只看到干净的 Table。
package csvx

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/John-Robertt/WDQC/internal/infra/fsx"
	"github.com/John-Robertt/WDQC/internal/table"
)

// utf8BOM 是写出时的前缀。
// Excel 打开含非 ASCII 字符的 CSV 时需要它才不乱码。
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ReadTable 按扩展名读取 .csv 或 .xlsx，返回表格模型。
// 列名会 trim 并去 BOM；数据行按 header 长度补齐/截断。
func ReadTable(path string) (*table.Table, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return readXLSX(path)
	}
	return readCSV(path)
}

func readCSV(path string) (*table.Table, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	raw = bytes.TrimPrefix(raw, utf8BOM)

	r := csv.NewReader(strings.NewReader(repairQuotedRows(string(raw))))
	r.FieldsPerRecord = -1 // 行长参差交给 normalize 处理
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("解析 CSV 失败：%w", err)
	}
	return fromRecords(records)
}

func readXLSX(path string) (*table.Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("XLSX 中没有工作表")
	}
	records, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, err
	}
	return fromRecords(records)
}

func fromRecords(records [][]string) (*table.Table, error) {
	if len(records) == 0 {
		return nil, errors.New("文件为空（缺少表头行）")
	}

	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = strings.TrimSpace(strings.TrimPrefix(h, "\uFEFF"))
	}

	rows := make([][]string, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := make([]string, len(header))
		copy(row, rec) // 超长截断、不足留空
		rows = append(rows, row)
	}
	return &table.Table{Header: header, Rows: rows}, nil
}

// repairQuotedRows 修复被导出成“单个巨型引号单元格”的数据行：
// 整行被一对引号包住、内部引号翻倍。表头行只去 BOM，不参与修复。
func repairQuotedRows(raw string) string {
	lines := strings.Split(raw, "\n")
	if len(lines) == 0 {
		return raw
	}

	out := make([]string, 0, len(lines))
	out = append(out, strings.TrimPrefix(lines[0], "\uFEFF"))
	for _, line := range lines[1:] {
		l := strings.TrimRight(line, "\r")
		trimmed := strings.TrimSpace(l)
		if len(trimmed) >= 2 &&
			strings.HasPrefix(trimmed, `"`) && strings.HasSuffix(trimmed, `"`) &&
			strings.Contains(trimmed, `""`) {
			inner := strings.ReplaceAll(trimmed[1:len(trimmed)-1], `""`, `"`)
			out = append(out, inner)
			continue
		}
		out = append(out, l)
	}
	return strings.Join(out, "\n")
}

// WriteTable 把表格写成带 BOM 的 CSV（原子替换，父目录自动创建）。
func WriteTable(path string, t *table.Table) error {
	var buf bytes.Buffer
	buf.Write(utf8BOM)

	w := csv.NewWriter(&buf)
	if err := w.Write(t.Header); err != nil {
		return err
	}
	for _, row := range t.Rows {
		// 短行补空到表头长度，保证输出矩形。
		if len(row) < len(t.Header) {
			padded := make([]string, len(t.Header))
			copy(padded, row)
			row = padded
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}

	abs := filepath.Clean(path)
	return fsx.WriteFileAtomicReplace(filepath.Dir(abs), filepath.Base(abs), buf.Bytes())
}
