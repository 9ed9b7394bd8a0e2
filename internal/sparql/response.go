package sparql

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Response 对应 application/sparql-results+json 的最小子集。
//
// 约束：只解析我们 SELECT 的三个变量；结构不符合预期（非 JSON）是协议
// 错误，必须让调用方 fatal，而不是当作零命中吞掉。
type Response struct {
	Results struct {
		Bindings []Binding `json:"bindings"`
	} `json:"results"`
}

type Binding struct {
	Item Value `json:"item"`
	Code Value `json:"code"`
	Desc Value `json:"desc"`
}

type Value struct {
	Value string `json:"value"`
}

// ParseError 表示响应体不符合预期结构（协议不匹配，非瞬态，不得重试）。
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("响应不是合法的 sparql-results+json：%v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ParseResponse 解析响应体。解析失败返回 *ParseError（调用方不得重试）。
func ParseResponse(body []byte) (*Response, error) {
	var r Response
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, &ParseError{Err: err}
	}
	return &r, nil
}

// EntityID 从实体 URI 中取末段作为 QID。
// 例：http://www.wikidata.org/entity/Q42 -> Q42。
func EntityID(uri string) string {
	if i := strings.LastIndex(uri, "/"); i >= 0 {
		return uri[i+1:]
	}
	return uri
}
