package domain

// Candidate 是远端返回的一个候选实体（QID + 配置语言下的描述）。
//
// 不变量：Candidate 只能来自远端响应，任何环节都不得凭空构造；
// Desc 允许为空（实体没有该语言的描述）。
type Candidate struct {
	QID  string
	Desc string
}
