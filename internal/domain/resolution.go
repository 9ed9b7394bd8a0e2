package domain

// Outcome 是单行的消歧结论。
//
// 注意：OutcomeResolvedFirst 与 OutcomeResolved 都会写出 QID，
// 但前者表示“多候选 + 无 token，按约定取首个”——这是在没有消歧上下文时
// 的兼容行为，必须单独计数，避免把它伪装成有把握的解析。
type Outcome int

const (
	// OutcomeUnresolved 表示该 code 零命中。
	OutcomeUnresolved Outcome = iota
	// OutcomeResolved 表示唯一命中，或 token 精确选中了一个候选。
	OutcomeResolved
	// OutcomeResolvedFirst 表示多候选且无 token：取到达顺序的首个候选。
	OutcomeResolvedFirst
	// OutcomeAmbiguous 表示多候选且 token 未能选中恰好一个。
	OutcomeAmbiguous
)

// Resolution 是 resolve 的完整结论（QID 可能为空）。
type Resolution struct {
	QID     string
	Outcome Outcome
}
