package recommend

import (
	"github.com/rushteam/ncfrec/core"
)

// Request 是一次推荐请求。
type Request struct {
	// RequestID 为空时自动生成
	RequestID string `json:"request_id,omitempty"`

	UserID string `json:"user_id" validate:"required"`

	// Candidates 是候选商品；为空时使用 Engine 的目录全量
	Candidates []core.CatalogItem `json:"candidates,omitempty" validate:"dive"`

	// TopN 必须 > 0；Engine 配置了 MaxTopN 时不得超过它
	TopN int `json:"top_n"`

	// Exclude 是需要排除的物品（通常是已购买）
	Exclude []string `json:"exclude,omitempty"`

	// Filter 是可选的 CEL 表达式，例如 item.category == "Electronics" && item.price < 500.0
	Filter string `json:"filter,omitempty"`
}

// Response 是推荐结果。Items 为空且 error 为 nil 表示没有可推荐的物品。
type Response struct {
	Items     []core.Recommendation `json:"items"`
	RequestID string                `json:"request_id"`

	// Candidates 是排除与过滤之后进入排序的候选数
	Candidates int `json:"candidates"`

	// Scored 是成功预测的候选数
	Scored int `json:"scored"`

	// ColdStart 为 true 表示用户不在词表中
	ColdStart bool  `json:"cold_start"`
	LatencyMS int64 `json:"latency_ms"`
}

// Info 描述当前加载的模型。
type Info struct {
	Model    string `json:"model"`
	Users    int    `json:"users"`
	Items    int    `json:"items"`
	Pipeline string `json:"pipeline"`
}
