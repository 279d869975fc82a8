package core

import "github.com/rushteam/ncfrec/pkg/utils"

// RecommendContext 承载一次推荐请求的用户与约束信息，贯穿整个 Pipeline 透传。
type RecommendContext struct {
	RequestID string
	UserID    string // 使用 string 类型（通用，支持所有 ID 格式）
	Scene     string

	// TopN 是本次请求需要返回的最大条数
	TopN int

	// Exclude 是本次请求的排除集合（例如已购买的物品）
	Exclude map[string]struct{}

	// Labels 是用户级标签，例如 cold_start
	Labels map[string]utils.Label

	// Params 请求级上下文参数（例如 CEL 过滤表达式）
	Params map[string]any

	// Stats 由各阶段 Node 回填，用于响应与监控
	Stats RequestStats
}

// RequestStats 记录一次请求在各阶段的数量变化。
type RequestStats struct {
	Candidates int  // 排除后进入排序的候选数
	Scored     int  // 成功预测的候选数
	Dropped    int  // 因物品不在词表中被丢弃的候选数
	ColdStart  bool // 用户不在词表中
}

// NewRecommendContext 创建请求上下文，exclude 中的重复 ID 会被合并。
func NewRecommendContext(userID string, topN int, exclude []string) *RecommendContext {
	set := make(map[string]struct{}, len(exclude))
	for _, id := range exclude {
		set[id] = struct{}{}
	}
	return &RecommendContext{
		UserID:  userID,
		TopN:    topN,
		Exclude: set,
		Labels:  make(map[string]utils.Label),
		Params:  make(map[string]any),
	}
}

// IsExcluded 判断物品是否在排除集合中。
func (rctx *RecommendContext) IsExcluded(itemID string) bool {
	if rctx.Exclude == nil {
		return false
	}
	_, ok := rctx.Exclude[itemID]
	return ok
}

// PutLabel 写入用户级 Label。
func (rctx *RecommendContext) PutLabel(key string, lbl utils.Label) {
	if rctx.Labels == nil {
		rctx.Labels = make(map[string]utils.Label)
	}
	if old, ok := rctx.Labels[key]; ok {
		rctx.Labels[key] = utils.MergeLabel(old, lbl)
		return
	}
	rctx.Labels[key] = lbl
}

// GetLabel 获取用户级 Label。
func (rctx *RecommendContext) GetLabel(key string) (utils.Label, bool) {
	if rctx.Labels == nil {
		return utils.Label{}, false
	}
	lbl, ok := rctx.Labels[key]
	return lbl, ok
}
