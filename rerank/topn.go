package rerank

import (
	"context"

	"github.com/rushteam/ncfrec/core"
	"github.com/rushteam/ncfrec/pipeline"
)

// TopNNode 是 Top-N 截断节点，放在排序节点之后。
//
// 截断数量取 N 与 rctx.TopN 中较小的正数；两者都 <= 0 时不截断。
type TopNNode struct {
	// N 是配置的上限
	N int
}

func (n *TopNNode) Name() string {
	return "rerank.topn"
}

func (n *TopNNode) Kind() pipeline.Kind {
	return pipeline.KindReRank
}

func (n *TopNNode) Process(
	_ context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	limit := n.N
	if rctx != nil && rctx.TopN > 0 && (limit <= 0 || rctx.TopN < limit) {
		limit = rctx.TopN
	}
	if limit <= 0 || len(items) <= limit {
		return items, nil
	}
	return items[:limit], nil
}
