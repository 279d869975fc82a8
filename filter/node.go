package filter

import (
	"context"

	"github.com/rushteam/ncfrec/core"
	"github.com/rushteam/ncfrec/pipeline"
	"github.com/rushteam/ncfrec/pkg/utils"
)

// FilterNode 是过滤 Node，可以组合多个过滤器进行过滤。
// 如果任何一个过滤器返回 true，该物品就会被过滤掉。
// 单个过滤器在逐项判断时出错会被跳过，不中断流程；
// 实现了 Preparer 的过滤器在 Prepare 阶段出错时节点直接返回错误。
type FilterNode struct {
	Filters []Filter
}

func (n *FilterNode) Name() string {
	return "filter.node"
}

func (n *FilterNode) Kind() pipeline.Kind {
	return pipeline.KindFilter
}

func (n *FilterNode) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	for _, f := range n.Filters {
		if p, ok := f.(Preparer); ok {
			if err := p.Prepare(ctx, rctx); err != nil {
				return nil, err
			}
		}
	}

	out := make([]*core.Item, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		if reason := n.match(ctx, rctx, item); reason != "" {
			item.PutLabel("filtered", utils.StringLabel("true", reason))
			continue
		}
		out = append(out, item)
	}
	rctx.Stats.Candidates = len(out)
	return out, nil
}

// match 返回第一个命中的过滤器名称
func (n *FilterNode) match(ctx context.Context, rctx *core.RecommendContext, item *core.Item) string {
	for _, f := range n.Filters {
		ok, err := f.ShouldFilter(ctx, rctx, item)
		if err != nil {
			continue
		}
		if ok {
			return f.Name()
		}
	}
	return ""
}
