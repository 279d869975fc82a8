package rerank

import (
	"context"

	"github.com/rushteam/ncfrec/core"
	"github.com/rushteam/ncfrec/pipeline"
)

// Diversity 按类目打散：同一类目最多保留 MaxPerCategory 个，保持原有顺序。
// 类目来源优先级：
// - label["category"].Value
// - meta["category"] (string)
//
// 没有类目的物品不受限制。
type Diversity struct {
	// MaxPerCategory 默认 1
	MaxPerCategory int
}

func (n *Diversity) Name() string {
	return "rerank.diversity"
}

func (n *Diversity) Kind() pipeline.Kind {
	return pipeline.KindReRank
}

func (n *Diversity) Process(
	_ context.Context,
	_ *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if len(items) == 0 {
		return items, nil
	}

	limit := n.MaxPerCategory
	if limit <= 0 {
		limit = 1
	}

	seen := make(map[string]int, 32)
	out := make([]*core.Item, 0, len(items))
	for _, it := range items {
		if it == nil {
			continue
		}
		cate := category(it)
		if cate == "" {
			out = append(out, it)
			continue
		}
		if seen[cate] >= limit {
			continue
		}
		seen[cate]++
		out = append(out, it)
	}
	return out, nil
}

func category(it *core.Item) string {
	if lbl, ok := it.Labels[core.MetaCategory]; ok && lbl.Value != "" {
		return lbl.Value
	}
	s, _ := it.Meta[core.MetaCategory].(string)
	return s
}
