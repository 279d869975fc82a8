package pipeline

import (
	"context"
	"fmt"

	"github.com/rushteam/ncfrec/core"
)

// Pipeline 把推荐逻辑拆成可组合的 Node 链，按顺序执行。
type Pipeline struct {
	Name  string
	Nodes []Node
}

func (p *Pipeline) Run(
	ctx context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	cur := items
	for _, node := range p.Nodes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		next, err := node.Process(ctx, rctx, cur)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", node.Name(), err)
		}
		cur = next
	}
	return cur, nil
}

// Validate 检查 Pipeline 结构：必须恰好包含一个排序节点，
// 且过滤节点都在排序之前、后处理节点都在排序之后。
func (p *Pipeline) Validate() error {
	rankAt := -1
	for i, node := range p.Nodes {
		if node.Kind() != KindRank {
			continue
		}
		if rankAt >= 0 {
			return fmt.Errorf("pipeline %q: multiple rank nodes (%s, %s)", p.Name, p.Nodes[rankAt].Name(), node.Name())
		}
		rankAt = i
	}
	if rankAt < 0 {
		return fmt.Errorf("pipeline %q: no rank node", p.Name)
	}
	for i, node := range p.Nodes {
		switch node.Kind() {
		case KindFilter:
			if i > rankAt {
				return fmt.Errorf("pipeline %q: filter node %s after rank", p.Name, node.Name())
			}
		case KindReRank, KindPostProcess:
			if i < rankAt {
				return fmt.Errorf("pipeline %q: %s node %s before rank", p.Name, node.Kind(), node.Name())
			}
		}
	}
	return nil
}
