package rank

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/rushteam/ncfrec/core"
	"github.com/rushteam/ncfrec/metrics"
	"github.com/rushteam/ncfrec/pipeline"
	"github.com/rushteam/ncfrec/pkg/conv"
	"github.com/rushteam/ncfrec/pkg/utils"
)

// 丢弃原因
const DropUnknownItem = "unknown_item"

// NCFNode 是使用 NCF 模型的排序 Node。
//
// 处理流程：
//  1. 用户不在词表中：标记 cold_start，直接返回空结果
//  2. 对每个候选预测并裁剪评分，物品不在词表中则丢弃
//  3. 按评分降序排列，同分按物品 ID 升序（数值优先）
//
// Concurrency > 1 时分段并发打分，结果写回各自下标，输出与串行完全一致。
type NCFNode struct {
	Scorer      *Scorer
	Concurrency int
	Metrics     *metrics.Recorder
}

func (n *NCFNode) Name() string        { return "rank.ncf" }
func (n *NCFNode) Kind() pipeline.Kind { return pipeline.KindRank }

func (n *NCFNode) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if n.Scorer == nil {
		return nil, core.NewDomainError(core.ModuleRank, core.ErrorCodeInternalError, "rank.ncf: scorer not configured")
	}
	userIdx, ok := n.Scorer.Codec.LookupUser(rctx.UserID)
	if !ok {
		rctx.Stats.ColdStart = true
		rctx.PutLabel("cold_start", utils.StringLabel("user", utils.SourceRank))
		return []*core.Item{}, nil
	}
	if len(items) == 0 {
		return items, nil
	}

	scores := make([]float64, len(items))
	known := make([]bool, len(items))
	if err := n.score(ctx, userIdx, items, scores, known); err != nil {
		return nil, err
	}

	out := make([]*core.Item, 0, len(items))
	dropped := 0
	for i, it := range items {
		if !known[i] {
			dropped++
			continue
		}
		it.Score = scores[i]
		it.PutLabel("rank_model", utils.StringLabel(n.Scorer.Model.Name(), utils.SourceRank))
		it.PutLabel("rank_type", utils.StringLabel("ncf", utils.SourceRank))
		out = append(out, it)
	}
	rctx.Stats.Scored += len(out)
	rctx.Stats.Dropped += dropped
	n.Metrics.AddDropped(DropUnknownItem, dropped)
	n.Metrics.ObserveScored(len(out))

	SortByScore(out)
	return out, nil
}

func (n *NCFNode) score(ctx context.Context, userIdx int, items []*core.Item, scores []float64, known []bool) error {
	scoreRange := func(lo, hi int) {
		for i := lo; i < hi; i++ {
			it := items[i]
			if it == nil {
				continue
			}
			itemIdx, ok := n.Scorer.Codec.LookupItem(it.ID)
			if !ok {
				continue
			}
			scores[i], known[i] = n.Scorer.predict(userIdx, itemIdx)
		}
	}

	workers := n.Concurrency
	if workers <= 1 || len(items) < 2*workers {
		scoreRange(0, len(items))
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	chunk := (len(items) + workers - 1) / workers
	for lo := 0; lo < len(items); lo += chunk {
		lo, hi := lo, min(lo+chunk, len(items))
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			scoreRange(lo, hi)
			return nil
		})
	}
	return g.Wait()
}

// SortByScore 按分数降序稳定排序，同分按 ID 升序。
func SortByScore(items []*core.Item) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		return conv.CompareIDs(items[i].ID, items[j].ID) < 0
	})
}
