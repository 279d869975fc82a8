package feature

import (
	"context"
	"fmt"

	"github.com/rushteam/ncfrec/core"
	"github.com/rushteam/ncfrec/pipeline"
	"github.com/rushteam/ncfrec/pkg/utils"
)

// CatalogEnrichNode 是后处理节点：把商品目录字段（名称、类目、价格）补齐到 Item.Meta。
//
// 数据来源：
//   - Source 非空：从外部目录批量读取（例如 catalog.FeastCatalog），覆盖候选行自带的字段，
//     外部目录缺行即报错
//   - Source 为空：使用候选行写入 Meta 的字段
//
// 任一物品找不到目录行时返回 DATA_INTEGRITY 错误，不做静默丢弃。
type CatalogEnrichNode struct {
	Source core.Catalog
}

func (n *CatalogEnrichNode) Name() string {
	return "postprocess.catalog"
}

func (n *CatalogEnrichNode) Kind() pipeline.Kind {
	return pipeline.KindPostProcess
}

func (n *CatalogEnrichNode) Process(
	ctx context.Context,
	_ *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if len(items) == 0 {
		return items, nil
	}

	if n.Source != nil {
		ids := make([]string, 0, len(items))
		for _, it := range items {
			ids = append(ids, it.ID)
		}
		rows, err := n.Source.GetItems(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("catalog enrich: %s: %w", n.Source.Name(), err)
		}
		for _, it := range items {
			row, ok := rows[it.ID]
			if !ok {
				return nil, core.WrapDomainError(core.ModuleCatalog, core.ErrorCodeDataIntegrity,
					core.ErrDataIntegrity, "catalog enrich: %s has no row for item %q", n.Source.Name(), it.ID)
			}
			if it.Meta == nil {
				it.Meta = make(map[string]any, 3)
			}
			it.Meta[core.MetaName] = row.Name
			it.Meta[core.MetaCategory] = row.Category
			it.Meta[core.MetaPrice] = row.Price
			it.PutLabel("catalog_source", utils.StringLabel(n.Source.Name(), utils.SourcePostProcess))
		}
	}

	for _, it := range items {
		if _, ok := it.CatalogItem(); !ok {
			return nil, core.WrapDomainError(core.ModuleCatalog, core.ErrorCodeDataIntegrity,
				core.ErrDataIntegrity, "catalog enrich: no catalog row for item %q", it.ID)
		}
	}
	return items, nil
}

// ToRecommendations 把已补齐目录字段的 Item 转换为输出记录，顺序不变。
func ToRecommendations(items []*core.Item) ([]core.Recommendation, error) {
	out := make([]core.Recommendation, 0, len(items))
	for _, it := range items {
		row, ok := it.CatalogItem()
		if !ok {
			return nil, core.WrapDomainError(core.ModuleCatalog, core.ErrorCodeDataIntegrity,
				core.ErrDataIntegrity, "no catalog row for item %q", it.ID)
		}
		out = append(out, core.Recommendation{
			ItemID:          it.ID,
			PredictedRating: it.Score,
			Name:            row.Name,
			Category:        row.Category,
			Price:           row.Price,
		})
	}
	return out, nil
}
