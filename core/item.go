package core

import "github.com/rushteam/ncfrec/pkg/utils"

// Item 是推荐链路中的统一承载结构：分数、元信息、标签。
// Labels 用于解释与策略驱动；Score 用于排序决策。
type Item struct {
	ID       string
	Score    float64
	Features map[string]float64
	Meta     map[string]any
	Labels   map[string]utils.Label
}

func NewItem(id string) *Item {
	return &Item{
		ID:       id,
		Score:    0,
		Features: make(map[string]float64),
		Meta:     make(map[string]any),
		Labels:   make(map[string]utils.Label),
	}
}

// NewItemFromCatalog 根据商品目录行创建 Item，目录字段写入 Meta。
func NewItemFromCatalog(ci CatalogItem) *Item {
	it := NewItem(ci.ID)
	it.Meta[MetaName] = ci.Name
	it.Meta[MetaCategory] = ci.Category
	it.Meta[MetaPrice] = ci.Price
	it.Features[MetaPrice] = ci.Price
	return it
}

// PutLabel 写入 Label；若已存在同名 key，则按默认 Merge 规则累积。
func (it *Item) PutLabel(key string, lbl utils.Label) {
	if it.Labels == nil {
		it.Labels = make(map[string]utils.Label)
	}
	if old, ok := it.Labels[key]; ok {
		it.Labels[key] = utils.MergeLabel(old, lbl)
		return
	}
	it.Labels[key] = lbl
}

// CatalogItem 从 Meta 中还原商品目录行；字段不完整时返回 false。
func (it *Item) CatalogItem() (CatalogItem, bool) {
	name, ok1 := it.Meta[MetaName].(string)
	category, ok2 := it.Meta[MetaCategory].(string)
	price, ok3 := it.Meta[MetaPrice].(float64)
	if !ok1 || !ok2 || !ok3 {
		return CatalogItem{}, false
	}
	return CatalogItem{ID: it.ID, Name: name, Category: category, Price: price}, true
}
