// Package catalog 提供商品目录与购买记录协作方的实现。
package catalog

import (
	"context"

	"github.com/rushteam/ncfrec/core"
)

// Memory 是内存商品目录，保留插入顺序；重复 ID 以第一行为准。
type Memory struct {
	name  string
	items []core.CatalogItem
	byID  map[string]int
}

func NewMemory(name string, items []core.CatalogItem) *Memory {
	m := &Memory{name: name, byID: make(map[string]int, len(items))}
	for _, it := range items {
		m.add(it)
	}
	return m
}

func (m *Memory) add(it core.CatalogItem) bool {
	if _, ok := m.byID[it.ID]; ok {
		return false
	}
	m.byID[it.ID] = len(m.items)
	m.items = append(m.items, it)
	return true
}

func (m *Memory) Name() string { return m.name }

// Len 返回目录行数
func (m *Memory) Len() int { return len(m.items) }

func (m *Memory) ListItems(context.Context) ([]core.CatalogItem, error) {
	out := make([]core.CatalogItem, len(m.items))
	copy(out, m.items)
	return out, nil
}

func (m *Memory) GetItems(_ context.Context, ids []string) (map[string]core.CatalogItem, error) {
	out := make(map[string]core.CatalogItem, len(ids))
	for _, id := range ids {
		if i, ok := m.byID[id]; ok {
			out[id] = m.items[i]
		}
	}
	return out, nil
}

var _ core.Catalog = (*Memory)(nil)
