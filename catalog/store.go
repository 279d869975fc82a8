package catalog

import (
	"context"
	"fmt"
	"sort"

	"github.com/goccy/go-json"

	"github.com/rushteam/ncfrec/core"
	"github.com/rushteam/ncfrec/pkg/conv"
)

// DefaultCatalogKey 是 StoreCatalog 的默认 hash key
const DefaultCatalogKey = "ncfrec:catalog"

// StoreCatalog 把商品目录存为一个 Hash：field 为物品 ID，value 为目录行 JSON。
type StoreCatalog struct {
	Store core.KeyValueStore
	Key   string
}

func NewStoreCatalog(s core.KeyValueStore, key string) *StoreCatalog {
	if key == "" {
		key = DefaultCatalogKey
	}
	return &StoreCatalog{Store: s, Key: key}
}

func (c *StoreCatalog) Name() string { return c.Store.Name() + ":" + c.Key }

// Put 写入（或覆盖）目录行
func (c *StoreCatalog) Put(ctx context.Context, items ...core.CatalogItem) error {
	for _, it := range items {
		data, err := json.Marshal(it)
		if err != nil {
			return fmt.Errorf("encode catalog item %s: %w", it.ID, err)
		}
		if err := c.Store.HSet(ctx, c.Key, it.ID, data); err != nil {
			return err
		}
	}
	return nil
}

// ListItems 返回全部目录行，按 ID 升序（数值优先）。
func (c *StoreCatalog) ListItems(ctx context.Context) ([]core.CatalogItem, error) {
	all, err := c.Store.HGetAll(ctx, c.Key)
	if err != nil {
		return nil, err
	}
	out := make([]core.CatalogItem, 0, len(all))
	for id, data := range all {
		it, err := decodeItem(id, data)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return conv.CompareIDs(out[i].ID, out[j].ID) < 0 })
	return out, nil
}

func (c *StoreCatalog) GetItems(ctx context.Context, ids []string) (map[string]core.CatalogItem, error) {
	out := make(map[string]core.CatalogItem, len(ids))
	for _, id := range ids {
		data, err := c.Store.HGet(ctx, c.Key, id)
		if core.IsStoreNotFound(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		it, err := decodeItem(id, data)
		if err != nil {
			return nil, err
		}
		out[id] = it
	}
	return out, nil
}

func decodeItem(id string, data []byte) (core.CatalogItem, error) {
	var it core.CatalogItem
	if err := json.Unmarshal(data, &it); err != nil {
		return it, core.WrapDomainError(core.ModuleCatalog, core.ErrorCodeDataIntegrity, err, "catalog: decode item %s", id)
	}
	it.ID = id
	return it, nil
}

var _ core.Catalog = (*StoreCatalog)(nil)
