package core

import "context"

// Item.Meta 中商品目录字段的 key
const (
	MetaName     = "name"
	MetaCategory = "category"
	MetaPrice    = "price"
)

// CatalogItem 是商品目录中的一行：ID 在同一目录内唯一。
type CatalogItem struct {
	ID       string  `json:"item_id" validate:"required"`
	Name     string  `json:"name"`
	Category string  `json:"category"`
	Price    float64 `json:"price" validate:"gte=0"`
}

// Recommendation 是排序引擎的输出单元，按请求临时构造，不做持久化。
type Recommendation struct {
	ItemID          string  `json:"item_id"`
	PredictedRating float64 `json:"predicted_rating"`
	Name            string  `json:"name"`
	Category        string  `json:"category"`
	Price           float64 `json:"price"`
}

// Catalog 是商品目录协作方的只读接口。
//
// 实现：
//   - catalog.Memory：内存目录（测试/CSV 加载结果）
//   - catalog.StoreCatalog：基于 core.KeyValueStore 的 Hash 目录
//   - catalog.FeastCatalog：从 Feast 在线特征库读取商品元数据
type Catalog interface {
	// Name 返回目录名称（用于日志/监控）
	Name() string

	// ListItems 返回全部商品行（顺序稳定）
	ListItems(ctx context.Context) ([]CatalogItem, error)

	// GetItems 批量读取商品行，不存在的 ID 不出现在返回值中
	GetItems(ctx context.Context, ids []string) (map[string]CatalogItem, error)
}

// PurchaseHistory 是购买记录协作方的只读接口，用于构建排除集合。
type PurchaseHistory interface {
	// PurchasedItems 返回用户已购买的物品 ID（可能包含重复）
	PurchasedItems(ctx context.Context, userID string) ([]string, error)
}
