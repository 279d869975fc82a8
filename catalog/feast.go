package catalog

import (
	"context"
	"fmt"
	"strconv"

	feastsdk "github.com/feast-dev/feast/sdk/go"

	"github.com/rushteam/ncfrec/core"
)

// Feast 默认值
const (
	DefaultFeastPort   = 6565
	DefaultFeatureView = "product_features"
	DefaultEntityKey   = ColProductID
)

// FeastOptions 是 Feast 在线特征库的连接与特征映射配置。
type FeastOptions struct {
	Host    string `koanf:"host"`
	Port    int    `koanf:"port"`
	Project string `koanf:"project"`

	// FeatureView 是商品特征视图名，特征引用为 <FeatureView>:<feature>
	FeatureView string `koanf:"feature_view"`

	// EntityKey 是实体列名
	EntityKey string `koanf:"entity_key"`

	// Int64Entity 为 true 时把数字 ID 作为 int64 实体值发送
	Int64Entity bool `koanf:"int64_entity"`
}

func (o *FeastOptions) defaults() {
	if o.Port == 0 {
		o.Port = DefaultFeastPort
	}
	if o.FeatureView == "" {
		o.FeatureView = DefaultFeatureView
	}
	if o.EntityKey == "" {
		o.EntityKey = DefaultEntityKey
	}
}

// RowFetcher 抽象一次在线特征查询，返回与实体一一对应的行。
type RowFetcher interface {
	FetchRows(ctx context.Context, project string, features []string, entities []feastsdk.Row) ([]feastsdk.Row, error)
}

type grpcFetcher struct {
	client *feastsdk.GrpcClient
}

func (g *grpcFetcher) FetchRows(ctx context.Context, project string, features []string, entities []feastsdk.Row) ([]feastsdk.Row, error) {
	resp, err := g.client.GetOnlineFeatures(ctx, &feastsdk.OnlineFeaturesRequest{
		Features: features,
		Entities: entities,
		Project:  project,
	})
	if err != nil {
		return nil, fmt.Errorf("feast get online features failed: %w", err)
	}
	return resp.Rows(), nil
}

// FeastCatalog 从 Feast 在线特征库读取商品名称、类目、价格。
// Feast 不支持枚举实体，ListItems 返回 NOT_SUPPORTED，只适合作为元数据源。
type FeastCatalog struct {
	opts    FeastOptions
	fetcher RowFetcher
}

// NewFeastCatalog 连接 Feast gRPC 服务
func NewFeastCatalog(opts FeastOptions) (*FeastCatalog, error) {
	opts.defaults()
	client, err := feastsdk.NewGrpcClient(opts.Host, opts.Port)
	if err != nil {
		return nil, core.WrapDomainError(core.ModuleCatalog, core.ErrorCodeUnavailable, err,
			"创建 Feast gRPC 客户端失败: %s:%d", opts.Host, opts.Port)
	}
	return NewFeastCatalogWithFetcher(opts, &grpcFetcher{client: client}), nil
}

// NewFeastCatalogWithFetcher 使用自定义查询实现（测试/代理）
func NewFeastCatalogWithFetcher(opts FeastOptions, f RowFetcher) *FeastCatalog {
	opts.defaults()
	return &FeastCatalog{opts: opts, fetcher: f}
}

func (c *FeastCatalog) Name() string { return "feast:" + c.opts.FeatureView }

func (c *FeastCatalog) ref(feature string) string {
	return c.opts.FeatureView + ":" + feature
}

func (c *FeastCatalog) ListItems(context.Context) ([]core.CatalogItem, error) {
	return nil, core.NewDomainError(core.ModuleCatalog, core.ErrorCodeNotSupported, "feast: listing entities is not supported")
}

func (c *FeastCatalog) GetItems(ctx context.Context, ids []string) (map[string]core.CatalogItem, error) {
	out := make(map[string]core.CatalogItem, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	entities := make([]feastsdk.Row, len(ids))
	for i, id := range ids {
		entities[i] = c.entityRow(id)
	}
	features := []string{c.ref(ColProductName), c.ref(ColCategory), c.ref(ColPrice)}

	rows, err := c.fetcher.FetchRows(ctx, c.opts.Project, features, entities)
	if err != nil {
		return nil, core.WrapDomainError(core.ModuleCatalog, core.ErrorCodeUnavailable, err, "feast: fetch %d items", len(ids))
	}
	if len(rows) != len(ids) {
		return nil, fmt.Errorf("response row count mismatch: expected %d, got %d", len(ids), len(rows))
	}

	for i, row := range rows {
		name := row[c.ref(ColProductName)]
		if name == nil || name.GetStringVal() == "" {
			continue
		}
		out[ids[i]] = core.CatalogItem{
			ID:       ids[i],
			Name:     name.GetStringVal(),
			Category: row[c.ref(ColCategory)].GetStringVal(),
			Price:    numeric(row[c.ref(ColPrice)]),
		}
	}
	return out, nil
}

func (c *FeastCatalog) entityRow(id string) feastsdk.Row {
	row := make(feastsdk.Row, 1)
	if c.opts.Int64Entity {
		if n, err := strconv.ParseInt(id, 10, 64); err == nil {
			row[c.opts.EntityKey] = feastsdk.Int64Val(n)
			return row
		}
	}
	row[c.opts.EntityKey] = feastsdk.StrVal(id)
	return row
}

// numericValue 是 Feast Value 的数值 getter 子集
type numericValue interface {
	GetDoubleVal() float64
	GetFloatVal() float32
	GetInt64Val() int64
	GetInt32Val() int32
}

func numeric(v numericValue) float64 {
	switch {
	case v == nil:
		return 0
	case v.GetDoubleVal() != 0:
		return v.GetDoubleVal()
	case v.GetFloatVal() != 0:
		return float64(v.GetFloatVal())
	case v.GetInt64Val() != 0:
		return float64(v.GetInt64Val())
	default:
		return float64(v.GetInt32Val())
	}
}

var _ core.Catalog = (*FeastCatalog)(nil)
