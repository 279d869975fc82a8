package filter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/ncfrec/core"
	"github.com/rushteam/ncfrec/pkg/dsl"
)

func catalogItems() []*core.Item {
	return []*core.Item{
		core.NewItemFromCatalog(core.CatalogItem{ID: "1", Name: "Pen", Category: "Office", Price: 2}),
		core.NewItemFromCatalog(core.CatalogItem{ID: "2", Name: "Laptop", Category: "Electronics", Price: 900}),
		core.NewItemFromCatalog(core.CatalogItem{ID: "3", Name: "Mouse", Category: "Electronics", Price: 25}),
	}
}

func ids(items []*core.Item) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.ID)
	}
	return out
}

func TestExcludeFilter(t *testing.T) {
	tests := []struct {
		name    string
		exclude []string
		blocked []string
		want    []string
	}{
		{"nothing excluded", nil, nil, []string{"1", "2", "3"}},
		{"purchased excluded", []string{"2", "2", "99"}, nil, []string{"1", "3"}},
		{"global block", nil, []string{"1"}, []string{"2", "3"}},
		{"all excluded", []string{"1", "2", "3"}, nil, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rctx := core.NewRecommendContext("u", 10, tt.exclude)
			node := &FilterNode{Filters: []Filter{NewExcludeFilter(tt.blocked)}}
			out, err := node.Process(context.Background(), rctx, catalogItems())
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(out))
			assert.Equal(t, len(tt.want), rctx.Stats.Candidates)
		})
	}
}

func TestExprFilter(t *testing.T) {
	f, err := NewExprFilter(`item.category == "Electronics"`)
	require.NoError(t, err)

	rctx := core.NewRecommendContext("u", 10, nil)
	out, err := (&FilterNode{Filters: []Filter{f}}).Process(context.Background(), rctx, catalogItems())
	require.NoError(t, err)
	assert.Equal(t, []string{"2", "3"}, ids(out))

	// 请求级规则与配置规则同时生效
	req, err := dsl.Compile(`item.price < 100.0`)
	require.NoError(t, err)
	rctx = core.NewRecommendContext("u", 10, nil)
	rctx.Params[ParamFilterExpr] = req
	out, err = (&FilterNode{Filters: []Filter{f}}).Process(context.Background(), rctx, catalogItems())
	require.NoError(t, err)
	assert.Equal(t, []string{"3"}, ids(out))
}

func TestExprFilter_InvalidExpr(t *testing.T) {
	_, err := NewExprFilter(`item.price >`)
	require.Error(t, err)
	assert.True(t, core.IsInvalidInput(err))
}

func TestFilterNode_LabelsFiltered(t *testing.T) {
	items := catalogItems()
	rctx := core.NewRecommendContext("u", 10, []string{"1"})
	_, err := (&FilterNode{Filters: []Filter{NewExcludeFilter(nil)}}).Process(context.Background(), rctx, items)
	require.NoError(t, err)
	assert.Equal(t, "filter.exclude", items[0].Labels["filtered"].Source)
}

type historyStub struct {
	items map[string][]string
	calls int
	err   error
}

func (h *historyStub) PurchasedItems(_ context.Context, userID string) ([]string, error) {
	h.calls++
	return h.items[userID], h.err
}

func TestPurchasedFilter(t *testing.T) {
	h := &historyStub{items: map[string][]string{"u": {"1", "3"}}}
	rctx := core.NewRecommendContext("u", 10, []string{"2"})
	node := &FilterNode{Filters: []Filter{NewPurchasedFilter(h)}}

	out, err := node.Process(context.Background(), rctx, catalogItems())
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Equal(t, 1, h.calls)
	assert.True(t, rctx.IsExcluded("1"))

	other := core.NewRecommendContext("v", 10, nil)
	out, err = node.Process(context.Background(), other, catalogItems())
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "3"}, ids(out))
}

func TestPurchasedFilter_HistoryError(t *testing.T) {
	h := &historyStub{err: assert.AnError}
	rctx := core.NewRecommendContext("u", 10, nil)
	f := NewPurchasedFilter(h)

	_, err := f.ShouldFilter(context.Background(), rctx, core.NewItem("1"))
	assert.ErrorIs(t, err, assert.AnError)
	assert.True(t, core.IsUnavailable(err))

	// 节点级：读取失败时整个节点报错，不放行任何物品
	node := &FilterNode{Filters: []Filter{f}}
	out, err := node.Process(context.Background(), rctx, catalogItems())
	assert.True(t, core.IsUnavailable(err))
	assert.Nil(t, out)

	// 失败不会被记为已加载，恢复后下一次请求正常过滤
	h.err = nil
	h.items = map[string][]string{"u": {"2"}}
	out, err = node.Process(context.Background(), rctx, catalogItems())
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "3"}, ids(out))
	assert.Equal(t, 3, h.calls)
}
