package builders

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/ncfrec/config"
	"github.com/rushteam/ncfrec/core"
	"github.com/rushteam/ncfrec/feature"
	"github.com/rushteam/ncfrec/filter"
	"github.com/rushteam/ncfrec/model"
	"github.com/rushteam/ncfrec/pipeline"
	"github.com/rushteam/ncfrec/rank"
	"github.com/rushteam/ncfrec/rerank"
)

func testDeps() config.Deps {
	codec := feature.NewIdentityCodec(
		feature.NewLabelEncoder().Fit([]string{"u1"}),
		feature.NewLabelEncoder().Fit([]string{"1", "2", "3"}),
	)
	m := model.NewNCFModel(1, 3, 4, []int{4, 1}, 7)
	return config.Deps{Scorer: rank.NewScorer(codec, m), Concurrency: 2}
}

func TestSupportedTypes(t *testing.T) {
	types := config.SupportedTypes()
	for _, want := range []string{
		"filter", "filter.exclude", "filter.expr", "filter.purchased",
		"rank.ncf", "rerank.topn", "rerank.diversity", "postprocess.catalog",
	} {
		assert.Contains(t, types, want)
	}
}

func TestBuildPipeline_Default(t *testing.T) {
	p, err := config.BuildPipeline(nil, testDeps())
	require.NoError(t, err)
	require.Len(t, p.Nodes, 5)

	kinds := make([]pipeline.Kind, 0, len(p.Nodes))
	for _, n := range p.Nodes {
		kinds = append(kinds, n.Kind())
	}
	assert.Equal(t, []pipeline.Kind{
		pipeline.KindFilter, pipeline.KindFilter, pipeline.KindRank, pipeline.KindReRank, pipeline.KindPostProcess,
	}, kinds)

	ncf, ok := p.Nodes[2].(*rank.NCFNode)
	require.True(t, ok)
	assert.Equal(t, 2, ncf.Concurrency)
}

func TestBuildPipeline_Custom(t *testing.T) {
	cfg, err := pipeline.ParseYAML([]byte(`
pipeline:
  name: custom
  nodes:
    - type: filter
      config:
        filters:
          - type: exclude
            ids: [2]
          - type: expr
            expr: item.id != "3"
    - type: rank.ncf
      config:
        concurrency: 1
    - type: rerank.topn
      config:
        n: 10
`))
	require.NoError(t, err)

	p, err := config.BuildPipeline(cfg, testDeps())
	require.NoError(t, err)
	assert.Equal(t, "custom", p.Name)

	fn, ok := p.Nodes[0].(*filter.FilterNode)
	require.True(t, ok)
	assert.Len(t, fn.Filters, 2)
	assert.Equal(t, 10, p.Nodes[2].(*rerank.TopNNode).N)

	rctx := core.NewRecommendContext("u1", 5, nil)
	out, err := p.Run(context.Background(), rctx,
		[]*core.Item{core.NewItem("1"), core.NewItem("2"), core.NewItem("3")})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "1", out[0].ID)
}

func TestBuildPipeline_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		deps config.Deps
	}{
		{
			name: "unknown type",
			yaml: "pipeline:\n  nodes:\n    - type: recall.hot\n",
			deps: testDeps(),
		},
		{
			name: "missing scorer",
			yaml: "pipeline:\n  nodes:\n    - type: rank.ncf\n",
		},
		{
			name: "bad expr",
			yaml: "pipeline:\n  nodes:\n    - type: filter.expr\n      config:\n        expr: \"item.price >\"\n    - type: rank.ncf\n",
			deps: testDeps(),
		},
		{
			name: "unknown filter",
			yaml: "pipeline:\n  nodes:\n    - type: filter\n      config:\n        filters:\n          - type: bloom\n    - type: rank.ncf\n",
			deps: testDeps(),
		},
		{
			name: "purchased without history",
			yaml: "pipeline:\n  nodes:\n    - type: filter.purchased\n    - type: rank.ncf\n",
			deps: testDeps(),
		},
		{
			name: "no rank node",
			yaml: "pipeline:\n  nodes:\n    - type: rerank.topn\n",
			deps: testDeps(),
		},
		{
			name: "negative concurrency",
			yaml: "pipeline:\n  nodes:\n    - type: rank.ncf\n      config:\n        concurrency: -1\n",
			deps: testDeps(),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := pipeline.ParseYAML([]byte(tt.yaml))
			require.NoError(t, err)
			_, err = config.BuildPipeline(cfg, tt.deps)
			assert.Error(t, err)
		})
	}
}

type history map[string][]string

func (h history) PurchasedItems(_ context.Context, userID string) ([]string, error) {
	return h[userID], nil
}

func TestBuildPipeline_PurchasedAndDiversity(t *testing.T) {
	cfg, err := pipeline.ParseYAML([]byte(`
pipeline:
  name: storefront
  nodes:
    - type: filter.purchased
    - type: rank.ncf
    - type: rerank.diversity
      config:
        max_per_category: 1
    - type: rerank.topn
`))
	require.NoError(t, err)
	deps := testDeps()
	deps.History = history{"u1": {"1"}}

	p, err := config.BuildPipeline(cfg, deps)
	require.NoError(t, err)
	assert.Equal(t, 1, p.Nodes[2].(*rerank.Diversity).MaxPerCategory)

	items := []*core.Item{
		core.NewItemFromCatalog(core.CatalogItem{ID: "1", Category: "a"}),
		core.NewItemFromCatalog(core.CatalogItem{ID: "2", Category: "a"}),
		core.NewItemFromCatalog(core.CatalogItem{ID: "3", Category: "a"}),
	}
	out, err := p.Run(context.Background(), core.NewRecommendContext("u1", 5, nil), items)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.NotEqual(t, "1", out[0].ID)
}

func TestValidatePipelineConfig(t *testing.T) {
	assert.NoError(t, config.ValidatePipelineConfig(nil))
	assert.NoError(t, config.ValidatePipelineConfig(pipeline.DefaultConfig()))

	cfg, err := pipeline.ParseYAML([]byte("pipeline:\n  nodes:\n    - type: rank.lr\n"))
	require.NoError(t, err)
	err = config.ValidatePipelineConfig(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rank.ncf")
}
