package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/ncfrec/core"
)

type fakeNode struct {
	name string
	kind Kind
	err  error
}

func (n *fakeNode) Name() string { return n.name }
func (n *fakeNode) Kind() Kind   { return n.kind }
func (n *fakeNode) Process(_ context.Context, _ *core.RecommendContext, items []*core.Item) ([]*core.Item, error) {
	if n.err != nil {
		return nil, n.err
	}
	return append(items, core.NewItem(n.name)), nil
}

func TestPipeline_Run(t *testing.T) {
	p := &Pipeline{Nodes: []Node{&fakeNode{name: "a", kind: KindFilter}, &fakeNode{name: "b", kind: KindRank}}}
	out, err := p.Run(context.Background(), core.NewRecommendContext("u", 1, nil), nil)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].ID)
	assert.Equal(t, "b", out[1].ID)
}

func TestPipeline_RunError(t *testing.T) {
	boom := errors.New("boom")
	p := &Pipeline{Nodes: []Node{&fakeNode{name: "bad", kind: KindRank, err: boom}}}
	_, err := p.Run(context.Background(), core.NewRecommendContext("u", 1, nil), nil)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "bad")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = (&Pipeline{Nodes: []Node{&fakeNode{name: "a", kind: KindRank}}}).Run(ctx, core.NewRecommendContext("u", 1, nil), nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPipeline_Validate(t *testing.T) {
	f := &fakeNode{name: "f", kind: KindFilter}
	r := &fakeNode{name: "r", kind: KindRank}
	tn := &fakeNode{name: "t", kind: KindReRank}
	tests := []struct {
		name  string
		nodes []Node
		ok    bool
	}{
		{"ok", []Node{f, r, tn}, true},
		{"no rank", []Node{f, tn}, false},
		{"two ranks", []Node{r, r}, false},
		{"filter after rank", []Node{r, f}, false},
		{"rerank before rank", []Node{tn, r}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := (&Pipeline{Nodes: tt.nodes}).Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestConfig_BuildPipeline(t *testing.T) {
	factory := NewNodeFactory()
	for _, nc := range []struct {
		typ  string
		kind Kind
	}{
		{"filter.exclude", KindFilter},
		{"filter.expr", KindFilter},
		{"rank.ncf", KindRank},
		{"rerank.topn", KindReRank},
		{"postprocess.catalog", KindPostProcess},
	} {
		nc := nc
		factory.Register(nc.typ, func(map[string]any) (Node, error) {
			return &fakeNode{name: nc.typ, kind: nc.kind}, nil
		})
	}

	p, err := DefaultConfig().BuildPipeline(factory)
	require.NoError(t, err)
	assert.Equal(t, "ncf", p.Name)
	assert.Len(t, p.Nodes, 5)

	_, err = factory.Build("rank.unknown", nil)
	assert.Error(t, err)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	yml := filepath.Join(dir, "p.yaml")
	require.NoError(t, os.WriteFile(yml, []byte(DefaultYAML), 0o600))
	js := filepath.Join(dir, "p.json")
	require.NoError(t, os.WriteFile(js, []byte(`{"pipeline":{"name":"j","nodes":[{"type":"rank.ncf","config":{"concurrency":4}}]}}`), 0o600))

	cfg, err := LoadFromFile(yml)
	require.NoError(t, err)
	assert.Len(t, cfg.Pipeline.Nodes, 5)

	cfg, err = LoadFromFile(js)
	require.NoError(t, err)
	assert.Equal(t, "j", cfg.Pipeline.Name)
	assert.EqualValues(t, 4, cfg.Pipeline.Nodes[0].Config["concurrency"])

	_, err = LoadFromFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
