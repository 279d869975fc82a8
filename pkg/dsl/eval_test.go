package dsl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/ncfrec/core"
	"github.com/rushteam/ncfrec/pkg/utils"
)

func TestExprEvaluate(t *testing.T) {
	item := core.NewItemFromCatalog(core.CatalogItem{ID: "7", Name: "Laptop Pro", Category: "Electronics", Price: 999.5})
	item.PutLabel("rank_model", utils.Label{Value: "ncf", Source: "rank"})
	rctx := core.NewRecommendContext("u1", 5, nil)

	tests := []struct {
		expr string
		want bool
	}{
		{`item.category == "Electronics"`, true},
		{`item.price < 100.0`, false},
		{`item.name.contains("Pro")`, true},
		{`item.id == "7"`, true},
		{`label.rank_model == "ncf"`, true},
		{`rctx.user_id == "u1" && item.price > 10.0`, true},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			e, err := Compile(tt.expr)
			require.NoError(t, err)
			got, err := e.Evaluate(item, rctx)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCompileErrors(t *testing.T) {
	_, err := Compile(`item.price >`)
	require.Error(t, err)
	assert.True(t, core.IsInvalidInput(err))

	_, err = Compile(`1 + 2`)
	require.Error(t, err)
	assert.True(t, core.IsInvalidInput(err))
}

func TestEvalEmpty(t *testing.T) {
	ok, err := Eval("", core.NewItem("1"), nil)
	require.NoError(t, err)
	assert.True(t, ok)
}
