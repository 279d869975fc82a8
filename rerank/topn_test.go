package rerank

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/ncfrec/core"
)

func TestTopNNode(t *testing.T) {
	tests := []struct {
		n, reqTopN, items, want int
	}{
		{0, 0, 5, 5},
		{3, 0, 5, 3},
		{0, 2, 5, 2},
		{3, 4, 5, 3},
		{10, 2, 5, 2},
		{10, 10, 5, 5},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("n=%d/top=%d", tt.n, tt.reqTopN), func(t *testing.T) {
			in := make([]*core.Item, tt.items)
			for i := range in {
				in[i] = core.NewItem(fmt.Sprint(i))
			}
			out, err := (&TopNNode{N: tt.n}).Process(context.Background(), core.NewRecommendContext("u", tt.reqTopN, nil), in)
			require.NoError(t, err)
			assert.Len(t, out, tt.want)
			if tt.want > 0 {
				assert.Equal(t, "0", out[0].ID)
			}
		})
	}
}
