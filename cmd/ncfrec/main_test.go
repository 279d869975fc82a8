package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/ncfrec/recommend"
)

func writeFixtures(t *testing.T, backend string) string {
	t.Helper()
	dir := t.TempDir()

	var products strings.Builder
	products.WriteString("product_id,product_name,category,price\n")
	for i := 1; i <= 8; i++ {
		fmt.Fprintf(&products, "%d,Product %d,%s,%d.5\n", i, i, []string{"Books", "Toys"}[i%2], i*10)
	}
	var interactions strings.Builder
	interactions.WriteString("user_id,product_id,rating,purchase_date\n")
	for u := 1; u <= 5; u++ {
		for i := 1; i <= 8; i++ {
			if (u+i)%4 == 0 {
				continue
			}
			fmt.Fprintf(&interactions, "%d,%d,%d,2024-01-%02d\n", u, i, (u*i)%5+1, i)
		}
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "products.csv"), []byte(products.String()), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "interactions.csv"), []byte(interactions.String()), 0o600))

	cfg := fmt.Sprintf(`
log:
  level: error
model:
  embedding_dim: 4
  layers: [8, 1]
artifact:
  backend: %s
  path: %s
badger:
  path: %s
data:
  backend: %s
  products: %s
  interactions: %s
train:
  epochs: 2
  batch_size: 8
`, backend, filepath.Join(dir, "model"), filepath.Join(dir, "badger"),
		map[string]string{"file": "csv", "badger": "store"}[backend],
		filepath.Join(dir, "products.csv"), filepath.Join(dir, "interactions.csv"))
	path := filepath.Join(dir, "ncfrec.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))
	return path
}

func TestTrainThenRecommend(t *testing.T) {
	for _, backend := range []string{"file", "badger"} {
		t.Run(backend, func(t *testing.T) {
			path := writeFixtures(t, backend)
			ctx := context.Background()

			var out bytes.Buffer
			require.NoError(t, run(ctx, "train", []string{"-config", path}, &out))
			assert.Contains(t, out.String(), `"n_users": 5`)

			out.Reset()
			require.NoError(t, run(ctx, "recommend", []string{"-config", path, "-user", "1", "-top-n", "3"}, &out))
			var resp recommend.Response
			require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
			assert.LessOrEqual(t, len(resp.Items), 3)
			for _, it := range resp.Items {
				// 用户 1 只有商品 3、7 未购买
				assert.Contains(t, []string{"3", "7"}, it.ItemID)
				assert.NotEmpty(t, it.Name)
			}

			out.Reset()
			require.NoError(t, run(ctx, "recommend", []string{"-config", path, "-user", "unknown"}, &out))
			require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
			assert.Empty(t, resp.Items)
			assert.True(t, resp.ColdStart)
		})
	}
}

func TestGenerateThenTrain(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	var out bytes.Buffer
	require.NoError(t, run(ctx, "generate", []string{"-out", dir, "-users", "10", "-interactions", "120", "-seed", "3"}, &out))
	assert.Contains(t, out.String(), `"n_products": 50`)

	cfg := fmt.Sprintf(`
log:
  level: error
model:
  embedding_dim: 4
  layers: [8, 1]
artifact:
  path: %s
data:
  products: %s
  interactions: %s
train:
  epochs: 2
  batch_size: 16
`, filepath.Join(dir, "model"), filepath.Join(dir, "products.csv"), filepath.Join(dir, "interactions.csv"))
	path := filepath.Join(dir, "ncfrec.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))

	out.Reset()
	require.NoError(t, run(ctx, "train", []string{"-config", path}, &out))
	out.Reset()
	require.NoError(t, run(ctx, "recommend", []string{"-config", path, "-user", "1", "-top-n", "3"}, &out))
	var resp recommend.Response
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.LessOrEqual(t, len(resp.Items), 3)

	assert.Error(t, run(ctx, "generate", []string{"-out", dir, "-users", "0"}, &out))
}

func TestRun_Errors(t *testing.T) {
	ctx := context.Background()
	var out bytes.Buffer

	assert.Error(t, run(ctx, "bogus", nil, &out))
	assert.Error(t, run(ctx, "recommend", []string{"-config", writeFixtures(t, "file")}, &out))

	// 没有训练产物
	err := run(ctx, "recommend", []string{"-config", writeFixtures(t, "file"), "-user", "1"}, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ncfrec train")

	require.NoError(t, run(ctx, "help", nil, &out))
	assert.Contains(t, out.String(), "commands:")
}
