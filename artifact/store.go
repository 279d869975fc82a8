package artifact

import (
	"context"

	"github.com/rushteam/ncfrec/core"
)

// DefaultKeyPrefix 是 StoreRepository 的默认 key 前缀
const DefaultKeyPrefix = "ncfrec:artifact:"

// StoreRepository 把产物的三部分写入 core.Store 的三个 key。
// 一次 Save 只调用一次 BatchSet，原子性由后端保证（Redis MULTI/EXEC、Badger 事务）。
type StoreRepository struct {
	Store  core.Store
	Prefix string
}

func NewStoreRepository(s core.Store, prefix string) *StoreRepository {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &StoreRepository{Store: s, Prefix: prefix}
}

func (r *StoreRepository) key(part string) string {
	return r.Prefix + part
}

func (r *StoreRepository) Save(ctx context.Context, b *Bundle) error {
	data, err := encode(b)
	if err != nil {
		return err
	}
	kvs := make(map[string][]byte, len(data))
	for p, v := range data {
		kvs[r.key(p)] = v
	}
	return r.Store.BatchSet(ctx, kvs)
}

func (r *StoreRepository) Load(ctx context.Context) (*Bundle, error) {
	keys := make([]string, 0, len(parts))
	for _, p := range parts {
		keys = append(keys, r.key(p))
	}
	got, err := r.Store.BatchGet(ctx, keys)
	if err != nil {
		return nil, core.WrapDomainError(core.ModuleArtifact, core.ErrorCodeCorruptArtifact, err,
			"artifact: read from %s", r.Store.Name())
	}
	data := make(map[string][]byte, len(parts))
	for _, p := range parts {
		if v, ok := got[r.key(p)]; ok {
			data[p] = v
		}
	}
	return decode(data)
}
