package store

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/rushteam/ncfrec/core"
	"github.com/rushteam/ncfrec/pkg/conv"
)

// Key 前缀：普通 KV、有序集合、哈希表分区存放，避免冲突。
const (
	badgerKVPrefix   = "kv:"
	badgerZSetPrefix = "z:"
	badgerHashPrefix = "h:"
	badgerSep        = "\x00"
)

// BadgerOptions 是 Badger 存储参数。
type BadgerOptions struct {
	// Path 为空时使用内存模式
	Path string `koanf:"path"`
}

// BadgerStore 是基于 BadgerDB 的嵌入式 KeyValueStore，单机持久化模型产物。
type BadgerStore struct {
	db *badger.DB
}

// OpenBadgerStore 打开（或创建）数据库。
func OpenBadgerStore(opts BadgerOptions) (*BadgerStore, error) {
	var bopts badger.Options
	if opts.Path == "" {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		bopts = badger.DefaultOptions(opts.Path)
	}
	db, err := badger.Open(bopts.WithLogger(nil))
	if err != nil {
		return nil, core.WrapDomainError(core.ModuleStore, core.ErrorCodeUnavailable, err, "badger: open %q", opts.Path)
	}
	return &BadgerStore{db: db}, nil
}

// NewBadgerStore 复用已打开的数据库
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

func (b *BadgerStore) Name() string { return "badger" }

func (b *BadgerStore) Get(_ context.Context, key string) ([]byte, error) {
	var out []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(badgerKVPrefix + key))
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, core.ErrStoreNotFound
	}
	return out, err
}

func (b *BadgerStore) Set(_ context.Context, key string, value []byte, ttl ...int) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(newEntry(badgerKVPrefix+key, value, ttl))
	})
}

func (b *BadgerStore) Delete(_ context.Context, key string) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(badgerKVPrefix + key))
	})
}

func (b *BadgerStore) BatchGet(_ context.Context, keys []string) (map[string][]byte, error) {
	result := make(map[string][]byte, len(keys))
	err := b.db.View(func(txn *badger.Txn) error {
		for _, k := range keys {
			item, err := txn.Get([]byte(badgerKVPrefix + k))
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			v, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			result[k] = v
		}
		return nil
	})
	return result, err
}

// BatchSet 在单个事务内写入，提交前读者看不到任何一个 key。
func (b *BadgerStore) BatchSet(_ context.Context, kvs map[string][]byte, ttl ...int) error {
	return b.db.Update(func(txn *badger.Txn) error {
		for k, v := range kvs {
			if err := txn.SetEntry(newEntry(badgerKVPrefix+k, v, ttl)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *BadgerStore) ZAdd(_ context.Context, key string, score float64, member string) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], math.Float64bits(score))
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(badgerZSetPrefix+key+badgerSep+member), buf[:])
	})
}

// ZRange 读出整个集合后按 score 降序排序，同分按 member 升序。
func (b *BadgerStore) ZRange(_ context.Context, key string, start, stop int64) ([]string, error) {
	scores := make(map[string]float64)
	err := b.scan(badgerZSetPrefix+key+badgerSep, func(member string, val []byte) error {
		if len(val) != 8 {
			return core.NewDomainError(core.ModuleStore, core.ErrorCodeInternalError, "badger: malformed zset score")
		}
		scores[member] = math.Float64frombits(binary.BigEndian.Uint64(val))
		return nil
	})
	if err != nil {
		return nil, err
	}
	members := make([]string, 0, len(scores))
	for m := range scores {
		members = append(members, m)
	}
	sort.Slice(members, func(i, j int) bool {
		if scores[members[i]] != scores[members[j]] {
			return scores[members[i]] > scores[members[j]]
		}
		return conv.CompareIDs(members[i], members[j]) < 0
	})
	return rangeOf(members, start, stop), nil
}

func (b *BadgerStore) HGet(_ context.Context, key, field string) ([]byte, error) {
	var out []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(badgerHashPrefix + key + badgerSep + field))
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, core.ErrStoreNotFound
	}
	return out, err
}

func (b *BadgerStore) HSet(_ context.Context, key, field string, value []byte) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(badgerHashPrefix+key+badgerSep+field), value)
	})
}

func (b *BadgerStore) HGetAll(_ context.Context, key string) (map[string][]byte, error) {
	result := make(map[string][]byte)
	err := b.scan(badgerHashPrefix+key+badgerSep, func(field string, val []byte) error {
		result[field] = append([]byte(nil), val...)
		return nil
	})
	return result, err
}

// scan 遍历前缀下的全部 key，fn 收到去掉前缀后的后缀。
func (b *BadgerStore) scan(prefix string, fn func(suffix string, val []byte) error) error {
	p := []byte(prefix)
	return b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			item := it.Item()
			suffix := string(item.Key()[len(p):])
			if err := item.Value(func(val []byte) error {
				return fn(suffix, val)
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *BadgerStore) Close() error {
	return b.db.Close()
}

func newEntry(key string, value []byte, ttl []int) *badger.Entry {
	e := badger.NewEntry([]byte(key), value)
	if len(ttl) > 0 && ttl[0] > 0 {
		e = e.WithTTL(time.Duration(ttl[0]) * time.Second)
	}
	return e
}

var _ core.KeyValueStore = (*BadgerStore)(nil)
