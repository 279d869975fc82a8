package catalog

import (
	"context"
	"time"

	"github.com/rushteam/ncfrec/core"
)

// InteractionLog 是基于交互记录的内存购买历史。
type InteractionLog struct {
	byUser map[string][]string
}

func NewInteractionLog(ps []Purchase) *InteractionLog {
	l := &InteractionLog{byUser: make(map[string][]string)}
	for _, p := range ps {
		l.byUser[p.UserID] = append(l.byUser[p.UserID], p.ItemID)
	}
	return l
}

func (l *InteractionLog) PurchasedItems(_ context.Context, userID string) ([]string, error) {
	return append([]string(nil), l.byUser[userID]...), nil
}

// DefaultPurchasePrefix 是 StorePurchaseHistory 的默认 key 前缀
const DefaultPurchasePrefix = "ncfrec:purchases:"

// StorePurchaseHistory 把每个用户的购买记录存为有序集合（score 为购买时间戳）。
type StorePurchaseHistory struct {
	Store  core.KeyValueStore
	Prefix string
}

func NewStorePurchaseHistory(s core.KeyValueStore, prefix string) *StorePurchaseHistory {
	if prefix == "" {
		prefix = DefaultPurchasePrefix
	}
	return &StorePurchaseHistory{Store: s, Prefix: prefix}
}

// RecordPurchase 记录一次购买，重复购买只刷新时间
func (h *StorePurchaseHistory) RecordPurchase(ctx context.Context, userID, itemID string, at time.Time) error {
	return h.Store.ZAdd(ctx, h.Prefix+userID, float64(at.Unix()), itemID)
}

// Import 批量写入交互记录
func (h *StorePurchaseHistory) Import(ctx context.Context, ps []Purchase) error {
	for _, p := range ps {
		if err := h.RecordPurchase(ctx, p.UserID, p.ItemID, p.PurchasedAt); err != nil {
			return err
		}
	}
	return nil
}

// PurchasedItems 按购买时间倒序返回
func (h *StorePurchaseHistory) PurchasedItems(ctx context.Context, userID string) ([]string, error) {
	return h.Store.ZRange(ctx, h.Prefix+userID, 0, -1)
}

var (
	_ core.PurchaseHistory = (*InteractionLog)(nil)
	_ core.PurchaseHistory = (*StorePurchaseHistory)(nil)
)
