package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rushteam/ncfrec/core"
	"github.com/rushteam/ncfrec/feature"
)

// products.csv 列名
const (
	ColProductID   = "product_id"
	ColProductName = "product_name"
	ColCategory    = "category"
	ColPrice       = "price"
	ColUserID      = "user_id"
	ColRating      = "rating"
	ColPurchasedAt = "purchase_date"
)

// LoadCSV 读取 products.csv（product_id,product_name,category,price），列顺序以表头为准。
func LoadCSV(name string, r io.Reader) (*Memory, error) {
	rows, cols, err := readCSV(r, ColProductID, ColProductName, ColCategory, ColPrice)
	if err != nil {
		return nil, err
	}
	m := NewMemory(name, nil)
	for i, row := range rows {
		price, err := strconv.ParseFloat(strings.TrimSpace(row[cols[ColPrice]]), 64)
		if err != nil {
			return nil, fmt.Errorf("products line %d: price: %w", i+2, err)
		}
		m.add(core.CatalogItem{
			ID:       strings.TrimSpace(row[cols[ColProductID]]),
			Name:     row[cols[ColProductName]],
			Category: row[cols[ColCategory]],
			Price:    price,
		})
	}
	return m, nil
}

// LoadCSVFile 从文件读取商品目录
func LoadCSVFile(path string) (*Memory, error) {
	f, err := os.Open(path) //nolint:gosec // 路径由配置给出
	if err != nil {
		return nil, fmt.Errorf("open products: %w", err)
	}
	defer func() { _ = f.Close() }()
	return LoadCSV(path, f)
}

// Purchase 是一条购买/评分记录。
type Purchase struct {
	feature.Interaction
	PurchasedAt time.Time
}

// ReadInteractions 读取 interactions.csv，至少需要 user_id,product_id,rating 三列；
// purchase_date 列可选。
func ReadInteractions(r io.Reader) ([]Purchase, error) {
	rows, cols, err := readCSV(r, ColUserID, ColProductID, ColRating)
	if err != nil {
		return nil, err
	}
	dateCol, hasDate := cols[ColPurchasedAt]

	out := make([]Purchase, 0, len(rows))
	for i, row := range rows {
		rating, err := strconv.ParseFloat(strings.TrimSpace(row[cols[ColRating]]), 64)
		if err != nil {
			return nil, fmt.Errorf("interactions line %d: rating: %w", i+2, err)
		}
		p := Purchase{Interaction: feature.Interaction{
			UserID: strings.TrimSpace(row[cols[ColUserID]]),
			ItemID: strings.TrimSpace(row[cols[ColProductID]]),
			Rating: rating,
		}}
		if hasDate {
			p.PurchasedAt = parseDate(row[dateCol])
		}
		out = append(out, p)
	}
	return out, nil
}

// ReadInteractionsFile 从文件读取交互记录
func ReadInteractionsFile(path string) ([]Purchase, error) {
	f, err := os.Open(path) //nolint:gosec // 路径由配置给出
	if err != nil {
		return nil, fmt.Errorf("open interactions: %w", err)
	}
	defer func() { _ = f.Close() }()
	return ReadInteractions(f)
}

// Interactions 去掉时间信息，供拟合 codec 使用
func Interactions(ps []Purchase) []feature.Interaction {
	out := make([]feature.Interaction, len(ps))
	for i, p := range ps {
		out[i] = p.Interaction
	}
	return out
}

var dateLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"}

func parseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// readCSV 读取表头与数据行，返回必需列的下标。
func readCSV(r io.Reader, required ...string) ([][]string, map[string]int, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, core.NewDomainError(core.ModuleCatalog, core.ErrorCodeInvalidInput, "csv: empty input")
	}
	if err != nil {
		return nil, nil, fmt.Errorf("csv header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	for _, c := range required {
		if _, ok := cols[c]; !ok {
			return nil, nil, core.NewDomainError(core.ModuleCatalog, core.ErrorCodeInvalidInput,
				fmt.Sprintf("csv: missing column %q", c))
		}
	}
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("csv rows: %w", err)
	}
	return rows, cols, nil
}
