package catalog

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"math/rand"
	"strconv"
	"time"

	"github.com/rushteam/ncfrec/core"
	"github.com/rushteam/ncfrec/feature"
)

// syntheticProducts 是合成数据的商品表，每个类目 10 个商品
var syntheticProducts = []struct {
	category string
	names    []string
}{
	{"Electronics", []string{"Laptop", "Wireless Mouse", "Mechanical Keyboard", "24in Monitor",
		"Bluetooth Headphones", "HD Webcam", "Android Tablet", "USB-C Charger", "USB Hub", "Gaming Mousepad"}},
	{"Clothing", []string{"Sports T-Shirt", "Classic Jeans", "Running Shoes", "Winter Jacket",
		"Casual Dress", "Formal Trousers", "Hoodie", "Formal Shoes", "Sports Shorts", "Dress Shirt"}},
	{"Home", []string{"LED Lamp", "Throw Pillows", "Bed Sheet Set", "Kitchen Organizer",
		"Wall Mirror", "Modern Rug", "Towel Set", "Wall Clock", "Blackout Curtains", "Plant Pots"}},
	{"Sports", []string{"5kg Dumbbells", "Yoga Mat", "Thermal Bottle", "Jump Rope",
		"Fitness Ball", "Resistance Band", "Gym Gloves", "Exercise Bike", "Adjustable Weights", "Yoga Kit"}},
	{"Books", []string{"Python Basics", "The Art of War", "Sapiens", "Artificial Intelligence",
		"One Hundred Years of Solitude", "Data Science Handbook", "1984", "Deep Learning",
		"Clean Code", "The Little Prince"}},
}

// SyntheticOptions 控制合成数据规模。
type SyntheticOptions struct {
	Users        int
	Interactions int
	Seed         int64
	// Now 是购买日期的基准，零值使用当前时间
	Now time.Time
}

// Generate 生成一份可复现的商品目录与购买记录：每个用户偏好 1-3 个类目，
// 70% 的购买落在偏好类目内；偏好类目评分偏高（3-5），其他类目集中在 3 分附近。
func Generate(opts SyntheticOptions) ([]core.CatalogItem, []Purchase, error) {
	if opts.Users <= 0 || opts.Interactions <= 0 {
		return nil, nil, core.NewDomainError(core.ModuleCatalog, core.ErrorCodeInvalidInput,
			fmt.Sprintf("synthetic: users (%d) and interactions (%d) must be > 0", opts.Users, opts.Interactions))
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	//nolint:gosec // 合成数据只需要可复现
	rng := rand.New(rand.NewSource(opts.Seed))

	var (
		products   []core.CatalogItem
		byCategory = make(map[string][]core.CatalogItem, len(syntheticProducts))
	)
	for _, group := range syntheticProducts {
		for _, name := range group.names {
			it := core.CatalogItem{
				ID:       strconv.Itoa(len(products) + 1),
				Name:     name,
				Category: group.category,
				Price:    math.Round((10+rng.Float64()*490)*100) / 100,
			}
			products = append(products, it)
			byCategory[group.category] = append(byCategory[group.category], it)
		}
	}

	favorites := make([]map[string]struct{}, opts.Users)
	favList := make([][]string, opts.Users)
	for u := range favorites {
		k := 1 + rng.Intn(3)
		favorites[u] = make(map[string]struct{}, k)
		for _, idx := range rng.Perm(len(syntheticProducts))[:k] {
			c := syntheticProducts[idx].category
			favorites[u][c] = struct{}{}
			favList[u] = append(favList[u], c)
		}
	}

	purchases := make([]Purchase, 0, opts.Interactions)
	for range opts.Interactions {
		u := rng.Intn(opts.Users)
		pool := products
		if rng.Float64() < 0.7 {
			pool = byCategory[favList[u][rng.Intn(len(favList[u]))]]
		}
		it := pool[rng.Intn(len(pool))]

		var rating float64
		if _, fav := favorites[u][it.Category]; fav {
			rating = weightedRating(rng, []float64{3, 4, 5}, []float64{0.1, 0.3, 0.6})
		} else {
			rating = weightedRating(rng, []float64{1, 2, 3, 4, 5}, []float64{0.1, 0.2, 0.4, 0.2, 0.1})
		}
		purchases = append(purchases, Purchase{
			Interaction: feature.Interaction{UserID: strconv.Itoa(u + 1), ItemID: it.ID, Rating: rating},
			PurchasedAt: now.AddDate(0, 0, -rng.Intn(181)).Truncate(24 * time.Hour),
		})
	}
	return products, purchases, nil
}

func weightedRating(rng *rand.Rand, values, weights []float64) float64 {
	x := rng.Float64()
	for i, w := range weights {
		if x < w {
			return values[i]
		}
		x -= w
	}
	return values[len(values)-1]
}

// WriteProductsCSV 按 LoadCSV 的列布局写出商品目录。
func WriteProductsCSV(w io.Writer, items []core.CatalogItem) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{ColProductID, ColProductName, ColCategory, ColPrice}); err != nil {
		return err
	}
	for _, it := range items {
		if err := cw.Write([]string{it.ID, it.Name, it.Category, strconv.FormatFloat(it.Price, 'f', 2, 64)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteInteractionsCSV 按 ReadInteractions 的列布局写出购买记录。
func WriteInteractionsCSV(w io.Writer, ps []Purchase) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{ColUserID, ColProductID, ColRating, ColPurchasedAt}); err != nil {
		return err
	}
	for _, p := range ps {
		date := ""
		if !p.PurchasedAt.IsZero() {
			date = p.PurchasedAt.Format("2006-01-02")
		}
		row := []string{p.UserID, p.ItemID, strconv.FormatFloat(p.Rating, 'f', -1, 64), date}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
