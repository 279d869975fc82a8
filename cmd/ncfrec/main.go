// Command ncfrec 训练 NCF 模型、离线生成推荐或启动 HTTP 服务。
//
//	ncfrec generate  -out data -users 500 -interactions 5000
//	ncfrec train     -config ncfrec.yaml
//	ncfrec recommend -config ncfrec.yaml -user 42 -top-n 5
//	ncfrec serve     -config ncfrec.yaml
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/rushteam/ncfrec/catalog"
	"github.com/rushteam/ncfrec/config"
	"github.com/rushteam/ncfrec/recommend"
	"github.com/rushteam/ncfrec/server"
)

const usage = `usage: ncfrec <command> [flags]

commands:
  generate    write synthetic products.csv and interactions.csv
  train       fit the codec and model on interactions and save the artifact
  recommend   print top-N recommendations for one user as JSON
  serve       start the HTTP server
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1], os.Args[2:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, "ncfrec:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd string, args []string, out io.Writer) error {
	switch cmd {
	case "generate":
		return runGenerate(args, out)
	case "train":
		return runTrain(ctx, args, out)
	case "recommend":
		return runRecommend(ctx, args, out)
	case "serve":
		return runServe(ctx, args)
	case "help", "-h", "--help":
		fmt.Fprint(out, usage)
		return nil
	default:
		return fmt.Errorf("unknown command %q\n\n%s", cmd, usage)
	}
}

func runGenerate(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("generate", flag.ContinueOnError)
	dir := fs.String("out", "data", "output directory")
	users := fs.Int("users", 500, "number of users")
	interactions := fs.Int("interactions", 5000, "number of interactions")
	seed := fs.Int64("seed", 42, "random seed")
	if err := fs.Parse(args); err != nil {
		return err
	}

	products, purchases, err := catalog.Generate(catalog.SyntheticOptions{
		Users:        *users,
		Interactions: *interactions,
		Seed:         *seed,
	})
	if err != nil {
		return err
	}
	if err := os.MkdirAll(*dir, 0o750); err != nil {
		return fmt.Errorf("create %s: %w", *dir, err)
	}
	productsPath := filepath.Join(*dir, "products.csv")
	if err := writeCSVFile(productsPath, func(w io.Writer) error { return catalog.WriteProductsCSV(w, products) }); err != nil {
		return err
	}
	interactionsPath := filepath.Join(*dir, "interactions.csv")
	if err := writeCSVFile(interactionsPath, func(w io.Writer) error { return catalog.WriteInteractionsCSV(w, purchases) }); err != nil {
		return err
	}
	return writeJSON(out, map[string]any{
		"products":          productsPath,
		"interactions":      interactionsPath,
		"n_products":        len(products),
		"n_interactions":    len(purchases),
		"n_requested_users": *users,
	})
}

func writeCSVFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path) //nolint:gosec // 路径由命令行给出
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func runTrain(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("train", flag.ContinueOnError)
	configPath := fs.String("config", "", "config file")
	interactionsPath := fs.String("interactions", "", "interactions CSV (overrides data.interactions)")
	epochs := fs.Int("epochs", 0, "training epochs (overrides train.epochs)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := newApp(*configPath)
	if err != nil {
		return err
	}
	defer a.Close()
	if *interactionsPath != "" {
		a.cfg.Data.Interactions = *interactionsPath
	}
	if *epochs > 0 {
		a.cfg.Train.Epochs = *epochs
	}

	purchases, err := catalog.ReadInteractionsFile(a.cfg.Data.Interactions)
	if err != nil {
		return err
	}
	bundle, history, err := recommend.Train(ctx, catalog.Interactions(purchases), recommend.TrainOptions{
		EmbeddingDim: a.cfg.Model.EmbeddingDim,
		Layers:       a.cfg.Model.Layers,
		Seed:         a.cfg.Model.Seed,
		Trainer:      a.cfg.Train,
		Logger:       a.logger,
	})
	if err != nil {
		return err
	}

	repo, err := a.repository(ctx)
	if err != nil {
		return err
	}
	if err := repo.Save(ctx, bundle); err != nil {
		return err
	}
	if a.cfg.Data.Backend == config.DataStore {
		if err := a.importData(ctx, purchases); err != nil {
			return err
		}
	}

	a.logger.Info().
		Str("backend", a.cfg.Artifact.Backend).
		Int("best_epoch", history.BestEpoch).
		Float64("val_mae", history.ValMAE).
		Float64("val_rmse", history.ValRMSE).
		Msg("model saved")
	return writeJSON(out, map[string]any{
		"metadata": bundle.Metadata,
		"history":  history,
	})
}

// importData 把 CSV 目录与购买记录导入 KV 存储，供 data.backend=store 使用。
func (a *app) importData(ctx context.Context, purchases []catalog.Purchase) error {
	cat, history, err := a.collaborators(ctx)
	if err != nil {
		return err
	}
	products, err := catalog.LoadCSVFile(a.cfg.Data.Products)
	if err != nil {
		return err
	}
	rows, err := products.ListItems(ctx)
	if err != nil {
		return err
	}
	if err := cat.(*catalog.StoreCatalog).Put(ctx, rows...); err != nil {
		return err
	}
	if err := history.(*catalog.StorePurchaseHistory).Import(ctx, purchases); err != nil {
		return err
	}
	a.logger.Info().Int("products", len(rows)).Int("purchases", len(purchases)).Msg("imported catalog data")
	return nil
}

func runRecommend(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("recommend", flag.ContinueOnError)
	configPath := fs.String("config", "", "config file")
	userID := fs.String("user", "", "user id")
	topN := fs.Int("top-n", 0, "number of recommendations (default engine.default_top_n)")
	filterExpr := fs.String("filter", "", `CEL filter, e.g. item.category == "Books"`)
	exclude := fs.String("exclude", "", "comma separated item ids to exclude")
	keepPurchased := fs.Bool("include-purchased", false, "do not exclude items the user already bought")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *userID == "" {
		return errors.New("recommend: -user is required")
	}

	a, err := newApp(*configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	e, err := a.engine(ctx, nil)
	if err != nil {
		return err
	}
	req := recommend.Request{UserID: *userID, TopN: *topN, Filter: *filterExpr}
	if req.TopN == 0 {
		req.TopN = a.cfg.Engine.DefaultTopN
	}
	if *exclude != "" {
		req.Exclude = strings.Split(*exclude, ",")
	}
	if !*keepPurchased {
		_, history, err := a.collaborators(ctx)
		if err != nil {
			return err
		}
		if history != nil {
			purchased, err := history.PurchasedItems(ctx, *userID)
			if err != nil {
				return err
			}
			req.Exclude = append(req.Exclude, purchased...)
		}
	}

	resp, err := e.Recommend(ctx, req)
	if err != nil {
		return err
	}
	return writeJSON(out, resp)
}

func runServe(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	configPath := fs.String("config", "", "config file")
	addr := fs.String("addr", "", "listen address (overrides server.addr)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := newApp(*configPath)
	if err != nil {
		return err
	}
	defer a.Close()
	if *addr != "" {
		a.cfg.Server.Addr = *addr
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	e, err := a.engine(ctx, reg)
	if err != nil {
		return err
	}
	srv := server.New(e, server.Options{
		Addr:           a.cfg.Server.Addr,
		ReadTimeout:    a.cfg.Server.ReadTimeout,
		WriteTimeout:   a.cfg.Server.WriteTimeout,
		RequestTimeout: a.cfg.Server.RequestTimeout,
		DefaultTopN:    a.cfg.Engine.DefaultTopN,
		Gatherer:       reg,
		Logger:         a.logger,
	})
	return srv.Run(ctx, a.cfg.Server.ShutdownTimeout)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
