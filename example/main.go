// Command example walks through polymorphic vehicle sources against a real
// database: orgs and local dealers own vehicles through source_type /
// source_id, and network dealers are looked up over HTTP.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	_ "modernc.org/sqlite"

	"github.com/mickamy/polyorm/example/catalog"
	"github.com/mickamy/polyorm/example/model"
	"github.com/mickamy/polyorm/example/repo"
	"github.com/mickamy/polyorm/netref"
	"github.com/mickamy/polyorm/orm"
	"github.com/mickamy/polyorm/poly"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "example",
		Short: "Polymorphic association walkthrough",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
		SilenceUsage: true,
	}

	flags := cmd.Flags()
	flags.String("driver", "sqlite", "database driver (sqlite, mysql, pgx or postgres)")
	flags.String("dsn", ":memory:", "data source name")
	flags.String("dealers-url", "", "dealer service base URL; dealers are stubbed when empty")
	flags.String("codec", "json", "dealer service codec (json or msgpack)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("metrics-addr", "", "serve Prometheus metrics on this address and keep running")

	cobra.OnInitialize(func() {
		if err := bindConfig(v, flags); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	})
	return cmd
}

func run(ctx context.Context, cfg *Config) error {
	logger := newLogger(cfg.LogLevel)

	driver, dialect, err := cfg.Dialect()
	if err != nil {
		return err
	}
	conn, err := orm.Open(driver, cfg.DSN, dialect)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()
	if driver == "sqlite" {
		// each connection to :memory: is a separate database
		conn.Raw().SetMaxOpenConns(1)
	}
	db := conn.Debug(orm.SlogLogger{L: logger})

	metrics, err := poly.NewMetrics(prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}
	dealers, err := dealerFinder(cfg, logger)
	if err != nil {
		return err
	}
	cat, err := catalog.New(db, dealers, poly.WithLogger(logger), poly.WithMetrics(metrics))
	if err != nil {
		return err
	}

	if err := createTables(ctx, db, dialect); err != nil {
		return err
	}
	if err := walkthrough(ctx, db, cat); err != nil {
		return err
	}

	if cfg.MetricsAddr == "" {
		return nil
	}
	logger.Info("serving metrics", slog.String("addr", cfg.MetricsAddr))
	srv := &http.Server{Addr: cfg.MetricsAddr, Handler: promhttp.Handler(), ReadHeaderTimeout: 5 * time.Second}
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err //nolint:wrapcheck // pass through
	}
	return nil
}

func newLogger(level string) *slog.Logger {
	l := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}

func dealerFinder(cfg *Config, logger *slog.Logger) (poly.Finder[*model.Dealer], error) {
	if cfg.DealersURL == "" {
		return poly.FinderFunc[*model.Dealer](func(_ context.Context, id int64) (*model.Dealer, error) {
			return &model.Dealer{ID: id, Name: fmt.Sprintf("dealer-%d", id)}, nil
		}), nil
	}
	codec := netref.JSON
	if cfg.Codec == "msgpack" {
		codec = netref.MsgPack
	}
	f, err := netref.New[model.Dealer](cfg.DealersURL, netref.WithCodec(codec), netref.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	return f, nil
}

func walkthrough(ctx context.Context, db *orm.DB, cat *catalog.Catalog) error {
	vehicles := repo.NewVehicleRepository(db, cat)

	fmt.Println("--- OWNERS ---")
	acme := &model.Org{Name: "acme"}
	if err := orm.From[model.Org](db).Create(ctx, acme); err != nil {
		return fmt.Errorf("create org: %w", err)
	}
	northside := &model.LocalDealer{Name: "northside"}
	if err := orm.From[model.LocalDealer](db).Create(ctx, northside); err != nil {
		return fmt.Errorf("create local dealer: %w", err)
	}
	dealer, err := cat.SourceDealer.Resolve(ctx, &model.Vehicle{
		SourceType: sql.NullString{String: "dealer", Valid: true},
		SourceID:   sql.NullInt64{Int64: 3, Valid: true},
	})
	if err != nil {
		return fmt.Errorf("find dealer: %w", err)
	}
	fmt.Println(poly.Describe(acme), poly.Describe(northside), poly.Describe(dealer))

	fmt.Println("\n--- VEHICLES ---")
	for _, fields := range []map[string]any{
		{"name": "truck", "source": acme},
		{"name": "van", "source": northside},
		{"name": "pickup", "source": acme},
		{"name": "bike", "source": dealer},
	} {
		v, err := vehicles.Create(ctx, fields)
		if err != nil {
			return fmt.Errorf("create vehicle: %w", err)
		}
		fmt.Printf("%s source_type=%s source_id=%d\n", poly.Describe(v), v.SourceType.String, v.SourceID.Int64)
	}
	fmt.Printf("acme %s: %v\n", cat.OrgVehicles.ProxyName(), cat.OrgVehicles.ProxyValues(acme))

	fmt.Println("\n--- PRELOAD ---")
	orgs, err := vehicles.OrgsWithVehicles(ctx)
	if err != nil {
		return fmt.Errorf("load orgs: %w", err)
	}
	for i := range orgs {
		fmt.Printf("%s %s: %v\n", poly.Describe(&orgs[i]), cat.OrgVehicles.ProxyName(), cat.OrgVehicles.ProxyValues(&orgs[i]))
	}

	fmt.Println("\n--- RESOLVE ---")
	all, err := vehicles.FindAll(ctx)
	if err != nil {
		return fmt.Errorf("find vehicles: %w", err)
	}
	for i := range all {
		src, err := vehicles.Source(ctx, &all[i])
		if err != nil {
			return fmt.Errorf("resolve source: %w", err)
		}
		fmt.Printf("%s -> %s\n", poly.Describe(&all[i]), poly.Describe(src))
	}

	fmt.Println("\n--- MOVE ---")
	van := &all[1]
	if err := vehicles.Move(ctx, van, acme); err != nil {
		return fmt.Errorf("move vehicle: %w", err)
	}
	fleet, err := cat.OrgVehicles.Load(ctx, db, acme)
	if err != nil {
		return fmt.Errorf("reload fleet: %w", err)
	}
	fmt.Printf("acme now owns %d vehicles\n", len(fleet))
	return nil
}
