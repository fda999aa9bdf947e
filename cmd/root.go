package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/chrisdamba/routesim/internal/factories"
	"github.com/chrisdamba/routesim/internal/loader"
	"github.com/chrisdamba/routesim/internal/models"
	"github.com/chrisdamba/routesim/internal/repositories"
	"github.com/chrisdamba/routesim/internal/repositories/memory"
	"github.com/chrisdamba/routesim/internal/repositories/postgres"
	"github.com/chrisdamba/routesim/internal/simulator"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "routesim",
	Short: "Simulates parcel routing through a scheduled logistics network",
	Long: `routesim plans every order over a time-dependent logistics network, then
replays the plans as a discrete-event simulation. In dynamic mode arrivals are
delayed at random and orders are replanned at hubs.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := models.LoadConfig(viper.GetViper(), cfgFile)
		if err != nil {
			return fmt.Errorf("error loading config: %w", err)
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return run(ctx, cfg)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./routesim.yaml)")

	rootCmd.Flags().StringP("cost-factor", "p", models.CostFactorDuration, "Cost factor: financial or duration")
	rootCmd.Flags().BoolP("dynamic", "d", false, "Delay arrivals and replan at hubs")
	rootCmd.Flags().BoolP("keep-graph", "k", false, "Merge into the existing graph instead of clearing it")
	rootCmd.Flags().Int64("seed", 42, "Random seed for delays and synthetic orders")
	rootCmd.Flags().String("nodes-file", "", "CSV sheet of nodes")
	rootCmd.Flags().String("links-file", "", "CSV sheet of links")
	rootCmd.Flags().String("orders-file", "", "CSV sheet of orders")
	rootCmd.Flags().String("network-file", "", "YAML file with nodes, links and orders")
	rootCmd.Flags().Int("synthetic-orders", 0, "Generate this many orders instead of loading them")
	rootCmd.Flags().String("start-date", "", "Start of the synthetic order window")
	rootCmd.Flags().String("end-date", "", "End of the synthetic order window")
	rootCmd.Flags().String("graph-store", "memory", "Graph store: memory or postgres")
	rootCmd.Flags().String("database-url", "", "Postgres connection string")
	rootCmd.Flags().Int("max-hops", models.DefaultMaxHops, "Maximum links in a candidate path")
	rootCmd.Flags().Duration("expiry-grace", models.DefaultExpiryGrace, "How long reservations outlive a departure")
	rootCmd.Flags().String("output-format", "console", "console, json, csv, parquet, kafka or postgres")
	rootCmd.Flags().String("output-path", "", "Base directory for file outputs")
	rootCmd.Flags().String("output-folder", "results", "Folder under the output path")
	rootCmd.Flags().String("kafka-broker-list", "localhost:9092", "Kafka broker list")
	rootCmd.Flags().Bool("show-progress", false, "Show a progress bar")
	rootCmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address")

	for _, name := range []string{
		"seed", "nodes-file", "links-file", "orders-file", "network-file", "synthetic-orders",
		"start-date", "end-date", "graph-store", "database-url", "max-hops", "expiry-grace",
		"output-format", "output-path", "output-folder", "kafka-broker-list", "show-progress",
		"metrics-addr", "cost-factor",
	} {
		cobra.CheckErr(viper.BindPFlag(flagKey(name), rootCmd.Flags().Lookup(name)))
	}

	cobra.OnInitialize(initConfig)
}

func flagKey(name string) string { return strings.ReplaceAll(name, "-", "_") }

func initConfig() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "Error loading .env:", err)
	}
	// -d and -k are switches over mode and clear_graph
	if f := rootCmd.Flags().Lookup("dynamic"); f != nil && f.Changed {
		viper.Set("mode", models.ModeDynamic)
	}
	if f := rootCmd.Flags().Lookup("keep-graph"); f != nil && f.Changed {
		viper.Set("clear_graph", false)
	}
}

type scenario struct {
	nodes  []*models.Node
	links  []*models.Link
	orders []*models.Order
}

func loadScenario(cfg *models.Config) (*scenario, error) {
	sc := &scenario{}
	if cfg.NetworkFile != "" {
		doc, err := loader.LoadNetworkYAML(cfg.NetworkFile)
		if err != nil {
			return nil, err
		}
		sc.nodes, sc.links, sc.orders = doc.Nodes, doc.Links, doc.Orders
	}
	if cfg.NodesFile != "" {
		nodes, err := loader.LoadNodesCSV(cfg.NodesFile)
		if err != nil {
			return nil, err
		}
		sc.nodes = append(sc.nodes, nodes...)
	}
	if cfg.LinksFile != "" {
		links, err := loader.LoadLinksCSV(cfg.LinksFile)
		if err != nil {
			return nil, err
		}
		sc.links = append(sc.links, links...)
	}
	if cfg.OrdersFile != "" {
		orders, err := loader.LoadOrdersCSV(cfg.OrdersFile)
		if err != nil {
			return nil, err
		}
		sc.orders = append(sc.orders, orders...)
	}
	if len(sc.nodes) == 0 {
		return nil, fmt.Errorf("no network given: set network_file or nodes_file and links_file")
	}
	return sc, nil
}

func run(ctx context.Context, cfg *models.Config) error {
	sc, err := loadScenario(cfg)
	if err != nil {
		return err
	}

	var (
		store repositories.GraphStore
		pool  *pgxpool.Pool
		repo  repositories.ResultRepository
	)
	switch cfg.GraphStore {
	case "postgres":
		pool, err = postgres.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		if err := postgres.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return err
		}
		store = postgres.NewGraphStore(pool)
		repo = postgres.NewResultRepository(pool)
	default:
		store = memory.NewGraphStore()
	}
	if err := store.Build(ctx, sc.nodes, sc.links, cfg.ClearGraph); err != nil {
		store.Close()
		return fmt.Errorf("build graph: %w", err)
	}
	log.Printf("Graph built with %d nodes and %d links (%s store)", len(sc.nodes), len(sc.links), cfg.GraphStore)

	if cfg.SyntheticOrders > 0 {
		network := models.NewNetwork()
		for _, node := range sc.nodes {
			network.AddNode(node)
		}
		start, end := cfg.StartDate, cfg.EndDate
		if start.IsZero() {
			start = time.Now().UTC().Truncate(time.Hour)
		}
		if end.IsZero() {
			end = start.Add(24 * time.Hour)
		}
		generated, err := factories.NewOrderFactory(cfg.Seed).CreateOrders(network, cfg.SyntheticOrders, start, end)
		if err != nil {
			store.Close()
			return err
		}
		sc.orders = append(sc.orders, generated...)
	}

	sim, err := simulator.NewSimulator(cfg.Options(), store, cfg.Seed)
	if err != nil {
		store.Close()
		return err
	}
	defer func() {
		if err := sim.Close(); err != nil {
			log.Printf("Error closing simulator: %v", err)
		}
	}()

	sim.Output, err = simulator.DetermineOutputDestination(cfg, repo)
	if err != nil {
		return err
	}
	if cfg.ShowProgress {
		sim.EnableProgress(len(sc.orders))
	}
	if cfg.MetricsAddr != "" {
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: metricsMux(sim), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("Metrics server stopped: %v", err)
			}
		}()
		defer srv.Close()
		log.Printf("Serving metrics on %s/metrics", cfg.MetricsAddr)
	}

	log.Printf("Simulating %d orders", len(sc.orders))
	return sim.RunOrders(ctx, sc.orders)
}

func metricsMux(sim *simulator.Simulator) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", sim.Metrics.Handler())
	return mux
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
