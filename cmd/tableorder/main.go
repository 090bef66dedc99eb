package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/tableside/internal/apiclient"
	"github.com/angelmondragon/tableside/internal/catalog"
	"github.com/angelmondragon/tableside/internal/orders"
	"github.com/angelmondragon/tableside/internal/persistence"
	"github.com/angelmondragon/tableside/internal/session"
	"github.com/angelmondragon/tableside/pkg/auth"
	"github.com/angelmondragon/tableside/pkg/config"
	"github.com/angelmondragon/tableside/pkg/logger"
	"github.com/angelmondragon/tableside/pkg/redis"
)

func main() {
	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logg := logger.New(logger.Options{ServiceName: "tableorder", Output: os.Stderr})

	if err := godotenv.Load(); err != nil {
		logg.Debug(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "tableorder",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Output:      os.Stderr,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, cfg, opts, logg, os.Stdout); err != nil {
		logg.Error(ctx, "tableorder failed", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, opts options, logg *logger.Logger, out io.Writer) error {
	client, err := apiclient.New(cfg.API,
		apiclient.WithLogger(logg),
		apiclient.WithBearerToken(cfg.API.AuthToken),
	)
	if err != nil {
		return err
	}

	menu := catalog.NewCache()
	if err := menu.Load(ctx, client); err != nil {
		return fmt.Errorf("loading menu: %w", err)
	}

	backend, err := persistence.Open(ctx, cfg, logg)
	if err != nil {
		return fmt.Errorf("opening persistence: %w", err)
	}
	defer func() {
		if err := backend.Close(); err != nil {
			logg.Error(context.Background(), "error closing persistence", err)
		}
	}()

	params := session.Params{
		Identity: opts.identity,
		Table:    opts.table,
		Catalog:  menu,
		Creator:  client,
		Tokens:   client,
		Notifier: orders.NotifierFunc(func(_ context.Context, notice orders.Notice) {
			fmt.Fprintf(out, "[%s] %s\n", notice.Level, notice.Message)
		}),
		Login: orders.LoginPrompterFunc(func(context.Context) {
			fmt.Fprintln(out, "Please sign in: pass -guest-id or -user-id.")
		}),
		Realtime: cfg.Realtime,
		Orders:   cfg.Orders,
		Logger:   logg,
	}
	if backend != nil {
		params.Persister = backend.Persister
	}
	if cfg.Redis.Enabled() {
		redisClient, err := redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			return err
		}
		defer redisClient.Close()
		cache, err := auth.NewRedisCache(redisClient)
		if err != nil {
			return err
		}
		params.TokenCache = cache
	}

	s, err := session.Start(ctx, params)
	if err != nil {
		return err
	}
	defer func() {
		end := s.Close
		if opts.logout {
			end = s.Logout
		}
		if err := end(context.WithoutCancel(ctx)); err != nil {
			logg.Error(context.Background(), "error closing session", err)
		}
	}()

	fillOrder(ctx, s.Store, opts)
	printSummary(out, s.Store.Summary())
	if opts.dryRun {
		return nil
	}

	waitForRealtime(ctx, s, time.Duration(opts.wait)*time.Second)
	order, err := s.Orders.PlaceOrder(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Order #%d placed (%s)\n", order.ID, order.Status)
	return nil
}

func fillOrder(ctx context.Context, store *orders.Store, opts options) {
	store.SetTakeAway(ctx, opts.takeAway)
	for _, item := range opts.dishes {
		store.AddDish(ctx, item.ID, item.Quantity)
	}
	for _, item := range opts.sets {
		store.AddSet(ctx, item.ID, item.Quantity)
	}
	if opts.topping != "" {
		store.UpdateTopping(ctx, opts.topping)
	}
	if opts.chili > 0 {
		store.SetChiliNumber(ctx, opts.chili)
	}
}

func printSummary(out io.Writer, summary orders.Summary) {
	for _, dish := range summary.Dishes {
		fmt.Fprintf(out, "%3d x %-30s %10s\n", dish.Quantity, dish.Name, dish.Price.StringFixed(2))
	}
	for _, set := range summary.Sets {
		fmt.Fprintf(out, "%3d x %-30s %10s\n", set.Quantity, set.Name, set.Price.StringFixed(2))
		for _, dish := range set.Dishes {
			fmt.Fprintf(out, "      - %d x %s\n", dish.Quantity, dish.Name)
		}
	}
	fmt.Fprintf(out, "%d items, total %s\n", summary.TotalItems, summary.TotalPrice.StringFixed(2))
}

// waitForRealtime gives the socket a moment so the new order push reaches
// the kitchen. The order is placed either way.
func waitForRealtime(ctx context.Context, s *session.Session, limit time.Duration) {
	if s.Realtime == nil || limit <= 0 {
		return
	}
	deadline := time.NewTimer(limit)
	defer deadline.Stop()
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for !s.Realtime.IsConnected() {
		select {
		case <-ctx.Done():
			return
		case <-deadline.C:
			return
		case <-tick.C:
		}
	}
}
