// Command storefront is the customer, restaurant and courier client. The cart
// lives locally in bbolt, or in Redis when STOREFRONT_REDIS_URL is set.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/joao-fontenele/foodflow/internal/cart"
	"github.com/joao-fontenele/foodflow/internal/client"
	"github.com/joao-fontenele/foodflow/internal/config"
	"github.com/joao-fontenele/foodflow/internal/courier"
	"github.com/joao-fontenele/foodflow/internal/lifecycle"
	"github.com/joao-fontenele/foodflow/internal/restaurant"
)

const usage = `usage: storefront <command> [args]

  menu
  cart add <restaurant-id> <item-id> | remove <item-id> | inc <item-id> | dec <item-id> | clear | show
  checkout -name NAME -phone PHONE -address ADDRESS [-notes TEXT] [-payment card|cash]
  track <order-id>
  orders cancel <order-id>
  restaurant list [-status S] [-search Q] [-sort created_at|total|customer|id] [-asc]
  restaurant stats
  restaurant advance <order-id> <status>
  courier available | accept <delivery-id> | active | next | abort | reconcile <delivery-id>
`

type app struct {
	cfg     config.Storefront
	logger  *slog.Logger
	out     io.Writer
	menu    menu
	store   *cart.Store
	manager *lifecycle.Manager
	queue   *restaurant.Queue
	tracker *courier.Tracker

	closers []func(context.Context) error
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	var cfg config.Storefront
	if err := config.Parse(&cfg); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to start", "error", err)
		os.Exit(1)
	}

	runErr := a.run(ctx, os.Args[1], os.Args[2:])

	closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer closeCancel()
	if err := a.close(closeCtx); err != nil {
		logger.Error("failed to persist cart", "error", err)
	}

	if runErr != nil {
		if errors.Is(runErr, errUsage) {
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, describe(runErr))
		os.Exit(1)
	}
}

func newApp(ctx context.Context, cfg config.Storefront, logger *slog.Logger) (*app, error) {
	m, err := loadMenu(cfg.MenuFile)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, out: os.Stdout, menu: m}

	storage, err := a.openStorage()
	if err != nil {
		return nil, err
	}

	state, err := cart.Load(ctx, storage)
	if err != nil {
		_ = a.close(ctx)
		return nil, err
	}

	saver := cart.NewAsyncSaver(storage, logger)
	a.closers = append([]func(context.Context) error{saver.Close}, a.closers...)
	a.store = cart.NewStore(state, saver)

	api := client.New(cfg.GatewayURL, client.WithLogger(logger))
	a.manager = lifecycle.NewManager(a.store, api, api, logger)
	a.queue = restaurant.NewQueue(api, a.manager)
	a.tracker = courier.NewTracker(api, a.manager, cfg.DriverID, logger)
	return a, nil
}

func (a *app) openStorage() (cart.Storage, error) {
	if a.cfg.RedisURL != "" {
		opts, err := redis.ParseURL(a.cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		rdb := redis.NewClient(opts)
		a.closers = append(a.closers, func(context.Context) error { return rdb.Close() })
		return cart.NewRedisStorage(rdb, a.cfg.RedisPrefix, a.cfg.CartTTL), nil
	}

	bolt, err := cart.OpenBolt(a.cfg.DataFile)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func(context.Context) error { return bolt.Close() })
	return bolt, nil
}

// close flushes pending cart writes before releasing the storage handles.
func (a *app) close(ctx context.Context) error {
	var errs []error
	for _, c := range a.closers {
		if err := c(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

var errUsage = errors.New("usage")

func (a *app) run(ctx context.Context, command string, args []string) error {
	switch command {
	case "menu":
		a.printMenu()
		return nil
	case "cart":
		return a.runCart(args)
	case "checkout":
		return a.runCheckout(ctx, args)
	case "track":
		return a.runTrack(ctx, args)
	case "orders":
		return a.runOrders(ctx, args)
	case "restaurant":
		return a.runRestaurant(ctx, args)
	case "courier":
		return a.runCourier(ctx, args)
	}
	return errUsage
}
