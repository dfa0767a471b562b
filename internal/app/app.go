package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"pizzeria/internal/config"
	"pizzeria/internal/httpapi"
	"pizzeria/internal/order"
	"pizzeria/internal/payment"
	"pizzeria/internal/storage"
	"pizzeria/internal/websocket"
	"pizzeria/pkg/messaging"
)

type App struct {
	cfg       config.Config
	logger    *slog.Logger
	store     *storage.Store
	orderSvc  *order.Service
	ledger    *payment.Ledger
	wsHub     *websocket.Hub
	outbox    *messaging.Outbox
	publisher messaging.Publisher
	dispatch  *messaging.OutboxDispatcher
	httpSrv   *http.Server
}

func New(cfg config.Config, logger *slog.Logger) (*App, error) {
	var publisher messaging.Publisher
	if cfg.RabbitURL != "" {
		p, err := messaging.NewRabbitPublisher(cfg.RabbitURL, cfg.EventsExchange)
		if err != nil {
			return nil, err
		}
		publisher = p
	} else {
		logger.Info("no broker configured, events go to the log")
		publisher = messaging.NewLogPublisher(logger)
	}

	store := storage.New(logger)
	store.Connect()

	wsHub := websocket.NewHub(logger)
	outbox := messaging.NewOutbox()

	orderSvc := order.NewService(store, outbox, wsHub, logger)
	ledger := payment.NewLedger(store, outbox, wsHub, logger)

	api := httpapi.NewServer(store, orderSvc, ledger, logger)
	wsHandler := websocket.NewHandler(wsHub, orderSvc, logger)
	api.HandleFunc("GET /orders/{orderID}/ws", wsHandler.ServeWS)
	httpSrv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: api,
	}

	dispatch := messaging.NewOutboxDispatcher(outbox, publisher, cfg.OutboxInterval, cfg.OutboxBatchSize, logger)

	return &App{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		orderSvc:  orderSvc,
		ledger:    ledger,
		wsHub:     wsHub,
		outbox:    outbox,
		publisher: publisher,
		dispatch:  dispatch,
		httpSrv:   httpSrv,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 1)

	a.dispatch.Start(ctx)

	go a.wsHub.Run(ctx)

	go func() {
		a.logger.Info("pizzeria http server listening", "addr", a.cfg.HTTPAddr)
		if err := a.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

func (a *App) Close(ctx context.Context) {
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.ShutdownGracePeriod)
	defer cancel()
	_ = a.httpSrv.Shutdown(shutdownCtx)
	if n := a.outbox.Pending(); n > 0 {
		a.logger.Warn("events left unpublished", "count", n)
	}
	a.publisher.Close()
	a.store.Disconnect()
}

func Run() error {
	cfg := config.Load()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := New(cfg, logger)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}
	defer app.Close(context.Background())

	return app.Run(ctx)
}
