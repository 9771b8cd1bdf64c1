package daemon

import (
	"context"
	"fmt"
	"os"

	"batchwatch/internal/aggregator"
	"batchwatch/internal/config"
	"batchwatch/internal/logger"
	"batchwatch/internal/repository"
	"batchwatch/internal/subscriber"

	"github.com/redis/go-redis/v9"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Daemon owns one aggregator together with the subscribers and API the
// config asks for.
type Daemon struct {
	cfg    *config.Config
	agg    *aggregator.Aggregator
	hub    *Hub
	redis  *redis.Client
	server *Server
}

// New wires the subscribers in a fixed order: log, history, mirror, redis,
// then the websocket hub. repo may be nil to disable history.
func New(ctx context.Context, cfg *config.Config, source aggregator.Source, repo *repository.BatchRepository) (*Daemon, error) {
	if len(cfg.Targets) == 0 {
		return nil, fmt.Errorf("no targets configured")
	}

	d := &Daemon{
		cfg: cfg,
		hub: NewHub(),
	}

	subs := []any{subscriber.Log()}

	if repo != nil {
		subs = append(subs, subscriber.History(repo))
	}

	if cfg.MirrorDst != "" {
		src := cfg.Targets[0]
		if info, err := os.Stat(src); err != nil || !info.IsDir() {
			return nil, fmt.Errorf("mirror needs a directory as first target, got %s", src)
		}

		mirror, err := subscriber.NewMirror(src, cfg.MirrorDst, cfg.Checksum)
		if err != nil {
			return nil, err
		}
		subs = append(subs, aggregator.Subscriber{
			Callback: mirror.Callback,
			Params:   aggregator.Params{"label": "mirror"},
		})
	}

	if cfg.RedisAddr != "" {
		d.redis = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		subs = append(subs, subscriber.Redis(d.redis, cfg.RedisChannel))
	}

	subs = append(subs, d.hub.Callback)

	opts := aggregator.DefaultOptions()
	opts.Timeout = cfg.Timeout
	opts.ErrorPolicy = aggregator.ErrorPolicy(cfg.ErrorPolicy)
	opts.Delivery = aggregator.Delivery(cfg.Delivery)
	opts.CallbackParams = cfg.CallbackParams
	opts.SourceOptions = cfg.SourceOptions()
	opts.OnReady = []aggregator.ReadyFunc{func(context.Context) error {
		logger.Log.Info("watching",
			zap.Strings("targets", cfg.Targets))
		return nil
	}}

	agg, err := aggregator.New(ctx, source, cfg.Targets, subs, opts)
	if err != nil {
		d.closeRedis()
		return nil, err
	}
	d.agg = agg

	d.server = NewServer(agg, d.hub, repo, cfg.DaemonPort)
	return d, nil
}

func (d *Daemon) Aggregator() *aggregator.Aggregator {
	return d.agg
}

func (d *Daemon) Server() *Server {
	return d.server
}

func (d *Daemon) Start() {
	d.server.Start()
}

func (d *Daemon) Stop(ctx context.Context) error {
	err := d.agg.Stop()
	err = multierr.Append(err, d.server.Stop(ctx))
	err = multierr.Append(err, d.closeRedis())
	return err
}

func (d *Daemon) closeRedis() error {
	if d.redis == nil {
		return nil
	}
	return d.redis.Close()
}
