package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/joshp123/evorelay/internal/config"
	"github.com/joshp123/evorelay/internal/core"
	"github.com/joshp123/evorelay/internal/logging"
	"github.com/joshp123/evorelay/plugins/archive"
	"github.com/joshp123/evorelay/plugins/evohome"
	"github.com/joshp123/evorelay/plugins/mqttpub"
	"github.com/joshp123/evorelay/plugins/redisstream"
	"github.com/joshp123/evorelay/plugins/salesforce"
)

type app struct {
	cfg    *config.Config
	logger zerolog.Logger
}

func loadApp() (*app, error) {
	if err := config.LoadEnvFile(envFile); err != nil {
		return nil, err
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger, err := logging.Init(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, logger: logger}, nil
}

func (a *app) evohomeClient() (*evohome.Client, error) {
	cfg, err := evohome.ConfigFromFile(a.cfg.Evohome)
	if err != nil {
		return nil, err
	}
	return evohome.NewClient(cfg, a.logger)
}

// connect runs the bootstrap chain and returns a client bound to a location.
func (a *app) connect(ctx context.Context) (*evohome.Client, error) {
	client, err := a.evohomeClient()
	if err != nil {
		return nil, err
	}
	if _, err := client.Connect(ctx); err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	return client, nil
}

type sinkSet struct {
	all     []core.Sink
	archive *archive.Sink
}

// buildSinks constructs every configured sink. extra sinks are appended after
// the configured ones.
func (a *app) buildSinks(extra ...core.Sink) (sinkSet, error) {
	var set sinkSet
	fail := func(err error) (sinkSet, error) {
		a.closeSinks(set.all)
		return sinkSet{}, err
	}

	if a.cfg.Salesforce != nil {
		sfCfg, err := salesforce.ConfigFromFile(a.cfg.Salesforce)
		if err != nil {
			return fail(err)
		}
		client, err := salesforce.NewClient(sfCfg, a.logger)
		if err != nil {
			return fail(err)
		}
		set.all = append(set.all, salesforce.NewSink(client))
	}

	if a.cfg.Archive != nil {
		store, err := archive.NewS3Store(a.cfg.Archive)
		if err != nil {
			return fail(err)
		}
		set.archive = archive.NewSink(store, a.cfg.Archive.Prefix, a.logger)
		set.all = append(set.all, set.archive)
	}

	if a.cfg.MQTT != nil {
		publisher, err := mqttpub.Dial(a.cfg.MQTT)
		if err != nil {
			return fail(err)
		}
		set.all = append(set.all, mqttpub.NewSink(publisher, a.cfg.MQTT.TopicPrefix, a.cfg.MQTT.QoS, a.cfg.MQTT.Retain, a.logger))
	}

	if a.cfg.Redis != nil {
		client, err := redisstream.Dial(a.cfg.Redis)
		if err != nil {
			return fail(err)
		}
		set.all = append(set.all, redisstream.NewSink(client, a.cfg.Redis.Stream, a.cfg.Redis.MaxLen, a.logger))
	}

	set.all = append(set.all, extra...)
	if err := core.ValidateSinks(set.all); err != nil {
		return fail(err)
	}
	return set, nil
}

// closeSinks releases sink connections. Close failures are logged only.
func (a *app) closeSinks(sinks []core.Sink) {
	if err := core.NewFanout(a.logger, sinks...).Close(); err != nil {
		a.logger.Warn().Err(err).Msg("close sinks")
	}
}
