/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Command pulsed runs the Pulse telemetry data plane: the ingestion gateway,
// dual-path delivery, batch processors, query engine, and distribution hub
// in one process.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/carverauto/pulse/pkg/config"
	"github.com/carverauto/pulse/pkg/core/api"
	"github.com/carverauto/pulse/pkg/delivery"
	"github.com/carverauto/pulse/pkg/gateway"
	pulseHttp "github.com/carverauto/pulse/pkg/http"
	"github.com/carverauto/pulse/pkg/lifecycle"
	"github.com/carverauto/pulse/pkg/logger"
	"github.com/carverauto/pulse/pkg/models"
	"github.com/carverauto/pulse/pkg/natsutil"
	"github.com/carverauto/pulse/pkg/processors"
	"github.com/carverauto/pulse/pkg/query"
	"github.com/carverauto/pulse/pkg/store"
	"github.com/carverauto/pulse/pkg/stream"
	"github.com/nats-io/nats.go"
)

const (
	defaultListenAddr = ":8080"
	serviceName       = "pulse"
)

// CoreConfig is the daemon's top-level configuration. NATS is optional: with
// it absent the broker path is skipped and every batch takes the in-process
// fallback pool.
type CoreConfig struct {
	ListenAddr        string                 `json:"listen_addr,omitempty"`
	CORS              pulseHttp.CORSConfig   `json:"cors,omitempty"`
	APIKey            string                 `json:"api_key,omitempty"`
	NATS              *natsutil.Config       `json:"nats,omitempty"`
	Store             store.Config           `json:"store"`
	Processors        processors.Config      `json:"processors"`
	FallbackWorkers   int                    `json:"fallback_workers,omitempty"`
	FallbackQueueSize int                    `json:"fallback_queue_size,omitempty"`
	PublishTimeout    logger.Duration        `json:"publish_timeout,omitempty"`
	Logging           *logger.Config         `json:"logging,omitempty"`
	Security          *models.SecurityConfig `json:"security,omitempty"`
}

// Validate implements config.Validator.
func (c *CoreConfig) Validate() error {
	if c.ListenAddr == "" {
		c.ListenAddr = defaultListenAddr
	}

	if err := c.Store.Validate(); err != nil {
		return err
	}

	// The consumer service only exists on the broker path, so its config is
	// required only when NATS is configured.
	if c.NATS != nil {
		if c.NATS.Security == nil {
			c.NATS.Security = c.Security
		}

		if err := c.NATS.Validate(); err != nil {
			return err
		}

		if err := c.Processors.Validate(); err != nil {
			return err
		}
	}

	if c.Logging == nil {
		c.Logging = logger.DefaultConfig()
	}

	return nil
}

func main() {
	configPath := flag.String("config", "/etc/pulse/pulsed.json", "Path to pulsed config file")
	flag.Parse()

	if err := run(context.Background(), *configPath); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run(ctx context.Context, configPath string) error {
	var cfg CoreConfig

	cfgLoader := config.NewConfig(nil)
	if err := cfgLoader.LoadAndValidate(ctx, configPath, &cfg); err != nil {
		return err
	}

	logg, err := lifecycle.CreateComponentLogger(ctx, serviceName, cfg.Logging)
	if err != nil {
		return err
	}

	storeClient := store.NewClient(&cfg.Store, logg)
	hub := stream.NewHub(logg)

	// Broker wiring is best-effort: a NATS outage at boot degrades to
	// fallback-only delivery instead of refusing to start.
	var (
		broker   delivery.Broker
		services []lifecycle.Service
	)

	nc, publisher := connectBroker(ctx, &cfg, logg)
	if publisher != nil {
		broker = publisher
	}

	distributor := stream.NewDistributor(hub, nc, logg)
	processor := processors.NewProcessor(storeClient, distributor, logg)

	pool := delivery.NewWorkerPool(cfg.FallbackWorkers, cfg.FallbackQueueSize,
		func(ctx context.Context, batch *models.IngestBatch) {
			processor.ProcessBatch(ctx, batch)
		}, logg)
	services = append(services, pool)

	if nc != nil {
		services = append(services, stream.NewRelay(hub, nc, logg))
	}

	if publisher != nil {
		procService, err := processors.NewService(&cfg.Processors, publisher.JetStream(), processor, logg)
		if err != nil {
			return err
		}

		services = append(services, procService)
	}

	deliverer := delivery.NewDeliverer(broker, pool, time.Duration(cfg.PublishTimeout), logg)
	gw := gateway.NewGateway(deliverer, logg)
	engine := query.NewEngine(storeClient, logg)

	apiServer := api.NewAPIServer(cfg.CORS, logg,
		api.WithIngester(gw),
		api.WithQueryEngine(engine),
		api.WithTelemetryReader(storeClient),
		api.WithHub(hub),
		api.WithBroadcaster(distributor),
		api.WithAPIKey(cfg.APIKey),
	)

	return lifecycle.RunServer(ctx, &lifecycle.ServerOptions{
		ListenAddr:  cfg.ListenAddr,
		ServiceName: serviceName,
		Handler:     apiServer.Router(),
		Services:    services,
		Logger:      logg,
	})
}

// connectBroker dials NATS and ensures the telemetry stream. Either step may
// fail without aborting startup; the returned values are nil in that case and
// delivery degrades to the fallback path.
func connectBroker(ctx context.Context, cfg *CoreConfig, logg logger.Logger) (*nats.Conn, *natsutil.TelemetryPublisher) {
	if cfg.NATS == nil {
		logg.Info().Msg("No NATS configured, running fallback-only")
		return nil, nil
	}

	nc, err := natsutil.Connect(cfg.NATS, logg)
	if err != nil {
		logg.Warn().Err(err).Str("url", cfg.NATS.URL).Msg("NATS unavailable, running fallback-only")
		return nil, nil
	}

	publisher, err := natsutil.NewTelemetryPublisher(ctx, nc, cfg.NATS.Domain, cfg.NATS.StreamName)
	if err != nil {
		logg.Warn().Err(err).Msg("JetStream unavailable, broadcasts stay broker-backed but delivery falls back")
		return nc, nil
	}

	return nc, publisher
}
