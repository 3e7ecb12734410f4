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

package processors

import (
	"context"
	"sync"
	"time"

	"github.com/carverauto/pulse/pkg/lifecycle"
	"github.com/carverauto/pulse/pkg/logger"
	"github.com/carverauto/pulse/pkg/natsutil"
	"github.com/nats-io/nats.go/jetstream"
)

// Service runs the broker-side consumer loop as a lifecycle.Service. The
// fallback pool runs independently; both feed the same Processor.
type Service struct {
	cfg       *Config
	js        jetstream.JetStream
	processor *Processor
	consumer  *Consumer
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	logger    logger.Logger
}

// NewService creates the consumer service on an existing JetStream context.
func NewService(cfg *Config, js jetstream.JetStream, processor *Processor, log logger.Logger) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Service{
		cfg:       cfg,
		js:        js,
		processor: processor,
		logger:    log,
	}, nil
}

// Start creates the pull consumer and begins processing.
func (s *Service) Start(ctx context.Context) error {
	streamName := s.cfg.StreamName
	if streamName == "" {
		streamName = natsutil.DefaultTelemetryStream
	}

	consumer, err := NewConsumer(ctx, s.js, streamName, s.cfg.ConsumerName, s.logger)
	if err != nil {
		return err
	}

	s.consumer = consumer

	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)

	go func() {
		defer s.wg.Done()
		s.consumer.ProcessMessages(runCtx, s.processor)
	}()

	if len(s.cfg.AnomalyMetrics) > 0 {
		s.wg.Add(1)

		go func() {
			defer s.wg.Done()
			s.runAnomalySweep(runCtx)
		}()
	}

	s.logger.Info().
		Str("stream", streamName).
		Str("consumer", s.cfg.ConsumerName).
		Msg("Batch processor service started")

	return nil
}

// runAnomalySweep scans the configured metric series on a fixed interval.
// Failures are logged and retried next tick.
func (s *Service) runAnomalySweep(ctx context.Context) {
	ticker := time.NewTicker(time.Duration(s.cfg.AnomalySweepMinutes) * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, name := range s.cfg.AnomalyMetrics {
				report, err := s.processor.RunAnomalyDetection(ctx, name, s.cfg.AnomalyWindowMinutes)
				if err != nil {
					s.logger.Warn().Err(err).Str("metric", name).Msg("Anomaly scan failed")
					continue
				}

				s.logger.Debug().
					Str("metric", name).
					Str("status", report.Status).
					Int("anomalies", len(report.AnomalyIDs)).
					Msg("Anomaly scan complete")
			}
		}
	}
}

// Stop cancels the consumer loop and waits for it to exit, giving up when
// ctx expires so a stuck fetch cannot hold up the rest of shutdown.
func (s *Service) Stop(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})

	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn().Msg("Timed out waiting for consumer loop to drain")
		return ctx.Err()
	}

	s.logger.Info().Msg("Batch processor service stopped")

	return nil
}

var _ lifecycle.Service = (*Service)(nil)
