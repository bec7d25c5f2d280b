// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package retrieval

import (
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/poiesic/clearance/retrieval"

// settings are shared by every retrieval component.
type settings struct {
	logger  *slog.Logger
	monitor Monitor
	tracer  trace.Tracer
}

func defaultSettings(component string) settings {
	return settings{
		logger:  slog.Default().With("component", component),
		monitor: &noopMonitor{},
		tracer:  otel.Tracer(tracerName),
	}
}

func (s *settings) apply(opts []Option) error {
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return err
		}
	}
	return nil
}

// Option configures a retrieval component.
type Option func(*settings) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithMonitor installs retrieval hooks. Strategies report skipped
// collections; the Cascade reports everything else.
func WithMonitor(monitor Monitor) Option {
	return func(s *settings) error {
		if monitor == nil {
			monitor = &noopMonitor{}
		}
		s.monitor = monitor
		return nil
	}
}

// WithTracer sets the tracer used for spans.
// Default is the global otel tracer provider.
func WithTracer(tracer trace.Tracer) Option {
	return func(s *settings) error {
		if tracer == nil {
			tracer = otel.Tracer(tracerName)
		}
		s.tracer = tracer
		return nil
	}
}
