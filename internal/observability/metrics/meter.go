// Copyright 2026 The Resource-E Authors
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

package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Config holds metrics configuration
type Config struct {
	Enabled bool
}

// Meter wraps OpenTelemetry meter
type Meter struct {
	meter metric.Meter
}

// New creates a new meter instance
func New(ctx context.Context, cfg Config, serviceName string) (*Meter, error) {
	if !cfg.Enabled {
		return &Meter{
			meter: otel.Meter("noop"),
		}, nil
	}

	return &Meter{
		meter: otel.Meter(serviceName),
	}, nil
}

// VaultMetrics carries the counters stamped on vault operations.
type VaultMetrics struct {
	ResourcesAdded   metric.Int64Counter
	ResourcesDeleted metric.Int64Counter
	DecryptFailures  metric.Int64Counter
	LoginAttempts    metric.Int64Counter
}

// NewVaultMetrics registers the vault operation counters.
func (m *Meter) NewVaultMetrics() (*VaultMetrics, error) {
	return NewVaultMetrics(m.meter)
}

// NewVaultMetrics registers the vault operation counters on an explicit
// meter.
func NewVaultMetrics(m metric.Meter) (*VaultMetrics, error) {
	added, err := counter(m, "vault_resources_added_total", "Resources stored, by kind")
	if err != nil {
		return nil, err
	}
	deleted, err := counter(m, "vault_resources_deleted_total", "Resources removed, by kind")
	if err != nil {
		return nil, err
	}
	decryptFailures, err := counter(m, "vault_decrypt_failures_total", "Managed account records that failed decryption")
	if err != nil {
		return nil, err
	}
	logins, err := counter(m, "auth_login_attempts_total", "Login attempts, by outcome")
	if err != nil {
		return nil, err
	}

	return &VaultMetrics{
		ResourcesAdded:   added,
		ResourcesDeleted: deleted,
		DecryptFailures:  decryptFailures,
		LoginAttempts:    logins,
	}, nil
}

func counter(m metric.Meter, name, description string) (metric.Int64Counter, error) {
	c, err := m.Int64Counter(name, metric.WithDescription(description))
	if err != nil {
		return nil, fmt.Errorf("failed to create counter %s: %w", name, err)
	}
	return c, nil
}

// KindAttr labels a counter increment with the resource kind.
func KindAttr(kind string) metric.AddOption {
	return metric.WithAttributes(attribute.String("kind", kind))
}

// OutcomeAttr labels a counter increment with an operation outcome.
func OutcomeAttr(outcome string) metric.AddOption {
	return metric.WithAttributes(attribute.String("outcome", outcome))
}
