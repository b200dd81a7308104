// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-passkey.
//
// go-passkey is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package health

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestNewChecker(t *testing.T) {
	checker := NewChecker()
	if checker == nil {
		t.Fatal("Expected non-nil checker")
	}
	if checker.IsStarted() {
		t.Error("Expected new checker not to be started")
	}
	if len(checker.GetAllChecks()) != 0 {
		t.Error("Expected no registered checks")
	}
}

func TestRegisterCheck(t *testing.T) {
	checker := NewChecker()

	checker.RegisterCheck("store", func(ctx context.Context) CheckResult {
		return CheckResult{Status: StatusHealthy}
	})

	names := checker.GetAllChecks()
	if len(names) != 1 || names[0] != "store" {
		t.Errorf("Expected registered check 'store', got %v", names)
	}

	// Registering nil must be a no-op
	checker.RegisterCheck("nil-check", nil)
	if len(checker.GetAllChecks()) != 1 {
		t.Error("Expected nil check to be ignored")
	}
}

func TestUnregisterCheck(t *testing.T) {
	checker := NewChecker()
	checker.RegisterCheck("store", func(ctx context.Context) CheckResult {
		return CheckResult{Status: StatusHealthy}
	})

	checker.UnregisterCheck("store")
	if len(checker.GetAllChecks()) != 0 {
		t.Error("Expected check to be unregistered")
	}
}

func TestMarkStarted(t *testing.T) {
	checker := NewChecker()

	if checker.IsStarted() {
		t.Error("Expected checker not started initially")
	}

	checker.MarkStarted()
	if !checker.IsStarted() {
		t.Error("Expected checker started after MarkStarted")
	}

	checker.MarkNotStarted()
	if checker.IsStarted() {
		t.Error("Expected checker not started after MarkNotStarted")
	}
}

func TestLive(t *testing.T) {
	checker := NewChecker()
	result := checker.Live(context.Background())

	if result.Status != StatusHealthy {
		t.Errorf("Expected liveness healthy, got %s", result.Status)
	}
	if result.Name != "liveness" {
		t.Errorf("Expected name 'liveness', got %s", result.Name)
	}
}

func TestReadyNoChecks(t *testing.T) {
	checker := NewChecker()
	results := checker.Ready(context.Background())

	if len(results) != 1 {
		t.Fatalf("Expected default result, got %d results", len(results))
	}
	if results[0].Status != StatusHealthy {
		t.Errorf("Expected healthy default, got %s", results[0].Status)
	}
}

func TestReadyRunsAllChecks(t *testing.T) {
	checker := NewChecker()

	checker.RegisterCheck("users", func(ctx context.Context) CheckResult {
		return CheckResult{Status: StatusHealthy}
	})
	checker.RegisterCheck("challenges", func(ctx context.Context) CheckResult {
		return CheckResult{Status: StatusUnhealthy, Error: "store offline"}
	})

	results := checker.Ready(context.Background())
	if len(results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(results))
	}

	// Names default to the registration name
	for _, r := range results {
		if r.Name != "users" && r.Name != "challenges" {
			t.Errorf("Unexpected check name %q", r.Name)
		}
	}

	if checker.IsHealthy(context.Background()) {
		t.Error("Expected IsHealthy false with an unhealthy check")
	}
}

func TestStartup(t *testing.T) {
	checker := NewChecker()

	result := checker.Startup(context.Background())
	if result.Status != StatusUnhealthy {
		t.Errorf("Expected unhealthy before MarkStarted, got %s", result.Status)
	}

	checker.MarkStarted()
	result = checker.Startup(context.Background())
	if result.Status != StatusHealthy {
		t.Errorf("Expected healthy after MarkStarted, got %s", result.Status)
	}
}

func TestUptime(t *testing.T) {
	checker := NewChecker()
	time.Sleep(10 * time.Millisecond)

	if checker.Uptime() <= 0 {
		t.Error("Expected positive uptime")
	}
}

func TestPingCheck(t *testing.T) {
	healthy := PingCheck("store", func(ctx context.Context) error { return nil })
	result := healthy(context.Background())
	if result.Status != StatusHealthy {
		t.Errorf("Expected healthy, got %s", result.Status)
	}
	if result.Name != "store" {
		t.Errorf("Expected name 'store', got %s", result.Name)
	}

	failing := PingCheck("store", func(ctx context.Context) error {
		return errors.New("connection refused")
	})
	result = failing(context.Background())
	if result.Status != StatusUnhealthy {
		t.Errorf("Expected unhealthy, got %s", result.Status)
	}
	if result.Error != "connection refused" {
		t.Errorf("Expected error message preserved, got %q", result.Error)
	}
}

func TestAggregateStatus(t *testing.T) {
	tests := []struct {
		name     string
		results  []CheckResult
		expected Status
	}{
		{
			name:     "all healthy",
			results:  []CheckResult{{Status: StatusHealthy}, {Status: StatusHealthy}},
			expected: StatusHealthy,
		},
		{
			name:     "one unhealthy",
			results:  []CheckResult{{Status: StatusHealthy}, {Status: StatusUnhealthy}},
			expected: StatusUnhealthy,
		},
		{
			name:     "one degraded",
			results:  []CheckResult{{Status: StatusHealthy}, {Status: StatusDegraded}},
			expected: StatusDegraded,
		},
		{
			name:     "unhealthy beats degraded",
			results:  []CheckResult{{Status: StatusDegraded}, {Status: StatusUnhealthy}},
			expected: StatusUnhealthy,
		},
		{
			name:     "empty",
			results:  nil,
			expected: StatusHealthy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AggregateStatus(tt.results); got != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, got)
			}
		})
	}
}

func TestConcurrency(t *testing.T) {
	checker := NewChecker()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			checker.RegisterCheck("check", func(ctx context.Context) CheckResult {
				return CheckResult{Status: StatusHealthy}
			})
			checker.Ready(context.Background())
			checker.MarkStarted()
			checker.Startup(context.Background())
			checker.IsHealthy(context.Background())
		}(i)
	}
	wg.Wait()

	if !checker.IsStarted() {
		t.Error("Expected checker started")
	}
}
