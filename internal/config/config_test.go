package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("TERMINAL_ID", "till-1")

	cfg := Load()
	if cfg.OrdersTable != "pos_orders" {
		t.Fatalf("orders table = %q, want pos_orders", cfg.OrdersTable)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("http addr = %q, want :8080", cfg.HTTPAddr)
	}
	if cfg.TickInterval != 30*time.Second {
		t.Fatalf("tick interval = %s, want 30s", cfg.TickInterval)
	}
	if cfg.Concurrency != 3 {
		t.Fatalf("concurrency = %d, want 3", cfg.Concurrency)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("TERMINAL_ID", "till-2")
	t.Setenv("ORDERS_TABLE", "pos_orders_staging")
	t.Setenv("SYNC_TICK_SECONDS", "5")
	t.Setenv("SYNC_CONCURRENCY", "8")

	cfg := Load()
	if cfg.TerminalID != "till-2" {
		t.Fatalf("terminal id = %q", cfg.TerminalID)
	}
	if cfg.OrdersTable != "pos_orders_staging" {
		t.Fatalf("orders table = %q", cfg.OrdersTable)
	}
	if cfg.TickInterval != 5*time.Second {
		t.Fatalf("tick interval = %s, want 5s", cfg.TickInterval)
	}
	if cfg.Concurrency != 8 {
		t.Fatalf("concurrency = %d, want 8", cfg.Concurrency)
	}
}
