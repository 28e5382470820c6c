package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "inventory"

var (
	LedgerWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ledger_writes_total",
		Help:      "Ledger entries written, by transaction type.",
	}, []string{"transaction_type"})

	LedgerWriteRetries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ledger_write_retries_total",
		Help:      "Ledger transactions retried after a serialization or deadlock conflict.",
	})

	LedgerWriteFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ledger_write_failures_total",
		Help:      "Ledger transactions that failed with a storage error.",
	})

	NegativeStock = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ledger_negative_stock_total",
		Help:      "Writes that left on_hand below zero.",
	})

	BulkItems = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bulk_adjustment_items_total",
		Help:      "Bulk adjustment items processed, by outcome.",
	}, []string{"outcome"})

	POSyncLines = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "po_sync_lines_total",
		Help:      "Purchase order lines processed by sync operation and outcome.",
	}, []string{"operation", "outcome"})

	OutboundTasks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "outbound_tasks_total",
		Help:      "Outbound side-effect tasks, by task name and outcome.",
	}, []string{"task", "outcome"})

	OutboundQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "outbound_queue_depth",
		Help:      "Tasks waiting in the outbound queue.",
	})
)
