package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sales_orders_created_total",
		Help: "Total number of sales orders created",
	}, []string{"source"})

	OrdersUpdatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sales_orders_updated_total",
		Help: "Total number of sales order edits",
	})

	OrdersDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sales_orders_deleted_total",
		Help: "Total number of sales orders deleted",
	})

	StatusRegressionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sales_order_status_regressions_total",
		Help: "Edits that moved a status axis backward",
	}, []string{"field"})

	ValidationFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sales_order_validation_failures_total",
		Help: "Rejected payloads by operation",
	}, []string{"operation"})

	BulkRowsImported = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sales_order_bulk_rows",
		Help:    "Rows per successful bulk import",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
	})

	ExportRowsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sales_order_export_rows_total",
		Help: "Spreadsheet rows written by exports",
	})

	StageQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sales_order_stage_query_latency_seconds",
		Help:    "Latency of stage projection queries",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})

	EventsPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sales_order_events_published_total",
		Help: "Events published to the event stream",
	}, []string{"event_type"})

	EventsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sales_order_events_failed_total",
		Help: "Events that could not be published or relayed",
	}, []string{"event_type"})

	MailSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sales_order_mail_sent_total",
		Help: "Customer mails delivered to the SMTP relay",
	}, []string{"kind"})

	MailFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sales_order_mail_failed_total",
		Help: "Customer mails that failed to send",
	}, []string{"kind"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
