package metrics

import (
	"log"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// AppMetrics holds the application's metric instruments.
type AppMetrics struct {
	HTTPRequestsTotal      metric.Int64Counter
	AuthRequestsTotal      metric.Int64Counter
	RoleLookupsTotal       metric.Int64Counter
	RoleLookupDuration     metric.Float64Histogram
	StaleRoleResultsTotal  metric.Int64Counter
	RoleAssignmentsTotal   metric.Int64Counter
	ActiveSessionsGauge    metric.Int64UpDownCounter
	DBQueryErrorsTotal     metric.Int64Counter
	TemplateRenderDuration metric.Float64Histogram
	CacheLookupsTotal      metric.Int64Counter
}

var (
	appMetrics *AppMetrics
	once       sync.Once
)

// InitAppMetrics creates the instruments once, from the global MeterProvider.
// When called before the provider is configured the instruments are no-ops.
func InitAppMetrics() {
	once.Do(func() {
		meter := otel.GetMeterProvider().Meter("citcs-portal")
		var err error
		m := &AppMetrics{}

		m.HTTPRequestsTotal, err = meter.Int64Counter(
			"http_requests_total",
			metric.WithDescription("Total number of HTTP requests completed"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create http_requests_total: %v", err)
		}

		m.AuthRequestsTotal, err = meter.Int64Counter(
			"auth_requests_total",
			metric.WithDescription("Total number of sign-in, sign-up and sign-out attempts"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create auth_requests_total: %v", err)
		}

		m.RoleLookupsTotal, err = meter.Int64Counter(
			"role_lookups_total",
			metric.WithDescription("Role lookups by outcome"),
			metric.WithUnit("{lookup}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create role_lookups_total: %v", err)
		}

		m.RoleLookupDuration, err = meter.Float64Histogram(
			"role_lookup_duration_seconds",
			metric.WithDescription("Duration of role lookups in seconds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create role_lookup_duration_seconds: %v", err)
		}

		m.StaleRoleResultsTotal, err = meter.Int64Counter(
			"role_lookups_stale_total",
			metric.WithDescription("Role lookup results discarded because the identity changed"),
			metric.WithUnit("{lookup}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create role_lookups_stale_total: %v", err)
		}

		m.RoleAssignmentsTotal, err = meter.Int64Counter(
			"role_assignments_total",
			metric.WithDescription("Role assignment and removal attempts by outcome"),
			metric.WithUnit("{assignment}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create role_assignments_total: %v", err)
		}

		m.ActiveSessionsGauge, err = meter.Int64UpDownCounter(
			"browser_sessions_active",
			metric.WithDescription("Browser sessions with a live session manager"),
			metric.WithUnit("{session}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create browser_sessions_active: %v", err)
		}

		m.DBQueryErrorsTotal, err = meter.Int64Counter(
			"db_query_errors_total",
			metric.WithDescription("Total number of database query errors"),
			metric.WithUnit("{error}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create db_query_errors_total: %v", err)
		}

		m.TemplateRenderDuration, err = meter.Float64Histogram(
			"template_render_duration_seconds",
			metric.WithDescription("Duration of template rendering in seconds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create template_render_duration_seconds: %v", err)
		}

		m.CacheLookupsTotal, err = meter.Int64Counter(
			"cache_lookups_total",
			metric.WithDescription("Cache lookups by cache and result"),
			metric.WithUnit("{lookup}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create cache_lookups_total: %v", err)
		}

		appMetrics = m
	})
}

// Get returns the global instruments, initializing them on first use.
func Get() *AppMetrics {
	InitAppMetrics()
	return appMetrics
}
