/*
Package monitoring provides performance monitoring and metrics collection.

# Overview

This package implements Prometheus-based metrics collection for the shell
host, tracking launch requests, lifecycle transitions, the orchestrator
queue, and the live world graph.

# Features

- HTTP request metrics (latency, throughput, size)
- Launch metrics (result codes, resolution duration)
- Lifecycle metrics (transitions, timer expiries, crash finishes)
- World-graph gauges (surfaces, containers, groups, items)
- Orchestrator queue depth and command counts
- Process-host call metrics
- Event-stream connection metrics
- System metrics (uptime)

# Usage

	// Create metrics collector
	metrics := monitoring.NewMetrics()

	// Add middleware to Gin router
	router.Use(monitoring.Middleware(metrics))

	// Record custom metrics
	metrics.RecordLaunch("success", elapsed)
	metrics.RecordTransition("resumed", "pausing")

# Metrics Endpoint

Expose metrics via the standard Prometheus endpoint:

	import "github.com/prometheus/client_golang/prometheus/promhttp"
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
*/
package monitoring
