// Package httpserver runs the admin HTTP endpoint (metrics, stats, health)
// with address validation and graceful shutdown.
package httpserver
