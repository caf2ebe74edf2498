// Package api implements the HTTP server (Gin-based) of the lead form: request
// logging, rate limiting, health and metrics endpoints, the public client config and
// the static form page. Feature endpoints are contributed by APIControllers.
package api
