// Package ratelimit provides per-IP and per-subject rate limiting middleware.
package ratelimit
