// Package system holds request-scoped logging helpers shared by the HTTP packages.
package system
