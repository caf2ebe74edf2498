// Package cli implements the leadform command line: serve, migrate and version.
package cli
