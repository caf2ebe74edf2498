// Package config handles server-side configuration loading from a YAML file with
// environment overrides, defaulting and validation of the store, notification, mail,
// AI, auth and audit settings.
package config
