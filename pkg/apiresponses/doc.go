// Package apiresponses provides the JSON error envelope and response helpers shared by
// the intake and notification controllers.
package apiresponses
