// Package session keeps per-browser state: whether the visitor already submitted the
// form and which leads they captured. State lives in memory for the lifetime of the
// browser session and is dropped after an idle period.
package session
