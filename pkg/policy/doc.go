// Package policy evaluates the row-level access rules on captured leads: anyone may
// insert, and a lead is readable by authenticated callers or by the browser session
// that submitted it.
package policy
