// Package intake is the HTTP surface of the lead form: submitting a lead, reading the
// visitor's session state and listing leads through the read policy.
package intake
