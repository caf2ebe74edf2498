// Package lead defines the captured prospect record, the pure sanitization applied to
// raw form input and the error taxonomy of the submission flow.
package lead
