// Package submission turns one form submit into at most one persisted lead and at
// most one confirmation email.
//
// A Controller belongs to one form instance (one browser session). Its in-flight
// guard is a compare-and-swap on the controller state: a submit that finds the
// controller anywhere but Idle is dropped without touching the store or the
// notifier, and the guard is released on every exit path.
package submission
