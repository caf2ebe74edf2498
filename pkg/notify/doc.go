// Package notify sends the confirmation email for a captured lead. The body is
// personalized by a completion provider when possible and falls back to a fixed
// generic message otherwise.
//
// The service is reachable in-process (ServiceNotifier), over HTTP through the
// Controller, and remotely through Client.
package notify
