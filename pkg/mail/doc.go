// Package mail sends transactional email through SMTP (gomail), an HTTP mail API,
// or the log for local development. Credentials only come from server-side config.
package mail
