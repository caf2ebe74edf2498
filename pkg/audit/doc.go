// Package audit records what happened to each submission (captured, duplicate,
// rejected, confirmation failed) and forwards the events to the log and, optionally,
// a Kafka topic. Emails are masked before they leave the process.
package audit
