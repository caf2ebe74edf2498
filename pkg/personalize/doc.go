// Package personalize asks a text-completion provider for a short, industry-specific
// welcome message for a new lead.
package personalize
