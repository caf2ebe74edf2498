package policy

import (
	"github.com/samber/lo"

	"github.com/telekom/leadform/pkg/lead"
)

// Viewer describes who is asking to read leads.
type Viewer struct {
	// Authenticated is set when the caller presented a verified token.
	Authenticated bool
	// Subject is the token subject, for logs only.
	Subject string
	// SessionID is the browser session correlator presented by the caller.
	SessionID string
	// Token is the verified bearer token, forwarded to stores that evaluate the
	// policy themselves.
	Token string
}

// Anonymous is a viewer with neither credentials nor session.
var Anonymous = Viewer{}

// CanInsert reports whether the viewer may insert a lead. Inserts are unconditional.
func CanInsert(Viewer) bool {
	return true
}

// CanRead reports whether the viewer may see the given lead.
func CanRead(v Viewer, l lead.Lead) bool {
	if v.Authenticated {
		return true
	}
	return v.SessionID != "" && v.SessionID == l.SessionID
}

// Filter keeps the leads the viewer may read.
func Filter(v Viewer, leads []lead.Lead) []lead.Lead {
	return lo.Filter(leads, func(l lead.Lead, _ int) bool {
		return CanRead(v, l)
	})
}

// Scope returns a description of what the viewer may read, used by SQL backends to
// push the rule into the query.
func Scope(v Viewer) (all bool, sessionID string, none bool) {
	switch {
	case v.Authenticated:
		return true, "", false
	case v.SessionID != "":
		return false, v.SessionID, false
	default:
		return false, "", true
	}
}
