package allocator

import (
	"github.com/viant/fleetsched/model/resource"
)

// Allocation outcomes announced as events and counted as metrics.
const (
	OutcomeGranted  = "granted"
	OutcomeDeferred = "deferred"
	OutcomeRejected = "rejected"
	OutcomeReleased = "released"
	OutcomeForced   = "forced"
	OutcomeSkipped  = "skipped"
)

// Notice is the payload of allocation events.
type Notice struct {
	ClientID  string   `json:"clientId"`
	Outcome   string   `json:"outcome"`
	Resources []string `json:"resources"`
	Reason    string   `json:"reason,omitempty"`
}

func newNotice(outcome, clientID string, resources resource.Set, reason string) *Notice {
	return &Notice{ClientID: clientID, Outcome: outcome, Resources: resource.Names(resources), Reason: reason}
}
