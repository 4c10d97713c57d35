package models

// ApplicationStatus is the ledger status of a school application.
type ApplicationStatus string

const (
	StatusAwaitingApplicantVerification ApplicationStatus = "awaiting_applicant_verification"
	StatusAwaitingPrincipalConfirmation ApplicationStatus = "awaiting_principal_confirmation"
	StatusPendingReview                 ApplicationStatus = "pending_review"
	StatusUnderReview                   ApplicationStatus = "under_review"
	StatusMoreInfoRequested             ApplicationStatus = "more_info_requested"
	StatusApproved                      ApplicationStatus = "approved"
	StatusRejected                      ApplicationStatus = "rejected"
	StatusExpired                       ApplicationStatus = "expired"
)

var allStatuses = []ApplicationStatus{
	StatusAwaitingApplicantVerification,
	StatusAwaitingPrincipalConfirmation,
	StatusPendingReview,
	StatusUnderReview,
	StatusMoreInfoRequested,
	StatusApproved,
	StatusRejected,
	StatusExpired,
}

// statusTransitions lists the statuses reachable from each non-terminal status.
// Expiry is reachable from every non-terminal status.
var statusTransitions = map[ApplicationStatus][]ApplicationStatus{
	StatusAwaitingApplicantVerification: {StatusAwaitingPrincipalConfirmation, StatusPendingReview, StatusExpired},
	StatusAwaitingPrincipalConfirmation: {StatusPendingReview, StatusExpired},
	StatusPendingReview:                 {StatusUnderReview, StatusExpired},
	StatusUnderReview:                   {StatusMoreInfoRequested, StatusApproved, StatusRejected, StatusExpired},
	StatusMoreInfoRequested:             {StatusUnderReview, StatusExpired},
}

// AllStatuses returns every status in lifecycle order.
func AllStatuses() []ApplicationStatus {
	out := make([]ApplicationStatus, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// ActiveStatuses returns the non-terminal statuses.
func ActiveStatuses() []ApplicationStatus {
	var out []ApplicationStatus
	for _, s := range allStatuses {
		if !s.Terminal() {
			out = append(out, s)
		}
	}
	return out
}

// Valid reports whether s is a known status.
func (s ApplicationStatus) Valid() bool {
	for _, known := range allStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions are possible from s.
func (s ApplicationStatus) Terminal() bool {
	switch s {
	case StatusApproved, StatusRejected, StatusExpired:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether the transition table allows s -> next.
func (s ApplicationStatus) CanTransitionTo(next ApplicationStatus) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s ApplicationStatus) String() string { return string(s) }
