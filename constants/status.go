package constants

// ExpenditureStatus is the canonical status of an expenditure row.
type ExpenditureStatus string

// Stable values (store these exact strings in DB).
const (
	StatusPending             ExpenditureStatus = "pending"              // created, waiting for vendor proof
	StatusVendorSubmitted     ExpenditureStatus = "vendor_submitted"     // proof attached, verification pending
	StatusAIVerified          ExpenditureStatus = "ai_verified"          // oracle passed, voting open
	StatusBeneficiaryApproved ExpenditureStatus = "beneficiary_approved" // quorum reached, awaiting release
	StatusCompleted           ExpenditureStatus = "completed"            // terminal: funds released
	StatusRejected            ExpenditureStatus = "rejected"             // terminal: verification or admin failure
)

var allStatuses = []ExpenditureStatus{
	StatusPending,
	StatusVendorSubmitted,
	StatusAIVerified,
	StatusBeneficiaryApproved,
	StatusCompleted,
	StatusRejected,
}

// IsTerminal reports whether no further mutation is allowed.
func (s ExpenditureStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusRejected
}

// Valid reports whether s is one of the known statuses.
func (s ExpenditureStatus) Valid() bool {
	for _, v := range allStatuses {
		if v == s {
			return true
		}
	}
	return false
}

func (s ExpenditureStatus) String() string { return string(s) }

// Statuses returns all statuses in lifecycle order.
func Statuses() []ExpenditureStatus {
	out := make([]ExpenditureStatus, len(allStatuses))
	copy(out, allStatuses)
	return out
}
