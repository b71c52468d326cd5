package constants

// EventType names a domain event published by the engine.
type EventType string

const (
	EventExpenditureCreated      EventType = "ExpenditureCreated"
	EventVendorAssigned          EventType = "VendorAssigned"
	EventVendorProofSubmitted    EventType = "VendorProofSubmitted"
	EventVerificationCompleted   EventType = "VerificationCompleted"
	EventExpenditureRejected     EventType = "ExpenditureRejected"
	EventBeneficiaryVoteRecorded EventType = "BeneficiaryVoteRecorded"
	EventQuorumAchieved          EventType = "QuorumAchieved"
	EventFundsReleased           EventType = "FundsReleased"
)

// Policy defaults.
const (
	DefaultVerificationThreshold = 0.85
	DefaultRequiredQuorum        = 3
)
