package initiatives

type InitiativeType string

const (
	TypeIndividual InitiativeType = "INDIVIDUAL"
	TypeGroup      InitiativeType = "GROUP"
)

type InitiativeStatus string

const (
	StatusPending       InitiativeStatus = "PENDING"
	StatusOngoing       InitiativeStatus = "ONGOING"
	StatusOverdue       InitiativeStatus = "OVERDUE"
	StatusPendingReview InitiativeStatus = "PENDING_REVIEW"
	StatusApproved      InitiativeStatus = "APPROVED"
)

type Urgency string

const (
	UrgencyLow    Urgency = "LOW"
	UrgencyMedium Urgency = "MEDIUM"
	UrgencyHigh   Urgency = "HIGH"
)

type ExtensionStatus string

const (
	ExtensionPending  ExtensionStatus = "PENDING"
	ExtensionApproved ExtensionStatus = "APPROVED"
	ExtensionDenied   ExtensionStatus = "DENIED"
)

const (
	MinScore = 1
	MaxScore = 10
)

func ValidInitiativeType(t InitiativeType) bool {
	return t == TypeIndividual || t == TypeGroup
}

func ValidUrgency(u Urgency) bool {
	switch u {
	case UrgencyLow, UrgencyMedium, UrgencyHigh:
		return true
	}
	return false
}
