package notifications

const (
	TypeInitiativeAssigned  = "initiative_assigned"
	TypeInitiativeSubmitted = "initiative_submitted"
	TypeInitiativeReviewed  = "initiative_reviewed"
	TypeInitiativeOverdue   = "initiative_overdue"
	TypeExtensionRequested  = "extension_requested"
	TypeExtensionReviewed   = "extension_reviewed"
	TypeGoalApprovalPending = "goal_approval_pending"
	TypeGoalApproved        = "goal_approved"
	TypeGoalRejected        = "goal_rejected"
	TypeGoalAutoAchieved    = "goal_auto_achieved"
	TypeGoalDiscarded       = "goal_discarded"
	TypeGoalProgressUpdated = "goal_progress_updated"
	TypeReviewAssigned      = "review_assigned"
)
