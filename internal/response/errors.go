package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrTokenRequired ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid  ErrCode = "TOKEN_INVALID"
	ErrTokenExpired  ErrCode = "TOKEN_EXPIRED"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden          ErrCode = "FORBIDDEN"
	ErrLearnerAccessOnly  ErrCode = "LEARNER_ACCESS_ONLY"
	ErrPrerequisiteNotMet ErrCode = "PREREQUISITE_NOT_MET"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound     ErrCode = "NOT_FOUND"
	ErrUnknownTopic ErrCode = "UNKNOWN_TOPIC"

	// ─── Assessment ────────────────────────────────────────────────────
	ErrAssessmentTokenInvalid ErrCode = "ASSESSMENT_TOKEN_INVALID"
	ErrAssessmentTokenExpired ErrCode = "ASSESSMENT_TOKEN_EXPIRED"
	ErrTokenBindingMismatch   ErrCode = "TOKEN_BINDING_MISMATCH"
	ErrWrongPhase             ErrCode = "WRONG_PHASE"
	ErrOracleUnavailable      ErrCode = "ORACLE_UNAVAILABLE"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrTokenRequired:
		return "Authentication token is required."
	case ErrTokenInvalid:
		return "Authentication token is invalid."
	case ErrTokenExpired:
		return "Authentication token has expired."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrForbidden:
		return "You do not have permission to access this resource."
	case ErrLearnerAccessOnly:
		return "This resource is restricted to learners."
	case ErrPrerequisiteNotMet:
		return "Please verify your account before taking the placement test."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidPayload:
		return "Invalid request payload."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Resource not found."
	case ErrUnknownTopic:
		return "This language is not offered."

	// ─── Assessment ────────────────────────────────────────────────────
	case ErrAssessmentTokenInvalid:
		return "Assessment token is invalid. Please restart the assessment."
	case ErrAssessmentTokenExpired:
		return "Assessment session has expired. Please restart the assessment."
	case ErrTokenBindingMismatch:
		return "Answer key does not belong to this question."
	case ErrWrongPhase:
		return "This action is not allowed at the current stage of the assessment."
	case ErrOracleUnavailable:
		return "Question service is temporarily unavailable. Please retry."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "An internal server error occurred."
	default:
		return "An unexpected error occurred."
	}
}
