package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"
	ErrTokenExpired       ErrCode = "TOKEN_EXPIRED"
	ErrTokenRevoked       ErrCode = "TOKEN_REVOKED"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden       ErrCode = "FORBIDDEN"
	ErrRoleRequired    ErrCode = "ROLE_REQUIRED"
	ErrIPNotAllowed    ErrCode = "IP_NOT_ALLOWED"
	ErrSecureBrowser   ErrCode = "SECURE_BROWSER_REQUIRED"
	ErrMaintenanceMode ErrCode = "MAINTENANCE_MODE"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"
	ErrConflict ErrCode = "CONFLICT"

	// ─── Test & session ────────────────────────────────────────────────
	ErrTestNotAccessible   ErrCode = "TEST_NOT_ACCESSIBLE"
	ErrMaxAttemptsExceeded ErrCode = "MAX_ATTEMPTS_EXCEEDED"
	ErrSessionNotActive    ErrCode = "SESSION_NOT_ACTIVE"
	ErrSessionTerminal     ErrCode = "SESSION_ALREADY_TERMINAL"
	ErrTimeExpired         ErrCode = "TIME_EXPIRED"
	ErrTestPublished       ErrCode = "TEST_PUBLISHED"
	ErrNotTestAuthor       ErrCode = "NOT_TEST_AUTHOR"
	ErrNoQuestions         ErrCode = "NO_QUESTIONS"
	ErrNotEssay            ErrCode = "NOT_AN_ESSAY"
	ErrNotGraded           ErrCode = "SESSION_NOT_GRADED"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrInvalidCredentials:
		return "Invalid username or password."
	case ErrTokenRequired:
		return "An authentication token is required."
	case ErrTokenInvalid:
		return "The authentication token is invalid."
	case ErrTokenExpired:
		return "The authentication token has expired."
	case ErrTokenRevoked:
		return "The authentication token has been revoked."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrForbidden:
		return "You do not have permission to access this resource."
	case ErrRoleRequired:
		return "Your account role does not permit this action."
	case ErrIPNotAllowed:
		return "This test cannot be taken from your network location."
	case ErrSecureBrowser:
		return "This test must be taken in the secure exam browser."
	case ErrMaintenanceMode:
		return "The platform is under maintenance. Please try again later."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "The ID format is invalid."
	case ErrInvalidPayload:
		return "The request payload is invalid."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Resource not found."
	case ErrConflict:
		return "The resource already exists."

	// ─── Test & session ────────────────────────────────────────────────
	case ErrTestNotAccessible:
		return "This test is not accessible right now."
	case ErrMaxAttemptsExceeded:
		return "You have used all allowed attempts for this test."
	case ErrSessionNotActive:
		return "This exam session is no longer active."
	case ErrSessionTerminal:
		return "This exam session has already finished."
	case ErrTimeExpired:
		return "The test duration has been exceeded."
	case ErrTestPublished:
		return "Published tests cannot be edited. Unpublish first."
	case ErrNotTestAuthor:
		return "You are not the author of this test."
	case ErrNoQuestions:
		return "This test has no questions."
	case ErrNotEssay:
		return "This question is not an essay."
	case ErrNotGraded:
		return "This session has not finished yet."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please slow down."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "An internal error occurred. Please try again later."

	default:
		return "An unknown error occurred."
	}
}
