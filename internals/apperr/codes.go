package apperr

import "net/http"

// Code is a machine-readable error code returned to clients.
type Code string

const (
	CodeUnknown Code = "UNKNOWN"

	// Validation
	CodeInvalidInput Code = "INVALID_INPUT"

	// Business rules
	CodeAuctionInactive   Code = "AUCTION_INACTIVE"
	CodeNoActiveLot       Code = "NO_ACTIVE_LOT"
	CodeBidTooLow         Code = "BID_TOO_LOW"
	CodeWrongPlayerStatus Code = "WRONG_PLAYER_STATUS"
	CodeBudgetExceeded    Code = "BUDGET_EXCEEDED"
	CodeNoAcceptedBid     Code = "NO_ACCEPTED_BID"
	CodeInsufficientFunds Code = "INSUFFICIENT_FUNDS"
	CodeQueueEmpty        Code = "QUEUE_EMPTY"
	CodeForbidden         Code = "FORBIDDEN"
	CodeUnauthorized      Code = "UNAUTHORIZED"

	// Conflicts
	CodeConcurrentBidLost Code = "CONCURRENT_BID_LOST"
	CodeAuctionBusy       Code = "AUCTION_BUSY"
	CodeConflict          Code = "CONFLICT"

	CodeNotFound Code = "NOT_FOUND"

	CodeStorageUnavailable Code = "STORAGE_UNAVAILABLE"
)

// HTTPStatus maps a code to the status the API answers with.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeInvalidInput:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeAuctionInactive, CodeNoActiveLot, CodeBidTooLow, CodeWrongPlayerStatus,
		CodeBudgetExceeded, CodeNoAcceptedBid, CodeInsufficientFunds, CodeQueueEmpty:
		return http.StatusUnprocessableEntity
	case CodeConcurrentBidLost, CodeAuctionBusy, CodeConflict:
		return http.StatusConflict
	case CodeStorageUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Retryable reports whether the caller may refetch state and try again.
func (c Code) Retryable() bool {
	switch c {
	case CodeConcurrentBidLost, CodeAuctionBusy, CodeConflict, CodeStorageUnavailable:
		return true
	}
	return false
}
