// Package errors provides structured error handling with i18n support.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Lookup errors
	CodeNotFound Code = "NOT_FOUND"

	// Identity errors
	CodeUnauthorized  Code = "UNAUTHORIZED"
	CodeCallerMissing Code = "CALLER_MISSING"

	// Input errors
	CodeInvalidAmount   Code = "INVALID_AMOUNT"
	CodeInvalidDuration Code = "INVALID_DURATION"
	CodeInvalidArgument Code = "INVALID_ARGUMENT"

	// Lifecycle errors
	CodeInvalidState      Code = "INVALID_STATE"
	CodeDeadlinePassed    Code = "DEADLINE_PASSED"
	CodeDeadlineNotPassed Code = "DEADLINE_NOT_PASSED"
	CodeGoalMet           Code = "GOAL_MET"
	CodeInsufficientFunds Code = "INSUFFICIENT_FUNDS"
	CodeNoContribution    Code = "NO_CONTRIBUTION"

	// Transfer errors
	CodeTransferOutcomeCount   Code = "TRANSFER_OUTCOME_COUNT"
	CodeTransferAmountMismatch Code = "TRANSFER_AMOUNT_MISMATCH"
	CodeTransferSubmitFailed   Code = "TRANSFER_SUBMIT_FAILED"
	CodeTransferInvalidReport  Code = "TRANSFER_INVALID_REPORT"
	// The primitive may or may not have taken the request; the record stays
	// open until an outcome arrives.
	CodeTransferSubmitUnconfirmed Code = "TRANSFER_SUBMIT_UNCONFIRMED"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// InvalidArgument - validation failures, bad input
	case CodeInvalidAmount,
		CodeInvalidDuration,
		CodeInvalidArgument,
		CodeTransferInvalidReport:
		return codes.InvalidArgument

	// FailedPrecondition - state doesn't allow operation
	case CodeInvalidState,
		CodeDeadlinePassed,
		CodeDeadlineNotPassed,
		CodeGoalMet,
		CodeInsufficientFunds,
		CodeNoContribution:
		return codes.FailedPrecondition

	case CodeNotFound:
		return codes.NotFound

	case CodeUnauthorized:
		return codes.PermissionDenied

	case CodeCallerMissing:
		return codes.Unauthenticated

	// Unavailable - the transfer primitive rejected the hand-off
	case CodeTransferSubmitFailed:
		return codes.Unavailable

	// DeadlineExceeded - the hand-off may have completed
	case CodeTransferSubmitUnconfirmed:
		return codes.DeadlineExceeded

	default:
		return codes.Internal
	}
}
