package i18n

// Error codes must match the codes defined in internal/platform/errors/codes.go.
// These are duplicated as strings to avoid an import cycle.
const (
	CodeNotFound               = "NOT_FOUND"
	CodeUnauthorized           = "UNAUTHORIZED"
	CodeCallerMissing          = "CALLER_MISSING"
	CodeInvalidAmount          = "INVALID_AMOUNT"
	CodeInvalidDuration        = "INVALID_DURATION"
	CodeInvalidArgument        = "INVALID_ARGUMENT"
	CodeInvalidState           = "INVALID_STATE"
	CodeDeadlinePassed         = "DEADLINE_PASSED"
	CodeDeadlineNotPassed      = "DEADLINE_NOT_PASSED"
	CodeGoalMet                = "GOAL_MET"
	CodeInsufficientFunds      = "INSUFFICIENT_FUNDS"
	CodeNoContribution         = "NO_CONTRIBUTION"
	CodeTransferOutcomeCount   = "TRANSFER_OUTCOME_COUNT"
	CodeTransferAmountMismatch = "TRANSFER_AMOUNT_MISMATCH"
	CodeTransferSubmitFailed   = "TRANSFER_SUBMIT_FAILED"
	CodeTransferInvalidReport  = "TRANSFER_INVALID_REPORT"

	CodeTransferSubmitUnconfirmed = "TRANSFER_SUBMIT_UNCONFIRMED"
)

var enUSMessages = map[Code]string{
	CodeNotFound:               "{{if .Resource}}{{.Resource}}{{else}}resource{{end}} not found",
	CodeUnauthorized:           "you are not allowed to perform this action",
	CodeCallerMissing:          "caller identity is required",
	CodeInvalidAmount:          "amount must be greater than zero",
	CodeInvalidDuration:        "duration must be greater than zero",
	CodeInvalidArgument:        "{{if .Field}}{{.Field}} is invalid{{else}}invalid argument{{end}}",
	CodeInvalidState:           "campaign is {{if .Status}}{{.Status}}{{else}}not in a valid state{{end}} and does not allow this operation",
	CodeDeadlinePassed:         "campaign deadline has passed",
	CodeDeadlineNotPassed:      "campaign deadline has not passed yet",
	CodeGoalMet:                "campaign reached its funding goal; refunds are not available",
	CodeInsufficientFunds:      "requested {{.Requested}} exceeds available funds {{.Available}}",
	CodeNoContribution:         "you have no contribution to refund",
	CodeTransferOutcomeCount:   "transfer confirmation carried an unexpected number of outcomes",
	CodeTransferAmountMismatch: "transfer confirmation amount does not match the pending withdrawal",
	CodeTransferSubmitFailed:   "transfer could not be submitted; try again later",
	CodeTransferInvalidReport:  "transfer report is invalid",

	CodeTransferSubmitUnconfirmed: "transfer {{.TransferID}} was sent but not confirmed; its outcome will be applied when it arrives",
}
