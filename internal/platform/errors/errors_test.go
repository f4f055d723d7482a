package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestErrorIsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("load campaign: %w", New(CodeNotFound, "campaign 7 not found"))
	if !stderrors.Is(err, New(CodeNotFound, "")) {
		t.Fatal("expected errors.Is to match by code")
	}
	if stderrors.Is(err, New(CodeGoalMet, "")) {
		t.Fatal("expected different code not to match")
	}
}

func TestNotFoundCarriesResourceMetadata(t *testing.T) {
	err := NotFound("withdrawal", "tr-9")
	if err.Code != CodeNotFound || err.Message != "withdrawal not found" {
		t.Fatalf("err = %+v", err)
	}
	if md := err.Metadata; md["Resource"] != "withdrawal" || md["ID"] != "tr-9" {
		t.Fatalf("metadata = %v", md)
	}
}

func TestTransferErrorKeepsTransferID(t *testing.T) {
	extra := map[string]string{"Count": "2", "TransferID": "ignored"}
	err := TransferError(CodeTransferOutcomeCount, "bad count", "tr-1", extra)
	if err.Metadata["TransferID"] != "tr-1" || err.Metadata["Count"] != "2" {
		t.Fatalf("metadata = %v", err.Metadata)
	}
	if extra["TransferID"] != "ignored" {
		t.Fatal("input metadata was modified")
	}
}

func TestWithCauseCopiesError(t *testing.T) {
	base := New(CodeTransferSubmitUnconfirmed, "submit withdrawal transfer")
	cause := stderrors.New("context deadline exceeded")
	wrapped := base.WithCause(cause)
	if base.Cause != nil {
		t.Fatal("expected base error unchanged")
	}
	if !stderrors.Is(wrapped, cause) || wrapped.Code != CodeTransferSubmitUnconfirmed {
		t.Fatalf("wrapped = %+v", wrapped)
	}
}

func TestWrapMessageIncludesCause(t *testing.T) {
	err := Wrap(CodeTransferSubmitFailed, "submit withdrawal", stderrors.New("dial tcp: refused"))
	if got := err.Error(); got != "submit withdrawal: dial tcp: refused" {
		t.Fatalf("Error() = %q", got)
	}
	if stderrors.Unwrap(err) == nil {
		t.Fatal("expected cause to unwrap")
	}
}

func TestGRPCCodeMapping(t *testing.T) {
	tests := []struct {
		code Code
		want codes.Code
	}{
		{CodeNotFound, codes.NotFound},
		{CodeUnauthorized, codes.PermissionDenied},
		{CodeCallerMissing, codes.Unauthenticated},
		{CodeInvalidAmount, codes.InvalidArgument},
		{CodeInvalidDuration, codes.InvalidArgument},
		{CodeInvalidState, codes.FailedPrecondition},
		{CodeDeadlinePassed, codes.FailedPrecondition},
		{CodeDeadlineNotPassed, codes.FailedPrecondition},
		{CodeGoalMet, codes.FailedPrecondition},
		{CodeInsufficientFunds, codes.FailedPrecondition},
		{CodeNoContribution, codes.FailedPrecondition},
		{CodeTransferOutcomeCount, codes.Internal},
		{CodeTransferAmountMismatch, codes.Internal},
		{CodeTransferSubmitFailed, codes.Unavailable},
		{CodeTransferSubmitUnconfirmed, codes.DeadlineExceeded},
		{CodeUnknown, codes.Internal},
	}
	for _, tt := range tests {
		if got := tt.code.GRPCCode(); got != tt.want {
			t.Fatalf("%s.GRPCCode() = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestHandleErrorAttachesDetails(t *testing.T) {
	err := WithMetadata(CodeInsufficientFunds, "withdraw 10 of 4", map[string]string{
		"Requested": "10",
		"Available": "4",
	})

	got := HandleError(err, "")
	st, ok := status.FromError(got)
	if !ok {
		t.Fatalf("expected status error, got %v", got)
	}
	if st.Code() != codes.FailedPrecondition {
		t.Fatalf("code = %v, want %v", st.Code(), codes.FailedPrecondition)
	}

	var info *errdetails.ErrorInfo
	var localized *errdetails.LocalizedMessage
	for _, detail := range st.Details() {
		switch d := detail.(type) {
		case *errdetails.ErrorInfo:
			info = d
		case *errdetails.LocalizedMessage:
			localized = d
		}
	}
	if info == nil || info.GetReason() != string(CodeInsufficientFunds) || info.GetDomain() != Domain {
		t.Fatalf("unexpected error info: %v", info)
	}
	if localized == nil || localized.GetLocale() != DefaultLocale {
		t.Fatalf("unexpected localized message: %v", localized)
	}
	if localized.GetMessage() != "requested 10 exceeds available funds 4" {
		t.Fatalf("localized message = %q", localized.GetMessage())
	}
}

func TestHandleErrorLocalizes(t *testing.T) {
	got := HandleError(New(CodeGoalMet, "goal met"), "pt-BR")
	if msg := LocalizedMessage(got); msg != "a campanha atingiu a meta; reembolsos não estão disponíveis" {
		t.Fatalf("localized message = %q", msg)
	}
}

func TestHandleErrorUnknown(t *testing.T) {
	got := HandleError(stderrors.New("disk on fire"), "")
	if status.Code(got) != codes.Internal {
		t.Fatalf("code = %v, want Internal", status.Code(got))
	}
	if HandleError(nil, "") != nil {
		t.Fatal("expected nil for nil error")
	}
	passthrough := status.Error(codes.Canceled, "canceled")
	if HandleError(passthrough, "") != passthrough {
		t.Fatal("expected status errors to pass through")
	}
}

func TestFromGRPCStatusRoundTrip(t *testing.T) {
	wire := HandleError(New(CodeDeadlinePassed, "deadline passed"), "")
	back := FromGRPCStatus(wire)
	if !IsCode(back, CodeDeadlinePassed) {
		t.Fatalf("code = %s, want %s", GetCode(back), CodeDeadlinePassed)
	}

	plain := status.Error(codes.Unavailable, "down")
	if FromGRPCStatus(plain) != plain {
		t.Fatal("expected status without details to be returned unchanged")
	}
}

func TestGetMetadata(t *testing.T) {
	err := WithMetadata(CodeNotFound, "missing", map[string]string{"Resource": "campaign"})
	if GetMetadata(err)["Resource"] != "campaign" {
		t.Fatal("expected metadata")
	}
	if GetMetadata(stderrors.New("x")) != nil {
		t.Fatal("expected nil metadata for non-domain error")
	}
}
