// Package webhook receives transfer outcomes from the payout provider.
package webhook

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	apperrors "github.com/louisbranch/escrow/internal/platform/errors"
	"github.com/louisbranch/escrow/internal/services/escrow/transfer"
)

// OutcomePath is where the provider posts outcome tokens.
const OutcomePath = "/v1/transfers/outcome"

const maxBodyBytes = 64 << 10

// Verifier turns an outcome token into a transfer report.
type Verifier interface {
	Verify(token string) (transfer.Report, error)
}

type handler struct {
	verifier Verifier
	reporter transfer.Reporter
	logger   *zap.Logger
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewHandler returns a mux serving OutcomePath. The request body is the
// compact JWT, or a JSON object with a "token" field.
func NewHandler(verifier Verifier, reporter transfer.Reporter, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &handler{verifier: verifier, reporter: reporter, logger: logger}
	mux := http.NewServeMux()
	mux.HandleFunc("POST "+OutcomePath, h.handleOutcome)
	return mux
}

func (h *handler) handleOutcome(w http.ResponseWriter, r *http.Request) {
	token, err := readToken(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, apperrors.CodeTransferInvalidReport, err.Error())
		return
	}
	report, err := h.verifier.Verify(token)
	if err != nil {
		h.logger.Warn("rejected transfer outcome token",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		writeError(w, http.StatusUnauthorized, apperrors.GetCode(err), "outcome token rejected")
		return
	}

	if err := h.reporter.Report(r.Context(), report); err != nil {
		code := apperrors.GetCode(err)
		status := statusFor(code)
		if status >= http.StatusInternalServerError {
			h.logger.Error("transfer outcome not applied",
				zap.String("transfer_id", report.Request.ID),
				zap.String("kind", string(report.Request.Kind)),
				zap.Error(err),
			)
		} else {
			h.logger.Warn("transfer outcome refused",
				zap.String("transfer_id", report.Request.ID),
				zap.String("code", string(code)),
				zap.Error(err),
			)
		}
		message := apperrors.LocalizedMessage(apperrors.HandleError(err, r.Header.Get("Accept-Language")))
		if message == "" {
			message = "transfer outcome could not be applied"
		}
		writeError(w, status, code, message)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func readToken(r *http.Request) (string, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return "", err
	}
	raw := strings.TrimSpace(string(body))
	if strings.HasPrefix(raw, "{") {
		var payload struct {
			Token string `json:"token"`
		}
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			return "", err
		}
		raw = strings.TrimSpace(payload.Token)
	}
	if raw == "" {
		return "", errEmptyToken
	}
	return raw, nil
}

var errEmptyToken = apperrors.New(apperrors.CodeTransferInvalidReport, "outcome token is required")

func statusFor(code apperrors.Code) int {
	switch code {
	case apperrors.CodeNotFound:
		return http.StatusNotFound
	case apperrors.CodeInvalidState:
		return http.StatusConflict
	case apperrors.CodeTransferOutcomeCount, apperrors.CodeTransferAmountMismatch, apperrors.CodeTransferInvalidReport:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, status int, code apperrors.Code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Code: string(code), Message: message})
}
