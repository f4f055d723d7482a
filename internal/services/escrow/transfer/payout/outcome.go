package payout

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/louisbranch/escrow/internal/platform/errors"
	"github.com/louisbranch/escrow/internal/services/escrow/transfer"
)

const defaultOutcomeTTL = 5 * time.Minute

// OutcomeConfig defines how outcome tokens are signed and verified.
type OutcomeConfig struct {
	Secret   []byte
	Issuer   string
	Audience string
	Now      func() time.Time
}

func (c OutcomeConfig) validate() error {
	if len(c.Secret) < 32 {
		return errors.New("outcome secret must be at least 32 bytes")
	}
	if strings.TrimSpace(c.Issuer) == "" || strings.TrimSpace(c.Audience) == "" {
		return errors.New("outcome issuer and audience are required")
	}
	return nil
}

func (c OutcomeConfig) now() time.Time {
	if c.Now == nil {
		return time.Now().UTC()
	}
	return c.Now().UTC()
}

// outcomeClaims is the JWT body the payout provider posts back.
type outcomeClaims struct {
	jwt.RegisteredClaims
	Transfer transfer.Request   `json:"transfer"`
	Outcomes []transfer.Outcome `json:"outcomes"`
}

// Verifier checks outcome tokens posted by the payout provider.
type Verifier struct {
	cfg OutcomeConfig
}

// NewVerifier validates cfg and returns a Verifier.
func NewVerifier(cfg OutcomeConfig) (*Verifier, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Verifier{cfg: cfg}, nil
}

// Verify parses token and returns the transfer report it carries. The
// outcome count is passed through unchecked; confirmation rejects bad counts.
func (v *Verifier) Verify(token string) (transfer.Report, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return transfer.Report{}, apperrors.New(apperrors.CodeTransferInvalidReport, "outcome token is required")
	}

	var parsed outcomeClaims
	_, err := jwt.ParseWithClaims(token, &parsed, func(*jwt.Token) (any, error) {
		return v.cfg.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return transfer.Report{}, mapJWTError(err)
	}

	if parsed.Issuer != v.cfg.Issuer {
		return transfer.Report{}, invalidClaim("issuer")
	}
	if !slices.Contains([]string(parsed.Audience), v.cfg.Audience) {
		return transfer.Report{}, invalidClaim("audience")
	}
	if parsed.ExpiresAt == nil || !parsed.ExpiresAt.Time.After(v.cfg.now()) {
		return transfer.Report{}, apperrors.New(apperrors.CodeTransferInvalidReport, "outcome token is expired")
	}
	if parsed.Subject == "" || parsed.Subject != parsed.Transfer.ID {
		return transfer.Report{}, invalidClaim("sub")
	}
	if err := parsed.Transfer.Validate(); err != nil {
		return transfer.Report{}, apperrors.Wrap(apperrors.CodeTransferInvalidReport, "outcome token transfer is invalid", err)
	}
	return transfer.Report{Request: parsed.Transfer, Outcomes: parsed.Outcomes}, nil
}

// Signer issues outcome tokens. The payout provider holds the same secret;
// the local tooling and tests use Signer to play that role.
type Signer struct {
	cfg OutcomeConfig
	ttl time.Duration
}

// NewSigner validates cfg and returns a Signer whose tokens live for ttl.
func NewSigner(cfg OutcomeConfig, ttl time.Duration) (*Signer, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = defaultOutcomeTTL
	}
	return &Signer{cfg: cfg, ttl: ttl}, nil
}

// Sign encodes report as an HS256 token.
func (s *Signer) Sign(report transfer.Report) (string, error) {
	now := s.cfg.now()
	claims := outcomeClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.cfg.Issuer,
			Audience:  jwt.ClaimStrings{s.cfg.Audience},
			Subject:   report.Request.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		Transfer: report.Request,
		Outcomes: report.Outcomes,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.cfg.Secret)
	if err != nil {
		return "", fmt.Errorf("sign outcome token: %w", err)
	}
	return token, nil
}

func invalidClaim(field string) error {
	return apperrors.WithMetadata(apperrors.CodeTransferInvalidReport, "outcome token "+field+" mismatch", map[string]string{
		"Field": field,
	})
}

func mapJWTError(err error) error {
	if errors.Is(err, jwt.ErrTokenSignatureInvalid) {
		return apperrors.New(apperrors.CodeTransferInvalidReport, "outcome token signature is invalid")
	}
	if errors.Is(err, jwt.ErrTokenUnverifiable) {
		return apperrors.New(apperrors.CodeTransferInvalidReport, "outcome token alg is invalid")
	}
	return apperrors.New(apperrors.CodeTransferInvalidReport, "outcome token is invalid")
}
