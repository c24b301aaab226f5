package validate

import (
	"context"
	"log/slog"
	"strings"

	"github.com/nyaruka/phonenumbers"

	"github.com/guillemso1er/orbitcheck-sub001/pkg/otp"
	"github.com/guillemso1er/orbitcheck-sub001/pkg/reason"
)

// PhoneResult is the verdict for one phone number.
type PhoneResult struct {
	Valid          bool     `json:"valid"`
	E164           string   `json:"e164,omitempty"`
	Country        string   `json:"country,omitempty"`
	VerificationID string   `json:"verification_id,omitempty"`
	ReasonCodes    []string `json:"reason_codes"`
}

// PhoneValidator parses numbers to E.164 and optionally starts an OTP
// verification for possession checks.
type PhoneValidator struct {
	provider otp.Provider
	logger   *slog.Logger
}

// NewPhoneValidator wires the validator. provider may be nil when no OTP
// service is configured; OTP requests then fail soft.
func NewPhoneValidator(provider otp.Provider, logger *slog.Logger) *PhoneValidator {
	return &PhoneValidator{provider: provider, logger: logger}
}

// Validate parses raw with an optional ISO-3166 country hint. sendOTP asks
// the provider to start a verification; provider failure degrades to
// phone.otp_send_failed without changing the parse verdict.
func (v *PhoneValidator) Validate(ctx context.Context, raw, countryHint string, sendOTP bool) *PhoneResult {
	res := &PhoneResult{ReasonCodes: []string{}}

	num, err := phonenumbers.Parse(strings.TrimSpace(raw), strings.ToUpper(countryHint))
	if err != nil {
		res.ReasonCodes = append(res.ReasonCodes, reason.PhoneUnparseable)
		return res
	}
	if !phonenumbers.IsValidNumber(num) {
		res.ReasonCodes = append(res.ReasonCodes, reason.PhoneInvalidFormat)
		return res
	}

	res.Valid = true
	res.E164 = phonenumbers.Format(num, phonenumbers.E164)
	res.Country = phonenumbers.GetRegionCodeForNumber(num)

	if sendOTP {
		if v.provider == nil {
			res.ReasonCodes = append(res.ReasonCodes, reason.PhoneOTPSendFailed)
			return res
		}
		id, err := v.provider.Start(ctx, res.E164)
		if err != nil {
			v.logger.Warn("otp start failed", "error", err)
			res.ReasonCodes = append(res.ReasonCodes, reason.PhoneOTPSendFailed)
			return res
		}
		res.VerificationID = id
		res.ReasonCodes = append(res.ReasonCodes, reason.PhoneOTPSent)
	}
	return res
}

// OTPResult is the outcome of an OTP code check.
type OTPResult struct {
	Valid       bool     `json:"valid"`
	ReasonCodes []string `json:"reason_codes"`
}

// VerifyOTP checks a submitted code against a started verification.
// Provider failures count as an invalid code.
func (v *PhoneValidator) VerifyOTP(ctx context.Context, verificationSid, code string) *OTPResult {
	if v.provider == nil {
		return &OTPResult{ReasonCodes: []string{reason.PhoneOTPInvalid}}
	}
	approved, err := v.provider.Check(ctx, verificationSid, code)
	if err != nil {
		v.logger.Warn("otp check failed", "error", err)
		return &OTPResult{ReasonCodes: []string{reason.PhoneOTPInvalid}}
	}
	if !approved {
		return &OTPResult{ReasonCodes: []string{reason.PhoneOTPInvalid}}
	}
	return &OTPResult{Valid: true, ReasonCodes: []string{}}
}

// NormalizePhone returns the E.164 form without a full validation pass.
// ok=false when the number cannot be parsed or is invalid.
func NormalizePhone(raw, countryHint string) (e164 string, country string, ok bool) {
	num, err := phonenumbers.Parse(strings.TrimSpace(raw), strings.ToUpper(countryHint))
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return "", "", false
	}
	return phonenumbers.Format(num, phonenumbers.E164), phonenumbers.GetRegionCodeForNumber(num), true
}
