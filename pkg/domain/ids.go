// Package domain holds typed identifiers shared across modules. Signal and
// partner identifiers arrive from upstream systems in free-form shapes
// ("sig_1", "partner-ca"), so they are strings rather than UUIDs; the distinct
// types keep a PartnerID from being passed where a SignalID is expected.
package domain

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"

	dErrors "beacon/pkg/domain-errors"
)

// MaxIDLength bounds identifiers accepted at trust boundaries.
const MaxIDLength = 128

type (
	SignalID       string
	PartnerID      string
	ResultID       string
	BlackoutID     string
	EscalationID   string
	LegalRequestID string
)

func (id SignalID) String() string       { return string(id) }
func (id PartnerID) String() string      { return string(id) }
func (id ResultID) String() string       { return string(id) }
func (id BlackoutID) String() string     { return string(id) }
func (id EscalationID) String() string   { return string(id) }
func (id LegalRequestID) String() string { return string(id) }

func (id SignalID) IsNil() bool       { return id == "" }
func (id PartnerID) IsNil() bool      { return id == "" }
func (id ResultID) IsNil() bool       { return id == "" }
func (id EscalationID) IsNil() bool   { return id == "" }
func (id LegalRequestID) IsNil() bool { return id == "" }

func ParseSignalID(s string) (SignalID, error) {
	v, err := parseID("signal_id", s)
	return SignalID(v), err
}

func ParsePartnerID(s string) (PartnerID, error) {
	v, err := parseID("partner_id", s)
	return PartnerID(v), err
}

func ParseResultID(s string) (ResultID, error) {
	v, err := parseID("result_id", s)
	return ResultID(v), err
}

func ParseEscalationID(s string) (EscalationID, error) {
	v, err := parseID("escalation_id", s)
	return EscalationID(v), err
}

func ParseLegalRequestID(s string) (LegalRequestID, error) {
	v, err := parseID("legal_request_id", s)
	return LegalRequestID(v), err
}

func NewResultID() ResultID             { return ResultID(uuid.NewString()) }
func NewBlackoutID() BlackoutID         { return BlackoutID(uuid.NewString()) }
func NewEscalationID() EscalationID     { return EscalationID(uuid.NewString()) }
func NewLegalRequestID() LegalRequestID { return LegalRequestID(uuid.NewString()) }

// parseID rejects empty, oversized, non-UTF8, whitespace-padded, and
// control-character identifiers.
func parseID(field, s string) (string, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, field+" is required")
	}
	if len(s) > MaxIDLength {
		return "", dErrors.New(dErrors.CodeInvalidInput, field+" is too long")
	}
	if !utf8.ValidString(s) {
		return "", dErrors.New(dErrors.CodeInvalidInput, field+" must be valid UTF-8")
	}
	if strings.TrimSpace(s) != s {
		return "", dErrors.New(dErrors.CodeInvalidInput, field+" must not contain surrounding whitespace")
	}
	for _, r := range s {
		if unicode.IsControl(r) || unicode.IsSpace(r) || r == '\u200B' || r == '/' {
			return "", dErrors.New(dErrors.CodeInvalidInput, field+" contains invalid characters")
		}
	}
	return s, nil
}
