package service

import (
	"bytes"
	"course-checkout/internal/apperror"
	"course-checkout/internal/model"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"hash/crc32"
	"net/url"
	"strings"
	"unicode/utf8"
)

const (
	correlationVersion = "v1"
	// MaxCorrelationTokenLength fits the provider reference fields
	// (external_reference, purchase_units[].reference_id).
	MaxCorrelationTokenLength = 256
)

// CorrelationPayload is everything needed to grant the entitlement once the
// provider confirms the payment. It travels through the provider and is not
// stored on our side.
type CorrelationPayload struct {
	UserID       string         `json:"u"`
	ItemType     model.ItemKind `json:"t"`
	ItemRef      string         `json:"r"`
	DurationDays int            `json:"d"`
	CouponID     string         `json:"c,omitempty"`
}

func (p CorrelationPayload) validate() error {
	switch {
	case p.UserID == "":
		return errors.New("missing user id")
	case p.ItemType != model.ItemKindCourse && p.ItemType != model.ItemKindPlan:
		return fmt.Errorf("unknown item type %q", p.ItemType)
	case p.ItemRef == "":
		return errors.New("missing item ref")
	case p.DurationDays <= 0:
		return fmt.Errorf("non-positive duration %d", p.DurationDays)
	case !utf8.ValidString(p.UserID), !utf8.ValidString(p.ItemRef), !utf8.ValidString(p.CouponID):
		// json.Marshal would substitute U+FFFD and decode to a different payload
		return errors.New("payload is not valid utf-8")
	}
	return nil
}

type CorrelationCodec struct{}

// Encode renders p as "v1.<base64url json>.<crc32>". The output only uses
// URL-safe characters and is deterministic for a given payload.
func (CorrelationCodec) Encode(p CorrelationPayload) (string, error) {
	if err := p.validate(); err != nil {
		return "", fmt.Errorf("encode correlation payload: %w", err)
	}

	raw, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("marshal correlation payload: %w", err)
	}

	token := correlationVersion + "." +
		base64.RawURLEncoding.EncodeToString(raw) + "." +
		checksum(raw)
	if len(token) > MaxCorrelationTokenLength {
		return "", apperror.CatalogMisconfigured("correlation token is %d chars, limit is %d", len(token), MaxCorrelationTokenLength)
	}

	return token, nil
}

// Decode reverses Encode. It tolerates surrounding whitespace, up to two
// rounds of URL escaping, the standard base64 alphabet and padding. Anything
// else, including a truncated token, is CorrelationCorrupt.
func (CorrelationCodec) Decode(token string) (CorrelationPayload, error) {
	s := strings.TrimSpace(token)
	for i := 0; i < 2 && strings.Contains(s, "%"); i++ {
		unescaped, err := url.PathUnescape(s)
		if err != nil {
			return CorrelationPayload{}, corrupt("bad url escaping", err)
		}
		s = unescaped
	}

	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return CorrelationPayload{}, corrupt("malformed token", nil)
	}
	if parts[0] != correlationVersion {
		return CorrelationPayload{}, corrupt(fmt.Sprintf("unknown token version %q", parts[0]), nil)
	}

	body := strings.TrimRight(parts[1], "=")
	body = strings.NewReplacer("+", "-", "/", "_").Replace(body)
	raw, err := base64.RawURLEncoding.DecodeString(body)
	if err != nil {
		return CorrelationPayload{}, corrupt("bad token encoding", err)
	}
	if !strings.EqualFold(parts[2], checksum(raw)) {
		return CorrelationPayload{}, corrupt("checksum mismatch", nil)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	var p CorrelationPayload
	if err := dec.Decode(&p); err != nil {
		return CorrelationPayload{}, corrupt("bad token payload", err)
	}
	if err := p.validate(); err != nil {
		return CorrelationPayload{}, corrupt("invalid token payload", err)
	}

	return p, nil
}

func checksum(raw []byte) string {
	sum := crc32.ChecksumIEEE(raw)
	return hex.EncodeToString([]byte{byte(sum >> 24), byte(sum >> 16), byte(sum >> 8), byte(sum)})
}

func corrupt(message string, err error) error {
	return apperror.CorrelationCorrupt("correlation token corrupt: "+message, err)
}
