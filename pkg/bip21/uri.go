// Package bip21 implements the BIP 21 payment request URI format.
//
// URI Format:
//
//	bitcoin:<address>?amount=<BTC>&label=<label>&message=<message>
//
// Amounts are decimal bitcoin with at most 8 fractional digits and are held
// as satoshis. Parameters prefixed with "req-" are required extensions; an
// unknown one makes the URI invalid.
package bip21

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/tinyblock/tinyblock/pkg/crypto"
)

const (
	scheme = "bitcoin:"

	// SatoshisPerBitcoin is the number of satoshis in one bitcoin.
	SatoshisPerBitcoin = 100_000_000

	maxFractionDigits = 8
)

// PaymentRequest is a parsed BIP 21 URI.
type PaymentRequest struct {
	Address string  // P2PKH address
	Amount  *uint64 // satoshis; nil when the payer chooses
	Label   string
	Message string
}

// Parse parses a BIP 21 URI.
//
// The scheme is matched case-insensitively and the address must be a valid
// P2PKH address on either network. Query values are percent-decoded.
//
// Example:
//
//	bitcoin:1BgGZ9tcN4rm9KBzDn7KprQz87SZ26SAMH?amount=0.0015&label=rent
//
// Returns an error for a repeated parameter, a malformed amount, or a
// "req-" parameter this package does not understand.
func Parse(uri string) (*PaymentRequest, error) {
	if len(uri) < len(scheme) || !strings.EqualFold(uri[:len(scheme)], scheme) {
		return nil, errors.Errorf("uri must start with %q", scheme)
	}
	rest := uri[len(scheme):]

	address, query, _ := strings.Cut(rest, "?")
	if address == "" {
		return nil, errors.New("uri has no address")
	}
	if _, _, err := crypto.DecodeAddress(address); err != nil {
		return nil, errors.Wrapf(err, "invalid address %s", address)
	}

	params, err := url.ParseQuery(query)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse query")
	}

	req := &PaymentRequest{Address: address}
	for key, values := range params {
		if len(values) > 1 {
			return nil, errors.Errorf("parameter %s given more than once", key)
		}
		value := values[0]

		switch key {
		case "amount":
			amount, err := ParseAmount(value)
			if err != nil {
				return nil, errors.Wrap(err, "invalid amount")
			}
			req.Amount = &amount
		case "label":
			req.Label = value
		case "message":
			req.Message = value
		default:
			if strings.HasPrefix(key, "req-") {
				return nil, errors.Errorf("unsupported required parameter %s", key)
			}
		}
	}

	return req, nil
}

// ParseAmount converts a decimal bitcoin amount such as "0.0015" into
// satoshis without going through floating point.
//
// Parameters:
//   - s: digits with an optional point and at most 8 fractional digits;
//     no sign, exponent or grouping
//
// Returns an error if s is malformed or does not fit in a uint64.
func ParseAmount(s string) (uint64, error) {
	whole, frac, hasPoint := strings.Cut(s, ".")
	if whole == "" && frac == "" {
		return 0, errors.Errorf("empty amount %q", s)
	}
	if hasPoint && frac == "" {
		return 0, errors.Errorf("amount %q has a trailing point", s)
	}
	if len(frac) > maxFractionDigits {
		return 0, errors.Errorf("amount %q has more than %d decimal places", s, maxFractionDigits)
	}
	if !allDigits(whole) || !allDigits(frac) {
		return 0, errors.Errorf("amount %q is not a non-negative decimal", s)
	}

	var btc uint64
	if whole != "" {
		var err error
		btc, err = strconv.ParseUint(whole, 10, 64)
		if err != nil || btc > (1<<64-1)/SatoshisPerBitcoin {
			return 0, errors.Errorf("amount %q is too large", s)
		}
	}

	frac += strings.Repeat("0", maxFractionDigits-len(frac))
	sats, err := strconv.ParseUint(frac, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "amount %q", s)
	}

	total := btc*SatoshisPerBitcoin + sats
	if total < sats {
		return 0, errors.Errorf("amount %q is too large", s)
	}
	return total, nil
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// FormatAmount renders satoshis as decimal bitcoin without trailing zeros.
func FormatAmount(sats uint64) string {
	str := strconv.FormatUint(sats/SatoshisPerBitcoin, 10)
	if frac := sats % SatoshisPerBitcoin; frac != 0 {
		digits := strconv.FormatUint(frac, 10)
		digits = strings.Repeat("0", maxFractionDigits-len(digits)) + digits
		str += "." + strings.TrimRight(digits, "0")
	}
	return str
}

// Encode renders the request as a URI. It is the inverse of Parse.
func (req *PaymentRequest) Encode() string {
	uri := scheme + req.Address

	params := url.Values{}
	if req.Amount != nil {
		params.Set("amount", FormatAmount(*req.Amount))
	}
	if req.Label != "" {
		params.Set("label", req.Label)
	}
	if req.Message != "" {
		params.Set("message", req.Message)
	}

	if len(params) > 0 {
		uri += "?" + params.Encode()
	}
	return uri
}
