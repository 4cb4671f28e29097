package token

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Reason classifies a gate decision. Deny reasons are logged
// individually but collapsed to 403 for callers, except for malformed
// input (400) and expiry (410).
type Reason string

const (
	Allow          Reason = "allow"
	DenyMalformed  Reason = "malformed"
	DenyExpired    Reason = "expired"
	DenyIPMismatch Reason = "ip_mismatch"
	DenySignature  Reason = "bad_signature"
	DenyBlocked    Reason = "blocked"
)

// Decision is the outcome of verifying one download request.
type Decision struct {
	Reason  Reason
	Message string
}

func (d Decision) Allowed() bool { return d.Reason == Allow }

// Status maps the decision to the HTTP status served to the client.
// Forbidden reasons are deliberately indistinguishable to avoid giving
// probes an oracle.
func (d Decision) Status() int {
	switch d.Reason {
	case Allow:
		return http.StatusOK
	case DenyMalformed:
		return http.StatusBadRequest
	case DenyExpired:
		return http.StatusGone
	default:
		return http.StatusForbidden
	}
}

// BlockChecker is the blocklist surface the verifier needs.
type BlockChecker interface {
	Contains(ip string) bool
}

type Verifier struct {
	signer    *Signer
	bindIP    bool
	blocklist BlockChecker
	now       func() time.Time
}

func NewVerifier(signer *Signer, bindIP bool, blocklist BlockChecker, now func() time.Time) *Verifier {
	if now == nil {
		now = time.Now
	}
	return &Verifier{signer: signer, bindIP: bindIP, blocklist: blocklist, now: now}
}

// Verify runs the gate checks in fail-fast order: malformed input,
// expiry, binding, signature, blocklist. Expiry is checked before the
// signature so expired links always report "expired" uniformly.
func (v *Verifier) Verify(file, expStr, sig, ipParam, observedIP string) Decision {
	if err := CheckFilename(file); err != nil {
		return Decision{Reason: DenyMalformed, Message: "invalid file name"}
	}

	expStr = strings.TrimSpace(expStr)
	if expStr == "" {
		return Decision{Reason: DenyMalformed, Message: "missing exp"}
	}
	exp, err := strconv.ParseInt(expStr, 10, 64)
	if err != nil {
		return Decision{Reason: DenyMalformed, Message: "malformed exp"}
	}
	if v.now().Unix() >= exp {
		return Decision{Reason: DenyExpired, Message: "token expired"}
	}

	if strings.TrimSpace(sig) == "" {
		return Decision{Reason: DenyMalformed, Message: "missing sig"}
	}

	boundIP := strings.TrimSpace(ipParam)
	if v.bindIP {
		if boundIP == "" {
			return Decision{Reason: DenyMalformed, Message: "missing ip"}
		}
		if observedIP != "" && observedIP != boundIP {
			return Decision{Reason: DenyIPMismatch, Message: "token bound to a different address"}
		}
	}

	if !v.signer.Equal(CanonicalMessage(file, exp, boundIP), sig) {
		return Decision{Reason: DenySignature, Message: "signature mismatch"}
	}

	if v.blocklist != nil && observedIP != "" && v.blocklist.Contains(observedIP) {
		return Decision{Reason: DenyBlocked, Message: "address is blocklisted"}
	}

	return Decision{Reason: Allow}
}
