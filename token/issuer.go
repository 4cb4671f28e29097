package token

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

var (
	ErrBadFilename     = errors.New("token: invalid file name")
	ErrMissingClientIP = errors.New("token: client ip required when binding is enabled")
)

// SignedURL is the result of minting a download token.
type SignedURL struct {
	URL    string `json:"url"`
	File   string `json:"file"`
	Exp    int64  `json:"exp"`
	TTL    int64  `json:"ttl"`
	BindIP bool   `json:"bind_ip"`
	IP     string `json:"ip,omitempty"`
}

// IssuerOptions configures token minting. TTLs outside [TTLMin, TTLMax]
// are clamped rather than rejected.
type IssuerOptions struct {
	BaseURL    string
	BindIP     bool
	TTLDefault time.Duration
	TTLMin     time.Duration
	TTLMax     time.Duration
	Now        func() time.Time
}

type Issuer struct {
	signer *Signer
	opts   IssuerOptions
}

func NewIssuer(signer *Signer, opts IssuerOptions) *Issuer {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.TTLDefault <= 0 {
		opts.TTLDefault = 24 * time.Hour
	}
	if opts.TTLMin <= 0 {
		opts.TTLMin = time.Minute
	}
	if opts.TTLMax < opts.TTLMin {
		opts.TTLMax = opts.TTLMin
	}
	return &Issuer{signer: signer, opts: opts}
}

// CheckFilename rejects names that could escape the downloads
// directory. Download files live flat, so separators are never legal.
func CheckFilename(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrBadFilename
	}
	if strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return ErrBadFilename
	}
	return nil
}

// CanonicalMessage is the exact byte string the MAC covers. The empty
// ip slot is kept so bound and unbound tokens can never collide.
func CanonicalMessage(file string, exp int64, ip string) string {
	return file + "|" + strconv.FormatInt(exp, 10) + "|" + ip
}

// Issue mints a signed download URL for file. ttl <= 0 selects the
// configured default.
func (i *Issuer) Issue(file string, ttl time.Duration, clientIP string) (*SignedURL, error) {
	if err := CheckFilename(file); err != nil {
		return nil, err
	}
	clientIP = strings.TrimSpace(clientIP)
	if i.opts.BindIP && clientIP == "" {
		return nil, ErrMissingClientIP
	}
	if ttl <= 0 {
		ttl = i.opts.TTLDefault
	}
	if ttl < i.opts.TTLMin {
		ttl = i.opts.TTLMin
	}
	if ttl > i.opts.TTLMax {
		ttl = i.opts.TTLMax
	}

	boundIP := ""
	if i.opts.BindIP {
		boundIP = clientIP
	}
	exp := i.opts.Now().Add(ttl).Unix()
	sig := i.signer.Sign(CanonicalMessage(file, exp, boundIP))

	q := url.Values{}
	q.Set("exp", strconv.FormatInt(exp, 10))
	q.Set("sig", sig)
	if boundIP != "" {
		q.Set("ip", boundIP)
	}
	full := fmt.Sprintf("%s/downloads/%s?%s", strings.TrimRight(i.opts.BaseURL, "/"), url.PathEscape(file), q.Encode())

	return &SignedURL{
		URL:    full,
		File:   file,
		Exp:    exp,
		TTL:    int64(ttl / time.Second),
		BindIP: i.opts.BindIP,
		IP:     boundIP,
	}, nil
}
