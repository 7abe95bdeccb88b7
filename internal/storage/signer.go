package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DownloadRoute is the HTTP path prefix served by the download handler.
const DownloadRoute = "/downloads/"

var (
	ErrSignatureInvalid = errors.New("signature invalid")
	ErrURLExpired       = errors.New("download url expired")
)

// Signer issues and verifies time-limited download links.
type Signer struct {
	secret  []byte
	baseURL string
	now     func() time.Time
}

// NewSigner returns a Signer for links rooted at baseURL.
func NewSigner(secret []byte, baseURL string) (*Signer, error) {
	if len(secret) == 0 {
		return nil, errors.New("signing secret is empty")
	}
	return &Signer{
		secret:  secret,
		baseURL: strings.TrimRight(baseURL, "/"),
		now:     time.Now,
	}, nil
}

func (s *Signer) sign(bucket, path string, expires int64) string {
	mac := hmac.New(sha256.New, s.secret)
	fmt.Fprintf(mac, "%s/%s\n%d", bucket, path, expires)
	return hex.EncodeToString(mac.Sum(nil))
}

// SignedURL returns a link to bucket/path valid for ttl.
func (s *Signer) SignedURL(bucket, path string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", fmt.Errorf("ttl must be positive, got %s", ttl)
	}
	expires := s.now().Add(ttl).Unix()

	segments := strings.Split(strings.TrimPrefix(path, "/"), "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}

	query := url.Values{}
	query.Set("expires", strconv.FormatInt(expires, 10))
	query.Set("signature", s.sign(bucket, path, expires))

	return s.baseURL + DownloadRoute + url.PathEscape(bucket) + "/" + strings.Join(segments, "/") + "?" + query.Encode(), nil
}

// Verify checks a signature issued by SignedURL.
func (s *Signer) Verify(bucket, path, expires, signature string) error {
	exp, err := strconv.ParseInt(expires, 10, 64)
	if err != nil {
		return ErrSignatureInvalid
	}

	want, err := hex.DecodeString(s.sign(bucket, path, exp))
	if err != nil {
		return ErrSignatureInvalid
	}
	got, err := hex.DecodeString(signature)
	if err != nil || !hmac.Equal(want, got) {
		return ErrSignatureInvalid
	}

	if s.now().Unix() > exp {
		return ErrURLExpired
	}
	return nil
}
