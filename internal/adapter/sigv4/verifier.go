package sigv4

import (
	"bytes"
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
)

const (
	algorithm  = "AWS4-HMAC-SHA256"
	dateLayout = "20060102T150405Z"
	maxSkew    = 5 * time.Minute
)

var (
	errMissingSignature = errors.New("missing signature")
	errUnknownKey       = errors.New("unknown signing key")
	errBadScope         = errors.New("credential scope does not match")
	errStale            = errors.New("request timestamp outside the allowed window")
	errMismatch         = errors.New("signature does not match")
)

// Verifier authenticates requests signed by a Caller sharing its static
// identity.
type Verifier struct {
	creds   aws.Credentials
	service string
	region  string
	signer  *v4.Signer
	now     func() time.Time
}

// NewVerifier creates a verifier for the given identity.
func NewVerifier(accessKeyID, secretAccessKey, region, service string) *Verifier {
	return &Verifier{
		creds:   aws.Credentials{AccessKeyID: accessKeyID, SecretAccessKey: secretAccessKey},
		service: service,
		region:  region,
		signer:  v4.NewSigner(),
		now:     time.Now,
	}
}

// Verify recomputes the signature of r and compares it with the one it
// carries. The body is read and restored.
func (v *Verifier) Verify(r *http.Request) error {
	auth, err := parseAuthorization(r.Header.Get("Authorization"))
	if err != nil {
		return err
	}
	if auth.accessKeyID != v.creds.AccessKeyID {
		return errUnknownKey
	}
	if auth.region != v.region || auth.service != v.service {
		return errBadScope
	}

	signedAt, err := time.Parse(dateLayout, r.Header.Get("X-Amz-Date"))
	if err != nil {
		return fmt.Errorf("%w: bad X-Amz-Date", errMissingSignature)
	}
	if skew := v.now().Sub(signedAt); skew > maxSkew || skew < -maxSkew {
		return errStale
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return fmt.Errorf("reading body: %w", err)
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	want, err := v.sign(r.Context(), r, auth.signedHeaders, body, signedAt)
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare([]byte(want), []byte(auth.signature)) != 1 {
		return errMismatch
	}
	return nil
}

// sign rebuilds the request from the headers the client signed and signs
// it the way the client did.
func (v *Verifier) sign(ctx context.Context, r *http.Request, signedHeaders []string, body []byte, at time.Time) (string, error) {
	clone, err := http.NewRequestWithContext(ctx, r.Method, "http://"+r.Host+r.URL.RequestURI(), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("rebuilding request: %w", err)
	}
	clone.Host = r.Host
	for _, h := range signedHeaders {
		switch h {
		case "host", "x-amz-date", "content-length":
		default:
			for _, val := range r.Header.Values(h) {
				clone.Header.Add(h, val)
			}
		}
	}

	if err := v.signer.SignHTTP(ctx, v.creds, clone, payloadHash(body), v.service, v.region, at); err != nil {
		return "", fmt.Errorf("signing request: %w", err)
	}
	recomputed, err := parseAuthorization(clone.Header.Get("Authorization"))
	if err != nil {
		return "", err
	}
	return recomputed.signature, nil
}

type authorization struct {
	accessKeyID   string
	region        string
	service       string
	signedHeaders []string
	signature     string
}

// parseAuthorization splits a header of the form
// "AWS4-HMAC-SHA256 Credential=AKID/date/region/service/aws4_request, SignedHeaders=a;b, Signature=hex".
func parseAuthorization(header string) (authorization, error) {
	rest, ok := strings.CutPrefix(header, algorithm+" ")
	if !ok {
		return authorization{}, errMissingSignature
	}

	var a authorization
	for _, part := range strings.Split(rest, ",") {
		k, val, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "Credential":
			scope := strings.Split(val, "/")
			if len(scope) != 5 {
				return authorization{}, fmt.Errorf("%w: malformed credential scope", errMissingSignature)
			}
			a.accessKeyID, a.region, a.service = scope[0], scope[2], scope[3]
		case "SignedHeaders":
			a.signedHeaders = strings.Split(val, ";")
		case "Signature":
			a.signature = val
		}
	}
	if a.accessKeyID == "" || a.signature == "" || len(a.signedHeaders) == 0 {
		return authorization{}, errMissingSignature
	}
	return a, nil
}
