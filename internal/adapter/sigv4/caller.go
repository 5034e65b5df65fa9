// Package sigv4 implements service-to-service calls authenticated with AWS
// Signature Version 4, and the middleware that verifies them.
package sigv4

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/neomorfeo/controlplane/internal/domain"
)

// Compile-time check: Caller implements domain.ServiceCaller.
var _ domain.ServiceCaller = (*Caller)(nil)

// Caller signs each request with the process's own identity for a fixed
// service and region. It does not retry.
type Caller struct {
	client  *http.Client
	signer  *v4.Signer
	creds   aws.CredentialsProvider
	service string
	region  string
	now     func() time.Time
}

// NewCaller creates a caller. A nil client gets an otelhttp-instrumented one.
func NewCaller(creds aws.CredentialsProvider, region, service string, client *http.Client) *Caller {
	if client == nil {
		client = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	return &Caller{
		client:  client,
		signer:  v4.NewSigner(),
		creds:   creds,
		service: service,
		region:  region,
		now:     time.Now,
	}
}

// Call sends method url with body encoded as JSON, signed over the method,
// path, headers and payload hash.
func (c *Caller) Call(ctx context.Context, method, url string, body any) (domain.Response, error) {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return domain.Response{}, fmt.Errorf("encoding request body: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(payload))
	if err != nil {
		return domain.Response{}, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	creds, err := c.creds.Retrieve(ctx)
	if err != nil {
		return domain.Response{}, fmt.Errorf("retrieving signing credentials: %w", err)
	}
	if err := c.signer.SignHTTP(ctx, creds, req, payloadHash(payload), c.service, c.region, c.now().UTC()); err != nil {
		return domain.Response{}, fmt.Errorf("signing request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return domain.Response{}, fmt.Errorf("%s %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.Response{}, fmt.Errorf("reading response from %s %s: %w", method, url, err)
	}
	return domain.Response{Status: resp.StatusCode, Body: data}, nil
}

func payloadHash(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
