// Package serverclient is the thin HTTP boundary between the local
// certificate/recovery engines and the Parsec server: certificate
// submission, with the RequireGreaterTimestamp / TimestampOutOfBallpark
// rejection shapes C3 and C4's retry loops key off of. Grounded on the
// per-RPC-method, context-with-timeout client shape in
// cuemby-warren/pkg/client/client.go, generalized from gRPC stubs to
// plain HTTP+CBOR requests since the server speaks Parsec's REST/SSE
// protocol, not gRPC.
package serverclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/parsec-cloud/libparsec-go/internal/certcrypto"
	"github.com/parsec-cloud/libparsec-go/internal/certtypes"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const defaultRequestTimeout = 30 * time.Second

// Client is a single-organization Parsec server connection.
type Client struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
	logger     zerolog.Logger
}

func New(baseURL string, logger zerolog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: defaultRequestTimeout},
		baseURL:    baseURL,
		limiter:    rate.NewLimiter(rate.Limit(20), 40),
		logger:     logger.With().Str("component", "serverclient").Logger(),
	}
}

// SubmitOutcome is the classified server response to a certificate
// submission (spec §4.3/§4.4): exactly one of the fields below is set.
type SubmitOutcome struct {
	Accepted bool

	// RequireGreaterTimestamp: the server rejected the submission
	// because its timestamp was not strictly after the topic's current
	// tip; the pointed-to timestamp is the bound the next submission's
	// timestamp must strictly exceed.
	RequireGreaterTimestamp *certtypes.Timestamp

	OutOfBallpark *OutOfBallpark

	// Terminal is set for any other named rejection (InvalidRecipient,
	// ShamirSetupAlreadyExists, topic-specific rule violations, ...);
	// the caller surfaces it as-is rather than retrying.
	Terminal error
}

type OutOfBallpark struct {
	ServerTimestamp certtypes.Timestamp
	ClientTimestamp certtypes.Timestamp
	EarlyOffset     float64
	LateOffset      float64
}

// SubmitCertificates posts a batch of armored certificate envelopes for
// one topic. The server either accepts the whole batch or rejects it
// with one classified reason; there is no partial acceptance.
func (c *Client) SubmitCertificates(ctx context.Context, topic certtypes.Topic, envelopes [][]byte) (SubmitOutcome, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return SubmitOutcome{}, err
	}

	type submitRequest struct {
		Topic      string   `cbor:"1,keyasint"`
		Envelopes  [][]byte `cbor:"2,keyasint"`
	}
	body, err := certcrypto.MarshalPayload(submitRequest{Topic: topic.String(), Envelopes: envelopes})
	if err != nil {
		return SubmitOutcome{}, fmt.Errorf("encode submit request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/certificates/"+topic.String(), bytes.NewReader(body))
	if err != nil {
		return SubmitOutcome{}, err
	}
	req.Header.Set("Content-Type", "application/cbor")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return SubmitOutcome{}, fmt.Errorf("submit certificates: %w", err)
	}
	defer resp.Body.Close()

	return classifyResponse(resp)
}

// rejectionBody is the server's structured rejection payload, present on
// any non-2xx response.
type rejectionBody struct {
	Reason                  string              `cbor:"1,keyasint"`
	StrictlyGreaterThan     certtypes.Timestamp `cbor:"2,keyasint,omitempty"`
	ServerTimestamp         certtypes.Timestamp `cbor:"3,keyasint,omitempty"`
	ClientTimestamp         certtypes.Timestamp `cbor:"4,keyasint,omitempty"`
	BallparkEarlyOffset     float64             `cbor:"5,keyasint,omitempty"`
	BallparkLateOffset      float64             `cbor:"6,keyasint,omitempty"`
}

func classifyResponse(resp *http.Response) (SubmitOutcome, error) {
	if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated {
		return SubmitOutcome{Accepted: true}, nil
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return SubmitOutcome{}, fmt.Errorf("read rejection body: %w", err)
	}
	var body rejectionBody
	if err := certcrypto.UnmarshalPayload(raw, &body); err != nil {
		return SubmitOutcome{Terminal: fmt.Errorf("unexpected server response: %s", resp.Status)}, nil
	}

	switch body.Reason {
	case "require_greater_timestamp":
		ts := body.StrictlyGreaterThan
		return SubmitOutcome{RequireGreaterTimestamp: &ts}, nil
	case "timestamp_out_of_ballpark":
		return SubmitOutcome{OutOfBallpark: &OutOfBallpark{
			ServerTimestamp: body.ServerTimestamp,
			ClientTimestamp: body.ClientTimestamp,
			EarlyOffset:     body.BallparkEarlyOffset,
			LateOffset:      body.BallparkLateOffset,
		}}, nil
	default:
		return SubmitOutcome{Terminal: fmt.Errorf("server rejected submission: %s", body.Reason)}, nil
	}
}
