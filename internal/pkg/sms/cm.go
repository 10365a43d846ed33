package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shandysiswandi/stepup/internal/pkg/uid"
)

const (
	// DefaultBaseURL serves the OTP API.
	DefaultBaseURL = "https://api.cmtelecom.com"
	// DefaultGatewayURL serves the text message API.
	DefaultGatewayURL = "https://gw.cmtelecom.com"
	// DefaultTimeout bounds every provider call.
	DefaultTimeout = 3 * time.Second

	// HeaderProductToken carries the tenant credential.
	HeaderProductToken = "X-CM-ProductToken"

	pathGenerate = "/v1.0/otp/generate"
	pathVerify   = "/v1.0/otp/verify"
	pathMessage  = "/v1.0/message"

	maxResponseBytes = 64 * 1024
)

var errInvalidWindow = errors.New("provider returned an expiry before the creation time")

// CMConfig configures the cm.com client.
type CMConfig struct {
	// ProductToken is the tenant credential, a UUID.
	ProductToken string
	// BaseURL overrides DefaultBaseURL.
	BaseURL string
	// GatewayURL overrides DefaultGatewayURL.
	GatewayURL string
	// Timeout overrides DefaultTimeout.
	Timeout time.Duration
	// Proxy is an optional outbound proxy URL.
	Proxy string
}

// CM is a client for the cm.com OTP and text message APIs.
type CM struct {
	baseURL    string
	gatewayURL string
	token      string
	client     *http.Client
}

// NewCM validates cfg and returns a ready client.
func NewCM(cfg CMConfig) (*CM, error) {
	token := strings.TrimSpace(cfg.ProductToken)
	if !uid.IsUUID(token) {
		return nil, fmt.Errorf("%w: product token must be a UUID", ErrConfiguration)
	}

	baseURL, err := normalizeBaseURL(cfg.BaseURL, DefaultBaseURL)
	if err != nil {
		return nil, err
	}
	gatewayURL, err := normalizeBaseURL(cfg.GatewayURL, DefaultGatewayURL)
	if err != nil {
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if p := strings.TrimSpace(cfg.Proxy); p != "" {
		proxyURL, err := url.Parse(p)
		if err != nil || proxyURL.Scheme == "" || proxyURL.Host == "" {
			return nil, fmt.Errorf("%w: invalid proxy %q", ErrConfiguration, p)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	return &CM{
		baseURL:    baseURL,
		gatewayURL: gatewayURL,
		token:      token,
		client:     &http.Client{Timeout: timeout, Transport: transport},
	}, nil
}

func normalizeBaseURL(raw, fallback string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("%w: invalid url %q", ErrConfiguration, raw)
	}
	return strings.TrimRight(raw, "/"), nil
}

type generateRequest struct {
	Recipient string `json:"recipient"`
	Sender    string `json:"sender"`
	Length    int    `json:"length"`
	Expiry    int    `json:"expiry"`
	Message   string `json:"message"`
	AllowPush bool   `json:"allowPush,omitempty"`
	AppKey    string `json:"appKey,omitempty"`
}

type generateResponse struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	ExpireAt  time.Time `json:"expireAt"`
}

type verifyRequest struct {
	ID   string `json:"id"`
	Code string `json:"code"`
}

type verifyResponse struct {
	Valid bool `json:"valid"`
}

type messageEnvelope struct {
	Messages messageBatch `json:"messages"`
}

type messageBatch struct {
	Authentication messageAuth   `json:"authentication"`
	Msg            []messageItem `json:"msg"`
}

type messageAuth struct {
	ProductToken string `json:"producttoken"`
}

type messageItem struct {
	From      string          `json:"from"`
	To        []messageNumber `json:"to"`
	Body      messageBody     `json:"body"`
	Reference string          `json:"reference,omitempty"`
}

type messageNumber struct {
	Number string `json:"number"`
}

type messageBody struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// errorResponse covers both APIs: the OTP API answers {message, status},
// the gateway {details, errorCode}.
type errorResponse struct {
	Message   string `json:"message"`
	Status    int    `json:"status"`
	Details   string `json:"details"`
	ErrorCode int    `json:"errorCode"`
}

// SendChallenge asks the provider to generate and send a code.
func (c *CM) SendChallenge(ctx context.Context, req SendChallengeRequest) (*Receipt, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	body := generateRequest{
		Recipient: req.Recipient,
		Sender:    req.Originator,
		Length:    req.CodeLength,
		Expiry:    req.ValidForSeconds,
		Message:   req.MessageTemplate,
	}
	if req.AllowPush {
		body.AllowPush = true
		body.AppKey = req.AppKey
	}

	var resp generateResponse
	if err := c.post(ctx, "generate", c.baseURL+pathGenerate, body, &resp); err != nil {
		return nil, err
	}

	if !uid.IsUUID(resp.ID) {
		return nil, &ProviderError{Op: "generate", StatusCode: http.StatusOK, Err: fmt.Errorf("unexpected challenge id %q", resp.ID)}
	}
	if resp.ExpireAt.Before(resp.CreatedAt) {
		return nil, &ProviderError{Op: "generate", StatusCode: http.StatusOK, Err: errInvalidWindow}
	}

	return &Receipt{
		Reference: resp.ID,
		NotBefore: resp.CreatedAt,
		NotAfter:  resp.ExpireAt,
	}, nil
}

// VerifyChallenge reports whether code matches the challenge identified by reference.
func (c *CM) VerifyChallenge(ctx context.Context, reference, code string) (bool, error) {
	if !uid.IsUUID(reference) {
		return false, fmt.Errorf("%w: %w", ErrPrecondition, ErrInvalidReference)
	}

	var resp verifyResponse
	if err := c.post(ctx, "verify", c.baseURL+pathVerify, verifyRequest{ID: reference, Code: code}, &resp); err != nil {
		return false, err
	}

	return resp.Valid, nil
}

// SendMessage delivers a rendered text message through the gateway.
func (c *CM) SendMessage(ctx context.Context, msg TextMessage) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	body := messageEnvelope{Messages: messageBatch{
		Authentication: messageAuth{ProductToken: c.token},
		Msg: []messageItem{{
			From:      msg.Originator,
			To:        []messageNumber{{Number: msg.Recipient}},
			Body:      messageBody{Type: "auto", Content: msg.Body},
			Reference: msg.Reference,
		}},
	}}

	return c.post(ctx, "message", c.gatewayURL+pathMessage, body, nil)
}

func (c *CM) post(ctx context.Context, op, endpoint string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("sms: encode %s request: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("sms: build %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(HeaderProductToken, c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return &ProviderError{Op: op, Err: err, Timeout: isTimeout(err)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &ProviderError{Op: op, StatusCode: resp.StatusCode, Err: err, Timeout: isTimeout(err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		perr := &ProviderError{Op: op, StatusCode: resp.StatusCode}
		var body errorResponse
		if json.Unmarshal(raw, &body) == nil {
			perr.Message = body.Message
			perr.Status = body.Status
			if perr.Message == "" {
				perr.Message = body.Details
			}
			if perr.Status == 0 {
				perr.Status = body.ErrorCode
			}
		}
		return perr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &ProviderError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}

	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
