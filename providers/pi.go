package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultPiBaseURL = "https://api.minepi.com/v2"

// PiProvider implements PaymentProvider and IdentityVerifier against the Pi
// platform API. Server calls authenticate with the app's API key; token
// verification forwards the user's own bearer token instead.
type PiProvider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewPiProvider creates a PiProvider for the production Pi platform API.
func NewPiProvider(apiKey string) *PiProvider {
	return NewPiProviderWithBaseURL(apiKey, defaultPiBaseURL)
}

// NewPiProviderWithBaseURL creates a PiProvider against a custom endpoint.
func NewPiProviderWithBaseURL(apiKey, baseURL string) *PiProvider {
	return &PiProvider{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// ---- Pi API request/response structs ----

type piCreatePaymentRequest struct {
	Payment piPaymentBody `json:"payment"`
}

type piPaymentBody struct {
	Amount   float64           `json:"amount"`
	Memo     string            `json:"memo"`
	Metadata map[string]string `json:"metadata"`
	UID      string            `json:"uid"`
}

type piPaymentResponse struct {
	Identifier string `json:"identifier"`
}

type piCompleteRequest struct {
	TxID string `json:"txid"`
}

type piErrorResponse struct {
	Error        string `json:"error"`
	ErrorMessage string `json:"error_message"`
}

// ---- PaymentProvider implementation ----

// CreatePayment requests a new app-to-user payment.
func (p *PiProvider) CreatePayment(ctx context.Context, payerUID string, amount float64, memo string, metadata map[string]string) (string, error) {
	reqBody := piCreatePaymentRequest{
		Payment: piPaymentBody{
			Amount:   amount,
			Memo:     memo,
			Metadata: metadata,
			UID:      payerUID,
		},
	}

	var resp piPaymentResponse
	if err := p.doRequest(ctx, http.MethodPost, "/payments", reqBody, &resp); err != nil {
		return "", fmt.Errorf("pi CreatePayment: %w", err)
	}
	return resp.Identifier, nil
}

// Approve accepts a wallet-initiated payment on the server side.
func (p *PiProvider) Approve(ctx context.Context, paymentID string) error {
	path := fmt.Sprintf("/payments/%s/approve", paymentID)
	if err := p.doRequest(ctx, http.MethodPost, path, struct{}{}, nil); err != nil {
		return fmt.Errorf("pi Approve: %w", err)
	}
	return nil
}

// Complete finalizes an approved payment with its blockchain txid.
func (p *PiProvider) Complete(ctx context.Context, paymentID, txid string) error {
	path := fmt.Sprintf("/payments/%s/complete", paymentID)
	if err := p.doRequest(ctx, http.MethodPost, path, piCompleteRequest{TxID: txid}, nil); err != nil {
		return fmt.Errorf("pi Complete: %w", err)
	}
	return nil
}

// ---- IdentityVerifier implementation ----

// VerifyAccessToken resolves a user access token to the Pi identity it
// belongs to.
func (p *PiProvider) VerifyAccessToken(ctx context.Context, token string) (*PiUser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/me", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, ErrProviderUnavailable
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, ErrInvalidAccessToken
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrProviderUnavailable, resp.StatusCode)
	}

	var user PiUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("decode identity: %w", err)
	}
	if user.UID == "" {
		return nil, ErrInvalidAccessToken
	}
	return &user, nil
}

// ---- HTTP helper ----

func (p *PiProvider) doRequest(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Key "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return ErrProviderUnavailable
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return p.mapError(resp.StatusCode, respBytes)
	}

	if out != nil {
		if err := json.Unmarshal(respBytes, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// mapError translates a Pi API error response into a sentinel error. The
// upstream payload is preserved in the wrapped message for diagnostics.
func (p *PiProvider) mapError(status int, body []byte) error {
	var piErr piErrorResponse
	_ = json.Unmarshal(body, &piErr)

	var base error
	switch {
	case status == http.StatusNotFound:
		base = ErrPaymentNotFound
	case status == http.StatusConflict && piErr.Error == "payment_not_approved":
		base = ErrPaymentNotApproved
	case status == http.StatusConflict:
		base = ErrPaymentAlreadyFinalized
	case status == http.StatusBadRequest && piErr.Error == "invalid_txid":
		base = ErrReceiptMismatch
	case status >= 500:
		base = ErrProviderUnavailable
	default:
		return fmt.Errorf("pi API error (status %d): %s", status, string(body))
	}
	return fmt.Errorf("%w (status %d): %s", base, status, string(body))
}
