package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const tokenPrefix = "WP"

// Webpay implements Provider for Webpay Plus style redirects. No network call
// is made: tokens are signed locally so the return leg can be verified.
type Webpay struct {
	CommerceCode string
	APIKey       string
	BaseURL      string
	Sandbox      bool
	// Decline, when set, rejects matching transactions at commit time.
	Decline func(buyOrder string, amount int64) bool
}

// Name implements Provider.
func (Webpay) Name() string { return "webpay" }

// Create issues a signed token for the buy order and amount.
func (p Webpay) Create(_ context.Context, req CreateRequest) (CreateResponse, error) {
	buyOrder := strings.TrimSpace(req.BuyOrder)
	if buyOrder == "" || strings.Contains(buyOrder, ".") {
		return CreateResponse{}, errors.New("payment: invalid buy order")
	}
	if req.Amount <= 0 {
		return CreateResponse{}, ErrInvalidAmount
	}
	if strings.TrimSpace(p.APIKey) == "" {
		return CreateResponse{}, errors.New("payment: webpay api key not configured")
	}
	amount := strconv.FormatInt(req.Amount, 10)
	token := strings.Join([]string{tokenPrefix, buyOrder, amount, p.sign(buyOrder, amount)}, ".")

	redirect := strings.TrimRight(p.host(), "/") + "/webpayserver/initTransaction?token_ws=" + url.QueryEscape(token)
	if req.ReturnURL != "" {
		redirect += "&return_url=" + url.QueryEscape(req.ReturnURL)
	}
	return CreateResponse{Provider: p.Name(), Token: token, RedirectURL: redirect}, nil
}

// Commit verifies the token and reports the transaction outcome.
func (p Webpay) Commit(_ context.Context, token string) (CommitResult, error) {
	parts := strings.Split(strings.TrimSpace(token), ".")
	if len(parts) != 4 || parts[0] != tokenPrefix {
		return CommitResult{}, ErrInvalidToken
	}
	buyOrder, amountRaw, sig := parts[1], parts[2], parts[3]
	if !hmac.Equal([]byte(p.sign(buyOrder, amountRaw)), []byte(sig)) {
		return CommitResult{}, ErrInvalidToken
	}
	amount, err := strconv.ParseInt(amountRaw, 10, 64)
	if err != nil {
		return CommitResult{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	result := CommitResult{BuyOrder: buyOrder, Amount: amount, Status: StatusAuthorized}
	if p.Decline != nil && p.Decline(buyOrder, amount) {
		result.Status = StatusFailed
		result.ResponseCode = -1
	}
	return result, nil
}

func (p Webpay) sign(buyOrder, amount string) string {
	mac := hmac.New(sha256.New, []byte(p.APIKey))
	mac.Write([]byte(p.CommerceCode))
	mac.Write([]byte{0})
	mac.Write([]byte(buyOrder))
	mac.Write([]byte{0})
	mac.Write([]byte(amount))
	return hex.EncodeToString(mac.Sum(nil))[:32]
}

func (p Webpay) host() string {
	if host := strings.TrimSpace(p.BaseURL); host != "" {
		return host
	}
	if p.Sandbox {
		return "https://webpay3gint.transbank.cl"
	}
	return "https://webpay3g.transbank.cl"
}
