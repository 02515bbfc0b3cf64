package payment

import (
	"context"
	"errors"
)

var (
	// ErrInvalidToken is returned when a commit token was not issued by the provider.
	ErrInvalidToken = errors.New("payment: invalid transaction token")
	// ErrInvalidAmount is returned for non-positive transaction amounts.
	ErrInvalidAmount = errors.New("payment: amount must be positive")
)

// CreateRequest opens a payment transaction for a pending order.
type CreateRequest struct {
	BuyOrder  string
	SessionID string
	Amount    int64
	ReturnURL string
}

// CreateResponse tells the client where to complete the payment.
type CreateResponse struct {
	Provider    string `json:"provider"`
	Token       string `json:"token"`
	RedirectURL string `json:"redirectUrl"`
}

// Status values reported by Commit.
const (
	StatusAuthorized = "AUTHORIZED"
	StatusFailed     = "FAILED"
)

// CommitResult is the gateway's verdict on a transaction.
type CommitResult struct {
	BuyOrder     string
	Amount       int64
	Status       string
	ResponseCode int
}

// Authorized reports whether the gateway accepted the payment. Gateways that
// omit the status signal approval with response code 0.
func (r CommitResult) Authorized() bool {
	if r.Status != "" {
		return r.Status == StatusAuthorized
	}
	return r.ResponseCode == 0
}

// Provider abstracts the payment gateway.
type Provider interface {
	Name() string
	Create(ctx context.Context, req CreateRequest) (CreateResponse, error)
	Commit(ctx context.Context, token string) (CommitResult, error)
}
