package payment_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-pasteleria/internal/payment"
)

func TestWebpayCreateAndCommit(t *testing.T) {
	p := payment.Webpay{CommerceCode: "597055555532", APIKey: "secret", Sandbox: true}

	resp, err := p.Create(context.Background(), payment.CreateRequest{BuyOrder: "42", Amount: 4000, ReturnURL: "http://localhost/return"})
	require.NoError(t, err)
	require.Equal(t, "webpay", resp.Provider)
	require.True(t, strings.HasPrefix(resp.RedirectURL, "https://webpay3gint.transbank.cl/"))
	require.Contains(t, resp.RedirectURL, "return_url=")

	res, err := p.Commit(context.Background(), resp.Token)
	require.NoError(t, err)
	require.True(t, res.Authorized())
	require.Equal(t, "42", res.BuyOrder)
	require.EqualValues(t, 4000, res.Amount)
}

func TestWebpayRejectsTamperedToken(t *testing.T) {
	p := payment.Webpay{APIKey: "secret"}
	resp, err := p.Create(context.Background(), payment.CreateRequest{BuyOrder: "42", Amount: 4000})
	require.NoError(t, err)

	tampered := strings.Replace(resp.Token, ".4000.", ".1.", 1)
	_, err = p.Commit(context.Background(), tampered)
	require.ErrorIs(t, err, payment.ErrInvalidToken)

	other := payment.Webpay{APIKey: "different"}
	_, err = other.Commit(context.Background(), resp.Token)
	require.ErrorIs(t, err, payment.ErrInvalidToken)

	_, err = p.Commit(context.Background(), "garbage")
	require.ErrorIs(t, err, payment.ErrInvalidToken)
}

func TestWebpayDecline(t *testing.T) {
	p := payment.Webpay{APIKey: "secret", Decline: func(_ string, amount int64) bool { return amount > 10000 }}
	resp, err := p.Create(context.Background(), payment.CreateRequest{BuyOrder: "7", Amount: 20000})
	require.NoError(t, err)

	res, err := p.Commit(context.Background(), resp.Token)
	require.NoError(t, err)
	require.False(t, res.Authorized())
}

func TestWebpayCreateValidation(t *testing.T) {
	p := payment.Webpay{APIKey: "secret"}
	_, err := p.Create(context.Background(), payment.CreateRequest{BuyOrder: "1", Amount: 0})
	require.ErrorIs(t, err, payment.ErrInvalidAmount)

	_, err = p.Create(context.Background(), payment.CreateRequest{Amount: 10})
	require.Error(t, err)

	_, err = payment.Webpay{}.Create(context.Background(), payment.CreateRequest{BuyOrder: "1", Amount: 10})
	require.Error(t, err)
}

func TestCommitResultAuthorized(t *testing.T) {
	require.True(t, payment.CommitResult{ResponseCode: 0}.Authorized())
	require.False(t, payment.CommitResult{ResponseCode: -1}.Authorized())
	require.False(t, payment.CommitResult{Status: payment.StatusFailed}.Authorized())
}
