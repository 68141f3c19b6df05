package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dukerupert/pluginhub/internal/apperr"
	"github.com/dukerupert/pluginhub/internal/email"
	"github.com/dukerupert/pluginhub/internal/payment"
)

func TestCreateIntent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.createPlugin(t, "A", 4.99)
	b := env.createPlugin(t, "B", 10)
	free := env.createPlugin(t, "Free", 0)

	_, err := env.payments.CreateIntent(ctx, "acc-1", nil)
	require.ErrorIs(t, err, apperr.ErrMissingField)
	_, err = env.payments.CreateIntent(ctx, "acc-1", []int64{a.ID})
	require.ErrorIs(t, err, apperr.ErrProfileNotFound)

	env.createProfile(t, "acc-1")
	_, err = env.payments.CreateIntent(ctx, "acc-1", []int64{404})
	require.ErrorIs(t, err, apperr.ErrPluginNotFound)
	_, err = env.payments.CreateIntent(ctx, "acc-1", []int64{free.ID})
	require.ErrorIs(t, err, apperr.ErrInvalidPayment)

	intent, err := env.payments.CreateIntent(ctx, "acc-1", []int64{b.ID, a.ID, a.ID})
	require.NoError(t, err)
	require.EqualValues(t, 1499, intent.Amount)
	require.Equal(t, []int64{a.ID, b.ID}, env.intents.purchase.PluginIDs)
	require.Equal(t, "acc-1", env.intents.purchase.AccountID)

	_, err = env.payments.Fulfil(ctx, payment.Purchase{IntentID: intent.ID, AccountID: "acc-1", PluginIDs: []int64{a.ID}})
	require.NoError(t, err)
	_, err = env.payments.CreateIntent(ctx, "acc-1", []int64{a.ID})
	require.ErrorIs(t, err, apperr.ErrInvalidPayment)
}

func TestCreateIntentProviderError(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.createPlugin(t, "A", 3)
	env.createProfile(t, "acc-1")
	env.intents.err = errors.New("card_declined")

	_, err := env.payments.CreateIntent(ctx, "acc-1", []int64{p.ID})
	require.ErrorIs(t, err, apperr.ErrPaymentProvider)
}

type fakeReceipts struct {
	err  error
	to   string
	sent []email.Receipt
}

func (f *fakeReceipts) SendPurchaseReceipt(_ context.Context, to string, r email.Receipt) error {
	f.to = to
	f.sent = append(f.sent, r)
	return f.err
}

func TestFulfilSendsReceipt(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.createPlugin(t, "A", 5)
	env.createProfile(t, "acc-1")
	receipts := &fakeReceipts{err: errors.New("postmark down")}
	env.payments.SetReceiptSender(receipts)

	profile, err := env.payments.Fulfil(ctx, payment.Purchase{IntentID: "pi_1", AccountID: "acc-1", PluginIDs: []int64{a.ID, 404}})
	require.NoError(t, err)
	require.True(t, profile.HasPlugin(a.ID))

	require.Len(t, receipts.sent, 1)
	require.Equal(t, profile.Email, receipts.to)
	require.Equal(t, email.Receipt{IntentID: "pi_1", Plugins: []string{"A"}}, receipts.sent[0])
}
