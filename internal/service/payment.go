package service

import (
	"context"
	"log/slog"
	"sort"

	"github.com/dukerupert/pluginhub/internal/apperr"
	"github.com/dukerupert/pluginhub/internal/email"
	"github.com/dukerupert/pluginhub/internal/model"
	"github.com/dukerupert/pluginhub/internal/payment"
	"github.com/dukerupert/pluginhub/internal/store"
)

// IntentCreator creates provider payment intents. *payment.Client
// implements it.
type IntentCreator interface {
	CreatePaymentIntent(ctx context.Context, amount int64, p payment.Purchase) (*payment.Intent, error)
}

// ReceiptSender mails purchase receipts. *email.Client implements it.
type ReceiptSender interface {
	SendPurchaseReceipt(ctx context.Context, toEmail string, r email.Receipt) error
}

type PaymentService struct {
	intents  IntentCreator
	receipts ReceiptSender
	plugins  *store.PluginStore
	profiles *store.ProfileStore
	access   *AccessService
	logger   *slog.Logger
}

func NewPaymentService(intents IntentCreator, plugins *store.PluginStore, profiles *store.ProfileStore, access *AccessService, logger *slog.Logger) *PaymentService {
	return &PaymentService{intents: intents, plugins: plugins, profiles: profiles, access: access, logger: logger}
}

// SetReceiptSender enables purchase receipts.
func (s *PaymentService) SetReceiptSender(r ReceiptSender) {
	s.receipts = r
}

// CreateIntent prices the requested premium plugins and opens a payment
// intent for their total.
func (s *PaymentService) CreateIntent(ctx context.Context, accountID string, pluginIDs []int64) (*payment.Intent, error) {
	ids := dedupe(pluginIDs)
	if len(ids) == 0 {
		return nil, apperr.ErrMissingField.With("plugin_ids")
	}
	profile, err := getProfile(ctx, s.profiles, accountID)
	if err != nil {
		return nil, err
	}
	if profile.Banned {
		return nil, apperr.ErrProfileBanned
	}

	var total int64
	for _, id := range ids {
		p, err := getPlugin(ctx, s.plugins, id)
		if err != nil {
			return nil, err
		}
		if !p.Premium {
			return nil, apperr.ErrInvalidPayment.With(p.Name + " is free")
		}
		if profile.HasPlugin(id) {
			return nil, apperr.ErrInvalidPayment.With(p.Name + " is already owned")
		}
		total += p.PriceCents()
	}

	intent, err := s.intents.CreatePaymentIntent(ctx, total, payment.Purchase{AccountID: accountID, PluginIDs: ids})
	if err != nil {
		s.logger.Error("create payment intent", "account_id", accountID, "error", err)
		return nil, apperr.ErrPaymentProvider
	}
	s.logger.Info("payment intent created", "intent_id", intent.ID, "account_id", accountID, "amount", total)
	return intent, nil
}

// Fulfil grants the plugins of a completed payment.
func (s *PaymentService) Fulfil(ctx context.Context, p payment.Purchase) (*model.Profile, error) {
	profile, err := s.access.GrantPurchased(ctx, p.AccountID, p.PluginIDs)
	if err != nil {
		return nil, err
	}
	s.logger.Info("payment fulfilled", "intent_id", p.IntentID, "account_id", p.AccountID, "plugins", len(p.PluginIDs))
	s.sendReceipt(ctx, profile, p)
	return profile, nil
}

// sendReceipt is best effort; a mail failure never undoes a grant.
func (s *PaymentService) sendReceipt(ctx context.Context, profile *model.Profile, p payment.Purchase) {
	if s.receipts == nil || profile.Email == "" {
		return
	}
	r := email.Receipt{IntentID: p.IntentID}
	for _, id := range p.PluginIDs {
		plugin, err := s.plugins.GetByID(ctx, id)
		if err != nil || plugin == nil {
			continue
		}
		r.Plugins = append(r.Plugins, plugin.Name)
	}
	if len(r.Plugins) == 0 {
		return
	}
	if err := s.receipts.SendPurchaseReceipt(ctx, profile.Email, r); err != nil {
		s.logger.Warn("send purchase receipt", "intent_id", p.IntentID, "account_id", p.AccountID, "error", err)
	}
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id <= 0 || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
