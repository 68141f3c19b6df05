package service

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dukerupert/pluginhub/internal/database"
	"github.com/dukerupert/pluginhub/internal/model"
	"github.com/dukerupert/pluginhub/internal/payment"
	"github.com/dukerupert/pluginhub/internal/storage"
	"github.com/dukerupert/pluginhub/internal/store"
	"github.com/dukerupert/pluginhub/internal/websocket"
)

var testKey = []byte("test-secret")

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []websocket.Message
}

func (r *recordingPublisher) Publish(msg websocket.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
}

func (r *recordingPublisher) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, m := range r.msgs {
		out = append(out, m.Type)
	}
	return out
}

type fakeIntents struct {
	err      error
	amount   int64
	purchase payment.Purchase
}

func (f *fakeIntents) CreatePaymentIntent(_ context.Context, amount int64, p payment.Purchase) (*payment.Intent, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.amount = amount
	f.purchase = p
	return &payment.Intent{ID: "pi_test", ClientSecret: "pi_test_secret", Amount: amount, Currency: "usd"}, nil
}

type testEnv struct {
	plugins     *PluginService
	versions    *VersionService
	access      *AccessService
	auth        *AuthService
	profiles    *ProfileService
	reviews     *ReviewService
	bugs        *SubmissionService
	suggestions *SubmissionService
	wiki        *WikiService
	payments    *PaymentService
	intents     *fakeIntents
	files       storage.FileStore
	events      *recordingPublisher
	links       *store.DownloadLinkStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	files, err := storage.NewLocal(t.TempDir())
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	events := &recordingPublisher{}
	intents := &fakeIntents{}

	pluginStore := store.NewPluginStore(db)
	profileStore := store.NewProfileStore(db)
	links := store.NewDownloadLinkStore(db)

	access := NewAccessService(pluginStore, profileStore, events, logger)
	return &testEnv{
		plugins:     NewPluginService(pluginStore, files, events, logger),
		versions:    NewVersionService(pluginStore, store.NewVersionStore(db), links, access, files, events, logger),
		access:      access,
		auth:        NewAuthService(store.NewBlacklistStore(db), access, pluginStore, testKey, time.Hour, logger),
		profiles:    NewProfileService(profileStore, logger),
		reviews:     NewReviewService(store.NewReviewStore(db), pluginStore, logger),
		bugs:        NewBugService(store.NewBugStore(db), pluginStore, logger),
		suggestions: NewSuggestionService(store.NewSuggestionStore(db), pluginStore, logger),
		wiki:        NewWikiService(store.NewWikiStore(db), pluginStore, access, logger),
		payments:    NewPaymentService(intents, pluginStore, profileStore, access, logger),
		intents:     intents,
		files:       files,
		events:      events,
		links:       links,
	}
}

func (e *testEnv) createPlugin(t *testing.T, name string, price float64) *model.Plugin {
	t.Helper()
	p, err := e.plugins.Create(context.Background(), PluginInput{
		Name: name, BasicDescription: "basic", Description: "full", Price: price,
	})
	require.NoError(t, err)
	return p
}

func (e *testEnv) createProfile(t *testing.T, id string) *model.Profile {
	t.Helper()
	p, err := e.profiles.Create(context.Background(), id, id+"@example.com")
	require.NoError(t, err)
	return p
}

func (e *testEnv) upload(t *testing.T, pluginID int64, version, body string) *model.PluginVersion {
	t.Helper()
	v, err := e.versions.Upload(context.Background(), pluginID, version, "changes", strings.NewReader(body), "upload.jar")
	require.NoError(t, err)
	return v
}
