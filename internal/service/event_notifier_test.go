package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"custody-vault/internal/core/domain"
	"custody-vault/internal/core/ports/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// mockHTTPClient implements HTTPClient for testing.
type mockHTTPClient struct {
	doFunc func(req *http.Request) (*http.Response, error)
}

func (m *mockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	return m.doFunc(req)
}

func okResponse(status int) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(""))}
}

func newNotifierSigMock(ctrl *gomock.Controller) *mocks.MockSignatureService {
	sig := mocks.NewMockSignatureService(ctrl)
	sig.EXPECT().Sign("hook-secret", gomock.Any()).Return("sig").AnyTimes()
	sig.EXPECT().BuildCanonicalString(http.MethodPost, "/hook", gomock.Any(), gomock.Any(), gomock.Any()).Return("canonical").AnyTimes()
	return sig
}

func runNotifier(t *testing.T, n *EventNotifier) (stop func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		n.Run(ctx)
	}()
	return func() {
		cancel()
		wg.Wait()
	}
}

func TestEventNotifier_Delivers(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	delivered := make(chan *http.Request, 1)
	var body []byte
	client := &mockHTTPClient{doFunc: func(req *http.Request) (*http.Response, error) {
		body, _ = io.ReadAll(req.Body)
		delivered <- req
		return okResponse(http.StatusOK), nil
	}}

	n := NewEventNotifier([]string{"https://hooks.example.com/hook"}, "hook-secret", newNotifierSigMock(ctrl), client, 4, newTestLogger())
	stop := runNotifier(t, n)
	defer stop()

	event := domain.NewDepositEvent("alice", 42)
	event.Seal(domain.GenesisHash)
	event.Seq = 1
	n.Publish(event)

	select {
	case req := <-delivered:
		assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
		assert.Equal(t, "sig", req.Header.Get(HeaderEventSignature))
		assert.NotEmpty(t, req.Header.Get(HeaderEventTimestamp))

		var payload EventPayload
		require.NoError(t, json.Unmarshal(body, &payload))
		assert.Equal(t, "DEPOSIT", payload.EventType)
		assert.Equal(t, int64(42), payload.Data.Amount)
		assert.Equal(t, event.Hash, payload.Data.Hash)
		assert.Equal(t, "sig", payload.Signature)
	case <-time.After(2 * time.Second):
		t.Fatal("webhook delivery timed out")
	}
}

func TestEventNotifier_RetriesUntilSuccess(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	var attempts atomic.Int32
	done := make(chan struct{})
	client := &mockHTTPClient{doFunc: func(req *http.Request) (*http.Response, error) {
		switch attempts.Add(1) {
		case 1:
			return nil, errors.New("connection reset")
		case 2:
			return okResponse(http.StatusInternalServerError), nil
		default:
			close(done)
			return okResponse(http.StatusNoContent), nil
		}
	}}

	n := NewEventNotifier([]string{"https://hooks.example.com/hook"}, "hook-secret", newNotifierSigMock(ctrl), client, 4, newTestLogger())
	n.retries = []time.Duration{time.Millisecond, time.Millisecond, time.Millisecond}
	stop := runNotifier(t, n)
	defer stop()

	n.Publish(domain.NewPauseActivatedEvent("root"))

	select {
	case <-done:
		assert.Equal(t, int32(3), attempts.Load())
	case <-time.After(2 * time.Second):
		t.Fatal("webhook never succeeded")
	}
}

func TestEventNotifier_GivesUpAfterLadder(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	var attempts atomic.Int32
	client := &mockHTTPClient{doFunc: func(req *http.Request) (*http.Response, error) {
		attempts.Add(1)
		return okResponse(http.StatusBadGateway), nil
	}}

	n := NewEventNotifier([]string{"https://hooks.example.com/hook"}, "hook-secret", newNotifierSigMock(ctrl), client, 4, newTestLogger())
	n.retries = []time.Duration{time.Millisecond, time.Millisecond}

	// deliver synchronously: one try plus one per interval
	n.deliver(context.Background(), "https://hooks.example.com/hook", *domain.NewWithdrawEvent("alice", 1))
	assert.Equal(t, int32(3), attempts.Load())
}

func TestEventNotifier_NoURLs(t *testing.T) {
	client := &mockHTTPClient{doFunc: func(req *http.Request) (*http.Response, error) {
		t.Fatal("should not be called")
		return nil, nil
	}}
	n := NewEventNotifier(nil, "", NewHMACSignatureService(), client, 1, newTestLogger())

	n.Publish(domain.NewDepositEvent("alice", 1))
	assert.Empty(t, n.subscribers)
}

func TestEventNotifier_QueueFullDrops(t *testing.T) {
	n := NewEventNotifier([]string{"https://hooks.example.com/hook"}, "s", NewHMACSignatureService(), &mockHTTPClient{}, 1, newTestLogger())

	n.Publish(domain.NewDepositEvent("alice", 1))
	n.Publish(domain.NewDepositEvent("alice", 2)) // no worker running, dropped

	queue := n.subscribers[0].queue
	require.Len(t, queue, 1)
	assert.Equal(t, int64(1), (<-queue).Amount)
}

func TestEventNotifier_DeadURLDoesNotStallOthers(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	healthy := make(chan int64, 8)
	client := &mockHTTPClient{doFunc: func(req *http.Request) (*http.Response, error) {
		if req.URL.Host == "dead.example.com" {
			return nil, errors.New("connection refused")
		}
		var payload EventPayload
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			return nil, err
		}
		healthy <- payload.Data.Amount
		return okResponse(http.StatusOK), nil
	}}

	n := NewEventNotifier(
		[]string{"https://dead.example.com/hook", "https://live.example.com/hook"},
		"hook-secret", newNotifierSigMock(ctrl), client, 8, newTestLogger(),
	)
	n.retries = []time.Duration{time.Hour}
	stop := runNotifier(t, n)
	defer stop()

	for amount := int64(1); amount <= 5; amount++ {
		n.Publish(domain.NewDepositEvent("alice", amount))
	}

	for want := int64(1); want <= 5; want++ {
		select {
		case got := <-healthy:
			assert.Equal(t, want, got, "each URL receives events in publish order")
		case <-time.After(2 * time.Second):
			t.Fatalf("event %d never reached the live URL", want)
		}
	}
}
