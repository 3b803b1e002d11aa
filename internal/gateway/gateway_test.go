package gateway

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hyinfo/phishgate/internal/allowlist"
	"github.com/hyinfo/phishgate/internal/config"
	"github.com/hyinfo/phishgate/internal/core"
	"github.com/hyinfo/phishgate/internal/ratelimit"
)

type recordingStore struct {
	mu      sync.Mutex
	records []*core.DeliveryRecord
	failFor string
}

func (s *recordingStore) CreateStub(ctx context.Context, rec *core.DeliveryRecord) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failFor != "" && rec.Recipient == s.failFor {
		return "", errors.New("storage unavailable")
	}
	clone := *rec
	s.records = append(s.records, &clone)
	return rec.ID, nil
}

func (s *recordingStore) UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error {
	return nil
}

func (s *recordingStore) GetByID(ctx context.Context, id string) (*core.DeliveryRecord, error) {
	return nil, errors.New("not implemented")
}

type recordingQueue struct {
	mu   sync.Mutex
	jobs []core.DetectionJob
}

func (q *recordingQueue) Enqueue(ctx context.Context, job core.DetectionJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
	return nil
}

func newTestGateway(store *recordingStore, queue *recordingQueue, domains []string, limit int) *Gateway {
	logger := zap.NewNop()
	return New(
		store,
		queue,
		ratelimit.NewLimiter(limit, 10*time.Minute, logger),
		allowlist.NewChecker(domains, logger),
		nil,
		logger,
		config.GatewayConfig{Hostname: "mail.test"},
	)
}

var testAddr = &net.TCPAddr{IP: net.ParseIP("203.0.113.7"), Port: 52525}

const multiRecipientMessage = "From: alice@example.com\r\n" +
	"To: bob@hyinfo.cc, carol@hyinfo.cc, mallory@elsewhere.example\r\n" +
	"Subject: Team update\r\n" +
	"Date: Mon, 02 Jun 2025 09:00:00 +0000\r\n" +
	"\r\n" +
	"Hello team\r\n"

func TestHandleMessageSplitsPerRecipient(t *testing.T) {
	store := &recordingStore{}
	queue := &recordingQueue{}
	gw := newTestGateway(store, queue, []string{"hyinfo.cc"}, 50)

	err := gw.HandleMessage(testAddr, []byte(multiRecipientMessage))
	require.NoError(t, err)

	// One record and one job per allow-listed recipient; the outside
	// address is dropped.
	require.Len(t, store.records, 2)
	require.Len(t, queue.jobs, 2)

	recipients := []string{store.records[0].Recipient, store.records[1].Recipient}
	assert.ElementsMatch(t, []string{"bob@hyinfo.cc", "carol@hyinfo.cc"}, recipients)

	for i, rec := range store.records {
		assert.Equal(t, "alice@example.com", rec.Sender)
		assert.Equal(t, "example.com", rec.FromDomain)
		assert.Equal(t, "203.0.113.7", rec.SourceIP)
		assert.Equal(t, core.PendingBody, rec.ContentText)
		assert.Equal(t, rec.ID, queue.jobs[i].RecordID)
		assert.Equal(t, []byte(multiRecipientMessage), queue.jobs[i].RawMessage)
	}

	ids := map[string]bool{store.records[0].ID: true, store.records[1].ID: true}
	assert.Len(t, ids, 2, "each delivery gets its own id")
}

func TestHandleMessageNoAllowedRecipients(t *testing.T) {
	store := &recordingStore{}
	queue := &recordingQueue{}
	gw := newTestGateway(store, queue, []string{"hyinfo.cc"}, 50)

	raw := "From: alice@example.com\r\nTo: someone@elsewhere.example\r\nSubject: x\r\n\r\nbody\r\n"
	err := gw.HandleMessage(testAddr, []byte(raw))
	require.NoError(t, err, "drop must look like success to the sender")
	assert.Empty(t, store.records)
	assert.Empty(t, queue.jobs)
}

func TestHandleMessageRateLimited(t *testing.T) {
	store := &recordingStore{}
	queue := &recordingQueue{}
	gw := newTestGateway(store, queue, []string{"hyinfo.cc"}, 2)

	raw := []byte(multiRecipientMessage)
	require.NoError(t, gw.HandleMessage(testAddr, raw))
	require.NoError(t, gw.HandleMessage(testAddr, raw))
	require.NoError(t, gw.HandleMessage(testAddr, raw), "over-limit message still gets 250")

	// Third message was silently dropped: records only for the first two.
	assert.Len(t, store.records, 4)
	assert.Len(t, queue.jobs, 4)
}

func TestHandleMessageStubFailureSkipsRecipientOnly(t *testing.T) {
	store := &recordingStore{failFor: "bob@hyinfo.cc"}
	queue := &recordingQueue{}
	gw := newTestGateway(store, queue, []string{"hyinfo.cc"}, 50)

	err := gw.HandleMessage(testAddr, []byte(multiRecipientMessage))
	require.NoError(t, err)

	require.Len(t, store.records, 1)
	assert.Equal(t, "carol@hyinfo.cc", store.records[0].Recipient)
	require.Len(t, queue.jobs, 1)
	assert.Equal(t, store.records[0].ID, queue.jobs[0].RecordID)
}

func TestHandleMessageEmptyAllowListAcceptsAll(t *testing.T) {
	store := &recordingStore{}
	queue := &recordingQueue{}
	gw := newTestGateway(store, queue, nil, 50)

	err := gw.HandleMessage(testAddr, []byte(multiRecipientMessage))
	require.NoError(t, err)
	assert.Len(t, store.records, 3)
}
