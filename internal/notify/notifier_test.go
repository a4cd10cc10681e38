package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/webitel/rocrate-exporter/internal/errors"
)

type recordingSender struct {
	mu       sync.Mutex
	failures int
	sent     []Message
	attempts int
}

func (s *recordingSender) Send(_ context.Context, _ string, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts++
	if s.attempts <= s.failures {
		return errors.New("smtp unavailable")
	}
	s.sent = append(s.sent, msg)
	return nil
}

func TestNotifierRetriesThenSucceeds(t *testing.T) {
	s := &recordingSender{failures: 2}
	n := NewNotifier(s, WithRetries(2, time.Millisecond))

	err := n.SendResult(context.Background(), Params{To: "a@b.c", DownloadURL: "https://dl", FileCount: 1})
	require.NoError(t, err)
	assert.Equal(t, 3, s.attempts)
	require.Len(t, s.sent, 1)
	assert.Equal(t, subjectReady, s.sent[0].Subject)
}

func TestNotifierGivesUp(t *testing.T) {
	s := &recordingSender{failures: 10}
	n := NewNotifier(s, WithRetries(2, time.Millisecond))

	err := n.SendResult(context.Background(), Params{To: "a@b.c", FileCount: 1})
	require.Error(t, err)

	var ne *apperrors.NotificationError
	require.ErrorAs(t, err, &ne)
	assert.Equal(t, "a@b.c", ne.To)
	assert.Equal(t, 3, s.attempts)
	assert.Empty(t, s.sent)
}

func TestNewSender(t *testing.T) {
	s, err := NewSender(Config{Provider: ProviderLog})
	require.NoError(t, err)
	assert.NoError(t, s.Send(context.Background(), "a@b.c", Message{Subject: "x"}))

	_, err = NewSender(Config{Provider: ProviderSendGrid, From: "noreply@example.com"})
	assert.Error(t, err)

	_, err = NewSender(Config{Provider: ProviderMailgun, From: "noreply@example.com", Key: "k"})
	assert.Error(t, err)

	_, err = NewSender(Config{Provider: ProviderSES})
	assert.Error(t, err)

	_, err = NewSender(Config{Provider: "pigeon", From: "x@y.z"})
	assert.Error(t, err)

	sg, err := NewSender(Config{Provider: ProviderSendGrid, From: "noreply@example.com", Key: "SG.key"})
	require.NoError(t, err)
	assert.IsType(t, &SendGridSender{}, sg)
}
