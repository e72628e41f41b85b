package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutorhub-api/pkg/config"
)

type fakeConn struct {
	subject string
	data    []byte
	err     error
	drained bool
}

func (f *fakeConn) Publish(subject string, data []byte) error {
	f.subject = subject
	f.data = data
	return f.err
}

func (f *fakeConn) Drain() error {
	f.drained = true
	return nil
}

func TestNATSPublisherWrapsPayload(t *testing.T) {
	nc := &fakeConn{}
	pub := newNATSPublisher(nc, "tutorhub.", nil)

	err := pub.Publish(context.Background(), PaymentSettled, map[string]string{"transactionId": "trx-1"})
	require.NoError(t, err)
	assert.Equal(t, "tutorhub.payment.settled", nc.subject)

	var env struct {
		ID   string            `json:"id"`
		Type string            `json:"type"`
		Data map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(nc.data, &env))
	assert.NotEmpty(t, env.ID)
	assert.Equal(t, PaymentSettled, env.Type)
	assert.Equal(t, "trx-1", env.Data["transactionId"])

	pub.Close()
	assert.True(t, nc.drained)
}

func TestNATSPublisherPropagatesErrors(t *testing.T) {
	nc := &fakeConn{err: errors.New("connection closed")}
	pub := newNATSPublisher(nc, "", nil)

	err := pub.Publish(context.Background(), ReviewRecorded, nil)
	require.Error(t, err)
	assert.Equal(t, "tutorhub.review.recorded", nc.subject)
}

func TestPublishHonoursCancelledContext(t *testing.T) {
	nc := &fakeConn{}
	pub := newNATSPublisher(nc, "x", nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, pub.Publish(ctx, ApplicationApproved, nil), context.Canceled)
	assert.Empty(t, nc.subject)
}

func TestConnectWithoutURLIsNop(t *testing.T) {
	pub, err := Connect(config.EventsConfig{}, nil)
	require.NoError(t, err)
	assert.IsType(t, Nop{}, pub)
	assert.NoError(t, pub.Publish(context.Background(), ApplicationApproved, nil))
}
