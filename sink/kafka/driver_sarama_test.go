package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"esbridge/internal/bus"
	"esbridge/sink"
)

func headers(msg *sarama.ProducerMessage) map[string]string {
	out := map[string]string{}
	for _, h := range msg.Headers {
		out[string(h.Key)] = string(h.Value)
	}
	return out
}

func TestSendResponse(t *testing.T) {
	mp := mocks.NewSyncProducer(t, mocks.NewTestConfig())
	defer func() { _ = mp.Close() }()

	var got *sarama.ProducerMessage
	mp.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(m *sarama.ProducerMessage) error {
		got = m
		return nil
	})

	p := NewPublisherFromProducer(mp)
	req := &bus.Request{MessageID: "m1", ReplyTo: "replies"}
	require.NoError(t, p.SendResponse(context.Background(), bus.NewErrorResponse(req, "boom", 3, []byte(`{}`))))

	require.NotNil(t, got)
	assert.Equal(t, "replies", got.Topic)
	h := headers(got)
	assert.Equal(t, bus.TypeError, h[bus.HeaderMessageType])
	assert.Equal(t, "m1", h[bus.HeaderRequestID])
	assert.Equal(t, "boom", h[bus.HeaderErrorMessage])
	assert.Equal(t, "3", h[bus.HeaderErrorCode])
}

func TestSendRequestAndEvent(t *testing.T) {
	mp := mocks.NewSyncProducer(t, mocks.NewTestConfig())
	defer func() { _ = mp.Close() }()

	var msgs []*sarama.ProducerMessage
	capture := func(m *sarama.ProducerMessage) error {
		msgs = append(msgs, m)
		return nil
	}
	mp.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(capture)
	mp.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(capture)

	p := NewPublisherFromProducer(mp)
	require.NoError(t, p.SendRequest(context.Background(), &bus.Request{
		Topic: "svc.get", MessageID: "m1", ReplyTo: "replies", Payload: []byte(`{"id":"1"}`),
	}))
	require.NoError(t, p.SendEvent(context.Background(), &bus.Event{Topic: "events", Payload: []byte(`{}`)}))

	require.Len(t, msgs, 2)
	key, err := msgs[0].Key.Encode()
	require.NoError(t, err)
	assert.Equal(t, "m1", string(key))
	assert.Equal(t, "replies", headers(msgs[0])[bus.HeaderReplyTo])
	assert.Equal(t, bus.TypeRequest, headers(msgs[0])[bus.HeaderMessageType])
	assert.Nil(t, msgs[1].Key)
	assert.Equal(t, bus.TypeEvent, headers(msgs[1])[bus.HeaderMessageType])
}

func TestSendFailures(t *testing.T) {
	mp := mocks.NewSyncProducer(t, mocks.NewTestConfig())
	mp.ExpectSendMessageAndFail(errors.New("leader not available"))

	p := NewPublisherFromProducer(mp)
	err := p.SendResponse(context.Background(), &bus.Response{Topic: "replies"})
	assert.ErrorContains(t, err, "leader not available")

	assert.Error(t, p.SendResponse(context.Background(), &bus.Response{}), "missing reply topic")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.SendResponse(ctx, &bus.Response{Topic: "replies"}), context.Canceled)

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	assert.Error(t, p.SendResponse(context.Background(), &bus.Response{Topic: "replies"}))
}

func TestRegistered(t *testing.T) {
	a, err := sink.NewAdapter("kafka")
	require.NoError(t, err)
	assert.Error(t, a.Configure("wrong"))
}
