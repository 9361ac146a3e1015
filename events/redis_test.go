package events

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
	"github.com/ruteri/vanity-name-registrar/api"
	"github.com/ruteri/vanity-name-registrar/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	args := m.Called(ctx, channel, message)
	return args.Get(0).(*redis.IntCmd)
}

func testEvent() interfaces.Event {
	return interfaces.Event{
		Seq:     7,
		Kind:    interfaces.EventRegistered,
		Name:    "dhruv",
		Amount:  new(big.Int).Mul(big.NewInt(5), big.NewInt(1_000_000_000_000_000_000)),
		Address: common.HexToAddress("0x5B38Da6a701c568545dCfcB03FcB875f56beddC4"),
		Time:    time.Unix(1_700_000_000, 0).UTC(),
	}
}

func TestRedisPublisher_Publish(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := &mockPublisher{}

	var captured []byte
	client.On("Publish", mock.Anything, "vns:test", mock.Anything).
		Run(func(args mock.Arguments) {
			captured = args.Get(2).([]byte)
		}).
		Return(redis.NewIntResult(1, nil))

	publisher := NewRedisPublisher(client, "vns:test", logger)
	require.NoError(t, publisher.Publish(context.Background(), testEvent()))
	client.AssertExpectations(t)

	var msg api.EventMessage
	require.NoError(t, json.Unmarshal(captured, &msg))
	assert.Equal(t, uint64(7), msg.Seq)
	assert.Equal(t, interfaces.EventRegistered, msg.Kind)
	assert.Equal(t, "dhruv", msg.Name)
	assert.Equal(t, "0x4563918244f40000", msg.Amount.String())
	assert.Equal(t, int64(1_700_000_000), msg.Time)
	assert.Zero(t, msg.EndDate)

	decoded := msg.Event()
	assert.Equal(t, testEvent().Amount, decoded.Amount)
	assert.True(t, testEvent().Time.Equal(decoded.Time))
}

func TestRedisPublisher_DefaultChannel(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := &mockPublisher{}
	client.On("Publish", mock.Anything, DefaultChannel, mock.Anything).Return(redis.NewIntResult(0, nil))

	require.NoError(t, NewRedisPublisher(client, "", logger).Publish(context.Background(), testEvent()))
	client.AssertExpectations(t)
}

func TestRedisPublisher_Error(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := &mockPublisher{}
	client.On("Publish", mock.Anything, mock.Anything, mock.Anything).
		Return(redis.NewIntResult(0, errors.New("connection refused")))

	err := NewRedisPublisher(client, "", logger).Publish(context.Background(), testEvent())
	assert.ErrorContains(t, err, "connection refused")
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	require.NoError(t, NewLogSink(logger).Publish(context.Background(), testEvent()))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "Registrar event", line["msg"])
	assert.Equal(t, "Registered", line["kind"])
	assert.Equal(t, "dhruv", line["name"])
	assert.Equal(t, "5000000000000000000", line["amount"])
	assert.NotContains(t, line, "end_date")
}
