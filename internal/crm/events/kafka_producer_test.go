package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/gartstein/crm/internal/crm/models"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

// MockKafkaWriter implements KafkaWriter for testing
type MockKafkaWriter struct {
	mock.Mock
}

func (m *MockKafkaWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}

func (m *MockKafkaWriter) Close() error {
	args := m.Called()
	return args.Error(0)
}

func TestNewProducerDefaults(t *testing.T) {
	producer := newProducer(new(MockKafkaWriter), zaptest.NewLogger(t))

	assert.NotNil(t, producer.writer)
	assert.Equal(t, queueSize, cap(producer.events))
	assert.NotNil(t, producer.closeChan)
	assert.Equal(t, "kafka_producer", producer.logger.Check(zap.InfoLevel, "").LoggerName)
}

func TestProducer_Produce(t *testing.T) {
	t.Run("successful produce", func(t *testing.T) {
		producer := newProducer(new(MockKafkaWriter), zaptest.NewLogger(t))
		contact := &models.Contact{ID: uuid.New()}

		producer.Produce(ContactCreated, contact)

		require.Equal(t, 1, len(producer.events))
		event := <-producer.events
		assert.Equal(t, ContactCreated, event.Type)
		assert.Same(t, contact, event.Contact)
		assert.False(t, event.OccurredAt.IsZero())
	})

	t.Run("dropped event when queue full", func(t *testing.T) {
		core, recorded := observer.New(zap.WarnLevel)
		producer := newProducer(new(MockKafkaWriter), zap.New(core))
		producer.events = make(chan Event, 1) // Small buffer for test
		contact := &models.Contact{ID: uuid.New()}

		producer.Produce(ContactCreated, contact)
		producer.Produce(ContactUpdated, contact) // This should be dropped

		assert.Equal(t, 1, recorded.FilterMessage("Kafka producer queue full, dropping event").Len())
	})
}

func TestProducer_SendEvent(t *testing.T) {
	contact := &models.Contact{ID: uuid.New(), FirstName: "Ann", LastName: "Lee"}
	event := Event{Type: ContactCreated, Contact: contact, OccurredAt: time.Unix(0, 0).UTC()}

	t.Run("successful send", func(t *testing.T) {
		mockWriter := new(MockKafkaWriter)
		mockWriter.On("WriteMessages", mock.Anything, mock.Anything).Return(nil)
		producer := &Producer{writer: mockWriter, logger: zaptest.NewLogger(t)}

		producer.sendEvent(context.Background(), event)

		mockWriter.AssertCalled(t, "WriteMessages", mock.Anything, []kafka.Message{
			{
				Key:   []byte(contact.ID.String()),
				Value: mustMarshal(event),
			},
		})
	})

	t.Run("serialization error", func(t *testing.T) {
		core, recorded := observer.New(zap.ErrorLevel)
		producer := &Producer{writer: new(MockKafkaWriter), logger: zap.New(core)}

		oldMarshal := jsonMarshal
		jsonMarshal = func(_ interface{}) ([]byte, error) {
			return nil, errors.New("mock marshal error")
		}
		defer func() { jsonMarshal = oldMarshal }()

		producer.sendEvent(context.Background(), event)

		assert.Equal(t, 1, recorded.FilterMessage("Failed to serialize event").Len())
		assert.Equal(t, 1, recorded.FilterField(zap.String("contact_id", contact.ID.String())).Len())
	})

	t.Run("write error", func(t *testing.T) {
		core, recorded := observer.New(zap.ErrorLevel)
		mockWriter := new(MockKafkaWriter)
		mockWriter.On("WriteMessages", mock.Anything, mock.Anything).Return(errors.New("kafka error"))
		producer := &Producer{writer: mockWriter, logger: zap.New(core)}

		producer.sendEvent(context.Background(), event)

		assert.Equal(t, 1, recorded.FilterMessage("Failed to produce event").Len())
	})
}

func TestProducer_Close(t *testing.T) {
	mockWriter := new(MockKafkaWriter)
	mockWriter.On("Close").Return(nil)
	producer := newProducer(mockWriter, zaptest.NewLogger(t))

	producer.Close()

	select {
	case <-producer.closeChan:
	default:
		t.Error("closeChan not closed")
	}
	mockWriter.AssertCalled(t, "Close")
}

func TestProducer_EventLoop(t *testing.T) {
	written := make(chan []kafka.Message, 1)
	mockWriter := new(MockKafkaWriter)
	mockWriter.On("WriteMessages", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			written <- args.Get(1).([]kafka.Message)
		}).
		Return(nil)
	mockWriter.On("Close").Return(nil)

	producer := newProducer(mockWriter, zaptest.NewLogger(t))
	go producer.eventLoop()
	defer producer.Close()

	contact := &models.Contact{ID: uuid.New()}
	producer.Produce(ContactDeleted, contact)

	select {
	case msgs := <-written:
		require.Len(t, msgs, 1)
		assert.Equal(t, []byte(contact.ID.String()), msgs[0].Key)
		var decoded Event
		require.NoError(t, json.Unmarshal(msgs[0].Value, &decoded))
		assert.Equal(t, ContactDeleted, decoded.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("event was not written")
	}
}

func TestNopProducer(t *testing.T) {
	var p NopProducer
	assert.NotPanics(t, func() {
		p.Produce(ContactCreated, &models.Contact{})
		p.Close()
	})
}

func mustMarshal(event Event) []byte {
	data, _ := json.Marshal(event)
	return data
}
