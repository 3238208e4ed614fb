package main

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMessageWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *fakeMessageWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeMessageWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaSaleEventPublisher_Publish(t *testing.T) {
	// Arrange
	writer := &fakeMessageWriter{}
	publisher := &KafkaSaleEventPublisher{writer: writer}
	sale := sampleSale("s1", "c1", "Ana", sampleItem("Coffee", "10.00", 2))

	// Act
	err := publisher.PublishSaleRecorded(context.Background(), sale)

	// Assert
	require.NoError(t, err)
	require.Len(t, writer.messages, 1)
	msg := writer.messages[0]
	assert.Equal(t, "s1", string(msg.Key))
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, SaleRecordedEventType, string(msg.Headers[0].Value))
	assert.True(t, msg.Time.Equal(sale.CreatedAt))

	var event SaleRecordedEvent
	require.NoError(t, json.Unmarshal(msg.Value, &event))
	assert.Equal(t, SaleRecordedEventType, event.EventType)
	assert.Equal(t, "s1", event.SaleID)
	assert.Equal(t, "Ana", event.CustomerName)
	assert.True(t, event.Total.Equal(sale.Total))
	require.Len(t, event.Items, 1)
	assert.Equal(t, 2, event.Items[0].Quantity)

	require.NoError(t, publisher.Close())
	assert.True(t, writer.closed)
}

func TestKafkaSaleEventPublisher_WriteError(t *testing.T) {
	writer := &fakeMessageWriter{err: errors.New("leader not available")}
	publisher := &KafkaSaleEventPublisher{writer: writer}

	err := publisher.PublishSaleRecorded(context.Background(), sampleSale("s1", "", "", sampleItem("Tea", "1.00", 1)))

	assert.ErrorIs(t, err, writer.err)
}

func TestNewKafkaSaleEventPublisher(t *testing.T) {
	publisher := NewKafkaSaleEventPublisher(KafkaConfig{Brokers: []string{"localhost:9092"}, SalesTopic: "sales.recorded"})

	writer, ok := publisher.writer.(*kafka.Writer)
	require.True(t, ok)
	assert.Equal(t, "sales.recorded", writer.Topic)
	assert.Equal(t, kafka.RequireAll, writer.RequiredAcks)
}

func TestNewSaleRecordedEvent(t *testing.T) {
	sale := NewSale("", "", nil, sampleItem("Tea", "1.00", 1).LineTotal, time.Now())
	sale.ID = "s9"

	event := NewSaleRecordedEvent(sale)

	assert.Equal(t, "s9", event.SaleID)
	assert.Equal(t, GuestCustomerName, event.CustomerName)
	assert.Empty(t, event.CustomerID)
}
