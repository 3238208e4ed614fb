package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
)

const SaleRecordedEventType = "sale.recorded"

// SaleRecordedEvent é publicado uma vez para cada venda gravada
type SaleRecordedEvent struct {
	EventType    string          `json:"eventType"`
	SaleID       string          `json:"saleId"`
	CustomerID   string          `json:"customerId,omitempty"`
	CustomerName string          `json:"customerName"`
	Items        []SaleItem      `json:"items"`
	Total        decimal.Decimal `json:"total"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// NewSaleRecordedEvent cria o evento a partir da venda gravada
func NewSaleRecordedEvent(sale *Sale) SaleRecordedEvent {
	return SaleRecordedEvent{
		EventType:    SaleRecordedEventType,
		SaleID:       sale.ID,
		CustomerID:   sale.CustomerID,
		CustomerName: sale.CustomerName,
		Items:        sale.Items,
		Total:        sale.Total,
		CreatedAt:    sale.CreatedAt,
	}
}

// SaleEventPublisher publica os eventos de venda
type SaleEventPublisher interface {
	PublishSaleRecorded(ctx context.Context, sale *Sale) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSaleEventPublisher publica no tópico de vendas com um único writer reaproveitado
type KafkaSaleEventPublisher struct {
	writer messageWriter
}

// NewKafkaSaleEventPublisher cria uma nova instância de KafkaSaleEventPublisher
func NewKafkaSaleEventPublisher(cfg KafkaConfig) *KafkaSaleEventPublisher {
	return &KafkaSaleEventPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(cfg.Brokers...),
			Topic:                  cfg.SalesTopic,
			Balancer:               &kafka.LeastBytes{},
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
		},
	}
}

func (p *KafkaSaleEventPublisher) PublishSaleRecorded(ctx context.Context, sale *Sale) error {
	payload, err := json.Marshal(NewSaleRecordedEvent(sale))
	if err != nil {
		return fmt.Errorf("failed to encode sale event: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(sale.ID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(SaleRecordedEventType)},
		},
		Time: sale.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to publish sale %s: %w", sale.ID, err)
	}
	return nil
}

func (p *KafkaSaleEventPublisher) Close() error {
	return p.writer.Close()
}

// NopSaleEventPublisher descarta os eventos quando não há brokers configurados
type NopSaleEventPublisher struct{}

func (NopSaleEventPublisher) PublishSaleRecorded(context.Context, *Sale) error { return nil }

func (NopSaleEventPublisher) Close() error { return nil }
