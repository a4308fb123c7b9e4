package output

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"github.com/chrisdamba/bhtraffic/internal/models"
	"github.com/sirupsen/logrus"
)

// SyncProducer is the part of sarama.SyncProducer the output uses.
type SyncProducer interface {
	SendMessage(msg *sarama.ProducerMessage) (partition int32, offset int64, err error)
	Close() error
}

func NewSaramaProducer(cfg models.KafkaConfig) (sarama.SyncProducer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Producer.RequiredAcks = sarama.WaitForAll
	saramaConfig.Producer.Retry.Max = 5
	saramaConfig.Producer.Retry.Backoff = 100 * time.Millisecond
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Net.DialTimeout = 30 * time.Second
	saramaConfig.Net.ReadTimeout = 30 * time.Second
	saramaConfig.Net.WriteTimeout = 30 * time.Second

	brokerList := strings.Split(cfg.BrokerList, ",")
	producer, err := sarama.NewSyncProducer(brokerList, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Sarama producer: %w", err)
	}
	logrus.WithFields(logrus.Fields{"component": "output", "brokers": brokerList}).Info("kafka producer created")
	return producer, nil
}

// KafkaOutput publishes each report as one JSON message keyed by the filter,
// so results of the same query land on the same partition.
type KafkaOutput struct {
	producer SyncProducer
	topic    string
	opts     Options
	log      *logrus.Entry
}

func NewKafkaOutput(producer SyncProducer, topic string, opts Options) *KafkaOutput {
	return &KafkaOutput{
		producer: producer,
		topic:    topic,
		opts:     opts,
		log:      logrus.WithFields(logrus.Fields{"component": "output", "topic": topic}),
	}
}

func (k *KafkaOutput) WriteReport(ctx context.Context, r Report) error {
	if k.producer == nil {
		return fmt.Errorf("kafka producer is closed")
	}
	msg, err := json.Marshal(Document(r, k.opts))
	if err != nil {
		return err
	}
	partition, offset, err := k.producer.SendMessage(&sarama.ProducerMessage{
		Topic: k.topic,
		Key:   sarama.StringEncoder(r.Filter.Key()),
		Value: sarama.ByteEncoder(msg),
		Headers: []sarama.RecordHeader{
			{Key: []byte("query_id"), Value: []byte(r.QueryID)},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to send report to topic %s: %w", k.topic, err)
	}
	k.log.WithFields(logrus.Fields{"partition": partition, "offset": offset, "query_id": r.QueryID}).Debug("report published")
	return nil
}

func (k *KafkaOutput) Close() error {
	if k.producer == nil {
		return nil
	}
	err := k.producer.Close()
	k.producer = nil
	return err
}
