package telemetrysvc

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"

	"github.com/hoopdesk/hoopdesk/core"
	"github.com/hoopdesk/hoopdesk/core/telemetry"
)

// Writer is the subset of kafka.Writer used by the sink.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink writes reports to the telemetry topic, keyed by severity.
type KafkaSink struct {
	writer Writer
}

var _ telemetry.Sink = (*KafkaSink)(nil)

func NewKafkaSink(conf core.KafkaConfig) *KafkaSink {
	return NewKafkaSinkWithWriter(&kafka.Writer{
		Addr:         kafka.TCP(conf.Broker),
		Topic:        conf.TelemetryTopic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	})
}

func NewKafkaSinkWithWriter(w Writer) *KafkaSink {
	return &KafkaSink{writer: w}
}

func (s *KafkaSink) Publish(ctx context.Context, r telemetry.Report) error {
	b, err := json.Marshal(r)
	if err != nil {
		return errors.Wrap(err, "encoding report")
	}
	msg := kafka.Message{
		Key:   []byte(r.Severity),
		Value: b,
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(r.Kind)},
		},
	}
	return errors.Wrap(s.writer.WriteMessages(ctx, msg), "writing report")
}

func (s *KafkaSink) Close() error {
	return s.writer.Close()
}

// FunctionSink hands reports to the backend's telemetry ingestion function.
type FunctionSink struct {
	functions core.FunctionDispatcher
}

var _ telemetry.Sink = (*FunctionSink)(nil)

func NewFunctionSink(functions core.FunctionDispatcher) *FunctionSink {
	return &FunctionSink{functions: functions}
}

func (s *FunctionSink) Publish(ctx context.Context, r telemetry.Report) error {
	return s.functions.Dispatch(ctx, core.FnErrorTelemetry, r)
}
