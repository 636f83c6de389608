package telemetrysvc

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hoopdesk/hoopdesk/core/telemetry"
)

// fakeWriter records the messages written.
type fakeWriter struct {
	msgs []kafka.Message
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func TestKafkaSink_Publish(t *testing.T) {
	fw := new(fakeWriter)
	sink := NewKafkaSinkWithWriter(fw)

	err := sink.Publish(context.Background(), telemetry.Report{
		Kind:     telemetry.KindError,
		Severity: telemetry.SeverityHigh,
		Message:  "render failed",
	})
	require.NoError(t, err)
	require.Len(t, fw.msgs, 1)
	assert.Equal(t, "high", string(fw.msgs[0].Key))
	assert.Equal(t, "error", string(fw.msgs[0].Headers[0].Value))

	var got telemetry.Report
	require.NoError(t, json.Unmarshal(fw.msgs[0].Value, &got))
	assert.Equal(t, "render failed", got.Message)
}

type dispatchSpy struct {
	name string
}

func (d *dispatchSpy) Dispatch(_ context.Context, name string, _ interface{}) error {
	d.name = name
	return nil
}

func TestFunctionSink_Publish(t *testing.T) {
	spy := new(dispatchSpy)
	require.NoError(t, NewFunctionSink(spy).Publish(context.Background(), telemetry.Report{}))
	assert.Equal(t, "error-telemetry", spy.name)
}
