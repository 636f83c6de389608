package functions

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/hoopdesk/hoopdesk/core"
	"github.com/hoopdesk/hoopdesk/core/gateway"
)

// JobQueue holds the function calls waiting to run.
const JobQueue = "function_jobs"

// Channel is the subset of *amqp.Channel used here.
type Channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Close() error
}

var _ Channel = (*amqp.Channel)(nil)

// Job is one queued function call.
type Job struct {
	Function     string          `json:"function"`
	Payload      json.RawMessage `json:"payload"`
	Actor        string          `json:"actor,omitempty"`
	DispatchedAt time.Time       `json:"dispatched_at"`
}

// Dial opens a connection and a channel, and declares the job queue.
func Dial(url string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, errors.Wrap(err, "dialing rabbitmq")
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, errors.Wrap(err, "opening rabbitmq channel")
	}
	if err := declare(ch); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, nil, err
	}
	return conn, ch, nil
}

func declare(ch Channel) error {
	_, err := ch.QueueDeclare(
		JobQueue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	return errors.Wrap(err, "declaring job queue")
}

// QueueDispatcher publishes function calls to the job queue.
type QueueDispatcher struct {
	ch Channel
}

var _ core.FunctionDispatcher = (*QueueDispatcher)(nil)

func NewQueueDispatcher(ch Channel) *QueueDispatcher {
	return &QueueDispatcher{ch: ch}
}

func (d *QueueDispatcher) Dispatch(ctx context.Context, name string, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrapf(err, "encoding %s payload", name)
	}
	body, err := json.Marshal(Job{
		Function:     name,
		Payload:      raw,
		Actor:        gateway.ActorFrom(ctx),
		DispatchedAt: core.NowFunc().UTC(),
	})
	if err != nil {
		return errors.Wrap(err, "encoding job")
	}
	err = d.ch.PublishWithContext(ctx,
		"",       // exchange
		JobQueue, // routing key
		false,    // mandatory
		false,    // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
	return errors.Wrapf(err, "publishing %s job", name)
}

// Worker runs queued function calls. A call failing with a transient error is
// requeued once; any other failure drops the job.
type Worker struct {
	ch      Channel
	invoker core.FunctionInvoker
	timeout time.Duration
	logger  core.Logger
}

func NewWorker(ch Channel, invoker core.FunctionInvoker, timeout time.Duration, logger core.Logger) *Worker {
	return &Worker{ch: ch, invoker: invoker, timeout: timeout, logger: logger}
}

// Run consumes jobs until ctx is done or the channel closes.
func (w *Worker) Run(ctx context.Context) error {
	deliveries, err := w.ch.Consume(
		JobQueue,
		"",    // consumer
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return errors.Wrap(err, "consuming job queue")
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("job queue closed")
			}
			w.handle(ctx, d)
		}
	}
}

func (w *Worker) handle(ctx context.Context, d amqp.Delivery) {
	var job Job
	if err := json.Unmarshal(d.Body, &job); err != nil {
		w.logger.Error(fmt.Sprintf("malformed job: %v", err), err)
		_ = d.Nack(false, false)
		return
	}

	ctx, cancel := context.WithTimeout(gateway.WithActor(ctx, job.Actor), w.timeout)
	defer cancel()
	err := w.invoker.Invoke(ctx, job.Function, job.Payload, nil)
	switch {
	case err == nil:
		_ = d.Ack(false)
	case gateway.IsRetryable(err) && !d.Redelivered:
		w.logger.Warn(fmt.Sprintf("function %s failed, requeued: %v", job.Function, err), err)
		_ = d.Nack(false, true)
	default:
		w.logger.Error(fmt.Sprintf("function %s failed: %v", job.Function, err), err)
		_ = d.Nack(false, false)
	}
}
