// Package functions calls the managed backend's serverless functions, either
// over HTTP or through a RabbitMQ job queue for fire-and-forget calls.
package functions

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sendgrid/rest"

	"github.com/hoopdesk/hoopdesk/core"
	"github.com/hoopdesk/hoopdesk/core/gateway"
)

// HTTPInvoker posts JSON payloads to <FunctionsURL>/<name>.
type HTTPInvoker struct {
	baseURL string
	anonKey string
	client  *rest.Client
}

var _ core.FunctionInvoker = (*HTTPInvoker)(nil)

func NewHTTPInvoker(conf core.BackendConfig) *HTTPInvoker {
	return &HTTPInvoker{
		baseURL: strings.TrimRight(conf.FunctionsURL, "/"),
		anonKey: conf.AnonKey,
		client:  &rest.Client{HTTPClient: &http.Client{Timeout: conf.Timeout}},
	}
}

func (inv *HTTPInvoker) Invoke(ctx context.Context, name string, payload interface{}, dest interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrapf(err, "encoding %s payload", name)
	}
	req := rest.Request{
		Method:  rest.Post,
		BaseURL: inv.baseURL + "/" + name,
		Headers: map[string]string{
			"Content-Type":  "application/json",
			"Authorization": "Bearer " + inv.anonKey,
			"apikey":        inv.anonKey,
		},
		Body: body,
	}
	if actor := gateway.ActorFrom(ctx); actor != "" {
		req.Headers["X-Actor-Id"] = actor
	}

	res, err := inv.client.SendWithContext(ctx, req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return gateway.Classify(name, err)
	}
	if err := statusError(name, res); err != nil {
		return err
	}
	if dest == nil || res.Body == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(res.Body), dest); err != nil {
		return &gateway.Error{Kind: gateway.KindUnknown, Proc: name, Detail: "decoding reply: " + err.Error(), Err: err}
	}
	return nil
}

func statusError(name string, res *rest.Response) error {
	if res.StatusCode < http.StatusBadRequest {
		return nil
	}
	var kind gateway.Kind
	switch {
	case res.StatusCode == http.StatusUnauthorized, res.StatusCode == http.StatusForbidden:
		kind = gateway.KindPermission
	case res.StatusCode == http.StatusNotFound:
		kind = gateway.KindNotFound
	case res.StatusCode == http.StatusTooManyRequests, res.StatusCode >= http.StatusInternalServerError:
		kind = gateway.KindNetwork
	case res.StatusCode < http.StatusInternalServerError:
		kind = gateway.KindValidation
	}
	return &gateway.Error{Kind: kind, Proc: name, Detail: replyDetail(res)}
}

// replyDetail extracts {"error": "..."} or {"message": "..."} from a reply, or falls back to the status.
func replyDetail(res *rest.Response) string {
	var reply struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal([]byte(res.Body), &reply) == nil {
		if reply.Error != "" {
			return reply.Error
		}
		if reply.Message != "" {
			return reply.Message
		}
	}
	return fmt.Sprintf("function replied %d %s", res.StatusCode, http.StatusText(res.StatusCode))
}

// AsyncDispatcher runs each call in its own goroutine; used when no job queue is configured.
type AsyncDispatcher struct {
	invoker core.FunctionInvoker
	timeout time.Duration
	logger  core.Logger
	wg      sync.WaitGroup
}

var _ core.FunctionDispatcher = (*AsyncDispatcher)(nil)

func NewAsyncDispatcher(invoker core.FunctionInvoker, timeout time.Duration, logger core.Logger) *AsyncDispatcher {
	return &AsyncDispatcher{invoker: invoker, timeout: timeout, logger: logger}
}

func (d *AsyncDispatcher) Dispatch(ctx context.Context, name string, payload interface{}) error {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
		defer cancel()
		if err := d.invoker.Invoke(ctx, name, payload, nil); err != nil {
			d.logger.Error(fmt.Sprintf("function %s: %v", name, err), err)
		}
	}()
	return nil
}

// Wait blocks until every dispatched call returned.
func (d *AsyncDispatcher) Wait() {
	d.wg.Wait()
}
