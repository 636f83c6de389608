package core

import "context"

// Serverless functions of the managed backend.
const (
	FnVideoShotAnalysis      = "video-shot-analysis"
	FnVideoTechniqueAnalysis = "video-technique-analysis"
	FnErrorTelemetry         = "error-telemetry"
	FnCriticalErrorEmail     = "critical-error-email"
	FnHealthAlertEmail       = "health-alert-email"
)

// FunctionInvoker calls a serverless function and waits for its JSON reply.
type FunctionInvoker interface {
	Invoke(ctx context.Context, name string, payload interface{}, dest interface{}) error
}

// FunctionDispatcher hands a serverless function call off without waiting for it to run.
type FunctionDispatcher interface {
	Dispatch(ctx context.Context, name string, payload interface{}) error
}
