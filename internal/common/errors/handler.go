// internal/common/errors/handler.go
package errors

type Logger interface {
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

// Notifier receives the user-visible side of a failure.
type Notifier interface {
	Error(title, description string)
}

// Reporter logs failures and, for user-facing ones, forwards the message to a Notifier.
type Reporter struct {
	logger   Logger
	notifier Notifier
}

func NewReporter(logger Logger, notifier Notifier) *Reporter {
	return &Reporter{logger: logger, notifier: notifier}
}

// Surface logs err and shows its Message to the user. Used for write and upload failures.
func (r *Reporter) Surface(err error, fields map[string]interface{}) *StandardError {
	stdErr := AsStandard(err)
	r.logger.Error(stdErr.Message, r.fields(stdErr, fields))
	if r.notifier != nil {
		r.notifier.Error(stdErr.Message, stdErr.Details)
	}
	return stdErr
}

// Log records err without any user-visible message.
func (r *Reporter) Log(err error, fields map[string]interface{}) *StandardError {
	stdErr := AsStandard(err)
	r.logger.Warn(stdErr.Message, r.fields(stdErr, fields))
	return stdErr
}

func (r *Reporter) fields(stdErr *StandardError, extra map[string]interface{}) map[string]interface{} {
	out := map[string]interface{}{
		"errorCode":     string(stdErr.Code),
		"details":       stdErr.Details,
		"retryable":     stdErr.Retryable,
		"errorCategory": GetErrorCategory(stdErr.Code),
	}
	for k, v := range stdErr.Metadata {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}
