package routing

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/vietddude/interviewer/internal/infra/ai/provider"
)

// ErrorAction determines how to handle a provider error.
type ErrorAction int

const (
	ActionRetry ErrorAction = iota
	ActionFailover
	// ActionQuota is a failover caused by exhausted provider quota.
	ActionQuota
	ActionFatal
)

func (a ErrorAction) String() string {
	switch a {
	case ActionRetry:
		return "retry"
	case ActionFailover:
		return "failover"
	case ActionQuota:
		return "quota"
	case ActionFatal:
		return "fatal"
	}
	return "unknown"
}

// ClassifyError determines the action for a given provider error.
// Fatal errors are request or configuration problems that will not go away
// by retrying the same provider; quota and failover errors are
// provider-specific limits; everything else is transient.
func ClassifyError(err error) ErrorAction {
	if err == nil {
		return ActionRetry // Should not happen
	}
	if provider.IsQuotaError(err) {
		return ActionQuota
	}

	var se *provider.StatusError
	if errors.As(err, &se) {
		switch se.StatusCode {
		case http.StatusBadRequest, http.StatusUnauthorized, http.StatusNotFound:
			return ActionFatal
		case http.StatusForbidden, http.StatusPaymentRequired:
			return ActionFailover
		}
	}

	if errors.Is(err, ErrMalformedOutput) {
		return ActionFailover
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ActionRetry
	}

	s := strings.ToLower(err.Error())

	if strings.Contains(s, "invalid api key") || strings.Contains(s, "model_not_found") ||
		strings.Contains(s, "invalid_request_error") {
		return ActionFatal
	}

	if strings.Contains(s, "429") {
		return ActionQuota
	}
	if strings.Contains(s, "403") || strings.Contains(s, "forbidden") {
		return ActionFailover
	}

	// Default to Retry (Network, 5xx, etc)
	return ActionRetry
}
