package orchestrator

import (
	"errors"
	"fmt"

	apperrors "github.com/researchcli/research/internal/errors"
)

// FallbackPolicy decides whether a failed model call should be retried on
// the fallback model. At most one switch happens per session; once the
// session runs on the fallback there is nowhere further to go.
type FallbackPolicy struct {
	FallbackModel string
}

// Decide inspects the error from a model call. It returns the model to
// retry on and a user-facing notice, or ok=false when the error should
// propagate.
func (p FallbackPolicy) Decide(err error, currentModel string) (model, notice string, ok bool) {
	if p.FallbackModel == "" || p.FallbackModel == currentModel {
		return "", "", false
	}
	if !apperrors.IsCategory(err, apperrors.ErrQuotaExceeded) {
		return "", "", false
	}

	var quotaErr *apperrors.QuotaError
	if errors.As(err, &quotaErr) && quotaErr.ProQuota {
		notice = fmt.Sprintf("Daily quota for %s reached, switching to %s for the rest of this session.", currentModel, p.FallbackModel)
	} else {
		notice = fmt.Sprintf("Rate limited on %s, retrying with %s.", currentModel, p.FallbackModel)
	}
	return p.FallbackModel, notice, true
}
