package observability

import "time"

const (
	OutcomeSuccess          = "success"
	OutcomeRejected         = "rejected"
	OutcomeExecutionError   = "execution_error"
	OutcomeTranslationError = "translation_error"
)

func ObserveOutcome(outcome string) {
	questionsTotal.WithLabelValues(outcome).Inc()
}

func ObserveRejection(reason string) {
	questionsTotal.WithLabelValues(OutcomeRejected).Inc()
	rejectionsTotal.WithLabelValues(reason).Inc()
}

func ObserveExecution(elapsed time.Duration) {
	executionSeconds.Observe(elapsed.Seconds())
}

func ObserveTranslation(elapsed time.Duration) {
	translationSeconds.Observe(elapsed.Seconds())
}

func SetQueryLogEntries(count int) {
	if count < 0 {
		count = 0
	}
	queryLogEntries.Set(float64(count))
}
