package metrics

const Namespace = "cloudops"

const (
	OutcomeSuccess = "success"
	OutcomeFailed  = "failed"
	OutcomeTimeout = "timeout"
	OutcomeNoop    = "noop"
)

const (
	AuthModeAPIKey = "api_key"
	AuthModeMTLS   = "mtls"
)
