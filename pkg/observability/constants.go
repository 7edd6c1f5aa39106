package observability

const (
	SpanHTTPRequest    = "http.request"
	SpanGatewayRequest = "gateway.request"
	SpanAgentRequest   = "agent.request"
	SpanDocumentParse  = "document.parse"

	AttrOperation      = "parentpal.operation"
	AttrCacheHit       = "parentpal.cache_hit"
	AttrTokens         = "parentpal.tokens"
	AttrSource         = "parentpal.source"
	AttrFallback       = "parentpal.fallback"
	AttrRequestID      = "parentpal.request_id"
	AttrEventCount     = "parentpal.event_count"
	AttrErrorType      = "error.type"
	AttrHTTPMethod     = "http.request.method"
	AttrHTTPRoute      = "http.route"
	AttrHTTPStatusCode = "http.response.status_code"

	ExporterOTLP   = "otlp"
	ExporterStdout = "stdout"

	DefaultServiceName  = "parentpal"
	DefaultSamplingRate = 1.0
	DefaultOTLPEndpoint = "localhost:4317"
	DefaultMetricsPath  = "/metrics"
)
