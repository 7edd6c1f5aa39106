// Package parentpal is the processing core of ParentPal, a family
// scheduling assistant.
//
// ParentPal turns school emails, newsletters, voice notes and uploaded
// documents into calendar events. Requests pass through a gateway that
// rate limits, caches and bills every call against a token ledger, and can
// be routed to a remote agent over WebSocket with local rule-based
// processing as the fallback.
//
// # Quick Start
//
// Install ParentPal:
//
//	go install github.com/jbuican14/parentPal-06-16/cmd/parentpal@latest
//
// Create a configuration:
//
//	server:
//	  port: 8080
//	rate_limiting:
//	  requests_per_minute: 60
//	usage:
//	  default_limit: 10000
//	agent:
//	  url: ${PARENTPAL_AGENT_URL}
//
// Start the server:
//
//	parentpal serve --config parentpal.yaml
//
// Parse a message from the command line:
//
//	parentpal parse "Jake has a piano recital this Friday at 7 PM"
//
// # Packages
//
//   - pkg/gateway: rate limit, cache, balance check and dispatch pipeline
//   - pkg/extract: rule-based event extraction
//   - pkg/remoteagent: WebSocket agent connector and agent server
//   - pkg/server: HTTP API
//   - pkg/usage: token ledger
//   - pkg/document: document text extraction
package parentpal
