// Package webhookhttp exposes the subscription reconciler over HTTP.
//
// The provider posts {"event": {"type": ..., "data": {...}}}. The handler
// decodes the envelope, hands the event to the reconciler and maps the
// outcome to the response the provider expects:
//
//	handled            200 Webhook Handled
//	owner not found    200 User not found
//	ignored            200 (empty body)
//	not handled        404 Method Missing
//	empty or malformed 400 {"status":false,"msg":"Nothing here."}
//	invalid            500 {"status":false}
//	internal error     500
//
// Owner-not-found is acknowledged so the provider stops redelivering events
// for accounts this service does not know.
//
//	r := chi.NewRouter()
//	r.Mount("/webhooks/vindi", webhookhttp.New(svc, webhookhttp.WithLogger(log)).Routes())
package webhookhttp
