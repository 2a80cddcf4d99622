// Package logger builds *slog.Logger instances for billing services and
// provides attribute helpers for the identifiers that show up in billing logs
// (owners, subscriptions, provider ids, webhook event types).
//
// Loggers are created with New and a set of options. Context extractors run
// on every record, so request-scoped values such as the deployment
// environment are attached without threading them through call sites.
//
//	log := logger.New(
//	    logger.WithEnvironment(environment.Production, "billingd"),
//	    logger.WithContextExtractors(environment.LoggerExtractor()),
//	)
//	log.InfoContext(ctx, "subscription created",
//	    logger.SubscriptionID(sub.ID),
//	    logger.BillerID(sub.BillerID),
//	)
//
// Attribute helpers return an empty slog.Attr for nil inputs, which slog
// drops from the output.
package logger
