package logger

import "log/slog"

// Error records err under "error". Nil errors produce an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// OwnerID records the billable owner identifier under "owner_id".
func OwnerID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("owner_id", id)
}

// SubscriptionID records the local subscription identifier under "subscription_id".
func SubscriptionID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("subscription_id", id)
}

// BillerID records a provider-side identifier under "biller_id".
func BillerID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("biller_id", id)
}

// EventType records the webhook event type under "event_type".
func EventType(eventType string) slog.Attr {
	return slog.String("event_type", eventType)
}

// Result records a handling outcome under "result".
func Result(result string) slog.Attr {
	return slog.String("result", result)
}

// Component records the component name under "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// Duration records a duration under "duration".
func Duration(d any) slog.Attr {
	return slog.Any("duration", d)
}
