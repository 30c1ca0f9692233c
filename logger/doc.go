// Package logger wraps zerolog with the structured fields the gateway emits
// on every rejection, retry and fallback.
//
//	log := logger.New(&logger.Config{Level: "debug", Format: "console"}, "tradewizard")
//	log.WithComponent("marketdata").Info("fetch complete", logger.Fields(
//	    logger.FieldOperation, "quote",
//	    logger.FieldDuration, elapsed.Milliseconds(),
//	))
package logger
