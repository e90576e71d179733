// Package logging provides structured logging for vaultorg.
//
// Logging wraps Zap with:
//   - A Trace level (-2, below Debug)
//   - Automatic context fields (trace_id, span_id, run.id, command)
//   - Field and pattern redaction for credentials
//   - Sampling below Error
//
// Logs go to stderr by default so that reports and move commands written
// to stdout can be piped.
//
//	cfg := logging.NewDefaultConfig()
//	logger, err := logging.NewLogger(cfg)
//	if err != nil {
//	    return err
//	}
//	defer logger.Sync()
//
//	ctx = logging.WithRunID(ctx, runID)
//	logger.Info(ctx, "analysis finished", zap.Int("outliers", n))
//
// Library packages take a plain *zap.Logger; pass Underlying().
//
// Use TestLogger in tests:
//
//	tl := logging.NewTestLogger()
//	tl.Info(ctx, "folder cache write failed", zap.String("folder", "A"))
//	tl.AssertLogged(t, zapcore.InfoLevel, "cache write")
//	tl.AssertField(t, "cache write", "folder", "A")
package logging
