// Package logger provides the structured logging interface used across notionx.
//
// It wraps zerolog with a small interface so components can be handed a
// TestLogger or a no-op logger in tests:
//
//	if err := logger.Initialize(&cfg.Logging); err != nil {
//		return err
//	}
//	log := logger.GetLogger().WithField("component", "queue")
//	log.InfoWithFields("request dispatched", map[string]interface{}{
//		"request_id": id,
//		"attempt":    attempt,
//	})
//
// Console output is colorized unless Format is "json". When File is set the
// same events are also appended to that file.
package logger
