package obs

import (
	"encoding/json"
	"log"
	"os"
	"sync"
	"time"
)

var (
	loggerOnce sync.Once
	logger     *log.Logger
)

// Logger returns the shared structured logger used across the service.
func Logger() *log.Logger {
	loggerOnce.Do(func() {
		logger = log.New(os.Stdout, "", 0)
	})
	return logger
}

// LogRequest emits a structured JSON log line with common HTTP fields.
func LogRequest(entry map[string]any) {
	logJSON(entry)
}

// LogAuthEvent records the outcome of an authentication or authorization
// check. Per spec §7 the HTTP response never distinguishes which check
// failed or why; this is where that detail is allowed to live.
func LogAuthEvent(outcome, reason, userIdent, path string) {
	logJSON(map[string]any{
		"ts":         time.Now().UTC().Format(time.RFC3339Nano),
		"event":      "auth",
		"outcome":    outcome,
		"reason":     reason,
		"user_ident": userIdent,
		"path":       path,
	})
}

func logJSON(entry map[string]any) {
	data, err := json.Marshal(entry)
	if err != nil {
		Logger().Println(`{"ts":"error","level":"error","msg":"log marshal failed"}`)
		return
	}
	Logger().Println(string(data))
}
