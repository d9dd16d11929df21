package observability

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogger configures the process-wide logger. The task rank is attached
// as a field so interleaved SPMD output stays attributable.
func InitLogger(app string, rank int) zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}
	logger := zerolog.New(output).With().Timestamp().Str("app", app).Int("rank", rank).Logger()
	log.Logger = logger
	return logger
}
