package saga

import (
	"log/slog"

	"github.com/fxsml/choreo/bus"
)

func defaultLogger() bus.Logger {
	return slog.Default()
}
