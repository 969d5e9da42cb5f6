package auth

import (
	"fmt"

	"github.com/rs/zerolog"
)

// ZerologLogger adapts a zerolog.Logger to Logger
type ZerologLogger struct {
	log zerolog.Logger
}

var _ Logger = ZerologLogger{}

// NewZerologLogger wraps log
func NewZerologLogger(log zerolog.Logger) ZerologLogger {
	return ZerologLogger{log: log}
}

func (z ZerologLogger) Debug(msg string, args ...any) {
	z.write(z.log.Debug(), msg, args)
}

func (z ZerologLogger) Info(msg string, args ...any) {
	z.write(z.log.Info(), msg, args)
}

func (z ZerologLogger) Warn(msg string, args ...any) {
	z.write(z.log.Warn(), msg, args)
}

func (z ZerologLogger) Error(msg string, args ...any) {
	z.write(z.log.Error(), msg, args)
}

func (z ZerologLogger) write(evt *zerolog.Event, msg string, args []any) {
	if evt == nil {
		return
	}

	for i := 0; i < len(args); i += 2 {
		key := fmt.Sprint(args[i])
		if i+1 >= len(args) {
			evt = evt.Str("arg", key)
			break
		}
		if err, ok := args[i+1].(error); ok {
			evt = evt.AnErr(key, err)
			continue
		}
		evt = evt.Interface(key, args[i+1])
	}

	evt.Msg(msg)
}
