package logging

import (
	"fmt"

	"go.uber.org/zap"
)

// PrintfLogger adapts zap to the Printf/Println logger interfaces expected
// by tgbotapi and cron.
type PrintfLogger struct {
	log *zap.Logger
}

// NewPrintfLogger wraps the given logger under name.
func NewPrintfLogger(log *zap.Logger, name string) *PrintfLogger {
	return &PrintfLogger{log: log.Named(name)}
}

func (p *PrintfLogger) Println(v ...any) {
	p.log.Warn(fmt.Sprint(v...))
}

func (p *PrintfLogger) Printf(format string, v ...any) {
	p.log.Warn(fmt.Sprintf(format, v...))
}
