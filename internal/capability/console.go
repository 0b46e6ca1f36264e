package capability

import (
	"strings"

	"github.com/GriffinCanCode/Shelf/backend/internal/sandbox"
	"github.com/dop251/goja"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var consoleLevels = map[string]zapcore.Level{
	"log":   zapcore.InfoLevel,
	"info":  zapcore.InfoLevel,
	"debug": zapcore.DebugLevel,
	"warn":  zapcore.WarnLevel,
	"error": zapcore.ErrorLevel,
}

// installConsole routes console.* to the package logger. It never throws.
func (s *scope) installConsole() error {
	console := s.vm.NewObject()
	for name, level := range consoleLevels {
		if err := console.Set(name, s.makeConsoleFunc(name, level)); err != nil {
			return err
		}
	}
	return s.vm.Set("console", console)
}

func (s *scope) makeConsoleFunc(name string, level zapcore.Level) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			parts[i] = safeFormat(arg)
		}
		if ce := s.logger.Check(level, strings.Join(parts, " ")); ce != nil {
			ce.Write(zap.String("source", "console."+name))
		}
		return goja.Undefined()
	}
}

// safeFormat swallows exceptions thrown by guest getters and toString.
// Anything else, such as an interrupt, keeps unwinding.
func safeFormat(v goja.Value) (out string) {
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(*goja.Exception); !ok {
				panic(r)
			}
			out = "[unprintable]"
		}
	}()
	return formatArg(v)
}

func formatArg(v goja.Value) string {
	if obj, ok := v.(*goja.Object); ok {
		if _, isFunc := goja.AssertFunction(obj); isFunc {
			return "[function]"
		}
		if msg := obj.Get("message"); msg != nil && !goja.IsUndefined(msg) {
			return sandbox.Describe(v)
		}
		if data, err := sandbox.Encode(v); err == nil {
			return string(data)
		}
	}
	if v == nil {
		return "undefined"
	}
	return v.String()
}
