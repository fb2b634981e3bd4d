// Package logflags configures logging for the module. Each layer of the
// codebase has a boolean flag deciding whether it logs at debug level;
// loggers are logrus entries tagged with the layer they belong to.
package logflags

import (
	"errors"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

var (
	target = false
	emu    = false
)

var logOut io.Writer

// SetOutput redirects all loggers created after the call to w. Used to
// route logs to a file or to a color-capable terminal writer.
func SetOutput(w io.Writer) {
	logOut = w
}

var textFormatterInstance logrus.Formatter = &logrus.TextFormatter{FullTimestamp: true}

func makeLogger(level logrus.Level, fields Fields) Logger {
	if loggerFactory != nil {
		return loggerFactory(level, fields, logOut)
	}
	logger := logrus.New()
	logger.Formatter = textFormatterInstance
	logger.Out = os.Stderr
	if logOut != nil {
		logger.Out = logOut
	}
	logger.Level = level
	return &logrusLogger{logger.WithFields(logrus.Fields(fields))}
}

func makeFlaggableLogger(flag bool, fields Fields) Logger {
	if flag {
		return makeLogger(logrus.DebugLevel, fields)
	}
	return makeLogger(logrus.ErrorLevel, fields)
}

// Target returns true if the target session layer should log.
func Target() bool {
	return target
}

// TargetLogger returns a logger for the target session layer.
func TargetLogger() Logger {
	return makeFlaggableLogger(target, Fields{"layer": "target"})
}

// Emu returns true if the emulator should log its instruction trace.
func Emu() bool {
	return emu
}

// EmuLogger returns a logger for the emulator.
func EmuLogger() Logger {
	return makeFlaggableLogger(emu, Fields{"layer": "emu"})
}

var errLogstrWithoutLog = errors.New("--log-output specified without --log")

// Setup sets the layer flags based on the contents of logstr, a
// comma-separated list of layer names.
func Setup(logFlag bool, logstr string) error {
	if !logFlag {
		if logstr != "" {
			return errLogstrWithoutLog
		}
		return nil
	}
	if logstr == "" {
		logstr = "target"
	}
	for _, logcmd := range strings.Split(logstr, ",") {
		switch logcmd {
		case "target":
			target = true
		case "emu":
			emu = true
		}
	}
	return nil
}
