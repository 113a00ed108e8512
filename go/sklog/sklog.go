// Package sklog defines the logging functions (e.g. Info, Errorf, etc.)
// used throughout this repo. All output goes to stderr with a severity
// prefix; Fatal* exits the program after logging.
package sklog

import (
	"fmt"
	"log"
	"os"
)

type severity string

const (
	debugSeverity   severity = "D"
	infoSeverity    severity = "I"
	warningSeverity severity = "W"
	errorSeverity   severity = "E"
	fatalSeverity   severity = "F"
)

var logger = log.New(os.Stderr, "", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

// logAt writes a single log line. calldepth 0 reports the caller of the
// exported function below it.
func logAt(calldepth int, sev severity, msg string) {
	_ = logger.Output(calldepth+3, fmt.Sprintf("%s %s", sev, msg))
	if sev == fatalSeverity {
		os.Exit(255)
	}
}

// Debug, Info, Warning, Error, and Fatal use fmt.Sprint to format the
// arguments; functions ending in f use fmt.Sprintf.

func Debug(msg ...interface{}) {
	logAt(0, debugSeverity, fmt.Sprint(msg...))
}

func Debugf(format string, v ...interface{}) {
	logAt(0, debugSeverity, fmt.Sprintf(format, v...))
}

func Info(msg ...interface{}) {
	logAt(0, infoSeverity, fmt.Sprint(msg...))
}

func Infof(format string, v ...interface{}) {
	logAt(0, infoSeverity, fmt.Sprintf(format, v...))
}

func Warning(msg ...interface{}) {
	logAt(0, warningSeverity, fmt.Sprint(msg...))
}

func Warningf(format string, v ...interface{}) {
	logAt(0, warningSeverity, fmt.Sprintf(format, v...))
}

func Error(msg ...interface{}) {
	logAt(0, errorSeverity, fmt.Sprint(msg...))
}

func Errorf(format string, v ...interface{}) {
	logAt(0, errorSeverity, fmt.Sprintf(format, v...))
}

// ErrorfWithDepth reports the stack frame depth levels above the caller.
func ErrorfWithDepth(depth int, format string, v ...interface{}) {
	logAt(depth, errorSeverity, fmt.Sprintf(format, v...))
}

func Fatal(msg ...interface{}) {
	logAt(0, fatalSeverity, fmt.Sprint(msg...))
}

func Fatalf(format string, v ...interface{}) {
	logAt(0, fatalSeverity, fmt.Sprintf(format, v...))
}
