// Package logger prints leveled, colorized console output.
package logger

import (
	"fmt"
	"time"

	"github.com/fatih/color"
)

var (
	infoColor    = color.New(color.FgBlue)
	successColor = color.New(color.FgGreen)
	warningColor = color.New(color.FgYellow)
	errorColor   = color.New(color.FgRed)
	timeColor    = color.New(color.FgHiBlack)
)

func write(c *color.Color, prefix, format string, args ...interface{}) {
	timestamp := timeColor.Sprintf("[%s]", time.Now().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(color.Output, "%s %s\n", timestamp, c.Sprintf("%s%s", prefix, fmt.Sprintf(format, args...)))
}

// Info logs general progress
func Info(format string, args ...interface{}) {
	write(infoColor, "", format, args...)
}

// Success logs a completed step
func Success(format string, args ...interface{}) {
	write(successColor, "✓ ", format, args...)
}

// Warning logs a recoverable problem
func Warning(format string, args ...interface{}) {
	write(warningColor, "⚠ ", format, args...)
}

// Error logs a failure
func Error(format string, args ...interface{}) {
	write(errorColor, "✗ ", format, args...)
}
