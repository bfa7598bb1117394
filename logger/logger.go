package logger

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
)

// Logger allows you to control logging with message levels and subsystem controls.
// Use the "Include" flags in the Format field to specify which fields should be included in each
//   log message.
// Subsystem log entries can be enabled per subsystem.
// For example the parent package can specify if they want to see logs from a subsystem and how
//   they want to see them.
//
// Sample Setup:
// // Create a log config and set it up.
// logConfig := logger.NewDevelopmentConfig()
// // Log to stderr (default) and main.log.
// // To only log to main.log call SetFile instead of AddFile.
// logConfig.Main.AddFile("./tmp/main.log")
// logConfig.Main.Format |= logger.IncludeSystem
// logConfig.EnableSubSystem(spynode.SubSystem)
//
// // Attach the log config to the context.
// ctx := logger.ContextWithLogConfig(context.Background(), logConfig)
//

type Level int

const (
	LevelDebug   Level = -2
	LevelVerbose Level = -1
	LevelInfo    Level = 0
	LevelWarn    Level = 1
	LevelError   Level = 2
	LevelFatal   Level = 3 // Calls exit
	LevelPanic   Level = 4 // Calls panic
)

// Log entry formatting (which prefix fields to include)
const (
	IncludeDate      = 0x01 // date in the local time zone: 2018/01/01
	IncludeTime      = 0x02 // time in the local time zone: 06:54:32
	IncludeMicro     = 0x04 // microseconds .123123
	IncludeFile      = 0x08 // file name and line number
	IncludeSystem    = 0x10 // system name
	IncludeLevel     = 0x20 // level of log entry
	IncludeCaller    = IncludeFile
	IncludeTimeStamp = 0x40 // unix timestamp, used instead of IncludeDate/IncludeTime in JSON mode
)

// DefaultConfig is used whenever a context carries no attached Config.
var DefaultConfig = *NewProductionConfig()

// emptyConfig silences all logging; ContextWithNoLogger attaches it.
var emptyConfig = *NewEmptyConfig()

// Returns a context with the logging config attached.
func ContextWithLogConfig(ctx context.Context, config *Config) context.Context {
	return context.WithValue(ctx, configKey, config)
}

func ContextWithNoLogger(ctx context.Context) context.Context {
	return context.WithValue(ctx, configKey, &emptyConfig)
}

// Returns a context with the logging subsystem attached.
func ContextWithLogSubSystem(ctx context.Context, subsystem string) context.Context {
	return context.WithValue(ctx, subSystemKey, subsystem)
}

// Returns a context with the logging subsystem cleared. Used when a context is passed back from a
//   subsystem.
func ContextWithOutLogSubSystem(ctx context.Context) context.Context {
	return context.WithValue(ctx, subSystemKey, nil)
}

// Returns a context with the trace id attached, which is included in every entry logged through it.
func ContextWithLogTrace(ctx context.Context, trace string) context.Context {
	return context.WithValue(ctx, traceKey, trace)
}

// Log an entry to the main Outputs if:
//   There is no subsystem specified or if the current subsystem is included in the attached
//     Config.IncludedSubSystems.
//   And the level is equal to or above the specified minimum logging level.
// Logs to the Config.SubSystems if the level is above minimum.
func Log(ctx context.Context, level Level, format string, values ...interface{}) error {
	return LogDepth(ctx, level, 1, format, values...)
}

// Debug adds a debug level entry to the log.
func Debug(ctx context.Context, format string, values ...interface{}) error {
	return LogDepth(ctx, LevelDebug, 1, format, values...)
}

// Verbose adds a verbose level entry to the log.
func Verbose(ctx context.Context, format string, values ...interface{}) error {
	return LogDepth(ctx, LevelVerbose, 1, format, values...)
}

// Info adds a info level entry to the log.
func Info(ctx context.Context, format string, values ...interface{}) error {
	return LogDepth(ctx, LevelInfo, 1, format, values...)
}

// Warn adds a warn level entry to the log.
func Warn(ctx context.Context, format string, values ...interface{}) error {
	return LogDepth(ctx, LevelWarn, 1, format, values...)
}

// Error adds a error level entry to the log.
func Error(ctx context.Context, format string, values ...interface{}) error {
	return LogDepth(ctx, LevelError, 1, format, values...)
}

// Fatal adds a fatal level entry to the log and then calls os.Exit(1).
func Fatal(ctx context.Context, format string, values ...interface{}) error {
	return LogDepth(ctx, LevelFatal, 1, format, values...)
}

// Panic adds a panic level entry to the log and then calls panic().
func Panic(ctx context.Context, format string, values ...interface{}) error {
	return LogDepth(ctx, LevelPanic, 1, format, values...)
}

// ContextWithLogger attaches a fresh Config to the context, the same config NewConfig builds.
// It exists as a one-call convenience for command-line entry points.
func ContextWithLogger(ctx context.Context, isDevelopment, isText bool, filePath string) context.Context {
	return ContextWithLogConfig(ctx, NewConfig(isDevelopment, isText, filePath))
}

// ContextWithLogFields attaches extra fields to every entry logged through the returned context,
// in addition to whatever fields were already attached to ctx.
func ContextWithLogFields(ctx context.Context, fields ...Field) context.Context {
	merged := append(append([]Field{}, getContextFields(ctx)...), fields...)
	return context.WithValue(ctx, fieldsKey, merged)
}

func getContextFields(ctx context.Context) []Field {
	fieldsValue := ctx.Value(fieldsKey)
	if fieldsValue == nil {
		return nil
	}

	fields, ok := fieldsValue.([]Field)
	if !ok {
		return nil
	}

	return fields
}

func getTrace(ctx context.Context) string {
	traceValue := ctx.Value(traceKey)
	if traceValue == nil {
		return ""
	}

	trace, ok := traceValue.(string)
	if !ok {
		return ""
	}

	return trace
}

// Same as Log, but the number of levels above the current call in the stack from which to get the
//   file name/line of code can be specified as depth.
func LogDepth(ctx context.Context, level Level, depth int, format string, values ...interface{}) error {
	return logDepthWithFields(ctx, level, depth+1, getContextFields(ctx), format, values...)
}

// LogDepthWithFields logs an entry carrying extra fields, identifying the caller by an
// already-resolved "file:line" string (see GetCaller) rather than a stack depth.
func LogDepthWithFields(ctx context.Context, level Level, caller string, fields []Field, format string,
	values ...interface{}) error {

	allFields := append(append([]Field{}, getContextFields(ctx)...), fields...)
	allFields = append(allFields, String("caller", caller))
	return logDepthWithFields(ctx, level, 0, allFields, format, values...)
}

func logDepthWithFields(ctx context.Context, level Level, depth int, fields []Field, format string,
	values ...interface{}) error {

	configValue := ctx.Value(configKey)
	if configValue == nil {
		// Config not specified. Use default config.
		configValue = &DefaultConfig
	}

	config, ok := configValue.(*Config)
	if !ok {
		return errors.New("Invalid Config Type")
	}

	if config == &emptyConfig {
		return nil
	}

	trace := getTrace(ctx)

	config.mutex.Lock()
	defer config.mutex.Unlock()

	subsystem := "Main"
	subsystemValue := ctx.Value(subSystemKey)
	if subsystemValue != nil {
		var ok bool
		subsystem, ok = subsystemValue.(string)
		if !ok {
			return errors.New("Invalid SubSystem Type")
		}
		// Log to subsystem specific config
		subConfig, subExists := config.SubSystems[subsystem]
		if subExists {
			var err error
			if config.IsText {
				err = subConfig.logText(subsystem, level, depth+1, trace, fields, format, values...)
			} else {
				err = subConfig.logJSON(subsystem, level, depth+1, trace, fields, format, values...)
			}
			if err != nil {
				return err
			}
		}

		include, includeExists := config.IncludedSubSystems[subsystem]
		if !includeExists || !include {
			return nil // Don't log to main config
		}
	}

	// Log to main config
	if config.IsText {
		return config.Main.logText(subsystem, level, depth+1, trace, fields, format, values...)
	} else {
		return config.Main.logJSON(subsystem, level, depth+1, trace, fields, format, values...)
	}
}

// InfoWithFields adds an info level entry to the log carrying extra structured fields.
func InfoWithFields(ctx context.Context, fields []Field, format string, values ...interface{}) error {
	return logDepthWithFields(ctx, LevelInfo, 1, append(append([]Field{}, getContextFields(ctx)...), fields...), format, values...)
}

// WarnWithFields adds a warn level entry to the log carrying extra structured fields.
func WarnWithFields(ctx context.Context, fields []Field, format string, values ...interface{}) error {
	return logDepthWithFields(ctx, LevelWarn, 1, append(append([]Field{}, getContextFields(ctx)...), fields...), format, values...)
}

// ErrorWithFields adds a error level entry to the log carrying extra structured fields.
func ErrorWithFields(ctx context.Context, fields []Field, format string, values ...interface{}) error {
	return logDepthWithFields(ctx, LevelError, 1, append(append([]Field{}, getContextFields(ctx)...), fields...), format, values...)
}

// DebugWithFields adds a debug level entry to the log carrying extra structured fields.
func DebugWithFields(ctx context.Context, fields []Field, format string, values ...interface{}) error {
	return logDepthWithFields(ctx, LevelDebug, 1, append(append([]Field{}, getContextFields(ctx)...), fields...), format, values...)
}

// GetCaller resolves the "file:line" of the caller skip frames above this call, for logging paths
// that need to capture a caller location before it's actually logged (NewWaitingWarning).
func GetCaller(skip int) string {
	return getCaller(skip + 1)
}

// Keys for context key/pairs
type loggerkey int

const (
	configKey    loggerkey = 1
	subSystemKey loggerkey = 2
	traceKey     loggerkey = 3
	fieldsKey    loggerkey = 4
)

func getCaller(skip int) string {
	_, filepath, line, ok := runtime.Caller(skip + 1)
	if !ok {
		return "???"
	}

	parts := strings.Split(filepath, string(os.PathSeparator))
	if l := len(parts); l >= 2 {
		filepath = parts[l-2] + string(os.PathSeparator) + parts[l-1]
	}

	return fmt.Sprintf("%s:%d", filepath, line)
}
