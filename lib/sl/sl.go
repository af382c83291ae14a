package sl

import (
	"fmt"
	"log/slog"
)

func Err(err error) slog.Attr {
	value := "<nil>"
	if err != nil {
		value = err.Error()
	}
	return slog.Attr{
		Key:   "error",
		Value: slog.StringValue(value),
	}
}

// Secret returns a string with the first 5 characters of the input string
// used to hide sensitive information in logs
func Secret(key, value string) slog.Attr {
	r := "***"
	if len(value) > 5 {
		r = fmt.Sprintf("%s***", value[0:5])
	}
	if value == "" {
		r = "?"
	}
	return slog.Attr{
		Key:   key,
		Value: slog.StringValue(r),
	}
}

// Code masks an invite code down to its first two characters
func Code(code string) slog.Attr {
	r := "?"
	if len(code) > 2 {
		r = fmt.Sprintf("%s***", code[0:2])
	}
	return slog.Attr{
		Key:   "code",
		Value: slog.StringValue(r),
	}
}

func Module(mod string) slog.Attr {
	return slog.Attr{
		Key:   "mod",
		Value: slog.StringValue(mod),
	}
}
