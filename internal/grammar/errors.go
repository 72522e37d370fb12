package grammar

import (
	"errors"
	"fmt"
)

// Construction error codes (E200-E299)
const (
	ErrWildcardType    = "E201" // any cannot be resolved
	ErrDefaultMismatch = "E202" // default does not fit the declared type
	ErrCounterDefault  = "E203" // counter default must be zero
	ErrUnknownSymbol   = "E204" // enum default is not a symbol
	ErrMissingDefault  = "E205" // required nested field has no default
	ErrInvalidSchema   = "E206" // malformed schema node
)

// ConfigError is a schema problem that prevents building a grammar.
type ConfigError struct {
	Code    string `json:"code"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func configErr(code, field, format string, args ...any) *ConfigError {
	return &ConfigError{Code: code, Field: field, Message: fmt.Sprintf(format, args...)}
}

// AsConfigError extracts a ConfigError from an error chain.
func AsConfigError(err error) (*ConfigError, bool) {
	var ce *ConfigError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}
