// Package errors provides coded, structured errors for the query engine,
// the stores and the CLI.
//
// Codes follow "area.operation.reason". The reason segment drives the
// predicate helpers (IsUnsupported, IsStructure, ...), so new codes should
// reuse an existing reason where one fits.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/samber/oops"
)

// Code is the machine-readable identifier for an error.
type Code string

const (
	CodeQueryParseInvalidSyntax      Code = "query.parse.invalid_syntax"
	CodeQueryStructureInvalid        Code = "query.structure.invalid"
	CodeQueryConstructUnsupported    Code = "query.construct.unsupported"
	CodeQueryFilterTypeMismatch      Code = "query.filter.type_mismatch"
	CodeQueryFilterUnbound           Code = "query.filter.unbound"
	CodeQueryEvaluateFailure         Code = "query.evaluate.failure"
	CodeQueryDescribeNotFound        Code = "query.describe.not_found"
	CodeQueryDatasetLoadFailure      Code = "query.dataset.load.failure"
	CodeQueryResultFormatUnsupported Code = "query.result.format.unsupported"

	CodeStoreOpenFailure        Code = "store.open.failure"
	CodeStoreDatabaseFailure    Code = "store.database.failure"
	CodeStoreEncodingFailure    Code = "store.encoding.failure"
	CodeStoreBackendUnsupported Code = "store.backend.unsupported"

	CodeConfigLoadReadFailure      Code = "config.load.read.failure"
	CodeConfigValidateInvalidValue Code = "config.validate.invalid_value"

	CodeCLIInputInvalid Code = "cli.input.invalid"
	CodeCLILoadFailure  Code = "cli.load.failure"
)

// Attr is a structured key/value context attached to an error.
type Attr struct {
	Key   string
	Value any
}

// Field creates a structured error field.
func Field(key string, value any) Attr {
	return Attr{Key: key, Value: value}
}

func FieldVariable(name string) Attr {
	return Field("variable", name)
}

func FieldGraph(iri string) Attr {
	return Field("graph", iri)
}

func FieldBackend(name string) Attr {
	return Field("backend", name)
}

func New(code Code, msg string, fields ...Attr) error {
	return oops.Code(code).With(flatten(fields)...).New(msg)
}

func Errorf(code Code, format string, args ...any) error {
	return oops.Code(code).Errorf(format, args...)
}

func Wrap(err error, code Code, msg string, fields ...Attr) error {
	if err == nil {
		return nil
	}
	return oops.Code(code).With(flatten(fields)...).Wrapf(err, "%s", msg)
}

func Wrapf(err error, code Code, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return oops.Code(code).Wrapf(err, format, args...)
}

func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	switch code := oopsErr.Code().(type) {
	case Code:
		return code
	case string:
		return Code(code)
	case nil:
		return ""
	default:
		return Code(fmt.Sprintf("%v", code))
	}
}

func FieldsOf(err error) map[string]any {
	if err == nil {
		return nil
	}
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return nil
	}
	return oopsErr.Context()
}

func HasCode(err error, code Code) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}

// IsStructure reports a query rejected before evaluation because of its shape.
func IsStructure(err error) bool {
	return HasCode(err, CodeQueryStructureInvalid)
}

// IsUnsupported reports a query feature the engine refuses to evaluate.
func IsUnsupported(err error) bool {
	return reason(CodeOf(err)) == "unsupported"
}

// IsTypeMismatch reports an operator applied to incompatible terms.
func IsTypeMismatch(err error) bool {
	return HasCode(err, CodeQueryFilterTypeMismatch)
}

// IsUnbound reports an expression that referenced an unbound variable.
func IsUnbound(err error) bool {
	return HasCode(err, CodeQueryFilterUnbound)
}

func IsInvalidInput(err error) bool {
	r := reason(CodeOf(err))
	return r == "invalid" || r == "invalid_syntax" || r == "invalid_value"
}

func Join(errs ...error) error {
	return stderrors.Join(errs...)
}

func flatten(fields []Attr) []any {
	pairs := make([]any, 0, len(fields)*2)
	for _, field := range fields {
		if field.Key == "" {
			continue
		}
		pairs = append(pairs, field.Key, field.Value)
	}
	return pairs
}

func reason(code Code) string {
	raw := string(code)
	idx := strings.LastIndex(raw, ".")
	if idx == -1 || idx == len(raw)-1 {
		return raw
	}
	return raw[idx+1:]
}
