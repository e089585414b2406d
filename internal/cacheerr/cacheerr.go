// Package cacheerr defines the error taxonomy of the semantic cache. Every error that
// crosses a package boundary carries a Code of the form area.op.reason; the reason
// suffix decides how the error is surfaced over HTTP.
package cacheerr

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/samber/oops"
)

// Code is the machine-readable identifier for an error.
type Code string

const (
	CodeStoreCorrupt              Code = "store.open.corrupt"
	CodeStoreFailure              Code = "store.database.failure"
	CodeDimensionMismatch         Code = "store.add.dimension_mismatch"
	CodeCollectionUnavailable     Code = "store.collection.unavailable"
	CodeCollectionNotFound        Code = "store.collection.not_found"
	CodeModelUnavailable          Code = "embedding.model.unavailable"
	CodeEmbeddingFailure          Code = "embedding.encode.failure"
	CodeRelevanceUpstreamFailure  Code = "relevance.upstream.failure"
	CodeAnswerRequired            Code = "feedback.answer.required"
	CodeVectorizerVersionMismatch Code = "maintenance.vectorizer.version_mismatch"
	CodeRebuildVerifyFailure      Code = "maintenance.rebuild.verify_failure"
	CodeRebuildTimeout            Code = "maintenance.rebuild.timeout"
	CodeInvalidInput              Code = "request.validate.invalid_input"
	CodeCorpusInvalid             Code = "corpus.load.invalid_format"
	CodeCorpusNotFound            Code = "corpus.load.not_found"
	CodeInternal                  Code = "internal.failure"
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

func FieldCollection(name string) Attr {
	return Field("collection", name)
}

func New(code Code, msg string, fields ...Attr) error {
	return oops.Code(code).With(flatten(fields)...).New(msg)
}

func Errorf(code Code, format string, args ...any) error {
	return oops.Code(code).Errorf(format, args...)
}

// Wrap attaches code to err. If err already carries a code, the inner code wins.
func Wrap(err error, code Code, msg string, fields ...Attr) error {
	if err == nil {
		return nil
	}
	return oops.Code(code).With(flatten(fields)...).Wrapf(err, "%s", msg)
}

func CodeOf(err error) Code {
	if err == nil {
		return ""
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}

	if code, ok := oopsErr.Code().(Code); ok {
		return code
	}
	if code, ok := oopsErr.Code().(string); ok {
		return Code(code)
	}
	return Code(fmt.Sprintf("%v", oopsErr.Code()))
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

func IsNotFound(err error) bool {
	return reason(CodeOf(err)) == "not_found"
}

// IsNotReady reports whether err means the cache cannot serve yet, as opposed to a miss.
func IsNotReady(err error) bool {
	r := reason(CodeOf(err))
	return r == "unavailable" || r == "not_found"
}

func IsInvalidInput(err error) bool {
	r := reason(CodeOf(err))
	return r == "invalid_input" || r == "invalid_format" || r == "required"
}

func IsConflict(err error) bool {
	r := reason(CodeOf(err))
	return r == "dimension_mismatch" || r == "version_mismatch"
}

func IsTimeout(err error) bool {
	return reason(CodeOf(err)) == "timeout"
}

func HTTPStatus(err error) int {
	switch {
	case HasCode(err, CodeCorpusNotFound):
		return http.StatusNotFound
	case IsNotReady(err):
		return http.StatusServiceUnavailable
	case IsInvalidInput(err):
		return http.StatusBadRequest
	case IsConflict(err):
		return http.StatusConflict
	case IsTimeout(err):
		return http.StatusGatewayTimeout
	case strings.Contains(string(CodeOf(err)), "upstream"):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
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
	if code == "" {
		return ""
	}
	raw := string(code)
	idx := strings.LastIndex(raw, ".")
	if idx == -1 || idx == len(raw)-1 {
		return raw
	}
	return raw[idx+1:]
}
