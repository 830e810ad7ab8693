// Package validation defines the pluggable pre-operation data validation
// contract consumed by the forge pipeline's validation middleware.
package validation

import "fmt"

// FieldError names one failed constraint on a subject's field.
type FieldError struct {
	PropertyName string
	ErrorMessage string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.PropertyName, e.ErrorMessage)
}

// Validator checks a subject of type T and returns every violated
// constraint; a nil/empty result means the subject is valid.
type Validator[T any] interface {
	Validate(subject T) []FieldError
}

// Func adapts a plain function into a Validator.
type Func[T any] func(subject T) []FieldError

func (f Func[T]) Validate(subject T) []FieldError { return f(subject) }
