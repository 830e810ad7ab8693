package forge

import (
	"context"
	"fmt"

	"github.com/forgeworks/workflowforge/internal/log"
	"github.com/forgeworks/workflowforge/internal/validation"
)

// ErrValidationFailed is returned (wrapped with field detail) when
// validation runs in throwing mode and the subject fails.
var ErrValidationFailed = fmt.Errorf("forge: validation failed")

// Extractor pulls the subject to validate out of an operation's input.
// Return ok=false to skip validation for this invocation.
type Extractor func(input any) (subject any, ok bool)

// ValidationMiddleware runs a Validator against the extracted subject
// before invoking next. Construction panics if both IgnoreValidationFailures
// and ThrowOnValidationError are set; Options.Validate already rejects
// this combination for the owning Smith.
type ValidationMiddleware struct {
	extractor Extractor
	validator validation.Validator[any]
	opts      ValidationOptions
}

// NewValidationMiddleware builds a ValidationMiddleware.
func NewValidationMiddleware(extractor Extractor, validator validation.Validator[any], opts ValidationOptions) *ValidationMiddleware {
	if opts.IgnoreValidationFailures && opts.ThrowOnValidationError {
		panic("forge: IgnoreValidationFailures and ThrowOnValidationError cannot both be set")
	}
	return &ValidationMiddleware{extractor: extractor, validator: validator, opts: opts}
}

func (m *ValidationMiddleware) Execute(ctx context.Context, op Operation, f *Foundry, input any, next Next) (any, error) {
	subject, ok := m.extractor(input)
	if !ok {
		return next(ctx, input)
	}

	fieldErrs := m.validator.Validate(subject)
	if len(fieldErrs) == 0 {
		if m.opts.StoreValidationResults {
			f.Properties().Set(PropValidationStatus, "Success")
		}
		return next(ctx, input)
	}

	if m.opts.StoreValidationResults {
		f.Properties().Set(PropValidationStatus, "Failed")
		f.Properties().Set(PropValidationErrors, fieldErrs)
	}
	if m.opts.LogValidationErrors {
		f.Logger().Error(log.CatValidation, "validation failed", "operation", op.Name(), "errors", fieldErrs)
	}

	if m.opts.ThrowOnValidationError {
		return nil, fmt.Errorf("%w for operation %q: %v", ErrValidationFailed, op.Name(), fieldErrs)
	}
	if m.opts.IgnoreValidationFailures {
		return next(ctx, input)
	}
	return next(ctx, input)
}
