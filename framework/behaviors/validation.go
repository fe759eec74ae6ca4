package behaviors

import (
	"context"
	"errors"
	"reflect"

	"github.com/go-playground/validator/v10"

	"github.com/km-arc/go-bootstrap/framework/container"
	"github.com/km-arc/go-bootstrap/framework/pipeline"
)

// Validatable is implemented by requests that check themselves.
type Validatable interface {
	Validate() error
}

// Validation rejects invalid requests before they reach the handler.
//
// A request implementing Validatable is checked by its own Validate method;
// any other struct (or pointer to one) is checked against its `validate`
// tags. A failure short-circuits the chain and is returned unchanged, so
// callers can inspect validator.ValidationErrors directly.
type Validation struct {
	validate *validator.Validate
}

func NewValidation(v *validator.Validate) *Validation {
	if v == nil {
		v = validator.New(validator.WithRequiredStructEnabled())
	}
	return &Validation{validate: v}
}

func (b *Validation) Handle(ctx context.Context, request any, next pipeline.Next) (any, error) {
	if err := b.check(ctx, request); err != nil {
		return nil, err
	}
	return next(ctx)
}

func (b *Validation) check(ctx context.Context, request any) error {
	if v, ok := request.(Validatable); ok {
		return v.Validate()
	}
	if !isStruct(request) {
		return nil
	}
	err := b.validate.StructCtx(ctx, request)
	var invalid *validator.InvalidValidationError
	if errors.As(err, &invalid) {
		return nil
	}
	return err
}

func isStruct(v any) bool {
	t := reflect.TypeOf(v)
	if t == nil {
		return false
	}
	if t.Kind() == reflect.Pointer {
		if reflect.ValueOf(v).IsNil() {
			return false
		}
		t = t.Elem()
	}
	return t.Kind() == reflect.Struct
}

// ValidationFactory shares the *validator.Validate registered in the
// container, or a fresh one when none is.
func ValidationFactory(a container.Activation) (pipeline.Behavior, error) {
	v, err := container.Resolve[*validator.Validate](a)
	if err != nil {
		if !isNotRegistered(err, container.Key[*validator.Validate]()) {
			return nil, err
		}
		v = nil
	}
	return NewValidation(v), nil
}
