package v1

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// FieldError describes the first field that failed validation.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func instance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		_ = validate.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
		})
	})
	return validate
}

// Validate checks struct tags on v and returns a *FieldError for the first
// failure.
func Validate(v any) error {
	err := instance().Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	return &FieldError{Field: fieldPath(fe.Namespace()), Message: describe(fe)}
}

// fieldPath drops the root struct name: "AddTaskRequest.task.title" -> "task.title".
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "notblank":
		return "must not be blank"
	case "min":
		return "must be >= " + fe.Param()
	case "email":
		return "must be a valid email"
	default:
		return "failed " + fe.Tag()
	}
}

// ValidateBoard checks structural rules of a whole board: field tags plus
// unique column, user and task ids.
func ValidateBoard(b *Board) error {
	if err := Validate(b); err != nil {
		return err
	}
	return ValidateLayout(b.Columns, b.Users)
}

// ValidateLayout checks id uniqueness across columns, users and tasks.
func ValidateLayout(cols []Column, users []User) error {
	seenCols := make(map[string]struct{}, len(cols))
	seenTasks := make(map[string]struct{})
	for i, c := range cols {
		if _, dup := seenCols[c.ID]; dup {
			return &FieldError{Field: fmt.Sprintf("columns[%d].id", i), Message: "duplicate column id " + c.ID}
		}
		seenCols[c.ID] = struct{}{}
		for j, t := range c.Tasks {
			if _, dup := seenTasks[t.ID]; dup {
				return &FieldError{Field: fmt.Sprintf("columns[%d].tasks[%d].id", i, j), Message: "task id appears more than once: " + t.ID}
			}
			seenTasks[t.ID] = struct{}{}
		}
	}
	seenUsers := make(map[string]struct{}, len(users))
	for i, u := range users {
		if _, dup := seenUsers[u.ID]; dup {
			return &FieldError{Field: fmt.Sprintf("users[%d].id", i), Message: "duplicate user id " + u.ID}
		}
		seenUsers[u.ID] = struct{}{}
	}
	return nil
}
