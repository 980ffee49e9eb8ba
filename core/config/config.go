package config

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

var (
	// ErrParsing is returned when environment variables cannot be parsed into the target.
	ErrParsing = errors.New("failed to parse configuration")
	// ErrValidation is returned when a parsed configuration violates its validate tags.
	ErrValidation = errors.New("invalid configuration")
	// ErrNilTarget is returned when Load receives a nil pointer.
	ErrNilTarget = errors.New("configuration target must be a non-nil pointer")
)

var (
	dotenvOnce sync.Once
	cache      sync.Map // reflect.Type -> any (value of T)
	validate   = validator.New(validator.WithRequiredStructEnabled())
)

// Load populates cfg from the environment. The first call for a type parses and
// validates it; later calls for the same type copy the cached value.
func Load[T any](cfg *T) error {
	if cfg == nil {
		return ErrNilTarget
	}

	dotenvOnce.Do(func() {
		// A missing .env file is not an error.
		_ = godotenv.Load()
	})

	key := reflect.TypeFor[T]()
	if cached, ok := cache.Load(key); ok {
		*cfg = cached.(T)
		return nil
	}

	var loaded T
	if err := env.Parse(&loaded); err != nil {
		return errors.Join(ErrParsing, err)
	}
	if err := Validate(&loaded); err != nil {
		return err
	}

	actual, _ := cache.LoadOrStore(key, loaded)
	*cfg = actual.(T)
	return nil
}

// MustLoad is like Load but panics on failure. Intended for process startup.
func MustLoad[T any](cfg *T) {
	if err := Load(cfg); err != nil {
		panic(err)
	}
}

// Validate runs struct tag validation and reports the first violation.
func Validate(cfg any) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		e := verrs[0]
		return fmt.Errorf("%w: %s failed on '%s' (value: %v)", ErrValidation, e.Namespace(), e.Tag(), e.Value())
	}
	return errors.Join(ErrValidation, err)
}

// reset clears the per-type cache. Tests only.
func reset() {
	cache.Range(func(k, _ any) bool {
		cache.Delete(k)
		return true
	})
}
