package config

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	mu         sync.Mutex
	cache      = make(map[reflect.Type]any)
	dotenvOnce sync.Once
)

// Load parses environment variables into v using `env` struct tags.
// Each config type is parsed once; later calls receive the cached copy.
// A .env file in the working directory is read on first use if present.
//
//	type DatabaseConfig struct {
//		URL string `env:"PG_CONN_URL,required"`
//	}
//
//	var cfg DatabaseConfig
//	if err := config.Load(&cfg); err != nil {
//		return err
//	}
func Load[T any](v *T) error {
	if v == nil {
		return ErrNilPointer
	}
	dotenvOnce.Do(func() {
		// missing .env is fine
		_ = godotenv.Load()
	})

	key := reflect.TypeFor[T]()

	mu.Lock()
	defer mu.Unlock()

	if cached, ok := cache[key]; ok {
		*v = cached.(T)
		return nil
	}

	var parsed T
	if err := env.Parse(&parsed); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}
	cache[key] = parsed
	*v = parsed
	return nil
}

// MustLoad is Load that panics on error. Use it for settings the process
// cannot start without.
func MustLoad[T any](v *T) {
	if err := Load(v); err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}
}

// LoadEnv reads the given dotenv files into the process environment. Values
// already set in the environment win. Missing files are an error, unlike the
// implicit .env lookup done by Load.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		return nil
	}
	if err := godotenv.Load(files...); err != nil {
		return errors.Join(ErrLoadingEnvFile, err)
	}
	return nil
}

// Reset drops every cached config so the next Load re-reads the environment.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	clear(cache)
}
