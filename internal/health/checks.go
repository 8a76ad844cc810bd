package health

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/DrTrintignant/Songbird/internal/resilience"
)

// CacheDir checks that dir is a readable directory. A directory that does
// not exist yet passes, since it is created on the first download.
func CacheDir(dir string) Checker {
	return Checker{
		Name: "cache",
		Check: func(_ context.Context) error {
			info, err := os.Stat(dir)
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			if err != nil {
				return err
			}
			if !info.IsDir() {
				return fmt.Errorf("%s is not a directory", dir)
			}
			f, err := os.Open(dir)
			if err != nil {
				return err
			}
			return f.Close()
		},
	}
}

// Bindings checks that the binding store can be read and decoded.
// The binding file store satisfies the parameter.
func Bindings(store interface{ Check(context.Context) error }) Checker {
	return Checker{Name: "bindings", Check: store.Check}
}

// Credential is a soft check that an API key is configured.
// Any credential source satisfies the parameter.
func Credential(src interface{ Token() (string, error) }) Checker {
	return Checker{
		Name: "credential",
		Soft: true,
		Check: func(_ context.Context) error {
			_, err := src.Token()
			return err
		},
	}
}

// Breaker is a soft check that fails while the circuit breaker guarding the
// remote provider is open.
func Breaker(cb interface{ State() resilience.State }) Checker {
	return Checker{
		Name: "freesound",
		Soft: true,
		Check: func(_ context.Context) error {
			if st := cb.State(); st == resilience.StateOpen {
				return fmt.Errorf("circuit breaker %s", st)
			}
			return nil
		},
	}
}
