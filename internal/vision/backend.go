package vision

import (
	"errors"
	"fmt"
	"strings"
)

// Backend names accepted by the pipeline stages.
const (
	BackendNative = "native"
	BackendOpenCV = "opencv"
)

// ErrUnavailable is returned by every operation when OpenCV is not linked.
var ErrUnavailable = errors.New("vision: opencv backend not linked; build with -tags=gocv")

// Default returns the backend a pipeline uses unless configured otherwise:
// OpenCV when it is linked, native Go code otherwise.
func Default() string {
	if Available() {
		return BackendOpenCV
	}
	return BackendNative
}

// Normalize lower-cases name and maps the empty string to BackendNative.
func Normalize(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return BackendNative
	}
	return name
}

// ValidateBackend reports whether name selects a known backend. It does not
// check that the backend is compiled in.
func ValidateBackend(name string) error {
	switch Normalize(name) {
	case BackendNative, BackendOpenCV:
		return nil
	}
	return fmt.Errorf("unknown vision backend %q (want %q or %q)", name, BackendNative, BackendOpenCV)
}

// Require validates name and fails with ErrUnavailable when it selects
// OpenCV in a build without it.
func Require(name string) error {
	if err := ValidateBackend(name); err != nil {
		return err
	}
	if UseOpenCV(name) && !Available() {
		return ErrUnavailable
	}
	return nil
}

// UseOpenCV reports whether name selects the OpenCV backend.
func UseOpenCV(name string) bool { return Normalize(name) == BackendOpenCV }
