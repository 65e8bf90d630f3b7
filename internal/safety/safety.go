// Package safety gates destructive bulk-data operations behind an
// explicit, validated non-production declaration. The gate is pure and
// fail-closed: anything that does not match the allow-list exactly is an
// error, never a warning.
package safety

import (
	"errors"
	"fmt"
	"regexp"
)

// ErrUnsafeDestructiveOperation indicates that a destructive operation was
// attempted outside an explicitly declared test environment. Treated as a
// fatal configuration error by callers.
var ErrUnsafeDestructiveOperation = errors.New("unsafe destructive operation")

// Allow-list patterns. Both must match; ad-hoc substring checks are
// deliberately not used.
var (
	// testEnvPattern matches only the exact environment marker "test".
	testEnvPattern = regexp.MustCompile(`^test$`)

	// testResourcePattern matches database/collection names that carry an
	// explicit test marker, e.g. "memories_test" or "test_fixtures".
	testResourcePattern = regexp.MustCompile(`^(test_[a-z0-9_]+|[a-z0-9_]+_test)$`)
)

// AssertDestructiveOperationAllowed verifies that both the declared
// environment name and the target resource name match the strict test
// allow-list. It performs no I/O and must be called before issuing any
// destructive statement.
func AssertDestructiveOperationAllowed(environment, resource string) error {
	if !testEnvPattern.MatchString(environment) {
		return fmt.Errorf("%w: environment %q is not marked as test",
			ErrUnsafeDestructiveOperation, environment)
	}
	if !testResourcePattern.MatchString(resource) {
		return fmt.Errorf("%w: resource %q does not carry a test marker",
			ErrUnsafeDestructiveOperation, resource)
	}
	return nil
}
