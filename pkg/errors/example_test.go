// Package errors provides examples of structured error handling in formtap.
package errors_test

import (
	"fmt"
	"io"

	"github.com/ajitpratap0/formtap/pkg/errors"
)

// Example demonstrates basic error creation and details.
func Example() {
	err := errors.New(errors.ErrorTypeHTTP, "upstream returned 404").
		WithDetail(errors.DetailStatusCode, 404).
		WithDetail(errors.DetailBody, `{"code":"FORM_NOT_FOUND"}`)

	fmt.Println(err.Error())

	// Output:
	// http: upstream returned 404
}

// ExampleWrap shows that wrapping keeps the upstream status reachable.
func ExampleWrap() {
	inner := errors.New(errors.ErrorTypeHTTP, "upstream returned 500").
		WithDetail(errors.DetailStatusCode, 500)

	err := errors.Wrap(inner, errors.ErrorTypeData, "failed to fetch responses page")

	code, ok := errors.StatusCode(err)
	fmt.Println(code, ok)
	fmt.Println(errors.IsType(err, errors.ErrorTypeHTTP))

	// Output:
	// 500 true
	// true
}

// ExampleIsRetryable shows which errors the request gate retries.
func ExampleIsRetryable() {
	soft := errors.New(errors.ErrorTypeRateLimit, "too many requests")
	hard := errors.New(errors.ErrorTypeMeteringLock, "account locked")
	fatal := errors.Wrap(io.ErrUnexpectedEOF, errors.ErrorTypeConnection, "read failed")

	fmt.Println(errors.IsRetryable(soft))
	fmt.Println(errors.IsRetryable(hard))
	fmt.Println(errors.IsRetryable(fatal))

	// Output:
	// true
	// true
	// false
}
