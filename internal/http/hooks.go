package http

import (
	"net/http"
	"time"
)

// BeforeRequestHook is called before each HTTP request attempt.
// If the hook returns an error, the request is aborted and the error is returned to the caller.
//
// The request can be modified in place. The hook is called for every retry and redirect.
type BeforeRequestHook func(req *http.Request) error

// AfterResponseHook is called after a response has been read completely.
// If the hook returns an error, it is ignored (the response is still returned).
type AfterResponseHook func(req *http.Request, resp *Response) error

// OnErrorHook is called when an attempt fails with a timeout or a broken
// connection. The return value is ignored.
//
// This hook is called for each failed attempt, including retries.
type OnErrorHook func(req *http.Request, err error) error

// OnRetryHook is called before each retry attempt.
// The hook receives the number of retries left and the delay that will be applied.
// If the hook returns an error, the retry is aborted and the error is returned.
//
// Example:
//
//	OnRetry: func(req *http.Request, remaining int, delay time.Duration) error {
//	    log.Printf("Retrying %s (%d left) after %v", req.URL, remaining, delay)
//	    return nil
//	}
type OnRetryHook func(req *http.Request, remaining int, delay time.Duration) error

// OnRedirectHook is called before a redirect is followed.
// If the hook returns an error, the redirect is not followed and the error is returned.
type OnRedirectHook func(resp *Response, location string) error
