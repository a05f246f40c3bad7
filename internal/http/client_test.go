package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestNewClientDefaults(t *testing.T) {
	client := NewClient(NewPool(PoolConfig{Host: "www.eviscape.com"}), Config{})

	if client.config.Logger == nil {
		t.Error("Logger not defaulted")
	}
	if client.config.Retry.MaxDelay != 60*time.Second {
		t.Errorf("Retry.MaxDelay = %v, want 60s", client.config.Retry.MaxDelay)
	}
	if client.Pool().Host() != "www.eviscape.com" {
		t.Errorf("Pool().Host() = %q", client.Pool().Host())
	}
}

func TestClientOpenSuccess(t *testing.T) {
	d := &fakeDialer{handler: func(attempt int, req *http.Request) (*http.Response, error) {
		if req.Host != "www.eviscape.com" {
			t.Errorf("Host = %q, want www.eviscape.com", req.Host)
		}
		if got := req.Header.Get("User-Agent"); got != "eviscape-test" {
			t.Errorf("User-Agent = %q", got)
		}
		return rawResponse(200, map[string]string{"Content-Type": "text/xml"}, `<rsp stat="ok"/>`), nil
	}}
	client := newTestClient(PoolConfig{}, d, Config{})

	header := http.Header{"User-Agent": {"eviscape-test"}}
	resp, err := client.Open(context.Background(), "GET", "/api/1.0/rest/?method=evis.latest", nil, header)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	if resp.Status != 200 || resp.String() != `<rsp stat="ok"/>` {
		t.Errorf("resp = %d %q", resp.Status, resp.String())
	}
	if resp.GetHeader("content-type", "") != "text/xml" {
		t.Errorf("Content-Type = %q", resp.GetHeader("content-type", ""))
	}

	stats := client.Pool().Stats()
	if stats.Created != 1 || stats.Requests != 1 || stats.Idle != 1 {
		t.Errorf("Stats() = %+v, want Created=1 Requests=1 Idle=1", stats)
	}
}

func TestClientOpenReusesConnection(t *testing.T) {
	d := &fakeDialer{}
	client := newTestClient(PoolConfig{}, d, Config{})

	for i := 0; i < 5; i++ {
		if _, err := client.Open(context.Background(), "GET", "/", nil, nil); err != nil {
			t.Fatalf("Open() error = %v", err)
		}
	}

	stats := client.Pool().Stats()
	if stats.Created != 1 {
		t.Errorf("Created = %d, want 1", stats.Created)
	}
	if stats.Requests != 5 {
		t.Errorf("Requests = %d, want 5", stats.Requests)
	}
}

func TestClientOpenNon2xxReturnedAsIs(t *testing.T) {
	for _, status := range []int{301, 404, 500, 503} {
		t.Run(fmt.Sprint(status), func(t *testing.T) {
			d := &fakeDialer{handler: func(attempt int, req *http.Request) (*http.Response, error) {
				// a 301 without Location is not a followable redirect
				return rawResponse(status, nil, "nope"), nil
			}}
			client := newTestClient(PoolConfig{}, d, Config{})

			resp, err := client.Open(context.Background(), "GET", "/", nil, nil)
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			if resp.Status != status {
				t.Errorf("Status = %d, want %d", resp.Status, status)
			}
			if d.attemptCount() != 1 {
				t.Errorf("attempts = %d, want 1", d.attemptCount())
			}
		})
	}
}

func TestClientRetryExhaustion(t *testing.T) {
	d := &fakeDialer{handler: func(attempt int, req *http.Request) (*http.Response, error) {
		return nil, io.ErrUnexpectedEOF
	}}
	var remaining []int
	client := newTestClient(PoolConfig{}, d, Config{
		OnRetry: func(req *http.Request, left int, delay time.Duration) error {
			remaining = append(remaining, left)
			return nil
		},
	})

	_, err := client.Open(context.Background(), "GET", "/", nil, nil, WithRetries(3))

	if !errors.Is(err, ErrMaxRetries) {
		t.Fatalf("Open() error = %v, want ErrMaxRetries", err)
	}
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("Open() error = %v, want the last connection error as reason", err)
	}
	if got := d.attemptCount(); got != 4 {
		t.Errorf("attempts = %d, want 4", got)
	}
	if !reflect.DeepEqual(remaining, []int{2, 1, 0}) {
		t.Errorf("OnRetry remaining = %v, want [2 1 0]", remaining)
	}

	stats := client.Pool().Stats()
	if stats.Broken != 4 || stats.Idle != 0 {
		t.Errorf("Stats() = %+v, want Broken=4 Idle=0", stats)
	}
}

func TestClientRetryZeroBudget(t *testing.T) {
	d := &fakeDialer{handler: func(attempt int, req *http.Request) (*http.Response, error) {
		return nil, io.EOF
	}}
	client := newTestClient(PoolConfig{}, d, Config{})

	_, err := client.Open(context.Background(), "GET", "/", nil, nil, WithRetries(0))
	if !errors.Is(err, ErrMaxRetries) {
		t.Fatalf("Open() error = %v, want ErrMaxRetries", err)
	}
	if got := d.attemptCount(); got != 1 {
		t.Errorf("attempts = %d, want 1", got)
	}

	_, err = client.Open(context.Background(), "GET", "/", nil, nil, WithRetries(-1))
	if !errors.Is(err, ErrMaxRetries) {
		t.Fatalf("Open() error = %v, want ErrMaxRetries", err)
	}
	if got := d.attemptCount(); got != 1 {
		t.Errorf("attempts = %d, want no attempt for a negative budget", got)
	}
}

func TestClientRetryThenSuccess(t *testing.T) {
	d := &fakeDialer{handler: func(attempt int, req *http.Request) (*http.Response, error) {
		if attempt < 3 {
			return nil, errors.New("connection reset by peer")
		}
		body, _ := io.ReadAll(req.Body)
		return rawResponse(200, nil, string(body)), nil
	}}
	client := newTestClient(PoolConfig{}, d, Config{})

	resp, err := client.Open(context.Background(), "POST", "/", []byte("payload"), nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if resp.String() != "payload" {
		t.Errorf("body on final attempt = %q, want the original payload", resp.String())
	}
	if got := d.attemptCount(); got != 3 {
		t.Errorf("attempts = %d, want 3", got)
	}
}

func TestClientDiscardOnFailure(t *testing.T) {
	d := &fakeDialer{handler: func(attempt int, req *http.Request) (*http.Response, error) {
		if attempt == 1 {
			return nil, io.EOF
		}
		return rawResponse(200, nil, "ok"), nil
	}}
	client := newTestClient(PoolConfig{}, d, Config{})

	if _, err := client.Open(context.Background(), "GET", "/", nil, nil); err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	broken := d.conns[0]
	if !broken.closed.Load() {
		t.Error("broken connection was not closed")
	}

	pool := client.Pool()
	idle := pool.Stats().Idle
	for i := 0; i < idle+1; i++ {
		if c := pool.Borrow(); c == Conn(broken) {
			t.Fatal("Borrow() returned the connection that broke")
		}
	}
}

func TestClientBrokenBodyRead(t *testing.T) {
	d := &fakeDialer{handler: func(attempt int, req *http.Request) (*http.Response, error) {
		resp := rawResponse(200, nil, "")
		if attempt == 1 {
			resp.Body = failingBody{err: io.ErrUnexpectedEOF}
		}
		return resp, nil
	}}
	client := newTestClient(PoolConfig{}, d, Config{})

	if _, err := client.Open(context.Background(), "GET", "/", nil, nil); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if got := d.attemptCount(); got != 2 {
		t.Errorf("attempts = %d, want 2", got)
	}
	if got := client.Pool().Stats().Broken; got != 1 {
		t.Errorf("Broken = %d, want 1", got)
	}
}

func TestClientTimeoutIsTerminal(t *testing.T) {
	d := &fakeDialer{handler: func(attempt int, req *http.Request) (*http.Response, error) {
		return nil, fmt.Errorf("read tcp: %w", os.ErrDeadlineExceeded)
	}}
	var errs []error
	client := newTestClient(PoolConfig{Timeout: 2 * time.Second}, d, Config{
		OnError: func(req *http.Request, err error) error {
			errs = append(errs, err)
			return nil
		},
	})

	_, err := client.Open(context.Background(), "GET", "/", nil, nil, WithRetries(10))

	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Open() error = %v, want ErrTimeout", err)
	}
	var te *TimeoutError
	if !errors.As(err, &te) || te.Timeout != 2*time.Second {
		t.Errorf("TimeoutError = %+v, want Timeout=2s", te)
	}
	if got := d.attemptCount(); got != 1 {
		t.Errorf("attempts = %d, want 1", got)
	}
	if len(errs) != 1 {
		t.Errorf("OnError called %d times, want 1", len(errs))
	}
	if got := client.Pool().Stats().Broken; got != 1 {
		t.Errorf("Broken = %d, want the timed out connection discarded", got)
	}
}

func TestClientTimeoutDuringBodyRead(t *testing.T) {
	d := &fakeDialer{handler: func(attempt int, req *http.Request) (*http.Response, error) {
		resp := rawResponse(200, nil, "")
		resp.Body = failingBody{err: os.ErrDeadlineExceeded}
		return resp, nil
	}}
	client := newTestClient(PoolConfig{}, d, Config{})

	_, err := client.Open(context.Background(), "GET", "/", nil, nil)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Open() error = %v, want ErrTimeout", err)
	}
	if got := d.attemptCount(); got != 1 {
		t.Errorf("attempts = %d, want 1", got)
	}
}

func redirectOnce(location string) func(int, *http.Request) (*http.Response, error) {
	return func(attempt int, req *http.Request) (*http.Response, error) {
		if attempt == 1 {
			return rawResponse(302, map[string]string{"Location": location}, ""), nil
		}
		return rawResponse(200, nil, "moved here"), nil
	}
}

func TestClientRedirect(t *testing.T) {
	d := &fakeDialer{handler: redirectOnce("/new")}
	var redirects []string
	client := newTestClient(PoolConfig{}, d, Config{
		OnRedirect: func(resp *Response, location string) error {
			redirects = append(redirects, location)
			return nil
		},
	})

	resp, err := client.Open(context.Background(), "GET", "/old", nil, nil, WithRetries(3))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if resp.Status != 200 || resp.String() != "moved here" {
		t.Errorf("resp = %d %q, want 200 from the new location", resp.Status, resp.String())
	}
	if got := d.requestedPaths(); !reflect.DeepEqual(got, []string{"/old", "/new"}) {
		t.Errorf("paths = %v, want [/old /new]", got)
	}
	if !reflect.DeepEqual(redirects, []string{"http://www.eviscape.com/new"}) {
		t.Errorf("OnRedirect locations = %v", redirects)
	}
}

func TestClientRedirectConsumesOneRetry(t *testing.T) {
	// one unit is enough for one redirect
	d := &fakeDialer{handler: redirectOnce("/new")}
	client := newTestClient(PoolConfig{}, d, Config{})
	if _, err := client.Open(context.Background(), "GET", "/old", nil, nil, WithRetries(1)); err != nil {
		t.Fatalf("Open() with 1 retry error = %v", err)
	}

	// zero units are not
	d = &fakeDialer{handler: redirectOnce("/new")}
	client = newTestClient(PoolConfig{}, d, Config{})
	_, err := client.Open(context.Background(), "GET", "/old", nil, nil, WithRetries(0))
	if !errors.Is(err, ErrMaxRetries) {
		t.Fatalf("Open() with 0 retries error = %v, want ErrMaxRetries", err)
	}
	if got := d.attemptCount(); got != 1 {
		t.Errorf("attempts = %d, want 1", got)
	}
}

func TestClientRedirectLoopExhaustsBudget(t *testing.T) {
	d := &fakeDialer{handler: func(attempt int, req *http.Request) (*http.Response, error) {
		return rawResponse(301, map[string]string{"Location": "/loop"}, ""), nil
	}}
	client := newTestClient(PoolConfig{}, d, Config{})

	_, err := client.Open(context.Background(), "GET", "/loop", nil, nil)
	if !errors.Is(err, ErrMaxRetries) {
		t.Fatalf("Open() error = %v, want ErrMaxRetries", err)
	}
	if got := d.attemptCount(); got != DefaultRetries+1 {
		t.Errorf("attempts = %d, want %d", got, DefaultRetries+1)
	}
}

func TestClientRedirectDisabled(t *testing.T) {
	d := &fakeDialer{handler: redirectOnce("/new")}
	client := newTestClient(PoolConfig{}, d, Config{})

	resp, err := client.Open(context.Background(), "GET", "/old", nil, nil, WithRedirect(false))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if resp.Status != 302 || resp.GetHeader("Location", "") != "/new" {
		t.Errorf("resp = %d Location=%q, want the 302 itself", resp.Status, resp.GetHeader("Location", ""))
	}
}

func TestClientRedirectOtherHostNotFollowed(t *testing.T) {
	d := &fakeDialer{handler: redirectOnce("http://elsewhere.example/new")}
	client := newTestClient(PoolConfig{}, d, Config{})

	resp, err := client.Open(context.Background(), "GET", "/old", nil, nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if resp.Status != 302 {
		t.Errorf("Status = %d, want 302", resp.Status)
	}
	if got := d.attemptCount(); got != 1 {
		t.Errorf("attempts = %d, want 1", got)
	}
}

func TestClientRedirectAbsoluteSameHost(t *testing.T) {
	d := &fakeDialer{handler: redirectOnce("http://www.eviscape.com/api/1.0/rest/")}
	client := newTestClient(PoolConfig{}, d, Config{})

	resp, err := client.Open(context.Background(), "GET", "/api/1.0/rest", nil, nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if resp.Status != 200 {
		t.Errorf("Status = %d, want 200", resp.Status)
	}
}

func TestClientRedirectIPv6Host(t *testing.T) {
	d := &fakeDialer{handler: redirectOnce("/new")}
	client := newTestClient(PoolConfig{Host: "::1", Port: 8080}, d, Config{})

	resp, err := client.Open(context.Background(), "GET", "/old", nil, nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if resp.Status != 200 {
		t.Errorf("Status = %d, want 200", resp.Status)
	}
	if got := d.attemptCount(); got != 2 {
		t.Errorf("attempts = %d, want 2", got)
	}
}

func TestClientBeforeRequestAborts(t *testing.T) {
	d := &fakeDialer{}
	hookErr := errors.New("not signed")
	client := newTestClient(PoolConfig{}, d, Config{
		BeforeRequest: func(req *http.Request) error { return hookErr },
	})

	_, err := client.Open(context.Background(), "GET", "/", nil, nil)
	if !errors.Is(err, hookErr) {
		t.Fatalf("Open() error = %v, want hook error", err)
	}
	if d.attemptCount() != 0 {
		t.Errorf("attempts = %d, want 0", d.attemptCount())
	}
}

func TestClientAfterResponseHook(t *testing.T) {
	d := &fakeDialer{}
	var seen []int
	client := newTestClient(PoolConfig{}, d, Config{
		AfterResponse: func(req *http.Request, resp *Response) error {
			seen = append(seen, resp.Status)
			return errors.New("ignored")
		},
	})

	if _, err := client.Open(context.Background(), "GET", "/", nil, nil); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if !reflect.DeepEqual(seen, []int{200}) {
		t.Errorf("AfterResponse saw %v, want [200]", seen)
	}
}

func TestClientContextCanceled(t *testing.T) {
	d := &fakeDialer{}
	client := newTestClient(PoolConfig{}, d, Config{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Open(ctx, "GET", "/", nil, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Open() error = %v, want context.Canceled", err)
	}
	if d.attemptCount() != 0 {
		t.Errorf("attempts = %d, want 0", d.attemptCount())
	}
}

func TestClientBackoffHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d := &fakeDialer{handler: func(attempt int, req *http.Request) (*http.Response, error) {
		return nil, io.EOF
	}}
	client := newTestClient(PoolConfig{}, d, Config{
		Retry: RetryConfig{BaseDelay: time.Hour},
		OnRetry: func(req *http.Request, remaining int, delay time.Duration) error {
			if delay < 50*time.Minute {
				t.Errorf("delay = %v, want about 1h", delay)
			}
			cancel()
			return nil
		},
	})

	start := time.Now()
	_, err := client.Open(ctx, "GET", "/", nil, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Open() error = %v, want context.Canceled", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("backoff sleep ignored context cancellation")
	}
}

func TestClientOnRetryAborts(t *testing.T) {
	d := &fakeDialer{handler: func(attempt int, req *http.Request) (*http.Response, error) {
		return nil, io.EOF
	}}
	stop := errors.New("stop")
	client := newTestClient(PoolConfig{}, d, Config{
		OnRetry: func(req *http.Request, remaining int, delay time.Duration) error { return stop },
	})

	_, err := client.Open(context.Background(), "GET", "/", nil, nil)
	if !errors.Is(err, stop) {
		t.Fatalf("Open() error = %v, want hook error", err)
	}
	if d.attemptCount() != 1 {
		t.Errorf("attempts = %d, want 1", d.attemptCount())
	}
}

func TestClientGetAppendsFields(t *testing.T) {
	d := &fakeDialer{}
	client := newTestClient(PoolConfig{}, d, Config{})

	fields := url.Values{"q": {"bon jovi"}, "page": {"2"}}
	if _, err := client.Get(context.Background(), "/api/1.0/rest/", fields, nil); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if _, err := client.Get(context.Background(), "/api/1.0/rest/?method=evis.search", fields, nil); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if _, err := client.Get(context.Background(), "/plain", nil, nil); err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	want := []string{
		"/api/1.0/rest/?page=2&q=bon+jovi",
		"/api/1.0/rest/?method=evis.search&page=2&q=bon+jovi",
		"/plain",
	}
	if got := d.requestedPaths(); !reflect.DeepEqual(got, want) {
		t.Errorf("paths = %v, want %v", got, want)
	}
}

func TestClientPostMultipart(t *testing.T) {
	var gotFields map[string]string
	var gotFile string
	d := &fakeDialer{handler: func(attempt int, req *http.Request) (*http.Response, error) {
		if req.Method != "POST" {
			t.Errorf("Method = %q, want POST", req.Method)
		}
		mediaType, params, err := mime.ParseMediaType(req.Header.Get("Content-Type"))
		if err != nil || mediaType != "multipart/form-data" {
			t.Fatalf("Content-Type = %q", req.Header.Get("Content-Type"))
		}
		if req.Header.Get("X-Trace") != "1" {
			t.Errorf("caller header lost")
		}

		gotFields = make(map[string]string)
		mr := multipart.NewReader(req.Body, params["boundary"])
		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			if err != nil {
				t.Fatalf("NextPart() error = %v", err)
			}
			data, _ := io.ReadAll(part)
			if part.FileName() != "" {
				gotFile = part.FileName() + ":" + string(data)
				continue
			}
			gotFields[part.FormName()] = string(data)
		}
		return rawResponse(201, nil, ""), nil
	}}
	client := newTestClient(PoolConfig{}, d, Config{})

	header := http.Header{"Content-Type": {"text/plain"}, "X-Trace": {"1"}}
	resp, err := client.Post(context.Background(), "/api/1.0/rest/", Fields{
		"foo":     "bar",
		"foofile": File{Filename: "foofile.txt", Data: []byte("contents of foofile")},
	}, header)
	if err != nil {
		t.Fatalf("Post() error = %v", err)
	}
	if resp.Status != 201 {
		t.Errorf("Status = %d, want 201", resp.Status)
	}
	if gotFields["foo"] != "bar" {
		t.Errorf("fields = %v", gotFields)
	}
	if gotFile != "foofile.txt:contents of foofile" {
		t.Errorf("file = %q", gotFile)
	}
	if header.Get("Content-Type") != "text/plain" {
		t.Errorf("Post() modified the caller's header: %q", header.Get("Content-Type"))
	}
}

func TestClientPostEncodingError(t *testing.T) {
	d := &fakeDialer{}
	client := newTestClient(PoolConfig{}, d, Config{})

	_, err := client.Post(context.Background(), "/", Fields{"n": 42}, nil)
	if err == nil || !strings.Contains(err.Error(), "unsupported value type") {
		t.Fatalf("Post() error = %v, want encoding error", err)
	}
	if d.attemptCount() != 0 {
		t.Errorf("attempts = %d, want 0", d.attemptCount())
	}
}

func TestClientOpenInvalidURL(t *testing.T) {
	client := newTestClient(PoolConfig{}, &fakeDialer{}, Config{})

	_, err := client.Open(context.Background(), "GET", "http://[::1", nil, nil)
	if err == nil {
		t.Fatal("Open() error = nil, want url error")
	}
	if errors.Is(err, ErrConnectionBroken) || errors.Is(err, ErrMaxRetries) {
		t.Errorf("Open() error = %v, want a plain url error", err)
	}
}
