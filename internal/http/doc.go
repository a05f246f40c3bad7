// Package http provides the connection pool and request executor used to
// talk to the Eviscape API.
//
// A Pool keeps up to MaxSize idle keep-alive connections to a single host.
// Borrowing never waits: when no idle connection is available a new one is
// created, and connections released into a full pool are closed. This trades
// occasional over-creation for freedom from deadlock under load.
//
// A Client executes requests on a Pool:
//   - Broken connections are discarded and the request retried
//   - Socket timeouts are returned immediately as TimeoutError
//   - Redirects (301, 302, 303, 307) are followed on the same host
//   - Retries and followed redirects share one budget (default 3)
//   - Responses are read completely into a Response before the connection
//     is returned to the pool
//
// Example usage:
//
//	pool, err := http.PoolFromURL("http://www.eviscape.com/api/1.0/rest/", http.PoolConfig{
//	    Timeout: 30 * time.Second,
//	    MaxSize: 10,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	client := http.NewClient(pool, http.Config{})
//
//	resp, err := client.Get(ctx, "/api/1.0/rest/", url.Values{"method": {"evis.latest"}}, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(resp.Status, len(resp.Data))
package http
