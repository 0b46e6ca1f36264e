// Package client provides the outbound HTTP client shared by the plugin host.
//
// Every network request a plugin makes through fetch, every remote package
// download and every batch listing goes through one Client, so rate limits
// and breakers apply to the whole host.
//
// Built on go-resty/resty for production reliability:
//   - Automatic retries with backoff over a pooled retryablehttp transport
//   - Context-based cancellation
//   - Response size limits
//   - Rate limiting per client instance
//   - One circuit breaker per remote host
//
// Example Usage:
//
//	c := client.NewClient(client.DefaultOptions(), logger)
//	resp, err := c.Do(ctx, client.Request{URL: "https://example.com", Method: "GET"})
//	path, err := c.Download(ctx, archiveURL, downloadsDir, 64<<20)
package client
