package client

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"resty.dev/v3"
)

type requestStartsAt struct{}
type requestBody struct{}

// NewRESTClient returns a resty client that logs every request and response.
// Summaries are logged at info level and bodies at debug level.
func NewRESTClient(name string, log zerolog.Logger) *resty.Client {
	client := resty.New()
	client.AddRequestMiddleware(func(c *resty.Client, r *resty.Request) error {
		ctx := context.WithValue(r.Context(), requestStartsAt{}, time.Now())
		ctx = context.WithValue(ctx, requestBody{}, r.Body)
		r.SetContext(ctx)
		return nil
	})
	client.AddResponseMiddleware(func(c *resty.Client, r *resty.Response) error {
		startTime, _ := r.Request.Context().Value(requestStartsAt{}).(time.Time)
		latency := time.Since(startTime)

		log.Info().
			Str("client", name).
			Int("status", r.StatusCode()).
			Str("method", r.Request.RawRequest.Method).
			Str("path", r.Request.RawRequest.URL.Path).
			Dur("latency", latency).
			Msg("HTTP client request")

		if log.GetLevel() <= zerolog.DebugLevel {
			var responseBody any
			if !r.Request.DoNotParseResponse {
				responseBody = r.String()
			}
			log.Debug().
				Str("client", name).
				Interface("req_body", r.Request.Context().Value(requestBody{})).
				Interface("resp_body", responseBody).
				Msg("HTTP client payload")
		}
		return nil
	})
	return client
}

// LoggingTransport logs every round trip made through it, for clients that
// take a plain *http.Client.
type LoggingTransport struct {
	Name string
	Base http.RoundTripper
	Log  zerolog.Logger
}

// RoundTrip implements http.RoundTripper.
func (t *LoggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	start := time.Now()
	resp, err := base.RoundTrip(req)
	latency := time.Since(start)

	ev := t.Log.Info().
		Str("client", t.Name).
		Str("method", req.Method).
		Str("path", req.URL.Path).
		Dur("latency", latency)
	if err != nil {
		ev.Err(err).Msg("HTTP client request failed")
		return nil, err
	}
	ev.Int("status", resp.StatusCode).Int64("resp_bytes", resp.ContentLength).Msg("HTTP client request")
	return resp, nil
}
