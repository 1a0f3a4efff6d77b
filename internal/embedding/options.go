package embedding

import "net/http"

// options holds shared configuration for the hosted providers.
type options struct {
	model      string
	dim        int
	dimSet     bool
	baseURL    string
	httpClient *http.Client
}

// Option configures a hosted embedder.
type Option func(*options)

// WithModel sets the embedding model name.
func WithModel(model string) Option {
	return func(o *options) {
		if model != "" {
			o.model = model
		}
	}
}

// WithDimension requests a specific output dimensionality. Models with a fixed
// size ignore or reject it.
func WithDimension(dim int) Option {
	return func(o *options) {
		if dim > 0 {
			o.dim = dim
			o.dimSet = true
		}
	}
}

// WithBaseURL overrides the API base URL.
func WithBaseURL(url string) Option {
	return func(o *options) { o.baseURL = url }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		if client != nil {
			o.httpClient = client
		}
	}
}
