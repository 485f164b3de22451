package proxy

// DefaultStreamLargeBodies is the body size from which flows are streamed.
const DefaultStreamLargeBodies = 1024 * 1024 * 5 // 5mb

// Config holds the proxy configuration settings.
type Config struct {
	Addr string
	// StreamLargeBodies is the size in bytes from which request and response
	// bodies are streamed instead of buffered.
	StreamLargeBodies int64
	SslInsecure       bool
	// Upstream is an upstream proxy URL (http, https or socks5). When empty
	// the HTTP_PROXY family of environment variables is used.
	Upstream string
}

// NewConfig creates a Config listening on addr with default settings.
func NewConfig(addr string) *Config {
	return &Config{
		Addr:              addr,
		StreamLargeBodies: DefaultStreamLargeBodies,
	}
}
