package addon

import "github.com/false2true/false2true/proxy"

// Decoder removes the Content-Encoding of buffered responses before they
// reach the client.
type Decoder struct {
	proxy.BaseAddon
}

func (*Decoder) Response(f *proxy.Flow) {
	if f.Stream || f.Response == nil {
		return
	}
	f.Response.ReplaceToDecodedBody()
}
