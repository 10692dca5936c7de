package echoutil

import (
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	apierr "github.com/opst/fleetdeck/pkg/api/types/errors"
)

// hop-by-hop headers, not to be forwarded.
var hopByHop = []string{
	"Connection", "Keep-Alive", "Proxy-Authenticate", "Proxy-Authorization",
	"Te", "Trailer", "Transfer-Encoding", "Upgrade", "Host",
}

// Proxy forwards the request to url, and copies the response back as it is.
//
// # Args
//
// - c: echo.Context of the request
//
// - client: http client to send the request. If nil, http.DefaultClient is used.
//
// - url: destination
//
// - header: headers set to the forwarded request, in addition to ones of the request.
func Proxy(c echo.Context, client *http.Client, url string, header http.Header) error {
	if client == nil {
		client = http.DefaultClient
	}
	src := c.Request()
	req, err := http.NewRequestWithContext(src.Context(), src.Method, url, src.Body)
	if err != nil {
		return apierr.InternalServerError(err)
	}
	CopyHeader(req.Header, src.Header, hopByHop...)
	for k, vs := range header {
		req.Header[k] = vs
	}

	resp, err := client.Do(req)
	if err != nil {
		return apierr.BadGateway("", err)
	}
	defer resp.Body.Close()

	dst := c.Response()
	CopyHeader(dst.Header(), resp.Header, hopByHop...)
	dst.WriteHeader(resp.StatusCode)
	_, err = io.Copy(dst, resp.Body)
	return err
}

// CopyHeader adds headers in src to dest, except ones named in except.
func CopyHeader(dest http.Header, src http.Header, except ...string) {
	exc := map[string]struct{}{}
	for _, x := range except {
		exc[strings.ToLower(x)] = struct{}{}
	}

	for k, vs := range src {
		if _, ok := exc[strings.ToLower(k)]; ok {
			continue
		}
		for _, v := range vs {
			dest.Add(k, v)
		}
	}
}
