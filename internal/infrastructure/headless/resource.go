package headless

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/vincent-petithory/dataurl"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
)

const maxDocumentSize = 8 << 20

type resource struct {
	url  string
	body []byte
}

// load fetches the document behind rawURL. Supported schemes are about,
// data, file and http(s).
func (d *Driver) load(ctx context.Context, rawURL, userAgent string) (*resource, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}

	switch strings.ToLower(u.Scheme) {
	case "about":
		if u.Opaque != "blank" {
			return nil, fmt.Errorf("unsupported about page %q", rawURL)
		}
		return &resource{url: rawURL}, nil
	case "data":
		body, contentType, err := decodeDataURL(rawURL)
		if err != nil {
			return nil, err
		}
		if body, err = toDocument(body, contentType); err != nil {
			return nil, err
		}
		return &resource{url: rawURL, body: body}, nil
	case "file":
		body, err := os.ReadFile(u.Path)
		if err != nil {
			return nil, fmt.Errorf("read file: %w", err)
		}
		return &resource{url: rawURL, body: body}, nil
	case "http", "https":
		return d.fetch(ctx, rawURL, userAgent)
	default:
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
}

func (d *Driver) fetch(ctx context.Context, rawURL, userAgent string) (*resource, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("fetch: unexpected status %s", resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if body, err = toDocument(body, resp.Header.Get("Content-Type")); err != nil {
		return nil, err
	}
	return &resource{url: resp.Request.URL.String(), body: body}, nil
}

// decodeDataURL decodes data:[<mediatype>][;base64],<data> and returns the
// payload with its content type. Unpadded base64 is accepted.
func decodeDataURL(rawURL string) ([]byte, string, error) {
	if meta, payload, ok := strings.Cut(rawURL, ","); ok &&
		strings.HasSuffix(strings.ToLower(meta), ";base64") && len(payload)%4 != 0 {
		rawURL += strings.Repeat("=", 4-len(payload)%4)
	}
	du, err := dataurl.DecodeString(rawURL)
	if err != nil {
		return nil, "", fmt.Errorf("decode data url: %w", err)
	}
	contentType := mime.FormatMediaType(du.ContentType(), du.Params)
	if contentType == "" {
		contentType = du.ContentType()
	}
	return du.Data, contentType, nil
}

// toDocument converts body to UTF-8 HTML. An empty content type is taken as
// HTML; other text types are shown preformatted.
func toDocument(body []byte, contentType string) ([]byte, error) {
	mediaType := "text/html"
	if contentType != "" {
		mt, _, err := mime.ParseMediaType(contentType)
		if err != nil {
			return nil, fmt.Errorf("parse content type: %w", err)
		}
		mediaType = mt
	}

	switch {
	case mediaType == "text/html", mediaType == "application/xhtml+xml":
	case strings.HasPrefix(mediaType, "text/"):
	default:
		return nil, fmt.Errorf("unsupported media type %q", mediaType)
	}

	r, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return nil, fmt.Errorf("decode charset: %w", err)
	}
	utf8Body, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("decode charset: %w", err)
	}
	if mediaType == "text/html" || mediaType == "application/xhtml+xml" {
		return utf8Body, nil
	}
	return []byte("<pre>" + html.EscapeString(string(utf8Body)) + "</pre>"), nil
}
