package proxy

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
)

// LinksHeader reports how many links the proxy rendered into a page.
const LinksHeader = "X-Fieldlink-Links"

// modifyResponse renders the field links of HTML responses.
func (s *Server) modifyResponse(resp *http.Response) error {
	if !s.shouldRender(resp) {
		return nil
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBodySize+1))
	if err != nil {
		return fmt.Errorf("failed to read upstream body: %w", err)
	}
	if int64(len(raw)) > s.maxBodySize {
		s.logger.Debug("body too large to render", "path", resp.Request.URL.Path)
		resp.Body = struct {
			io.Reader
			io.Closer
		}{io.MultiReader(bytes.NewReader(raw), resp.Body), resp.Body}
		return nil
	}
	_ = resp.Body.Close()

	body, err := decodeBody(raw, resp.Header.Get("Content-Encoding"))
	if err != nil {
		s.logger.Warn("failed to decode upstream body", "path", resp.Request.URL.Path, "error", err)
		restoreBody(resp, raw)
		return nil
	}

	var out bytes.Buffer
	results, err := s.renderer.RenderHTML(bytes.NewReader(body), &out)
	if err != nil {
		s.logger.Warn("failed to render page", "path", resp.Request.URL.Path, "error", err)
		restoreBody(resp, raw)
		return nil
	}

	links := 0
	for _, r := range results {
		links += len(r.Links)
	}

	resp.Header.Del("Content-Encoding")
	resp.Header.Del("Etag")
	resp.Header.Set(LinksHeader, strconv.Itoa(links))
	restoreBody(resp, out.Bytes())

	s.logger.Debug("page rendered",
		"path", resp.Request.URL.Path,
		"fields", len(results),
		"links", links,
	)
	return nil
}

// shouldRender reports whether resp is a successful HTML page in an
// encoding the proxy can decode.
func (s *Server) shouldRender(resp *http.Response) bool {
	if resp.Request != nil && resp.Request.Method == http.MethodHead {
		return false
	}
	if resp.StatusCode != http.StatusOK {
		return false
	}
	if resp.ContentLength > s.maxBodySize {
		return false
	}

	mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || mediaType != "text/html" {
		return false
	}

	switch strings.ToLower(resp.Header.Get("Content-Encoding")) {
	case "", "identity", "gzip":
		return true
	default:
		return false
	}
}

// decodeBody undoes a gzip content encoding.
func decodeBody(raw []byte, encoding string) ([]byte, error) {
	if !strings.EqualFold(encoding, "gzip") {
		return raw, nil
	}
	zr, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}

// restoreBody replaces the response body and its length headers.
func restoreBody(resp *http.Response, body []byte) {
	resp.Body = io.NopCloser(bytes.NewReader(body))
	resp.ContentLength = int64(len(body))
	resp.Header.Set("Content-Length", strconv.Itoa(len(body)))
}
