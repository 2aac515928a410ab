package mcpserver

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
)

const (
	assetDir      = "assets"
	maxAssetBytes = 10 << 20
	maxRedirects  = 5
)

// imageTypes maps the accepted MIME types to their canonical extension.
var imageTypes = map[string]string{
	"image/png":     ".png",
	"image/jpeg":    ".jpg",
	"image/gif":     ".gif",
	"image/webp":    ".webp",
	"image/svg+xml": ".svg",
}

var unsafeNameRe = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

type assetOutput struct {
	URL  string `json:"url"`
	Path string `json:"path"`
	// Markup is ready to paste into a card description.
	Markup string `json:"markup"`
}

func (s *Server) uploadAsset(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	src, err := req.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var data []byte
	var ext string
	if strings.HasPrefix(src, "data:") {
		data, ext, err = decodeDataURI(src)
	} else {
		data, ext, err = download(ctx, src)
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(data) > maxAssetBytes {
		return mcp.NewToolResultError(fmt.Sprintf("asset too large: %d bytes (max %d)", len(data), maxAssetBytes)), nil
	}

	name := assetName(req.GetString("filename", ""), src, ext)
	nameExt := strings.ToLower(path.Ext(name))
	if !isImageExt(nameExt) {
		return mcp.NewToolResultError(fmt.Sprintf("unsupported asset type %q (allowed: png, jpg, jpeg, gif, webp, svg)", nameExt)), nil
	}
	if err := sniffImage(data, nameExt); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	rel := path.Join(assetDir, name)
	if _, err := s.store.Read(rel); err == nil {
		return mcp.NewToolResultError(fmt.Sprintf("asset already exists: %s", rel)), nil
	}
	if err := s.store.Write(rel, data); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("save asset: %v", err)), nil
	}

	u := "/api/assets/" + name
	out, _ := json.Marshal(assetOutput{
		URL:    u,
		Path:   rel,
		Markup: fmt.Sprintf("![%s](%s)", strings.TrimSuffix(name, nameExt), u),
	})
	return mcp.NewToolResultText(string(out)), nil
}

// decodeDataURI parses a base64 data:<mime>;base64,<payload> URI.
func decodeDataURI(uri string) ([]byte, string, error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(uri, "data:"), ",")
	if !ok {
		return nil, "", errors.New("invalid data URI: missing comma")
	}
	mime, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return nil, "", errors.New("only base64 data URIs are supported")
	}
	mime, _, _ = strings.Cut(mime, ";")
	ext, ok := imageTypes[mime]
	if !ok {
		return nil, "", fmt.Errorf("unsupported data URI type: %s", mime)
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		if data, err = base64.RawStdEncoding.DecodeString(payload); err != nil {
			return nil, "", fmt.Errorf("invalid base64 payload: %w", err)
		}
	}
	return data, ext, nil
}

// download fetches an http(s) URL, refusing loopback and cloud metadata
// hosts on every hop.
func download(ctx context.Context, raw string) ([]byte, string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, "", fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, "", fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	if err := checkHost(u.Hostname()); err != nil {
		return nil, "", err
	}

	client := &http.Client{
		Timeout: 30 * time.Second,
		CheckRedirect: func(r *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("too many redirects (max %d)", maxRedirects)
			}
			return checkHost(r.URL.Hostname())
		},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("download: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("download: HTTP %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAssetBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("download: read body: %w", err)
	}
	if len(data) > maxAssetBytes {
		return nil, "", fmt.Errorf("asset too large: exceeds %d bytes", maxAssetBytes)
	}

	mime, _, _ := strings.Cut(resp.Header.Get("Content-Type"), ";")
	return data, imageTypes[strings.TrimSpace(mime)], nil
}

var metadataIP = net.ParseIP("169.254.169.254")

func checkHost(host string) error {
	if host == "metadata.google.internal" {
		return fmt.Errorf("blocked host: %s", host)
	}
	ip := net.ParseIP(host)
	if ip == nil {
		ips, err := net.LookupIP(host)
		if err != nil || len(ips) == 0 {
			return nil //nolint:nilerr // the client reports DNS failures
		}
		ip = ips[0]
	}
	if ip.IsLoopback() || ip.Equal(metadataIP) {
		return fmt.Errorf("blocked host: %s", host)
	}
	return nil
}

// assetName picks the stored filename: the requested one, else the last URL
// segment, else a random UUID with the detected extension.
func assetName(requested, src, ext string) string {
	name := requested
	if name == "" && !strings.HasPrefix(src, "data:") {
		if u, err := url.Parse(src); err == nil {
			if base := path.Base(u.Path); strings.Contains(base, ".") {
				name = base
			}
		}
	}
	if name == "" {
		if ext == "" {
			ext = ".bin"
		}
		name = uuid.NewString() + ext
	}

	name = unsafeNameRe.ReplaceAllString(path.Base(strings.ReplaceAll(name, `\`, "/")), "_")
	if name == "" || name == "." || strings.HasPrefix(name, "..") {
		name = uuid.NewString() + ext
	}
	return name
}

func isImageExt(ext string) bool {
	if ext == ".jpeg" {
		return true
	}
	for _, e := range imageTypes {
		if e == ext {
			return true
		}
	}
	return false
}

// sniffImage checks that the content matches ext.
func sniffImage(data []byte, ext string) error {
	if ext == ".svg" {
		head := data[:min(len(data), 1024)]
		if !bytes.Contains(head, []byte("<svg")) {
			return errors.New("content is not an SVG image")
		}
		return nil
	}
	detected, _, _ := strings.Cut(http.DetectContentType(data), ";")
	got := imageTypes[detected]
	if ext == ".jpeg" {
		ext = ".jpg"
	}
	if got != ext {
		return fmt.Errorf("content does not match extension %s (detected %s)", ext, detected)
	}
	return nil
}
