package rasterize

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hazyhaar/examprep/collab"
	"github.com/hazyhaar/examprep/idgen"
)

// CloudinaryConfig configures the remote rasterizer.
type CloudinaryConfig struct {
	CloudName string `json:"cloud_name" yaml:"cloud_name"`
	APIKey    string `json:"api_key" yaml:"api_key"`
	APISecret string `json:"-" yaml:"api_secret"`

	// APIBase is the upload/admin endpoint (default: https://api.cloudinary.com/v1_1).
	APIBase string `json:"api_base" yaml:"api_base"`
	// DeliveryBase serves rendered pages (default: https://res.cloudinary.com).
	DeliveryBase string `json:"delivery_base" yaml:"delivery_base"`

	UploadTimeout time.Duration `json:"upload_timeout" yaml:"upload_timeout"`
	FetchTimeout  time.Duration `json:"fetch_timeout" yaml:"fetch_timeout"`

	HTTPClient *http.Client     `json:"-" yaml:"-"`
	Logger     *slog.Logger     `json:"-" yaml:"-"`
	NewID      idgen.Generator  `json:"-" yaml:"-"`
	Now        func() time.Time `json:"-" yaml:"-"`
}

func (c *CloudinaryConfig) defaults() {
	if c.APIBase == "" {
		c.APIBase = "https://api.cloudinary.com/v1_1"
	}
	if c.DeliveryBase == "" {
		c.DeliveryBase = "https://res.cloudinary.com"
	}
	c.APIBase = strings.TrimRight(c.APIBase, "/")
	c.DeliveryBase = strings.TrimRight(c.DeliveryBase, "/")
	if c.UploadTimeout <= 0 {
		c.UploadTimeout = 60 * time.Second
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 15 * time.Second
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{}
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.NewID == nil {
		c.NewID = idgen.Document
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

// Cloudinary rasterizes PDFs through the Cloudinary image API. Documents
// are uploaded as image resources; each page is delivered through a
// pg_<n> transformation URL.
type Cloudinary struct {
	cfg     CloudinaryConfig
	upload  collab.HandlerMiddleware
	fetch   collab.Handler
	destroy collab.Handler
}

// NewCloudinary validates credentials and builds the call handlers.
func NewCloudinary(cfg CloudinaryConfig) (*Cloudinary, error) {
	if cfg.CloudName == "" || cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, errors.New("rasterize: cloudinary requires cloud_name, api_key and api_secret")
	}
	cfg.defaults()

	breaker := collab.NewCircuitBreaker()
	c := &Cloudinary{cfg: cfg}
	c.upload = collab.Standard(cfg.Logger, "cloudinary.upload", breaker, cfg.UploadTimeout)
	c.fetch = collab.Standard(cfg.Logger, "cloudinary.fetch", nil, cfg.FetchTimeout)(
		collab.HTTPHandler(cfg.HTTPClient, buildGet))
	c.destroy = collab.Standard(cfg.Logger, "cloudinary.destroy", nil, cfg.FetchTimeout)(
		collab.HTTPHandler(cfg.HTTPClient, c.buildDestroy))
	return c, nil
}

type uploadResponse struct {
	PublicID string `json:"public_id"`
	Pages    int    `json:"pages"`
}

// Upload sends doc as a signed image upload with format pdf.
func (c *Cloudinary) Upload(ctx context.Context, doc []byte) (Resource, error) {
	params := map[string]string{
		"format":    "pdf",
		"public_id": c.cfg.NewID(),
		"timestamp": strconv.FormatInt(c.cfg.Now().Unix(), 10),
	}
	body, contentType, err := c.multipartBody(params, doc)
	if err != nil {
		return Resource{}, err
	}

	send := c.upload(collab.HTTPHandler(c.cfg.HTTPClient, c.buildUpload(contentType)))
	raw, err := send(ctx, body)
	if err != nil {
		return Resource{}, fmt.Errorf("rasterize: upload: %w", err)
	}
	var resp uploadResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return Resource{}, fmt.Errorf("rasterize: decode upload response: %w", err)
	}
	if resp.PublicID == "" {
		resp.PublicID = params["public_id"]
	}
	if resp.Pages < 1 {
		resp.Pages = 1
	}
	return Resource{ID: resp.PublicID, Pages: resp.Pages}, nil
}

// PageURL is the delivery URL of one rendered page.
func (c *Cloudinary) PageURL(res Resource, page int, opts RenderOptions) string {
	opts = opts.WithDefaults()
	return fmt.Sprintf("%s/%s/image/upload/c_scale,dn_%d,pg_%d,w_%d/%s.%s",
		c.cfg.DeliveryBase, c.cfg.CloudName, opts.Density, page, opts.Width,
		url.PathEscape(res.ID), opts.Format)
}

// RenderPage fetches the rendered page image.
func (c *Cloudinary) RenderPage(ctx context.Context, res Resource, page int, opts RenderOptions) ([]byte, error) {
	if err := CheckPage(res, page); err != nil {
		return nil, err
	}
	img, err := c.fetch(ctx, []byte(c.PageURL(res, page, opts)))
	if err != nil {
		return nil, fmt.Errorf("rasterize: fetch page %d: %w", page, err)
	}
	return img, nil
}

type destroyResponse struct {
	Result string `json:"result"`
}

// Delete destroys the uploaded resource.
func (c *Cloudinary) Delete(ctx context.Context, res Resource) error {
	params := map[string]string{
		"public_id": res.ID,
		"timestamp": strconv.FormatInt(c.cfg.Now().Unix(), 10),
	}
	form := url.Values{}
	for k, v := range params {
		form.Set(k, v)
	}
	form.Set("api_key", c.cfg.APIKey)
	form.Set("signature", c.sign(params))

	raw, err := c.destroy(ctx, []byte(form.Encode()))
	if err != nil {
		return fmt.Errorf("rasterize: destroy %s: %w", res.ID, err)
	}
	var resp destroyResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return fmt.Errorf("rasterize: decode destroy response: %w", err)
	}
	if resp.Result != "ok" {
		return fmt.Errorf("rasterize: destroy %s: result %q", res.ID, resp.Result)
	}
	return nil
}

// sign computes the API request signature: SHA-1 over the sorted
// "k=v&k=v" parameter string followed by the API secret.
func (c *Cloudinary) sign(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, len(keys))
	for i, k := range keys {
		pairs[i] = k + "=" + params[k]
	}
	sum := sha1.Sum([]byte(strings.Join(pairs, "&") + c.cfg.APISecret))
	return hex.EncodeToString(sum[:])
}

// multipartBody returns the signed upload form and its content type.
func (c *Cloudinary) multipartBody(params map[string]string, doc []byte) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range params {
		if err := w.WriteField(k, v); err != nil {
			return nil, "", err
		}
	}
	if err := w.WriteField("api_key", c.cfg.APIKey); err != nil {
		return nil, "", err
	}
	if err := w.WriteField("signature", c.sign(params)); err != nil {
		return nil, "", err
	}
	part, err := w.CreateFormFile("file", params["public_id"]+".pdf")
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(doc); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

func (c *Cloudinary) buildUpload(contentType string) collab.RequestBuilder {
	return func(ctx context.Context, body []byte) (*http.Request, error) {
		u := fmt.Sprintf("%s/%s/image/upload", c.cfg.APIBase, c.cfg.CloudName)
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", contentType)
		return req, nil
	}
}

func (c *Cloudinary) buildDestroy(ctx context.Context, form []byte) (*http.Request, error) {
	u := fmt.Sprintf("%s/%s/image/destroy", c.cfg.APIBase, c.cfg.CloudName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(form))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req, nil
}

func buildGet(ctx context.Context, target []byte) (*http.Request, error) {
	return http.NewRequestWithContext(ctx, http.MethodGet, string(target), nil)
}
