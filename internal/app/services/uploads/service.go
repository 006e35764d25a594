// Package uploads stores user files in an S3-compatible object store.
package uploads

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/xml"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/earnhub/platform/internal/config"
	"github.com/earnhub/platform/internal/httputil"
	"github.com/earnhub/platform/pkg/logger"
)

// Errors
var (
	ErrDisabled    = errors.New("object storage is not configured")
	ErrEmptyUpload = errors.New("upload is empty")
	ErrTooLarge    = errors.New("upload exceeds size limit")
)

// MaxDirectUploadBytes is the cap for single-request uploads; larger files
// go through the multipart flow.
const MaxDirectUploadBytes = 8 << 20

// MinPartBytes is the S3 minimum for every multipart part except the last.
const MinPartBytes = 5 << 20

// Service signs and sends requests to an S3-compatible endpoint.
type Service struct {
	cfg        config.StorageConfig
	httpClient *http.Client
	log        *logger.Logger

	now func() time.Time
}

// New creates the upload service. An empty endpoint yields a disabled
// service.
func New(cfg config.StorageConfig, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("uploads")
	}
	return &Service{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		log:        log,
		now:        time.Now,
	}
}

// Enabled reports whether object storage is configured.
func (s *Service) Enabled() bool {
	return s != nil && s.cfg.Endpoint != ""
}

// NewKey builds a namespaced object key for a user upload.
func NewKey(prefix, userID, filename string) string {
	ext := path.Ext(filename)
	return fmt.Sprintf("%s/%s/%s%s", prefix, userID, uuid.NewString(), ext)
}

// Put uploads a small object in one request and returns its key.
func (s *Service) Put(ctx context.Context, key, contentType string, data []byte) error {
	if !s.Enabled() {
		return ErrDisabled
	}
	if len(data) == 0 {
		return ErrEmptyUpload
	}
	if len(data) > MaxDirectUploadBytes {
		return ErrTooLarge
	}

	resp, err := s.do(ctx, http.MethodPut, key, nil, contentType, data)
	if err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	if _, err := httputil.ReadBody(resp, 64<<10); err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	s.log.WithField("key", key).WithField("bytes", len(data)).Info("object stored")
	return nil
}

// Delete removes an object.
func (s *Service) Delete(ctx context.Context, key string) error {
	if !s.Enabled() {
		return ErrDisabled
	}
	resp, err := s.do(ctx, http.MethodDelete, key, nil, "", nil)
	if err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	if _, err := httputil.ReadBody(resp, 64<<10); err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

// InitMultipart starts a multipart upload and returns the upload ID.
func (s *Service) InitMultipart(ctx context.Context, key, contentType string) (string, error) {
	if !s.Enabled() {
		return "", ErrDisabled
	}
	resp, err := s.do(ctx, http.MethodPost, key, url.Values{"uploads": {""}}, contentType, nil)
	if err != nil {
		return "", fmt.Errorf("init multipart: %w", err)
	}
	body, err := httputil.ReadBody(resp, 64<<10)
	if err != nil {
		return "", fmt.Errorf("init multipart: %w", err)
	}

	var out struct {
		UploadID string `xml:"UploadId"`
	}
	if err := xml.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("parse multipart response: %w", err)
	}
	if out.UploadID == "" {
		return "", fmt.Errorf("multipart response missing upload id")
	}
	return out.UploadID, nil
}

// UploadPart sends one part and returns its ETag for the completion call.
// Parts are 1-based and every part except the last must be at least
// MinPartBytes.
func (s *Service) UploadPart(ctx context.Context, key, uploadID string, partNumber int, data []byte) (string, error) {
	if !s.Enabled() {
		return "", ErrDisabled
	}
	if partNumber < 1 {
		return "", fmt.Errorf("part number must be positive")
	}
	if len(data) == 0 {
		return "", ErrEmptyUpload
	}

	q := url.Values{
		"partNumber": {fmt.Sprintf("%d", partNumber)},
		"uploadId":   {uploadID},
	}
	resp, err := s.do(ctx, http.MethodPut, key, q, "", data)
	if err != nil {
		return "", fmt.Errorf("upload part %d: %w", partNumber, err)
	}
	etag := resp.Header.Get("ETag")
	if _, err := httputil.ReadBody(resp, 64<<10); err != nil {
		return "", fmt.Errorf("upload part %d: %w", partNumber, err)
	}
	if etag == "" {
		return "", fmt.Errorf("part %d response missing etag", partNumber)
	}
	return etag, nil
}

// CompleteMultipart finishes a multipart upload. ETags are ordered by part
// number starting at part 1.
func (s *Service) CompleteMultipart(ctx context.Context, key, uploadID string, etags []string) error {
	if !s.Enabled() {
		return ErrDisabled
	}
	if len(etags) == 0 {
		return ErrEmptyUpload
	}

	type part struct {
		PartNumber int    `xml:"PartNumber"`
		ETag       string `xml:"ETag"`
	}
	payload := struct {
		XMLName xml.Name `xml:"CompleteMultipartUpload"`
		Parts   []part   `xml:"Part"`
	}{}
	for i, etag := range etags {
		payload.Parts = append(payload.Parts, part{PartNumber: i + 1, ETag: etag})
	}
	body, err := xml.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal completion: %w", err)
	}

	resp, err := s.do(ctx, http.MethodPost, key, url.Values{"uploadId": {uploadID}}, "application/xml", body)
	if err != nil {
		return fmt.Errorf("complete multipart: %w", err)
	}
	if _, err := httputil.ReadBody(resp, 64<<10); err != nil {
		return fmt.Errorf("complete multipart: %w", err)
	}
	s.log.WithField("key", key).WithField("parts", len(etags)).Info("multipart upload completed")
	return nil
}

// do signs and executes one request against the bucket.
func (s *Service) do(ctx context.Context, method, key string, query url.Values, contentType string, body []byte) (*http.Response, error) {
	endpoint := strings.TrimRight(s.cfg.Endpoint, "/")
	rawURL := fmt.Sprintf("%s/%s/%s", endpoint, s.cfg.Bucket, strings.TrimLeft(key, "/"))
	if len(query) > 0 {
		rawURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	s.sign(req, body)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

// sign applies AWS signature v4 headers to the request.
func (s *Service) sign(req *http.Request, body []byte) {
	now := s.now().UTC()
	amzDate := now.Format("20060102T150405Z")
	dateStamp := now.Format("20060102")

	payloadHash := sha256.Sum256(body)
	payloadHex := hex.EncodeToString(payloadHash[:])

	req.Header.Set("Host", req.URL.Host)
	req.Header.Set("X-Amz-Date", amzDate)
	req.Header.Set("X-Amz-Content-Sha256", payloadHex)

	signedHeaders := []string{"host", "x-amz-content-sha256", "x-amz-date"}
	if req.Header.Get("Content-Type") != "" {
		signedHeaders = append(signedHeaders, "content-type")
	}
	sort.Strings(signedHeaders)

	var canonicalHeaders strings.Builder
	for _, h := range signedHeaders {
		value := req.Header.Get(h)
		if h == "host" {
			value = req.URL.Host
		}
		canonicalHeaders.WriteString(h + ":" + strings.TrimSpace(value) + "\n")
	}

	canonicalRequest := strings.Join([]string{
		req.Method,
		req.URL.EscapedPath(),
		canonicalQuery(req.URL),
		canonicalHeaders.String(),
		strings.Join(signedHeaders, ";"),
		payloadHex,
	}, "\n")
	requestHash := sha256.Sum256([]byte(canonicalRequest))

	scope := strings.Join([]string{dateStamp, s.cfg.Region, "s3", "aws4_request"}, "/")
	stringToSign := strings.Join([]string{
		"AWS4-HMAC-SHA256",
		amzDate,
		scope,
		hex.EncodeToString(requestHash[:]),
	}, "\n")

	signingKey := hmacSHA256([]byte("AWS4"+s.cfg.SecretKey), dateStamp)
	signingKey = hmacSHA256(signingKey, s.cfg.Region)
	signingKey = hmacSHA256(signingKey, "s3")
	signingKey = hmacSHA256(signingKey, "aws4_request")
	signature := hex.EncodeToString(hmacSHA256(signingKey, stringToSign))

	req.Header.Set("Authorization", fmt.Sprintf(
		"AWS4-HMAC-SHA256 Credential=%s/%s, SignedHeaders=%s, Signature=%s",
		s.cfg.AccessKey, scope, strings.Join(signedHeaders, ";"), signature))
}

func canonicalQuery(u *url.URL) string {
	q := u.Query()
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var parts []string
	for _, k := range keys {
		for _, v := range q[k] {
			parts = append(parts, url.QueryEscape(k)+"="+url.QueryEscape(v))
		}
	}
	return strings.Join(parts, "&")
}

func hmacSHA256(key []byte, data string) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(data))
	return mac.Sum(nil)
}
