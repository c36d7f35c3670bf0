package expense

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/zombor/kakeibo/internal/scanning"
)

const (
	maxUploadSize  = 50 << 20 // 50MB per image, large phone photos included
	maxRequestSize = 4 * maxUploadSize
	formMemory     = 32 << 20
)

var errTooLarge = fmt.Errorf("%w: file is too large, maximum size is 50MB", ErrValidation)

// Upload is one receipt image submitted for analysis.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Validate rejects empty, oversized and unsupported uploads.
func (u Upload) Validate() error {
	if len(u.Data) == 0 {
		return fmt.Errorf("%w: file is empty", ErrValidation)
	}
	if len(u.Data) > maxUploadSize {
		return errTooLarge
	}
	if !scanning.Supported(u.ContentType) {
		return fmt.Errorf("%w: unsupported file type %q", ErrValidation, u.ContentType)
	}
	return nil
}

func (u Upload) displayName() string {
	if u.Filename == "" {
		return "image"
	}
	return u.Filename
}

type jsonImage struct {
	Filename string `json:"filename"`
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type jsonUploads struct {
	Images []jsonImage `json:"images"`
}

// readUploads pulls the images out of a scan request. Multipart forms carry
// one or more "file" parts; JSON bodies carry base64 payloads.
func readUploads(w http.ResponseWriter, r *http.Request) ([]Upload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestSize)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	var (
		uploads []Upload
		err     error
	)
	switch mediaType {
	case "application/json":
		uploads, err = readJSONUploads(r.Body)
	case "multipart/form-data":
		uploads, err = readMultipartUploads(r)
	default:
		return nil, fmt.Errorf("%w: expected multipart/form-data or application/json", ErrValidation)
	}
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, errTooLarge
		}
		return nil, err
	}
	if len(uploads) == 0 {
		return nil, fmt.Errorf("%w: no file was selected", ErrValidation)
	}
	return uploads, nil
}

func readMultipartUploads(r *http.Request) ([]Upload, error) {
	if err := r.ParseMultipartForm(formMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: parsing form: %v", ErrValidation, err)
	}

	headers := r.MultipartForm.File["file"]
	uploads := make([]Upload, 0, len(headers))
	for _, header := range headers {
		if header.Size > maxUploadSize {
			return nil, errTooLarge
		}
		f, err := header.Open()
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", header.Filename, err)
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", header.Filename, err)
		}
		uploads = append(uploads, Upload{
			Filename:    header.Filename,
			ContentType: scanning.DetectMIME(header.Filename, header.Header.Get("Content-Type"), data),
			Data:        data,
		})
	}
	return uploads, nil
}

func readJSONUploads(body io.Reader) ([]Upload, error) {
	var req jsonUploads
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: invalid JSON: %v", ErrValidation, err)
	}

	uploads := make([]Upload, 0, len(req.Images))
	for i, img := range req.Images {
		payload, declared := splitDataURL(img.Data)
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: image %d is not valid base64", ErrValidation, i)
		}
		if img.MimeType != "" {
			declared = img.MimeType
		}
		uploads = append(uploads, Upload{
			Filename:    img.Filename,
			ContentType: scanning.DetectMIME(img.Filename, declared, data),
			Data:        data,
		})
	}
	return uploads, nil
}

// splitDataURL accepts either raw base64 or a "data:<mime>;base64,<payload>" URL.
func splitDataURL(s string) (payload, mimeType string) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "data:") {
		return s, ""
	}
	header, payload, ok := strings.Cut(s, ",")
	if !ok {
		return s, ""
	}
	mimeType, _, _ = strings.Cut(strings.TrimPrefix(header, "data:"), ";")
	return payload, mimeType
}
