package bouncer

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"
)

// ErrUnsupportedContentType is returned for POST bodies that are not JSON,
// urlencoded or multipart.
var ErrUnsupportedContentType = errors.New("unsupported content type")

const multipartMemory = 32 << 20

// UploadedFile is a multipart file part, carried inline so the payload
// survives the bounce round trip.
type UploadedFile struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
	DataBase64  string `json:"dataBase64"`
}

// MultipartPayload is the payload of a multipart/form-data request.
type MultipartPayload struct {
	Fields map[string]any            `json:"fields"`
	Files  map[string][]UploadedFile `json:"files"`
}

// parsePayload reads the request payload: the body for POST, the query
// string for everything else.
func parsePayload(c echo.Context) (any, error) {
	req := c.Request()
	if req.Method != http.MethodPost {
		return formValues(req.URL.Query()), nil
	}

	contentType := req.Header.Get(echo.HeaderContentType)
	switch {
	case strings.Contains(contentType, echo.MIMEApplicationJSON):
		var payload any
		if err := c.Echo().JSONSerializer.Deserialize(c, &payload); err != nil {
			return nil, fmt.Errorf("parse json body: %w", err)
		}
		return payload, nil
	case strings.Contains(contentType, echo.MIMEApplicationForm):
		body, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, fmt.Errorf("read form body: %w", err)
		}
		values, err := url.ParseQuery(string(body))
		if err != nil {
			return nil, fmt.Errorf("parse form body: %w", err)
		}
		return formValues(values), nil
	case strings.Contains(contentType, echo.MIMEMultipartForm):
		return parseMultipart(req)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedContentType, contentType)
	}
}

// formValues flattens single-valued keys to strings and keeps repeated keys
// as string slices.
func formValues(values url.Values) map[string]any {
	out := make(map[string]any, len(values))
	for k, vs := range values {
		if len(vs) == 1 {
			out[k] = vs[0]
			continue
		}
		out[k] = append([]string(nil), vs...)
	}
	return out
}

func parseMultipart(req *http.Request) (*MultipartPayload, error) {
	if err := req.ParseMultipartForm(multipartMemory); err != nil {
		return nil, fmt.Errorf("parse multipart body: %w", err)
	}
	form := req.MultipartForm
	defer func() { _ = form.RemoveAll() }()

	payload := &MultipartPayload{
		Fields: formValues(url.Values(form.Value)),
		Files:  make(map[string][]UploadedFile, len(form.File)),
	}
	for field, headers := range form.File {
		for _, fh := range headers {
			f, err := readUpload(fh)
			if err != nil {
				return nil, fmt.Errorf("read file %q: %w", field, err)
			}
			payload.Files[field] = append(payload.Files[field], f)
		}
	}
	return payload, nil
}

func readUpload(fh *multipart.FileHeader) (UploadedFile, error) {
	src, err := fh.Open()
	if err != nil {
		return UploadedFile{}, err
	}
	defer func() { _ = src.Close() }()

	data, err := io.ReadAll(src)
	if err != nil {
		return UploadedFile{}, err
	}
	return UploadedFile{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get(echo.HeaderContentType),
		Size:        fh.Size,
		DataBase64:  base64.StdEncoding.EncodeToString(data),
	}, nil
}
