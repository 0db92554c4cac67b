package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"jobportal/auth"
)

const (
	defaultMaxUploadBytes = 5 << 20
	fileField             = "file"
)

var errBadBody = errors.New("api: malformed request body")

// requestForm is a request body flattened to string fields plus an optional
// single file attachment.
type requestForm struct {
	values map[string]string
	file   *auth.File
}

func (f *requestForm) get(key string) string {
	return f.values[key]
}

// lookup returns nil when key was not sent at all.
func (f *requestForm) lookup(key string) *string {
	v, ok := f.values[key]
	if !ok {
		return nil
	}
	return &v
}

// parseForm reads a multipart, JSON or urlencoded body capped at the
// configured upload limit.
func (s *Server) parseForm(w http.ResponseWriter, r *http.Request) (*requestForm, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "multipart/form-data":
		return parseMultipart(r, s.maxUploadBytes)
	case "application/json":
		return parseJSON(r)
	default:
		return parseURLEncoded(r)
	}
}

func parseMultipart(r *http.Request, maxMemory int64) (*requestForm, error) {
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		return nil, bodyError(err)
	}

	form := &requestForm{values: make(map[string]string)}
	for k, vs := range r.MultipartForm.Value {
		if len(vs) > 0 {
			form.values[k] = vs[0]
		}
	}

	file, header, err := r.FormFile(fileField)
	switch {
	case errors.Is(err, http.ErrMissingFile):
		return form, nil
	case err != nil:
		return nil, bodyError(err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, bodyError(err)
	}
	if len(data) > 0 {
		form.file = &auth.File{
			Name:        header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Data:        data,
		}
	}
	return form, nil
}

func parseJSON(r *http.Request) (*requestForm, error) {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return &requestForm{values: map[string]string{}}, nil
		}
		return nil, bodyError(err)
	}

	form := &requestForm{values: make(map[string]string, len(raw))}
	for k, v := range raw {
		switch val := v.(type) {
		case nil:
		case string:
			form.values[k] = val
		case json.Number:
			form.values[k] = val.String()
		case bool:
			form.values[k] = strconv.FormatBool(val)
		case []any:
			parts := make([]string, 0, len(val))
			for _, item := range val {
				s, ok := item.(string)
				if !ok {
					return nil, fmt.Errorf("%w: field %q must be a list of strings", errBadBody, k)
				}
				parts = append(parts, s)
			}
			form.values[k] = strings.Join(parts, ",")
		default:
			return nil, fmt.Errorf("%w: field %q has unsupported type", errBadBody, k)
		}
	}
	return form, nil
}

func parseURLEncoded(r *http.Request) (*requestForm, error) {
	if err := r.ParseForm(); err != nil {
		return nil, bodyError(err)
	}
	form := &requestForm{values: make(map[string]string)}
	for k, vs := range r.PostForm {
		if len(vs) > 0 {
			form.values[k] = vs[0]
		}
	}
	return form, nil
}

func bodyError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return err
	}
	return fmt.Errorf("%w: %v", errBadBody, err)
}
