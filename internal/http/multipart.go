package http

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"sort"
)

// Fields are multipart form fields. Values are either a string or a File.
type Fields map[string]interface{}

// File is a file field of a multipart form.
type File struct {
	Filename string
	Data     []byte
}

// EncodeMultipartFormData encodes fields as multipart/form-data and returns
// the body together with the Content-Type header value carrying the
// boundary. Fields are written in name order.
func EncodeMultipartFormData(fields Fields) ([]byte, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		switch v := fields[name].(type) {
		case string:
			if err := writer.WriteField(name, v); err != nil {
				return nil, "", fmt.Errorf("write field %s: %w", name, err)
			}
		case File:
			fw, err := writer.CreateFormFile(name, v.Filename)
			if err != nil {
				return nil, "", fmt.Errorf("create form file %s: %w", name, err)
			}
			if _, err := fw.Write(v.Data); err != nil {
				return nil, "", fmt.Errorf("write file data %s: %w", name, err)
			}
		default:
			return nil, "", fmt.Errorf("unsupported value type %T for field %s", v, name)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("close writer: %w", err)
	}
	return buf.Bytes(), writer.FormDataContentType(), nil
}
