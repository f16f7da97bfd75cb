package httpclient

import (
	"bytes"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
)

// FileUpload is one file part of a multipart request. Built via File() or
// FileReader() on the RequestBuilder.
//
//	resp, err := client.Request("ExportReport").
//	    File("report", "/path/to/report.pdf").
//	    FormField("title", "Weekly Report").
//	    Post(ctx, "/exports")
type FileUpload struct {
	// FieldName is the multipart form field name, e.g. "report".
	FieldName string

	// FileName is the filename presented in the upload, by default the
	// base name of the source path.
	FileName string

	// Reader supplies the content. Path-based uploads defer opening the
	// file until the request executes.
	Reader io.Reader
}

// File adds a file upload from a path. The file is opened when the request
// executes, so a missing or unreadable file surfaces as an execution error,
// not a builder error.
func (rb *RequestBuilder) File(fieldName, filePath string) *RequestBuilder {
	if rb.fileUploads == nil {
		rb.fileUploads = make([]FileUpload, 0)
	}

	rb.fileUploads = append(rb.fileUploads, FileUpload{
		FieldName: fieldName,
		FileName:  filepath.Base(filePath),
		Reader:    &lazyFileReader{path: filePath},
	})

	return rb
}

// FileReader adds a file upload from an io.Reader, for in-memory content
// or streams.
//
//	resp, err := client.Request("ExportReport").
//	    FileReader("report", "report.csv", strings.NewReader(csvData)).
//	    Post(ctx, "/exports")
func (rb *RequestBuilder) FileReader(fieldName, fileName string, reader io.Reader) *RequestBuilder {
	if rb.fileUploads == nil {
		rb.fileUploads = make([]FileUpload, 0)
	}

	rb.fileUploads = append(rb.fileUploads, FileUpload{
		FieldName: fieldName,
		FileName:  fileName,
		Reader:    reader,
	})

	return rb
}

// FormField adds a plain form field alongside the file parts.
func (rb *RequestBuilder) FormField(key, value string) *RequestBuilder {
	if rb.formFields == nil {
		rb.formFields = make(map[string]string)
	}
	rb.formFields[key] = value
	return rb
}

// buildMultipart assembles the multipart body from the collected fields
// and files and returns it with its Content-Type (which carries the
// boundary).
func (rb *RequestBuilder) buildMultipart() (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	for key, value := range rb.formFields {
		if err := writer.WriteField(key, value); err != nil {
			return nil, "", err
		}
	}

	for _, file := range rb.fileUploads {
		reader := file.Reader
		if lazy, ok := reader.(*lazyFileReader); ok {
			f, err := os.Open(lazy.path)
			if err != nil {
				return nil, "", err
			}
			defer f.Close()
			reader = f
		}

		part, err := writer.CreateFormFile(file.FieldName, file.FileName)
		if err != nil {
			return nil, "", err
		}

		if _, err := io.Copy(part, reader); err != nil {
			return nil, "", err
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", err
	}

	return body, writer.FormDataContentType(), nil
}

// lazyFileReader holds a path until buildMultipart opens it. Its Read is
// never used on the happy path; buildMultipart swaps in the real file.
type lazyFileReader struct {
	path string
}

func (l *lazyFileReader) Read(_ []byte) (int, error) {
	return 0, io.EOF
}
