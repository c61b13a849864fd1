// Package intake turns uploaded or bundled image files into inline data URLs.
package intake

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// MaxUploadBytes is the ceiling for user uploads (20 MiB).
const MaxUploadBytes = 20 << 20

// AcceptedTypes is advertised to the file picker. Enforcement only checks the image/ prefix.
const AcceptedTypes = "image/jpeg,image/png,image/jpg"

const dataURLPrefix = "data:"

// EncodedImage is a base64 data URL: data:<mime>;base64,<payload>.
type EncodedImage string

// Encode builds the data URL for data declared as mimeType.
func Encode(mimeType string, data []byte) EncodedImage {
	return EncodedImage(dataURLPrefix + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data))
}

func (img EncodedImage) String() string { return string(img) }

func (img EncodedImage) IsZero() bool { return img == "" }

// MIMEType returns the media type from the data URL header, or "" if the value is not a data URL.
func (img EncodedImage) MIMEType() string {
	s := string(img)
	if !strings.HasPrefix(s, dataURLPrefix) {
		return ""
	}
	idx := strings.IndexByte(s, ',')
	if idx < 0 {
		return ""
	}
	meta := s[len(dataURLPrefix):idx]
	if semi := strings.IndexByte(meta, ';'); semi >= 0 {
		meta = meta[:semi]
	}
	return meta
}

// Decode returns the original bytes and MIME type.
func (img EncodedImage) Decode() ([]byte, string, error) {
	s := string(img)
	if !strings.HasPrefix(s, dataURLPrefix) {
		return nil, "", fmt.Errorf("not a data url")
	}
	idx := strings.IndexByte(s, ',')
	if idx < 0 {
		return nil, "", fmt.Errorf("data url has no payload")
	}
	if !strings.HasSuffix(s[:idx], ";base64") {
		return nil, "", fmt.Errorf("data url is not base64 encoded")
	}
	data, err := base64.StdEncoding.DecodeString(s[idx+1:])
	if err != nil {
		return nil, "", fmt.Errorf("decode base64 payload: %w", err)
	}
	return data, img.MIMEType(), nil
}

// Validate checks the declared type and size of a user upload.
func Validate(mimeType string, size int64) error {
	if !isImageType(mimeType) {
		return validationError(msgInvalidType, fmt.Errorf("declared type %q", mimeType))
	}
	if size > MaxUploadBytes {
		return TooLarge(size)
	}
	return nil
}

// Read validates the declared metadata, then encodes the body of r.
// The body is never trusted beyond MaxUploadBytes, whatever size was declared.
func Read(mimeType string, size int64, r io.Reader) (EncodedImage, error) {
	if err := Validate(mimeType, size); err != nil {
		return "", err
	}
	data, err := io.ReadAll(io.LimitReader(r, MaxUploadBytes+1))
	if err != nil {
		return "", &Error{Kind: KindRead, Message: msgReadFailed, Err: err}
	}
	if len(data) > MaxUploadBytes {
		return "", TooLarge(int64(len(data)))
	}
	if len(data) == 0 {
		return "", &Error{Kind: KindRead, Message: msgReadFailed, Err: io.ErrUnexpectedEOF}
	}
	return Encode(baseType(mimeType), data), nil
}

// FromFileHeader runs intake on one multipart file part using its declared Content-Type.
func FromFileHeader(fh *multipart.FileHeader) (EncodedImage, error) {
	mimeType := fh.Header.Get("Content-Type")
	if err := Validate(mimeType, fh.Size); err != nil {
		return "", err
	}
	src, err := fh.Open()
	if err != nil {
		return "", &Error{Kind: KindRead, Message: msgReadFailed, Err: fmt.Errorf("open %s: %w", fh.Filename, err)}
	}
	defer src.Close()
	return Read(mimeType, fh.Size, src)
}

// LoadDefault reads the bundled default image. Only the image/ prefix is required here.
func LoadDefault(path string) (EncodedImage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", &Error{Kind: KindLoad, Message: msgLoadFailed, Err: fmt.Errorf("read %s: %w", path, err)}
	}
	if len(data) == 0 {
		return "", &Error{Kind: KindLoad, Message: msgLoadFailed, Err: fmt.Errorf("%s is empty", path)}
	}
	mimeType := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	if !isImageType(mimeType) {
		return "", &Error{Kind: KindLoad, Message: msgLoadFailed, Err: fmt.Errorf("%s has type %q", path, mimeType)}
	}
	return Encode(baseType(mimeType), data), nil
}

// Equal reports whether img encodes exactly data.
func (img EncodedImage) Equal(data []byte) bool {
	got, _, err := img.Decode()
	return err == nil && bytes.Equal(got, data)
}

func isImageType(mimeType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(mimeType)), "image/")
}

func baseType(mimeType string) string {
	if mt, _, err := mime.ParseMediaType(mimeType); err == nil {
		return mt
	}
	return strings.ToLower(strings.TrimSpace(mimeType))
}
