package intake

import (
	"bytes"
	"errors"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0x0D}

func TestReadRoundTrip(t *testing.T) {
	sizes := []int{1, 512, 64 << 10, MaxUploadBytes}
	for _, size := range sizes {
		t.Run(fmt.Sprintf("%d", size), func(t *testing.T) {
			data := bytes.Repeat([]byte{0xAB}, size)
			copy(data, pngHeader)

			img, err := Read("image/png", int64(size), bytes.NewReader(data))
			if err != nil {
				t.Fatalf("Read failed: %v", err)
			}
			if img.IsZero() {
				t.Fatal("expected a non-empty encoded image")
			}
			if !strings.HasPrefix(img.String(), "data:image/png;base64,") {
				t.Errorf("unexpected prefix: %.40s", img)
			}
			got, mimeType, err := img.Decode()
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if mimeType != "image/png" {
				t.Errorf("mime = %q, want image/png", mimeType)
			}
			if !bytes.Equal(got, data) {
				t.Error("decoded bytes differ from input")
			}
		})
	}
}

func TestValidateRejectsNonImageTypes(t *testing.T) {
	for _, mimeType := range []string{"", "application/pdf", "text/plain", "video/mp4", "imagex/png"} {
		err := Validate(mimeType, 10)
		if !errors.Is(err, ErrValidation) {
			t.Errorf("Validate(%q) = %v, want validation error", mimeType, err)
			continue
		}
		if got := UserMessage(err); got != "Please upload a valid image file" {
			t.Errorf("message = %q", got)
		}
	}
}

func TestValidateRejectsOversizeRegardlessOfType(t *testing.T) {
	for _, mimeType := range []string{"image/jpeg", "image/png", "application/zip"} {
		err := Validate(mimeType, MaxUploadBytes+1)
		if !errors.Is(err, ErrValidation) {
			t.Errorf("Validate(%q, oversize) = %v, want validation error", mimeType, err)
		}
	}
	if got := UserMessage(Validate("image/jpeg", MaxUploadBytes+1)); got != "Image size should be less than 20MB" {
		t.Errorf("message = %q", got)
	}
	if err := Validate("image/jpeg", MaxUploadBytes); err != nil {
		t.Errorf("exactly 20 MiB should pass, got %v", err)
	}
}

func TestReadBodyLargerThanDeclared(t *testing.T) {
	body := bytes.NewReader(make([]byte, MaxUploadBytes+10))
	_, err := Read("image/jpeg", 100, body)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk on fire") }

func TestReadFailureIsDistinct(t *testing.T) {
	_, err := Read("image/png", 10, failingReader{})
	if !errors.Is(err, ErrRead) {
		t.Fatalf("expected read error, got %v", err)
	}
	if errors.Is(err, ErrValidation) {
		t.Error("read error must not match validation")
	}
	if got := UserMessage(err); got != "Failed to read the image file. Please try again." {
		t.Errorf("message = %q", got)
	}
}

func TestFromFileHeaderUsesDeclaredType(t *testing.T) {
	cases := []struct {
		name        string
		contentType string
		wantErr     error
	}{
		{name: "jpeg", contentType: "image/jpeg"},
		{name: "png", contentType: "image/png"},
		{name: "text", contentType: "text/plain", wantErr: ErrValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			data := append([]byte(nil), pngHeader...)
			fh := fileHeader(t, "photo", tc.contentType, data)

			img, err := FromFileHeader(fh)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("FromFileHeader failed: %v", err)
			}
			if img.MIMEType() != tc.contentType {
				t.Errorf("mime = %q, want %q", img.MIMEType(), tc.contentType)
			}
			if !img.Equal(data) {
				t.Error("encoded image does not round-trip")
			}
		})
	}
}

func TestLoadDefault(t *testing.T) {
	dir := t.TempDir()

	t.Run("png", func(t *testing.T) {
		path := filepath.Join(dir, "default.png")
		if err := os.WriteFile(path, pngHeader, 0o644); err != nil {
			t.Fatal(err)
		}
		img, err := LoadDefault(path)
		if err != nil {
			t.Fatalf("LoadDefault failed: %v", err)
		}
		if img.MIMEType() != "image/png" {
			t.Errorf("mime = %q", img.MIMEType())
		}
	})

	t.Run("sniffed", func(t *testing.T) {
		path := filepath.Join(dir, "default")
		if err := os.WriteFile(path, pngHeader, 0o644); err != nil {
			t.Fatal(err)
		}
		img, err := LoadDefault(path)
		if err != nil {
			t.Fatalf("LoadDefault failed: %v", err)
		}
		if img.MIMEType() != "image/png" {
			t.Errorf("mime = %q", img.MIMEType())
		}
	})

	t.Run("missing", func(t *testing.T) {
		_, err := LoadDefault(filepath.Join(dir, "nope.png"))
		if !errors.Is(err, ErrLoad) {
			t.Fatalf("expected load error, got %v", err)
		}
		if UserMessage(err) != "Failed to load default image" {
			t.Errorf("message = %q", UserMessage(err))
		}
	})

	t.Run("not an image", func(t *testing.T) {
		path := filepath.Join(dir, "notes.txt")
		if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadDefault(path); !errors.Is(err, ErrLoad) {
			t.Fatalf("expected load error, got %v", err)
		}
	})
}

func TestDecodeRejectsGarbage(t *testing.T) {
	for _, img := range []EncodedImage{"", "hello", "data:image/png,raw", "data:image/png;base64,!!!"} {
		if _, _, err := img.Decode(); err == nil {
			t.Errorf("Decode(%q) should fail", img)
		}
	}
}

func fileHeader(t *testing.T, field, contentType string, data []byte) *multipart.FileHeader {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename="upload.bin"`, field))
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	form, err := multipart.NewReader(&buf, w.Boundary()).ReadForm(1 << 20)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = form.RemoveAll() })
	files := form.File[field]
	if len(files) != 1 {
		t.Fatalf("expected one file part, got %d", len(files))
	}
	return files[0]
}
