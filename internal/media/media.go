// AngelaMos | 2026
// media.go

package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/sony/gobreaker"

	"github.com/carterperez-dev/templates/events-api/internal/config"
	"github.com/carterperez-dev/templates/events-api/internal/core"
)

const (
	breakerTimeout = 30 * time.Second
	sniffLen       = 512
)

const msgNotImage = "Not an image! Please upload only images."

type Uploader interface {
	Upload(ctx context.Context, file io.Reader, filename string) (string, error)
}

// Cloudinary stores uploads in one folder of a Cloudinary account and
// returns their public IDs.
type Cloudinary struct {
	client  *cloudinary.Cloudinary
	folder  string
	timeout time.Duration
	breaker *gobreaker.CircuitBreaker
}

func NewCloudinary(cfg config.MediaConfig, logger *slog.Logger) (*Cloudinary, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("cloudinary: %w", core.ErrNotConfigured)
	}

	client, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("create cloudinary client: %w", err)
	}

	return &Cloudinary{
		client:  client,
		folder:  cfg.Folder,
		timeout: cfg.Timeout,
		breaker: core.NewBreaker("cloudinary", breakerTimeout, logger),
	}, nil
}

func (c *Cloudinary) Upload(ctx context.Context, file io.Reader, filename string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	res, err := c.breaker.Execute(func() (any, error) {
		resp, err := c.client.Upload.Upload(ctx, file, uploader.UploadParams{
			Folder:         c.folder,
			UniqueFilename: boolPtr(true),
			ResourceType:   "image",
		})
		if err != nil {
			return nil, err
		}
		if resp.Error.Message != "" {
			return nil, errors.New(resp.Error.Message)
		}
		return resp.PublicID, nil
	})
	if err != nil {
		return "", core.BreakerError("upload "+filename, err)
	}

	publicID, _ := res.(string)
	return publicID, nil
}

func boolPtr(b bool) *bool {
	return &b
}

// Images uploads the named multipart file fields before the handler runs
// and exposes their public IDs through core.UploadsFromContext. Requests
// that are not multipart pass through untouched.
func Images(up Uploader, rs *core.Responder, fields ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
				next.ServeHTTP(w, r)
				return
			}

			if err := r.ParseMultipartForm(core.MaxMultipartMemory); err != nil {
				rs.Error(w, r, fmt.Errorf("parse multipart form: %w", err))
				return
			}

			uploads := make(map[string]string, len(fields))
			for _, field := range fields {
				file, header, err := r.FormFile(field)
				if errors.Is(err, http.ErrMissingFile) {
					continue
				}
				if err != nil {
					rs.Error(w, r, fmt.Errorf("read %s: %w", field, err))
					return
				}

				publicID, err := uploadImage(r.Context(), up, file, header)
				file.Close()
				if err != nil {
					rs.Error(w, r, err)
					return
				}
				uploads[field] = publicID
			}

			if len(uploads) > 0 {
				r = r.WithContext(core.WithUploads(r.Context(), uploads))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func uploadImage(
	ctx context.Context,
	up Uploader,
	file multipart.File,
	header *multipart.FileHeader,
) (string, error) {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(file, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read upload: %w", err)
	}
	if !strings.HasPrefix(http.DetectContentType(head[:n]), "image/") {
		return "", core.ValidationError(msgNotImage)
	}

	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("rewind upload: %w", err)
	}

	return up.Upload(ctx, file, header.Filename)
}
