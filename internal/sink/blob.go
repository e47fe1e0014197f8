package sink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"

	"github.com/umilab/resnorm/internal/failure"
)

const (
	// BlobScheme prefixes targets uploaded to Azure Blob Storage, as
	// azblob://<container>/<blob>.
	BlobScheme = "azblob://"

	// EnvBlobAccountURL supplies the blob service URL when the account_url
	// param is not set.
	EnvBlobAccountURL = "RESNORM_BLOB_ACCOUNT_URL"
)

// uploader is the subset of *azblob.Client used by blobWriter.
type uploader interface {
	UploadFile(ctx context.Context, containerName string, blobName string, file *os.File, o *azblob.UploadFileOptions) (azblob.UploadFileResponse, error)
}

// newUploader builds the blob client; tests replace it.
var newUploader = func(accountURL string) (uploader, error) {
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, err
	}
	return newBlobClient(accountURL, cred)
}

func newBlobClient(accountURL string, cred azcore.TokenCredential) (*azblob.Client, error) {
	return azblob.NewClient(accountURL, cred, nil)
}

// IsBlob reports whether target names a blob.
func IsBlob(target string) bool {
	return strings.HasPrefix(target, BlobScheme)
}

// ParseBlobTarget splits azblob://container/path/to/blob into its container
// and blob name.
func ParseBlobTarget(target string) (container, blob string, err error) {
	rest, ok := strings.CutPrefix(target, BlobScheme)
	if !ok {
		return "", "", fmt.Errorf("%w: %q is not an %s target", failure.ErrInvalidConfig, target, BlobScheme)
	}
	container, blob, ok = strings.Cut(rest, "/")
	if !ok || container == "" || blob == "" || strings.HasSuffix(blob, "/") {
		return "", "", fmt.Errorf("%w: blob target %q must be %s<container>/<blob>", failure.ErrInvalidConfig, target, BlobScheme)
	}
	return container, blob, nil
}

// blobWriter stages output in a temporary file and uploads it on Close.
type blobWriter struct {
	ctx       context.Context
	target    string
	container string
	blob      string
	staged    string
	inner     LineWriter
	client    uploader
	closed    bool
}

func openBlob(ctx context.Context, target string, opts Options, p Params) (LineWriter, error) {
	container, blob, err := ParseBlobTarget(target)
	if err != nil {
		return nil, err
	}
	accountURL := p.AccountURL
	if accountURL == "" {
		accountURL = os.Getenv(EnvBlobAccountURL)
	}
	if accountURL == "" {
		return nil, fmt.Errorf("%w: %s requires the account_url output param or %s", failure.ErrInvalidConfig, target, EnvBlobAccountURL)
	}
	client, err := newUploader(accountURL)
	if err != nil {
		return nil, failure.Output("connect", target, err)
	}

	f, err := os.CreateTemp("", "resnorm-*")
	if err != nil {
		return nil, failure.Output("stage", target, err)
	}
	inner, err := newFileWriter(f, target, opts, p)
	if err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return nil, err
	}
	return &blobWriter{
		ctx:       ctx,
		target:    target,
		container: container,
		blob:      blob,
		staged:    f.Name(),
		inner:     inner,
		client:    client,
	}, nil
}

func (w *blobWriter) WriteLine(line string) error {
	return w.inner.WriteLine(line)
}

func (w *blobWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	defer os.Remove(w.staged) //nolint:errcheck

	if err := w.inner.Close(); err != nil {
		return err
	}
	f, err := os.Open(w.staged)
	if err != nil {
		return failure.Output("stage", w.target, err)
	}

	slog.Debug("Uploading output", "container", w.container, "blob", w.blob)
	_, uploadErr := w.client.UploadFile(w.ctx, w.container, w.blob, f, nil)
	closeErr := f.Close()
	if uploadErr != nil {
		return failure.Output("upload", w.target, uploadErr)
	}
	if closeErr != nil && !errors.Is(closeErr, os.ErrClosed) {
		return failure.Output("stage", w.target, closeErr)
	}
	return nil
}
