package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

// Fetch materializes a document reference as a local file and returns its
// path plus a cleanup func releasing any temporary copy. Supports:
// - file://path or plain filesystem paths (no copy, cleanup is a no-op)
// - http(s):// URLs (downloads to temp)
// - s3://bucket/key (downloads to temp via the S3 transfer manager)
func Fetch(ctx context.Context, ref string) (string, func(), error) {
	noop := func() {}
	switch {
	case strings.HasPrefix(ref, "s3://"):
		p, err := downloadS3ToTemp(ctx, ref)
		return p, removeFunc(p), err
	case strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://"):
		p, err := downloadHTTPToTemp(ctx, ref)
		return p, removeFunc(p), err
	case strings.HasPrefix(ref, "file://"):
		return localPath(strings.TrimPrefix(ref, "file://"), noop)
	default:
		return localPath(ref, noop)
	}
}

func localPath(path string, noop func()) (string, func(), error) {
	if _, err := os.Stat(path); err != nil {
		return "", noop, fmt.Errorf("document not accessible: %w", err)
	}
	return path, noop, nil
}

func removeFunc(path string) func() {
	return func() {
		if path == "" {
			return
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Warn().Err(err).Str("file", path).Msg("failed to remove fetched temp file")
		}
	}
}

func downloadHTTPToTemp(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("http %d fetching %s", resp.StatusCode, url)
	}
	f, err := os.CreateTemp("", "docdl-*")
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := io.Copy(f, resp.Body); err != nil {
		_ = os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

func downloadS3ToTemp(ctx context.Context, s3url string) (string, error) {
	// s3://bucket/key
	path := strings.TrimPrefix(s3url, "s3://")
	slash := strings.Index(path, "/")
	if slash <= 0 {
		return "", fmt.Errorf("invalid s3 url: %s", s3url)
	}
	bucket := path[:slash]
	key := path[slash+1:]

	cfg, err := awscfg.LoadDefaultConfig(ctx)
	if err != nil {
		return "", err
	}
	downloader := manager.NewDownloader(s3.NewFromConfig(cfg))

	f, err := os.CreateTemp("", "docdl-*")
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := downloader.Download(ctx, f, &s3.GetObjectInput{Bucket: &bucket, Key: &key}); err != nil {
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("s3 download %s: %w", s3url, err)
	}
	log.Info().Str("bucket", bucket).Str("key", key).Msg("downloaded s3 document to temp")
	return f.Name(), nil
}
