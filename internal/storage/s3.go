package storage

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"image"
	"image/png"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/pbkdf2"

	"github.com/local/labelbridge/internal/config"
)

// Format marker for encrypted archive objects: salt(16) + nonce(12) + GCM ciphertext.
const encMagic = "LBENC1"

const (
	saltLen    = 16
	pbkdf2Iter = 100000
	keyLen     = 32
)

// Archiver keeps copies of routed label images in S3. Labels carry recipient
// addresses, so archived objects are AES-GCM encrypted with a key derived
// from the configured passphrase.
type Archiver struct {
	uploader   *manager.Uploader
	bucket     string
	prefix     string
	passphrase string
}

// NewArchiver builds an S3 archiver. An empty passphrase stores plaintext;
// endpoint/static credentials support MinIO-style deployments.
func NewArchiver(ctx context.Context, cfg config.ArchiveConfig) (*Archiver, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("archive enabled but no bucket configured")
	}

	var opts []func(*awscfg.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awscfg.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awscfg.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := awscfg.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	cli := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &Archiver{
		uploader:   manager.NewUploader(cli),
		bucket:     cfg.Bucket,
		prefix:     cfg.Prefix,
		passphrase: cfg.Passphrase,
	}, nil
}

// Archive stores one composited output under <prefix>/<job>/<page>_<region>.png[.enc].
func (a *Archiver) Archive(ctx context.Context, jobID string, page int, region, queue string, img image.Image) error {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return fmt.Errorf("encode archive png: %w", err)
	}

	data := buf.Bytes()
	key := fmt.Sprintf("%s/%s/page_%03d_%s.png", a.prefix, jobID, page, region)
	contentType := "image/png"
	if a.passphrase != "" {
		enc, err := encrypt(data, a.passphrase)
		if err != nil {
			return fmt.Errorf("encrypt archive object: %w", err)
		}
		data = enc
		key += ".enc"
		contentType = "application/octet-stream"
	}

	_, err := a.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
		Metadata: map[string]string{
			"job-id": jobID,
			"queue":  queue,
		},
	})
	if err != nil {
		return fmt.Errorf("archive upload %s: %w", key, err)
	}

	log.Debug().Str("bucket", a.bucket).Str("key", key).Int("bytes", len(data)).Msg("archived routed output")
	return nil
}

func encrypt(plain []byte, passphrase string) ([]byte, error) {
	salt := make([]byte, saltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, err
	}
	key := pbkdf2.Key([]byte(passphrase), salt, pbkdf2Iter, keyLen, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(encMagic)+saltLen+gcm.NonceSize()+len(plain)+gcm.Overhead())
	out = append(out, encMagic...)
	out = append(out, salt...)
	out = append(out, nonce...)
	return gcm.Seal(out, nonce, plain, nil), nil
}

// Decrypt reverses encrypt; used by operational tooling to recover an
// archived label image.
func Decrypt(data []byte, passphrase string) ([]byte, error) {
	if len(data) < len(encMagic)+saltLen || string(data[:len(encMagic)]) != encMagic {
		return nil, fmt.Errorf("not an encrypted archive object")
	}
	data = data[len(encMagic):]
	salt, data := data[:saltLen], data[saltLen:]
	key := pbkdf2.Key([]byte(passphrase), salt, pbkdf2Iter, keyLen, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if len(data) < gcm.NonceSize() {
		return nil, fmt.Errorf("encrypted archive object truncated")
	}
	nonce, ct := data[:gcm.NonceSize()], data[gcm.NonceSize():]
	plain, err := gcm.Open(nil, nonce, ct, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt archive object: %w", err)
	}
	return plain, nil
}
