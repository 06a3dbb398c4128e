// Package medialoader keeps a content root in sync with a published
// media bundle.
//
// The deployment pipeline uploads a tar.gz of the library to S3 under
// its SHA-256 hash and writes that hash to an SSM parameter. The loader
// polls the parameter, downloads new bundles, verifies the checksum
// (and, when a KMS key is configured, a detached signature), and
// extracts into the destination directory. A marker file records the
// installed hash so restarts do not re-download an unchanged bundle.
//
// The loader is optional; when it is not configured the server simply
// serves whatever is on disk.
package medialoader

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"github.com/RagingGuard/simple-video-share/internal/cryptoutil"
	"github.com/RagingGuard/simple-video-share/internal/log"
	"github.com/RagingGuard/simple-video-share/internal/xerrors"
)

// markerName is the file in DestDir that records the installed bundle hash.
const markerName = ".bundle.sha256"

// SSMAPI is the subset of the SSM client the loader uses.
type SSMAPI interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// S3API is the subset of the S3 client the loader uses.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Verifier checks a detached signature over the bundle hash.
type Verifier interface {
	VerifySignature(ctx context.Context, message, signature []byte) error
}

// Options configures a Loader.
type Options struct {
	Logger log.Logger

	// SSMParam holds the hex SHA-256 of the current bundle.
	SSMParam string

	// Bundle location: s3://{S3Bucket}/{S3Prefix}/{hash}.tar.gz, with a
	// detached signature at the same key plus ".sig" when Verifier is set.
	S3Bucket string
	S3Prefix string

	// DestDir is the content root bundles are extracted into.
	DestDir string

	// Verifier, when non-nil, must accept the signature object before a
	// bundle is installed.
	Verifier Verifier

	// SSMClient and S3Client override the AWS clients, for tests.
	SSMClient SSMAPI
	S3Client  S3API

	// AWSConfig overrides the default AWS config when clients are not
	// injected directly.
	AWSConfig *aws.Config
}

// Loader downloads, verifies, and installs media bundles.
type Loader struct {
	opts      Options
	ssmClient SSMAPI
	s3Client  S3API
	logger    log.Logger
}

// NewLoader validates options and builds AWS clients when none were
// injected.
func NewLoader(ctx context.Context, opts Options) (*Loader, error) {
	if opts.SSMParam == "" {
		return nil, xerrors.New("SSMParam is required")
	}
	if opts.S3Bucket == "" {
		return nil, xerrors.New("S3Bucket is required")
	}
	if opts.DestDir == "" {
		return nil, xerrors.New("DestDir is required")
	}
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}

	l := &Loader{
		opts:      opts,
		ssmClient: opts.SSMClient,
		s3Client:  opts.S3Client,
		logger:    opts.Logger,
	}

	if l.ssmClient == nil || l.s3Client == nil {
		var awsCfg aws.Config
		var err error
		if opts.AWSConfig != nil {
			awsCfg = *opts.AWSConfig
		} else {
			awsCfg, err = config.LoadDefaultConfig(ctx)
			if err != nil {
				return nil, xerrors.Wrap(err, "load AWS config")
			}
		}
		if l.ssmClient == nil {
			l.ssmClient = ssm.NewFromConfig(awsCfg)
		}
		if l.s3Client == nil {
			l.s3Client = s3.NewFromConfig(awsCfg)
		}
	}

	return l, nil
}

// FetchCurrentHash reads the published bundle hash from SSM.
func (l *Loader) FetchCurrentHash(ctx context.Context) (string, error) {
	out, err := l.ssmClient.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(l.opts.SSMParam),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", xerrors.Wrapf(err, "get SSM parameter %s", l.opts.SSMParam)
	}
	if out.Parameter == nil || out.Parameter.Value == nil {
		return "", xerrors.Newf("SSM parameter %s has no value", l.opts.SSMParam)
	}

	hash := strings.TrimSpace(*out.Parameter.Value)
	if hash == "" {
		return "", xerrors.Newf("SSM parameter %s is empty", l.opts.SSMParam)
	}
	return hash, nil
}

// InstalledHash reads the marker left by the last successful install.
// Missing marker means nothing is installed.
func (l *Loader) InstalledHash() string {
	data, err := os.ReadFile(filepath.Join(l.opts.DestDir, markerName))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func (l *Loader) s3Key(hash string) string {
	if l.opts.S3Prefix != "" {
		return fmt.Sprintf("%s/%s.tar.gz", l.opts.S3Prefix, hash)
	}
	return fmt.Sprintf("%s.tar.gz", hash)
}

// download fetches the bundle into a temp file, verifying its SHA-256
// against hash on the way through.
func (l *Loader) download(ctx context.Context, hash string) (string, error) {
	key := l.s3Key(hash)

	l.logger.Info(ctx, "downloading media bundle",
		"bucket", l.opts.S3Bucket,
		"key", key,
		"expected_hash", hash,
	)

	out, err := l.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(l.opts.S3Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", xerrors.Wrapf(err, "get S3 object s3://%s/%s", l.opts.S3Bucket, key)
	}
	defer out.Body.Close()

	tmpFile, err := os.CreateTemp("", "media-bundle-*.tar.gz")
	if err != nil {
		return "", xerrors.Wrap(err, "create temp file")
	}
	tmpPath := tmpFile.Name()

	written, actualHash, err := copyWithHash(tmpFile, out.Body)
	tmpFile.Close()
	if err != nil {
		os.Remove(tmpPath)
		return "", xerrors.Wrap(err, "download bundle")
	}

	l.logger.Info(ctx, "downloaded media bundle",
		"bytes", written,
		"actual_hash", actualHash,
	)

	// always a constant-time compare, even though the hash is not secret
	if !cryptoutil.HashEqual(actualHash, hash) {
		os.Remove(tmpPath)
		return "", xerrors.Newf("checksum mismatch: expected %s, got %s", hash, actualHash)
	}

	return tmpPath, nil
}

// verifySignature fetches the detached signature object and checks it
// against the bundle hash with the configured verifier.
func (l *Loader) verifySignature(ctx context.Context, hash string) error {
	key := l.s3Key(hash) + ".sig"
	out, err := l.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(l.opts.S3Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return xerrors.Wrapf(err, "get signature object s3://%s/%s", l.opts.S3Bucket, key)
	}
	defer out.Body.Close()

	sig, err := io.ReadAll(io.LimitReader(out.Body, 8192))
	if err != nil {
		return xerrors.Wrap(err, "read signature object")
	}

	if err := l.opts.Verifier.VerifySignature(ctx, []byte(hash), sig); err != nil {
		return xerrors.Wrap(err, "verify bundle signature")
	}
	return nil
}

// Sync performs one poll-compare-install cycle. It returns the hash now
// installed and whether this call installed it.
func (l *Loader) Sync(ctx context.Context) (hash string, installed bool, err error) {
	hash, err = l.FetchCurrentHash(ctx)
	if err != nil {
		return "", false, err
	}

	if cryptoutil.HashEqual(hash, l.InstalledHash()) {
		return hash, false, nil
	}

	if l.opts.Verifier != nil {
		if err := l.verifySignature(ctx, hash); err != nil {
			return "", false, err
		}
	}

	bundlePath, err := l.download(ctx, hash)
	if err != nil {
		return "", false, err
	}
	defer os.Remove(bundlePath)

	if err := os.MkdirAll(l.opts.DestDir, 0o755); err != nil {
		return "", false, xerrors.Wrapf(err, "create dest dir %s", l.opts.DestDir)
	}

	start := time.Now()
	if err := extractTarGz(bundlePath, l.opts.DestDir); err != nil {
		return "", false, xerrors.Wrap(err, "extract bundle")
	}

	if err := os.WriteFile(filepath.Join(l.opts.DestDir, markerName), []byte(hash+"\n"), 0o644); err != nil {
		return "", false, xerrors.Wrap(err, "write install marker")
	}

	l.logger.Info(ctx, "installed media bundle",
		"hash", hash,
		"dest", l.opts.DestDir,
		"extract_duration", time.Since(start).String(),
	)
	return hash, true, nil
}
