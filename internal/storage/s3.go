package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/dukerupert/pluginhub/internal/apperr"
	"github.com/dukerupert/pluginhub/internal/model"
)

// s3Client is an interface for testability.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, input *s3.HeadObjectInput, opts ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	CopyObject(ctx context.Context, input *s3.CopyObjectInput, opts ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
	ListObjectsV2(ctx context.Context, input *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3 stores files as objects under bucket/prefix.
type S3 struct {
	client s3Client
	bucket string
	prefix string
}

func NewS3(cfg S3Config) (*S3, error) {
	if cfg.Bucket == "" || cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("s3 storage requires bucket and credentials")
	}
	return newS3WithClient(newS3Client(cfg), cfg.Bucket, cfg.Prefix), nil
}

func newS3WithClient(client s3Client, bucket, prefix string) *S3 {
	return &S3{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

func newS3Client(cfg S3Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

func (s *S3) key(p string) string {
	return strings.TrimPrefix(path.Join(s.prefix, cleanPath(p)), "/")
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	var nf *types.NotFound
	return errors.As(err, &nsk) || errors.As(err, &nf)
}

// Save stages the upload in a temp file so the object is sent with a known
// content length.
func (s *S3) Save(ctx context.Context, dir string, r io.Reader, name string) (model.FileInfo, error) {
	name = baseName(name)
	if name == "" {
		return model.FileInfo{}, apperr.ErrMissingField.With("file name")
	}
	p := path.Join(cleanPath(dir), name)
	key := s.key(p)

	tmp, err := os.CreateTemp("", "pluginhub-upload-*")
	if err != nil {
		return model.FileInfo{}, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	size, err := io.Copy(tmp, r)
	if err != nil {
		return model.FileInfo{}, fmt.Errorf("stage upload: %w", err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return model.FileInfo{}, fmt.Errorf("rewind upload: %w", err)
	}

	// Existing objects are overwritten; only a failed lookup aborts.
	if _, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}); err != nil && !isNotFound(err) {
		return model.FileInfo{}, fmt.Errorf("head object: %w", err)
	}

	if _, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          tmp,
		ContentLength: aws.Int64(size),
	}); err != nil {
		return model.FileInfo{}, fmt.Errorf("upload to s3: %w", err)
	}
	return newFileInfo(p, size, time.Now(), false), nil
}

// tempFile removes its backing file when closed.
type tempFile struct {
	*os.File
}

func (t tempFile) Close() error {
	err := t.File.Close()
	os.Remove(t.File.Name())
	return err
}

func (s *S3) Fetch(ctx context.Context, p string) (*File, error) {
	p = cleanPath(p)
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(p)),
	})
	if isNotFound(err) {
		return nil, apperr.ErrFileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("download from s3: %w", err)
	}
	defer out.Body.Close()

	tmp, err := os.CreateTemp("", "pluginhub-download-*")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	size, err := io.Copy(tmp, out.Body)
	if err == nil {
		_, err = tmp.Seek(0, io.SeekStart)
	}
	if err != nil {
		tempFile{tmp}.Close()
		return nil, fmt.Errorf("stage download: %w", err)
	}

	return &File{
		FileInfo:   newFileInfo(p, size, aws.ToTime(out.LastModified), false),
		ReadCloser: tempFile{tmp},
	}, nil
}

func (s *S3) head(ctx context.Context, p string) (model.FileInfo, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(p)),
	})
	if isNotFound(err) {
		return model.FileInfo{}, apperr.ErrFileNotFound
	}
	if err != nil {
		return model.FileInfo{}, fmt.Errorf("head object: %w", err)
	}
	return newFileInfo(p, aws.ToInt64(out.ContentLength), aws.ToTime(out.LastModified), false), nil
}

func (s *S3) Delete(ctx context.Context, p string) (model.FileInfo, error) {
	p = cleanPath(p)
	info, err := s.head(ctx, p)
	if err != nil {
		return model.FileInfo{}, err
	}
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(p)),
	}); err != nil {
		return model.FileInfo{}, fmt.Errorf("delete object: %w", err)
	}
	return info, nil
}

// List reports objects directly under dir. Common prefixes are returned as
// directories. A dir with nothing under it does not exist.
func (s *S3) List(ctx context.Context, dir string) ([]model.FileInfo, error) {
	dir = cleanPath(dir)
	prefix := s.key(dir)
	if prefix != "" {
		prefix += "/"
	}

	var files []model.FileInfo
	var token *string
	for {
		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(prefix),
			Delimiter:         aws.String("/"),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("list objects: %w", err)
		}
		for _, cp := range out.CommonPrefixes {
			name := path.Base(strings.TrimSuffix(aws.ToString(cp.Prefix), "/"))
			files = append(files, newFileInfo(path.Join(dir, name), 0, time.Time{}, true))
		}
		for _, obj := range out.Contents {
			k := aws.ToString(obj.Key)
			if k == prefix {
				continue
			}
			files = append(files, newFileInfo(path.Join(dir, path.Base(k)), aws.ToInt64(obj.Size), aws.ToTime(obj.LastModified), false))
		}
		if !aws.ToBool(out.IsTruncated) {
			break
		}
		token = out.NextContinuationToken
	}

	if len(files) == 0 {
		return nil, apperr.ErrFolderNotFound
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// Rename copies the object to its new name and removes the original.
func (s *S3) Rename(ctx context.Context, p, newName string) (model.FileInfo, error) {
	newName = baseName(newName)
	if newName == "" {
		return model.FileInfo{}, apperr.ErrMissingField.With("new name")
	}
	p = cleanPath(p)
	info, err := s.head(ctx, p)
	if err != nil {
		return model.FileInfo{}, err
	}

	target := path.Join(path.Dir(p), newName)
	if _, err := s.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(s.bucket),
		Key:        aws.String(s.key(target)),
		CopySource: aws.String(copySource(s.bucket, s.key(p))),
	}); err != nil {
		return model.FileInfo{}, fmt.Errorf("copy object: %w", err)
	}
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(p)),
	}); err != nil {
		return model.FileInfo{}, fmt.Errorf("delete object: %w", err)
	}
	return newFileInfo(target, info.Size, info.ModifiedAt, false), nil
}

func copySource(bucket, key string) string {
	parts := strings.Split(key, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return bucket + "/" + strings.Join(parts, "/")
}
