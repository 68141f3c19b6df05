package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/dukerupert/pluginhub/internal/apperr"
)

// mockS3Client implements s3Client for testing.
type mockS3Client struct {
	mu      sync.Mutex
	objects map[string][]byte
	heads   int
	putErr  error
}

func newMockS3() *mockS3Client {
	return &mockS3Client{objects: make(map[string][]byte)}
}

func (m *mockS3Client) PutObject(_ context.Context, input *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.putErr != nil {
		return nil, m.putErr
	}
	data, _ := io.ReadAll(input.Body)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[*input.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3Client) GetObject(_ context.Context, input *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[*input.Key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(data)),
		ContentLength: aws.Int64(int64(len(data))),
		LastModified:  aws.Time(time.Now()),
	}, nil
}

func (m *mockS3Client) HeadObject(_ context.Context, input *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.heads++
	data, ok := m.objects[*input.Key]
	if !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{ContentLength: aws.Int64(int64(len(data))), LastModified: aws.Time(time.Now())}, nil
}

func (m *mockS3Client) DeleteObject(_ context.Context, input *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, *input.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func (m *mockS3Client) CopyObject(_ context.Context, input *s3.CopyObjectInput, _ ...func(*s3.Options)) (*s3.CopyObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, src, _ := strings.Cut(*input.CopySource, "/")
	data, ok := m.objects[src]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	m.objects[*input.Key] = data
	return &s3.CopyObjectOutput{}, nil
}

func (m *mockS3Client) ListObjectsV2(_ context.Context, input *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := aws.ToString(input.Prefix)
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	seen := map[string]bool{}
	var keys []string
	for k := range m.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		rest := strings.TrimPrefix(k, prefix)
		if i := strings.Index(rest, "/"); i >= 0 {
			cp := prefix + rest[:i+1]
			if !seen[cp] {
				seen[cp] = true
				out.CommonPrefixes = append(out.CommonPrefixes, types.CommonPrefix{Prefix: aws.String(cp)})
			}
			continue
		}
		out.Contents = append(out.Contents, types.Object{
			Key:          aws.String(k),
			Size:         aws.Int64(int64(len(m.objects[k]))),
			LastModified: aws.Time(time.Now()),
		})
	}
	return out, nil
}

func TestS3SaveFetch(t *testing.T) {
	mock := newMockS3()
	s := newS3WithClient(mock, "plugins", "/prod/")
	ctx := context.Background()

	info, err := s.Save(ctx, "/versions/1", strings.NewReader("jar bytes"), "Foo-1.0.0.jar")
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if info.Path != "/versions/1/Foo-1.0.0.jar" || info.Size != 9 {
		t.Errorf("info = %+v", info)
	}
	if _, ok := mock.objects["prod/versions/1/Foo-1.0.0.jar"]; !ok {
		t.Fatalf("object not stored under prefix: %v", mock.objects)
	}
	if mock.heads != 1 {
		t.Errorf("heads = %d, want 1", mock.heads)
	}

	f, err := s.Fetch(ctx, "/versions/1/Foo-1.0.0.jar")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	data, _ := io.ReadAll(f)
	if err := f.Close(); err != nil {
		t.Errorf("close: %v", err)
	}
	if string(data) != "jar bytes" {
		t.Errorf("content = %q", data)
	}
}

func TestS3SaveOverwrites(t *testing.T) {
	mock := newMockS3()
	s := newS3WithClient(mock, "plugins", "")
	ctx := context.Background()

	s.Save(ctx, "/images/1", strings.NewReader("old"), "logo.png")
	if _, err := s.Save(ctx, "/images/1", strings.NewReader("new"), "logo.png"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if got := string(mock.objects["images/1/logo.png"]); got != "new" {
		t.Errorf("content = %q, want new", got)
	}
}

func TestS3PutError(t *testing.T) {
	mock := newMockS3()
	mock.putErr = errors.New("boom")
	s := newS3WithClient(mock, "plugins", "")

	if _, err := s.Save(context.Background(), "/images/1", strings.NewReader("x"), "a.png"); err == nil {
		t.Fatal("expected upload error")
	}
}

func TestS3NotFound(t *testing.T) {
	s := newS3WithClient(newMockS3(), "plugins", "")
	ctx := context.Background()

	if _, err := s.Fetch(ctx, "/nope"); !errors.Is(err, apperr.ErrFileNotFound) {
		t.Errorf("fetch err = %v, want ErrFileNotFound", err)
	}
	if _, err := s.Delete(ctx, "/nope"); !errors.Is(err, apperr.ErrFileNotFound) {
		t.Errorf("delete err = %v, want ErrFileNotFound", err)
	}
	if _, err := s.Rename(ctx, "/nope", "x"); !errors.Is(err, apperr.ErrFileNotFound) {
		t.Errorf("rename err = %v, want ErrFileNotFound", err)
	}
	if _, err := s.List(ctx, "/empty"); !errors.Is(err, apperr.ErrFolderNotFound) {
		t.Errorf("list err = %v, want ErrFolderNotFound", err)
	}
}

func TestS3ListRenameDelete(t *testing.T) {
	mock := newMockS3()
	s := newS3WithClient(mock, "plugins", "")
	ctx := context.Background()

	s.Save(ctx, "/images/1", strings.NewReader("aa"), "a.png")
	s.Save(ctx, "/images/1/thumbs", strings.NewReader("t"), "t.png")

	files, err := s.List(ctx, "/images/1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("got %d entries, want 2: %+v", len(files), files)
	}
	if files[0].Name != "a.png" || files[0].Size != 2 {
		t.Errorf("file = %+v", files[0])
	}
	if files[1].Name != "thumbs" || !files[1].IsDirectory {
		t.Errorf("dir = %+v", files[1])
	}

	renamed, err := s.Rename(ctx, "/images/1/a.png", "b.png")
	if err != nil {
		t.Fatalf("rename: %v", err)
	}
	if renamed.Path != "/images/1/b.png" {
		t.Errorf("renamed = %q", renamed.Path)
	}
	if _, ok := mock.objects["images/1/a.png"]; ok {
		t.Error("source object kept after rename")
	}

	if _, err := s.Delete(ctx, "/images/1/b.png"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok := mock.objects["images/1/b.png"]; ok {
		t.Error("object kept after delete")
	}
}
