package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

func TestApplyPrefix(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		prefix string
		key    string
		want   string
	}{
		{name: "no prefix", prefix: "", key: "Cooking_Show/voice/a.ogg", want: "Cooking_Show/voice/a.ogg"},
		{name: "simple prefix", prefix: "critiques", key: "Cooking_Show/voice/a.ogg", want: "critiques/Cooking_Show/voice/a.ogg"},
		{name: "prefix trailing slash", prefix: "critiques/", key: "Cooking_Show/voice/a.ogg", want: "critiques/Cooking_Show/voice/a.ogg"},
		{name: "prefix and key slashes", prefix: "/critiques/", key: "/Cooking_Show/voice/a.ogg", want: "critiques/Cooking_Show/voice/a.ogg"},
		{name: "nested prefix", prefix: "root/sub", key: "a.ogg", want: "root/sub/a.ogg"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := applyPrefix(tt.prefix, tt.key); got != tt.want {
				t.Fatalf("applyPrefix(%q, %q) = %q, want %q", tt.prefix, tt.key, got, tt.want)
			}
		})
	}
}

type fakeS3 struct {
	put    *s3.PutObjectInput
	body   []byte
	putErr error
}

func (f *fakeS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.put = params
	if f.putErr != nil {
		return nil, f.putErr
	}
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	f.body = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(f.body))}, nil
}

func TestPutUsesPrefixAndEncryption(t *testing.T) {
	fake := &fakeS3{}
	store := &Store{client: fake, bucket: "bucket", prefix: "critiques"}

	n, err := store.Put(context.Background(), "Sports_Highlights/voice/a.ogg", "audio/ogg", bytes.NewReader([]byte("OggS")))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if n != 4 {
		t.Fatalf("expected 4 bytes, got %d", n)
	}
	if got := aws.ToString(fake.put.Key); got != "critiques/Sports_Highlights/voice/a.ogg" {
		t.Fatalf("unexpected key %q", got)
	}
	if fake.put.ServerSideEncryption != s3types.ServerSideEncryptionAes256 {
		t.Fatalf("expected AES256 encryption, got %q", fake.put.ServerSideEncryption)
	}
	if aws.ToString(fake.put.IfNoneMatch) != "*" {
		t.Fatalf("expected conditional create")
	}
}

func TestPutWrapsClientError(t *testing.T) {
	boom := errors.New("unavailable")
	store := &Store{client: &fakeS3{putErr: boom}, bucket: "bucket"}

	if _, err := store.Put(context.Background(), "a/b.ogg", "audio/ogg", bytes.NewReader(nil)); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped client error, got %v", err)
	}
}
