package s3util

import (
	"context"
	"errors"
	"io"
	"regexp"
	"testing"
	"time"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type fakeS3 struct {
	put     *s3.PutObjectInput
	body    []byte
	putErr  error
	expires time.Duration
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	f.put = in
	f.body, _ = io.ReadAll(in.Body)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) PresignGetObject(_ context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	var opts s3.PresignOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	f.expires = opts.Expires
	return &v4.PresignedHTTPRequest{URL: "https://" + *in.Bucket + ".s3.example.com/" + *in.Key + "?sig=1", Method: "GET"}, nil
}

var exportKeyRegex = regexp.MustCompile(`^sess-1/edited/[0-9a-f-]{36}\.jpg$`)

func TestUploadExport(t *testing.T) {
	fake := &fakeS3{}
	e := NewExporter(fake, fake, "media-bucket")

	key, url, err := e.UploadExport(context.Background(), "sess-1", []byte{0xff, 0xd8, 0xff})
	if err != nil {
		t.Fatalf("UploadExport() error: %v", err)
	}
	if !exportKeyRegex.MatchString(key) {
		t.Errorf("key = %q, want <session>/edited/<uuid>.jpg", key)
	}
	if *fake.put.Bucket != "media-bucket" || *fake.put.ContentType != "image/jpeg" || *fake.put.Tagging != projectTag {
		t.Errorf("PutObjectInput = bucket %q type %q tagging %q", *fake.put.Bucket, *fake.put.ContentType, *fake.put.Tagging)
	}
	if len(fake.body) != 3 {
		t.Errorf("uploaded %d bytes, want 3", len(fake.body))
	}
	if url != "https://media-bucket.s3.example.com/"+key+"?sig=1" {
		t.Errorf("url = %q", url)
	}
	if fake.expires != DefaultURLExpiry {
		t.Errorf("presign expiry = %v, want %v", fake.expires, DefaultURLExpiry)
	}
}

func TestUploadExport_PutFailure(t *testing.T) {
	fake := &fakeS3{putErr: errors.New("AccessDenied")}
	e := NewExporter(fake, fake, "media-bucket")
	if _, _, err := e.UploadExport(context.Background(), "sess-1", []byte{1}); !errors.Is(err, fake.putErr) {
		t.Errorf("UploadExport() error = %v, want wrapped AccessDenied", err)
	}
}

func TestExportKey_Anonymous(t *testing.T) {
	if k := ExportKey(""); !regexp.MustCompile(`^anonymous/edited/`).MatchString(k) {
		t.Errorf("ExportKey(\"\") = %q", k)
	}
}
