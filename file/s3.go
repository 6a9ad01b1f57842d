package file

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/OpenSemanticLab/osw-go/auth"
)

// S3 stores the bytes as an object in an S3-compatible store. The
// object is addressed by a URL of the form scheme://host/bucket/key;
// credentials resolve through the credential manager against the host.
type S3 struct {
	common Common

	// URL addresses the object, "https://minio.example.org/bucket/key".
	URL string

	creds *auth.Manager

	mu     sync.Mutex
	client *minio.Client
}

// NewS3 creates an object-store controller for rawURL.
func NewS3(rawURL string, creds *auth.Manager) *S3 {
	_, _, key, _ := splitObjectURL(rawURL)
	base := path.Base(key)
	ext := path.Ext(base)
	return &S3{
		common: Common{
			UUID:   uuid.New(),
			Label:  strings.TrimSuffix(base, ext),
			Suffix: ext,
		},
		URL:   rawURL,
		creds: creds,
	}
}

// S3FromOther creates an object-store controller at rawURL carrying the
// other controller's common attributes.
func S3FromOther(other Controller, rawURL string, creds *auth.Manager) *S3 {
	return &S3{common: other.Common(), URL: rawURL, creds: creds}
}

// splitObjectURL parses scheme://host/bucket/key into its parts. The
// key may contain further slashes.
func splitObjectURL(rawURL string) (host, bucket, key string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", "", fmt.Errorf("parse object url %q: %w", rawURL, err)
	}
	parts := strings.SplitN(strings.TrimPrefix(u.Path, "/"), "/", 2)
	if u.Host == "" || len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", "", fmt.Errorf("object url %q is not of the form scheme://host/bucket/key", rawURL)
	}
	return u.Host, parts[0], parts[1], nil
}

// Common implements Controller.
func (s *S3) Common() Common { return s.common }

// connect builds the backend client once, resolving credentials for
// the object host.
func (s *S3) connect() (*minio.Client, string, string, error) {
	host, bucket, key, err := splitObjectURL(s.URL)
	if err != nil {
		return nil, "", "", NewError("s3", "connect", s.URL, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		return s.client, bucket, key, nil
	}
	cred, err := s.creds.GetCredential(host, auth.FallbackNone)
	if err != nil {
		return nil, "", "", NewError("s3", "connect", s.URL, err)
	}
	userPwd, ok := cred.(*auth.UserPwd)
	if !ok {
		return nil, "", "", NewError("s3", "connect", s.URL,
			fmt.Errorf("credential for %q is not an access-key pair", host))
	}
	client, err := minio.New(host, &minio.Options{
		Creds:  credentials.NewStaticV4(userPwd.Username, userPwd.Password, ""),
		Secure: strings.HasPrefix(s.URL, "https://"),
	})
	if err != nil {
		return nil, "", "", NewError("s3", "connect", s.URL, err)
	}
	s.client = client
	return client, bucket, key, nil
}

// Put implements Controller. Streams of unknown length are uploaded in
// multipart chunks.
func (s *S3) Put(ctx context.Context, r io.Reader) error {
	client, bucket, key, err := s.connect()
	if err != nil {
		return err
	}
	if _, err := client.PutObject(ctx, bucket, key, r, -1, minio.PutObjectOptions{}); err != nil {
		return NewError("s3", "put", s.URL, err)
	}
	return nil
}

// Get implements Controller. The object is stat-checked up front so a
// missing key fails here instead of on first read.
func (s *S3) Get(ctx context.Context) (io.ReadCloser, error) {
	client, bucket, key, err := s.connect()
	if err != nil {
		return nil, err
	}
	obj, err := client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, NewError("s3", "get", s.URL, err)
	}
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, NewError("s3", "get", s.URL, err)
	}
	return obj, nil
}
