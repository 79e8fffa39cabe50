package landing

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
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 는 메모리 bucket. putErrs 가 남아 있으면 PutObject 가 하나씩 소비하며 실패한다.
type fakeS3 struct {
	mu       sync.Mutex
	objects  map[string][]byte
	encoding map[string]string
	puts     int
	putErrs  []error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}, encoding: map[string]string{}}
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts++
	if len(f.putErrs) > 0 {
		err := f.putErrs[0]
		f.putErrs = f.putErrs[1:]
		return nil, err
	}
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	key := aws.ToString(in.Key)
	f.objects[key] = b
	f.encoding[key] = aws.ToString(in.ContentEncoding)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(b))}, nil
}

func (f *fakeS3) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	out := &s3.ListObjectsV2Output{}
	for _, k := range keys {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	return out, nil
}

func fixedNow() time.Time {
	return time.Date(2025, 1, 7, 23, 59, 0, 0, time.FixedZone("KST", 9*3600))
}

func newStore(client S3API, gz bool) *Store {
	return New(client, Options{
		Bucket:     "raw",
		Prefix:     "landing",
		Competitor: "silversea",
		Gzip:       gz,
		Timeout:    time.Second,
		Now:        fixedNow,
		Logger:     zerolog.Nop(),
	})
}

func TestBuildKey(t *testing.T) {
	part := NewPartition(fixedNow())
	assert.Equal(t, Partition("2025/01/07"), part)

	assert.Equal(t,
		"landing/silversea/2025/01/07/SD2501/prices-v2/US/Essential.json",
		BuildKey("landing", "silversea", part, "SD2501/prices-v2/US/Essential", false))
	assert.Equal(t,
		"landing/silversea/2025/01/07/SD2501/prices-v2/US/Essential.json.gz",
		BuildKey("/landing/", "silversea", part, "SD2501/prices-v2/US/Essential", true))
	assert.Equal(t,
		"silversea/2025/01/07/algolia/0.json",
		BuildKey("", "silversea", part, "algolia/0", false))

	assert.Equal(t, "landing/silversea/2025/01/07/", DatePrefix("landing/", "silversea", part))
}

func TestPut_plain(t *testing.T) {
	fake := newFakeS3()
	s := newStore(fake, false)

	payload := []byte("{\"a\":1}\n{\"a\":2}\n")
	require.NoError(t, s.Put(context.Background(), "SD2501/prices-v2/US/Essential", payload))

	key := "landing/silversea/2025/01/07/SD2501/prices-v2/US/Essential.json"
	require.Contains(t, fake.objects, key)
	assert.Equal(t, payload, fake.objects[key])
	assert.Empty(t, fake.encoding[key])
}

func TestPut_gzipRoundTrip(t *testing.T) {
	fake := newFakeS3()
	s := newStore(fake, true)

	payload := []byte("{\"a\":1}\n")
	require.NoError(t, s.Put(context.Background(), "SD2501/available-suites/US/Essential", payload))

	key := s.Key("SD2501/available-suites/US/Essential")
	assert.True(t, strings.HasSuffix(key, ".json.gz"))
	assert.Equal(t, "gzip", fake.encoding[key])
	assert.NotEqual(t, payload, fake.objects[key])

	got, err := s.Get(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestPut_singleAttemptByDefault(t *testing.T) {
	fake := newFakeS3()
	fake.putErrs = []error{errors.New("AccessDenied")}
	s := newStore(fake, false)

	err := s.Put(context.Background(), "SD2501/prices-v2/US/Essential", []byte("{}\n"))
	require.Error(t, err)
	assert.ErrorContains(t, err, "AccessDenied")
	assert.Equal(t, 1, fake.puts)
	assert.Empty(t, fake.objects)
}

func TestPut_retriesWhenConfigured(t *testing.T) {
	fake := newFakeS3()
	fake.putErrs = []error{errors.New("SlowDown")}
	s := New(fake, Options{Bucket: "raw", Prefix: "landing", Competitor: "silversea", Attempts: 2, Now: fixedNow, Logger: zerolog.Nop()})

	require.NoError(t, s.Put(context.Background(), "x/prices-v2/US/y", []byte("{}\n")))
	assert.Equal(t, 2, fake.puts)
}

func TestPut_cancelledContext(t *testing.T) {
	fake := newFakeS3()
	s := newStore(fake, false)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, s.Put(ctx, "x/prices-v2/US/y", []byte("{}\n")), context.Canceled)
	assert.Zero(t, fake.puts)
}

func TestFetch_filtersByActionAndSkipsInvalidLines(t *testing.T) {
	fake := newFakeS3()
	plain := newStore(fake, false)
	zipped := newStore(fake, true)
	ctx := context.Background()

	require.NoError(t, plain.Put(ctx, "SD2501/prices-v2/US/Essential", []byte("{\"p\":1}\nnot json\n\n{\"p\":2}\n")))
	require.NoError(t, zipped.Put(ctx, "SD2501/prices-v2/US/DoorToDoor", []byte("{\"p\":3}\n")))
	require.NoError(t, plain.Put(ctx, "SD2501/available-suites/US/Essential", []byte("{\"s\":1}\n")))

	recs, err := plain.Fetch(ctx, plain.DatePrefix(), "prices-v2")
	require.NoError(t, err)

	var got []string
	for _, r := range recs {
		got = append(got, string(r))
	}
	sort.Strings(got)
	assert.Equal(t, []string{`{"p":1}`, `{"p":2}`, `{"p":3}`}, got)

	all, err := plain.Fetch(ctx, plain.DatePrefix(), "")
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestSplitRecords(t *testing.T) {
	recs := SplitRecords([]byte("{\"a\":1}\r\n[1,2]\n{broken\n  \n\"s\"\n"), zerolog.Nop())
	require.Len(t, recs, 3)
	assert.Equal(t, `{"a":1}`, string(recs[0]))
	assert.Equal(t, `[1,2]`, string(recs[1]))
	assert.Equal(t, `"s"`, string(recs[2]))
}

func TestGunzip_rejectsPlainData(t *testing.T) {
	_, err := Gunzip([]byte("{}"))
	require.Error(t, err)
}
