package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"mygit/pkg/storage"
	"mygit/pkg/types"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"
)

// Adapter 实现了 storage.Store 接口，把对象放在 S3 兼容的桶里
type Adapter struct {
	client    *s3.Client
	endpoint  string
	bucket    string
	prefix    string
	overwrite bool
	log       *zap.Logger
}

// Config 用于初始化 Adapter
type Config struct {
	Endpoint        string
	Region          string
	Bucket          string
	Prefix          string // 桶内的 key 前缀，默认 "objects"
	AccessKeyID     string
	SecretAccessKey string
	Overwrite       bool
	Logger          *zap.Logger
}

// NewAdapter 初始化 S3 客户端
func NewAdapter(ctx context.Context, cfg Config) (*Adapter, error) {
	if cfg.Bucket == "" {
		return nil, types.Errorf(types.InvalidInput, "open s3 store", "bucket is required")
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.SecretAccessKey, "",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		// 指定了 Endpoint (比如 MinIO 的 localhost:9000) 时覆盖默认值
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		// MinIO 必须使用 Path Style: http://host:9000/bucket/key
		o.UsePathStyle = true
	})

	// 桶由外部准备，这里只确认它可以访问
	if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(cfg.Bucket)}); err != nil {
		return nil, types.PathError(types.NotFound, "open s3 store", cfg.Bucket, err)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "objects"
	}

	return &Adapter{
		client:    client,
		endpoint:  cfg.Endpoint,
		bucket:    cfg.Bucket,
		prefix:    strings.Trim(prefix, "/"),
		overwrite: cfg.Overwrite,
		log:       log,
	}, nil
}

// Location 返回对象所在的位置，例如 "http://localhost:9000/mygit/objects"
// 未指定 Endpoint 时为 "s3://<bucket>/<prefix>"
func (s *Adapter) Location() string {
	base := "s3://"
	if s.endpoint != "" {
		base = strings.TrimSuffix(s.endpoint, "/") + "/"
	}
	return base + path.Join(s.bucket, s.prefix)
}

// transformKey 将地址转换为 S3 Key (Sharding)
// Logic: "aabbcc..." -> "objects/aa/bbcc..."
func (s *Adapter) transformKey(id types.ObjectID) string {
	return path.Join(s.prefix, storage.Layout(id))
}

// Put 上传对象
func (s *Adapter) Put(ctx context.Context, id types.ObjectID, compressed []byte) error {
	// 对于 S3，Head 请求比 Put 请求便宜。已存在则直接跳过。
	if !s.overwrite {
		exists, err := s.Has(ctx, id)
		if err != nil {
			return err
		}
		if exists {
			s.log.Debug("object exists in bucket, skipping upload", zap.Stringer("id", id))
			return nil
		}
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.transformKey(id)),
		Body:        bytes.NewReader(compressed),
		ContentType: aws.String("application/zlib"),
	})
	if err != nil {
		return types.PathError(types.IOError, "s3 put", id.String(), err)
	}
	return nil
}

// Get 下载对象
func (s *Adapter) Get(ctx context.Context, id types.ObjectID) (io.ReadCloser, error) {
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.transformKey(id)),
	})
	if err != nil {
		// 将 AWS 的 NoSuchKey 映射为 NotFound
		var noKey *s3types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, types.PathError(types.NotFound, "read object", id.String(), err)
		}
		return nil, types.PathError(types.IOError, "s3 get", id.String(), err)
	}
	return resp.Body, nil
}

// Has 检查对象是否存在
func (s *Adapter) Has(ctx context.Context, id types.ObjectID) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.transformKey(id)),
	})
	if err == nil {
		return true, nil
	}

	var notFound *s3types.NotFound
	var noKey *s3types.NoSuchKey
	if errors.As(err, &notFound) || errors.As(err, &noKey) {
		return false, nil
	}
	// 兼容性：某些 S3 实现只返回 generic 404
	if strings.Contains(err.Error(), "404") {
		return false, nil
	}
	return false, types.PathError(types.IOError, "s3 head", id.String(), err)
}

// ExpandHash 利用 Prefix 查询扩展缩写地址
func (s *Adapter) ExpandHash(ctx context.Context, prefix types.HashPrefix) (types.ObjectID, error) {
	if err := storage.CheckPrefix(prefix); err != nil {
		return types.ZeroID, err
	}
	str := string(prefix)

	// 构造前缀: "a8fd" -> "objects/a8/fd"
	keyPrefix := s.prefix + "/" + str[:2] + "/" + str[2:]

	// MaxKeys=2：只需要知道是 0 个、1 个 (唯一) 还是多个 (歧义)
	resp, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(s.bucket),
		Prefix:  aws.String(keyPrefix),
		MaxKeys: aws.Int32(2),
	})
	if err != nil {
		return types.ZeroID, types.PathError(types.IOError, "s3 list", str, err)
	}

	if len(resp.Contents) == 0 {
		return types.ZeroID, types.PathError(types.NotFound, "expand hash", str, nil)
	}
	if len(resp.Contents) > 1 {
		return types.ZeroID, fmt.Errorf("%s: %w", str, storage.ErrAmbiguousHash)
	}

	// 还原地址: "objects/a8/fd123..." -> "a8fd123..."
	key := strings.TrimPrefix(aws.ToString(resp.Contents[0].Key), s.prefix+"/")
	return types.ParseObjectID(strings.Replace(key, "/", "", 1))
}
