package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// 配置项的 Key
const (
	KeyRepoPath         = "repo.path"
	KeyStorageType      = "storage.type"
	KeyStorageOverwrite = "storage.overwrite"
	KeyS3Endpoint       = "storage.s3.endpoint"
	KeyS3Region         = "storage.s3.region"
	KeyS3Bucket         = "storage.s3.bucket"
	KeyS3Prefix         = "storage.s3.prefix"
	KeyS3AccessKey      = "storage.s3.access_key"
	KeyS3SecretKey      = "storage.s3.secret_key"
	KeyRedisURL         = "cache.redis_url"
	KeyCacheTTL         = "cache.ttl"
	KeyLRUSize          = "cache.lru_size"
	KeyStatCache        = "cache.stat_cache"
	KeyMaxObjectSize    = "codec.max_object_size"
	KeyCatalogEnabled   = "catalog.enabled"
	KeyCatalogDriver    = "catalog.driver"
	KeyCatalogDSN       = "catalog.dsn"
	KeyIgnoreFile       = "ignore.file"
	KeyLogLevel         = "log.level"
	KeyJobs             = "jobs"
)

// EnvPrefix 环境变量前缀: MYGIT_STORAGE_TYPE 对应 storage.type
const EnvPrefix = "MYGIT"

// Load 初始化 Viper 配置
// cfgFile: 可选，用户显式指定的配置文件路径
// 返回实际使用的配置文件，没有找到时为空
func Load(cfgFile string) (string, error) {
	// 1. 设置默认值
	SetDefaults()

	// 2. 配置搜索路径
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// 搜索顺序: 当前目录 -> 仓库目录 -> 用户主目录
		viper.AddConfigPath(".")
		viper.AddConfigPath(viper.GetString(KeyRepoPath))
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(filepath.Join(home, ".mygit"))
		}
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// 3. 读取环境变量
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// 4. 读取配置文件
	if err := viper.ReadInConfig(); err != nil {
		// 没找到配置文件不算错，格式错才算
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return "", nil
		}
		return "", fmt.Errorf("fatal error config file: %w", err)
	}
	return viper.ConfigFileUsed(), nil
}

func SetDefaults() {
	viper.SetDefault(KeyRepoPath, ".git")

	viper.SetDefault(KeyStorageType, "disk")
	viper.SetDefault(KeyStorageOverwrite, false)
	viper.SetDefault(KeyS3Region, "us-east-1")
	viper.SetDefault(KeyS3Prefix, "objects")

	viper.SetDefault(KeyRedisURL, "")
	viper.SetDefault(KeyCacheTTL, 24*time.Hour)
	viper.SetDefault(KeyLRUSize, 1024)
	viper.SetDefault(KeyStatCache, true)

	viper.SetDefault(KeyMaxObjectSize, 1<<30)

	viper.SetDefault(KeyCatalogEnabled, false)
	viper.SetDefault(KeyCatalogDriver, "sqlite")
	viper.SetDefault(KeyCatalogDSN, "")

	viper.SetDefault(KeyIgnoreFile, ".mygitignore")
	viper.SetDefault(KeyLogLevel, "warn")
	viper.SetDefault(KeyJobs, 4)
}
