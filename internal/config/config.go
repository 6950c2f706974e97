// Package config 统一配置管理
//
// 加载顺序：默认值 → batchgen.yaml → BATCHGEN_* 环境变量。
// .env 文件里的变量会先被载入环境，因此同样可以覆盖 YAML。
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"batchgen/internal/emitter"
)

const (
	SourceFile = "file"
	SourceEtcd = "etcd"

	// FileName 默认配置文件名
	FileName = "batchgen.yaml"
)

// InputsConfig 输入文件位置
type InputsConfig struct {
	Dir            string `yaml:"dir"`
	BatchesPattern string `yaml:"batches_pattern"` // %s 替换为 CT
	StartTimes     string `yaml:"start_times"`
	Nodes          string `yaml:"nodes"`
}

// OutputConfig 脚本输出目录
type OutputConfig struct {
	Dir string `yaml:"dir"`
}

// ArtifactConfig 写入脚本的固定参数
type ArtifactConfig struct {
	TimeZone    string `yaml:"time_zone"`
	Executor    string `yaml:"executor"`
	RemoteShell string `yaml:"remote_shell"`
	Affirmative string `yaml:"affirmative"`
	Banner      string `yaml:"banner"`
}

// Options 转换为脚本渲染参数
func (a ArtifactConfig) Options() emitter.Options {
	return emitter.Options{
		TimeZone:    a.TimeZone,
		Executor:    a.Executor,
		RemoteShell: a.RemoteShell,
		Affirmative: a.Affirmative,
		Banner:      a.Banner,
	}
}

type EtcdConfig struct {
	Endpoints   []string      `yaml:"endpoints"`
	Prefix      string        `yaml:"prefix"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
}

// SandboxConfig 脚本语法检查用的容器
type SandboxConfig struct {
	Image   string        `yaml:"image"`
	Timeout time.Duration `yaml:"timeout"`
}

// HistoryConfig 本地生成台账，Path 为空表示不记录
type HistoryConfig struct {
	Path string `yaml:"path"`
}

// MetricsConfig node_exporter textfile 输出，Textfile 为空表示不输出
type MetricsConfig struct {
	Textfile string `yaml:"textfile"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console 或 json
}

// Config 运行配置
type Config struct {
	Source   string         `yaml:"source"`
	Inputs   InputsConfig   `yaml:"inputs"`
	Output   OutputConfig   `yaml:"output"`
	Artifact ArtifactConfig `yaml:"artifact"`
	Etcd     EtcdConfig     `yaml:"etcd"`
	Sandbox  SandboxConfig  `yaml:"sandbox"`
	History  HistoryConfig  `yaml:"history"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Log      LogConfig      `yaml:"log"`

	// Path 实际加载的配置文件，未找到时为空
	Path string `yaml:"-"`
}

var configPaths = []string{
	".",
	"/etc/batchgen",
}

var envPaths = []string{
	".env",
}

// Default 返回默认配置
func Default() *Config {
	return &Config{
		Source: SourceFile,
		Inputs: InputsConfig{
			Dir:            "/tmp",
			BatchesPattern: "numbers_%s",
			StartTimes:     "todays_crq_dates.txt",
			Nodes:          "enable.node",
		},
		Output: OutputConfig{Dir: "/tmp/RUN"},
		Artifact: ArtifactConfig{
			TimeZone:    "America/Los_Angeles",
			Executor:    "/home/user/aa.sh",
			RemoteShell: "ssh",
			Affirmative: "yes",
			Banner:      "ex uno plures",
		},
		Etcd: EtcdConfig{
			Endpoints:   []string{"localhost:2379"},
			Prefix:      "/batchgen",
			DialTimeout: 5 * time.Second,
		},
		Sandbox: SandboxConfig{
			Image:   "bash:5.2",
			Timeout: 2 * time.Minute,
		},
		Log: LogConfig{Level: "info", Format: "console"},
	}
}

// Load 加载配置
// path 非空时文件必须存在；为空时依次在 configPaths 中查找 batchgen.yaml
func Load(path string) (*Config, error) {
	for _, p := range envPaths {
		if err := godotenv.Load(p); err == nil {
			break
		}
	}

	cfg := Default()
	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}
	cfg.applyEnv()
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	candidates := []string{path}
	if path == "" {
		candidates = candidates[:0]
		for _, base := range configPaths {
			candidates = append(candidates, filepath.Join(base, FileName))
		}
	}

	for _, p := range candidates {
		data, err := os.ReadFile(p)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && path == "" {
				continue
			}
			return fmt.Errorf("config: read %s: %w", p, err)
		}
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("config: parse %s: %w", p, err)
		}
		c.Path = p
		return nil
	}
	return nil
}

func (c *Config) applyEnv() {
	setString(&c.Source, "BATCHGEN_SOURCE")
	setString(&c.Inputs.Dir, "BATCHGEN_INPUT_DIR")
	setString(&c.Output.Dir, "BATCHGEN_OUTPUT_DIR")
	setString(&c.Artifact.TimeZone, "BATCHGEN_TZ")
	setString(&c.Artifact.Executor, "BATCHGEN_EXECUTOR")
	setString(&c.Etcd.Prefix, "BATCHGEN_ETCD_PREFIX")
	setString(&c.Sandbox.Image, "BATCHGEN_SANDBOX_IMAGE")
	setString(&c.History.Path, "BATCHGEN_HISTORY_PATH")
	setString(&c.Metrics.Textfile, "BATCHGEN_METRICS_TEXTFILE")
	setString(&c.Log.Level, "BATCHGEN_LOG_LEVEL")
	setString(&c.Log.Format, "BATCHGEN_LOG_FORMAT")
	if v := os.Getenv("BATCHGEN_ETCD_ENDPOINTS"); v != "" {
		c.Etcd.Endpoints = strings.Split(v, ",")
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func (c *Config) normalize() {
	c.Source = strings.ToLower(strings.TrimSpace(c.Source))
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))

	endpoints := c.Etcd.Endpoints[:0]
	for _, ep := range c.Etcd.Endpoints {
		if ep = strings.TrimSpace(ep); ep != "" {
			endpoints = append(endpoints, ep)
		}
	}
	c.Etcd.Endpoints = endpoints

	d := Default()
	if c.Inputs.BatchesPattern == "" {
		c.Inputs.BatchesPattern = d.Inputs.BatchesPattern
	}
	if c.Artifact.TimeZone == "" {
		c.Artifact.TimeZone = d.Artifact.TimeZone
	}
	if c.Artifact.Affirmative == "" {
		c.Artifact.Affirmative = d.Artifact.Affirmative
	}
	if c.Etcd.DialTimeout == 0 {
		c.Etcd.DialTimeout = d.Etcd.DialTimeout
	}
	if c.Sandbox.Timeout == 0 {
		c.Sandbox.Timeout = d.Sandbox.Timeout
	}
	if c.Log.Format == "" {
		c.Log.Format = d.Log.Format
	}
}

// Validate 检查配置
func (c *Config) Validate() error {
	switch c.Source {
	case SourceFile:
		if c.Inputs.Dir == "" {
			return fmt.Errorf("inputs.dir is required for the file source")
		}
	case SourceEtcd:
		if len(c.Etcd.Endpoints) == 0 {
			return fmt.Errorf("etcd.endpoints is required for the etcd source")
		}
	default:
		return fmt.Errorf("source must be '%s' or '%s'", SourceFile, SourceEtcd)
	}
	if strings.Count(c.Inputs.BatchesPattern, "%s") != 1 || strings.Count(c.Inputs.BatchesPattern, "%") != 1 {
		return fmt.Errorf("inputs.batches_pattern must contain exactly one %%s")
	}
	if _, err := time.LoadLocation(c.Artifact.TimeZone); err != nil {
		return fmt.Errorf("artifact.time_zone: %w", err)
	}
	if err := c.Artifact.Options().Validate(); err != nil {
		return err
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("log.format must be 'console' or 'json'")
	}
	return nil
}
