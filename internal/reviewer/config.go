package reviewer

import (
	"time"

	"github.com/maxbolgarin/errm"
	"github.com/maxbolgarin/lang"
)

const (
	defaultMaxTokens    = 8000
	defaultChunkOverlap = 200
	defaultChunkFanOut  = 1
	defaultMaxRetries   = 3
	defaultRetryDelay   = 5 * time.Second
)

// Config represents review pipeline configuration
type Config struct {
	BotName      string        `yaml:"bot_name" env:"REVIEW_BOT_NAME"`
	MaxTokens    int           `yaml:"max_tokens" env:"REVIEW_MAX_TOKENS"`
	ChunkOverlap int           `yaml:"chunk_overlap" env:"REVIEW_CHUNK_OVERLAP"`
	ChunkFanOut  int           `yaml:"chunk_fan_out" env:"REVIEW_CHUNK_FAN_OUT"`
	MaxRetries   int           `yaml:"max_retries" env:"REVIEW_MAX_RETRIES"`
	RetryDelay   time.Duration `yaml:"retry_delay" env:"REVIEW_RETRY_DELAY"`
}

func (c *Config) PrepareAndValidate() error {
	c.MaxTokens = lang.Check(c.MaxTokens, defaultMaxTokens)
	c.ChunkOverlap = lang.Check(c.ChunkOverlap, defaultChunkOverlap)
	c.ChunkFanOut = lang.Check(c.ChunkFanOut, defaultChunkFanOut)
	c.MaxRetries = lang.Check(c.MaxRetries, defaultMaxRetries)
	c.RetryDelay = lang.Check(c.RetryDelay, defaultRetryDelay)

	if c.ChunkOverlap >= c.MaxTokens {
		return errm.New("chunk_overlap must be smaller than max_tokens")
	}

	return nil
}
