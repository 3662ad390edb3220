package config

import (
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/samber/oops"
	"gopkg.in/yaml.v3"
)

const (
	defaultPath = "config.yaml"
	pathEnv     = "TGBRIDGE_CONFIG"
)

type Config struct {
	Log       Log       `yaml:"log"`
	Telegram  Telegram  `yaml:"telegram"`
	Agent     Agent     `yaml:"agent"`
	Interest  Interest  `yaml:"interest"`
	Dispatch  Dispatch  `yaml:"dispatch"`
	Generator Generator `yaml:"generator"`
	OpenAI    OpenAI    `yaml:"openai"`
	Memory    Memory    `yaml:"memory"`
	Status    Status    `yaml:"status"`
}

type Telegram struct {
	// Bot token, obtain it via BotFather
	Token string `yaml:"token" example:"1234567890:ABCdefGHIjklMNopQRstUVwxyZ-123456789" validate:"required"`
	// Ignore messages sent by other bots
	IgnoreBots bool `yaml:"ignore_bots" example:"true"`
	// Ignore private (one-to-one) chats
	IgnoreDirectMessages bool `yaml:"ignore_direct_messages" example:"false"`
	// Chats the bot may participate in, empty means any
	AllowedChats []string `yaml:"allowed_chats" example:"[\"-1001234567890\"]"`
	// Notice sent once to chats outside allowed_chats before leaving
	FarewellMessage string `yaml:"farewell_message" example:"I'm not allowed in this chat, bye!"`
	// Notice sent when processing a message fails
	ErrorMessage string `yaml:"error_message" example:"Sorry, something went wrong."`
	// Long polling timeout in seconds
	PollTimeout int `yaml:"poll_timeout" example:"60" validate:"gte=0"`
}

type Agent struct {
	// Display name of the agent used in prompts
	Name string `yaml:"name" example:"Morty" validate:"required"`
	// Short character description used in prompts
	Bio string `yaml:"bio" example:"A laid back assistant who likes short answers"`
	// Speaking style hints used in prompts
	Style []string `yaml:"style"`
}

type Interest struct {
	// Number of messages kept per chat
	HistorySize int `yaml:"history_size" example:"20" validate:"gte=1"`
	// Time after which an idle conversation stops being handled
	DecayTime time.Duration `yaml:"decay_time" example:"5m"`
	// Minimum lexical similarity to keep following a conversation
	SimilarityThreshold float64 `yaml:"similarity_threshold" example:"0.3" validate:"gte=0,lte=1"`
	// Time after which an idle chat is dropped from memory
	IdleTTL time.Duration `yaml:"idle_ttl" example:"24h"`
}

type Dispatch struct {
	// Inbound queue capacity
	QueueSize int `yaml:"queue_size" example:"64" validate:"gte=1"`
	// Messages processed concurrently
	MaxConcurrency int `yaml:"max_concurrency" example:"16" validate:"gte=1"`
	// Number of recent memories composed into prompts
	RecentMessages int `yaml:"recent_messages" example:"20" validate:"gte=1"`
}

type Generator struct {
	// Generation backend: openai or langchain
	Provider string `yaml:"provider" example:"openai" validate:"oneof=openai langchain"`
}

type OpenAI struct {
	Decision  ModelConfig `yaml:"decision" validate:"required"`
	Reply     ModelConfig `yaml:"reply" validate:"required"`
	Vision    ModelConfig `yaml:"vision"`
	Embedding ModelConfig `yaml:"embedding"`
}

type ModelConfig struct {
	// OpenAI base url
	BaseURL string `yaml:"base_url" example:"https://openrouter.ai/api/v1" validate:"required_with=Model"`
	// OpenAI token
	Token string `yaml:"token" example:"sk-proj-abc123456789DEF789ghi012JKL345mno678PQR901stu234VWX" validate:"required_with=Model"`
	// OpenAI model, empty disables optional models
	Model string `yaml:"model" example:"deepseek/deepseek-chat-v3-0324:free"`
	// Sampling temperature
	Temperature float32 `yaml:"temperature" example:"0.7" validate:"gte=0,lte=2"`
	// Completion token limit
	MaxTokens int `yaml:"max_tokens" example:"1000" validate:"gte=0"`
}

func (m ModelConfig) Enabled() bool {
	return m.Model != ""
}

type Memory struct {
	// Memory store backend: file or mcp
	Backend string `yaml:"backend" example:"file" validate:"oneof=file mcp"`
	// JSONL file used by the file backend
	Path string `yaml:"path" example:"data/memory.jsonl"`
	// MCP memory server used by the mcp backend
	MCP MCP `yaml:"mcp"`
}

type MCP struct {
	// Command starting the server over stdio
	Command string `yaml:"command" example:"docker"`
	// Command arguments
	Args []string `yaml:"args" example:"[\"run\", \"--rm\", \"-i\", \"mcp/memory\"]"`
}

type Status struct {
	// Listen address of the status server, empty disables it
	Listen string `yaml:"listen" example:":8080"`
}

type Log struct {
	// Minimum level: debug, info, warn, error
	Level string `yaml:"level" example:"debug" validate:"omitempty,oneof=debug info warn error"`
	// Telegram logging config
	Telegram TelegramLog `yaml:"telegram"`
}

type TelegramLog struct {
	// Chat bot token, obtain it via BotFather
	Token string `yaml:"token" example:"1234567890:ABCdefGHIjklMNopQRstUVwxyZ-123456789"`
	// Chat ID to send messages to
	ChatID string `yaml:"chat_id" example:"1001234567890"`
}

// Load reads the config file named by TGBRIDGE_CONFIG, or config.yaml.
func Load() (*Config, error) {
	path := os.Getenv(pathEnv)
	if path == "" {
		path = defaultPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, oops.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	var result Config

	if err := yaml.Unmarshal(data, &result); err != nil {
		return nil, oops.Errorf("failed to parse YAML config: %w", err)
	}

	result.applyDefaults()

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(result); err != nil {
		return nil, oops.Errorf("failed to validate config: %w", err)
	}

	if !result.OpenAI.Decision.Enabled() || !result.OpenAI.Reply.Enabled() {
		return nil, oops.Errorf("openai.decision.model and openai.reply.model are required")
	}

	return &result, nil
}

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "debug"
	}
	if c.Telegram.PollTimeout == 0 {
		c.Telegram.PollTimeout = 60
	}
	if c.Telegram.ErrorMessage == "" {
		c.Telegram.ErrorMessage = "Sorry, I could not process that message."
	}
	if c.Telegram.FarewellMessage == "" {
		c.Telegram.FarewellMessage = "I'm not allowed to take part in this chat. Bye!"
	}
	if c.Interest.HistorySize == 0 {
		c.Interest.HistorySize = 20
	}
	if c.Interest.DecayTime == 0 {
		c.Interest.DecayTime = 5 * time.Minute
	}
	if c.Interest.SimilarityThreshold == 0 {
		c.Interest.SimilarityThreshold = 0.3
	}
	if c.Interest.IdleTTL == 0 {
		c.Interest.IdleTTL = 24 * time.Hour
	}
	if c.Dispatch.QueueSize == 0 {
		c.Dispatch.QueueSize = 64
	}
	if c.Dispatch.MaxConcurrency == 0 {
		c.Dispatch.MaxConcurrency = 16
	}
	if c.Dispatch.RecentMessages == 0 {
		c.Dispatch.RecentMessages = 20
	}
	if c.Generator.Provider == "" {
		c.Generator.Provider = "openai"
	}
	if c.Memory.Backend == "" {
		c.Memory.Backend = "file"
	}
	if c.Memory.Path == "" {
		c.Memory.Path = "data/memory.jsonl"
	}
	if c.Memory.MCP.Command == "" {
		c.Memory.MCP.Command = "docker"
		c.Memory.MCP.Args = []string{"run", "--rm", "-i", "mcp/memory"}
	}
}
