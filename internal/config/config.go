// Package config handles loading and validating the linguabridge configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration for the linguabridge daemon.
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Transports    TransportsConfig    `mapstructure:"transports"`
	Languages     LanguagesConfig     `mapstructure:"languages"`
	Detector      DetectorConfig      `mapstructure:"detector"`
	Translator    TranslatorConfig    `mapstructure:"translator"`
	Transcription TranscriptionConfig `mapstructure:"transcription"`
	Audio         AudioConfig         `mapstructure:"audio"`
	TTS           TTSConfig           `mapstructure:"tts"`
	Commands      CommandsConfig      `mapstructure:"commands"`
	Messages      MessagesConfig      `mapstructure:"messages"`
	Logging       LoggingConfig       `mapstructure:"logging"`
}

// ServerConfig holds the health check server settings.
type ServerConfig struct {
	HealthPort int `mapstructure:"health_port"`
}

// TransportsConfig holds the configuration for each transport layer.
type TransportsConfig struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	GRPC     GRPCConfig     `mapstructure:"grpc"`
}

// TelegramConfig configures the Telegram Bot API transport.
type TelegramConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Token          string        `mapstructure:"token"`
	APIURL         string        `mapstructure:"api_url"`
	Mode           string        `mapstructure:"mode"` // "polling" or "webhook"
	PollTimeout    time.Duration `mapstructure:"poll_timeout"`
	MaxConcurrency int           `mapstructure:"max_concurrency"`
	MaxFileBytes   int64         `mapstructure:"max_file_bytes"`
	Webhook        WebhookConfig `mapstructure:"webhook"`
}

// WebhookConfig configures Telegram webhook delivery.
type WebhookConfig struct {
	URL         string `mapstructure:"url"`  // public URL registered with Telegram
	Port        string `mapstructure:"port"` // listen port; string so "${PORT}" can be resolved
	Path        string `mapstructure:"path"`
	DropPending bool   `mapstructure:"drop_pending"`
	SecretToken string `mapstructure:"secret_token"`
}

// HTTPConfig configures the HTTP dispatch API.
type HTTPConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// GRPCConfig configures the gRPC transport.
type GRPCConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// LanguagesConfig is the routing table: detected language -> target language.
type LanguagesConfig struct {
	Routes   map[string]string `mapstructure:"routes"`
	Fallback string            `mapstructure:"fallback"` // target for languages outside Routes; empty rejects them
}

// DetectorConfig selects the language detection backend.
type DetectorConfig struct {
	Backend        string               `mapstructure:"backend"` // "lingua" or "libretranslate"
	Lingua         LinguaConfig         `mapstructure:"lingua"`
	LibreTranslate LibreTranslateConfig `mapstructure:"libretranslate"`
}

// LinguaConfig tunes the in-process detector.
type LinguaConfig struct {
	Languages           []string `mapstructure:"languages"` // ISO-639-1 codes the detector may answer with; empty means all
	MinRelativeDistance float64  `mapstructure:"min_relative_distance"`
}

// TranslatorConfig selects and configures the translation backend.
type TranslatorConfig struct {
	Backend        string               `mapstructure:"backend"` // "libretranslate", "openai" or "gemini"
	Source         string               `mapstructure:"source"`  // "auto" or "detected"
	Timeout        time.Duration        `mapstructure:"timeout"`
	LibreTranslate LibreTranslateConfig `mapstructure:"libretranslate"`
	OpenAI         OpenAIConfig         `mapstructure:"openai"`
	Gemini         GeminiConfig         `mapstructure:"gemini"`
	Breaker        BreakerConfig        `mapstructure:"breaker"`
}

// LibreTranslateConfig holds LibreTranslate server settings.
type LibreTranslateConfig struct {
	URL    string `mapstructure:"url"`
	APIKey string `mapstructure:"api_key"`
}

// OpenAIConfig holds OpenAI API settings shared by the transcription,
// translation and speech backends.
type OpenAIConfig struct {
	APIKey  string  `mapstructure:"api_key"`
	BaseURL string  `mapstructure:"base_url"`
	Model   string  `mapstructure:"model"`
	Voice   string  `mapstructure:"voice"` // speech only
	Speed   float64 `mapstructure:"speed"` // speech only
}

// GeminiConfig holds Google Gemini API settings.
type GeminiConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// BreakerConfig configures the circuit breaker around the translation backend.
type BreakerConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	MaxFailures uint32        `mapstructure:"max_failures"`
	OpenTimeout time.Duration `mapstructure:"open_timeout"`
}

// TranscriptionConfig selects and configures the speech-to-text backend.
type TranscriptionConfig struct {
	Backend     string        `mapstructure:"backend"`      // "openai" or "local"
	InputFormat string        `mapstructure:"input_format"` // format the recognizer receives: "mp3", "wav" or "ogg"
	Prompt      string        `mapstructure:"prompt"`       // context passed to the recognizer (names, jargon)
	Timeout     time.Duration `mapstructure:"timeout"`
	OpenAI      OpenAIConfig  `mapstructure:"openai"`
	Local       LocalConfig   `mapstructure:"local"`
}

// LocalConfig holds self-hosted Whisper settings.
type LocalConfig struct {
	WhisperEndpoint string `mapstructure:"whisper_endpoint"`
	WhisperType     string `mapstructure:"whisper_type"` // "openai" (default) or "asr" (ahmetoner/whisper-asr-webservice)
	Model           string `mapstructure:"model"`
	VADFilter       bool   `mapstructure:"vad_filter"`
}

// AudioConfig configures temporary audio handling.
type AudioConfig struct {
	Converter  string `mapstructure:"converter"` // "ffmpeg", "opus" or "none"
	FFmpegPath string `mapstructure:"ffmpeg_path"`
	ScratchDir string `mapstructure:"scratch_dir"`
}

// TTSConfig selects and configures the text-to-speech backend.
type TTSConfig struct {
	Backend     string        `mapstructure:"backend"`      // "piper" or "openai"
	VoiceFormat string        `mapstructure:"voice_format"` // format sent to users: "ogg" or "mp3"
	Timeout     time.Duration `mapstructure:"timeout"`
	Piper       PiperConfig   `mapstructure:"piper"`
	OpenAI      OpenAIConfig  `mapstructure:"openai"`
}

// PiperConfig holds Piper TTS settings (Wyoming protocol).
//
// For a single Piper instance that serves all languages, set Endpoint.
// For per-language instances (recommended for production), set Endpoints
// which maps ISO-639-1 codes to individual Wyoming TCP endpoints.
// If both are set, Endpoints takes precedence and Endpoint is the fallback.
type PiperConfig struct {
	Endpoint  string            `mapstructure:"endpoint"`  // Default Wyoming TCP endpoint (host:port)
	Endpoints map[string]string `mapstructure:"endpoints"` // ISO-639-1 language code -> Wyoming TCP endpoint
	Voices    map[string]string `mapstructure:"voices"`    // ISO-639-1 language code -> Piper voice model name
}

// CommandsConfig names the bot commands (without the leading slash).
type CommandsConfig struct {
	Start    string            `mapstructure:"start"`
	Auto     string            `mapstructure:"auto"`
	Force    map[string]string `mapstructure:"force"`    // command -> forced language
	Keyboard [][]string        `mapstructure:"keyboard"` // reply keyboard rows sent with the welcome text
}

// MessagesConfig holds the user-facing texts.
type MessagesConfig struct {
	Welcome             string            `mapstructure:"welcome"`
	Auto                string            `mapstructure:"auto"`
	Forced              map[string]string `mapstructure:"forced"` // language -> confirmation
	DetectionFailed     string            `mapstructure:"detection_failed"`
	Unsupported         string            `mapstructure:"unsupported"`
	TranscriptionFailed string            `mapstructure:"transcription_failed"`
	TranslationFailed   string            `mapstructure:"translation_failed"`
	SynthesisFailed     string            `mapstructure:"synthesis_failed"`
	Reply               string            `mapstructure:"reply"` // text/template with .Detected .Text .Target .Translation
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, text
}

// Load reads the configuration from file, environment variables, and defaults.
// If configFile is non-empty it is used directly; otherwise the standard
// search order applies: ./linguabridge.yaml, ./configs/linguabridge.yaml, /etc/linguabridge/linguabridge.yaml.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("linguabridge")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/linguabridge")
	}

	// Environment variables: LINGUABRIDGE_SERVER_HEALTH_PORT, LINGUABRIDGE_TRANSLATOR_BACKEND, etc.
	v.SetEnvPrefix("LINGUABRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (optional; env vars and defaults are sufficient)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		slog.Info("no config file found, using defaults and environment variables")
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	cfg.applyMapDefaults()
	cfg.resolveSecrets()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.health_port", 8081)

	v.SetDefault("transports.telegram.enabled", true)
	v.SetDefault("transports.telegram.token", "${BOT_TOKEN}")
	v.SetDefault("transports.telegram.api_url", "https://api.telegram.org")
	v.SetDefault("transports.telegram.mode", "polling")
	v.SetDefault("transports.telegram.poll_timeout", 30*time.Second)
	v.SetDefault("transports.telegram.max_concurrency", 8)
	v.SetDefault("transports.telegram.max_file_bytes", 20<<20)
	v.SetDefault("transports.telegram.webhook.url", "${RENDER_EXTERNAL_URL}")
	v.SetDefault("transports.telegram.webhook.port", "${PORT}")
	v.SetDefault("transports.telegram.webhook.path", "/")
	v.SetDefault("transports.telegram.webhook.drop_pending", true)
	v.SetDefault("transports.http.enabled", false)
	v.SetDefault("transports.http.port", 8080)
	v.SetDefault("transports.grpc.enabled", false)
	v.SetDefault("transports.grpc.port", 50051)

	v.SetDefault("languages.fallback", "")

	v.SetDefault("detector.backend", "lingua")
	v.SetDefault("detector.lingua.min_relative_distance", 0.0)
	v.SetDefault("detector.libretranslate.url", "http://localhost:5000")

	v.SetDefault("translator.backend", "libretranslate")
	v.SetDefault("translator.source", "auto")
	v.SetDefault("translator.timeout", 30*time.Second)
	v.SetDefault("translator.libretranslate.url", "http://localhost:5000")
	v.SetDefault("translator.openai.api_key", "${OPENAI_API_KEY}")
	v.SetDefault("translator.openai.model", "gpt-4o-mini")
	v.SetDefault("translator.gemini.api_key", "${GEMINI_API_KEY}")
	v.SetDefault("translator.gemini.model", "gemini-2.0-flash")
	v.SetDefault("translator.breaker.enabled", true)
	v.SetDefault("translator.breaker.max_failures", 5)
	v.SetDefault("translator.breaker.open_timeout", 30*time.Second)

	v.SetDefault("transcription.backend", "openai")
	v.SetDefault("transcription.input_format", "mp3")
	v.SetDefault("transcription.timeout", 60*time.Second)
	v.SetDefault("transcription.openai.api_key", "${OPENAI_API_KEY}")
	v.SetDefault("transcription.openai.model", "whisper-1")
	v.SetDefault("transcription.local.whisper_endpoint", "http://localhost:8000/v1/audio/transcriptions")
	v.SetDefault("transcription.local.whisper_type", "openai")
	v.SetDefault("transcription.local.vad_filter", false)

	v.SetDefault("audio.converter", "ffmpeg")
	v.SetDefault("audio.ffmpeg_path", "ffmpeg")
	v.SetDefault("audio.scratch_dir", "")

	v.SetDefault("tts.backend", "piper")
	v.SetDefault("tts.voice_format", "ogg")
	v.SetDefault("tts.timeout", 30*time.Second)
	v.SetDefault("tts.piper.endpoint", "localhost:10200")
	v.SetDefault("tts.openai.api_key", "${OPENAI_API_KEY}")
	v.SetDefault("tts.openai.model", "tts-1")
	v.SetDefault("tts.openai.voice", "alloy")
	v.SetDefault("tts.openai.speed", 1.0)

	v.SetDefault("commands.start", "start")
	v.SetDefault("commands.auto", "autolingua")

	v.SetDefault("messages.welcome", "👋 Benvenuto!\nInviami un messaggio o un vocale in italiano, ucraino o russo.\n"+
		"Ti risponderò con la traduzione e la voce nella lingua corretta.\n\n"+
		"➡️ /forzauk = forza vocale come ucraino\n"+
		"➡️ /forzarusso = forza vocale come russo\n"+
		"➡️ /autolingua = torna al rilevamento automatico")
	v.SetDefault("messages.auto", "✅ Da ora verrà usato il rilevamento automatico della lingua.")
	v.SetDefault("messages.detection_failed", "❌ Non riesco a rilevare la lingua.")
	v.SetDefault("messages.unsupported", "❌ Posso tradurre solo tra italiano, ucraino e russo.")
	v.SetDefault("messages.transcription_failed", "⚠️ Errore durante la trascrizione del vocale.")
	v.SetDefault("messages.translation_failed", "⚠️ Errore durante la traduzione.")
	v.SetDefault("messages.synthesis_failed", "⚠️ Non sono riuscito a generare l'audio della traduzione.")
	v.SetDefault("messages.reply", "📝 Testo rilevato ({{.Detected}}): {{.Text}}\n\n🔁 Traduzione ({{.Target}}): {{.Translation}}")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// applyMapDefaults fills map-valued settings that were left unset. Viper
// deep-merges map defaults with file values, which would make it impossible
// to drop a default route, so these are applied after unmarshalling.
func (c *Config) applyMapDefaults() {
	if len(c.Languages.Routes) == 0 {
		c.Languages.Routes = map[string]string{"uk": "it", "ru": "it", "it": "uk"}
	}
	if len(c.Commands.Force) == 0 {
		c.Commands.Force = map[string]string{"forzauk": "uk", "forzarusso": "ru"}
	}
	if len(c.Commands.Keyboard) == 0 {
		c.Commands.Keyboard = [][]string{{"/forzauk", "/forzarusso", "/autolingua"}}
	}
	if len(c.Messages.Forced) == 0 {
		c.Messages.Forced = map[string]string{
			"uk": "✅ Da ora i tuoi vocali saranno trascritti come *ucraini*.",
			"ru": "✅ Da ora i tuoi vocali saranno trascritti come *russi*.",
		}
	}
}

// resolveSecrets expands "${VAR}" references in sensitive and deployment fields.
func (c *Config) resolveSecrets() {
	tg := &c.Transports.Telegram
	tg.Token = resolveEnvRef(tg.Token)
	tg.Webhook.URL = resolveEnvRef(tg.Webhook.URL)
	tg.Webhook.Port = resolveEnvRef(tg.Webhook.Port)
	tg.Webhook.SecretToken = resolveEnvRef(tg.Webhook.SecretToken)

	c.Detector.LibreTranslate.APIKey = resolveEnvRef(c.Detector.LibreTranslate.APIKey)
	c.Translator.LibreTranslate.APIKey = resolveEnvRef(c.Translator.LibreTranslate.APIKey)
	c.Translator.OpenAI.APIKey = resolveEnvRef(c.Translator.OpenAI.APIKey)
	c.Translator.Gemini.APIKey = resolveEnvRef(c.Translator.Gemini.APIKey)
	c.Transcription.OpenAI.APIKey = resolveEnvRef(c.Transcription.OpenAI.APIKey)
	c.TTS.OpenAI.APIKey = resolveEnvRef(c.TTS.OpenAI.APIKey)
}

// resolveEnvRef replaces "${VAR_NAME}" patterns with the corresponding env var value.
// An unset variable resolves to the empty string.
func resolveEnvRef(val string) string {
	if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
		return os.Getenv(val[2 : len(val)-1])
	}
	return val
}

// Validate checks backend names and cross-field requirements.
func (c *Config) Validate() error {
	if !oneOf(c.Detector.Backend, "lingua", "libretranslate") {
		return fmt.Errorf("unknown detector backend %q", c.Detector.Backend)
	}
	if !oneOf(c.Translator.Backend, "libretranslate", "openai", "gemini") {
		return fmt.Errorf("unknown translator backend %q", c.Translator.Backend)
	}
	if !oneOf(c.Translator.Source, "auto", "detected") {
		return fmt.Errorf("translator.source must be \"auto\" or \"detected\", got %q", c.Translator.Source)
	}
	if !oneOf(c.Transcription.Backend, "openai", "local") {
		return fmt.Errorf("unknown transcription backend %q", c.Transcription.Backend)
	}
	if !oneOf(c.Audio.Converter, "ffmpeg", "opus", "none") {
		return fmt.Errorf("unknown audio converter %q", c.Audio.Converter)
	}
	if c.Audio.Converter == "opus" && !oneOf(c.Transcription.InputFormat, "wav", "ogg") {
		return fmt.Errorf("audio.converter opus only decodes ogg to wav; set transcription.input_format to \"wav\" or \"ogg\", got %q", c.Transcription.InputFormat)
	}
	if !oneOf(c.TTS.Backend, "piper", "openai") {
		return fmt.Errorf("unknown tts backend %q", c.TTS.Backend)
	}
	if len(c.Languages.Routes) == 0 {
		return fmt.Errorf("languages.routes must not be empty")
	}

	tg := c.Transports.Telegram
	if tg.Enabled {
		if tg.Token == "" {
			return fmt.Errorf("transports.telegram.token is required (set BOT_TOKEN)")
		}
		if !oneOf(tg.Mode, "polling", "webhook") {
			return fmt.Errorf("unknown telegram mode %q", tg.Mode)
		}
		if tg.Mode == "webhook" && tg.Webhook.URL == "" {
			return fmt.Errorf("transports.telegram.webhook.url is required in webhook mode (set RENDER_EXTERNAL_URL)")
		}
	}
	if !tg.Enabled && !c.Transports.HTTP.Enabled && !c.Transports.GRPC.Enabled {
		return fmt.Errorf("no transports enabled: enable at least one in config")
	}
	return nil
}

// ListenPort returns the webhook listen port, defaulting to 5000 when PORT is unset.
func (w WebhookConfig) ListenPort() string {
	if w.Port == "" {
		return "5000"
	}
	return w.Port
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

// SetupLogging configures the global slog logger based on config.
func SetupLogging(cfg LoggingConfig) {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
