package logging

import (
	"os"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// StartupLogger collects process identity, backing resources, providers and
// feature flags, then emits a single structured zerolog event summarising how
// the process was configured. The same summary is logged by the web server,
// the Lambda cold start and the CLI (at debug level).
type StartupLogger struct {
	name         string
	commitHash   string
	initDuration time.Duration

	buckets   map[string]string
	tables    map[string]string
	ssmParams map[string]string
	providers map[string]string
	features  map[string]bool
	config    map[string]string
}

// NewStartupLogger creates a StartupLogger for the given process name
// (e.g. "caption-web", "caption-lambda").
func NewStartupLogger(name string) *StartupLogger {
	return &StartupLogger{
		name:      name,
		buckets:   make(map[string]string),
		tables:    make(map[string]string),
		ssmParams: make(map[string]string),
		providers: make(map[string]string),
		features:  make(map[string]bool),
		config:    make(map[string]string),
	}
}

// CommitHash sets the git commit hash baked into the binary at build time.
func (s *StartupLogger) CommitHash(hash string) *StartupLogger {
	s.commitHash = hash
	return s
}

// Bucket registers an S3 bucket used by this process.
func (s *StartupLogger) Bucket(label, name string) *StartupLogger {
	if name != "" {
		s.buckets[label] = name
	}
	return s
}

// Table registers a DynamoDB table used by this process.
func (s *StartupLogger) Table(label, name string) *StartupLogger {
	if name != "" {
		s.tables[label] = name
	}
	return s
}

// SSMParam registers an SSM parameter path. Only the path is logged, never the value.
func (s *StartupLogger) SSMParam(label, path string) *StartupLogger {
	s.ssmParams[label] = path
	return s
}

// Provider registers the caption provider and model in use.
func (s *StartupLogger) Provider(name, model string) *StartupLogger {
	s.providers[name] = model
	return s
}

// Feature registers a boolean feature flag (e.g. "identity", "s3Export").
func (s *StartupLogger) Feature(name string, enabled bool) *StartupLogger {
	s.features[name] = enabled
	return s
}

// Config registers a non-sensitive configuration key-value pair.
func (s *StartupLogger) Config(key, value string) *StartupLogger {
	s.config[key] = value
	return s
}

// InitDuration records how long initialization took.
func (s *StartupLogger) InitDuration(d time.Duration) *StartupLogger {
	s.initDuration = d
	return s
}

// EnvOrDefault returns the value of the named environment variable, or
// defaultVal if the variable is empty or unset.
func EnvOrDefault(envVar, defaultVal string) string {
	if v := os.Getenv(envVar); v != "" {
		return v
	}
	return defaultVal
}

// Log emits a single structured INFO event with everything collected.
func (s *StartupLogger) Log() {
	s.event(log.Info()).Msg("Startup complete")
}

func (s *StartupLogger) event(evt *zerolog.Event) *zerolog.Event {
	proc := zerolog.Dict().
		Str("name", s.name).
		Str("goVersion", runtime.Version()).
		Str("arch", runtime.GOARCH).
		Str("logLevel", os.Getenv("CAPTION_LOG_LEVEL"))
	if fn := os.Getenv("AWS_LAMBDA_FUNCTION_NAME"); fn != "" {
		proc = proc.Str("functionName", fn).
			Str("region", os.Getenv("AWS_REGION")).
			Str("memoryMB", os.Getenv("AWS_LAMBDA_FUNCTION_MEMORY_SIZE"))
	}
	if s.commitHash != "" {
		proc = proc.Str("commitHash", s.commitHash)
	}
	evt = evt.Dict("process", proc)

	resources := zerolog.Dict()
	hasResources := false
	if len(s.buckets) > 0 {
		resources = resources.Dict("s3Buckets", dictFromMap(s.buckets))
		hasResources = true
	}
	if len(s.tables) > 0 {
		resources = resources.Dict("dynamoTables", dictFromMap(s.tables))
		hasResources = true
	}
	if len(s.ssmParams) > 0 {
		resources = resources.Dict("ssmParams", dictFromMap(s.ssmParams))
		hasResources = true
	}
	if hasResources {
		evt = evt.Dict("resources", resources)
	}

	if len(s.providers) > 0 {
		evt = evt.Dict("providers", dictFromMap(s.providers))
	}
	if len(s.features) > 0 {
		d := zerolog.Dict()
		for k, v := range s.features {
			d = d.Bool(k, v)
		}
		evt = evt.Dict("features", d)
	}
	if len(s.config) > 0 {
		evt = evt.Dict("config", dictFromMap(s.config))
	}
	if s.initDuration > 0 {
		evt = evt.Dur("initDuration", s.initDuration)
	}
	return evt
}

func dictFromMap(m map[string]string) *zerolog.Event {
	d := zerolog.Dict()
	for k, v := range m {
		d = d.Str(k, v)
	}
	return d
}
