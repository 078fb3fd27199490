package engine

import (
	"encoding/json"
	"reflect"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
	"github.com/moznion/go-optional"

	"github.com/tradelayout/tickgraph/pkg/errors"
)

// BacktestEngineV1Config configures one replay run.
type BacktestEngineV1Config struct {
	// WarmupBars is the completed-bar lookback loaded into the market cache
	// before the first tick.
	WarmupBars int `yaml:"warmup_bars" json:"warmup_bars" jsonschema:"title=Warmup Bars,description=Completed bars loaded per series before the first tick,minimum=0" validate:"gte=0"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level" jsonschema:"title=Log Level,description=Logging verbosity,enum=debug,enum=info,enum=warn,enum=error" validate:"omitempty,oneof=debug info warn error"`
	// StartTime and EndTime bound the replayed tick range.
	StartTime optional.Option[time.Time] `yaml:"start_time" json:"start_time" jsonschema:"title=Start Time,description=Optional start of the replayed tick range"`
	EndTime   optional.Option[time.Time] `yaml:"end_time" json:"end_time" jsonschema:"title=End Time,description=Optional end of the replayed tick range"`
	// SessionEnd is the square-off moment: the first tick at or after it
	// force-closes every open position and ends the run.
	SessionEnd optional.Option[time.Time] `yaml:"session_end" json:"session_end" jsonschema:"title=Session End,description=Square-off time; open positions are force-closed at the first tick at or after it"`
}

// UnmarshalYAML maps nullable YAML fields onto the optional time fields.
func (c *BacktestEngineV1Config) UnmarshalYAML(unmarshal func(interface{}) error) error {
	type Config struct {
		WarmupBars int        `yaml:"warmup_bars"`
		LogLevel   string     `yaml:"log_level"`
		StartTime  *time.Time `yaml:"start_time"`
		EndTime    *time.Time `yaml:"end_time"`
		SessionEnd *time.Time `yaml:"session_end"`
	}

	var config Config
	if err := unmarshal(&config); err != nil {
		return err
	}

	c.WarmupBars = config.WarmupBars
	c.LogLevel = config.LogLevel

	if config.StartTime != nil {
		c.StartTime = optional.Some(*config.StartTime)
	}

	if config.EndTime != nil {
		c.EndTime = optional.Some(*config.EndTime)
	}

	if config.SessionEnd != nil {
		c.SessionEnd = optional.Some(*config.SessionEnd)
	}

	return nil
}

// Validate checks field constraints and the time-range ordering.
func (c *BacktestEngineV1Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeEngineConfigError, "invalid engine config", err)
	}

	if c.StartTime.IsSome() && c.EndTime.IsSome() && c.EndTime.Unwrap().Before(c.StartTime.Unwrap()) {
		return errors.New(errors.ErrCodeEngineConfigError, "end_time is before start_time")
	}

	return nil
}

// GenerateSchema generates a JSON schema for the engine config.
func (c *BacktestEngineV1Config) GenerateSchema() (*jsonschema.Schema, error) {
	reflector := jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		AllowAdditionalProperties:  false,
		Mapper: func(t reflect.Type) *jsonschema.Schema {
			if t.String() == "optional.Option[time.Time]" {
				return &jsonschema.Schema{
					Type:   "string",
					Format: "date-time",
				}
			}

			return nil
		},
	}

	schema := reflector.Reflect(c)
	schema.Title = "backtest-engine-v1-config"
	schema.Description = "Configuration schema for BacktestEngineV1"
	schema.Version = "http://json-schema.org/draft-07/schema#"

	return schema, nil
}

// GenerateSchemaJSON generates the JSON schema as an indented string.
func (c *BacktestEngineV1Config) GenerateSchemaJSON() (string, error) {
	schema, err := c.GenerateSchema()
	if err != nil {
		return "", err
	}

	schemaBytes, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return "", err
	}

	return string(schemaBytes), nil
}

// EmptyConfig returns a config with default values.
func EmptyConfig() BacktestEngineV1Config {
	return BacktestEngineV1Config{
		WarmupBars: 0,
		LogLevel:   "info",
		StartTime:  optional.None[time.Time](),
		EndTime:    optional.None[time.Time](),
		SessionEnd: optional.None[time.Time](),
	}
}
