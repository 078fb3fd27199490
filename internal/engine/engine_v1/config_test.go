package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"gopkg.in/yaml.v3"
)

type ConfigTestSuite struct {
	suite.Suite
}

func TestConfigTestSuite(t *testing.T) {
	suite.Run(t, new(ConfigTestSuite))
}

func (s *ConfigTestSuite) TestUnmarshalFull() {
	content := `
warmup_bars: 20
log_level: debug
start_time: 2024-01-02T09:15:00Z
end_time: 2024-01-02T15:30:00Z
session_end: 2024-01-02T15:20:00Z
`

	var config BacktestEngineV1Config
	s.Require().NoError(yaml.Unmarshal([]byte(content), &config))
	s.Require().NoError(config.Validate())

	s.Assert().Equal(20, config.WarmupBars)
	s.Assert().Equal("debug", config.LogLevel)
	s.Require().True(config.StartTime.IsSome())
	s.Assert().Equal(time.Date(2024, 1, 2, 9, 15, 0, 0, time.UTC), config.StartTime.Unwrap())
	s.Require().True(config.SessionEnd.IsSome())
	s.Assert().Equal(time.Date(2024, 1, 2, 15, 20, 0, 0, time.UTC), config.SessionEnd.Unwrap())
}

func (s *ConfigTestSuite) TestUnmarshalOmitsOptionalTimes() {
	var config BacktestEngineV1Config
	s.Require().NoError(yaml.Unmarshal([]byte("warmup_bars: 5\n"), &config))

	s.Assert().True(config.StartTime.IsNone())
	s.Assert().True(config.EndTime.IsNone())
	s.Assert().True(config.SessionEnd.IsNone())
}

func (s *ConfigTestSuite) TestValidateRejectsBadLogLevel() {
	config := EmptyConfig()
	config.LogLevel = "verbose"

	s.Assert().Error(config.Validate())
}

func (s *ConfigTestSuite) TestGenerateSchema() {
	config := EmptyConfig()

	schemaJSON, err := config.GenerateSchemaJSON()
	s.Require().NoError(err)
	s.Assert().Contains(schemaJSON, "backtest-engine-v1-config")
	s.Assert().Contains(schemaJSON, "warmup_bars")
	s.Assert().Contains(schemaJSON, "session_end")
	s.Assert().Contains(schemaJSON, "date-time")
}
