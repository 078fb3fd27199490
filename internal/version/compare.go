package version

import (
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/tradelayout/tickgraph/pkg/errors"
)

// CheckSchemaCompatibility checks whether a strategy file's declared schema
// version is usable by this engine. Returns nil if compatible.
//
// Compatibility rules:
//   - If either version is "main" (development build), the check is skipped
//   - Major versions must match exactly
//   - Minor versions must match exactly
//   - Patch versions can differ (e.g. 1.2.0 is compatible with 1.2.5)
func CheckSchemaCompatibility(engineSchema, strategySchema string) error {
	engineSchema = strings.TrimPrefix(engineSchema, "v")
	strategySchema = strings.TrimPrefix(strategySchema, "v")

	// Skip version check for "main" (development builds)
	if engineSchema == "main" || strategySchema == "main" {
		return nil
	}

	engineVer, err := semver.NewVersion(engineSchema)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeSchemaVersionMismatch, err, "invalid engine schema version %q", engineSchema)
	}

	strategyVer, err := semver.NewVersion(strategySchema)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeSchemaVersionMismatch, err, "invalid strategy schema version %q", strategySchema)
	}

	if engineVer.Major() != strategyVer.Major() {
		return errors.Newf(errors.ErrCodeSchemaVersionMismatch,
			"major schema mismatch: engine supports %d.x.x but strategy declares %d.x.x",
			engineVer.Major(), strategyVer.Major())
	}

	if engineVer.Minor() != strategyVer.Minor() {
		return errors.Newf(errors.ErrCodeSchemaVersionMismatch,
			"minor schema mismatch: engine supports %d.%d.x but strategy declares %d.%d.x",
			engineVer.Major(), engineVer.Minor(),
			strategyVer.Major(), strategyVer.Minor())
	}

	// Patch versions can differ.
	return nil
}
