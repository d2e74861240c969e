package config

const legacyFormatWarning = "legacy INI config format is deprecated; migrate to JSONC"

// Parse reads configuration content as JSONC (preferred) or the legacy INI format.
// Empty content yields the validated base config.
func Parse(content string, base Config) (Config, []Warning, error) {
	switch detectSource(content) {
	case SourceJSONC:
		return parseJSONC(content, base)
	case SourceLegacy:
		cfg, warnings, err := parseLegacy(content, base)
		if err != nil {
			return Config{}, nil, err
		}
		return cfg, append([]Warning{{Message: legacyFormatWarning}}, warnings...), nil
	default:
		warnings, err := Validate(base)
		if err != nil {
			return Config{}, nil, err
		}
		return base, warnings, nil
	}
}
