package config

// Default returns the canonical runtime configuration used when no file is present.
func Default() Config {
	return Config{
		Service: ServiceConfig{
			BaseURL:        "http://127.0.0.1:5000",
			TranscribePath: "/api/transcribe",
			ReportPath:     "/api/generate-report",
			LogErrorPath:   "/api/log-error",
			HealthPath:     "/api/health",
			TimeoutMS:      120000,
		},
		Audio: AudioConfig{
			Input:            "default",
			Fallback:         "default",
			SampleRate:       44100,
			EchoCancellation: true,
			NoiseSuppression: true,
			Formats:          []string{"audio/wav", "audio/webm;codecs=opus", "audio/webm"},
		},
		Export: ExportConfig{
			Clipboard: CommandConfig{
				Raw:  "wl-copy --trim-newline",
				Argv: []string{"wl-copy", "--trim-newline"},
			},
		},
		Indicator: IndicatorConfig{
			Enable:         true,
			DesktopAppName: "scribe",
			SoundEnable:    true,
			ErrorTimeoutMS: 1600,
		},
	}
}
