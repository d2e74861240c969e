package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

type jsoncConfig struct {
	Service   *jsoncService   `json:"service"`
	Audio     *jsoncAudio     `json:"audio"`
	Export    *jsoncExport    `json:"export"`
	Indicator *jsoncIndicator `json:"indicator"`
}

type jsoncService struct {
	BaseURL        *string `json:"base_url"`
	TranscribePath *string `json:"transcribe_path"`
	ReportPath     *string `json:"report_path"`
	LogErrorPath   *string `json:"log_error_path"`
	HealthPath     *string `json:"health_path"`
	TimeoutMS      *int    `json:"timeout_ms"`
}

type jsoncAudio struct {
	Input            *string          `json:"input"`
	Fallback         *string          `json:"fallback"`
	SampleRate       *int             `json:"sample_rate"`
	EchoCancellation *bool            `json:"echo_cancellation"`
	NoiseSuppression *bool            `json:"noise_suppression"`
	Formats          *jsoncStringList `json:"formats"`
}

type jsoncExport struct {
	Dir          *string `json:"dir"`
	ClipboardCmd *string `json:"clipboard_cmd"`
}

type jsoncIndicator struct {
	Enable         *bool   `json:"enable"`
	DesktopAppName *string `json:"desktop_app_name"`
	SoundEnable    *bool   `json:"sound_enable"`
	ErrorTimeoutMS *int    `json:"error_timeout_ms"`
}

type jsoncStringList []string

func (l *jsoncStringList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*l = trimList(list)
		return nil
	}

	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*l = trimList(strings.Split(single, ","))
		return nil
	}

	return errors.New("expected string array or comma-delimited string")
}

func trimList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}

func parseJSONC(content string, base Config) (Config, []Warning, error) {
	normalized, err := normalizeJSONC(content)
	if err != nil {
		return Config{}, nil, err
	}

	decoder := json.NewDecoder(strings.NewReader(normalized))
	decoder.DisallowUnknownFields()

	var payload jsoncConfig
	if err := decoder.Decode(&payload); err != nil {
		return Config{}, nil, wrapJSONDecodeError(normalized, err)
	}
	if err := ensureSingleJSONValue(decoder); err != nil {
		return Config{}, nil, wrapJSONDecodeError(normalized, err)
	}

	cfg := base
	warnings, err := payload.applyTo(&cfg)
	if err != nil {
		return Config{}, nil, err
	}

	validatedWarnings, err := Validate(cfg)
	if err != nil {
		return Config{}, nil, err
	}
	warnings = append(warnings, validatedWarnings...)
	return cfg, warnings, nil
}

func (payload jsoncConfig) applyTo(cfg *Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	if svc := payload.Service; svc != nil {
		setString(&cfg.Service.BaseURL, svc.BaseURL)
		setString(&cfg.Service.TranscribePath, svc.TranscribePath)
		setString(&cfg.Service.ReportPath, svc.ReportPath)
		setString(&cfg.Service.LogErrorPath, svc.LogErrorPath)
		setString(&cfg.Service.HealthPath, svc.HealthPath)
		if svc.TimeoutMS != nil {
			cfg.Service.TimeoutMS = *svc.TimeoutMS
		}
	}

	if a := payload.Audio; a != nil {
		setString(&cfg.Audio.Input, a.Input)
		setString(&cfg.Audio.Fallback, a.Fallback)
		if a.SampleRate != nil {
			cfg.Audio.SampleRate = *a.SampleRate
		}
		if a.EchoCancellation != nil {
			cfg.Audio.EchoCancellation = *a.EchoCancellation
		}
		if a.NoiseSuppression != nil {
			cfg.Audio.NoiseSuppression = *a.NoiseSuppression
		}
		if a.Formats != nil {
			cfg.Audio.Formats = append([]string(nil), (*a.Formats)...)
		}
	}

	if e := payload.Export; e != nil {
		setString(&cfg.Export.Dir, e.Dir)
		if e.ClipboardCmd != nil {
			clipboard, err := ParseCommand("export.clipboard_cmd", *e.ClipboardCmd)
			if err != nil {
				return nil, err
			}
			cfg.Export.Clipboard = clipboard
		}
	}

	if ind := payload.Indicator; ind != nil {
		if ind.Enable != nil {
			cfg.Indicator.Enable = *ind.Enable
		}
		setString(&cfg.Indicator.DesktopAppName, ind.DesktopAppName)
		if ind.SoundEnable != nil {
			cfg.Indicator.SoundEnable = *ind.SoundEnable
		}
		if ind.ErrorTimeoutMS != nil {
			cfg.Indicator.ErrorTimeoutMS = *ind.ErrorTimeoutMS
		}
	}

	return warnings, nil
}

func setString(dst *string, value *string) {
	if value != nil {
		*dst = strings.TrimSpace(*value)
	}
}

// normalizeJSONC blanks out comments and trailing commas in place. Every
// removed byte becomes a space (newlines are kept), so decoder offsets still
// point at the right line and column of the original file. A comma that
// follows ':', ',', '[' or '{' is left for the decoder to reject.
func normalizeJSONC(content string) (string, error) {
	out := []byte(content)

	var (
		inString     bool
		escaped      bool
		lineComment  bool
		blockComment bool
		lastToken    byte
		pendingComma = -1
	)

	for i := 0; i < len(out); i++ {
		ch := out[i]

		switch {
		case lineComment:
			if ch == '\n' || ch == '\r' {
				lineComment = false
				continue
			}
			out[i] = ' '
			continue
		case blockComment:
			if ch == '*' && i+1 < len(out) && out[i+1] == '/' {
				out[i], out[i+1] = ' ', ' '
				blockComment = false
				i++
				continue
			}
			if !isJSONWhitespace(ch) {
				out[i] = ' '
			}
			continue
		case inString:
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}

		if ch == '/' && i+1 < len(out) && (out[i+1] == '/' || out[i+1] == '*') {
			lineComment = out[i+1] == '/'
			blockComment = !lineComment
			out[i], out[i+1] = ' ', ' '
			i++
			continue
		}
		if isJSONWhitespace(ch) {
			continue
		}

		if (ch == '}' || ch == ']') && pendingComma >= 0 {
			out[pendingComma] = ' '
		}
		pendingComma = -1
		if ch == ',' && !strings.ContainsRune(":,[{", rune(lastToken)) && lastToken != 0 {
			pendingComma = i
		}
		if ch == '"' {
			inString = true
		}
		lastToken = ch
	}

	if blockComment {
		return "", errors.New("unterminated block comment in JSONC")
	}
	return string(out), nil
}

func isJSONWhitespace(ch byte) bool {
	return ch == ' ' || ch == '\n' || ch == '\r' || ch == '\t'
}

// ensureSingleJSONValue fails when anything but whitespace follows the
// config object. The trailing value is decoded as raw JSON so the decoder's
// unknown-field check does not mask the real problem.
func ensureSingleJSONValue(decoder *json.Decoder) error {
	var extra json.RawMessage
	switch err := decoder.Decode(&extra); {
	case errors.Is(err, io.EOF):
		return nil
	case err != nil:
		return err
	default:
		return errors.New("multiple JSON values are not allowed")
	}
}

// position is a 1-based line and column in the config file.
type position struct {
	line int
	col  int
}

func (p position) String() string {
	return fmt.Sprintf("line %d column %d", p.line, p.col)
}

// positionAt maps a decoder offset (bytes consumed, including the offending
// one) to the position of the offending byte.
func positionAt(content string, offset int64) position {
	if offset <= 0 {
		return position{line: 1, col: 1}
	}
	end := min(int(offset), len(content))
	prefix := content[:end-1]
	return position{
		line: strings.Count(prefix, "\n") + 1,
		col:  len(prefix) - strings.LastIndexByte(prefix, '\n'),
	}
}

func wrapJSONDecodeError(content string, err error) error {
	var (
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
	)
	switch {
	case errors.As(err, &syntaxErr):
		return fmt.Errorf("%s: %w", positionAt(content, syntaxErr.Offset), err)
	case errors.As(err, &typeErr):
		return fmt.Errorf("%s: %w", positionAt(content, typeErr.Offset), err)
	default:
		return err
	}
}
