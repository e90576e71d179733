// internal/logging/redact.go
package logging

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

const (
	redactedKey     = "[REDACTED]"
	redactedPattern = "[REDACTED:pattern]"
)

// RedactedString logs only the length of val, e.g. for an embedding API key.
func RedactedString(key, val string) zap.Field {
	return zap.String(key, "[REDACTED:"+strconv.Itoa(len(val))+"]")
}

// redactor decides what replaces a value. An empty redactor passes
// everything through.
type redactor struct {
	keys     map[string]struct{}
	patterns []*regexp.Regexp
}

func newRedactor(cfg RedactionConfig) (redactor, error) {
	var r redactor
	if !cfg.Enabled {
		return r, nil
	}
	r.keys = make(map[string]struct{}, len(cfg.Fields))
	for _, f := range cfg.Fields {
		r.keys[strings.ToLower(f)] = struct{}{}
	}
	for _, p := range cfg.Patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return redactor{}, fmt.Errorf("invalid redaction pattern %q: %w", p, err)
		}
		r.patterns = append(r.patterns, re)
	}
	return r, nil
}

func (r redactor) empty() bool {
	return len(r.keys) == 0 && len(r.patterns) == 0
}

func (r redactor) key(k string) bool {
	_, ok := r.keys[strings.ToLower(k)]
	return ok
}

// replace returns the substitute for a string value and whether one applies.
func (r redactor) replace(k, v string) (string, bool) {
	if r.key(k) {
		return redactedKey, true
	}
	for _, re := range r.patterns {
		if re.MatchString(v) {
			return redactedPattern, true
		}
	}
	return "", false
}

// RedactingEncoder hides configured keys and values matching configured
// patterns before they reach the wrapped encoder.
type RedactingEncoder struct {
	zapcore.Encoder
	r redactor
}

// NewRedactingEncoder wraps base with the rules in cfg.
func NewRedactingEncoder(base zapcore.Encoder, cfg RedactionConfig) (*RedactingEncoder, error) {
	r, err := newRedactor(cfg)
	if err != nil {
		return nil, err
	}
	return &RedactingEncoder{Encoder: base, r: r}, nil
}

func (e *RedactingEncoder) AddString(key, val string) {
	if sub, ok := e.r.replace(key, val); ok {
		val = sub
	}
	e.Encoder.AddString(key, val)
}

func (e *RedactingEncoder) AddByteString(key string, val []byte) {
	if e.r.key(key) {
		val = []byte(redactedKey)
	}
	e.Encoder.AddByteString(key, val)
}

func (e *RedactingEncoder) AddReflected(key string, val interface{}) error {
	if e.r.key(key) {
		e.Encoder.AddString(key, redactedKey)
		return nil
	}
	return e.Encoder.AddReflected(key, val)
}

// EncodeEntry covers per-call fields; fields added through With go through
// the Add methods above.
func (e *RedactingEncoder) EncodeEntry(ent zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	if e.r.empty() {
		return e.Encoder.EncodeEntry(ent, fields)
	}
	out := make([]zapcore.Field, len(fields))
	for i, f := range fields {
		out[i] = f
		if e.r.key(f.Key) {
			out[i] = zap.String(f.Key, redactedKey)
			continue
		}
		if f.Type == zapcore.StringType {
			if sub, ok := e.r.replace(f.Key, f.String); ok {
				out[i] = zap.String(f.Key, sub)
			}
		}
	}
	return e.Encoder.EncodeEntry(ent, out)
}

func (e *RedactingEncoder) Clone() zapcore.Encoder {
	return &RedactingEncoder{Encoder: e.Encoder.Clone(), r: e.r}
}
