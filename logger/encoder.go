package logger

import (
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

const (
	colorReset = "\x1b[0m"
	colorBold  = "\x1b[1m"
)

// palette assigns an ANSI color to each output role. Both themes fill the
// same struct, so the encoder never branches on the theme name itself.
type palette struct {
	fg     string
	time   string
	id     string // hash-like values: unique keys, ingestion IDs, commit SHAs
	number string
	stage  string // bracketed stage markers in messages
	warn   string
	warnBg string
	err    string
	errBg  string

	// rotation colors component names, picked by a stable name hash
	rotation []string

	// message colors by content: recording and chain operations, source
	// and store plumbing, lifecycle events
	coreMsg  string
	plumbMsg string
	lifeMsg  string
}

// Gruvbox Dark: warm, muted, easy on the eyes.
var gruvbox = palette{
	fg:       "\x1b[38;5;223m", // soft cream
	time:     "\x1b[38;5;108m", // muted cyan-green
	id:       "\x1b[38;5;109m", // soft blue
	number:   "\x1b[38;5;175m", // muted purple
	stage:    "\x1b[38;5;208m", // warm orange
	warn:     "\x1b[38;5;214m",
	warnBg:   "\x1b[48;5;58m",
	err:      "\x1b[38;5;167m",
	errBg:    "\x1b[48;5;88m",
	rotation: []string{"\x1b[38;5;208m", "\x1b[38;5;214m"}, // orange, yellow
	coreMsg:  "\x1b[38;5;142m",                             // muted green
	plumbMsg: "\x1b[38;5;109m",                             // soft blue
	lifeMsg:  "\x1b[38;5;208m",                             // warm orange
}

// Everforest Dark: forest greens with a strong green presence.
var everforest = palette{
	fg:     "\x1b[38;5;223m", // soft beige
	time:   "\x1b[38;5;107m", // mid forest green
	id:     "\x1b[38;5;109m", // blue-green
	number: "\x1b[38;5;108m", // bright leaf green
	stage:  "\x1b[38;5;208m", // autumn orange
	warn:   "\x1b[38;5;179m",
	warnBg: "\x1b[48;5;58m",
	err:    "\x1b[38;5;167m",
	errBg:  "\x1b[48;5;52m",
	rotation: []string{
		"\x1b[38;5;108m", // bright green
		"\x1b[38;5;65m",  // deep green
		"\x1b[38;5;208m", // orange
	},
	coreMsg:  "\x1b[38;5;108m", // bright green for the prominent path
	plumbMsg: "\x1b[38;5;107m", // mid green
	lifeMsg:  "\x1b[38;5;65m",  // deep green
}

// Current active theme (set from env or config before the encoder is built)
var currentTheme = "everforest"

// SetTheme configures the color scheme for log output
func SetTheme(theme string) {
	if theme == "everforest" || theme == "gruvbox" {
		currentTheme = theme
	}
}

func activePalette() palette {
	if currentTheme == "gruvbox" {
		return gruvbox
	}
	return everforest
}

// colorComponent picks a stable color per component name so repeated lines
// from the same component group visually.
func colorComponent(name string) string {
	hash := 0
	for _, c := range name {
		hash += int(c)
	}
	rot := activePalette().rotation
	return rot[hash%len(rot)]
}

// colorMessage picks the message color from its content. Recording and chain
// operations carry the theme's strongest color.
func colorMessage(msg string) string {
	p := activePalette()
	lower := strings.ToLower(msg)

	switch {
	case containsAny(lower, "ingest", "record", "completed", "chain"):
		return p.coreMsg
	case containsAny(lower, "clone", "resolve", "fetch", "connect"):
		return p.plumbMsg
	case containsAny(lower, "starting", "started", "schema", "config"):
		return p.lifeMsg
	}
	return p.fg
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// bracketPattern matches inline context markers: [run:XXX], [3/12], [schema]
var bracketPattern = regexp.MustCompile(`\[([^\]]+)\]`)

// colorizeMessage applies the content color to a message and recolors
// bracketed markers on top: run markers get the ID color, everything else
// the stage color.
func colorizeMessage(msg string) string {
	p := activePalette()
	base := colorMessage(msg)

	var b strings.Builder
	last := 0
	for _, match := range bracketPattern.FindAllStringSubmatchIndex(msg, -1) {
		if before := msg[last:match[0]]; before != "" {
			b.WriteString(base)
			b.WriteString(before)
			b.WriteString(colorReset)
		}

		marker := p.stage
		if content := msg[match[2]:match[3]]; strings.HasPrefix(content, "run:") || strings.Contains(content, "/") {
			marker = p.id
		}
		b.WriteString(marker)
		b.WriteString(msg[match[0]:match[1]])
		b.WriteString(colorReset)

		last = match[1]
	}

	if rest := msg[last:]; rest != "" {
		b.WriteString(base)
		b.WriteString(rest)
		b.WriteString(colorReset)
	}
	return b.String()
}

// consoleEncoder renders calm, compact console lines.
// Format: "13:04:35  tracker  Recorded ingestion  unique_key=9f2c…"
type consoleEncoder struct {
	zapcore.Encoder // field serialization comes from the embedded encoder
}

func newConsoleEncoder() *consoleEncoder {
	return &consoleEncoder{
		Encoder: zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
	}
}

func (enc *consoleEncoder) Clone() zapcore.Encoder {
	return &consoleEncoder{Encoder: enc.Encoder.Clone()}
}

func (enc *consoleEncoder) EncodeEntry(ent zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	p := activePalette()
	line := buffer.NewPool().Get()

	line.AppendString(p.time)
	line.AppendString(ent.Time.Format("15:04:05"))
	line.AppendString(colorReset)

	// Info and debug lines stay unmarked; WARN and ERROR stand out
	if ent.Level != zapcore.InfoLevel && ent.Level != zapcore.DebugLevel {
		line.AppendString("  ")
		line.AppendString(levelColorString(ent.Level))
	}

	// Abbreviated component name, colored for visual grouping
	if ent.LoggerName != "" {
		line.AppendString("  ")
		line.AppendString(colorComponent(ent.LoggerName))
		line.AppendString(abbreviateName(ent.LoggerName))
		line.AppendString(colorReset)
	}

	line.AppendString("  ")
	line.AppendString(colorizeMessage(ent.Message))

	if len(fields) > 0 {
		line.AppendString("  ")
		line.AppendString(renderFields(fields))
	}

	line.AppendString("\n")
	return line, nil
}

func levelColorString(level zapcore.Level) string {
	p := activePalette()
	switch level {
	case zapcore.WarnLevel:
		return colorBold + p.warnBg + p.warn + "WARN" + colorReset
	case zapcore.ErrorLevel, zapcore.DPanicLevel, zapcore.PanicLevel, zapcore.FatalLevel:
		return colorBold + p.errBg + p.err + level.CapitalString() + colorReset
	}
	return ""
}

// abbreviateName shortens dotted component names: graph.connector -> g.connector
func abbreviateName(name string) string {
	parts := strings.Split(name, ".")
	if len(parts) > 1 {
		return string(parts[0][0]) + "." + strings.Join(parts[1:], ".")
	}
	return name
}

// shortID truncates hash-like values so lines stay scannable
func shortID(val string) string {
	if len(val) > 16 {
		return val[:12] + "…"
	}
	return val
}

// fieldValue renders a zap field's value regardless of its type
func fieldValue(field zapcore.Field) string {
	m := zapcore.NewMapObjectEncoder()
	field.AddTo(m)
	v, ok := m.Fields[field.Key]
	if !ok {
		return ""
	}
	return fmt.Sprintf("%v", v)
}

// renderFields renders every structured field as key=value. No field is ever
// silently discarded; known keys only change the value color.
func renderFields(fields []zapcore.Field) string {
	p := activePalette()

	var parts []string
	for _, field := range fields {
		if field.Type == zapcore.SkipType || field.Key == "" {
			continue
		}
		val := fieldValue(field)

		var rendered string
		switch field.Key {
		case FieldUniqueKey, FieldIngestionID, FieldCommitSHA:
			rendered = p.fg + field.Key + "=" + colorReset + p.id + shortID(val) + colorReset
		case FieldDurationMS:
			rendered = p.fg + field.Key + "=" + colorReset + p.number + val + colorReset + "ms"
		case FieldCounter, FieldCount, FieldBatchSize, FieldTotalCount, FieldAttempt:
			rendered = p.fg + field.Key + "=" + colorReset + p.number + val + colorReset
		case FieldError:
			rendered = p.fg + field.Key + "=" + colorReset + p.err + val + colorReset
		default:
			rendered = p.fg + field.Key + "=" + val + colorReset
		}
		parts = append(parts, rendered)
	}

	return strings.Join(parts, " ")
}
