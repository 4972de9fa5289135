package manifest

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// ParseFile parses the manifest at the given path.
func ParseFile(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ParseError{
			Code:    ErrCodeManifestParse,
			Message: fmt.Sprintf("cannot read manifest: %v", err),
		}
	}
	defer func() { _ = f.Close() }()

	return Parse(f)
}

// Parse reads an ordered manifest from r. Blank lines and '#' comment
// lines are skipped, and trailing-backslash continuations are folded
// into one logical instruction before classification. Parsing is strict:
// the first instruction must declare the base image, and any
// unrecognized instruction aborts the parse before execution begins.
func Parse(r io.Reader) (*Manifest, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var (
		baseImage string
		steps     []Step
		lineNo    int
	)

	for scanner.Scan() {
		lineNo++
		raw := strings.TrimSpace(scanner.Text())

		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}

		startLine := lineNo

		// Fold continuation lines into one logical instruction.
		for strings.HasSuffix(raw, "\\") && scanner.Scan() {
			lineNo++
			raw = strings.TrimSuffix(raw, "\\") + " " + strings.TrimSpace(scanner.Text())
		}

		canonical := Canonical(raw)
		keyword, rest, _ := strings.Cut(canonical, " ")
		word := strings.ToUpper(keyword)

		kind, ok := ParseKind(word)
		if !ok {
			return nil, newParseError(ErrCodeUnknownInstruction, startLine, canonical,
				"unrecognized instruction %q", keyword)
		}

		if kind == KindBaseImage {
			if baseImage != "" {
				return nil, newParseError(ErrCodeDuplicateBaseImage, startLine, canonical,
					"base image already declared as %q", baseImage)
			}
			if len(steps) > 0 {
				return nil, newParseError(ErrCodeManifestParse, startLine, canonical,
					"base image must be declared before any step")
			}
			image := strings.TrimSpace(rest)
			if image == "" || strings.Contains(image, " ") {
				return nil, newParseError(ErrCodeManifestParse, startLine, canonical,
					"base image declaration requires exactly one image identifier")
			}
			baseImage = image
			continue
		}

		if baseImage == "" {
			return nil, newParseError(ErrCodeMissingBaseImage, startLine, canonical,
				"first instruction must declare a base image")
		}

		args, err := parseArgs(kind, rest, startLine, canonical)
		if err != nil {
			return nil, err
		}

		text := word + " " + rest
		steps = append(steps, NewStep(len(steps)+1, kind, text, args))
	}

	if err := scanner.Err(); err != nil {
		return nil, &ParseError{
			Code:    ErrCodeManifestParse,
			Message: fmt.Sprintf("cannot read manifest: %v", err),
		}
	}

	if baseImage == "" {
		return nil, &ParseError{
			Code:    ErrCodeMissingBaseImage,
			Message: "manifest declares no base image",
		}
	}

	return NewManifest(baseImage, steps), nil
}

// parseArgs validates and extracts the arguments for one instruction.
func parseArgs(kind Kind, rest string, line int, text string) ([]string, error) {
	switch kind {
	case KindRun:
		if rest == "" {
			return nil, newParseError(ErrCodeManifestParse, line, text,
				"run instruction requires a shell script")
		}
		return []string{rest}, nil

	case KindEnv:
		return parseEnvArgs(rest, line, text)

	case KindWorkdir:
		fields := splitFields(rest)
		if len(fields) != 1 {
			return nil, newParseError(ErrCodeManifestParse, line, text,
				"workdir instruction requires exactly one path")
		}
		return fields, nil

	default:
		return nil, newParseError(ErrCodeManifestParse, line, text,
			"instruction %q cannot appear as a step", kind)
	}
}

// parseEnvArgs parses ENV arguments into KEY=VALUE pairs.
// Both "ENV KEY=VALUE [KEY=VALUE ...]" and the legacy "ENV KEY VALUE"
// form are accepted.
func parseEnvArgs(rest string, line int, text string) ([]string, error) {
	fields := splitFields(rest)
	if len(fields) == 0 {
		return nil, newParseError(ErrCodeManifestParse, line, text,
			"env instruction requires at least one variable")
	}

	// Legacy two-field form without '='.
	if len(fields) == 2 && !strings.Contains(fields[0], "=") {
		return []string{fields[0] + "=" + unquote(fields[1])}, nil
	}

	pairs := make([]string, 0, len(fields))
	for _, f := range fields {
		key, value, ok := strings.Cut(f, "=")
		if !ok || key == "" {
			return nil, newParseError(ErrCodeManifestParse, line, text,
				"malformed env assignment %q, want KEY=VALUE", f)
		}
		pairs = append(pairs, key+"="+unquote(value))
	}

	return pairs, nil
}

// unquote strips one level of surrounding quotes from a value.
func unquote(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
