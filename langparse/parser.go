// Package langparse provides a minimal, dependency-free ParseResult producer
// for the coordinator to drive end to end. Spec §1 scopes real language-aware
// AST extraction out of this repository — parserapi.Parser is a contract
// other tooling is meant to satisfy — but the CLI still needs something that
// implements it so `memento-sync full`/`watch` have a real parser to call.
// This implementation extracts file and symbol entities with regular
// expressions across a handful of common languages; it makes no claim to
// full AST fidelity. The Go, Python, JavaScript and TypeScript patterns match
// only unindented declarations; the Java, Ruby and Rust patterns also match
// indented ones.
package langparse

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/evalgo/memento/model"
	"github.com/evalgo/memento/parserapi"
)

// Parser implements parserapi.Parser using per-language regular expressions.
// Safe for concurrent use: it holds no mutable state.
type Parser struct{}

// New returns a ready-to-use Parser.
func New() *Parser { return &Parser{} }

var languageByExt = map[string]string{
	".go": "go",
	".py": "python",
	".js": "javascript",
	".ts": "typescript",
	".java": "java",
	".rb": "ruby",
	".rs": "rust",
	".md": "markdown",
}

type symbolPattern struct {
	re *regexp.Regexp
	kind model.SymbolKind
}

var symbolPatterns = map[string][]symbolPattern{
	"go": {
		{regexp.MustCompile(`(?m)^func\s+(?:\([^)]*\)\s+)?([A-Za-z_][A-Za-z0-9_]*)\s*\(`), model.KindFunction},
		{regexp.MustCompile(`(?m)^type\s+([A-Za-z_][A-Za-z0-9_]*)\s+interface\b`), model.KindInterface},
		{regexp.MustCompile(`(?m)^type\s+([A-Za-z_][A-Za-z0-9_]*)\s+struct\b`), model.KindClass},
	},
	"python": {
		{regexp.MustCompile(`(?m)^def\s+([A-Za-z_][A-Za-z0-9_]*)\s*\(`), model.KindFunction},
		{regexp.MustCompile(`(?m)^class\s+([A-Za-z_][A-Za-z0-9_]*)\s*[:(]`), model.KindClass},
	},
	"javascript": {
		{regexp.MustCompile(`(?m)^(?:export\s+)?function\s+([A-Za-z_$][A-Za-z0-9_$]*)\s*\(`), model.KindFunction},
		{regexp.MustCompile(`(?m)^(?:export\s+)?class\s+([A-Za-z_$][A-Za-z0-9_$]*)\b`), model.KindClass},
	},
	"typescript": {
		{regexp.MustCompile(`(?m)^(?:export\s+)?function\s+([A-Za-z_$][A-Za-z0-9_$]*)\s*\(`), model.KindFunction},
		{regexp.MustCompile(`(?m)^(?:export\s+)?class\s+([A-Za-z_$][A-Za-z0-9_$]*)\b`), model.KindClass},
		{regexp.MustCompile(`(?m)^(?:export\s+)?interface\s+([A-Za-z_$][A-Za-z0-9_$]*)\b`), model.KindInterface},
	},
	"java": {
		{regexp.MustCompile(`(?m)^\s*(?:public|private|protected)?\s*(?:static\s+)?class\s+([A-Za-z_][A-Za-z0-9_]*)\b`), model.KindClass},
		{regexp.MustCompile(`(?m)^\s*(?:public|private|protected)?\s*interface\s+([A-Za-z_][A-Za-z0-9_]*)\b`), model.KindInterface},
	},
	"ruby": {
		{regexp.MustCompile(`(?m)^\s*def\s+([A-Za-z_][A-Za-z0-9_?!]*)`), model.KindMethod},
		{regexp.MustCompile(`(?m)^\s*class\s+([A-Za-z_][A-Za-z0-9_]*)`), model.KindClass},
	},
	"rust": {
		{regexp.MustCompile(`(?m)^\s*(?:pub\s+)?fn\s+([A-Za-z_][A-Za-z0-9_]*)\s*\(`), model.KindFunction},
		{regexp.MustCompile(`(?m)^\s*(?:pub\s+)?struct\s+([A-Za-z_][A-Za-z0-9_]*)`), model.KindClass},
	},
}

// ParseFile reads path and extracts a file entity plus any symbols a
// language pattern recognizes, per the parserapi.Parser contract.
func (p *Parser) ParseFile(path string) (parserapi.ParseResult, error) {
	result := parserapi.ParseResult{}

	info, err := os.Stat(path)
	if err != nil {
		return result, fmt.Errorf("langparse: stat %s: %w", path, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return result, fmt.Errorf("langparse: read %s: %w", path, err)
	}

	language := languageByExt[strings.ToLower(filepath.Ext(path))]
	hash := contentHash(data)

	fileEntity := model.Entity{
		ID: fileID(path),
		Type: model.EntityFile,
		Path: path,
		ContentHash: hash,
		Language: language,
		LastModified: info.ModTime().UTC(),
		IsTest: isTestFile(path),
		IsConfig: isConfigFile(path),
	}
	result.Entities = append(result.Entities, fileEntity)

	for _, pat := range symbolPatterns[language] {
		for _, match := range pat.re.FindAllStringSubmatch(string(data), -1) {
			if len(match) < 2 {
				continue
			}
			name := match[1]
			symEntity := model.Entity{
				ID: symbolID(path, name),
				Type: model.EntitySymbol,
				Path: path,
				ContentHash: hash,
				Language: language,
				LastModified: fileEntity.LastModified,
				Name: name,
				Kind: pat.kind,
				IsExported: isExported(language, name),
			}
			result.Entities = append(result.Entities, symEntity)
		}
	}

	return result, nil
}

// ParseFileIncremental runs ParseFile and reports the whole result as added,
// since this parser keeps no memory of a prior parse to diff against.
func (p *Parser) ParseFileIncremental(path string) (parserapi.IncrementalParseResult, error) {
	full, err := p.ParseFile(path)
	if err != nil {
		return parserapi.IncrementalParseResult{}, err
	}
	return parserapi.IncrementalParseResult{
		ParseResult: full,
		IsIncremental: false,
		AddedEntities: full.Entities,
	}, nil
}

func contentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func fileID(path string) string {
	return fmt.Sprintf("file_%08x", fnvHash(path))
}

func symbolID(path, name string) string {
	return fmt.Sprintf("sym_%08x", fnvHash(model.SymbolPath(path, name)))
}

func fnvHash(s string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(s))
	return h.Sum32()
}

func isTestFile(path string) bool {
	base := filepath.Base(path)
	return strings.Contains(base, "_test.") || strings.HasSuffix(base, ".test.js") ||
		strings.HasPrefix(base, "test_") || strings.Contains(base, ".spec.")
}

func isConfigFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json", ".toml", ".ini", ".env":
		return true
	}
	return false
}

func isExported(language, name string) bool {
	if name == "" {
		return false
	}
	switch language {
	case "go":
		return name[0] >= 'A' && name[0] <= 'Z'
	case "python", "ruby":
		return !strings.HasPrefix(name, "_")
	default:
		return true
	}
}
