// Package localestore discovers locale files in a workspace and reads
// their translation trees. Two on-disk conventions are supported:
// grouped-by-locale directories (locales/en/common.json, lang/de/auth.php)
// and single-file-per-locale (locales/en.json, lang/de.php). Trees are
// dot-path keyed; the engine only ever reads string leaves.
package localestore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// FileInfo describes one discovered locale file.
type FileInfo struct {
	// Path is the absolute file path.
	Path string
	// RelativePath is the path relative to the workspace root, with
	// forward slashes (the form version control expects).
	RelativePath string
	// Locale is the language code the file belongs to.
	Locale string
	// FileName is the base name with extension ("common.json",
	// "auth.php"); ParseTree dispatches on it.
	FileName string
}

// localeRoots are the directory names checked, in order, when locating
// translation trees under a workspace.
var localeRoots = []string{
	"locales",
	"locale",
	"lang",
	"langs",
	"i18n",
	"translations",
	filepath.Join("resources", "lang"),
	filepath.Join("src", "locales"),
	filepath.Join("public", "locales"),
}

// localeCodeRe matches language codes like "en", "pt_BR", "pt-br",
// "zh-Hans". Base codes are additionally checked against knownBaseCodes so
// arbitrary short directory names are not mistaken for locales.
var localeCodeRe = regexp.MustCompile(`^[a-z]{2,3}(?:[_-][A-Za-z]{2,4})?$`)

// knownBaseCodes is the locale-code recognition table (ISO 639-1 plus the
// common three-letter codes seen in translation trees).
var knownBaseCodes = map[string]bool{
	"aa": true, "af": true, "am": true, "ar": true, "az": true, "be": true,
	"bg": true, "bn": true, "bs": true, "ca": true, "cs": true, "cy": true,
	"da": true, "de": true, "el": true, "en": true, "eo": true, "es": true,
	"et": true, "eu": true, "fa": true, "fi": true, "fil": true, "fr": true,
	"ga": true, "gl": true, "gu": true, "he": true, "hi": true, "hr": true,
	"hu": true, "hy": true, "id": true, "is": true, "it": true, "ja": true,
	"ka": true, "kk": true, "km": true, "kn": true, "ko": true, "ku": true,
	"ky": true, "lt": true, "lv": true, "mk": true, "ml": true, "mn": true,
	"mr": true, "ms": true, "mt": true, "my": true, "nb": true, "ne": true,
	"nl": true, "nn": true, "no": true, "pa": true, "pl": true, "ps": true,
	"pt": true, "ro": true, "ru": true, "si": true, "sk": true, "sl": true,
	"sq": true, "sr": true, "sv": true, "sw": true, "ta": true, "te": true,
	"th": true, "tl": true, "tr": true, "uk": true, "ur": true, "uz": true,
	"vi": true, "zh": true,
}

// IsLocaleCode reports whether name looks like a locale code ("en",
// "pt_BR", "zh-Hans").
func IsLocaleCode(name string) bool {
	if !localeCodeRe.MatchString(name) {
		return false
	}
	base := name
	if i := strings.IndexAny(name, "_-"); i > 0 {
		base = name[:i]
	}
	return knownBaseCodes[strings.ToLower(base)]
}

// translationExts are the file extensions read as translation trees.
var translationExts = map[string]bool{".json": true, ".php": true}

// Discover walks the known locale-root conventions under root and returns
// every locale file found, sorted by relative path for determinism.
func Discover(root string) []FileInfo {
	var files []FileInfo
	seen := make(map[string]bool)

	add := func(path, locale string) {
		abs, err := filepath.Abs(path)
		if err != nil || seen[abs] {
			return
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return
		}
		base := filepath.Base(path)
		seen[abs] = true
		files = append(files, FileInfo{
			Path:         abs,
			RelativePath: filepath.ToSlash(rel),
			Locale:       locale,
			FileName:     base,
		})
	}

	for _, lr := range localeRoots {
		dir := filepath.Join(root, lr)
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			name := e.Name()
			if e.IsDir() {
				// Grouped-by-locale: locales/<code>/*.json
				if !IsLocaleCode(name) {
					continue
				}
				inner, err := os.ReadDir(filepath.Join(dir, name))
				if err != nil {
					continue
				}
				for _, f := range inner {
					if f.IsDir() || !translationExts[filepath.Ext(f.Name())] {
						continue
					}
					add(filepath.Join(dir, name, f.Name()), name)
				}
				continue
			}
			// Single-file-per-locale: locales/<code>.json
			ext := filepath.Ext(name)
			code := strings.TrimSuffix(name, ext)
			if translationExts[ext] && IsLocaleCode(code) {
				add(filepath.Join(dir, name), code)
			}
		}
	}

	sort.Slice(files, func(i, j int) bool { return files[i].RelativePath < files[j].RelativePath })
	return files
}

// ---------------------------------------------------------------------------
// Tree parsing and lookup
// ---------------------------------------------------------------------------

// ParseTree parses locale file content into a nested tree. The format is
// chosen by the file name: .php files are parsed as a returned associative
// array, everything else as JSON.
func ParseTree(content, fileName string) (map[string]any, error) {
	if strings.HasSuffix(fileName, ".php") {
		return parsePHPArray(content)
	}
	var tree map[string]any
	if err := json.Unmarshal([]byte(content), &tree); err != nil {
		return nil, fmt.Errorf("parsing locale JSON: %w", err)
	}
	return tree, nil
}

// GetNestedValue resolves a dot path to a string leaf. Intermediate nodes
// must be objects; a non-string leaf is treated as absent.
func GetNestedValue(tree map[string]any, dotPath string) (string, bool) {
	cur := any(tree)
	segments := strings.Split(dotPath, ".")
	for i, seg := range segments {
		node, ok := cur.(map[string]any)
		if !ok {
			return "", false
		}
		next, ok := node[seg]
		if !ok {
			return "", false
		}
		if i == len(segments)-1 {
			s, ok := next.(string)
			return s, ok && s != ""
		}
		cur = next
	}
	return "", false
}

// SetNestedValue writes a string leaf at the dot path, creating
// intermediate objects as needed. An existing non-object intermediate
// node is an error: the engine never restructures trees.
func SetNestedValue(tree map[string]any, dotPath, value string) error {
	segments := strings.Split(dotPath, ".")
	cur := tree
	for i, seg := range segments {
		if i == len(segments)-1 {
			cur[seg] = value
			return nil
		}
		next, ok := cur[seg]
		if !ok {
			child := make(map[string]any)
			cur[seg] = child
			cur = child
			continue
		}
		child, ok := next.(map[string]any)
		if !ok {
			return fmt.Errorf("key path %q collides with a non-object node at %q", dotPath, seg)
		}
		cur = child
	}
	return nil
}

// MarshalJSONTree renders a tree as indented JSON with sorted keys and a
// trailing newline, the layout locale files conventionally use.
func MarshalJSONTree(tree map[string]any) ([]byte, error) {
	data, err := json.MarshalIndent(tree, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("marshaling locale tree: %w", err)
	}
	return append(data, '\n'), nil
}
