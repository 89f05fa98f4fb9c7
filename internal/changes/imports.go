package changes

import (
	"bufio"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// ImportPattern is an import statement that puts a file in a change area.
type ImportPattern struct {
	Language string // "go", "typescript", "python", "rust"
	Pattern  string // regex for the import statement
	Area     Area
	Reason   string
}

// ImportPatterns are the imports that mark a file as security or database
// code.
var ImportPatterns = []ImportPattern{
	// Go
	{Language: "go", Pattern: `"crypto/`, Area: AreaSecurity, Reason: "Cryptography"},
	{Language: "go", Pattern: `"golang\.org/x/crypto/`, Area: AreaSecurity, Reason: "Cryptography"},
	{Language: "go", Pattern: `"github\.com/[^/]+/jwt`, Area: AreaSecurity, Reason: "JWT authentication"},
	{Language: "go", Pattern: `"golang\.org/x/oauth2`, Area: AreaSecurity, Reason: "OAuth2 authentication"},
	{Language: "go", Pattern: `"database/sql"`, Area: AreaDatabase, Reason: "Database access"},
	{Language: "go", Pattern: `"github\.com/jackc/pgx`, Area: AreaDatabase, Reason: "Database access"},

	// TypeScript/JavaScript
	{Language: "typescript", Pattern: `['"]crypto['"]`, Area: AreaSecurity, Reason: "Cryptography"},
	{Language: "typescript", Pattern: `['"]bcrypt['"]`, Area: AreaSecurity, Reason: "Password hashing"},
	{Language: "typescript", Pattern: `['"]jsonwebtoken['"]`, Area: AreaSecurity, Reason: "JWT authentication"},
	{Language: "typescript", Pattern: `['"]passport['"]`, Area: AreaSecurity, Reason: "Authentication"},
	{Language: "typescript", Pattern: `['"](prisma|@prisma/client|typeorm|knex)['"]`, Area: AreaDatabase, Reason: "Database access"},

	// Python
	{Language: "python", Pattern: `^(import|from) (cryptography|jwt|bcrypt|passlib|secrets)\b`, Area: AreaSecurity, Reason: "Cryptography"},
	{Language: "python", Pattern: `^from django\.contrib\.auth`, Area: AreaSecurity, Reason: "Authentication"},
	{Language: "python", Pattern: `^(import|from) (sqlalchemy|alembic)\b`, Area: AreaDatabase, Reason: "Database access"},

	// Rust
	{Language: "rust", Pattern: `^use (ring|jsonwebtoken|bcrypt|argon2)\b`, Area: AreaSecurity, Reason: "Cryptography"},
	{Language: "rust", Pattern: `^use (diesel|sqlx)\b`, Area: AreaDatabase, Reason: "Database access"},
}

type compiledImport struct {
	re     *regexp.Regexp
	area   Area
	reason string
}

// ImportScanner reads the import section of source files.
type ImportScanner struct {
	patterns map[string][]compiledImport
}

// maxImportLines bounds how far into a file the scanner reads.
const maxImportLines = 100

// NewImportScanner compiles ImportPatterns.
func NewImportScanner() *ImportScanner {
	s := &ImportScanner{patterns: make(map[string][]compiledImport)}
	for _, p := range ImportPatterns {
		re, err := regexp.Compile(p.Pattern)
		if err != nil {
			continue
		}
		s.patterns[p.Language] = append(s.patterns[p.Language], compiledImport{re: re, area: p.Area, reason: p.Reason})
	}
	return s
}

// Scan returns the areas the imports of the file at path put it in. Missing
// files and unknown languages yield no matches.
func (s *ImportScanner) Scan(path string) []Match {
	lang := detectLanguage(path)
	patterns := s.patterns[lang]
	if len(patterns) == 0 {
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var out []Match
	seen := make(map[Area]bool)
	scanner := bufio.NewScanner(f)
	for n := 0; scanner.Scan() && n < maxImportLines; n++ {
		line := strings.TrimSpace(scanner.Text())
		if pastImports(line, lang) {
			break
		}
		for _, p := range patterns {
			if seen[p.area] || !p.re.MatchString(line) {
				continue
			}
			seen[p.area] = true
			out = append(out, Match{Area: p.area, Reason: "import: " + p.reason})
		}
	}
	return out
}

func detectLanguage(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".go":
		return "go"
	case ".ts", ".tsx", ".js", ".jsx":
		return "typescript"
	case ".py":
		return "python"
	case ".rs":
		return "rust"
	default:
		return ""
	}
}

// pastImports reports whether line is a declaration that follows the
// import section.
func pastImports(line, lang string) bool {
	if line == "" || isComment(line, lang) {
		return false
	}
	var prefixes []string
	switch lang {
	case "go":
		prefixes = []string{"func ", "type ", "const ", "var "}
	case "typescript":
		prefixes = []string{"function ", "class ", "export function ", "export class ", "export default "}
	case "python":
		prefixes = []string{"class ", "def ", "@"}
	case "rust":
		prefixes = []string{"fn ", "pub fn ", "struct ", "pub struct ", "enum ", "impl "}
	}
	for _, p := range prefixes {
		if strings.HasPrefix(line, p) {
			return true
		}
	}
	return false
}

func isComment(line, lang string) bool {
	switch lang {
	case "go", "typescript", "rust":
		return strings.HasPrefix(line, "//") || strings.HasPrefix(line, "/*") || strings.HasPrefix(line, "*")
	case "python":
		return strings.HasPrefix(line, "#")
	default:
		return false
	}
}
