package changes

// DefaultRules are the built-in rules for each change area.
var DefaultRules = map[Area]Rules{
	AreaSecurity: {
		Patterns: []string{
			"**/auth/**",
			"**/security/**",
			"**/secrets/**",
			"**/credentials/**",
			"**/certs/**",
			"**/keys/**",
			"**/.ssh/**",
		},
		Keywords: []string{
			"auth",
			"login",
			"password",
			"token",
			"secret",
			"credential",
			"encrypt",
			"decrypt",
			"oauth",
			"jwt",
			"session",
			"permission",
			"acl",
			"rbac",
		},
		FileTypes: []string{".pem", ".key", ".env", ".p12", ".pfx", ".jks", ".keystore", ".crt", ".cer"},
	},
	AreaDatabase: {
		Patterns: []string{
			"**/migrations/**",
			"**/migrate/**",
			"**/schema/**",
			"**/db/**",
		},
		Keywords:  []string{"migration", "schema"},
		FileTypes: []string{".sql"},
	},
	AreaUI: {
		Patterns: []string{
			"**/components/**",
			"**/pages/**",
			"**/views/**",
			"**/templates/**",
			"**/static/**",
			"**/public/**",
			"**/tui/**",
		},
		FileTypes: []string{".tsx", ".jsx", ".vue", ".svelte", ".css", ".scss", ".html", ".tmpl"},
	},
	AreaAPI: {
		Patterns: []string{
			"**/api/**",
			"**/handlers/**",
			"**/routes/**",
			"**/server/**",
			"**/proto/**",
			"**/openapi/**",
		},
		Keywords:  []string{"openapi", "swagger", "graphql"},
		FileTypes: []string{".proto", ".graphql", ".gql"},
	},
}

// technologies maps file extensions to the technology they indicate.
var technologies = map[string]string{
	".go":     "go",
	".ts":     "typescript",
	".tsx":    "react",
	".jsx":    "react",
	".js":     "javascript",
	".vue":    "vue",
	".svelte": "svelte",
	".py":     "python",
	".rs":     "rust",
	".java":   "java",
	".kt":     "kotlin",
	".rb":     "ruby",
	".sql":    "sql",
	".tf":     "terraform",
	".proto":  "protobuf",
}

// technologyFiles maps well-known file names to the technology they indicate.
var technologyFiles = map[string]string{
	"dockerfile":         "docker",
	"docker-compose.yml": "docker",
	"chart.yaml":         "helm",
	"go.mod":             "go",
	"package.json":       "javascript",
	"cargo.toml":         "rust",
	"pyproject.toml":     "python",
}
