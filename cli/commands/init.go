package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"text/template"

	"github.com/spf13/cobra"

	"github.com/singlebase/singlebase-go/core"
)

var validProjectName = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_-]*$`)

var validCollectionName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

func (a *App) newInitCommand() *cobra.Command {
	var collection string

	cmd := &cobra.Command{
		Use:   "init <project-name>",
		Short: "Initialize a new Singlebase project",
		Long: `Initialize a new Go project that talks to Singlebase.

Creates a project directory with:
  - main.go: A starter program using the Singlebase client
  - .env.example: The variables the client reads
  - .gitignore: Keeps .env files out of version control

Example:
  singlebase init myapp
  singlebase init myapp --collection articles`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.runInit(args[0], collection); err != nil {
				return exitWithCode(ExitValidation, err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&collection, "collection", "items", "Collection used by the generated code")
	return cmd
}

func (a *App) runInit(projectPath, collection string) error {
	projectName := filepath.Base(projectPath)

	// Validate project name (just the base name, not full path)
	if err := validateProjectName(projectName); err != nil {
		return err
	}
	if !validCollectionName.MatchString(collection) {
		return fmt.Errorf("invalid collection name %q", collection)
	}

	if _, err := os.Stat(projectPath); err == nil {
		return fmt.Errorf("directory %q already exists", projectPath)
	}
	if err := os.MkdirAll(projectPath, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", projectPath, err)
	}

	data := templateData{Name: projectName, Collection: collection}
	files := []struct {
		name string
		tmpl string
		mode os.FileMode
	}{
		{"main.go", mainGoTemplate, 0644},
		{".env.example", envExampleTemplate, 0644},
		{".gitignore", gitignoreTemplate, 0644},
	}
	for _, f := range files {
		path := filepath.Join(projectPath, f.name)
		if err := generateFile(path, f.tmpl, data, f.mode); err != nil {
			return fmt.Errorf("failed to create %s: %w", f.name, err)
		}
	}

	fmt.Fprintf(a.stdout, "Created Singlebase project: %s\n\n", projectName)
	fmt.Fprintln(a.stdout, "Next steps:")
	fmt.Fprintf(a.stdout, "  cd %s\n", projectPath)
	fmt.Fprintln(a.stdout, "  cp .env.example .env   # then fill in your tenant URL and key")
	fmt.Fprintf(a.stdout, "  go mod init %s && go get %s\n", projectName, modulePath)
	fmt.Fprintln(a.stdout, "  go run .")

	return nil
}

func validateProjectName(name string) error {
	if name == "" {
		return fmt.Errorf("project name cannot be empty")
	}

	if !validProjectName.MatchString(name) {
		return fmt.Errorf("invalid project name %q: must start with a letter and contain only letters, numbers, underscores, and hyphens", name)
	}

	// Check for reserved names
	for _, r := range []string{"singlebase", "core"} {
		if strings.EqualFold(name, r) {
			return fmt.Errorf("invalid project name %q: reserved name", name)
		}
	}

	return nil
}

// modulePath is the import path generated projects depend on.
const modulePath = "github.com/singlebase/singlebase-go"

type templateData struct {
	Name       string
	Collection string
}

var templateFuncs = template.FuncMap{
	"envURL": func() string { return core.EnvAPIURL },
	"envKey": func() string { return core.EnvAPIKey },
	"module": func() string { return modulePath },
}

func generateFile(path string, tmplContent string, data templateData, mode os.FileMode) error {
	tmpl, err := template.New(filepath.Base(path)).Funcs(templateFuncs).Parse(tmplContent)
	if err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer f.Close()

	return tmpl.Execute(f, data)
}

// Templates

var mainGoTemplate = `package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"{{module}}/core"
)

func main() {
	client, err := core.NewFromEnv(core.WithTimeout(10 * time.Second))
	if err != nil {
		fmt.Fprintln(os.Stderr, "set {{envURL}} and {{envKey}}:", err)
		os.Exit(1)
	}

	ctx := context.Background()
	res, err := client.Collection("{{.Collection}}").Fetch(ctx, core.Payload{"limit": 10})
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}

	switch r := res.(type) {
	case *core.ResultOK:
		for _, rec := range r.Data {
			fmt.Println(rec.Key(), rec)
		}
	case *core.ResultError:
		fmt.Fprintln(os.Stderr, "Error:", r.Kind, r.Code, r.Message)
		os.Exit(2)
	}
}
`

var envExampleTemplate = `# {{.Name}}: Singlebase connection
{{envURL}}=https://cloud.singlebase.io/api/<tenant>
{{envKey}}=
`

var gitignoreTemplate = `.env
.env.local
`
