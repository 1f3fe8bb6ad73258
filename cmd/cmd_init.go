package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/qbloq/mongobridge/serv"
)

const defaultConfig = `# {{ .AppName }} settings
app_name: "{{ .AppName }}"
log_level: "debug"
log_format: "auto"
reload_on_config_change: true

database:
  host: localhost
  port: 27017
  dbname: {{ .AppNameSlug }}_{{ .Env }}

entities:
  - name: Item
    collection: items
    id:
      name: id
      type: long
    attributes:
      - name: name
        type: String
      - name: price
        type: BigDecimal
      - name: tags
        type: Collection<String>
`

// initCmd creates the init command
func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a starter config for the current environment",
		Args:  cobra.NoArgs,
		Run:   cmdInit,
	}
}

func cmdInit(*cobra.Command, []string) {
	cwd, err := os.Getwd()
	if err != nil {
		log.Fatal(err)
	}

	file, err := writeDefaultConfig(cpath, filepath.Base(cwd), serv.GetConfigName())
	if err != nil {
		log.Fatalf("Failed to generate default config: %s", err)
	}
	log.Infof("Created default config: %s", file)
}

// writeDefaultConfig writes <env>.yml into dir unless it exists
func writeDefaultConfig(dir, base, env string) (string, error) {
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return "", err
	}

	file := filepath.Join(dir, env+".yml")
	if _, err := os.Stat(file); err == nil {
		return "", fmt.Errorf("config already exists: %s", file)
	}

	slug := strings.ToLower(strings.ReplaceAll(base, "-", "_"))
	v, err := renderDefaultConfig(map[string]string{
		"AppName":     cases.Title(language.English).String(strings.ReplaceAll(slug, "_", " ")),
		"AppNameSlug": slug,
		"Env":         env,
	})
	if err != nil {
		return "", err
	}
	return file, os.WriteFile(file, v, 0o600)
}

func renderDefaultConfig(data map[string]string) ([]byte, error) {
	t, err := template.New("config").Parse(defaultConfig)
	if err != nil {
		return nil, err
	}
	var b bytes.Buffer
	if err := t.Execute(&b, data); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}
