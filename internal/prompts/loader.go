// Package prompts provides a loader for externalized LLM prompt templates.
// Prompts are stored as JSON files and embedded at compile time.
package prompts

import (
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"text/template"
)

//go:embed *.json
var promptFiles embed.FS

var (
	cache   = make(map[string]map[string]string)
	parsed  = make(map[string]*template.Template)
	cacheMu sync.RWMutex
)

// funcs are available to every prompt template.
var funcs = template.FuncMap{
	"join": func(items []string) string {
		return strings.Join(items, ", ")
	},
}

// Get retrieves a raw prompt by filename and key.
// The filename should not include the path (e.g., "matching.json").
func Get(filename, key string) (string, error) {
	prompts, err := loadFile(filename)
	if err != nil {
		return "", err
	}

	prompt, exists := prompts[key]
	if !exists {
		return "", fmt.Errorf("prompt key %q not found in %s", key, filename)
	}

	return prompt, nil
}

// Render executes the prompt template stored under key with data.
// Templates use text/template syntax plus a "join" helper for string slices.
func Render(filename, key string, data any) (string, error) {
	tmpl, err := lookupTemplate(filename, key)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("failed to render prompt %s/%s: %w", filename, key, err)
	}
	return sb.String(), nil
}

func lookupTemplate(filename, key string) (*template.Template, error) {
	id := filename + "#" + key

	cacheMu.RLock()
	tmpl, ok := parsed[id]
	cacheMu.RUnlock()
	if ok {
		return tmpl, nil
	}

	raw, err := Get(filename, key)
	if err != nil {
		return nil, err
	}

	tmpl, err = template.New(id).Funcs(funcs).Option("missingkey=error").Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse prompt %s/%s: %w", filename, key, err)
	}

	cacheMu.Lock()
	parsed[id] = tmpl
	cacheMu.Unlock()

	return tmpl, nil
}

// loadFile loads and caches a prompt file.
func loadFile(filename string) (map[string]string, error) {
	cacheMu.RLock()
	if prompts, exists := cache[filename]; exists {
		cacheMu.RUnlock()
		return prompts, nil
	}
	cacheMu.RUnlock()

	data, err := promptFiles.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompt file %s: %w", filename, err)
	}

	var prompts map[string]string
	if err := json.Unmarshal(data, &prompts); err != nil {
		return nil, fmt.Errorf("failed to parse prompt file %s: %w", filename, err)
	}

	cacheMu.Lock()
	cache[filename] = prompts
	cacheMu.Unlock()

	return prompts, nil
}
