package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Loaded captures resolved config path, parsed values, and non-fatal warnings.
type Loaded struct {
	Path     string
	Config   Config
	Warnings []Warning
	Exists   bool
	// EnvPath is the credentials file that was applied, if any.
	EnvPath string
}

// Load resolves, reads, parses, and validates the runtime configuration, then applies the
// configured env file without overriding variables already set.
func Load(explicitPath string) (Loaded, error) {
	resolvedPath, err := ResolvePath(explicitPath)
	if err != nil {
		return Loaded{}, err
	}

	loaded, err := readConfig(resolvedPath)
	if err != nil {
		return Loaded{}, err
	}

	knowledge, err := readKnowledge(resolvedPath, loaded.Config.LLM.KnowledgeFile)
	if err != nil {
		return Loaded{}, err
	}
	if loaded.Config.LLM.KnowledgeFile != "" && knowledge == "" {
		loaded.Warnings = append(loaded.Warnings, Warning{
			Message: fmt.Sprintf("llm.knowledge_file %q is empty", loaded.Config.LLM.KnowledgeFile),
		})
	}
	loaded.Config.LLM.Knowledge = knowledge

	envPath, err := LoadEnv(resolvedPath, loaded.Config.EnvFile)
	if err != nil {
		return Loaded{}, err
	}
	loaded.EnvPath = envPath
	return loaded, nil
}

// readKnowledge loads the knowledge base text. A relative path is read next to the config file.
func readKnowledge(configPath string, knowledgeFile string) (string, error) {
	if knowledgeFile == "" {
		return "", nil
	}
	path := anchorPath(configPath, knowledgeFile)
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read llm.knowledge_file %q: %w", path, err)
	}
	return strings.TrimSpace(string(content)), nil
}

func readConfig(resolvedPath string) (Loaded, error) {
	base := Default()
	content, err := os.ReadFile(resolvedPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			warnings, verr := Validate(base)
			if verr != nil {
				return Loaded{}, verr
			}
			return Loaded{
				Path:   resolvedPath,
				Config: base,
				Warnings: append([]Warning{{
					Message: fmt.Sprintf("config file %q not found; using defaults", resolvedPath),
				}}, warnings...),
				Exists: false,
			}, nil
		}
		return Loaded{}, fmt.Errorf("read config %q: %w", resolvedPath, err)
	}

	cfg, warnings, err := Parse(string(content), base)
	if err != nil {
		return Loaded{}, fmt.Errorf("parse config %q: %w", resolvedPath, err)
	}

	return Loaded{
		Path:     resolvedPath,
		Config:   cfg,
		Warnings: warnings,
		Exists:   true,
	}, nil
}

// LoadEnv applies envFile through godotenv. A relative path is looked up next to the config
// file first, then in the working directory. A missing file is not an error.
func LoadEnv(configPath string, envFile string) (string, error) {
	if envFile == "" {
		return "", nil
	}

	candidates := []string{anchorPath(configPath, envFile)}
	if candidates[0] != envFile {
		candidates = append(candidates, envFile)
	}

	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err != nil {
			continue
		}
		if err := godotenv.Load(candidate); err != nil {
			return "", fmt.Errorf("load env file %q: %w", candidate, err)
		}
		return candidate, nil
	}
	return "", nil
}
