package main

import (
	"fmt"
	"os"

	"github.com/MegaGrindStone/research-web-ui/internal/handlers"
	"github.com/MegaGrindStone/research-web-ui/internal/services"
	"gopkg.in/yaml.v3"
)

type titleGenConfig interface {
	titleGen(string) (handlers.TitleGenerator, error)
}

// BaseProviderConfig contains the common fields for all title generator configurations.
type BaseProviderConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
}

type config struct {
	Port                 string           `yaml:"port"`
	LogLevel             string           `yaml:"logLevel"`
	TitleGeneratorPrompt string           `yaml:"titleGeneratorPrompt"`
	Researcher           researcherConfig `yaml:"researcher"`
	TitleGenerator       titleGenConfig   `yaml:"titleGenerator"`
}

type researcherConfig struct {
	BaseURL string   `yaml:"baseURL"`
	APIKey  string   `yaml:"apiKey"`
	Modes   []string `yaml:"modes"`
	Tools   []string `yaml:"tools"`
}

type ollamaConfig struct {
	BaseProviderConfig `yaml:",inline"`
	Host               string `yaml:"host"`
}

type anthropicConfig struct {
	BaseProviderConfig `yaml:",inline"`
	APIKey             string `yaml:"apiKey"`
	MaxTokens          int    `yaml:"maxTokens"`
}

type openaiConfig struct {
	BaseProviderConfig `yaml:",inline"`
	APIKey             string `yaml:"apiKey"`
	BaseURL            string `yaml:"baseURL"`
}

func (c *config) UnmarshalYAML(value *yaml.Node) error {
	var rawConfig struct {
		Port                 string           `yaml:"port"`
		LogLevel             string           `yaml:"logLevel"`
		TitleGeneratorPrompt string           `yaml:"titleGeneratorPrompt"`
		Researcher           researcherConfig `yaml:"researcher"`
		TitleGenerator       map[string]any   `yaml:"titleGenerator"`
	}

	if err := value.Decode(&rawConfig); err != nil {
		return err
	}

	c.Port = rawConfig.Port
	c.LogLevel = rawConfig.LogLevel
	c.TitleGeneratorPrompt = rawConfig.TitleGeneratorPrompt
	c.Researcher = rawConfig.Researcher

	provider, ok := rawConfig.TitleGenerator["provider"].(string)
	if !ok {
		return fmt.Errorf("title generator provider is required")
	}

	rawYAML, err := yaml.Marshal(rawConfig.TitleGenerator)
	if err != nil {
		return err
	}

	var titleGen titleGenConfig
	switch provider {
	case "ollama":
		titleGen = &ollamaConfig{}
	case "anthropic":
		titleGen = &anthropicConfig{}
	case "openai":
		titleGen = &openaiConfig{}
	default:
		return fmt.Errorf("unknown title generator provider: %s", provider)
	}

	if err := yaml.Unmarshal(rawYAML, titleGen); err != nil {
		return err
	}

	c.TitleGenerator = titleGen

	return nil
}

func (o ollamaConfig) titleGen(systemPrompt string) (handlers.TitleGenerator, error) {
	if o.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	host := o.Host
	if host == "" {
		host = os.Getenv("OLLAMA_HOST")
	}
	return services.NewOllama(host, o.Model, systemPrompt), nil
}

func (a anthropicConfig) titleGen(systemPrompt string) (handlers.TitleGenerator, error) {
	if a.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if a.MaxTokens == 0 {
		return nil, fmt.Errorf("maxTokens is required")
	}

	apiKey := a.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	return services.NewAnthropic(apiKey, a.Model, systemPrompt, a.MaxTokens), nil
}

func (o openaiConfig) titleGen(systemPrompt string) (handlers.TitleGenerator, error) {
	if o.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	apiKey := o.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	return services.NewOpenAI(apiKey, o.BaseURL, o.Model, systemPrompt), nil
}
