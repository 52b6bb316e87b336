package config

import (
	"fmt"
	"os"
	"strings"

	"ordering_assistant/internal/nlu"
	"ordering_assistant/internal/services"
	"ordering_assistant/pkg"
	"ordering_assistant/src/model"

	"gopkg.in/yaml.v3"
)

// YAMLConfig represents the structure of the optional assistant config file
type YAMLConfig struct {
	ReplaceDefaultEntities bool            `yaml:"replace_default_entities"`
	ReplaceDefaultIntents  bool            `yaml:"replace_default_intents"`
	Entities               []EntityGrammar `yaml:"entities"`
	ExtraDishes            []string        `yaml:"extra_dishes"`
	Intents                []nlu.Rule      `yaml:"intents"`
	Menu                   []services.Dish `yaml:"menu"`
}

// EntityGrammar is the YAML form of a grammar descriptor
type EntityGrammar struct {
	Type       string   `yaml:"type"`
	Kind       string   `yaml:"kind"`
	Words      []string `yaml:"words"`
	Patterns   []string `yaml:"patterns"`
	Confidence float64  `yaml:"confidence"`
}

// LoadConfig loads the YAML config file
func LoadConfig(filepath string) (*YAMLConfig, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config YAMLConfig
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, &pkg.ConfigurationError{Field: filepath, Reason: "error parsing YAML", Err: err}
	}

	return &config, nil
}

// BuildMenu creates the menu catalog, preferring the dishes from YAML
func BuildMenu(yamlConfig *YAMLConfig) *services.MenuService {
	if yamlConfig == nil {
		return services.NewMenuService()
	}
	return services.NewMenuService(yamlConfig.Menu...)
}

// BuildProcessorConfig merges env options, YAML overrides and the menu
// vocabulary into the NLU processor config
func BuildProcessorConfig(yamlConfig *YAMLConfig, nluConfig model.NLUConfig, menu *services.MenuService) (nlu.ProcessorConfig, error) {
	cfg := nlu.ProcessorConfig{
		SupportedEntities:       nluConfig.SupportedEntities,
		EnableEntityExtraction:  nluConfig.EnableEntityExtraction,
		EnableIntentRecognition: nluConfig.EnableIntentRecognition,
	}

	dishes := menu.Names()
	if yamlConfig == nil {
		cfg.Grammars = nlu.DefaultGrammars(dishes...)
		cfg.Rules = nlu.DefaultRules()
		return cfg, nil
	}

	dishes = append(dishes, yamlConfig.ExtraDishes...)
	if !yamlConfig.ReplaceDefaultEntities {
		cfg.Grammars = nlu.DefaultGrammars(dishes...)
	}
	for _, g := range yamlConfig.Entities {
		spec, err := g.toSpec()
		if err != nil {
			return nlu.ProcessorConfig{}, err
		}
		cfg.Grammars = upsertGrammar(cfg.Grammars, spec)
	}
	if len(cfg.Grammars) == 0 {
		return nlu.ProcessorConfig{}, pkg.NewConfigError("entities", "no entity grammars configured")
	}

	if !yamlConfig.ReplaceDefaultIntents {
		cfg.Rules = nlu.DefaultRules()
	}
	cfg.Rules = append(cfg.Rules, yamlConfig.Intents...)
	if len(cfg.Rules) == 0 {
		return nlu.ProcessorConfig{}, pkg.NewConfigError("intents", "no intent rules configured")
	}

	return cfg, nil
}

func (g EntityGrammar) toSpec() (nlu.GrammarSpec, error) {
	spec := nlu.GrammarSpec{
		Type:       g.Type,
		Words:      g.Words,
		Patterns:   g.Patterns,
		Confidence: g.Confidence,
	}
	switch strings.ToLower(g.Kind) {
	case "", "vocabulary":
		spec.Kind = nlu.KindVocabulary
	case "pattern":
		spec.Kind = nlu.KindPattern
	default:
		return nlu.GrammarSpec{}, pkg.NewConfigError("entities."+g.Type, "unknown grammar kind "+g.Kind)
	}
	return spec, nil
}

// upsertGrammar replaces a grammar of the same type in place, keeping its
// registration slot, or appends a new one
func upsertGrammar(specs []nlu.GrammarSpec, spec nlu.GrammarSpec) []nlu.GrammarSpec {
	for i := range specs {
		if specs[i].Type == spec.Type {
			specs[i] = spec
			return specs
		}
	}
	return append(specs, spec)
}
