package nlu

import (
	"sync/atomic"

	"ordering_assistant/pkg"
)

// ProcessorConfig configures the local NLU pipeline
type ProcessorConfig struct {
	Grammars                []GrammarSpec
	Rules                   []Rule
	SupportedEntities       []string
	EnableEntityExtraction  bool
	EnableIntentRecognition bool
}

// Processor bundles the registry and the classifier behind the feature flags.
// The flags can be switched while serving.
type Processor struct {
	registry   *Registry
	classifier *Classifier

	entities atomic.Bool
	intents  atomic.Bool
}

// NewProcessor builds the registry and classifier, falling back to the
// default grammars and rules when none are configured
func NewProcessor(config ProcessorConfig) (*Processor, error) {
	if len(config.Grammars) == 0 {
		config.Grammars = DefaultGrammars()
	}
	if len(config.Rules) == 0 {
		config.Rules = DefaultRules()
	}

	full, err := NewRegistry(config.Grammars...)
	if err != nil {
		return nil, err
	}
	registry, err := full.Restrict(config.SupportedEntities)
	if err != nil {
		return nil, err
	}

	// rules may reference any registered type, even one disabled by
	// SupportedEntities; such a rule just never fires
	classifier, err := NewClassifier(config.Rules, full.Types())
	if err != nil {
		return nil, err
	}

	p := &Processor{
		registry:   registry,
		classifier: classifier,
	}
	p.entities.Store(config.EnableEntityExtraction)
	p.intents.Store(config.EnableIntentRecognition)
	return p, nil
}

func (p *Processor) SetEntityExtraction(enabled bool) {
	p.entities.Store(enabled)
}

func (p *Processor) SetIntentRecognition(enabled bool) {
	p.intents.Store(enabled)
}

// Extract runs entity extraction unless it is disabled
func (p *Processor) Extract(text string) []pkg.EntityMatch {
	if !p.entities.Load() {
		return nil
	}
	return p.registry.Extract(text)
}

// Classify runs intent classification unless it is disabled
func (p *Processor) Classify(text string, entities []pkg.EntityMatch) pkg.Intent {
	if !p.intents.Load() {
		return pkg.Intent{Name: pkg.GenericInquiry, Description: DescribeIntent(pkg.GenericInquiry)}
	}
	return p.classifier.Classify(text, entities)
}

// Analyze extracts entities then classifies the intent
func (p *Processor) Analyze(text string) pkg.Analysis {
	entities := p.Extract(text)
	intent := p.Classify(text, entities)
	return pkg.Analysis{
		Entities:   entities,
		Intent:     intent,
		Confidence: overallConfidence(intent, entities),
	}
}

// overallConfidence weighs the intent 0.7 and the mean entity confidence
// 0.3; with no entities the mean counts as 0.5
func overallConfidence(intent pkg.Intent, entities []pkg.EntityMatch) float64 {
	mean := 0.5
	if len(entities) > 0 {
		sum := 0.0
		for _, e := range entities {
			sum += e.Confidence
		}
		mean = sum / float64(len(entities))
	}
	return intent.Confidence*0.7 + mean*0.3
}

// Status reports the supported intents, entities and feature flags
func (p *Processor) Status() pkg.NLUStatus {
	return pkg.NLUStatus{
		SupportedIntents:  p.classifier.Labels(),
		SupportedEntities: p.registry.Types(),
		Features: map[string]bool{
			"intent_recognition": p.intents.Load(),
			"entity_extraction":  p.entities.Load(),
		},
	}
}

// Registry exposes the active (restricted) registry
func (p *Processor) Registry() *Registry {
	return p.registry
}
