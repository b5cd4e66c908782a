package tagger

import (
	_ "embed"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed labels.yaml
var labelsYAML []byte

// LabelSet holds the fixed zero-shot vocabularies.
type LabelSet struct {
	Objects []string `yaml:"objects"`
	Scenes  []string `yaml:"scenes"`
}

var (
	labelsOnce sync.Once
	labelSet   LabelSet
	labelsErr  error
)

// Labels returns the embedded object and scene vocabularies.
func Labels() (LabelSet, error) {
	labelsOnce.Do(func() {
		labelsErr = yaml.Unmarshal(labelsYAML, &labelSet)
	})
	return labelSet, labelsErr
}
