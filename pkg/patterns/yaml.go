package patterns

// yamlPattern is one entry of a pattern-set file. Either Expression or Literal
// is set; Literal uses the "/expression/flags" form, optionally prefixed "id:".
type yamlPattern struct {
	Expression       string   `yaml:"expression,omitempty"`
	Literal          string   `yaml:"literal,omitempty"`
	Flags            []string `yaml:"flags,omitempty"`
	Tag              string   `yaml:"tag,omitempty"`
	ID               *uint    `yaml:"id,omitempty"`
	Description      string   `yaml:"description,omitempty"`
	Examples         []string `yaml:"examples,omitempty"`
	NegativeExamples []string `yaml:"negative_examples,omitempty"`
}

// yamlFile is the top level of a pattern-set file.
type yamlFile struct {
	Patterns []yamlPattern `yaml:"patterns"`
}
