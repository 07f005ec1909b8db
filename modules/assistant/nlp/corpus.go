package nlp

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/flotatrack/fleet-assistant/modules/assistant/domain/intent"
)

//go:embed corpus.yaml
var defaultCorpus []byte

// Corpus is the labelled training set for the Bayes classifier.
type Corpus struct {
	Version  int                 `yaml:"version" toml:"version"`
	Examples map[string][]string `yaml:"examples" toml:"examples"`
}

// LoadCorpus parses a YAML corpus. Labels must be known intents other than unknown.
func LoadCorpus(r io.Reader) (Corpus, error) {
	var c Corpus
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		return Corpus{}, fmt.Errorf("decode corpus: %w", err)
	}
	return c, c.validate()
}

// LoadCorpusTOML parses the same shape written as TOML.
func LoadCorpusTOML(r io.Reader) (Corpus, error) {
	var c Corpus
	md, err := toml.NewDecoder(r).Decode(&c)
	if err != nil {
		return Corpus{}, fmt.Errorf("decode corpus: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return Corpus{}, fmt.Errorf("decode corpus: unknown field %q", undecoded[0].String())
	}
	return c, c.validate()
}

func (c Corpus) validate() error {
	if len(c.Examples) == 0 {
		return fmt.Errorf("corpus has no examples")
	}
	for label, examples := range c.Examples {
		in := intent.Parse(label)
		if in == intent.Unknown {
			return fmt.Errorf("corpus label %q is not a known intent", label)
		}
		if len(examples) == 0 {
			return fmt.Errorf("corpus label %q has no examples", label)
		}
	}
	return nil
}

// LoadCorpusFile reads a corpus from disk. Files ending in .toml are parsed
// as TOML, everything else as YAML.
func LoadCorpusFile(path string) (Corpus, error) {
	f, err := os.Open(path)
	if err != nil {
		return Corpus{}, err
	}
	defer f.Close()
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return LoadCorpusTOML(f)
	}
	return LoadCorpus(f)
}

// DefaultCorpus returns the corpus compiled into the binary.
func DefaultCorpus() Corpus {
	c, err := LoadCorpus(bytes.NewReader(defaultCorpus))
	if err != nil {
		panic(fmt.Sprintf("embedded corpus is invalid: %v", err))
	}
	return c
}
