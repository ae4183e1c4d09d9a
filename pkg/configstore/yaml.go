package configstore

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/David-Botos/data-quality/pkg/model"
)

// SupportedYAMLVersion is the only accepted document version
const SupportedYAMLVersion = 1

// ValidationFile is the declarative form of a check configuration
type ValidationFile struct {
	Version     int               `yaml:"version"`
	Validations []FieldValidation `yaml:"validations"`
}

// FieldValidation enables rules on one field, optionally with an allow-list
type FieldValidation struct {
	Table       string   `yaml:"table"`
	Field       string   `yaml:"field"`
	Description string   `yaml:"description,omitempty"`
	Checks      []string `yaml:"checks"`
	ValidCodes  []string `yaml:"valid_codes,omitempty"`
}

// LoadCheckConfigYAML parses a ValidationFile. Unknown keys and rule ids are rejected.
func LoadCheckConfigYAML(r io.Reader, source string) (*model.CheckConfig, model.CodeAllowList, error) {
	var doc ValidationFile

	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			err = errors.New("empty document")
		}
		return nil, nil, &model.ConfigError{Kind: model.ConfigRead, Source: source, Err: err}
	}
	if doc.Version != SupportedYAMLVersion {
		return nil, nil, &model.ConfigError{
			Kind:   model.ConfigRead,
			Source: source,
			Err:    fmt.Errorf("unsupported version %d (expected %d)", doc.Version, SupportedYAMLVersion),
		}
	}

	cfg := model.NewCheckConfig()
	codes := make(model.CodeAllowList)
	for i, v := range doc.Validations {
		if v.Table == "" || v.Field == "" {
			return nil, nil, &model.ConfigError{
				Kind:   model.ConfigRead,
				Source: source,
				Err:    fmt.Errorf("validation %d: table and field are required", i+1),
			}
		}

		fc := model.FieldCheckConfig{Table: v.Table, Field: v.Field, Description: v.Description}
		for _, id := range v.Checks {
			ct, err := model.ParseCheckType(strings.TrimSpace(id))
			if err != nil || !isRule(ct) {
				return nil, nil, &model.ConfigError{Kind: model.ConfigUnknownCheck, Source: source, Column: id}
			}
			fc.Set(ct, true)
		}
		cfg.Put(fc)

		var valid []string
		for _, code := range v.ValidCodes {
			if code = strings.TrimSpace(code); code != "" {
				valid = append(valid, code)
			}
		}
		if len(valid) > 0 {
			codes.Put(v.Table, v.Field, valid)
		}
	}

	return cfg, codes, nil
}

// LoadCheckConfigYAMLFile reads a ValidationFile from disk
func LoadCheckConfigYAMLFile(path string) (*model.CheckConfig, model.CodeAllowList, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, &model.ConfigError{Kind: model.ConfigRead, Source: path, Err: err}
	}
	defer f.Close()
	return LoadCheckConfigYAML(f, path)
}

func isRule(ct model.CheckType) bool {
	for _, rule := range model.RuleCheckTypes {
		if rule == ct {
			return true
		}
	}
	return false
}
