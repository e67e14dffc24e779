package ingest

import (
	"fmt"
	"io"
	"os"

	"github.com/Veraticus/credit-engine/internal/common"
	"github.com/Veraticus/credit-engine/internal/model"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// ruleFile is the on-disk layout of a retention rule table.
type ruleFile struct {
	Rules []ruleEntry `yaml:"rules"`
}

type ruleEntry struct {
	Category     string `yaml:"category"`
	SupplierType string `yaml:"supplierType"`
	RatePercent  string `yaml:"ratePercent,omitempty"`
	Citation     string `yaml:"citation"`
	Priority     int    `yaml:"priority"`
	Exempt       bool   `yaml:"exempt"`
}

// LoadRulesFile reads a YAML rule table from disk.
func LoadRulesFile(path string) ([]model.RetentionRule, error) {
	f, err := os.Open(path) //nolint:gosec // path is user-provided on purpose
	if err != nil {
		return nil, fmt.Errorf("failed to open rules file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return ParseRules(f)
}

// ParseRules decodes a YAML rule table. Every rule is validated and
// duplicate category and supplier type pairs are rejected.
func ParseRules(r io.Reader) ([]model.RetentionRule, error) {
	var doc ruleFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if err == io.EOF {
			return nil, common.NewUserError("rules file is empty", common.ErrNoRulesConfigured)
		}
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidRule, err)
	}
	if len(doc.Rules) == 0 {
		return nil, common.NewUserError("rules file defines no rules", common.ErrNoRulesConfigured)
	}

	type key struct {
		category     model.ServiceCategory
		supplierType model.SupplierType
	}
	seen := make(map[key]int, len(doc.Rules))

	rules := make([]model.RetentionRule, 0, len(doc.Rules))
	for i, entry := range doc.Rules {
		rate := decimal.Zero
		if entry.RatePercent != "" || !entry.Exempt {
			var err error
			if rate, err = ParseDecimal(entry.RatePercent); err != nil {
				return nil, fmt.Errorf("%w: rule %d: %w", common.ErrInvalidRule, i+1, err)
			}
		}

		rule := model.RetentionRule{
			Category:     model.ParseCategory(entry.Category),
			SupplierType: model.SupplierType(entry.SupplierType),
			RatePercent:  rate,
			Citation:     entry.Citation,
			Priority:     entry.Priority,
			Exempt:       entry.Exempt,
		}
		if st, err := model.ParseSupplierType(entry.SupplierType); err == nil {
			rule.SupplierType = st
		}
		if err := rule.Validate(); err != nil {
			return nil, fmt.Errorf("rule %d: %w", i+1, err)
		}

		k := key{rule.Category, rule.SupplierType}
		if prev, dup := seen[k]; dup {
			return nil, fmt.Errorf("%w: rule %d duplicates rule %d (%s/%s)",
				common.ErrInvalidRule, i+1, prev, rule.Category, rule.SupplierType)
		}
		seen[k] = i + 1

		rules = append(rules, rule)
	}

	return rules, nil
}

// MarshalRules renders rules in the same YAML layout ParseRules reads.
func MarshalRules(rules []model.RetentionRule) ([]byte, error) {
	doc := ruleFile{Rules: make([]ruleEntry, len(rules))}
	for i, r := range rules {
		doc.Rules[i] = ruleEntry{
			Category:     string(r.Category),
			SupplierType: string(r.SupplierType),
			RatePercent:  r.RatePercent.String(),
			Citation:     r.Citation,
			Priority:     r.Priority,
			Exempt:       r.Exempt,
		}
	}
	return yaml.Marshal(doc)
}
