package transform

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/insuranceops/commission-processor/internal/models"
)

// FileTypeConfig describes one output kind a carrier's statements can carry
// and how to recognize it in a file.
type FileTypeConfig struct {
	Template          string   `json:"template"`
	IdentifierColumns []string `json:"identifier_columns"`
	Description       string   `json:"description"`
}

// CarrierConfig holds a carrier's file-type definitions and lookup tables.
type CarrierConfig struct {
	FileTypes map[models.OutputKind]FileTypeConfig `json:"file_types"`
	Lookups   map[string]map[string]string         `json:"lookups"`
}

// ConfigSet loads and serves per-carrier configuration. Lookup tables grow
// over time, so the set persists back to carrier_configs.json in the data
// directory.
type ConfigSet struct {
	path    string
	mu      sync.RWMutex
	configs map[string]CarrierConfig
}

// LoadConfigs reads carrier_configs.json from dataDir, seeding defaults when
// the file does not exist yet.
func LoadConfigs(dataDir string) (*ConfigSet, error) {
	cs := &ConfigSet{
		path:    filepath.Join(dataDir, "carrier_configs.json"),
		configs: defaultConfigs(),
	}

	data, err := os.ReadFile(cs.path)
	if os.IsNotExist(err) {
		return cs, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read carrier configs: %w", err)
	}
	if err := json.Unmarshal(data, &cs.configs); err != nil {
		return nil, fmt.Errorf("parse carrier configs: %w", err)
	}
	return cs, nil
}

// Carrier returns the config for a carrier, case-insensitively.
func (cs *ConfigSet) Carrier(name string) (CarrierConfig, bool) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	for k, v := range cs.configs {
		if strings.EqualFold(k, strings.TrimSpace(name)) {
			return v, true
		}
	}
	return CarrierConfig{}, false
}

// ConfiguredCarriers lists carriers that have file-type configs.
func (cs *ConfigSet) ConfiguredCarriers() []string {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	names := make([]string, 0, len(cs.configs))
	for k := range cs.configs {
		names = append(names, k)
	}
	return names
}

// Lookup resolves key through the named lookup table of a carrier.
func (cs *ConfigSet) Lookup(carrier, table, key string) (string, bool) {
	cfg, ok := cs.Carrier(carrier)
	if !ok {
		return "", false
	}
	val, ok := cfg.Lookups[table][strings.TrimSpace(key)]
	return val, ok
}

// UpdateLookup adds or replaces one lookup entry and persists the set.
func (cs *ConfigSet) UpdateLookup(carrier, table, key, value string) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	cfg, ok := cs.configs[carrier]
	if !ok {
		cfg = CarrierConfig{
			FileTypes: map[models.OutputKind]FileTypeConfig{},
			Lookups:   map[string]map[string]string{},
		}
	}
	if cfg.Lookups == nil {
		cfg.Lookups = map[string]map[string]string{}
	}
	if cfg.Lookups[table] == nil {
		cfg.Lookups[table] = map[string]string{}
	}
	cfg.Lookups[table][key] = value
	cs.configs[carrier] = cfg

	return cs.saveLocked()
}

func (cs *ConfigSet) saveLocked() error {
	data, err := json.MarshalIndent(cs.configs, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(cs.path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(cs.path, data, 0o644)
}

// DetectFileType guesses which output kind a file carries by checking how
// many of each file type's identifier columns are present. Half or more
// counts as a match.
func (cs *ConfigSet) DetectFileType(carrier string, columns []string) (models.OutputKind, bool) {
	cfg, ok := cs.Carrier(carrier)
	if !ok {
		return "", false
	}

	present := make(map[string]bool, len(columns))
	for _, c := range columns {
		present[strings.ToLower(strings.TrimSpace(c))] = true
	}

	for _, kind := range models.OutputKinds {
		ft, ok := cfg.FileTypes[kind]
		if !ok || len(ft.IdentifierColumns) == 0 {
			continue
		}
		matches := 0
		for _, id := range ft.IdentifierColumns {
			if present[strings.ToLower(id)] {
				matches++
			}
		}
		if matches*2 >= len(ft.IdentifierColumns) {
			return kind, true
		}
	}
	return "", false
}

func defaultConfigs() map[string]CarrierConfig {
	return map[string]CarrierConfig{
		"Manhattan Life": {
			FileTypes: map[models.OutputKind]FileTypeConfig{
				models.KindCommission: {
					Template:          models.PolicyAndTransactions.Name,
					IdentifierColumns: []string{"Record Type", "Group No.", "Policy", "Owner Name"},
					Description:       "Commission statement file",
				},
				models.KindChargeback: {
					Template:          models.CommissionChargebacks.Name,
					IdentifierColumns: []string{"Policy Owner Name", "Policy Number", "# of Days Lapsed"},
					Description:       "Chargeback/lapse report",
				},
			},
			Lookups: map[string]map[string]string{
				"plan_to_product_type": {
					"DVH SELECT $5,000 POL MAX WITH $100 DEDUCT": "Dental with Vision",
					"DVH SELECT $5,000 POL MAX WITH $0 DEDUCT":   "Dental with Vision",
					"DVH SELECT $3,000 POL MAX WITH $0 DEDUCT":   "Dental with Vision",
					"DVH SELECT $1,500 POL MAX WITH $0 DEDUCT":   "Dental with Vision",
					"DVH REFRESH, GENERIC PLAN, $1,000 PY MAX":   "Dental with Vision",
					"DENTAL/VISION/HEARING  $1500 POL MAX":       "Dental with Vision",
					"PAID ENHANCED - 24 HR ACC POLICY 2 UNITS":   "Accident",
					"PAID ENHANCED - 24 HR ACC POLICY 1 UNIT":    "Accident",
					"MIAC 24 HR ACCIDENT EXPENSE FL":             "Accident",
					"2013 OFF THE JOB ACCIDENT EXPENSE":          "Accident",
					"AFFORDABLE CHOICE ENHANCED ELITE PLUS":      "Fixed Indemnity",
					"AFFORDABLE CHOICE ENHANCED ELITE":           "Fixed Indemnity",
					"AFFORDABLE CHOICE ENHANCED CLASSIC":         "Fixed Indemnity",
					"HOSPITAL INDEMNITY SELECT":                  "Hospital Indemnity",
					"LUMP SUM CANCER":                            "Critical Illness",
					"LUMP SUM HEART ATTACK AND STROKE":           "Critical Illness",
					"CRITICAL PROTECTION & RECOVERY W/ CANCER (B)": "Critical Illness",
				},
				"plan_to_plan_name": {
					"DVH SELECT $5,000 POL MAX WITH $100 DEDUCT": "Dental, Vision, Hearing & Dental, Vision, Hearing Select",
					"DVH SELECT $5,000 POL MAX WITH $0 DEDUCT":   "Dental, Vision, Hearing & Dental, Vision, Hearing Select",
					"DVH SELECT $3,000 POL MAX WITH $0 DEDUCT":   "Dental, Vision, Hearing & Dental, Vision, Hearing Select",
					"DVH SELECT $1,500 POL MAX WITH $0 DEDUCT":   "Dental, Vision, Hearing & Dental, Vision, Hearing Select",
					"DVH REFRESH, GENERIC PLAN, $1,000 PY MAX":   "Dental, Vision, Hearing & Dental, Vision, Hearing Select",
					"DENTAL/VISION/HEARING  $1500 POL MAX":       "Dental, Vision, Hearing & Dental, Vision, Hearing Select",
					"PAID ENHANCED - 24 HR ACC POLICY 2 UNITS":   "PAID Personal Accident & DI Rider, and Accident Express",
					"PAID ENHANCED - 24 HR ACC POLICY 1 UNIT":    "PAID Personal Accident & DI Rider, and Accident Express",
					"MIAC 24 HR ACCIDENT EXPENSE FL":             "PAID Personal Accident & DI Rider, and Accident Express",
					"2013 OFF THE JOB ACCIDENT EXPENSE":          "PAID Personal Accident & DI Rider, and Accident Express",
					"AFFORDABLE CHOICE ENHANCED ELITE PLUS":      "Affordable Choice",
					"AFFORDABLE CHOICE ENHANCED ELITE":           "Affordable Choice",
					"AFFORDABLE CHOICE ENHANCED CLASSIC":         "Affordable Choice",
					"HOSPITAL INDEMNITY SELECT":                  "Hospital Indemnity Select 18-64.5",
					"LUMP SUM CANCER":                            "Cancer, Heart Attack, Stroke",
					"LUMP SUM HEART ATTACK AND STROKE":           "Cancer, Heart Attack, Stroke",
					"CRITICAL PROTECTION & RECOVERY W/ CANCER (B)": "Critical Protection CPR-Critical Illness",
				},
			},
		},
	}
}
