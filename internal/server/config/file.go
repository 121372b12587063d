package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/allocator/internal/flagx"
	"github.com/dmitrijs2005/allocator/internal/timex"
	"gopkg.in/yaml.v3"
)

// FileConfig is the on-disk shape of the configuration. Pointer fields tell
// "absent" apart from zero values so a file only overrides what it sets.
type FileConfig struct {
	DatabaseDSN    *string         `json:"database_dsn" yaml:"database_dsn"`
	OfferTTL       *timex.Duration `json:"offer_ttl" yaml:"offer_ttl"`
	SweepInterval  *timex.Duration `json:"sweep_interval" yaml:"sweep_interval"`
	SweepBatchSize *int            `json:"sweep_batch_size" yaml:"sweep_batch_size"`
	ReadmitExpired *bool           `json:"readmit_expired" yaml:"readmit_expired"`
	SecretKey      *string         `json:"secret_key" yaml:"secret_key"`
	LogLevel       *string         `json:"log_level" yaml:"log_level"`
	AuditBucket    *string         `json:"audit_bucket" yaml:"audit_bucket"`
	AuditRegion    *string         `json:"audit_region" yaml:"audit_region"`
	AuditEndpoint  *string         `json:"audit_endpoint" yaml:"audit_endpoint"`
	AuditUser      *string         `json:"audit_user" yaml:"audit_user"`
	AuditPassword  *string         `json:"audit_password" yaml:"audit_password"`
}

// parseFile loads the file named by -c/-config into config. Files ending in
// .yaml or .yml are decoded as YAML, anything else as JSON. No flag means
// nothing to load. Unreadable or malformed files panic, matching how flag
// errors are treated at start-up.
func parseFile(config *Config) {
	path := flagx.ConfigFileFlag()
	if path == "" {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	fc := &FileConfig{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, fc)
	default:
		err = json.Unmarshal(data, fc)
	}
	if err != nil {
		panic(err)
	}

	fc.apply(config)
}

func (fc *FileConfig) apply(c *Config) {
	setString(&c.DatabaseDSN, fc.DatabaseDSN)
	if fc.OfferTTL != nil {
		c.OfferTTL = fc.OfferTTL.Duration
	}
	if fc.SweepInterval != nil {
		c.SweepInterval = fc.SweepInterval.Duration
	}
	if fc.SweepBatchSize != nil {
		c.SweepBatchSize = *fc.SweepBatchSize
	}
	if fc.ReadmitExpired != nil {
		c.ReadmitExpired = *fc.ReadmitExpired
	}
	setString(&c.SecretKey, fc.SecretKey)
	setString(&c.LogLevel, fc.LogLevel)
	setString(&c.AuditBucket, fc.AuditBucket)
	setString(&c.AuditRegion, fc.AuditRegion)
	setString(&c.AuditEndpoint, fc.AuditEndpoint)
	setString(&c.AuditUser, fc.AuditUser)
	setString(&c.AuditPassword, fc.AuditPassword)
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
