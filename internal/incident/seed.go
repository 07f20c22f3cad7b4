package incident

import (
	"context"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// SeedFile is the on-disk format for bootstrapping known failures and CMS logs.
//
//	known_failures:
//	  - failure_type: Invalid Postcode
//	    pattern: "%postcode is not valid%"
//	    workaround: Please verify the delivery postcode.
//	cms_logs:
//	  - order_id: ORD12345
//	    timestamp: 2025-08-19T10:00:00Z
//	    status: failure
//	    response_payload: "<Error>Selected postcode is not valid/deliverable</Error>"
type SeedFile struct {
	KnownFailures []FailurePattern `yaml:"known_failures"`
	Logs          []LogEntry       `yaml:"cms_logs"`
}

// LoadSeed decodes and validates a seed file.
func LoadSeed(r io.Reader) (*SeedFile, error) {
	var sf SeedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&sf); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode seed file: %w", err)
	}
	if err := sf.Validate(); err != nil {
		return nil, err
	}
	return &sf, nil
}

// Validate checks every entry, reporting all problems at once.
func (sf *SeedFile) Validate() error {
	var errs []error
	for i, p := range sf.KnownFailures {
		if p.Workaround == "" {
			errs = append(errs, fmt.Errorf("known_failures[%d]: workaround is required", i))
		}
		if p.FailureType == "" {
			errs = append(errs, fmt.Errorf("known_failures[%d]: failure_type is required", i))
		}
	}
	for i, l := range sf.Logs {
		if l.OrderID == "" && l.ContainerID == "" {
			errs = append(errs, fmt.Errorf("cms_logs[%d]: order_id or container_id is required", i))
		}
		if l.Status != LogSuccess && l.Status != LogFailure {
			errs = append(errs, fmt.Errorf("cms_logs[%d]: invalid status %q (must be success or failure)", i, l.Status))
		}
		if l.Timestamp.IsZero() {
			errs = append(errs, fmt.Errorf("cms_logs[%d]: timestamp is required", i))
		}
	}
	return errors.Join(errs...)
}

// Seed writes the file's patterns (in file order) and logs into store.
func Seed(ctx context.Context, store Store, sf *SeedFile) error {
	for i := range sf.KnownFailures {
		if err := store.PutKnownFailure(ctx, &sf.KnownFailures[i]); err != nil {
			return fmt.Errorf("seed known failure %q: %w", sf.KnownFailures[i].FailureType, err)
		}
	}
	for i := range sf.Logs {
		if err := store.PutLog(ctx, &sf.Logs[i]); err != nil {
			return fmt.Errorf("seed cms log %d: %w", i, err)
		}
	}
	return nil
}
