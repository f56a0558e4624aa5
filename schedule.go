package main

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Schedule computes trigger instants for a standard 5-field cron expression.
type Schedule struct {
	expr string
	spec cron.Schedule
}

// ParseSchedule parses expr and checks that it fires at least once.
func ParseSchedule(expr string) (*Schedule, error) {
	spec, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, &ConfigError{Field: "cron", Err: err}
	}

	// robfig/cron returns the zero time for expressions with no match (e.g. Feb 30)
	if spec.Next(time.Now()).IsZero() {
		return nil, &ConfigError{Field: "cron", Err: fmt.Errorf("expression %q never fires", expr)}
	}

	return &Schedule{expr: expr, spec: spec}, nil
}

// Next returns the earliest matching instant strictly after t.
func (s *Schedule) Next(t time.Time) time.Time {
	return s.spec.Next(t)
}

func (s *Schedule) String() string { return s.expr }
