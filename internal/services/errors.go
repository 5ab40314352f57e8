package services

import "errors"

// Report service errors
var (
	ErrJobNotFound        = errors.New("processing job not found")
	ErrJobNotCompleted    = errors.New("processing job has not completed")
	ErrOutputMissing      = errors.New("output file not found")
	ErrEmptyAfterCleaning = errors.New("no valid rows remained after cleaning")
	ErrAccountNotFound    = errors.New("account not found for job")
)
