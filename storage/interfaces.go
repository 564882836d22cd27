package storage

import "myhome-publisher/models"

// ResultWriter is the interface any submission report backend must satisfy.
type ResultWriter interface {
	Write(results []*models.SubmissionResult) error
	Close() error
}

// DescriptorSource loads the raw descriptor of one listing folder.
type DescriptorSource interface {
	Load(dir string) (*models.PropertyListing, error)
}
